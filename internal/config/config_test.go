package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	cfg.resolvePaths()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "localpulse", cfg.Service.Name)
	require.Equal(t, 8081, cfg.Service.Port)
	require.Equal(t, "http://127.0.0.1:8081", cfg.Endpoint())
}

func TestLoadDefaultsResolvePaths(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(cfg.Paths.PIDFile), "pid file not absolute: %s", cfg.Paths.PIDFile)
	require.True(t, filepath.IsAbs(cfg.Paths.ServiceLog), "service log not absolute: %s", cfg.Paths.ServiceLog)
	require.True(t, filepath.IsAbs(cfg.Service.WorkDir), "work dir not absolute: %s", cfg.Service.WorkDir)
	require.True(t, filepath.IsAbs(cfg.Service.EntryPoint), "entry point not absolute: %s", cfg.Service.EntryPoint)
	require.True(t, filepath.IsAbs(cfg.Journal.DSN), "bare sqlite DSN not anchored: %s", cfg.Journal.DSN)
}

func TestLoadTOMLOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pulsectl.toml")
	content := `
[service]
name = "demo"
command = "sleep 60"
port = 19099
patterns = ["sleep 60"]
entry_point = ""
data_store = ""
env_file = ""

[paths]
pid_file = "demo.pid"
service_log = "demo.log"

[timing]
start_duration = "750ms"
stop_grace = "1s"

[journal]
dsn = "postgres://user:pw@localhost/j"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "demo", cfg.Service.Name)
	require.Equal(t, 19099, cfg.Service.Port)
	require.Equal(t, 750*time.Millisecond, cfg.Timing.StartDuration)
	// untouched sections keep their defaults
	require.Equal(t, 2*time.Second, cfg.Timing.ReclaimGrace)
	// relative paths resolve against the config file's directory
	require.Equal(t, filepath.Join(dir, "demo.pid"), cfg.Paths.PIDFile)
	require.Equal(t, filepath.Join(dir, "demo.log"), cfg.Paths.ServiceLog)
	// scheme DSNs are never anchored
	require.Equal(t, "postgres://user:pw@localhost/j", cfg.Journal.DSN)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no command", func(c *Config) { c.Service.Command = "" }},
		{"port too low", func(c *Config) { c.Service.Port = 0 }},
		{"port too high", func(c *Config) { c.Service.Port = 70000 }},
		{"no patterns", func(c *Config) { c.Service.Patterns = nil }},
		{"no pid file", func(c *Config) { c.Paths.PIDFile = "" }},
		{"no service log", func(c *Config) { c.Paths.ServiceLog = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.resolvePaths()
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestPrimaryPattern(t *testing.T) {
	s := ServiceConfig{Patterns: []string{"api.py", "localpulse"}}
	require.Equal(t, "api.py", s.PrimaryPattern())
	s = ServiceConfig{EntryPoint: "api.py"}
	require.Equal(t, "api.py", s.PrimaryPattern())
}

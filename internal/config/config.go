// Package config loads the supervisor configuration. Everything has a
// LocalPulse-shaped default so the tool works with no config file at all;
// a TOML file next to the binary (or given via --config) overrides it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/localpulse/pulsectl/internal/logger"
)

// ServiceConfig is the static ServiceIdentity of the supervised process:
// the signatures used to recognize it plus how to launch it. Not mutated
// at runtime.
type ServiceConfig struct {
	Name          string   `mapstructure:"name"`
	Command       string   `mapstructure:"command"`  // launch command, run with no extra arguments
	WorkDir       string   `mapstructure:"work_dir"` // service working directory
	Port          int      `mapstructure:"port"`     // fixed listening port
	Patterns      []string `mapstructure:"patterns"` // command-line substrings identifying the service
	EntryPoint    string   `mapstructure:"entry_point"`
	DataStore     string   `mapstructure:"data_store"`
	InitCommand   string   `mapstructure:"init_command"` // external data-store initializer
	EnvFile       string   `mapstructure:"env_file"`
	CredentialKey string   `mapstructure:"credential_key"` // optional; absence degrades features, never fatal
	Host          string   `mapstructure:"host"`           // advertised endpoint host
}

type PathsConfig struct {
	PIDFile    string `mapstructure:"pid_file"`
	ServiceLog string `mapstructure:"service_log"`
}

type TimingConfig struct {
	StartDuration time.Duration `mapstructure:"start_duration"` // liveness confirmation window
	StopGrace     time.Duration `mapstructure:"stop_grace"`     // SIGTERM to SIGKILL escalation
	ReclaimGrace  time.Duration `mapstructure:"reclaim_grace"`  // port reclaim grace period
	RestartPause  time.Duration `mapstructure:"restart_pause"`
}

type JournalConfig struct {
	// DSN selects the lifecycle journal backend: a sqlite path (default)
	// or a postgres:// URL. Empty disables the journal.
	DSN string `mapstructure:"dsn"`
}

type Config struct {
	Service ServiceConfig `mapstructure:"service"`
	Paths   PathsConfig   `mapstructure:"paths"`
	Timing  TimingConfig  `mapstructure:"timing"`
	Journal JournalConfig `mapstructure:"journal"`
	Log     logger.Config `mapstructure:"log"`

	// BaseDir anchors relative paths; defaults to the executable's directory
	// so the supervisor's persisted state lives next to the binary.
	BaseDir string `mapstructure:"-"`
}

// Default returns the LocalPulse configuration.
func Default() Config {
	return Config{
		Service: ServiceConfig{
			Name:          "localpulse",
			Command:       "python3 api.py",
			WorkDir:       ".",
			Port:          8081,
			Patterns:      []string{"api.py", "localpulse"},
			EntryPoint:    "api.py",
			DataStore:     "localpulse.db",
			InitCommand:   "python3 setup_database.py",
			EnvFile:       ".env",
			CredentialKey: "CLAUDE_API_KEY",
			Host:          "127.0.0.1",
		},
		Paths: PathsConfig{
			PIDFile:    "localpulse.pid",
			ServiceLog: "localpulse.log",
		},
		Timing: TimingConfig{
			StartDuration: 3 * time.Second,
			StopGrace:     2 * time.Second,
			ReclaimGrace:  2 * time.Second,
			RestartPause:  time.Second,
		},
		Journal: JournalConfig{DSN: "pulsectl-journal.db"},
		BaseDir: baseDir(),
	}
}

// Load reads a TOML config file over the defaults and resolves all
// relative paths. An empty path means defaults only.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := v.Unmarshal(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		// paths in a config file resolve against the file's directory
		if abs, err := filepath.Abs(filepath.Dir(path)); err == nil {
			cfg.BaseDir = abs
		}
	}
	cfg.resolvePaths()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) resolvePaths() {
	c.Service.WorkDir = c.anchor(c.BaseDir, c.Service.WorkDir)
	// service-side artifacts are the service's view of the world
	c.Service.EntryPoint = c.anchor(c.Service.WorkDir, c.Service.EntryPoint)
	c.Service.DataStore = c.anchor(c.Service.WorkDir, c.Service.DataStore)
	c.Service.EnvFile = c.anchor(c.Service.WorkDir, c.Service.EnvFile)
	// supervisor-owned state lives next to the supervisor
	c.Paths.PIDFile = c.anchor(c.BaseDir, c.Paths.PIDFile)
	c.Paths.ServiceLog = c.anchor(c.BaseDir, c.Paths.ServiceLog)
	c.Log.Path = c.anchor(c.BaseDir, c.Log.Path)
	// bare sqlite paths are anchored; anything with a scheme is left alone
	if c.Journal.DSN != "" && !strings.Contains(c.Journal.DSN, "://") {
		c.Journal.DSN = c.anchor(c.BaseDir, c.Journal.DSN)
	}
}

func (c *Config) anchor(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func (c *Config) Validate() error {
	if c.Service.Command == "" {
		return fmt.Errorf("service.command is required")
	}
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("service.port out of range: %d", c.Service.Port)
	}
	if len(c.Service.Patterns) == 0 {
		return fmt.Errorf("service.patterns must name at least one command-line pattern")
	}
	if c.Paths.PIDFile == "" {
		return fmt.Errorf("paths.pid_file is required")
	}
	if c.Paths.ServiceLog == "" {
		return fmt.Errorf("paths.service_log is required")
	}
	return nil
}

// Endpoint is the service's externally advertised base URL.
func (c *Config) Endpoint() string {
	return fmt.Sprintf("http://%s:%d", c.Service.Host, c.Service.Port)
}

// PrimaryPattern is the entry-point pattern used for best-effort stop
// when no PID record exists.
func (s *ServiceConfig) PrimaryPattern() string {
	if len(s.Patterns) > 0 {
		return s.Patterns[0]
	}
	return s.EntryPoint
}

func baseDir() string {
	if exe, err := os.Executable(); err == nil {
		return filepath.Dir(exe)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

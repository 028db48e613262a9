package env

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestFromOSCapturesBase(t *testing.T) {
	t.Setenv("PULSECTL_ENV_BASE", "from-os")
	e := FromOS()
	if !e.Has("PULSECTL_ENV_BASE") {
		t.Fatalf("expected OS variable to be captured")
	}
}

func TestApplyFileMissingIsNotAnError(t *testing.T) {
	e := FromOS()
	loaded, err := e.ApplyFile(filepath.Join(t.TempDir(), "nope.env"))
	if err != nil {
		t.Fatalf("ApplyFile: %v", err)
	}
	if loaded {
		t.Fatalf("expected loaded=false for missing file")
	}
}

func TestApplyFileParsesAndOverrides(t *testing.T) {
	t.Setenv("PULSECTL_ENV_OVERRIDE", "old")
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	content := "# comment line\n" +
		"PULSECTL_ENV_OVERRIDE=new\n" +
		"  SPACED_KEY =  spaced value  \n" +
		"\n" +
		"NOEQUALS\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	e := FromOS()
	loaded, err := e.ApplyFile(path)
	if err != nil {
		t.Fatalf("ApplyFile: %v", err)
	}
	if !loaded {
		t.Fatalf("expected loaded=true")
	}
	environ := e.Environ()
	if !slices.Contains(environ, "PULSECTL_ENV_OVERRIDE=new") {
		t.Fatalf("file value did not override OS value: %v", environ)
	}
	if !slices.Contains(environ, "SPACED_KEY=spaced value") {
		t.Fatalf("keys/values not trimmed: %v", environ)
	}
}

func TestEnvironExpandsVariables(t *testing.T) {
	e := FromOS()
	e.Set("BASE_DIR", "/srv/app")
	e.Set("DATA_PATH", "${BASE_DIR}/data")
	if !slices.Contains(e.Environ(), "DATA_PATH=/srv/app/data") {
		t.Fatalf("expected ${VAR} expansion, got %v", e.Environ())
	}
}

func TestHasRequiresNonEmptyValue(t *testing.T) {
	e := FromOS()
	e.Set("EMPTYISH", "   ")
	if e.Has("EMPTYISH") {
		t.Fatalf("whitespace-only value should not count as present")
	}
	if e.Has("NEVER_SET_KEY_12345") {
		t.Fatalf("unset key should not count as present")
	}
}

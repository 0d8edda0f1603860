package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"abc", "***"},
		{"postgres://u:p@host/db", "po******************db"},
	}
	for _, tt := range tests {
		if got := maskSecret(tt.in); got != tt.want {
			t.Errorf("maskSecret(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "storepulse.yaml")
	if err := os.WriteFile(path, []byte("version: 1\ndata:\n  directory: /srv/retail\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfgFile, dataDir, logLevel = path, filepath.Join(dir, "data"), "debug"
	defer func() { cfgFile, dataDir, logLevel = "", "", "" }()

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Data.Directory != dataDir {
		t.Errorf("data directory = %q, want %q", cfg.Data.Directory, dataDir)
	}
	if cfg.Export.Directory != filepath.Join(dataDir, "gold_parquet") {
		t.Errorf("export directory should follow the data directory, got %q", cfg.Export.Directory)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	cfgFile = filepath.Join(t.TempDir(), "absent.yaml")
	defer func() { cfgFile = "" }()

	if _, err := loadConfig(); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

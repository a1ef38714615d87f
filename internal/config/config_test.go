package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DEVON_DATA_DIR", dir)

	cfg, err := Load(nil, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != DefaultAPIURL {
		t.Fatalf("api url = %q", cfg.APIURL)
	}
	if cfg.DataDir != dir {
		t.Fatalf("data dir = %q", cfg.DataDir)
	}
	if cfg.LogFile != filepath.Join(dir, "devon.log") {
		t.Fatalf("log file = %q", cfg.LogFile)
	}
	if cfg.Drafts.TTL != 30*24*time.Hour || cfg.Drafts.MaxEntries != 500 {
		t.Fatalf("drafts = %+v", cfg.Drafts)
	}
	if cfg.PageSize != DefaultPageSize || cfg.HTTPTimeout != DefaultHTTPTimeout {
		t.Fatalf("unexpected page size / timeout: %d %s", cfg.PageSize, cfg.HTTPTimeout)
	}
}

func TestLoad_FileEnvFlagPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DEVON_DATA_DIR", dir)
	file := filepath.Join(dir, "config.yaml")
	body := "api_url: http://file.local\npage_size: 500\ndrafts:\n  ttl: 48h\n  max_entries: 10\n"
	if err := os.WriteFile(file, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(nil, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://file.local" || cfg.File != file {
		t.Fatalf("expected file values, got %+v", cfg)
	}
	if cfg.PageSize != MaxPageSize {
		t.Fatalf("expected page size clamped to %d, got %d", MaxPageSize, cfg.PageSize)
	}
	if cfg.Drafts.TTL != 48*time.Hour || cfg.Drafts.MaxEntries != 10 {
		t.Fatalf("drafts = %+v", cfg.Drafts)
	}

	t.Setenv("DEVON_API_URL", "http://env.local/")
	cfg, err = Load(nil, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://env.local" {
		t.Fatalf("expected env to win over file, got %q", cfg.APIURL)
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("api", "", "")
	if err := fs.Parse([]string{"--api", "http://flag.local"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg, err = Load(fs, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://flag.local" {
		t.Fatalf("expected flag to win, got %q", cfg.APIURL)
	}
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	t.Setenv("DEVON_DATA_DIR", t.TempDir())
	if _, err := Load(nil, filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}

func TestClampPageSize(t *testing.T) {
	for in, want := range map[int]int{-1: DefaultPageSize, 0: DefaultPageSize, 7: 7, 100: 100, 101: 100} {
		if got := ClampPageSize(in); got != want {
			t.Fatalf("ClampPageSize(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestLoad_ExplicitFileSetsDataDir(t *testing.T) {
	t.Setenv("DEVON_DATA_DIR", "")
	want := filepath.Join(t.TempDir(), "state")
	file := filepath.Join(t.TempDir(), "devon.yaml")
	if err := os.WriteFile(file, []byte("data_dir: "+want+"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(nil, file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != want || cfg.File != file {
		t.Fatalf("data dir = %q file = %q", cfg.DataDir, cfg.File)
	}
	if cfg.LogFile != filepath.Join(want, "devon.log") {
		t.Fatalf("log file = %q", cfg.LogFile)
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("data-dir", "", "")
	flagDir := t.TempDir()
	if err := fs.Parse([]string{"--data-dir", flagDir}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg, err = Load(fs, file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != flagDir {
		t.Fatalf("expected flag to win over file, got %q", cfg.DataDir)
	}
}

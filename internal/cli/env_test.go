package cli

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
)

func TestEnvLoaderProcessEnvWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("SIMILARITY_THRESHOLD=9\nFEEDSIFT_TEST_ONLY_IN_FILE=yes\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv(EnvFileVar, "")
	t.Setenv("SIMILARITY_THRESHOLD", "2")
	t.Setenv("FEEDSIFT_TEST_ONLY_IN_FILE", "")
	os.Unsetenv("FEEDSIFT_TEST_ONLY_IN_FILE")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	loader := AddEnvFlag(fs, ".env", "")
	if err := fs.Parse([]string{"--env", path}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	loaded, err := loader.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != path {
		t.Fatalf("expected %s to be loaded, got %q", path, loaded)
	}
	if got := os.Getenv("SIMILARITY_THRESHOLD"); got != "2" {
		t.Fatalf("expected process env to win, got %q", got)
	}
	if got := os.Getenv("FEEDSIFT_TEST_ONLY_IN_FILE"); got != "yes" {
		t.Fatalf("expected file-only variable to be set, got %q", got)
	}
}

func TestEnvLoaderMissingDefaultIsQuiet(t *testing.T) {
	t.Setenv(EnvFileVar, "")
	t.Chdir(t.TempDir())

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	loader := AddEnvFlag(fs, ".env", "")
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	loaded, err := loader.Load()
	if err != nil {
		t.Fatalf("expected missing default .env to be ignored, got %v", err)
	}
	if loaded != "" {
		t.Fatalf("expected nothing loaded, got %q", loaded)
	}
}

func TestEnvLoaderMissingExplicitFileFails(t *testing.T) {
	t.Setenv(EnvFileVar, "")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	loader := AddEnvFlag(fs, ".env", "")
	if err := fs.Parse([]string{"--env", filepath.Join(t.TempDir(), "nested", "missing.env")}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	if _, err := loader.Load(); err == nil {
		t.Fatalf("expected missing explicit env file to fail")
	}
}

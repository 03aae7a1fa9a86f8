package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"carteira/internal/config"
)

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(wd) })
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	if err := LoadEnvFile(); err != nil {
		t.Fatalf("missing .env should be ignored: %v", err)
	}

	t.Setenv("CARTEIRA_TEST_FROM_ENV", "")
	os.Unsetenv("CARTEIRA_TEST_FROM_ENV")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("CARTEIRA_TEST_FROM_ENV=yes\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := LoadEnvFile(); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("CARTEIRA_TEST_FROM_ENV"); got != "yes" {
		t.Fatalf("env not loaded, got %q", got)
	}
}

func TestLoadAndValidateConfig(t *testing.T) {
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("PORT", "8099")
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "8099" {
		t.Fatalf("Port = %s", cfg.Port)
	}

	t.Setenv("PORT", "nope")
	if _, err := LoadAndValidateConfig(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestInitBackend(t *testing.T) {
	logger := SetupLogger("error")
	res, err := InitBackend(context.Background(), logger, &config.Config{DataBackend: "memory", SeedDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	accounts, err := res.Backend.ListAccounts(context.Background())
	if err != nil || len(accounts) != 1 {
		t.Fatalf("default account not seeded: %v %+v", err, accounts)
	}
	if err := res.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := InitBackend(context.Background(), logger, &config.Config{DataBackend: "sheets"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

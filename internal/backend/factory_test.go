package backend

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carteira/internal/config"
	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/store"
)

func quietFactory() Factory {
	return NewFactory(log.New(log.Config{Output: io.Discard}))
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db", SeedDir: "seed"})
	require.NoError(t, err)
	assert.Equal(t, Config{Type: SQLite, SQLiteDBPath: "x.db", DataDirectory: "seed"}, cfg)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{Type: "postgres"}.Validate())
	assert.Error(t, Config{Type: SQLite}.Validate())
	assert.NoError(t, Config{Type: Memory}.Validate())
	assert.ElementsMatch(t, []Type{SQLite, Memory}, Types())
}

func TestCreateMemoryBackendSeedsAccounts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed_accounts.txt"), []byte("Checking\n# comment\nSavings\nChecking\n"), 0o644))

	res, err := quietFactory().CreateBackend(context.Background(), Config{Type: Memory, DataDirectory: dir})
	require.NoError(t, err)
	defer res.Close()

	accounts, err := res.Backend.ListAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "Checking", accounts[0].Name)
	assert.Equal(t, "Savings", accounts[1].Name)
}

func TestCreateSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "carteira.db")

	res, err := quietFactory().CreateBackend(ctx, Config{Type: SQLite, SQLiteDBPath: path})
	require.NoError(t, err)

	_, isTx := res.Backend.(store.Transactor)
	assert.True(t, isTx, "sqlite backend supports transactions")

	rows, err := res.Backend.InsertMany(ctx, []core.Transaction{{Details: core.Details{
		Date:        core.NewDate(2024, 5, 1),
		Description: "Rent",
		Type:        core.Expense,
		Amount:      core.Money{Cents: 90000},
		AccountID:   "acc",
		CategoryID:  "home",
	}}})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, res.Close())
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestCreateBackendRejectsInvalidConfig(t *testing.T) {
	_, err := quietFactory().CreateBackend(context.Background(), Config{Type: SQLite})
	assert.Error(t, err)
}

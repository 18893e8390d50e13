package database

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "test.db"), MaxOpenConns: 1}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLoadMigrations_SortsByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"m/010_later.sql":  {Data: []byte("SELECT 1;")},
		"m/002_second.sql": {Data: []byte("SELECT 1;")},
		"m/README.md":      {Data: []byte("ignored")},
	}

	migrations, err := LoadMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 2, migrations[0].Version)
	assert.Equal(t, "second", migrations[0].Name)
	assert.Equal(t, 10, migrations[1].Version)
}

func TestLoadMigrations_RejectsDuplicates(t *testing.T) {
	fsys := fstest.MapFS{
		"m/001_a.sql": {Data: []byte("SELECT 1;")},
		"m/001_b.sql": {Data: []byte("SELECT 1;")},
	}
	_, err := LoadMigrations(fsys, "m")
	assert.Error(t, err)
}

func TestRunEmbedded_IsIdempotent(t *testing.T) {
	db := openTestDB(t)
	migrator := NewMigrator(db, zap.NewNop())

	require.NoError(t, migrator.RunEmbedded())
	require.NoError(t, migrator.RunEmbedded())

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 2, count)

	for _, table := range []string{"vouchers", "voucher_usage_logs", "partners"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, table)
	}
}

func TestUsageLogTable_IsAppendOnly(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, NewMigrator(db, zap.NewNop()).RunEmbedded())

	_, err := db.Exec(`INSERT INTO voucher_usage_logs (id, action, actor_type, created_at) VALUES ('e1', 'scanned', 'partner', 1)`)
	require.NoError(t, err)

	_, err = db.Exec(`UPDATE voucher_usage_logs SET action = 'used' WHERE id = 'e1'`)
	assert.Error(t, err)

	_, err = db.Exec(`DELETE FROM voucher_usage_logs WHERE id = 'e1'`)
	assert.Error(t, err)
}

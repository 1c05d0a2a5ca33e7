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
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "data", "test.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrator_RunEmbedded(t *testing.T) {
	db := openTestDB(t)
	m := NewMigrator(db, zap.NewNop())

	applied, err := m.RunEmbedded()
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	versions, err := m.AppliedVersions()
	require.NoError(t, err)
	assert.Equal(t, map[int]bool{1: true, 2: true}, versions)

	for _, table := range []string{"teachers", "payroll_runs", "payroll_line_items", "payment_notifications", "sms_messages"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, table)
	}

	again, err := m.RunEmbedded()
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"m/010_later.sql":  {Data: []byte("SELECT 1;")},
		"m/002_second.sql": {Data: []byte("SELECT 2;")},
		"m/README.md":      {Data: []byte("ignored")},
	}

	migrations, err := LoadMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 2, migrations[0].Version)
	assert.Equal(t, "second", migrations[0].Name)
	assert.Equal(t, 10, migrations[1].Version)
}

func TestLoadMigrations_Invalid(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{
			name: "duplicate version",
			fsys: fstest.MapFS{
				"m/001_a.sql": {Data: []byte("SELECT 1;")},
				"m/001_b.sql": {Data: []byte("SELECT 1;")},
			},
		},
		{
			name: "no version prefix",
			fsys: fstest.MapFS{"m/init.sql": {Data: []byte("SELECT 1;")}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadMigrations(tt.fsys, "m")
			assert.Error(t, err)
		})
	}
}

func TestMigrator_FailedMigrationIsNotRecorded(t *testing.T) {
	db := openTestDB(t)
	m := NewMigrator(db, zap.NewNop())

	fsys := fstest.MapFS{
		"m/001_ok.sql":     {Data: []byte("CREATE TABLE ok (id INTEGER);")},
		"m/002_broken.sql": {Data: []byte("CREATE TABLE broken (;")},
	}

	applied, err := m.Run(fsys, "m")
	require.Error(t, err)
	assert.Equal(t, 1, applied)

	versions, err := m.AppliedVersions()
	require.NoError(t, err)
	assert.Equal(t, map[int]bool{1: true}, versions)
}

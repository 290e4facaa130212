package database

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "test.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrator_BundledScripts(t *testing.T) {
	ctx := context.Background()
	db := openTemp(t)
	m := NewMigrator(db, zap.NewNop())

	bundled, err := LoadMigrations(Migrations, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, bundled)

	n, err := m.Migrate(ctx, Migrations, "migrations")
	require.NoError(t, err)
	assert.Equal(t, len(bundled), n)

	// second run is a no-op
	n, err = m.Migrate(ctx, Migrations, "migrations")
	require.NoError(t, err)
	assert.Zero(t, n)

	v, err := db.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, bundled[len(bundled)-1].Version, v)

	var cities int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cities`).Scan(&cities))
	assert.Positive(t, cities)
}

func TestMigrator_FailedScriptIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	db := openTemp(t)

	fsys := fstest.MapFS{
		"m/001_widgets.sql": {Data: []byte(`CREATE TABLE widgets (id INTEGER PRIMARY KEY);`)},
		"m/002_broken.sql":  {Data: []byte(`CREATE TABLE nope (`)},
	}
	n, err := NewMigrator(db, zap.NewNop()).Migrate(ctx, fsys, "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "002_broken")
	assert.Equal(t, 1, n)

	v, err := db.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestLoadMigrations(t *testing.T) {
	tests := []struct {
		name    string
		fsys    fstest.MapFS
		want    []int
		wantErr string
	}{
		{
			name: "sorted by version",
			fsys: fstest.MapFS{
				"m/010_late.sql":  {Data: []byte("SELECT 1;")},
				"m/002_early.sql": {Data: []byte("SELECT 1;")},
				"m/README.md":     {Data: []byte("ignored")},
			},
			want: []int{2, 10},
		},
		{
			name: "duplicate version",
			fsys: fstest.MapFS{
				"m/001_a.sql": {Data: []byte("SELECT 1;")},
				"m/1_b.sql":   {Data: []byte("SELECT 1;")},
			},
			wantErr: "used by both",
		},
		{
			name:    "unnumbered file",
			fsys:    fstest.MapFS{"m/init.sql": {Data: []byte("SELECT 1;")}},
			wantErr: "<version>_<name>.sql",
		},
		{
			name:    "missing dir",
			fsys:    fstest.MapFS{},
			wantErr: "read migrations dir",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadMigrations(tt.fsys, "m")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			var versions []int
			for _, m := range got {
				versions = append(versions, m.Version)
			}
			assert.Equal(t, tt.want, versions)
		})
	}
}

func TestConfig_DSN(t *testing.T) {
	dsn := Config{Path: "/tmp/x.db"}.dsn()
	assert.Contains(t, dsn, "file:/tmp/x.db?")
	assert.Contains(t, dsn, "_busy_timeout=5000")
	assert.Contains(t, dsn, "_txlock=immediate")

	_, err := New(Config{}, zap.NewNop())
	assert.Error(t, err)
}

package migration

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseDatabaseType(t *testing.T) {
	tests := []struct {
		input    string
		expected DatabaseType
		wantErr  bool
	}{
		{"postgres", DatabaseTypePostgres, false},
		{"postgresql", DatabaseTypePostgres, false},
		{"pg", DatabaseTypePostgres, false},
		{"mysql", DatabaseTypeMySQL, false},
		{"mariadb", DatabaseTypeMySQL, false},
		{"sqlite", DatabaseTypeSQLite, false},
		{"SQLITE3", DatabaseTypeSQLite, false},
		{"oracle", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseDatabaseType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestBuildDatabaseURL(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/speech?sslmode=disable",
		BuildDatabaseURL(DatabaseTypePostgres, "db", 5432, "speech", "u", "p", "disable"))
	assert.Equal(t, "postgres://u:p@db:5432/speech?sslmode=require",
		BuildDatabaseURL(DatabaseTypePostgres, "db", 5432, "speech", "u", "p", ""))
	assert.Equal(t, "u:p@tcp(db:3306)/speech?parseTime=true&multiStatements=true",
		BuildDatabaseURL(DatabaseTypeMySQL, "db", 3306, "speech", "u", "p", ""))
	assert.Equal(t, "file:/data/speech.db?mode=rwc&_pragma=foreign_keys(1)",
		BuildDatabaseURL(DatabaseTypeSQLite, "", 0, "/data/speech.db", "", "", ""))
	assert.Empty(t, BuildDatabaseURL("oracle", "", 0, "", "", "", ""))
}

func TestAvailableMigrations(t *testing.T) {
	for _, dbType := range []DatabaseType{DatabaseTypePostgres, DatabaseTypeMySQL, DatabaseTypeSQLite} {
		t.Run(string(dbType), func(t *testing.T) {
			migrations, err := availableMigrations(dbType)
			require.NoError(t, err)
			require.NotEmpty(t, migrations)
			assert.Equal(t, uint(1), migrations[0].version)
			assert.Equal(t, "cloned_voices", migrations[0].name)
			for i := 1; i < len(migrations); i++ {
				assert.Greater(t, migrations[i].version, migrations[i-1].version)
			}
		})
	}
}

func TestNewMigrator_InvalidConfig(t *testing.T) {
	_, err := NewMigrator(nil)
	assert.ErrorContains(t, err, "config is required")

	_, err = NewMigrator(&Config{DatabaseType: DatabaseTypeSQLite})
	assert.ErrorContains(t, err, "database URL is required")

	_, err = NewMigratorFromURL("oracle", "x", nil)
	assert.Error(t, err)
}

func newSQLiteMigrator(t *testing.T) (*DefaultMigrator, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "speech.db")
	m, err := NewMigrator(&Config{
		DatabaseType: DatabaseTypeSQLite,
		DatabaseURL:  BuildDatabaseURL(DatabaseTypeSQLite, "", 0, dbPath, "", "", ""),
		Logger:       zap.NewNop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m, dbPath
}

func TestMigrator_SQLite_UpDown(t *testing.T) {
	m, dbPath := newSQLiteMigrator(t)
	ctx := context.Background()

	version, dirty, err := m.Version(ctx)
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)

	require.NoError(t, m.Up(ctx))
	require.NoError(t, m.Up(ctx))

	info, err := m.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(1), info.CurrentVersion)
	assert.Equal(t, info.TotalMigrations, info.AppliedMigrations)
	assert.Zero(t, info.PendingMigrations)

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`INSERT INTO cloned_voices (voice_id, source_file) VALUES ('voice_a_cloned', 'a.mp3')`)
	require.NoError(t, err)

	require.NoError(t, m.Down(ctx))
	version, _, err = m.Version(ctx)
	require.NoError(t, err)
	assert.Zero(t, version)

	_, err = db.Exec(`SELECT 1 FROM cloned_voices`)
	assert.Error(t, err)
}

func TestCLI_Output(t *testing.T) {
	m, _ := newSQLiteMigrator(t)
	cli := NewCLI(m)
	var buf bytes.Buffer
	cli.SetOutput(&buf)
	ctx := context.Background()

	require.NoError(t, cli.Run(ctx, "version", nil))
	assert.Contains(t, buf.String(), "No migrations applied yet")

	buf.Reset()
	require.NoError(t, cli.Run(ctx, "up", nil))
	assert.Contains(t, buf.String(), "Current version: 1")

	buf.Reset()
	require.NoError(t, cli.Run(ctx, "status", nil))
	assert.Contains(t, buf.String(), "cloned_voices")
	assert.Contains(t, buf.String(), "Applied")

	assert.Error(t, cli.Run(ctx, "steps", nil))
	assert.Error(t, cli.Run(ctx, "steps", []string{"x"}))
	assert.Error(t, cli.Run(ctx, "bogus", nil))
}

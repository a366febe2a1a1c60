package postgres

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestLoadMigrationsFromFS_Success(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/migrations/0002_more.up.sql":   {Data: []byte("CREATE TABLE test_b (id INT);")},
		"sql/migrations/0002_more.down.sql": {Data: []byte("DROP TABLE IF EXISTS test_b;")},
		"sql/migrations/0001_init.up.sql":   {Data: []byte("CREATE TABLE test_a (id INT);")},
		"sql/migrations/0001_init.down.sql": {Data: []byte("DROP TABLE IF EXISTS test_a;")},
	}

	migrations, err := loadMigrationsFromFS(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	require.Equal(t, int64(1), migrations[0].Version)
	require.Equal(t, "init", migrations[0].Name)
	require.Equal(t, "0002_more", migrations[1].String())
}

func TestLoadMigrationsFromFS_Errors(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		fsys    fstest.MapFS
		message string
	}{
		"missing down": {
			fsys: fstest.MapFS{
				"sql/migrations/0001_init.up.sql": {Data: []byte("CREATE TABLE a (id INT);")},
			},
			message: "both up and down",
		},
		"invalid name": {
			fsys: fstest.MapFS{
				"sql/migrations/not_a_migration.sql": {Data: []byte("SELECT 1;")},
			},
			message: "invalid migration file name",
		},
		"empty body": {
			fsys: fstest.MapFS{
				"sql/migrations/0001_init.up.sql":   {Data: []byte("   \n")},
				"sql/migrations/0001_init.down.sql": {Data: []byte("DROP TABLE a;")},
			},
			message: "empty",
		},
		"name mismatch": {
			fsys: fstest.MapFS{
				"sql/migrations/0001_init.up.sql":    {Data: []byte("CREATE TABLE a (id INT);")},
				"sql/migrations/0001_other.down.sql": {Data: []byte("DROP TABLE a;")},
			},
			message: "name mismatch",
		},
		"no files": {
			fsys:    fstest.MapFS{},
			message: "no migration files",
		},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := loadMigrationsFromFS(tc.fsys)
			require.Error(t, err)
			require.True(t, strings.Contains(err.Error(), tc.message), "unexpected error: %v", err)
		})
	}
}

func TestEmbeddedMigrationsAreConsistent(t *testing.T) {
	migrations, err := loadMigrationsFromFS(embeddedMigrations)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	require.Contains(t, migrations[0].UpSQL, "CREATE TABLE IF NOT EXISTS products")
	require.Contains(t, migrations[1].UpSQL, "outbox_messages")
}

func TestPlanMigrations(t *testing.T) {
	all := []migration{
		{Version: 1, Name: "init"},
		{Version: 2, Name: "outbox"},
		{Version: 3, Name: "extra"},
	}

	up, err := planMigrations(all, map[int64]bool{1: true}, migrationUp, 0)
	require.NoError(t, err)
	require.Len(t, up, 2)
	require.Equal(t, int64(2), up[0].Version)

	upOne, err := planMigrations(all, map[int64]bool{}, migrationUp, 1)
	require.NoError(t, err)
	require.Len(t, upOne, 1)
	require.Equal(t, int64(1), upOne[0].Version)

	down, err := planMigrations(all, map[int64]bool{1: true, 2: true}, migrationDown, 1)
	require.NoError(t, err)
	require.Len(t, down, 1)
	require.Equal(t, int64(2), down[0].Version)

	_, err = planMigrations(all, map[int64]bool{9: true}, migrationDown, 1)
	require.Error(t, err)
}

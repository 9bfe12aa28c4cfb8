package main

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restoassist/migrations"
)

func TestListSQLFilesSortedAndFiltered(t *testing.T) {
	fsys := fstest.MapFS{
		"010_later.sql":  {Data: []byte("select 1;")},
		"001_first.SQL":  {Data: []byte("select 1;")},
		"README.md":      {Data: []byte("docs")},
		"nested/003.sql": {Data: []byte("select 1;")},
		"002_second.sql": {Data: []byte("select 1;")},
	}

	files, err := listSQLFiles(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_first.SQL", "002_second.sql", "010_later.sql"}, files)
}

func TestReadMigrationRejectsEmpty(t *testing.T) {
	fsys := fstest.MapFS{"001.sql": {Data: []byte("  \n")}}
	_, err := readMigration(fsys, "001.sql")
	require.Error(t, err)
}

func TestEmbeddedMigrations(t *testing.T) {
	files, err := listSQLFiles(migrations.FS)
	require.NoError(t, err)
	require.Equal(t, []string{"001_conversations.sql", "002_menu_items.sql"}, files)

	for _, name := range files {
		sqlText, err := readMigration(migrations.FS, name)
		require.NoError(t, err)
		assert.Contains(t, sqlText, "create table if not exists")
	}
}

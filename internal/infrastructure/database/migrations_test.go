package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations(t *testing.T) {
	migrations, err := LoadMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 4)

	assert.Equal(t, "000001", migrations[0].Version)
	assert.Equal(t, "create_accounts", migrations[0].Description)
	assert.Equal(t, "000003", migrations[2].Version)
	assert.Equal(t, "create_account_followers", migrations[3].Description)

	for _, m := range migrations {
		assert.NotEmpty(t, m.UpSQL, m.Version)
		assert.NotEmpty(t, m.DownSQL, m.Version)
	}
}

func TestParseMigrationName(t *testing.T) {
	tests := []struct {
		name      string
		version   string
		desc      string
		direction string
		ok        bool
	}{
		{"000001_create_accounts.up.sql", "000001", "create_accounts", "up", true},
		{"000002_snapshots.down.sql", "000002", "snapshots", "down", true},
		{"README.md", "", "", "", false},
		{"nounderscore.up.sql", "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, desc, direction, ok := parseMigrationName(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.version, version)
			assert.Equal(t, tt.desc, desc)
			assert.Equal(t, tt.direction, direction)
		})
	}
}

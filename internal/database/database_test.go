package database_test

import (
	"errors"
	"regexp"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyquest/backend/internal/database"
	"github.com/studyquest/backend/internal/testutil"
)

func TestMigrate_CreatesTables(t *testing.T) {
	db := testutil.NewTestDB(t)

	for _, table := range []string{"users", "user_progress", "study_sessions", "point_events"} {
		var name string
		err := db.Get(&name, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
		require.NoError(t, err, "table %s", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_IsIdempotent(t *testing.T) {
	db := testutil.NewTestDB(t)

	require.NoError(t, database.Migrate(db))
}

func TestBuilder_Placeholders(t *testing.T) {
	pg := sqlx.NewDb(nil, database.DriverPostgres)
	query, _, err := database.Builder(pg).Select("*").From("users").Where("id = ?", 1).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users WHERE id = $1", query)

	lite := sqlx.NewDb(nil, database.DriverSQLite)
	query, _, err = database.Builder(lite).Select("*").From("users").Where("id = ?", 1).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users WHERE id = ?", query)
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := errors.New(`pq: duplicate key value violates unique constraint "users_email_key"`)
	liteErr := errors.New("UNIQUE constraint failed: users.username")

	assert.True(t, database.IsUniqueViolation(pgErr, "email"))
	assert.False(t, database.IsUniqueViolation(pgErr, "username"))
	assert.True(t, database.IsUniqueViolation(liteErr, "username"))
	assert.True(t, database.IsUniqueViolation(liteErr, ""))
	assert.False(t, database.IsUniqueViolation(errors.New("connection refused"), ""))
	assert.False(t, database.IsUniqueViolation(nil, ""))
}

func TestGenerateUsername(t *testing.T) {
	tests := []struct {
		name string
		want *regexp.Regexp
	}{
		{"Ada Lovelace", regexp.MustCompile(`^adalovelace\d{4}$`)},
		{"Bartholomew Montgomery", regexp.MustCompile(`^bartholomewm\d{4}$`)},
		{"!!!", regexp.MustCompile(`^learner\d{4}$`)},
	}

	for _, tt := range tests {
		got := database.GenerateUsername(tt.name)
		if !tt.want.MatchString(got) {
			t.Errorf("GenerateUsername(%q) = %q, want match %s", tt.name, got, tt.want)
		}
	}
}

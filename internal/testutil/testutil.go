package testutil

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/studyquest/backend/internal/config"
	"github.com/studyquest/backend/internal/database"
)

// NewTestDB creates an in-memory SQLite database with all migrations applied.
func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := database.Connect(config.DatabaseConfig{
		Driver: database.DriverSQLite,
		URL:    "file::memory:?cache=private",
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() { db.Close() })
	return db
}

// CreateUser inserts a user row and returns its id.
func CreateUser(t *testing.T, db *sqlx.DB, email string) int64 {
	t.Helper()

	res, err := db.Exec(
		`INSERT INTO users (email, name, username, password) VALUES (?, ?, ?, ?)`,
		email, "Test Learner", email, "hash",
	)
	require.NoError(t, err)

	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

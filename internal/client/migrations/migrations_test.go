package migrations

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func TestUp_CreatesRecordingsTable(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, Up(ctx, db))
	// idempotent
	require.NoError(t, Up(ctx, db))

	var name string
	err = db.QueryRow(`select name from sqlite_master where type='table' and name='recordings'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "recordings", name)
}

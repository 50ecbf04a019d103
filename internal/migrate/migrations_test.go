package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logicforge/internal/db"
)

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	workspace := t.TempDir()
	_, err := db.EnsureWorkspace(workspace)
	require.NoError(t, err)
	conn, err := db.Open(db.Config{Workspace: workspace})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	latest, err := Latest()
	require.NoError(t, err)
	assert.Equal(t, 4, latest)

	version, err := Migrate(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, latest, version)

	version, err = Migrate(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, latest, version)

	var badges int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM badges`).Scan(&badges))
	assert.Equal(t, 5, badges)
}

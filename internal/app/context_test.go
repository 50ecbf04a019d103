package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"logicforge/internal/config"
	"logicforge/internal/engine"
	"logicforge/internal/search"
)

func TestOpenBuildsRuntimeFromWorkspace(t *testing.T) {
	workspace := t.TempDir()
	require.NoError(t, os.WriteFile(config.Path(workspace), []byte("server:\n  base_path: /api\n"), 0o644))

	rt, err := Open(context.Background(), Options{
		Workspace: workspace,
		Logger:    zap.NewNop(),
		Override:  func(c *config.Config) { c.Server.AllowLegacyUserHeader = true },
	})
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })

	assert.Equal(t, "/api", rt.Config.Server.BasePath)
	assert.True(t, rt.Config.Server.AllowLegacyUserHeader)

	p, err := rt.Engine.CreateProgram(context.Background(), engine.ProgramCreateOptions{UserID: "alice", Title: "Numeracy Now"})
	require.NoError(t, err)
	assert.Equal(t, 1, p.CurrentStep)

	// No provider is configured, so search runs degraded.
	res, err := rt.Search.Search(context.Background(), search.Query{Text: "numeracy"})
	require.NoError(t, err)
	assert.True(t, res.Degraded)

	h, err := rt.Handler()
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "logicforge_")
}

func TestOpenRejectsInvalidOverride(t *testing.T) {
	_, err := Open(context.Background(), Options{
		Workspace: t.TempDir(),
		Logger:    zap.NewNop(),
		Override:  func(c *config.Config) { c.AI.Provider = "carrier-pigeon" },
	})
	require.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/v1", cfg.Server.BasePath)
	assert.Equal(t, 1536, cfg.AI.EmbeddingDimensions)
	assert.Equal(t, 250, cfg.Gamification.StepXP[5])
	assert.Len(t, cfg.Gamification.Levels, 8)
	assert.Equal(t, "Grandmaster", cfg.Gamification.Levels[7].Title)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestFromYAMLOverridesDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("server:\n  addr: \":9090\"\nai:\n  provider: openai\n"))
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, ProviderOpenAI, cfg.AI.Provider)
	assert.Equal(t, "text-embedding-ada-002", cfg.AI.EmbeddingModel)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"provider":   "ai:\n  provider: cohere\n",
		"dimensions": "ai:\n  embedding_dimensions: 0\n",
		"levels":     "gamification:\n  levels:\n    - {level: 1, threshold: 0, title: A}\n    - {level: 2, threshold: 0, title: B}\n",
		"webhook":    "webhooks:\n  - secret: x\n",
		"format":     "logging:\n  format: xml\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadReadsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(Path(dir), []byte("logging:\n  level: debug\n"), 0o644))
	cfg, err := Load(Path(dir))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

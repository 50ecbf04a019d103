package search

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logicforge/internal/db"
	"logicforge/internal/domain"
	"logicforge/internal/migrate"
	"logicforge/internal/repo"
)

const dims = 3

type fakeStore struct {
	models       []domain.ProvenModel
	fingerprint  string
	loads        int
	keywordErr   error
	keywordCalls int
}

func (s *fakeStore) ListEmbeddedModels(context.Context) ([]domain.ProvenModel, error) {
	s.loads++
	var out []domain.ProvenModel
	for _, m := range s.models {
		if len(m.Embedding) > 0 {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeStore) CatalogFingerprint(context.Context) (string, error) {
	return s.fingerprint, nil
}

func (s *fakeStore) SearchModelsByKeyword(_ context.Context, query, theme string, limit int) ([]domain.ProvenModel, error) {
	s.keywordCalls++
	if s.keywordErr != nil {
		return nil, s.keywordErr
	}
	var out []domain.ProvenModel
	for _, m := range s.models {
		if theme != "" && !m.HasTheme(theme) {
			continue
		}
		if !strings.Contains(strings.ToLower(m.Name+" "+m.Description), strings.ToLower(query)) {
			continue
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type vectorEmbedder map[string][]float32

func (e vectorEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e[text], nil
}

type failingEmbedder struct{ err error }

func (e failingEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, e.err
}

type slowEmbedder struct{}

func (slowEmbedder) EmbedQuery(ctx context.Context, _ string) ([]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func catalog() *fakeStore {
	return &fakeStore{
		fingerprint: "v1",
		models: []domain.ProvenModel{
			{ID: "m-tarl", Name: "Teaching at the Right Level", Description: "Group children by reading level", Themes: []string{"FLN"}, Embedding: []float32{1, 0, 0}},
			{ID: "m-phonics", Name: "Structured Phonics", Description: "Daily reading drills", Themes: []string{"FLN"}, Embedding: []float32{0.9, 0.1, 0}},
			{ID: "m-jobs", Name: "Job Shadowing", Description: "Workplace exposure", Themes: []string{"Career Readiness"}, Embedding: []float32{0, 1, 0}},
			{ID: "m-labs", Name: "Tinkering Labs", Description: "Hands-on science", Themes: []string{"STEM"}, Embedding: []float32{0, 0, 1}},
			{ID: "m-clubs", Name: "Reading Clubs", Description: "Peer reading", Themes: []string{"FLN"}},
		},
	}
}

func TestSemanticSearchRanksByDistance(t *testing.T) {
	store := catalog()
	chain := NewChain(vectorEmbedder{"reading": {1, 0, 0}}, store, dims, time.Second, nil, nil)

	res, err := chain.Search(context.Background(), Query{Text: "reading", Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, StrategySemantic, res.Strategy)
	assert.False(t, res.Degraded)
	require.Len(t, res.Matches, 3)
	assert.Equal(t, "m-tarl", res.Matches[0].Model.ID)
	assert.Equal(t, "m-phonics", res.Matches[1].Model.ID)
	for i, m := range res.Matches {
		require.NotNil(t, m.Distance)
		if i > 0 {
			assert.GreaterOrEqual(t, *m.Distance, *res.Matches[i-1].Distance)
		}
	}
	assert.InDelta(t, 0, *res.Matches[0].Distance, 1e-6)
}

func TestSemanticSearchDefaultLimitAndTheme(t *testing.T) {
	store := catalog()
	chain := NewChain(vectorEmbedder{"labs": {0, 0, 1}}, store, dims, time.Second, nil, nil)

	res, err := chain.Search(context.Background(), Query{Text: "labs"})
	require.NoError(t, err)
	assert.Len(t, res.Matches, 4)

	res, err = chain.Search(context.Background(), Query{Text: "labs", Theme: "FLN", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, StrategySemantic, res.Strategy)
	require.Len(t, res.Matches, 2)
	for _, m := range res.Matches {
		assert.True(t, m.Model.HasTheme("FLN"))
	}
}

func TestFailingEmbedderFallsBackToKeyword(t *testing.T) {
	store := catalog()
	chain := NewChain(failingEmbedder{err: errors.New("connection refused")}, store, dims, time.Second, nil, nil)

	res, err := chain.Search(context.Background(), Query{Text: "READING"})
	require.NoError(t, err)
	assert.Equal(t, StrategyKeyword, res.Strategy)
	assert.True(t, res.Degraded)
	assert.Equal(t, ReasonProviderError, res.Reason)
	require.Len(t, res.Matches, 3)
	for _, m := range res.Matches {
		assert.Nil(t, m.Distance)
	}
	assert.LessOrEqual(t, len(res.Matches), DefaultLimit)
}

func TestFallbackReasons(t *testing.T) {
	cases := []struct {
		name     string
		embedder Embedder
		theme    string
		reason   string
	}{
		{"nil embedder", nil, "", ReasonProviderError},
		{"timeout", slowEmbedder{}, "", ReasonTimeout},
		{"empty vector", vectorEmbedder{}, "", ReasonEmptyVector},
		{"dimension mismatch", vectorEmbedder{"reading": {1, 0}}, "", ReasonDimensionMismatch},
		{"no embedded models under theme", vectorEmbedder{"reading": {1, 0, 0}}, "Life Skills", ReasonEmptyIndex},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chain := NewChain(tc.embedder, catalog(), dims, 20*time.Millisecond, nil, nil)
			res, err := chain.Search(context.Background(), Query{Text: "reading", Theme: tc.theme})
			require.NoError(t, err)
			assert.Equal(t, StrategyKeyword, res.Strategy)
			assert.True(t, res.Degraded)
			assert.Equal(t, tc.reason, res.Reason)
		})
	}
}

func TestKeywordStoreErrorIsReturned(t *testing.T) {
	store := catalog()
	store.keywordErr = errors.New("disk I/O error")
	chain := NewChain(failingEmbedder{err: errors.New("down")}, store, dims, time.Second, nil, nil)
	_, err := chain.Search(context.Background(), Query{Text: "reading"})
	assert.ErrorIs(t, err, store.keywordErr)
}

func TestIndexRebuildsOnFingerprintChange(t *testing.T) {
	store := catalog()
	chain := NewChain(vectorEmbedder{"science": {0, 0, 1}}, store, dims, time.Second, nil, nil)
	ctx := context.Background()

	_, err := chain.Search(ctx, Query{Text: "science"})
	require.NoError(t, err)
	_, err = chain.Search(ctx, Query{Text: "science"})
	require.NoError(t, err)
	assert.Equal(t, 1, store.loads)

	store.models = append(store.models, domain.ProvenModel{ID: "m-fairs", Name: "Science Fairs", Themes: []string{"STEM"}, Embedding: []float32{0, 0.1, 1}})
	store.fingerprint = "v2"
	res, err := chain.Search(ctx, Query{Text: "science", Theme: "STEM"})
	require.NoError(t, err)
	assert.Equal(t, 2, store.loads)
	assert.Len(t, res.Matches, 2)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-3))
	assert.Equal(t, 7, NormalizeLimit(7))
	assert.Equal(t, MaxLimit, NormalizeLimit(500))
}

func TestKeywordSearchAgainstRepo(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	_, err = migrate.Migrate(ctx, conn)
	require.NoError(t, err)
	r := repo.Repo{DB: conn}
	for i, m := range []domain.ProvenModel{
		{Name: "Pratham Camps", Description: "Short learning camps", Themes: []string{"FLN"}, TargetOutcomes: []string{"Basic literacy"}},
		{Name: "Coding Clubs", Description: "After-school programming", Themes: []string{"STEM"}, TargetOutcomes: []string{"Computational thinking"}},
	} {
		m.ID = []string{"a", "b"}[i]
		m.CreatedAt, m.UpdatedAt = "2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z"
		_, err := r.UpsertModel(ctx, nil, m)
		require.NoError(t, err)
	}

	chain := NewChain(failingEmbedder{err: errors.New("down")}, r, dims, time.Second, nil, nil)
	res, err := chain.Search(ctx, Query{Text: "literacy"})
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "Pratham Camps", res.Matches[0].Model.Name)
	assert.Equal(t, ReasonEmptyIndex, res.Reason)

	res, err = chain.Search(ctx, Query{Text: "clubs", Theme: "FLN"})
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
}

func TestReimportWithinSameSecondRebuildsIndex(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	_, err = migrate.Migrate(ctx, conn)
	require.NoError(t, err)
	r := repo.Repo{DB: conn}
	const ts = "2024-01-01T00:00:00Z"
	upsert := func(id, name string, vec []float32) {
		_, err := r.UpsertModel(ctx, nil, domain.ProvenModel{ID: id, Name: name, Embedding: vec, CreatedAt: ts, UpdatedAt: ts})
		require.NoError(t, err)
	}
	upsert("alpha", "Alpha", []float32{1, 0, 0})
	upsert("beta", "Beta", []float32{0, 1, 0})

	chain := NewChain(vectorEmbedder{"query": {1, 0, 0}}, r, dims, time.Second, nil, nil)
	res, err := chain.Search(ctx, Query{Text: "query"})
	require.NoError(t, err)
	require.False(t, res.Degraded)
	require.NotEmpty(t, res.Matches)
	assert.Equal(t, "Alpha", res.Matches[0].Model.Name)

	before, err := r.CatalogFingerprint(ctx)
	require.NoError(t, err)
	upsert("alpha", "Alpha", []float32{0, 1, 0})
	upsert("beta", "Beta", []float32{1, 0, 0})
	after, err := r.CatalogFingerprint(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)

	res, err = chain.Search(ctx, Query{Text: "query"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Matches)
	assert.Equal(t, "Beta", res.Matches[0].Model.Name)
	require.NotNil(t, res.Matches[0].Distance)
	assert.InDelta(t, 0, *res.Matches[0].Distance, 1e-6)
}

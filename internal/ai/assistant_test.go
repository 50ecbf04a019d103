package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"logicforge/internal/config"
)

type fakeGenerator struct {
	content  string
	err      error
	messages []llms.MessageContent
}

func (f *fakeGenerator) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.content}}}, nil
}

func newTestAssistant(gen Generator) *Assistant {
	return NewAssistant(gen, config.AIConfig{RequestsPerMinute: 600, TimeoutSeconds: 5}, nil, nil)
}

func TestRefineProblemParsesFencedJSON(t *testing.T) {
	gen := &fakeGenerator{content: "```json\n{\"refined_text\":\"Children in grade 3 read below level\",\"root_causes\":[\"Large classes\"],\"suggested_theme\":\"FLN\"}\n```"}
	a := newTestAssistant(gen)

	out, err := a.RefineProblem(context.Background(), "kids can't read")
	require.NoError(t, err)
	assert.Equal(t, "Children in grade 3 read below level", out.RefinedText)
	assert.Equal(t, []string{"Large classes"}, out.RootCauses)
	assert.Equal(t, "FLN", out.SuggestedTheme)

	require.Len(t, gen.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, gen.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, gen.messages[1].Role)
}

func TestRefineProblemUnknownThemeBecomesOther(t *testing.T) {
	a := newTestAssistant(&fakeGenerator{content: `{"refined_text":"x","suggested_theme":"Nutrition"}`})
	out, err := a.RefineProblem(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "Other", out.SuggestedTheme)
	assert.Empty(t, out.RootCauses)
}

func TestSuggestStakeholdersNormalizesPriority(t *testing.T) {
	a := newTestAssistant(&fakeGenerator{content: `{"stakeholders":[
		{"name":"Teachers","role":"Deliver","engagement_strategy":"Training","priority":"HIGH"},
		{"name":"Parents","role":"Support","engagement_strategy":"Meetings","priority":"critical"},
		{"name":"","role":"ignored"}]}`})
	out, err := a.SuggestStakeholders(context.Background(), "problem", "FLN")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "high", out[0].Priority)
	assert.Equal(t, "medium", out[1].Priority)
}

func TestGenerateIndicatorsDropsUnknownTypes(t *testing.T) {
	a := newTestAssistant(&fakeGenerator{content: `{"indicators":[
		{"type":"outcome","description":"Reading fluency","target_value":"60 wcpm"},
		{"type":"impact","description":"dropped"},
		{"type":"Output","description":"Sessions held"}]}`})
	out, err := a.GenerateIndicators(context.Background(), "Improved reading", "FLN")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "output", out[1].Type)
}

func TestAssistantErrors(t *testing.T) {
	_, err := newTestAssistant(&fakeGenerator{err: errors.New("429 quota exceeded")}).RefineProblem(context.Background(), "x")
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	_, err = newTestAssistant(&fakeGenerator{content: "not json"}).RefineProblem(context.Background(), "x")
	assert.ErrorIs(t, err, ErrInvalidResponse)

	_, err = newTestAssistant(NewGenerator(config.AIConfig{Provider: config.ProviderNone})).SuggestStakeholders(context.Background(), "x", "")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestUnconfiguredEmbedderIsUnavailable(t *testing.T) {
	_, err := NewEmbedder(config.AIConfig{Provider: config.ProviderNone}).EmbedQuery(context.Background(), "x")
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	_, err = NewEmbedder(config.AIConfig{Provider: config.ProviderOpenAI}).EmbedQuery(context.Background(), "x")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, stripFences(` {"a":1} `))
}

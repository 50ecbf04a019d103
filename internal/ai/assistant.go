package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"logicforge/internal/config"
	"logicforge/internal/domain"
	"logicforge/internal/metrics"
)

const (
	temperature = 0.7
	maxTokens   = 2000
)

// Assistant drafts problem refinements, stakeholders and indicators. It only
// suggests; callers decide what to persist.
type Assistant struct {
	Generator Generator
	Limiter   *rate.Limiter
	Timeout   time.Duration
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// NewAssistant builds an assistant limited to cfg.RequestsPerMinute calls.
func NewAssistant(gen Generator, cfg config.AIConfig, logger *zap.Logger, m *metrics.Metrics) *Assistant {
	if logger == nil {
		logger = zap.NewNop()
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}
	return &Assistant{
		Generator: gen,
		Limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 5),
		Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
		Logger:    logger,
		Metrics:   m,
	}
}

type RefinedProblem struct {
	RefinedText    string   `json:"refined_text"`
	RootCauses     []string `json:"root_causes"`
	SuggestedTheme string   `json:"suggested_theme"`
}

type SuggestedStakeholder struct {
	Name               string `json:"name"`
	Role               string `json:"role"`
	EngagementStrategy string `json:"engagement_strategy"`
	Priority           string `json:"priority" enum:"high,medium,low"`
}

type GeneratedIndicator struct {
	Type              string `json:"type" enum:"outcome,output"`
	Description       string `json:"description"`
	MeasurementMethod string `json:"measurement_method"`
	TargetValue       string `json:"target_value"`
	Frequency         string `json:"frequency"`
	DataSource        string `json:"data_source"`
}

// RefineProblem restructures a vague challenge into root causes and a theme.
func (a *Assistant) RefineProblem(ctx context.Context, challenge string) (RefinedProblem, error) {
	var out RefinedProblem
	if err := a.complete(ctx, "refine_problem", refineProblemPrompt, "Challenge Statement: "+challenge, &out); err != nil {
		return RefinedProblem{}, err
	}
	if strings.TrimSpace(out.RefinedText) == "" {
		return RefinedProblem{}, fmt.Errorf("%w: refined_text is empty", ErrInvalidResponse)
	}
	if !domain.ValidTheme(out.SuggestedTheme) {
		out.SuggestedTheme = "Other"
	}
	if out.RootCauses == nil {
		out.RootCauses = []string{}
	}
	return out, nil
}

// SuggestStakeholders proposes stakeholder groups for a problem.
func (a *Assistant) SuggestStakeholders(ctx context.Context, problem, theme string) ([]SuggestedStakeholder, error) {
	prompt := "Problem Statement: " + problem
	if theme != "" {
		prompt += "\nTheme: " + theme
	}
	var out struct {
		Stakeholders []SuggestedStakeholder `json:"stakeholders"`
	}
	if err := a.complete(ctx, "suggest_stakeholders", suggestStakeholdersPrompt, prompt, &out); err != nil {
		return nil, err
	}
	res := make([]SuggestedStakeholder, 0, len(out.Stakeholders))
	for _, s := range out.Stakeholders {
		if strings.TrimSpace(s.Name) == "" {
			continue
		}
		switch s.Priority = strings.ToLower(strings.TrimSpace(s.Priority)); s.Priority {
		case "high", "medium", "low":
		default:
			s.Priority = "medium"
		}
		res = append(res, s)
	}
	return res, nil
}

// GenerateIndicators drafts outcome and output indicators for an outcome.
func (a *Assistant) GenerateIndicators(ctx context.Context, outcome, theme string) ([]GeneratedIndicator, error) {
	var out struct {
		Indicators []GeneratedIndicator `json:"indicators"`
	}
	prompt := fmt.Sprintf("Outcome: %s\nTheme: %s", outcome, theme)
	if err := a.complete(ctx, "generate_indicators", generateIndicatorsPrompt, prompt, &out); err != nil {
		return nil, err
	}
	res := make([]GeneratedIndicator, 0, len(out.Indicators))
	for _, ind := range out.Indicators {
		ind.Type = strings.ToLower(strings.TrimSpace(ind.Type))
		if ind.Type != "outcome" && ind.Type != "output" {
			continue
		}
		if strings.TrimSpace(ind.Description) == "" {
			continue
		}
		res = append(res, ind)
	}
	return res, nil
}

func (a *Assistant) complete(ctx context.Context, operation, system, user string, out any) error {
	err := a.call(ctx, system, user, out)
	result := "ok"
	switch {
	case errors.Is(err, ErrProviderUnavailable):
		result = "unavailable"
	case err != nil:
		result = "invalid"
	}
	a.Metrics.AssistantCall(operation, result)
	if err != nil {
		a.Logger.Warn("assistant call failed", zap.String("operation", operation), zap.Error(err))
	}
	return err
}

func (a *Assistant) call(ctx context.Context, system, user string, out any) error {
	if a.Generator == nil {
		return ErrProviderUnavailable
	}
	if a.Limiter != nil {
		if err := a.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: rate limit: %v", ErrProviderUnavailable, err)
		}
	}
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}
	resp, err := a.Generator.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}, llms.WithTemperature(temperature), llms.WithMaxTokens(maxTokens), llms.WithJSONMode())
	if err != nil {
		if errors.Is(err, ErrProviderUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return fmt.Errorf("%w: no choices", ErrInvalidResponse)
	}
	if err := json.Unmarshal([]byte(stripFences(resp.Choices[0].Content)), out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

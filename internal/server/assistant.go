package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"logicforge/internal/ai"
	"logicforge/internal/engine"
)

var assistantErrors = []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusBadGateway, http.StatusServiceUnavailable}

// registerAssistant exposes AI drafting. Nothing returned here is persisted.
func registerAssistant(api huma.API, e engine.Engine, assistant *ai.Assistant) {
	huma.Register(api, huma.Operation{
		OperationID: "refineProblem",
		Method:      http.MethodPost,
		Path:        "/programs/{id}/assistant/refine-problem",
		Summary:     "Draft a refined problem statement",
		Description: "Uses challenge_text from the body, or the saved problem statement when omitted.",
		Errors:      assistantErrors,
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body RefineProblemRequest `json:"body" required:"false"`
	}) (*body[ai.RefinedProblem], error) {
		if _, err := ownProgram(ctx, e, input.ID); err != nil {
			return nil, handleError(err)
		}
		challenge := strings.TrimSpace(input.Body.ChallengeText)
		if challenge == "" {
			ps, err := e.GetProblemStatement(ctx, input.ID)
			if err != nil {
				return nil, handleError(err)
			}
			challenge = ps.ChallengeText
		}
		if assistant == nil {
			return nil, handleError(ai.ErrProviderUnavailable)
		}
		out, err := assistant.RefineProblem(ctx, challenge)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[ai.RefinedProblem]{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "suggestStakeholders",
		Method:      http.MethodPost,
		Path:        "/programs/{id}/assistant/suggest-stakeholders",
		Summary:     "Draft stakeholder suggestions from the problem statement",
		Errors:      assistantErrors,
	}, func(ctx context.Context, input *programPath) (*body[itemsResponse[ai.SuggestedStakeholder]], error) {
		if _, err := ownProgram(ctx, e, input.ID); err != nil {
			return nil, handleError(err)
		}
		ps, err := e.GetProblemStatement(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		problem := ps.RefinedText
		if problem == "" {
			problem = ps.ChallengeText
		}
		if assistant == nil {
			return nil, handleError(ai.ErrProviderUnavailable)
		}
		items, err := assistant.SuggestStakeholders(ctx, problem, ps.Theme)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[itemsResponse[ai.SuggestedStakeholder]]{Body: itemsResponse[ai.SuggestedStakeholder]{Items: nonNilSlice(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "generateIndicators",
		Method:      http.MethodPost,
		Path:        "/programs/{id}/assistant/generate-indicators",
		Summary:     "Draft indicators for an outcome",
		Errors:      assistantErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                    `path:"id"`
		Body GenerateIndicatorsRequest `json:"body"`
	}) (*body[itemsResponse[ai.GeneratedIndicator]], error) {
		if _, err := ownProgram(ctx, e, input.ID); err != nil {
			return nil, handleError(err)
		}
		o, err := e.Repo.GetOutcome(ctx, nil, input.ID, input.Body.OutcomeID)
		if err != nil {
			return nil, handleError(err)
		}
		if assistant == nil {
			return nil, handleError(ai.ErrProviderUnavailable)
		}
		items, err := assistant.GenerateIndicators(ctx, o.Description, o.Theme)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[itemsResponse[ai.GeneratedIndicator]]{Body: itemsResponse[ai.GeneratedIndicator]{Items: nonNilSlice(items)}}, nil
	})
}

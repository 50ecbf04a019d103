package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"logicforge/internal/domain"
	"logicforge/internal/engine"
)

type priorityBreakdown struct {
	Priorities map[string]int `json:"priorities"`
}

type progressTimeline struct {
	Data []domain.ProgressPoint `json:"data"`
}

func registerGamification(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "myStats",
		Method:      http.MethodGet,
		Path:        "/me/stats",
		Summary:     "XP, level and program counts for the caller",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*body[domain.UserStats], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		stats, err := e.UserStats(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[domain.UserStats]{Body: stats}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "myBadges",
		Method:      http.MethodGet,
		Path:        "/me/badges",
		Summary:     "All badges with the caller's earned flag",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*body[itemsResponse[domain.Badge]], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListBadges(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[itemsResponse[domain.Badge]]{Body: itemsResponse[domain.Badge]{Items: nonNilSlice(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "myStakeholderPriorities",
		Method:      http.MethodGet,
		Path:        "/me/analytics/stakeholders",
		Summary:     "Stakeholder counts by priority across the caller's programs",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*body[priorityBreakdown], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		counts, err := e.StakeholderPriorities(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[priorityBreakdown]{Body: priorityBreakdown{Priorities: counts}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "myProgressTimeline",
		Method:      http.MethodGet,
		Path:        "/me/analytics/progress",
		Summary:     "Weekly cumulative programs and XP",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Weeks int `query:"weeks" doc:"Number of weeks, default 8, at most 52"`
	}) (*body[progressTimeline], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		points, err := e.ProgressTimeline(ctx, userID, input.Weeks)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[progressTimeline]{Body: progressTimeline{Data: points}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "leaderboard",
		Method:      http.MethodGet,
		Path:        "/leaderboard",
		Summary:     "Users ranked by XP",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit"`
	}) (*body[itemsResponse[domain.LeaderboardEntry]], error) {
		limit := input.Limit
		if limit <= 0 {
			limit = 10
		}
		items, err := e.Leaderboard(ctx, normalizeLimit(limit))
		if err != nil {
			return nil, handleError(err)
		}
		return &body[itemsResponse[domain.LeaderboardEntry]]{Body: itemsResponse[domain.LeaderboardEntry]{Items: nonNilSlice(items)}}, nil
	})
}

func registerMe(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "createAPIKey",
		Method:        http.MethodPost,
		Path:          "/me/api-keys",
		Summary:       "Issue an API key for the caller",
		Description:   "The key is returned once and only its hash is stored.",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*body[APIKeyResponse], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		key, secret, err := e.CreateAPIKey(ctx, userID, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[APIKeyResponse]{Body: APIKeyResponse{APIKey: key, Key: secret}}, nil
	})
}

func registerDevAuth(api huma.API, cfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "devLogin",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "Mint a development token",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*body[DevLoginResponse], error) {
		userID := strings.TrimSpace(input.Body.UserID)
		if userID == "" {
			return nil, newAPIError(http.StatusBadRequest, "validation_failed", "user_id is required", map[string]any{"field": "user_id"})
		}
		token, err := signDevToken(cfg.JWTSecret, userID, time.Now())
		if err != nil {
			return nil, handleError(err)
		}
		return &body[DevLoginResponse]{Body: DevLoginResponse{Token: token, TokenType: "Bearer", UserID: userID}}, nil
	})
}

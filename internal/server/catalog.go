package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"logicforge/internal/domain"
	"logicforge/internal/engine"
	"logicforge/internal/search"
	"logicforge/internal/templates"
)

func registerCatalog(api huma.API, e engine.Engine, chain *search.Chain) {
	huma.Register(api, huma.Operation{
		OperationID: "listModels",
		Method:      http.MethodGet,
		Path:        "/models",
		Summary:     "List proven models",
	}, func(ctx context.Context, input *struct {
		Theme string `query:"theme"`
		Limit int    `query:"limit"`
	}) (*body[itemsResponse[domain.ProvenModel]], error) {
		items, err := e.ListModels(ctx, input.Theme, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		return &body[itemsResponse[domain.ProvenModel]]{Body: itemsResponse[domain.ProvenModel]{Items: nonNilSlice(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "getModel",
		Method:      http.MethodGet,
		Path:        "/models/{model_id}",
		Summary:     "Get proven model",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ModelID string `path:"model_id"`
	}) (*body[domain.ProvenModel], error) {
		m, err := e.GetModel(ctx, input.ModelID)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[domain.ProvenModel]{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "searchModels",
		Method:      http.MethodPost,
		Path:        "/models/search",
		Summary:     "Recommend proven models for a problem",
		Description: "Ranks by embedding similarity. When the embedding provider cannot serve the query the result is degraded to keyword matching and carries the reason.",
	}, func(ctx context.Context, input *struct {
		Body SearchModelsRequest `json:"body"`
	}) (*body[search.Result], error) {
		if chain == nil {
			return nil, newAPIError(http.StatusServiceUnavailable, "search_unavailable", "search is not configured", nil)
		}
		res, err := chain.Search(ctx, search.Query{
			Text:  input.Body.Query,
			Theme: input.Body.Theme,
			Limit: input.Body.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		res.Matches = nonNilSlice(res.Matches)
		return &body[search.Result]{Body: res}, nil
	})
}

func registerTemplates(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "listTemplates",
		Method:      http.MethodGet,
		Path:        "/templates",
		Summary:     "List program templates",
	}, func(ctx context.Context, input *struct {
		Theme string `query:"theme"`
	}) (*body[itemsResponse[templates.Template]], error) {
		items, err := e.ListTemplates(input.Theme)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[itemsResponse[templates.Template]]{Body: itemsResponse[templates.Template]{Items: nonNilSlice(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "getTemplate",
		Method:      http.MethodGet,
		Path:        "/templates/{template_id}",
		Summary:     "Get program template",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TemplateID string `path:"template_id"`
	}) (*body[templates.Template], error) {
		tpl, err := e.GetTemplate(input.TemplateID)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[templates.Template]{Body: tpl}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "createProgramFromTemplate",
		Method:        http.MethodPost,
		Path:          "/templates/{template_id}/programs",
		Summary:       "Create a program from a template",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TemplateID string              `path:"template_id"`
		Body       FromTemplateRequest `json:"body" required:"false"`
	}) (*body[domain.Program], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CreateFromTemplate(ctx, input.TemplateID, userID, input.Body.Title)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[domain.Program]{Body: p}, nil
	})
}

package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"logicforge/internal/domain"
	"logicforge/internal/engine"
	"logicforge/internal/repo"
)

func registerPrograms(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "createProgram",
		Method:        http.MethodPost,
		Path:          "/programs",
		Summary:       "Create program",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateProgramRequest `json:"body"`
	}) (*body[domain.Program], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CreateProgram(ctx, engine.ProgramCreateOptions{
			UserID:      userID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &body[domain.Program]{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "listPrograms",
		Method:      http.MethodGet,
		Path:        "/programs",
		Summary:     "List the caller's programs",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status"`
		Limit  int    `query:"limit"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body paginatedPrograms `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		cursorTS, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", nil)
		}
		limit := normalizeLimit(input.Limit)
		items, err := e.ListPrograms(ctx, repo.ProgramFilters{
			UserID:          userID,
			Status:          input.Status,
			Limit:           limit,
			CursorCreatedAt: cursorTS,
			CursorID:        cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		var next string
		if len(items) == limit {
			last := items[len(items)-1]
			next = composeCursor(last.CreatedAt, last.ID)
		}
		return &struct {
			Body paginatedPrograms `json:"body"`
		}{Body: paginatedPrograms{Items: nonNilSlice(items), NextCursor: next}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "getProgram",
		Method:      http.MethodGet,
		Path:        "/programs/{id}",
		Summary:     "Get program",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*body[domain.Program], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.Auth.RequireProgramOwner(ctx, nil, input.ID, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[domain.Program]{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "updateProgram",
		Method:      http.MethodPatch,
		Path:        "/programs/{id}",
		Summary:     "Update program title or description",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body UpdateProgramRequest `json:"body"`
	}) (*body[domain.Program], error) {
		userID, err := ownProgram(ctx, e, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		p, err := e.UpdateProgram(ctx, input.ID, input.Body.Title, input.Body.Description, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[domain.Program]{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "deleteProgram",
		Method:        http.MethodDelete,
		Path:          "/programs/{id}",
		Summary:       "Delete program and everything it owns",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		userID, err := ownProgram(ctx, e, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := e.DeleteProgram(ctx, input.ID, userID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "programEvents",
		Method:      http.MethodGet,
		Path:        "/programs/{id}/events",
		Summary:     "List program events, newest first",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID     string `path:"id"`
		Limit  int    `query:"limit"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		if _, err := ownProgram(ctx, e, input.ID); err != nil {
			return nil, handleError(err)
		}
		var cursor int64
		if input.Cursor != "" {
			v, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil || v <= 0 {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", nil)
			}
			cursor = v
		}
		limit := normalizeLimit(input.Limit)
		evs, err := e.ProgramEvents(ctx, input.ID, limit, cursor)
		if err != nil {
			return nil, handleError(err)
		}
		items := make([]EventResponse, 0, len(evs))
		for _, ev := range evs {
			items = append(items, eventResponse(ev))
		}
		var next string
		if len(evs) == limit {
			next = strconv.FormatInt(evs[len(evs)-1].ID, 10)
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: paginatedEvents{Items: items, NextCursor: next}}, nil
	})
}

// registerSteps exposes the progression controller.
func registerSteps(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "completeStep",
		Method:      http.MethodPost,
		Path:        "/programs/{id}/steps/{step}/complete",
		Summary:     "Complete the program's current step",
		Description: "Advances the program from step to step+1 when the step's gate holds. A step other than the current one returns the program unchanged.",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusPreconditionFailed},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Step int    `path:"step"`
	}) (*struct {
		Body engine.StepResult `json:"body"`
	}, error) {
		userID, err := ownProgram(ctx, e, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		res, err := e.CompleteStep(ctx, input.ID, input.Step, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.StepResult `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "finalizeProgram",
		Method:      http.MethodPost,
		Path:        "/programs/{id}/finalize",
		Summary:     "Mark a program at the last step completed",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body engine.StepResult `json:"body"`
	}, error) {
		userID, err := ownProgram(ctx, e, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		res, err := e.Finalize(ctx, input.ID, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.StepResult `json:"body"`
		}{Body: res}, nil
	})
}

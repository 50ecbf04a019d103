package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"logicforge/internal/domain"
	"logicforge/internal/engine"
)

type programPath struct {
	ID string `path:"id"`
}

type programItemPath struct {
	ID     string `path:"id"`
	ItemID string `path:"item_id"`
}

type body[T any] struct {
	Body T `json:"body"`
}

var componentErrors = []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound}

func registerComponents(api huma.API, e engine.Engine) {
	registerProblemStatement(api, e)
	registerStakeholders(api, e)
	registerModelSelections(api, e)
	registerOutcomes(api, e)
}

func registerProblemStatement(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "getProblemStatement",
		Method:      http.MethodGet,
		Path:        "/programs/{id}/problem-statement",
		Summary:     "Get problem statement",
		Errors:      componentErrors,
	}, func(ctx context.Context, input *programPath) (*body[domain.ProblemStatement], error) {
		if _, err := ownProgram(ctx, e, input.ID); err != nil {
			return nil, handleError(err)
		}
		ps, err := e.GetProblemStatement(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[domain.ProblemStatement]{Body: ps}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "saveProblemStatement",
		Method:      http.MethodPut,
		Path:        "/programs/{id}/problem-statement",
		Summary:     "Create or replace problem statement",
		Description: "Marking the statement completed satisfies the step 1 gate but does not advance the program.",
		Errors:      componentErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                  `path:"id"`
		Body ProblemStatementRequest `json:"body"`
	}) (*body[domain.ProblemStatement], error) {
		userID, err := ownProgram(ctx, e, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		ps, err := e.SaveProblemStatement(ctx, input.ID, problemInput(input.Body), userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[domain.ProblemStatement]{Body: ps}, nil
	})
}

func registerStakeholders(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "listStakeholders",
		Method:      http.MethodGet,
		Path:        "/programs/{id}/stakeholders",
		Summary:     "List stakeholders",
		Errors:      componentErrors,
	}, func(ctx context.Context, input *programPath) (*body[itemsResponse[domain.Stakeholder]], error) {
		if _, err := ownProgram(ctx, e, input.ID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.ListStakeholders(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[itemsResponse[domain.Stakeholder]]{Body: itemsResponse[domain.Stakeholder]{Items: nonNilSlice(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "addStakeholder",
		Method:        http.MethodPost,
		Path:          "/programs/{id}/stakeholders",
		Summary:       "Add stakeholder",
		DefaultStatus: http.StatusCreated,
		Errors:        componentErrors,
	}, func(ctx context.Context, input *struct {
		ID   string             `path:"id"`
		Body StakeholderRequest `json:"body"`
	}) (*body[domain.Stakeholder], error) {
		userID, err := ownProgram(ctx, e, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		s, err := e.AddStakeholder(ctx, input.ID, stakeholderInput(input.Body), userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[domain.Stakeholder]{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "updateStakeholder",
		Method:      http.MethodPut,
		Path:        "/programs/{id}/stakeholders/{item_id}",
		Summary:     "Update stakeholder",
		Errors:      componentErrors,
	}, func(ctx context.Context, input *struct {
		ID     string             `path:"id"`
		ItemID string             `path:"item_id"`
		Body   StakeholderRequest `json:"body"`
	}) (*body[domain.Stakeholder], error) {
		userID, err := ownProgram(ctx, e, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		s, err := e.UpdateStakeholder(ctx, input.ID, input.ItemID, stakeholderInput(input.Body), userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[domain.Stakeholder]{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "removeStakeholder",
		Method:        http.MethodDelete,
		Path:          "/programs/{id}/stakeholders/{item_id}",
		Summary:       "Remove stakeholder",
		DefaultStatus: http.StatusNoContent,
		Errors:        componentErrors,
	}, func(ctx context.Context, input *programItemPath) (*struct{}, error) {
		userID, err := ownProgram(ctx, e, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := e.RemoveStakeholder(ctx, input.ID, input.ItemID, userID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerModelSelections(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "listSelectedModels",
		Method:      http.MethodGet,
		Path:        "/programs/{id}/models",
		Summary:     "List models selected for the program",
		Errors:      componentErrors,
	}, func(ctx context.Context, input *programPath) (*body[itemsResponse[domain.ProgramModel]], error) {
		if _, err := ownProgram(ctx, e, input.ID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.ListSelectedModels(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[itemsResponse[domain.ProgramModel]]{Body: itemsResponse[domain.ProgramModel]{Items: nonNilSlice(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "selectModel",
		Method:      http.MethodPost,
		Path:        "/programs/{id}/models",
		Summary:     "Select a catalog model",
		Description: "Selecting an already selected model returns the existing selection.",
		Errors:      componentErrors,
	}, func(ctx context.Context, input *struct {
		ID   string             `path:"id"`
		Body SelectModelRequest `json:"body"`
	}) (*body[domain.ProgramModel], error) {
		userID, err := ownProgram(ctx, e, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		pm, err := e.SelectModel(ctx, input.ID, input.Body.ProvenModelID, input.Body.Notes, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[domain.ProgramModel]{Body: pm}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "deselectModel",
		Method:        http.MethodDelete,
		Path:          "/programs/{id}/models/{item_id}",
		Summary:       "Remove a selected model",
		DefaultStatus: http.StatusNoContent,
		Errors:        componentErrors,
	}, func(ctx context.Context, input *programItemPath) (*struct{}, error) {
		userID, err := ownProgram(ctx, e, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := e.DeselectModel(ctx, input.ID, input.ItemID, userID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerOutcomes(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "listOutcomes",
		Method:      http.MethodGet,
		Path:        "/programs/{id}/outcomes",
		Summary:     "List outcomes with their indicators",
		Errors:      componentErrors,
	}, func(ctx context.Context, input *programPath) (*body[itemsResponse[domain.Outcome]], error) {
		if _, err := ownProgram(ctx, e, input.ID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.ListOutcomes(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[itemsResponse[domain.Outcome]]{Body: itemsResponse[domain.Outcome]{Items: nonNilSlice(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "addOutcome",
		Method:        http.MethodPost,
		Path:          "/programs/{id}/outcomes",
		Summary:       "Add outcome",
		DefaultStatus: http.StatusCreated,
		Errors:        componentErrors,
	}, func(ctx context.Context, input *struct {
		ID   string         `path:"id"`
		Body OutcomeRequest `json:"body"`
	}) (*body[domain.Outcome], error) {
		userID, err := ownProgram(ctx, e, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		o, err := e.AddOutcome(ctx, input.ID, outcomeInput(input.Body), userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[domain.Outcome]{Body: o}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "updateOutcome",
		Method:      http.MethodPut,
		Path:        "/programs/{id}/outcomes/{item_id}",
		Summary:     "Update outcome",
		Errors:      componentErrors,
	}, func(ctx context.Context, input *struct {
		ID     string         `path:"id"`
		ItemID string         `path:"item_id"`
		Body   OutcomeRequest `json:"body"`
	}) (*body[domain.Outcome], error) {
		userID, err := ownProgram(ctx, e, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		o, err := e.UpdateOutcome(ctx, input.ID, input.ItemID, outcomeInput(input.Body), userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[domain.Outcome]{Body: o}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "removeOutcome",
		Method:        http.MethodDelete,
		Path:          "/programs/{id}/outcomes/{item_id}",
		Summary:       "Remove outcome and its indicators",
		DefaultStatus: http.StatusNoContent,
		Errors:        componentErrors,
	}, func(ctx context.Context, input *programItemPath) (*struct{}, error) {
		userID, err := ownProgram(ctx, e, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := e.RemoveOutcome(ctx, input.ID, input.ItemID, userID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "addIndicator",
		Method:        http.MethodPost,
		Path:          "/programs/{id}/outcomes/{item_id}/indicators",
		Summary:       "Add indicator to an outcome",
		DefaultStatus: http.StatusCreated,
		Errors:        componentErrors,
	}, func(ctx context.Context, input *struct {
		ID     string           `path:"id"`
		ItemID string           `path:"item_id"`
		Body   IndicatorRequest `json:"body"`
	}) (*body[domain.Indicator], error) {
		userID, err := ownProgram(ctx, e, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		ind, err := e.AddIndicator(ctx, input.ID, input.ItemID, indicatorInput(input.Body), userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[domain.Indicator]{Body: ind}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "updateIndicator",
		Method:      http.MethodPut,
		Path:        "/programs/{id}/indicators/{item_id}",
		Summary:     "Update indicator",
		Errors:      componentErrors,
	}, func(ctx context.Context, input *struct {
		ID     string           `path:"id"`
		ItemID string           `path:"item_id"`
		Body   IndicatorRequest `json:"body"`
	}) (*body[domain.Indicator], error) {
		userID, err := ownProgram(ctx, e, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		ind, err := e.UpdateIndicator(ctx, input.ID, input.ItemID, indicatorInput(input.Body), userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[domain.Indicator]{Body: ind}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "removeIndicator",
		Method:        http.MethodDelete,
		Path:          "/programs/{id}/indicators/{item_id}",
		Summary:       "Remove indicator",
		DefaultStatus: http.StatusNoContent,
		Errors:        componentErrors,
	}, func(ctx context.Context, input *programItemPath) (*struct{}, error) {
		userID, err := ownProgram(ctx, e, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := e.RemoveIndicator(ctx, input.ID, input.ItemID, userID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

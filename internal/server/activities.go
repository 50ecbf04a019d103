package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"logicforge/internal/domain"
	"logicforge/internal/engine"
)

func registerActivities(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "listActivities",
		Method:      http.MethodGet,
		Path:        "/programs/{id}/activities",
		Summary:     "List activities in schedule order",
		Errors:      componentErrors,
	}, func(ctx context.Context, input *programPath) (*body[itemsResponse[domain.Activity]], error) {
		if _, err := ownProgram(ctx, e, input.ID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.ListActivities(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[itemsResponse[domain.Activity]]{Body: itemsResponse[domain.Activity]{Items: nonNilSlice(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "addActivity",
		Method:        http.MethodPost,
		Path:          "/programs/{id}/activities",
		Summary:       "Schedule activity",
		DefaultStatus: http.StatusCreated,
		Errors:        componentErrors,
	}, func(ctx context.Context, input *struct {
		ID   string          `path:"id"`
		Body ActivityRequest `json:"body"`
	}) (*body[domain.Activity], error) {
		userID, err := ownProgram(ctx, e, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		a, err := e.AddActivity(ctx, input.ID, activityInput(input.Body), userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[domain.Activity]{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "activityTimeline",
		Method:      http.MethodGet,
		Path:        "/programs/{id}/activities/timeline",
		Summary:     "Activities as Gantt chart bars",
		Errors:      componentErrors,
	}, func(ctx context.Context, input *programPath) (*body[itemsResponse[domain.TimelineItem]], error) {
		if _, err := ownProgram(ctx, e, input.ID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.ActivityTimeline(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[itemsResponse[domain.TimelineItem]]{Body: itemsResponse[domain.TimelineItem]{Items: nonNilSlice(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "getActivity",
		Method:      http.MethodGet,
		Path:        "/programs/{id}/activities/{item_id}",
		Summary:     "Get activity",
		Errors:      componentErrors,
	}, func(ctx context.Context, input *programItemPath) (*body[domain.Activity], error) {
		if _, err := ownProgram(ctx, e, input.ID); err != nil {
			return nil, handleError(err)
		}
		a, err := e.GetActivity(ctx, input.ID, input.ItemID)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[domain.Activity]{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "updateActivity",
		Method:      http.MethodPatch,
		Path:        "/programs/{id}/activities/{item_id}",
		Summary:     "Update activity fields, including progress",
		Errors:      componentErrors,
	}, func(ctx context.Context, input *struct {
		ID     string               `path:"id"`
		ItemID string               `path:"item_id"`
		Body   ActivityPatchRequest `json:"body"`
	}) (*body[domain.Activity], error) {
		userID, err := ownProgram(ctx, e, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		a, err := e.UpdateActivity(ctx, input.ID, input.ItemID, activityPatch(input.Body), userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[domain.Activity]{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "removeActivity",
		Method:        http.MethodDelete,
		Path:          "/programs/{id}/activities/{item_id}",
		Summary:       "Remove activity",
		DefaultStatus: http.StatusNoContent,
		Errors:        componentErrors,
	}, func(ctx context.Context, input *programItemPath) (*struct{}, error) {
		userID, err := ownProgram(ctx, e, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := e.RemoveActivity(ctx, input.ID, input.ItemID, userID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

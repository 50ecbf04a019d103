package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"logicforge/internal/domain"
	"logicforge/internal/engine"
)

func registerCollaboration(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "listComments",
		Method:      http.MethodGet,
		Path:        "/programs/{id}/comments",
		Summary:     "List comments, newest first",
		Errors:      componentErrors,
	}, func(ctx context.Context, input *struct {
		ID      string `path:"id"`
		Section string `query:"section"`
	}) (*body[itemsResponse[domain.Comment]], error) {
		if _, err := ownProgram(ctx, e, input.ID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.ListComments(ctx, input.ID, input.Section)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[itemsResponse[domain.Comment]]{Body: itemsResponse[domain.Comment]{Items: nonNilSlice(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "addComment",
		Method:        http.MethodPost,
		Path:          "/programs/{id}/comments",
		Summary:       "Add comment",
		DefaultStatus: http.StatusCreated,
		Errors:        componentErrors,
	}, func(ctx context.Context, input *struct {
		ID   string         `path:"id"`
		Body CommentRequest `json:"body"`
	}) (*body[domain.Comment], error) {
		userID, err := ownProgram(ctx, e, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		c, err := e.AddComment(ctx, input.ID, engine.CommentInput{
			UserID:   userID,
			UserName: input.Body.UserName,
			Content:  input.Body.Content,
			Section:  input.Body.Section,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &body[domain.Comment]{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolveComment",
		Method:      http.MethodPost,
		Path:        "/programs/{id}/comments/{item_id}/resolve",
		Summary:     "Resolve comment",
		Errors:      componentErrors,
	}, func(ctx context.Context, input *programItemPath) (*body[domain.Comment], error) {
		userID, err := ownProgram(ctx, e, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		c, err := e.ResolveComment(ctx, input.ID, input.ItemID, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[domain.Comment]{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "listVersions",
		Method:      http.MethodGet,
		Path:        "/programs/{id}/versions",
		Summary:     "List saved versions, highest number first",
		Errors:      componentErrors,
	}, func(ctx context.Context, input *programPath) (*body[itemsResponse[domain.Version]], error) {
		if _, err := ownProgram(ctx, e, input.ID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.ListVersions(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[itemsResponse[domain.Version]]{Body: itemsResponse[domain.Version]{Items: nonNilSlice(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "createVersion",
		Method:        http.MethodPost,
		Path:          "/programs/{id}/versions",
		Summary:       "Save a numbered version",
		DefaultStatus: http.StatusCreated,
		Errors:        componentErrors,
	}, func(ctx context.Context, input *struct {
		ID   string         `path:"id"`
		Body VersionRequest `json:"body"`
	}) (*body[domain.Version], error) {
		userID, err := ownProgram(ctx, e, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		v, err := e.CreateVersion(ctx, input.ID, engine.VersionInput{
			UserID:      userID,
			UserName:    input.Body.UserName,
			Description: input.Body.Description,
			Changes:     input.Body.Changes,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &body[domain.Version]{Body: v}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "getVersion",
		Method:      http.MethodGet,
		Path:        "/programs/{id}/versions/{number}",
		Summary:     "Get version by number",
		Errors:      componentErrors,
	}, func(ctx context.Context, input *struct {
		ID     string `path:"id"`
		Number int    `path:"number" minimum:"1"`
	}) (*body[domain.Version], error) {
		if _, err := ownProgram(ctx, e, input.ID); err != nil {
			return nil, handleError(err)
		}
		v, err := e.GetVersion(ctx, input.ID, input.Number)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[domain.Version]{Body: v}, nil
	})
}

package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"logicforge/internal/domain"
	"logicforge/internal/engine"
)

type documentOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Finalized          string `header:"X-LogicForge-Finalized"`
	Body               []byte
}

func attachment(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}

func registerExport(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "exportProgram",
		Method:      http.MethodPost,
		Path:        "/programs/{id}/export",
		Summary:     "Generate the program design document",
		Description: "Records the generation and finalizes a program that is at the last step.",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnsupportedMediaType},
	}, func(ctx context.Context, input *struct {
		ID     string `path:"id"`
		Format string `query:"format" default:"json"`
	}) (*documentOutput, error) {
		userID, err := ownProgram(ctx, e, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		res, err := e.GenerateDocument(ctx, input.ID, input.Format, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &documentOutput{
			ContentType:        res.ContentType,
			ContentDisposition: attachment(res.Document.Filename),
			Finalized:          strconv.FormatBool(res.Program.Status == domain.StatusCompleted),
			Body:               res.Content,
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "listDocuments",
		Method:      http.MethodGet,
		Path:        "/programs/{id}/documents",
		Summary:     "List generated documents",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *programPath) (*body[itemsResponse[domain.GeneratedDocument]], error) {
		if _, err := ownProgram(ctx, e, input.ID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.ListDocuments(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &body[itemsResponse[domain.GeneratedDocument]]{Body: itemsResponse[domain.GeneratedDocument]{Items: nonNilSlice(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "dataCollectionForm",
		Method:      http.MethodGet,
		Path:        "/programs/{id}/forms/xlsform",
		Summary:     "Build an XLSForm survey from the program's indicators",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *programPath) (*documentOutput, error) {
		if _, err := ownProgram(ctx, e, input.ID); err != nil {
			return nil, handleError(err)
		}
		doc, err := e.DataCollectionForm(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &documentOutput{
			ContentType:        doc.ContentType,
			ContentDisposition: attachment(doc.Filename),
			Body:               doc.Content,
		}, nil
	})
}

package logicforgesdk

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendsCredentialsAndDecodes(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"p1","title":"Reading","current_step":1,"status":"draft"}`)
	}))
	defer srv.Close()

	c := New(srv.URL + "/v1/")
	c.BearerToken = "tok"
	p, err := c.CreateProgram(context.Background(), "Reading", "")
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "/v1/programs", gotPath)
	assert.Equal(t, "Reading", gotBody["title"])
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, 1, p.CurrentStep)
}

func TestClientDecodesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-1", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "/programs/p1/steps/2/complete", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPreconditionFailed)
		_, _ = io.WriteString(w, `{"error":{"code":"precondition_failed","message":"step 2 cannot be completed","details":{"step":2,"condition":"at least one stakeholder is required"}}}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.APIKey = "key-1"
	_, err := c.CompleteStep(context.Background(), "p1", 2)
	require.Error(t, err)
	assert.True(t, IsPreconditionFailed(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "precondition_failed", apiErr.Code)
	assert.Equal(t, "at least one stakeholder is required", apiErr.Details["condition"])
}

func TestExportReadsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "csv", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="reading.csv"`)
		w.Header().Set("X-LogicForge-Finalized", "true")
		_, _ = io.WriteString(w, "section,field,value\n")
	}))
	defer srv.Close()

	doc, err := New(srv.URL).Export(context.Background(), "p1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "reading.csv", doc.Filename)
	assert.True(t, doc.Finalized)
	assert.Equal(t, "text/csv", doc.ContentType)
	assert.Equal(t, "section,field,value\n", string(doc.Content))
}

func TestSearchModelsOmitsEmptyFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"query": "literacy"}, body)
		_, _ = io.WriteString(w, `{"strategy":"keyword","degraded":true,"reason":"provider_error","matches":[{"model":{"id":"m1","name":"TaRL"}}]}`)
	}))
	defer srv.Close()

	res, err := New(srv.URL).SearchModels(context.Background(), "literacy", "", 0)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	require.Len(t, res.Matches, 1)
	assert.Nil(t, res.Matches[0].Distance)
}

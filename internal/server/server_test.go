package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"logicforge/internal/ai"
	"logicforge/internal/config"
	"logicforge/internal/db"
	"logicforge/internal/domain"
	"logicforge/internal/engine"
	"logicforge/internal/events"
	"logicforge/internal/migrate"
	"logicforge/internal/search"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	_, err = migrate.Migrate(context.Background(), conn)
	require.NoError(t, err)

	cfg := config.Default()
	e := engine.New(conn, cfg, nil, nil)
	handler, err := New(Config{
		Engine:    e,
		Search:    search.NewChain(nil, e.Repo, 3, time.Second, nil, nil),
		Assistant: ai.NewAssistant(ai.NewGenerator(config.AIConfig{}), cfg.AI, nil, nil),
		BasePath:  "/v1",
		Auth: AuthConfig{
			JWTSecret:             testSecret,
			AllowLegacyUserHeader: true,
			DevAuth:               true,
		},
	})
	require.NoError(t, err)

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		conn.Close()
	})
	return &testServer{URL: "http://" + ln.Addr().String() + "/v1", Engine: e, client: &http.Client{}}
}

func as(user string) map[string]string {
	return map[string]string{"X-User-Id": user}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = bytes.NewReader(nil)
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := s.client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

type errorEnvelope struct {
	Error apiErrorBody `json:"error"`
}

func (s *testServer) createProgram(t *testing.T, user, title string) domain.Program {
	t.Helper()
	res, data := s.do(t, http.MethodPost, "/programs", map[string]any{"title": title}, as(user))
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	return decode[domain.Program](t, data)
}

func TestHealthIsPublic(t *testing.T) {
	srv := newTestServer(t)
	res, data := srv.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(data), "healthy")
}

func TestRequestsWithoutCredentialsAreRejected(t *testing.T) {
	srv := newTestServer(t)
	res, data := srv.do(t, http.MethodGet, "/programs", nil, nil)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "unauthorized", decode[errorEnvelope](t, data).Error.Code)

	res, data = srv.do(t, http.MethodGet, "/programs", nil, map[string]string{"Authorization": "Bearer not-a-token"})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "invalid_credentials", decode[errorEnvelope](t, data).Error.Code)
}

func TestStepFlowThroughAPI(t *testing.T) {
	srv := newTestServer(t)
	p := srv.createProgram(t, "alice", "Reading Recovery")
	assert.Equal(t, 1, p.CurrentStep)
	assert.Equal(t, domain.StatusDraft, p.Status)

	res, data := srv.do(t, http.MethodPost, "/programs/"+p.ID+"/steps/1/complete", nil, as("alice"))
	require.Equal(t, http.StatusPreconditionFailed, res.StatusCode, string(data))
	env := decode[errorEnvelope](t, data)
	assert.Equal(t, "precondition_failed", env.Error.Code)
	assert.Equal(t, "problem statement must be marked complete", env.Error.Details["condition"])

	res, data = srv.do(t, http.MethodPut, "/programs/"+p.ID+"/problem-statement", map[string]any{
		"challenge_text": "Grade 3 children cannot read",
		"is_completed":   true,
	}, as("alice"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodPost, "/programs/"+p.ID+"/steps/1/complete", nil, as("alice"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	step := decode[engine.StepResult](t, data)
	assert.True(t, step.Advanced)
	assert.Equal(t, 2, step.Program.CurrentStep)
	assert.Equal(t, domain.StatusInProgress, step.Program.Status)

	res, data = srv.do(t, http.MethodPost, "/programs/"+p.ID+"/steps/2/complete", nil, as("alice"))
	require.Equal(t, http.StatusPreconditionFailed, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodPost, "/programs/"+p.ID+"/stakeholders", map[string]any{"name": "Teachers", "priority": "high"}, as("alice"))
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodPost, "/programs/"+p.ID+"/steps/2/complete", nil, as("alice"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Equal(t, 3, decode[engine.StepResult](t, data).Program.CurrentStep)

	// Replaying an already completed step leaves the program where it is.
	res, data = srv.do(t, http.MethodPost, "/programs/"+p.ID+"/steps/2/complete", nil, as("alice"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	replay := decode[engine.StepResult](t, data)
	assert.False(t, replay.Advanced)
	assert.Equal(t, 3, replay.Program.CurrentStep)

	res, data = srv.do(t, http.MethodPost, "/programs/"+p.ID+"/steps/9/complete", nil, as("alice"))
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	assert.Equal(t, "invalid_step", decode[errorEnvelope](t, data).Error.Code)

	res, data = srv.do(t, http.MethodGet, "/programs/"+p.ID+"/events?limit=2", nil, as("alice"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	page := decode[paginatedEvents](t, data)
	require.Len(t, page.Items, 2)
	assert.Equal(t, events.ProgramStepCompleted, page.Items[0].Type)
	assert.NotEmpty(t, page.NextCursor)
}

func TestOwnershipIsEnforced(t *testing.T) {
	srv := newTestServer(t)
	p := srv.createProgram(t, "alice", "Reading Recovery")

	res, data := srv.do(t, http.MethodGet, "/programs/"+p.ID, nil, as("bob"))
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(data))
	assert.Equal(t, "forbidden", decode[errorEnvelope](t, data).Error.Code)

	res, _ = srv.do(t, http.MethodPost, "/programs/"+p.ID+"/steps/1/complete", nil, as("bob"))
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res, _ = srv.do(t, http.MethodGet, "/programs/missing", nil, as("alice"))
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, data = srv.do(t, http.MethodGet, "/programs", nil, as("bob"))
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Empty(t, decode[paginatedPrograms](t, data).Items)
}

func TestValidationErrorsUseEnvelope(t *testing.T) {
	srv := newTestServer(t)
	p := srv.createProgram(t, "alice", "Reading Recovery")
	res, data := srv.do(t, http.MethodPost, "/programs/"+p.ID+"/stakeholders", map[string]any{"name": "Parents", "priority": "urgent"}, as("alice"))
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	env := decode[errorEnvelope](t, data)
	assert.Equal(t, "validation_failed", env.Error.Code)
	assert.Equal(t, "priority", env.Error.Details["field"])
}

func TestSearchDegradesWithoutEmbeddingProvider(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	for _, m := range []domain.ProvenModel{
		{ID: "m-tarl", Name: "Teaching at the Right Level", Description: "Group children by reading level", Themes: []string{"FLN"}},
		{ID: "m-jobs", Name: "Job Shadowing", Description: "Workplace exposure", Themes: []string{"Career Readiness"}},
	} {
		_, err := srv.Engine.Repo.UpsertModel(ctx, nil, m)
		require.NoError(t, err)
	}

	res, data := srv.do(t, http.MethodPost, "/models/search", map[string]any{"query": "reading"}, as("alice"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	out := decode[search.Result](t, data)
	assert.True(t, out.Degraded)
	assert.Equal(t, search.StrategyKeyword, out.Strategy)
	assert.Equal(t, search.ReasonProviderError, out.Reason)
	require.Len(t, out.Matches, 1)
	assert.Equal(t, "Teaching at the Right Level", out.Matches[0].Model.Name)
}

func TestExportReturnsDocument(t *testing.T) {
	srv := newTestServer(t)
	p := srv.createProgram(t, "alice", "Reading Recovery")

	res, data := srv.do(t, http.MethodPost, "/programs/"+p.ID+"/export?format=csv", nil, as("alice"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Equal(t, "text/csv", res.Header.Get("Content-Type"))
	assert.Contains(t, res.Header.Get("Content-Disposition"), "Reading_Recovery_Program_Design.csv")
	assert.Equal(t, "false", res.Header.Get("X-LogicForge-Finalized"))
	assert.Contains(t, string(data), "Reading Recovery")

	res, data = srv.do(t, http.MethodPost, "/programs/"+p.ID+"/export?format=pdf", nil, as("alice"))
	require.Equal(t, http.StatusUnsupportedMediaType, res.StatusCode, string(data))
	assert.Equal(t, "unsupported_format", decode[errorEnvelope](t, data).Error.Code)

	res, data = srv.do(t, http.MethodGet, "/programs/"+p.ID+"/documents", nil, as("alice"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Len(t, decode[itemsResponse[domain.GeneratedDocument]](t, data).Items, 1)
}

func TestAssistantWithoutProviderIsUnavailable(t *testing.T) {
	srv := newTestServer(t)
	p := srv.createProgram(t, "alice", "Reading Recovery")
	res, data := srv.do(t, http.MethodPost, "/programs/"+p.ID+"/assistant/refine-problem", map[string]any{"challenge_text": "kids struggle"}, as("alice"))
	require.Equal(t, http.StatusServiceUnavailable, res.StatusCode, string(data))
	assert.Equal(t, "provider_unavailable", decode[errorEnvelope](t, data).Error.Code)
}

func TestTemplateCreatesProgram(t *testing.T) {
	srv := newTestServer(t)
	res, data := srv.do(t, http.MethodGet, "/templates", nil, as("alice"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	list := decode[itemsResponse[map[string]any]](t, data)
	require.NotEmpty(t, list.Items)
	id := list.Items[0]["id"].(string)

	res, data = srv.do(t, http.MethodPost, "/templates/"+id+"/programs", map[string]any{"title": "From template"}, as("alice"))
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	p := decode[domain.Program](t, data)
	assert.Equal(t, "From template", p.Title)
	assert.Equal(t, 1, p.CurrentStep)

	res, data = srv.do(t, http.MethodPost, "/programs/"+p.ID+"/steps/1/complete", nil, as("alice"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
}

func TestAPIKeyAuthentication(t *testing.T) {
	srv := newTestServer(t)
	res, data := srv.do(t, http.MethodPost, "/me/api-keys", map[string]any{"name": "ci"}, as("alice"))
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	key := decode[APIKeyResponse](t, data)
	require.True(t, strings.HasPrefix(key.Key, "lf_"))

	res, data = srv.do(t, http.MethodGet, "/me/stats", nil, map[string]string{"X-Api-Key": key.Key})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Equal(t, "alice", decode[domain.UserStats](t, data).UserID)

	res, _ = srv.do(t, http.MethodGet, "/me/stats", nil, map[string]string{"X-Api-Key": "lf_wrong"})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestDevLoginTokenAuthenticates(t *testing.T) {
	srv := newTestServer(t)
	res, data := srv.do(t, http.MethodPost, "/auth/dev/login", map[string]any{"user_id": "carol"}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	login := decode[DevLoginResponse](t, data)

	p := srv.createProgram(t, "carol", "Career Pathways")
	res, data = srv.do(t, http.MethodGet, "/programs/"+p.ID, nil, map[string]string{"Authorization": "Bearer " + login.Token})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	// A bearer token wins over the legacy header.
	res, _ = srv.do(t, http.MethodGet, "/programs/"+p.ID, nil, map[string]string{
		"Authorization": "Bearer " + login.Token,
		"X-User-Id":     "mallory",
	})
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestJWTRequiresSubject(t *testing.T) {
	_, err := signDevToken("", "alice", time.Now())
	require.Error(t, err)

	token, err := signDevToken(testSecret, "alice", time.Now())
	require.NoError(t, err)
	p, err := authenticateJWT(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.UserID)

	_, err = authenticateJWT(token, "other-secret")
	assert.Error(t, err)
}

func TestOpenAPIDeclaresSecurity(t *testing.T) {
	srv := newTestServer(t)
	res, data := srv.do(t, http.MethodGet, "/openapi.json", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(data), "bearerAuth")
	assert.Contains(t, string(data), "/v1/programs/{id}/steps/{step}/complete")
}

func TestWebhookDeliversSignedEvents(t *testing.T) {
	var (
		mu       sync.Mutex
		received []*http.Request
		bodies   [][]byte
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		received = append(received, r)
		bodies = append(bodies, data)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(hook.Close)

	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	_, err = migrate.Migrate(ctx, conn)
	require.NoError(t, err)
	cfg := config.Default()
	cfg.Webhooks = []config.WebhookConfig{{URL: hook.URL, Secret: "hook-secret", Events: []string{events.ProgramCreated}}}
	e := engine.New(conn, cfg, nil, nil)

	_, err = e.CreateProgram(ctx, engine.ProgramCreateOptions{UserID: "alice", Title: "Before start"})
	require.NoError(t, err)

	d := NewWebhookDispatcher(e, zap.NewNop())
	d.DispatchAll(ctx)
	mu.Lock()
	require.Empty(t, received, "events before the first poll are skipped")
	mu.Unlock()

	p, err := e.CreateProgram(ctx, engine.ProgramCreateOptions{UserID: "alice", Title: "After start"})
	require.NoError(t, err)
	_, err = e.UpdateProgram(ctx, p.ID, nil, nil, "alice")
	require.NoError(t, err)
	d.DispatchAll(ctx)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, events.ProgramCreated, received[0].Header.Get("X-LogicForge-Event"))
	assert.Equal(t, "sha256="+signPayload("hook-secret", bodies[0]), received[0].Header.Get("X-LogicForge-Signature"))
	var evt webhookEvent
	require.NoError(t, json.Unmarshal(bodies[0], &evt))
	assert.Equal(t, p.ID, evt.ProgramID)
}

func TestEventFilter(t *testing.T) {
	all := newEventFilter(nil)
	assert.True(t, all.match(events.ProgramCreated))

	some := newEventFilter([]string{" program.completed ", ""})
	assert.True(t, some.match(events.ProgramCompleted))
	assert.False(t, some.match(events.ProgramCreated))
}

func TestActivitiesScheduleAndTimeline(t *testing.T) {
	srv := newTestServer(t)
	p := srv.createProgram(t, "alice", "Numeracy")
	base := "/programs/" + p.ID + "/activities"

	res, data := srv.do(t, http.MethodPost, base, map[string]any{
		"title":      "Teacher training",
		"start_date": "2024-02-01",
		"end_date":   "2024-02-20",
	}, as("alice"))
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	a := decode[domain.Activity](t, data)
	assert.Equal(t, domain.ActivityPlanned, a.Status)
	assert.Zero(t, a.ProgressPercentage)

	res, data = srv.do(t, http.MethodPatch, base+"/"+a.ID, map[string]any{
		"status":              domain.ActivityInProgress,
		"progress_percentage": 40,
	}, as("alice"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Equal(t, 40, decode[domain.Activity](t, data).ProgressPercentage)

	res, data = srv.do(t, http.MethodGet, base, nil, as("alice"))
	require.Equal(t, http.StatusOK, res.StatusCode)
	list := decode[struct {
		Items []domain.Activity `json:"items"`
	}](t, data)
	require.Len(t, list.Items, 1)

	res, data = srv.do(t, http.MethodGet, base+"/timeline", nil, as("alice"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	timeline := decode[struct {
		Items []domain.TimelineItem `json:"items"`
	}](t, data)
	require.Len(t, timeline.Items, 1)
	assert.Equal(t, "Teacher training", timeline.Items[0].Name)
	assert.Equal(t, "2024-02-01", timeline.Items[0].Start)
	assert.Equal(t, 40, timeline.Items[0].Progress)

	res, _ = srv.do(t, http.MethodGet, base, nil, as("bob"))
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res, data = srv.do(t, http.MethodPost, base, map[string]any{
		"title":      "Backwards",
		"start_date": "2024-03-01",
		"end_date":   "2024-02-01",
	}, as("alice"))
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	assert.Equal(t, "validation_failed", decode[errorEnvelope](t, data).Error.Code)

	res, _ = srv.do(t, http.MethodDelete, base+"/"+a.ID, nil, as("alice"))
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	res, _ = srv.do(t, http.MethodGet, base+"/"+a.ID, nil, as("alice"))
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestProgressTimelineDefaultsToEightWeeks(t *testing.T) {
	srv := newTestServer(t)
	srv.createProgram(t, "alice", "Numeracy")

	res, data := srv.do(t, http.MethodGet, "/me/analytics/progress", nil, as("alice"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	out := decode[struct {
		Data []domain.ProgressPoint `json:"data"`
	}](t, data)
	require.Len(t, out.Data, 8)
	last := out.Data[len(out.Data)-1]
	assert.Equal(t, "This Week", last.Label)
	assert.Equal(t, 1, last.Programs)

	res, data = srv.do(t, http.MethodGet, "/me/analytics/progress?weeks=4", nil, as("alice"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Len(t, decode[struct {
		Data []domain.ProgressPoint `json:"data"`
	}](t, data).Data, 4)

	res, data = srv.do(t, http.MethodGet, "/me/analytics/progress?weeks=60", nil, as("alice"))
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
}

func TestOversizedBodyIsRejected(t *testing.T) {
	srv := newTestServer(t)
	title := strings.Repeat("x", maxRequestBody+1)
	res, data := srv.do(t, http.MethodPost, "/programs", map[string]any{"title": title}, as("alice"))
	require.Equal(t, http.StatusRequestEntityTooLarge, res.StatusCode, string(data))
	assert.Equal(t, "payload_too_large", decode[errorEnvelope](t, data).Error.Code)
}

func TestOpenAPIServedConcurrently(t *testing.T) {
	srv := newTestServer(t)
	const workers = 8
	bodies := make([][]byte, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodGet, srv.URL+"/openapi.json", nil)
			if !assert.NoError(t, err) {
				return
			}
			res, err := srv.client.Do(req)
			if !assert.NoError(t, err) {
				return
			}
			defer res.Body.Close()
			assert.Equal(t, http.StatusOK, res.StatusCode)
			bodies[i], _ = io.ReadAll(res.Body)
		}(i)
	}
	wg.Wait()
	for i := 1; i < workers; i++ {
		assert.Equal(t, bodies[0], bodies[i])
	}
}

package logicforgesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal LogicForge HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client for an API rooted at baseURL, e.g. http://localhost:8080/v1.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Program represents the API program model.
type Program struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	CurrentStep int    `json:"current_step"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// ProblemStatement is the step 1 component.
type ProblemStatement struct {
	ID            string   `json:"id,omitempty"`
	ProgramID     string   `json:"program_id,omitempty"`
	ChallengeText string   `json:"challenge_text"`
	RefinedText   string   `json:"refined_text,omitempty"`
	RootCauses    []string `json:"root_causes,omitempty"`
	Theme         string   `json:"theme,omitempty"`
	IsCompleted   bool     `json:"is_completed"`
}

// Stakeholder is a step 2 component.
type Stakeholder struct {
	ID                 string `json:"id,omitempty"`
	ProgramID          string `json:"program_id,omitempty"`
	Name               string `json:"name"`
	Role               string `json:"role,omitempty"`
	EngagementStrategy string `json:"engagement_strategy,omitempty"`
	Priority           string `json:"priority,omitempty"`
}

// Outcome is a step 4 component.
type Outcome struct {
	ID          string `json:"id,omitempty"`
	ProgramID   string `json:"program_id,omitempty"`
	Description string `json:"description"`
	Theme       string `json:"theme,omitempty"`
	Timeframe   string `json:"timeframe,omitempty"`
}

// StepResult reports a step transition; Advanced is false for replays.
type StepResult struct {
	Program  Program `json:"program"`
	Advanced bool    `json:"advanced"`
}

// Model is a catalog entry.
type Model struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Themes      []string `json:"themes"`
}

// SearchMatch is one recommended model.
type SearchMatch struct {
	Model    Model    `json:"model"`
	Distance *float64 `json:"distance,omitempty"`
}

// SearchResult is returned by model search. Degraded results came from
// keyword matching and Reason says why.
type SearchResult struct {
	Strategy string        `json:"strategy"`
	Degraded bool          `json:"degraded"`
	Reason   string        `json:"reason,omitempty"`
	Matches  []SearchMatch `json:"matches"`
}

// Document is a rendered export.
type Document struct {
	ContentType string
	Filename    string
	Finalized   bool
	Content     []byte
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsPreconditionFailed reports whether err is a step gate rejection.
func IsPreconditionFailed(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusPreconditionFailed
}

// CreateProgram creates a program at step 1.
func (c *Client) CreateProgram(ctx context.Context, title, description string) (Program, error) {
	body := map[string]any{"title": title, "description": description}
	var resp Program
	err := c.do(ctx, http.MethodPost, "programs", body, &resp)
	return resp, err
}

// GetProgram fetches a program by id.
func (c *Client) GetProgram(ctx context.Context, id string) (Program, error) {
	var resp Program
	err := c.do(ctx, http.MethodGet, programPath(id, ""), nil, &resp)
	return resp, err
}

// DeleteProgram removes a program and its components.
func (c *Client) DeleteProgram(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, programPath(id, ""), nil, nil)
}

// SaveProblemStatement creates or replaces the program's problem statement.
func (c *Client) SaveProblemStatement(ctx context.Context, programID string, ps ProblemStatement) (ProblemStatement, error) {
	var resp ProblemStatement
	err := c.do(ctx, http.MethodPut, programPath(programID, "problem-statement"), ps, &resp)
	return resp, err
}

// AddStakeholder adds a stakeholder to a program.
func (c *Client) AddStakeholder(ctx context.Context, programID string, s Stakeholder) (Stakeholder, error) {
	var resp Stakeholder
	err := c.do(ctx, http.MethodPost, programPath(programID, "stakeholders"), s, &resp)
	return resp, err
}

// AddOutcome adds an outcome to a program.
func (c *Client) AddOutcome(ctx context.Context, programID string, o Outcome) (Outcome, error) {
	var resp Outcome
	err := c.do(ctx, http.MethodPost, programPath(programID, "outcomes"), o, &resp)
	return resp, err
}

// CompleteStep asks the server to advance the program past step.
func (c *Client) CompleteStep(ctx context.Context, programID string, step int) (StepResult, error) {
	var resp StepResult
	err := c.do(ctx, http.MethodPost, programPath(programID, "steps/"+strconv.Itoa(step)+"/complete"), nil, &resp)
	return resp, err
}

// SearchModels recommends catalog models for a free-text query.
func (c *Client) SearchModels(ctx context.Context, query, theme string, limit int) (SearchResult, error) {
	body := map[string]any{"query": query}
	if theme != "" {
		body["theme"] = theme
	}
	if limit > 0 {
		body["limit"] = limit
	}
	var resp SearchResult
	err := c.do(ctx, http.MethodPost, "models/search", body, &resp)
	return resp, err
}

// Export renders the program in format (json, csv or text).
func (c *Client) Export(ctx context.Context, programID, format string) (Document, error) {
	endpoint := programPath(programID, "export")
	if format != "" {
		endpoint += "?format=" + url.QueryEscape(format)
	}
	resp, err := c.send(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return Document{}, err
	}
	defer resp.Body.Close()
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return Document{}, err
	}
	doc := Document{
		ContentType: resp.Header.Get("Content-Type"),
		Finalized:   resp.Header.Get("X-LogicForge-Finalized") == "true",
		Content:     content,
	}
	if _, name, ok := strings.Cut(resp.Header.Get("Content-Disposition"), "filename="); ok {
		doc.Filename = strings.Trim(name, `"`)
	}
	return doc, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	resp, err := c.send(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, endpoint string, body any) (*http.Response, error) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

func decodeAPIError(resp *http.Response) error {
	b, _ := io.ReadAll(resp.Body)
	apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if json.Unmarshal(b, &envelope) == nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		apiErr.Details = envelope.Error.Details
	}
	return apiErr
}

func programPath(id, sub string) string {
	p := "programs/" + url.PathEscape(id)
	if sub != "" {
		p += "/" + sub
	}
	return p
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

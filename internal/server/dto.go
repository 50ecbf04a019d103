package server

import (
	"encoding/json"

	"logicforge/internal/domain"
	"logicforge/internal/engine"
)

// Request payloads

type CreateProgramRequest struct {
	Title       string `json:"title" minLength:"1"`
	Description string `json:"description,omitempty"`
}

type UpdateProgramRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

type ProblemStatementRequest struct {
	ChallengeText string   `json:"challenge_text"`
	RefinedText   string   `json:"refined_text,omitempty"`
	RootCauses    []string `json:"root_causes,omitempty"`
	Theme         string   `json:"theme,omitempty"`
	IsCompleted   bool     `json:"is_completed,omitempty"`
}

type StakeholderRequest struct {
	Name               string `json:"name"`
	Role               string `json:"role,omitempty"`
	EngagementStrategy string `json:"engagement_strategy,omitempty"`
	Priority           string `json:"priority,omitempty"`
	IsAISuggested      bool   `json:"is_ai_suggested,omitempty"`
}

type SelectModelRequest struct {
	ProvenModelID string `json:"proven_model_id"`
	Notes         string `json:"notes,omitempty"`
}

type OutcomeRequest struct {
	Description string `json:"description"`
	Theme       string `json:"theme,omitempty"`
	Timeframe   string `json:"timeframe,omitempty"`
}

type IndicatorRequest struct {
	Type              string `json:"type" enum:"outcome,output"`
	Description       string `json:"description"`
	MeasurementMethod string `json:"measurement_method,omitempty"`
	TargetValue       string `json:"target_value,omitempty"`
	BaselineValue     string `json:"baseline_value,omitempty"`
	Frequency         string `json:"frequency,omitempty"`
	DataSource        string `json:"data_source,omitempty"`
	IsAIGenerated     bool   `json:"is_ai_generated,omitempty"`
}

type SearchModelsRequest struct {
	Query string `json:"query"`
	Theme string `json:"theme,omitempty"`
	Limit int    `json:"limit,omitempty" minimum:"0" maximum:"50"`
}

type FromTemplateRequest struct {
	Title string `json:"title,omitempty"`
}

type RefineProblemRequest struct {
	ChallengeText string `json:"challenge_text,omitempty"`
}

type GenerateIndicatorsRequest struct {
	OutcomeID string `json:"outcome_id"`
}

type ActivityRequest struct {
	OutcomeID         string `json:"outcome_id,omitempty"`
	Title             string `json:"title" maxLength:"255"`
	Description       string `json:"description,omitempty"`
	StartDate         string `json:"start_date" example:"2024-02-01"`
	EndDate           string `json:"end_date" example:"2024-02-28"`
	Status            string `json:"status,omitempty"`
	ResponsiblePerson string `json:"responsible_person,omitempty"`
	ResourcesNeeded   string `json:"resources_needed,omitempty"`
}

type ActivityPatchRequest struct {
	OutcomeID          *string `json:"outcome_id,omitempty"`
	Title              *string `json:"title,omitempty"`
	Description        *string `json:"description,omitempty"`
	StartDate          *string `json:"start_date,omitempty"`
	EndDate            *string `json:"end_date,omitempty"`
	Status             *string `json:"status,omitempty"`
	ResponsiblePerson  *string `json:"responsible_person,omitempty"`
	ResourcesNeeded    *string `json:"resources_needed,omitempty"`
	ProgressPercentage *int    `json:"progress_percentage,omitempty"`
}

func activityInput(r ActivityRequest) engine.ActivityInput {
	return engine.ActivityInput(r)
}

func activityPatch(r ActivityPatchRequest) engine.ActivityPatch {
	return engine.ActivityPatch(r)
}

type CommentRequest struct {
	UserName string `json:"user_name,omitempty"`
	Content  string `json:"content"`
	Section  string `json:"section,omitempty"`
}

type VersionRequest struct {
	UserName    string         `json:"user_name,omitempty"`
	Description string         `json:"description"`
	Changes     map[string]any `json:"changes,omitempty"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name"`
}

type DevLoginRequest struct {
	UserID string `json:"user_id"`
}

// Response payloads

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	ProgramID  string         `json:"program_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type APIKeyResponse struct {
	domain.APIKey
	Key string `json:"key"`
}

type DevLoginResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	UserID    string `json:"user_id"`
}

type paginatedPrograms struct {
	Items      []domain.Program `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type itemsResponse[T any] struct {
	Items []T `json:"items"`
}

// Conversion helpers

func problemInput(req ProblemStatementRequest) engine.ProblemStatementInput {
	return engine.ProblemStatementInput{
		ChallengeText: req.ChallengeText,
		RefinedText:   req.RefinedText,
		RootCauses:    req.RootCauses,
		Theme:         req.Theme,
		IsCompleted:   req.IsCompleted,
	}
}

func stakeholderInput(req StakeholderRequest) engine.StakeholderInput {
	return engine.StakeholderInput(req)
}

func outcomeInput(req OutcomeRequest) engine.OutcomeInput {
	return engine.OutcomeInput(req)
}

func indicatorInput(req IndicatorRequest) engine.IndicatorInput {
	return engine.IndicatorInput(req)
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		ProgramID:  e.ProgramID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil
	}
	return obj
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

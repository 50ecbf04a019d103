package domain

import (
	mapset "github.com/deckarep/golang-set/v2"
)

const (
	StatusDraft      = "draft"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

const (
	FirstStep = 1
	LastStep  = 5
)

// Themes is the closed vocabulary used to classify problems and filter the catalog.
var Themes = []string{"FLN", "Career Readiness", "STEM", "Life Skills", "Other"}

func ValidTheme(theme string) bool {
	for _, t := range Themes {
		if t == theme {
			return true
		}
	}
	return false
}

type User struct {
	ID           string `json:"id"`
	Email        string `json:"email,omitempty"`
	FullName     string `json:"full_name,omitempty"`
	Organization string `json:"organization,omitempty"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

type Program struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status" enum:"draft,in_progress,completed"`
	CurrentStep int    `json:"current_step" minimum:"1" maximum:"5"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

type ProblemStatement struct {
	ID            string   `json:"id"`
	ProgramID     string   `json:"program_id"`
	ChallengeText string   `json:"challenge_text"`
	RefinedText   string   `json:"refined_text,omitempty"`
	RootCauses    []string `json:"root_causes"`
	Theme         string   `json:"theme,omitempty"`
	IsCompleted   bool     `json:"is_completed"`
	CreatedAt     string   `json:"created_at" format:"date-time"`
	UpdatedAt     string   `json:"updated_at" format:"date-time"`
}

type Stakeholder struct {
	ID                 string `json:"id"`
	ProgramID          string `json:"program_id"`
	Name               string `json:"name"`
	Role               string `json:"role,omitempty"`
	EngagementStrategy string `json:"engagement_strategy,omitempty"`
	Priority           string `json:"priority" enum:"high,medium,low"`
	IsAISuggested      bool   `json:"is_ai_suggested"`
	CreatedAt          string `json:"created_at" format:"date-time"`
	UpdatedAt          string `json:"updated_at" format:"date-time"`
}

type ProvenModel struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Description         string    `json:"description,omitempty"`
	ImplementationGuide string    `json:"implementation_guide,omitempty"`
	EvidenceBase        string    `json:"evidence_base,omitempty"`
	SourceURL           string    `json:"source_url,omitempty"`
	Themes              []string  `json:"themes"`
	TargetOutcomes      []string  `json:"target_outcomes"`
	Embedding           []float32 `json:"-"`
	CreatedAt           string    `json:"created_at" format:"date-time"`
	UpdatedAt           string    `json:"updated_at" format:"date-time"`
}

// HasTheme reports whether theme is one of the model's tags.
func (m ProvenModel) HasTheme(theme string) bool {
	return mapset.NewSet(m.Themes...).Contains(theme)
}

type ProgramModel struct {
	ID            string      `json:"id"`
	ProgramID     string      `json:"program_id"`
	ProvenModelID string      `json:"proven_model_id"`
	Notes         string      `json:"notes,omitempty"`
	Model         ProvenModel `json:"model"`
	CreatedAt     string      `json:"created_at" format:"date-time"`
}

type Outcome struct {
	ID          string      `json:"id"`
	ProgramID   string      `json:"program_id"`
	Description string      `json:"description"`
	Theme       string      `json:"theme,omitempty"`
	Timeframe   string      `json:"timeframe,omitempty"`
	Indicators  []Indicator `json:"indicators"`
	CreatedAt   string      `json:"created_at" format:"date-time"`
	UpdatedAt   string      `json:"updated_at" format:"date-time"`
}

type Indicator struct {
	ID                string `json:"id"`
	OutcomeID         string `json:"outcome_id"`
	Type              string `json:"type" enum:"outcome,output"`
	Description       string `json:"description"`
	MeasurementMethod string `json:"measurement_method,omitempty"`
	TargetValue       string `json:"target_value,omitempty"`
	BaselineValue     string `json:"baseline_value,omitempty"`
	Frequency         string `json:"frequency,omitempty"`
	DataSource        string `json:"data_source,omitempty"`
	IsAIGenerated     bool   `json:"is_ai_generated"`
	CreatedAt         string `json:"created_at" format:"date-time"`
	UpdatedAt         string `json:"updated_at" format:"date-time"`
}

type GeneratedDocument struct {
	ID          string `json:"id"`
	ProgramID   string `json:"program_id"`
	Format      string `json:"format"`
	Filename    string `json:"filename"`
	SizeBytes   int    `json:"size_bytes"`
	GeneratedAt string `json:"generated_at" format:"date-time"`
}

// ProgramSnapshot is everything a renderer needs to lay out a program design.
type ProgramSnapshot struct {
	Program      Program           `json:"program"`
	Problem      *ProblemStatement `json:"problem_statement,omitempty"`
	Stakeholders []Stakeholder     `json:"stakeholders"`
	Models       []ProgramModel    `json:"models"`
	Outcomes     []Outcome         `json:"outcomes"`
}

type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon,omitempty"`
	StepNumber  int    `json:"step_number"`
	Earned      bool   `json:"earned"`
}

type UserBadge struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	BadgeID   string `json:"badge_id"`
	ProgramID string `json:"program_id"`
	EarnedAt  string `json:"earned_at" format:"date-time"`
}

type Comment struct {
	ID         string `json:"id"`
	ProgramID  string `json:"program_id"`
	UserID     string `json:"user_id"`
	UserName   string `json:"user_name,omitempty"`
	Content    string `json:"content"`
	Section    string `json:"section" enum:"problem,stakeholders,models,outcomes,general"`
	IsResolved bool   `json:"is_resolved"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

type Version struct {
	ID            string         `json:"id"`
	ProgramID     string         `json:"program_id"`
	VersionNumber int            `json:"version_number"`
	UserID        string         `json:"user_id"`
	UserName      string         `json:"user_name,omitempty"`
	Description   string         `json:"description"`
	Changes       map[string]any `json:"changes"`
	CreatedAt     string         `json:"created_at" format:"date-time"`
}

// Activity statuses.
const (
	ActivityPlanned    = "planned"
	ActivityInProgress = "in_progress"
	ActivityCompleted  = "completed"
	ActivityDelayed    = "delayed"
)

// Activity is a scheduled piece of implementation work. Dates are calendar
// days (YYYY-MM-DD).
type Activity struct {
	ID                 string `json:"id"`
	ProgramID          string `json:"program_id"`
	OutcomeID          string `json:"outcome_id,omitempty"`
	Title              string `json:"title"`
	Description        string `json:"description,omitempty"`
	StartDate          string `json:"start_date" format:"date"`
	EndDate            string `json:"end_date" format:"date"`
	Status             string `json:"status" enum:"planned,in_progress,completed,delayed"`
	ResponsiblePerson  string `json:"responsible_person,omitempty"`
	ResourcesNeeded    string `json:"resources_needed,omitempty"`
	ProgressPercentage int    `json:"progress_percentage" minimum:"0" maximum:"100"`
	CreatedAt          string `json:"created_at" format:"date-time"`
	UpdatedAt          string `json:"updated_at" format:"date-time"`
}

// TimelineItem is one Gantt bar.
type TimelineItem struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Start        string   `json:"start" format:"date"`
	End          string   `json:"end" format:"date"`
	Progress     int      `json:"progress"`
	Status       string   `json:"status"`
	Dependencies []string `json:"dependencies"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProgramID  string `json:"program_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	KeyHash   string `json:"-"`
	CreatedAt string `json:"created_at"`
}

type UserStats struct {
	UserID            string `json:"user_id"`
	TotalXP           int    `json:"total_xp"`
	Level             int    `json:"level"`
	LevelTitle        string `json:"level_title"`
	XPToNextLevel     int    `json:"xp_to_next_level"`
	BadgesEarned      int    `json:"badges_earned"`
	ProgramsCreated   int    `json:"programs_created"`
	ProgramsCompleted int    `json:"programs_completed"`
}

type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	UserID     string `json:"user_id"`
	TotalXP    int    `json:"total_xp"`
	Level      int    `json:"level"`
	LevelTitle string `json:"level_title"`
}

// ProgressPoint is the cumulative state at the end of one week.
type ProgressPoint struct {
	Label     string `json:"label"`
	WeekStart string `json:"week_start" format:"date"`
	Programs  int    `json:"programs"`
	XP        int    `json:"xp"`
}

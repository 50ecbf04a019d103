package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"logicforge/internal/config"
	"logicforge/internal/domain"
	"logicforge/internal/engine/auth"
	"logicforge/internal/events"
	"logicforge/internal/metrics"
	"logicforge/internal/repo"
)

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Events  events.Writer
	Auth    auth.Service
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

func New(db *sql.DB, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := repo.Repo{DB: db}
	return Engine{
		DB:      db,
		Repo:    r,
		Events:  events.Writer{Now: time.Now},
		Auth:    auth.Service{Repo: r},
		Config:  cfg,
		Logger:  logger,
		Metrics: m,
		Now:     time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) events() events.Writer {
	w := e.Events
	w.Now = e.now
	return w
}

func (e Engine) logger() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return zap.NewNop()
}

func newID() string {
	return uuid.NewString()
}

// ProgramCreateOptions are parameters for creating a program.
type ProgramCreateOptions struct {
	UserID      string
	Title       string
	Description string
}

// CreateProgram creates a program at step 1 in draft status.
func (e Engine) CreateProgram(ctx context.Context, opts ProgramCreateOptions) (domain.Program, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Program{}, err
	}
	defer tx.Rollback()

	p, err := e.createProgramTx(ctx, tx, opts)
	if err != nil {
		return domain.Program{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Program{}, err
	}
	return p, nil
}

func (e Engine) createProgramTx(ctx context.Context, tx *sql.Tx, opts ProgramCreateOptions) (domain.Program, error) {
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		return domain.Program{}, invalid("title", "required")
	}
	if strings.TrimSpace(opts.UserID) == "" {
		return domain.Program{}, invalid("user_id", "required")
	}
	ts := e.timestamp()
	if err := e.Repo.EnsureUser(ctx, tx, domain.User{ID: opts.UserID, CreatedAt: ts}); err != nil {
		return domain.Program{}, fmt.Errorf("ensure user: %w", err)
	}
	p := domain.Program{
		ID:          newID(),
		UserID:      opts.UserID,
		Title:       title,
		Description: opts.Description,
		Status:      domain.StatusDraft,
		CurrentStep: domain.FirstStep,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if err := e.Repo.InsertProgram(ctx, tx, p); err != nil {
		return domain.Program{}, fmt.Errorf("insert program: %w", err)
	}
	if err := e.events().Append(ctx, tx, events.ProgramCreated, p.ID, "program", p.ID, opts.UserID, events.EventPayload{"title": p.Title}); err != nil {
		return domain.Program{}, err
	}
	return p, nil
}

func (e Engine) GetProgram(ctx context.Context, id string) (domain.Program, error) {
	return e.Repo.GetProgram(ctx, nil, id)
}

func (e Engine) ListPrograms(ctx context.Context, f repo.ProgramFilters) ([]domain.Program, error) {
	return e.Repo.ListPrograms(ctx, f)
}

// UpdateProgram changes the descriptive fields of a program. Step and status
// only move through CompleteStep and Finalize.
func (e Engine) UpdateProgram(ctx context.Context, id string, title, description *string, actorID string) (domain.Program, error) {
	if title != nil && strings.TrimSpace(*title) == "" {
		return domain.Program{}, invalid("title", "must not be empty")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Program{}, err
	}
	defer tx.Rollback()

	if title != nil {
		trimmed := strings.TrimSpace(*title)
		title = &trimmed
	}
	if err := e.Repo.UpdateProgramDetails(ctx, tx, id, title, description, e.timestamp()); err != nil {
		return domain.Program{}, err
	}
	payload := events.EventPayload{}
	if title != nil {
		payload["title"] = *title
	}
	if description != nil {
		payload["description"] = *description
	}
	if err := e.events().Append(ctx, tx, events.ProgramUpdated, id, "program", id, actorID, payload); err != nil {
		return domain.Program{}, err
	}
	p, err := e.Repo.GetProgram(ctx, tx, id)
	if err != nil {
		return domain.Program{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Program{}, err
	}
	return p, nil
}

// DeleteProgram removes a program and, by cascade, everything it owns.
func (e Engine) DeleteProgram(ctx context.Context, id, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.DeleteProgram(ctx, tx, id); err != nil {
		return err
	}
	// The program's own events cascade away; this one outlives it.
	if err := e.events().Append(ctx, tx, events.ProgramDeleted, "", "program", id, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"logicforge/internal/domain"
	"logicforge/internal/events"
	"logicforge/internal/repo"
)

var commentSections = map[string]bool{
	"problem":      true,
	"stakeholders": true,
	"models":       true,
	"outcomes":     true,
	"general":      true,
}

// CommentInput carries a new comment.
type CommentInput struct {
	UserID   string
	UserName string
	Content  string
	Section  string
}

func (e Engine) AddComment(ctx context.Context, programID string, in CommentInput) (domain.Comment, error) {
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return domain.Comment{}, invalid("content", "required")
	}
	if in.Section == "" {
		in.Section = "general"
	}
	if !commentSections[in.Section] {
		return domain.Comment{}, invalid("section", "must be problem, stakeholders, models, outcomes or general")
	}
	var c domain.Comment
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.requireProgram(ctx, tx, programID); err != nil {
			return err
		}
		c = domain.Comment{
			ID:        newID(),
			ProgramID: programID,
			UserID:    in.UserID,
			UserName:  in.UserName,
			Content:   in.Content,
			Section:   in.Section,
			CreatedAt: e.timestamp(),
		}
		if err := e.Repo.InsertComment(ctx, tx, c); err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}
		return e.events().Append(ctx, tx, events.CommentAdded, programID, "comment", c.ID, in.UserID, events.EventPayload{"section": c.Section})
	})
	return c, err
}

func (e Engine) ResolveComment(ctx context.Context, programID, id, actorID string) (domain.Comment, error) {
	var c domain.Comment
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.ResolveComment(ctx, tx, programID, id); err != nil {
			return err
		}
		var err error
		if c, err = e.Repo.GetComment(ctx, tx, programID, id); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, events.CommentResolved, programID, "comment", id, actorID, nil)
	})
	return c, err
}

func (e Engine) ListComments(ctx context.Context, programID, section string) ([]domain.Comment, error) {
	return e.Repo.ListComments(ctx, programID, section)
}

// VersionInput describes a saved snapshot of a program's design.
type VersionInput struct {
	UserID      string
	UserName    string
	Description string
	Changes     map[string]any
}

// CreateVersion records a numbered version. Numbers are assigned per program
// inside the inserting transaction.
func (e Engine) CreateVersion(ctx context.Context, programID string, in VersionInput) (domain.Version, error) {
	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" {
		return domain.Version{}, invalid("description", "required")
	}
	var v domain.Version
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.requireProgram(ctx, tx, programID); err != nil {
			return err
		}
		n, err := e.Repo.NextVersionNumber(ctx, tx, programID)
		if err != nil {
			return err
		}
		changes := in.Changes
		if changes == nil {
			changes = map[string]any{}
		}
		v = domain.Version{
			ID:            newID(),
			ProgramID:     programID,
			VersionNumber: n,
			UserID:        in.UserID,
			UserName:      in.UserName,
			Description:   in.Description,
			Changes:       changes,
			CreatedAt:     e.timestamp(),
		}
		if err := e.Repo.InsertVersion(ctx, tx, v); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
		return e.events().Append(ctx, tx, events.VersionCreated, programID, "version", v.ID, in.UserID, events.EventPayload{"version_number": n})
	})
	return v, err
}

func (e Engine) ListVersions(ctx context.Context, programID string) ([]domain.Version, error) {
	return e.Repo.ListVersions(ctx, programID)
}

func (e Engine) GetVersion(ctx context.Context, programID string, number int) (domain.Version, error) {
	return e.Repo.GetVersion(ctx, programID, number)
}

// ProgramEvents returns the program's recorded events, newest first.
func (e Engine) ProgramEvents(ctx context.Context, programID string, limit int, cursor int64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 10
	}
	return e.Repo.LatestEvents(ctx, repo.EventFilters{ProgramID: programID, Limit: limit, Cursor: cursor})
}

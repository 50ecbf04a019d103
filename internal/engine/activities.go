package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"logicforge/internal/domain"
	"logicforge/internal/events"
	"logicforge/internal/repo"
)

const dateLayout = "2006-01-02"

var activityStatuses = map[string]bool{
	domain.ActivityPlanned:    true,
	domain.ActivityInProgress: true,
	domain.ActivityCompleted:  true,
	domain.ActivityDelayed:    true,
}

// ActivityInput carries a new activity.
type ActivityInput struct {
	OutcomeID         string
	Title             string
	Description       string
	StartDate         string
	EndDate           string
	Status            string
	ResponsiblePerson string
	ResourcesNeeded   string
}

// ActivityPatch updates the fields that are set.
type ActivityPatch struct {
	OutcomeID          *string
	Title              *string
	Description        *string
	StartDate          *string
	EndDate            *string
	Status             *string
	ResponsiblePerson  *string
	ResourcesNeeded    *string
	ProgressPercentage *int
}

func validateActivity(a *domain.Activity) error {
	a.Title = strings.TrimSpace(a.Title)
	if a.Title == "" {
		return invalid("title", "required")
	}
	if len(a.Title) > 255 {
		return invalid("title", "must be at most 255 characters")
	}
	start, err := time.Parse(dateLayout, a.StartDate)
	if err != nil {
		return invalid("start_date", "must be a date (YYYY-MM-DD)")
	}
	end, err := time.Parse(dateLayout, a.EndDate)
	if err != nil {
		return invalid("end_date", "must be a date (YYYY-MM-DD)")
	}
	if end.Before(start) {
		return invalid("end_date", "must not be before start_date")
	}
	if a.Status == "" {
		a.Status = domain.ActivityPlanned
	}
	if !activityStatuses[a.Status] {
		return invalid("status", "must be planned, in_progress, completed or delayed")
	}
	if a.ProgressPercentage < 0 || a.ProgressPercentage > 100 {
		return invalid("progress_percentage", "must be between 0 and 100")
	}
	return nil
}

// requireOutcomeLink checks that a linked outcome belongs to the program.
func (e Engine) requireOutcomeLink(ctx context.Context, tx *sql.Tx, programID, outcomeID string) error {
	if outcomeID == "" {
		return nil
	}
	_, err := e.Repo.GetOutcome(ctx, tx, programID, outcomeID)
	if errors.Is(err, repo.ErrNotFound) {
		return invalid("outcome_id", "not an outcome of this program")
	}
	return err
}

func (e Engine) ListActivities(ctx context.Context, programID string) ([]domain.Activity, error) {
	return e.Repo.ListActivities(ctx, programID)
}

func (e Engine) GetActivity(ctx context.Context, programID, id string) (domain.Activity, error) {
	return e.Repo.GetActivity(ctx, nil, programID, id)
}

// AddActivity schedules an activity. New activities start at 0% progress.
func (e Engine) AddActivity(ctx context.Context, programID string, in ActivityInput, actorID string) (domain.Activity, error) {
	now := e.timestamp()
	a := domain.Activity{
		ID:                newID(),
		ProgramID:         programID,
		OutcomeID:         strings.TrimSpace(in.OutcomeID),
		Title:             in.Title,
		Description:       strings.TrimSpace(in.Description),
		StartDate:         in.StartDate,
		EndDate:           in.EndDate,
		Status:            in.Status,
		ResponsiblePerson: strings.TrimSpace(in.ResponsiblePerson),
		ResourcesNeeded:   strings.TrimSpace(in.ResourcesNeeded),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := validateActivity(&a); err != nil {
		return domain.Activity{}, err
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.requireProgram(ctx, tx, programID); err != nil {
			return err
		}
		if err := e.requireOutcomeLink(ctx, tx, programID, a.OutcomeID); err != nil {
			return err
		}
		if err := e.Repo.InsertActivity(ctx, tx, a); err != nil {
			return fmt.Errorf("insert activity: %w", err)
		}
		return e.events().Append(ctx, tx, events.ActivityAdded, programID, "activity", a.ID, actorID, events.EventPayload{"status": a.Status})
	})
	return a, err
}

// UpdateActivity applies patch to the stored activity and revalidates the result.
func (e Engine) UpdateActivity(ctx context.Context, programID, id string, patch ActivityPatch, actorID string) (domain.Activity, error) {
	var a domain.Activity
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		current, err := e.Repo.GetActivity(ctx, tx, programID, id)
		if err != nil {
			return err
		}
		applyActivityPatch(&current, patch)
		if err := validateActivity(&current); err != nil {
			return err
		}
		if err := e.requireOutcomeLink(ctx, tx, programID, current.OutcomeID); err != nil {
			return err
		}
		current.UpdatedAt = e.timestamp()
		if err := e.Repo.UpdateActivity(ctx, tx, current); err != nil {
			return err
		}
		a = current
		return e.events().Append(ctx, tx, events.ActivityUpdated, programID, "activity", id, actorID,
			events.EventPayload{"status": a.Status, "progress_percentage": a.ProgressPercentage})
	})
	return a, err
}

func applyActivityPatch(a *domain.Activity, p ActivityPatch) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&a.OutcomeID, p.OutcomeID)
	set(&a.Title, p.Title)
	set(&a.Description, p.Description)
	set(&a.StartDate, p.StartDate)
	set(&a.EndDate, p.EndDate)
	set(&a.Status, p.Status)
	set(&a.ResponsiblePerson, p.ResponsiblePerson)
	set(&a.ResourcesNeeded, p.ResourcesNeeded)
	if p.ProgressPercentage != nil {
		a.ProgressPercentage = *p.ProgressPercentage
	}
}

func (e Engine) RemoveActivity(ctx context.Context, programID, id, actorID string) error {
	return e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.DeleteActivity(ctx, tx, programID, id); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, events.ActivityRemoved, programID, "activity", id, actorID, nil)
	})
}

// ActivityTimeline lays the program's activities out as Gantt bars in schedule order.
func (e Engine) ActivityTimeline(ctx context.Context, programID string) ([]domain.TimelineItem, error) {
	activities, err := e.Repo.ListActivities(ctx, programID)
	if err != nil {
		return nil, err
	}
	items := make([]domain.TimelineItem, 0, len(activities))
	for _, a := range activities {
		items = append(items, domain.TimelineItem{
			ID:           a.ID,
			Name:         a.Title,
			Start:        a.StartDate,
			End:          a.EndDate,
			Progress:     a.ProgressPercentage,
			Status:       a.Status,
			Dependencies: []string{},
		})
	}
	return items, nil
}

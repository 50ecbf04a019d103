package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types appended by the engine.
const (
	ProgramCreated       = "program.created"
	ProgramUpdated       = "program.updated"
	ProgramDeleted       = "program.deleted"
	ProgramStepCompleted = "program.step_completed"
	ProgramCompleted     = "program.completed"
	ProblemUpdated       = "problem_statement.updated"
	StakeholderAdded     = "stakeholder.added"
	StakeholderUpdated   = "stakeholder.updated"
	StakeholderRemoved   = "stakeholder.removed"
	ModelSelected        = "model.selected"
	ModelDeselected      = "model.deselected"
	OutcomeAdded         = "outcome.added"
	OutcomeUpdated       = "outcome.updated"
	OutcomeRemoved       = "outcome.removed"
	IndicatorAdded       = "indicator.added"
	IndicatorUpdated     = "indicator.updated"
	IndicatorRemoved     = "indicator.removed"
	DocumentGenerated    = "document.generated"
	BadgeEarned          = "badge.earned"
	CommentAdded         = "comment.added"
	CommentResolved      = "comment.resolved"
	VersionCreated       = "version.created"
	ActivityAdded        = "activity.added"
	ActivityUpdated      = "activity.updated"
	ActivityRemoved      = "activity.removed"
)

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append records an event inside tx so it commits or rolls back with the change it describes.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, programID, entityKind, entityID, actorID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,program_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		ts, evtType, nullable(programID), entityKind, nullable(entityID), actorID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

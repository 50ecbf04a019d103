package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"logicforge/internal/domain"
	"logicforge/internal/events"
	"logicforge/internal/repo"
)

// stepGate is the predicate a program must satisfy to leave step.
type stepGate struct {
	step      int
	condition string
	check     func(ctx context.Context, r repo.Repo, tx *sql.Tx, programID string) (bool, error)
}

// Model selection (step 3) has no minimum and indicators are not counted for
// step 4.
var stepGates = []stepGate{
	{step: 1, condition: "problem statement must be marked complete", check: problemStatementCompleted},
	{step: 2, condition: "at least one stakeholder is required", check: hasStakeholders},
	{step: 3},
	{step: 4, condition: "at least one outcome is required", check: hasOutcomes},
}

func problemStatementCompleted(ctx context.Context, r repo.Repo, tx *sql.Tx, programID string) (bool, error) {
	ps, err := r.GetProblemStatement(ctx, tx, programID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ps.IsCompleted, nil
}

func hasStakeholders(ctx context.Context, r repo.Repo, tx *sql.Tx, programID string) (bool, error) {
	n, err := r.CountStakeholders(ctx, tx, programID)
	return n > 0, err
}

func hasOutcomes(ctx context.Context, r repo.Repo, tx *sql.Tx, programID string) (bool, error) {
	n, err := r.CountOutcomes(ctx, tx, programID)
	return n > 0, err
}

func gateFor(step int) (stepGate, bool) {
	for _, g := range stepGates {
		if g.step == step {
			return g, true
		}
	}
	return stepGate{}, false
}

// StepResult is the program state after a completion attempt.
type StepResult struct {
	Program  domain.Program `json:"program"`
	Advanced bool           `json:"advanced"`
}

// CompleteStep advances a program from step to step+1 when the step's gate
// holds. A request for a step the program is not at returns the current state
// unchanged. The gate read and the conditional write share one transaction.
func (e Engine) CompleteStep(ctx context.Context, programID string, step int, actorID string) (StepResult, error) {
	gate, ok := gateFor(step)
	if !ok {
		return StepResult{}, fmt.Errorf("%w: step %d has no forward transition", ErrInvalidStep, step)
	}
	label := strconv.Itoa(step)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return StepResult{}, err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetProgram(ctx, tx, programID)
	if err != nil {
		return StepResult{}, err
	}
	// Checked before the gate: a replayed completion returns the current state
	// even when the step's gate no longer holds.
	if p.CurrentStep != step {
		e.Metrics.StepTransition(label, "noop")
		return StepResult{Program: p}, nil
	}
	if gate.check != nil {
		passed, err := gate.check(ctx, e.Repo, tx, programID)
		if err != nil {
			return StepResult{}, fmt.Errorf("check step %d gate: %w", step, err)
		}
		if !passed {
			e.Metrics.StepTransition(label, "precondition_failed")
			return StepResult{}, &PreconditionError{Step: step, Condition: gate.condition}
		}
	}

	status := p.Status
	if step+1 == 2 && status == domain.StatusDraft {
		status = domain.StatusInProgress
	}
	ts := e.timestamp()
	advanced, err := e.Repo.AdvanceStep(ctx, tx, programID, step, status, ts)
	if err != nil {
		return StepResult{}, fmt.Errorf("advance program: %w", err)
	}
	if !advanced {
		current, err := e.Repo.GetProgram(ctx, tx, programID)
		if err != nil {
			return StepResult{}, err
		}
		e.Metrics.StepTransition(label, "noop")
		return StepResult{Program: current}, nil
	}
	if err := e.awardStepBadge(ctx, tx, p, step, actorID); err != nil {
		return StepResult{}, err
	}
	if err := e.events().Append(ctx, tx, events.ProgramStepCompleted, programID, "program", programID, actorID, events.EventPayload{
		"from_step": step,
		"to_step":   step + 1,
		"status":    status,
	}); err != nil {
		return StepResult{}, err
	}
	updated, err := e.Repo.GetProgram(ctx, tx, programID)
	if err != nil {
		return StepResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return StepResult{}, err
	}
	e.Metrics.StepTransition(label, "advanced")
	e.logger().Info("program step completed",
		zap.String("program_id", programID),
		zap.Int("step", step),
		zap.String("status", updated.Status))
	return StepResult{Program: updated, Advanced: true}, nil
}

// Finalize marks a program at the last step completed. Programs at earlier
// steps, or already completed, are returned unchanged.
func (e Engine) Finalize(ctx context.Context, programID, actorID string) (StepResult, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return StepResult{}, err
	}
	defer tx.Rollback()

	res, err := e.finalizeTx(ctx, tx, programID, actorID)
	if err != nil {
		return StepResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return StepResult{}, err
	}
	return res, nil
}

func (e Engine) finalizeTx(ctx context.Context, tx *sql.Tx, programID, actorID string) (StepResult, error) {
	p, err := e.Repo.GetProgram(ctx, tx, programID)
	if err != nil {
		return StepResult{}, err
	}
	changed, err := e.Repo.MarkCompleted(ctx, tx, programID, e.timestamp())
	if err != nil {
		return StepResult{}, fmt.Errorf("complete program: %w", err)
	}
	if !changed {
		return StepResult{Program: p}, nil
	}
	if err := e.awardStepBadge(ctx, tx, p, domain.LastStep, actorID); err != nil {
		return StepResult{}, err
	}
	if err := e.events().Append(ctx, tx, events.ProgramCompleted, programID, "program", programID, actorID, nil); err != nil {
		return StepResult{}, err
	}
	updated, err := e.Repo.GetProgram(ctx, tx, programID)
	if err != nil {
		return StepResult{}, err
	}
	e.Metrics.StepTransition(strconv.Itoa(domain.LastStep), "completed")
	return StepResult{Program: updated, Advanced: true}, nil
}

// awardStepBadge grants the owner the badge tied to step, at most once per program.
func (e Engine) awardStepBadge(ctx context.Context, tx *sql.Tx, p domain.Program, step int, actorID string) error {
	badge, err := e.Repo.GetBadgeForStep(ctx, tx, step)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load badge for step %d: %w", step, err)
	}
	awarded, err := e.Repo.AwardBadge(ctx, tx, domain.UserBadge{
		ID:        newID(),
		UserID:    p.UserID,
		BadgeID:   badge.ID,
		ProgramID: p.ID,
		EarnedAt:  e.timestamp(),
	})
	if err != nil {
		return fmt.Errorf("award badge: %w", err)
	}
	if !awarded {
		return nil
	}
	return e.events().Append(ctx, tx, events.BadgeEarned, p.ID, "badge", badge.ID, actorID, events.EventPayload{
		"user_id": p.UserID,
		"name":    badge.Name,
	})
}

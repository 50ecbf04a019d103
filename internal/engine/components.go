package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"logicforge/internal/domain"
	"logicforge/internal/events"
	"logicforge/internal/repo"
)

// inTx runs fn inside a transaction and commits when it returns nil.
func (e Engine) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// requireProgram fails with repo.ErrNotFound when the program is absent.
func (e Engine) requireProgram(ctx context.Context, tx *sql.Tx, programID string) error {
	_, err := e.Repo.GetProgram(ctx, tx, programID)
	return err
}

// ProblemStatementInput carries the writable fields of a problem statement.
type ProblemStatementInput struct {
	ChallengeText string
	RefinedText   string
	RootCauses    []string
	Theme         string
	IsCompleted   bool
}

func (e Engine) GetProblemStatement(ctx context.Context, programID string) (domain.ProblemStatement, error) {
	return e.Repo.GetProblemStatement(ctx, nil, programID)
}

// SaveProblemStatement creates or replaces the program's problem statement.
func (e Engine) SaveProblemStatement(ctx context.Context, programID string, in ProblemStatementInput, actorID string) (domain.ProblemStatement, error) {
	if strings.TrimSpace(in.ChallengeText) == "" {
		return domain.ProblemStatement{}, invalid("challenge_text", "required")
	}
	if in.Theme != "" && !domain.ValidTheme(in.Theme) {
		return domain.ProblemStatement{}, invalid("theme", fmt.Sprintf("must be one of %s", strings.Join(domain.Themes, ", ")))
	}
	var ps domain.ProblemStatement
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		ps, err = e.saveProblemStatementTx(ctx, tx, programID, in, actorID)
		return err
	})
	return ps, err
}

func (e Engine) saveProblemStatementTx(ctx context.Context, tx *sql.Tx, programID string, in ProblemStatementInput, actorID string) (domain.ProblemStatement, error) {
	if err := e.requireProgram(ctx, tx, programID); err != nil {
		return domain.ProblemStatement{}, err
	}
	ts := e.timestamp()
	ps := domain.ProblemStatement{
		ID:            newID(),
		ProgramID:     programID,
		ChallengeText: strings.TrimSpace(in.ChallengeText),
		RefinedText:   in.RefinedText,
		RootCauses:    nonEmpty(in.RootCauses),
		Theme:         in.Theme,
		IsCompleted:   in.IsCompleted,
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
	existing, err := e.Repo.GetProblemStatement(ctx, tx, programID)
	switch {
	case err == nil:
		ps.ID = existing.ID
		ps.CreatedAt = existing.CreatedAt
	case !errors.Is(err, repo.ErrNotFound):
		return domain.ProblemStatement{}, err
	}
	if err := e.Repo.UpsertProblemStatement(ctx, tx, ps); err != nil {
		return domain.ProblemStatement{}, fmt.Errorf("save problem statement: %w", err)
	}
	if err := e.events().Append(ctx, tx, events.ProblemUpdated, programID, "problem_statement", ps.ID, actorID, events.EventPayload{
		"is_completed": ps.IsCompleted,
		"theme":        ps.Theme,
	}); err != nil {
		return domain.ProblemStatement{}, err
	}
	return ps, nil
}

// StakeholderInput carries the writable fields of a stakeholder.
type StakeholderInput struct {
	Name               string
	Role               string
	EngagementStrategy string
	Priority           string
	IsAISuggested      bool
}

func validateStakeholder(in *StakeholderInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return invalid("name", "required")
	}
	if in.Priority == "" {
		in.Priority = "medium"
	}
	switch in.Priority {
	case "high", "medium", "low":
		return nil
	default:
		return invalid("priority", "must be high, medium or low")
	}
}

func (e Engine) ListStakeholders(ctx context.Context, programID string) ([]domain.Stakeholder, error) {
	return e.Repo.ListStakeholders(ctx, nil, programID)
}

func (e Engine) AddStakeholder(ctx context.Context, programID string, in StakeholderInput, actorID string) (domain.Stakeholder, error) {
	if err := validateStakeholder(&in); err != nil {
		return domain.Stakeholder{}, err
	}
	var s domain.Stakeholder
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		s, err = e.addStakeholderTx(ctx, tx, programID, in, actorID)
		return err
	})
	return s, err
}

func (e Engine) addStakeholderTx(ctx context.Context, tx *sql.Tx, programID string, in StakeholderInput, actorID string) (domain.Stakeholder, error) {
	if err := e.requireProgram(ctx, tx, programID); err != nil {
		return domain.Stakeholder{}, err
	}
	ts := e.timestamp()
	s := domain.Stakeholder{
		ID:                 newID(),
		ProgramID:          programID,
		Name:               in.Name,
		Role:               in.Role,
		EngagementStrategy: in.EngagementStrategy,
		Priority:           in.Priority,
		IsAISuggested:      in.IsAISuggested,
		CreatedAt:          ts,
		UpdatedAt:          ts,
	}
	if err := e.Repo.InsertStakeholder(ctx, tx, s); err != nil {
		return domain.Stakeholder{}, fmt.Errorf("insert stakeholder: %w", err)
	}
	if err := e.events().Append(ctx, tx, events.StakeholderAdded, programID, "stakeholder", s.ID, actorID, events.EventPayload{"name": s.Name}); err != nil {
		return domain.Stakeholder{}, err
	}
	return s, nil
}

func (e Engine) UpdateStakeholder(ctx context.Context, programID, id string, in StakeholderInput, actorID string) (domain.Stakeholder, error) {
	if err := validateStakeholder(&in); err != nil {
		return domain.Stakeholder{}, err
	}
	var s domain.Stakeholder
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		current, err := e.Repo.GetStakeholder(ctx, tx, programID, id)
		if err != nil {
			return err
		}
		current.Name = in.Name
		current.Role = in.Role
		current.EngagementStrategy = in.EngagementStrategy
		current.Priority = in.Priority
		current.UpdatedAt = e.timestamp()
		if err := e.Repo.UpdateStakeholder(ctx, tx, current); err != nil {
			return err
		}
		s = current
		return e.events().Append(ctx, tx, events.StakeholderUpdated, programID, "stakeholder", id, actorID, events.EventPayload{"name": s.Name})
	})
	return s, err
}

func (e Engine) RemoveStakeholder(ctx context.Context, programID, id, actorID string) error {
	return e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.DeleteStakeholder(ctx, tx, programID, id); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, events.StakeholderRemoved, programID, "stakeholder", id, actorID, nil)
	})
}

func (e Engine) ListSelectedModels(ctx context.Context, programID string) ([]domain.ProgramModel, error) {
	return e.Repo.ListProgramModels(ctx, nil, programID)
}

// SelectModel links a catalog model to the program. Selecting an already
// linked model returns the existing link.
func (e Engine) SelectModel(ctx context.Context, programID, modelID, notes, actorID string) (domain.ProgramModel, error) {
	var pm domain.ProgramModel
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.requireProgram(ctx, tx, programID); err != nil {
			return err
		}
		if _, err := e.Repo.GetModel(ctx, tx, modelID); err != nil {
			return err
		}
		inserted, err := e.Repo.InsertProgramModel(ctx, tx, domain.ProgramModel{
			ID:            newID(),
			ProgramID:     programID,
			ProvenModelID: modelID,
			Notes:         notes,
			CreatedAt:     e.timestamp(),
		})
		if err != nil {
			return fmt.Errorf("select model: %w", err)
		}
		if pm, err = e.Repo.GetProgramModel(ctx, tx, programID, modelID); err != nil {
			return err
		}
		if !inserted {
			return nil
		}
		return e.events().Append(ctx, tx, events.ModelSelected, programID, "proven_model", modelID, actorID, events.EventPayload{"name": pm.Model.Name})
	})
	return pm, err
}

func (e Engine) DeselectModel(ctx context.Context, programID, modelID, actorID string) error {
	return e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.DeleteProgramModel(ctx, tx, programID, modelID); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, events.ModelDeselected, programID, "proven_model", modelID, actorID, nil)
	})
}

// OutcomeInput carries the writable fields of an outcome.
type OutcomeInput struct {
	Description string
	Theme       string
	Timeframe   string
}

func validateOutcome(in *OutcomeInput) error {
	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" {
		return invalid("description", "required")
	}
	if in.Theme != "" && !domain.ValidTheme(in.Theme) {
		return invalid("theme", fmt.Sprintf("must be one of %s", strings.Join(domain.Themes, ", ")))
	}
	return nil
}

func (e Engine) ListOutcomes(ctx context.Context, programID string) ([]domain.Outcome, error) {
	return e.Repo.ListOutcomes(ctx, nil, programID)
}

func (e Engine) AddOutcome(ctx context.Context, programID string, in OutcomeInput, actorID string) (domain.Outcome, error) {
	if err := validateOutcome(&in); err != nil {
		return domain.Outcome{}, err
	}
	var o domain.Outcome
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		o, err = e.addOutcomeTx(ctx, tx, programID, in, actorID)
		return err
	})
	return o, err
}

func (e Engine) addOutcomeTx(ctx context.Context, tx *sql.Tx, programID string, in OutcomeInput, actorID string) (domain.Outcome, error) {
	if err := e.requireProgram(ctx, tx, programID); err != nil {
		return domain.Outcome{}, err
	}
	ts := e.timestamp()
	o := domain.Outcome{
		ID:          newID(),
		ProgramID:   programID,
		Description: in.Description,
		Theme:       in.Theme,
		Timeframe:   in.Timeframe,
		Indicators:  []domain.Indicator{},
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if err := e.Repo.InsertOutcome(ctx, tx, o); err != nil {
		return domain.Outcome{}, fmt.Errorf("insert outcome: %w", err)
	}
	if err := e.events().Append(ctx, tx, events.OutcomeAdded, programID, "outcome", o.ID, actorID, nil); err != nil {
		return domain.Outcome{}, err
	}
	return o, nil
}

func (e Engine) UpdateOutcome(ctx context.Context, programID, id string, in OutcomeInput, actorID string) (domain.Outcome, error) {
	if err := validateOutcome(&in); err != nil {
		return domain.Outcome{}, err
	}
	var o domain.Outcome
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		current, err := e.Repo.GetOutcome(ctx, tx, programID, id)
		if err != nil {
			return err
		}
		current.Description = in.Description
		current.Theme = in.Theme
		current.Timeframe = in.Timeframe
		current.UpdatedAt = e.timestamp()
		if err := e.Repo.UpdateOutcome(ctx, tx, current); err != nil {
			return err
		}
		o = current
		return e.events().Append(ctx, tx, events.OutcomeUpdated, programID, "outcome", id, actorID, nil)
	})
	return o, err
}

// RemoveOutcome deletes an outcome together with its indicators.
func (e Engine) RemoveOutcome(ctx context.Context, programID, id, actorID string) error {
	return e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.DeleteOutcome(ctx, tx, programID, id); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, events.OutcomeRemoved, programID, "outcome", id, actorID, nil)
	})
}

// IndicatorInput carries the writable fields of an indicator.
type IndicatorInput struct {
	Type              string
	Description       string
	MeasurementMethod string
	TargetValue       string
	BaselineValue     string
	Frequency         string
	DataSource        string
	IsAIGenerated     bool
}

func validateIndicator(in *IndicatorInput) error {
	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" {
		return invalid("description", "required")
	}
	switch in.Type {
	case "outcome", "output":
		return nil
	default:
		return invalid("type", "must be outcome or output")
	}
}

func (e Engine) AddIndicator(ctx context.Context, programID, outcomeID string, in IndicatorInput, actorID string) (domain.Indicator, error) {
	if err := validateIndicator(&in); err != nil {
		return domain.Indicator{}, err
	}
	var ind domain.Indicator
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		ind, err = e.addIndicatorTx(ctx, tx, programID, outcomeID, in, actorID)
		return err
	})
	return ind, err
}

func (e Engine) addIndicatorTx(ctx context.Context, tx *sql.Tx, programID, outcomeID string, in IndicatorInput, actorID string) (domain.Indicator, error) {
	if _, err := e.Repo.GetOutcome(ctx, tx, programID, outcomeID); err != nil {
		return domain.Indicator{}, err
	}
	ts := e.timestamp()
	ind := domain.Indicator{
		ID:                newID(),
		OutcomeID:         outcomeID,
		Type:              in.Type,
		Description:       in.Description,
		MeasurementMethod: in.MeasurementMethod,
		TargetValue:       in.TargetValue,
		BaselineValue:     in.BaselineValue,
		Frequency:         in.Frequency,
		DataSource:        in.DataSource,
		IsAIGenerated:     in.IsAIGenerated,
		CreatedAt:         ts,
		UpdatedAt:         ts,
	}
	if err := e.Repo.InsertIndicator(ctx, tx, ind); err != nil {
		return domain.Indicator{}, fmt.Errorf("insert indicator: %w", err)
	}
	if err := e.events().Append(ctx, tx, events.IndicatorAdded, programID, "indicator", ind.ID, actorID, events.EventPayload{"outcome_id": outcomeID}); err != nil {
		return domain.Indicator{}, err
	}
	return ind, nil
}

func (e Engine) UpdateIndicator(ctx context.Context, programID, id string, in IndicatorInput, actorID string) (domain.Indicator, error) {
	if err := validateIndicator(&in); err != nil {
		return domain.Indicator{}, err
	}
	var ind domain.Indicator
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		current, err := e.Repo.GetIndicator(ctx, tx, programID, id)
		if err != nil {
			return err
		}
		current.Type = in.Type
		current.Description = in.Description
		current.MeasurementMethod = in.MeasurementMethod
		current.TargetValue = in.TargetValue
		current.BaselineValue = in.BaselineValue
		current.Frequency = in.Frequency
		current.DataSource = in.DataSource
		current.UpdatedAt = e.timestamp()
		if err := e.Repo.UpdateIndicator(ctx, tx, current); err != nil {
			return err
		}
		ind = current
		return e.events().Append(ctx, tx, events.IndicatorUpdated, programID, "indicator", id, actorID, nil)
	})
	return ind, err
}

func (e Engine) RemoveIndicator(ctx context.Context, programID, id, actorID string) error {
	return e.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := e.Repo.GetIndicator(ctx, tx, programID, id); err != nil {
			return err
		}
		if err := e.Repo.DeleteIndicator(ctx, tx, id); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, events.IndicatorRemoved, programID, "indicator", id, actorID, nil)
	})
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"logicforge/internal/domain"
)

func (r Repo) GetProblemStatement(ctx context.Context, tx *sql.Tx, programID string) (domain.ProblemStatement, error) {
	row := r.conn(tx).QueryRowContext(ctx, `SELECT id,program_id,challenge_text,COALESCE(refined_text,''),root_causes_json,COALESCE(theme,''),is_completed,created_at,updated_at
		FROM problem_statements WHERE program_id=?`, programID)
	var (
		ps     domain.ProblemStatement
		causes string
		done   int
	)
	err := row.Scan(&ps.ID, &ps.ProgramID, &ps.ChallengeText, &ps.RefinedText, &causes, &ps.Theme, &done, &ps.CreatedAt, &ps.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ps, ErrNotFound
	}
	if err != nil {
		return ps, err
	}
	ps.IsCompleted = done == 1
	if ps.RootCauses, err = unmarshalStrings(causes); err != nil {
		return ps, fmt.Errorf("decode root causes: %w", err)
	}
	return ps, nil
}

// UpsertProblemStatement writes the single problem statement of a program.
func (r Repo) UpsertProblemStatement(ctx context.Context, tx *sql.Tx, ps domain.ProblemStatement) error {
	causes, err := marshalStrings(ps.RootCauses)
	if err != nil {
		return err
	}
	_, err = r.conn(tx).ExecContext(ctx, `INSERT INTO problem_statements(id,program_id,challenge_text,refined_text,root_causes_json,theme,is_completed,created_at,updated_at)
		VALUES (?,?,?,?,?,?,?,?,?)
		ON CONFLICT(program_id) DO UPDATE SET challenge_text=excluded.challenge_text, refined_text=excluded.refined_text,
			root_causes_json=excluded.root_causes_json, theme=excluded.theme, is_completed=excluded.is_completed, updated_at=excluded.updated_at`,
		ps.ID, ps.ProgramID, ps.ChallengeText, nullable(ps.RefinedText), causes, nullable(ps.Theme), boolInt(ps.IsCompleted), ps.CreatedAt, ps.UpdatedAt)
	return err
}

const stakeholderColumns = `id,program_id,name,COALESCE(role,''),COALESCE(engagement_strategy,''),priority,is_ai_suggested,created_at,updated_at`

func scanStakeholder(row rowScanner) (domain.Stakeholder, error) {
	var (
		s  domain.Stakeholder
		ai int
	)
	err := row.Scan(&s.ID, &s.ProgramID, &s.Name, &s.Role, &s.EngagementStrategy, &s.Priority, &ai, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	s.IsAISuggested = ai == 1
	return s, err
}

func (r Repo) InsertStakeholder(ctx context.Context, tx *sql.Tx, s domain.Stakeholder) error {
	_, err := r.conn(tx).ExecContext(ctx, `INSERT INTO stakeholders(id,program_id,name,role,engagement_strategy,priority,is_ai_suggested,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		s.ID, s.ProgramID, s.Name, nullable(s.Role), nullable(s.EngagementStrategy), s.Priority, boolInt(s.IsAISuggested), s.CreatedAt, s.UpdatedAt)
	return err
}

func (r Repo) UpdateStakeholder(ctx context.Context, tx *sql.Tx, s domain.Stakeholder) error {
	res, err := r.conn(tx).ExecContext(ctx, `UPDATE stakeholders SET name=?, role=?, engagement_strategy=?, priority=?, updated_at=? WHERE id=? AND program_id=?`,
		s.Name, nullable(s.Role), nullable(s.EngagementStrategy), s.Priority, s.UpdatedAt, s.ID, s.ProgramID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetStakeholder(ctx context.Context, tx *sql.Tx, programID, id string) (domain.Stakeholder, error) {
	return scanStakeholder(r.conn(tx).QueryRowContext(ctx, `SELECT `+stakeholderColumns+` FROM stakeholders WHERE id=? AND program_id=?`, id, programID))
}

func (r Repo) DeleteStakeholder(ctx context.Context, tx *sql.Tx, programID, id string) error {
	res, err := r.conn(tx).ExecContext(ctx, `DELETE FROM stakeholders WHERE id=? AND program_id=?`, id, programID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListStakeholders(ctx context.Context, tx *sql.Tx, programID string) ([]domain.Stakeholder, error) {
	rows, err := r.conn(tx).QueryContext(ctx, `SELECT `+stakeholderColumns+` FROM stakeholders WHERE program_id=? ORDER BY created_at, id`, programID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Stakeholder{}
	for rows.Next() {
		s, err := scanStakeholder(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) CountStakeholders(ctx context.Context, tx *sql.Tx, programID string) (int, error) {
	var n int
	err := r.conn(tx).QueryRowContext(ctx, `SELECT COUNT(*) FROM stakeholders WHERE program_id=?`, programID).Scan(&n)
	return n, err
}

func (r Repo) InsertProgramModel(ctx context.Context, tx *sql.Tx, pm domain.ProgramModel) (bool, error) {
	res, err := r.conn(tx).ExecContext(ctx, `INSERT INTO program_models(id,program_id,proven_model_id,notes,created_at) VALUES (?,?,?,?,?)
		ON CONFLICT(program_id, proven_model_id) DO NOTHING`,
		pm.ID, pm.ProgramID, pm.ProvenModelID, nullable(pm.Notes), pm.CreatedAt)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r Repo) DeleteProgramModel(ctx context.Context, tx *sql.Tx, programID, modelID string) error {
	res, err := r.conn(tx).ExecContext(ctx, `DELETE FROM program_models WHERE program_id=? AND proven_model_id=?`, programID, modelID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetProgramModel(ctx context.Context, tx *sql.Tx, programID, modelID string) (domain.ProgramModel, error) {
	models, err := r.listProgramModels(ctx, tx, `WHERE pm.program_id=? AND pm.proven_model_id=?`, programID, modelID)
	if err != nil {
		return domain.ProgramModel{}, err
	}
	if len(models) == 0 {
		return domain.ProgramModel{}, ErrNotFound
	}
	return models[0], nil
}

func (r Repo) ListProgramModels(ctx context.Context, tx *sql.Tx, programID string) ([]domain.ProgramModel, error) {
	return r.listProgramModels(ctx, tx, `WHERE pm.program_id=?`, programID)
}

func (r Repo) listProgramModels(ctx context.Context, tx *sql.Tx, where string, args ...any) ([]domain.ProgramModel, error) {
	rows, err := r.conn(tx).QueryContext(ctx, `SELECT pm.id,pm.program_id,pm.proven_model_id,COALESCE(pm.notes,''),pm.created_at,`+qualifiedModelColumns+`
		FROM program_models pm JOIN proven_models m ON m.id = pm.proven_model_id `+where+` ORDER BY pm.created_at, pm.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.ProgramModel{}
	for rows.Next() {
		var (
			pm   domain.ProgramModel
			scan modelScan
		)
		dest := append([]any{&pm.ID, &pm.ProgramID, &pm.ProvenModelID, &pm.Notes, &pm.CreatedAt}, scan.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if pm.Model, err = scan.model(); err != nil {
			return nil, err
		}
		res = append(res, pm)
	}
	return res, rows.Err()
}

const outcomeColumns = `id,program_id,description,COALESCE(theme,''),COALESCE(timeframe,''),created_at,updated_at`

func scanOutcome(row rowScanner) (domain.Outcome, error) {
	o := domain.Outcome{Indicators: []domain.Indicator{}}
	err := row.Scan(&o.ID, &o.ProgramID, &o.Description, &o.Theme, &o.Timeframe, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return o, ErrNotFound
	}
	return o, err
}

func (r Repo) InsertOutcome(ctx context.Context, tx *sql.Tx, o domain.Outcome) error {
	_, err := r.conn(tx).ExecContext(ctx, `INSERT INTO outcomes(id,program_id,description,theme,timeframe,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		o.ID, o.ProgramID, o.Description, nullable(o.Theme), nullable(o.Timeframe), o.CreatedAt, o.UpdatedAt)
	return err
}

func (r Repo) UpdateOutcome(ctx context.Context, tx *sql.Tx, o domain.Outcome) error {
	res, err := r.conn(tx).ExecContext(ctx, `UPDATE outcomes SET description=?, theme=?, timeframe=?, updated_at=? WHERE id=? AND program_id=?`,
		o.Description, nullable(o.Theme), nullable(o.Timeframe), o.UpdatedAt, o.ID, o.ProgramID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteOutcome(ctx context.Context, tx *sql.Tx, programID, id string) error {
	res, err := r.conn(tx).ExecContext(ctx, `DELETE FROM outcomes WHERE id=? AND program_id=?`, id, programID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetOutcome returns an outcome of the program with its indicators.
func (r Repo) GetOutcome(ctx context.Context, tx *sql.Tx, programID, id string) (domain.Outcome, error) {
	o, err := scanOutcome(r.conn(tx).QueryRowContext(ctx, `SELECT `+outcomeColumns+` FROM outcomes WHERE id=? AND program_id=?`, id, programID))
	if err != nil {
		return o, err
	}
	o.Indicators, err = r.ListIndicators(ctx, tx, o.ID)
	return o, err
}

// ListOutcomes returns a program's outcomes, each with its indicators.
func (r Repo) ListOutcomes(ctx context.Context, tx *sql.Tx, programID string) ([]domain.Outcome, error) {
	q := r.conn(tx)
	rows, err := q.QueryContext(ctx, `SELECT `+outcomeColumns+` FROM outcomes WHERE program_id=? ORDER BY created_at, id`, programID)
	if err != nil {
		return nil, err
	}
	res := []domain.Outcome{}
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, o)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	for i := range res {
		if res[i].Indicators, err = r.ListIndicators(ctx, tx, res[i].ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r Repo) CountOutcomes(ctx context.Context, tx *sql.Tx, programID string) (int, error) {
	var n int
	err := r.conn(tx).QueryRowContext(ctx, `SELECT COUNT(*) FROM outcomes WHERE program_id=?`, programID).Scan(&n)
	return n, err
}

const indicatorColumns = `i.id,i.outcome_id,i.type,i.description,COALESCE(i.measurement_method,''),COALESCE(i.target_value,''),
	COALESCE(i.baseline_value,''),COALESCE(i.frequency,''),COALESCE(i.data_source,''),i.is_ai_generated,i.created_at,i.updated_at`

func scanIndicator(row rowScanner) (domain.Indicator, error) {
	var (
		in domain.Indicator
		ai int
	)
	err := row.Scan(&in.ID, &in.OutcomeID, &in.Type, &in.Description, &in.MeasurementMethod, &in.TargetValue,
		&in.BaselineValue, &in.Frequency, &in.DataSource, &ai, &in.CreatedAt, &in.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return in, ErrNotFound
	}
	in.IsAIGenerated = ai == 1
	return in, err
}

func (r Repo) InsertIndicator(ctx context.Context, tx *sql.Tx, in domain.Indicator) error {
	_, err := r.conn(tx).ExecContext(ctx, `INSERT INTO indicators(id,outcome_id,type,description,measurement_method,target_value,baseline_value,frequency,data_source,is_ai_generated,created_at,updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		in.ID, in.OutcomeID, in.Type, in.Description, nullable(in.MeasurementMethod), nullable(in.TargetValue),
		nullable(in.BaselineValue), nullable(in.Frequency), nullable(in.DataSource), boolInt(in.IsAIGenerated), in.CreatedAt, in.UpdatedAt)
	return err
}

func (r Repo) UpdateIndicator(ctx context.Context, tx *sql.Tx, in domain.Indicator) error {
	res, err := r.conn(tx).ExecContext(ctx, `UPDATE indicators SET type=?, description=?, measurement_method=?, target_value=?, baseline_value=?, frequency=?, data_source=?, updated_at=?
		WHERE id=? AND outcome_id=?`,
		in.Type, in.Description, nullable(in.MeasurementMethod), nullable(in.TargetValue), nullable(in.BaselineValue),
		nullable(in.Frequency), nullable(in.DataSource), in.UpdatedAt, in.ID, in.OutcomeID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetIndicator looks an indicator up through its outcome so the program scope is enforced.
func (r Repo) GetIndicator(ctx context.Context, tx *sql.Tx, programID, id string) (domain.Indicator, error) {
	return scanIndicator(r.conn(tx).QueryRowContext(ctx, `SELECT `+indicatorColumns+`
		FROM indicators i JOIN outcomes o ON o.id = i.outcome_id WHERE i.id=? AND o.program_id=?`, id, programID))
}

func (r Repo) DeleteIndicator(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.conn(tx).ExecContext(ctx, `DELETE FROM indicators WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListIndicators(ctx context.Context, tx *sql.Tx, outcomeID string) ([]domain.Indicator, error) {
	rows, err := r.conn(tx).QueryContext(ctx, `SELECT `+indicatorColumns+` FROM indicators i WHERE i.outcome_id=? ORDER BY i.created_at, i.id`, outcomeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Indicator{}
	for rows.Next() {
		in, err := scanIndicator(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, in)
	}
	return res, rows.Err()
}

// Snapshot assembles a program with every dependent entity a renderer needs.
func (r Repo) Snapshot(ctx context.Context, tx *sql.Tx, programID string) (domain.ProgramSnapshot, error) {
	var snap domain.ProgramSnapshot
	p, err := r.GetProgram(ctx, tx, programID)
	if err != nil {
		return snap, err
	}
	snap.Program = p
	ps, err := r.GetProblemStatement(ctx, tx, programID)
	switch {
	case err == nil:
		snap.Problem = &ps
	case !errors.Is(err, ErrNotFound):
		return snap, err
	}
	if snap.Stakeholders, err = r.ListStakeholders(ctx, tx, programID); err != nil {
		return snap, err
	}
	if snap.Models, err = r.ListProgramModels(ctx, tx, programID); err != nil {
		return snap, err
	}
	if snap.Outcomes, err = r.ListOutcomes(ctx, tx, programID); err != nil {
		return snap, err
	}
	return snap, nil
}

// StakeholderPriorityCounts counts stakeholders per priority across a user's programs.
func (r Repo) StakeholderPriorityCounts(ctx context.Context, userID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT s.priority, COUNT(*) FROM stakeholders s JOIN programs p ON p.id = s.program_id
		WHERE p.user_id=? GROUP BY s.priority`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{"high": 0, "medium": 0, "low": 0}
	for rows.Next() {
		var (
			priority string
			n        int
		)
		if err := rows.Scan(&priority, &n); err != nil {
			return nil, err
		}
		counts[priority] = n
	}
	return counts, rows.Err()
}

package repo

import (
	"context"
	"database/sql"
	"errors"

	"logicforge/internal/domain"
)

const activityColumns = `id,program_id,COALESCE(outcome_id,''),title,COALESCE(description,''),start_date,end_date,status,
	COALESCE(responsible_person,''),COALESCE(resources_needed,''),progress_percentage,created_at,updated_at`

func scanActivity(row rowScanner) (domain.Activity, error) {
	var a domain.Activity
	err := row.Scan(&a.ID, &a.ProgramID, &a.OutcomeID, &a.Title, &a.Description, &a.StartDate, &a.EndDate, &a.Status,
		&a.ResponsiblePerson, &a.ResourcesNeeded, &a.ProgressPercentage, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	return a, err
}

func (r Repo) InsertActivity(ctx context.Context, tx *sql.Tx, a domain.Activity) error {
	_, err := r.conn(tx).ExecContext(ctx, `INSERT INTO activities(id,program_id,outcome_id,title,description,start_date,end_date,status,
		responsible_person,resources_needed,progress_percentage,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.ProgramID, nullable(a.OutcomeID), a.Title, nullable(a.Description), a.StartDate, a.EndDate, a.Status,
		nullable(a.ResponsiblePerson), nullable(a.ResourcesNeeded), a.ProgressPercentage, a.CreatedAt, a.UpdatedAt)
	return err
}

func (r Repo) UpdateActivity(ctx context.Context, tx *sql.Tx, a domain.Activity) error {
	res, err := r.conn(tx).ExecContext(ctx, `UPDATE activities SET outcome_id=?, title=?, description=?, start_date=?, end_date=?, status=?,
		responsible_person=?, resources_needed=?, progress_percentage=?, updated_at=? WHERE id=? AND program_id=?`,
		nullable(a.OutcomeID), a.Title, nullable(a.Description), a.StartDate, a.EndDate, a.Status,
		nullable(a.ResponsiblePerson), nullable(a.ResourcesNeeded), a.ProgressPercentage, a.UpdatedAt, a.ID, a.ProgramID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetActivity(ctx context.Context, tx *sql.Tx, programID, id string) (domain.Activity, error) {
	return scanActivity(r.conn(tx).QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE id=? AND program_id=?`, id, programID))
}

func (r Repo) DeleteActivity(ctx context.Context, tx *sql.Tx, programID, id string) error {
	res, err := r.conn(tx).ExecContext(ctx, `DELETE FROM activities WHERE id=? AND program_id=?`, id, programID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActivities returns a program's activities in schedule order.
func (r Repo) ListActivities(ctx context.Context, programID string) ([]domain.Activity, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE program_id=? ORDER BY start_date, end_date, created_at, id`, programID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Activity{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

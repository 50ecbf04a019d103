package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"logicforge/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn routes a call through tx when one is open so reads observe the
// transaction's own writes and locks.
func (r Repo) conn(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.DB
}

func (r Repo) EnsureUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := r.conn(tx).ExecContext(ctx, `INSERT INTO users(id,email,full_name,organization,created_at) VALUES (?,?,?,?,?) ON CONFLICT(id) DO NOTHING`,
		u.ID, nullable(u.Email), nullable(u.FullName), nullable(u.Organization), u.CreatedAt)
	return err
}

func (r Repo) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const programColumns = `id,user_id,title,COALESCE(description,''),status,current_step,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgram(row rowScanner) (domain.Program, error) {
	var p domain.Program
	err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Description, &p.Status, &p.CurrentStep, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) InsertProgram(ctx context.Context, tx *sql.Tx, p domain.Program) error {
	_, err := r.conn(tx).ExecContext(ctx, `INSERT INTO programs(id,user_id,title,description,status,current_step,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		p.ID, p.UserID, p.Title, nullable(p.Description), p.Status, p.CurrentStep, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetProgram(ctx context.Context, tx *sql.Tx, id string) (domain.Program, error) {
	return scanProgram(r.conn(tx).QueryRowContext(ctx, `SELECT `+programColumns+` FROM programs WHERE id=?`, id))
}

type ProgramFilters struct {
	UserID          string
	Status          string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListPrograms(ctx context.Context, f ProgramFilters) ([]domain.Program, error) {
	var (
		clauses []string
		args    []any
	)
	if f.UserID != "" {
		clauses = append(clauses, "user_id=?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	query := `SELECT ` + programColumns + ` FROM programs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Program
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdateProgramDetails(ctx context.Context, tx *sql.Tx, id string, title, description *string, updatedAt string) error {
	fields := []string{"updated_at=?"}
	args := []any{updatedAt}
	if title != nil {
		fields = append(fields, "title=?")
		args = append(args, *title)
	}
	if description != nil {
		fields = append(fields, "description=?")
		args = append(args, nullable(*description))
	}
	args = append(args, id)
	res, err := r.conn(tx).ExecContext(ctx, fmt.Sprintf(`UPDATE programs SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AdvanceStep moves a program from fromStep to fromStep+1 only if it still
// sits at fromStep. It reports whether the row changed.
func (r Repo) AdvanceStep(ctx context.Context, tx *sql.Tx, id string, fromStep int, status, updatedAt string) (bool, error) {
	res, err := r.conn(tx).ExecContext(ctx, `UPDATE programs SET current_step=?, status=?, updated_at=? WHERE id=? AND current_step=?`,
		fromStep+1, status, updatedAt, id, fromStep)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkCompleted sets status=completed for a program at the last step that is
// not already completed. It reports whether the row changed.
func (r Repo) MarkCompleted(ctx context.Context, tx *sql.Tx, id string, updatedAt string) (bool, error) {
	res, err := r.conn(tx).ExecContext(ctx, `UPDATE programs SET status=?, updated_at=? WHERE id=? AND current_step=? AND status<>?`,
		domain.StatusCompleted, updatedAt, id, domain.LastStep, domain.StatusCompleted)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r Repo) DeleteProgram(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.conn(tx).ExecContext(ctx, `DELETE FROM programs WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type EventFilters struct {
	ProgramID string
	Type      string
	Limit     int
	Cursor    int64
}

// LatestEvents returns events newest first.
func (r Repo) LatestEvents(ctx context.Context, f EventFilters) ([]domain.Event, error) {
	var (
		clauses []string
		args    []any
	)
	if f.ProgramID != "" {
		clauses = append(clauses, "program_id=?")
		args = append(args, f.ProgramID)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.Cursor > 0 {
		clauses = append(clauses, "id < ?")
		args = append(args, f.Cursor)
	}
	query := `SELECT id,ts,type,COALESCE(program_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return r.queryEvents(ctx, query, args...)
}

// EventsAfter returns events with id greater than cursor, oldest first.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	query := `SELECT id,ts,type,COALESCE(program_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE id > ? ORDER BY id ASC`
	args := []any{cursor}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.queryEvents(ctx, query, args...)
}

func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := r.DB.QueryRowContext(ctx, `SELECT MAX(id) FROM events`).Scan(&id); err != nil {
		return 0, err
	}
	return id.Int64, nil
}

func (r Repo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.ProgramID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func marshalStrings(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalStrings(raw string) ([]string, error) {
	out := []string{}
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"logicforge/internal/domain"
)

const commentColumns = `id,program_id,user_id,COALESCE(user_name,''),content,section,is_resolved,created_at`

func scanComment(row rowScanner) (domain.Comment, error) {
	var (
		c        domain.Comment
		resolved int
	)
	err := row.Scan(&c.ID, &c.ProgramID, &c.UserID, &c.UserName, &c.Content, &c.Section, &resolved, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	c.IsResolved = resolved == 1
	return c, err
}

func (r Repo) InsertComment(ctx context.Context, tx *sql.Tx, c domain.Comment) error {
	_, err := r.conn(tx).ExecContext(ctx, `INSERT INTO comments(id,program_id,user_id,user_name,content,section,is_resolved,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		c.ID, c.ProgramID, c.UserID, nullable(c.UserName), c.Content, c.Section, boolInt(c.IsResolved), c.CreatedAt)
	return err
}

func (r Repo) GetComment(ctx context.Context, tx *sql.Tx, programID, id string) (domain.Comment, error) {
	return scanComment(r.conn(tx).QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id=? AND program_id=?`, id, programID))
}

func (r Repo) ResolveComment(ctx context.Context, tx *sql.Tx, programID, id string) error {
	res, err := r.conn(tx).ExecContext(ctx, `UPDATE comments SET is_resolved=1 WHERE id=? AND program_id=?`, id, programID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListComments returns a program's comments newest first.
func (r Repo) ListComments(ctx context.Context, programID, section string) ([]domain.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments WHERE program_id=?`
	args := []any{programID}
	if section != "" {
		query += ` AND section=?`
		args = append(args, section)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// NextVersionNumber must be called inside the transaction that inserts the version.
func (r Repo) NextVersionNumber(ctx context.Context, tx *sql.Tx, programID string) (int, error) {
	var n int
	err := r.conn(tx).QueryRowContext(ctx, `SELECT COALESCE(MAX(version_number),0)+1 FROM versions WHERE program_id=?`, programID).Scan(&n)
	return n, err
}

func (r Repo) InsertVersion(ctx context.Context, tx *sql.Tx, v domain.Version) error {
	changes := v.Changes
	if changes == nil {
		changes = map[string]any{}
	}
	data, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal version changes: %w", err)
	}
	_, err = r.conn(tx).ExecContext(ctx, `INSERT INTO versions(id,program_id,version_number,user_id,user_name,description,changes_json,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		v.ID, v.ProgramID, v.VersionNumber, v.UserID, nullable(v.UserName), v.Description, string(data), v.CreatedAt)
	return err
}

const versionColumns = `id,program_id,version_number,user_id,COALESCE(user_name,''),description,changes_json,created_at`

func scanVersion(row rowScanner) (domain.Version, error) {
	var (
		v       domain.Version
		changes string
	)
	err := row.Scan(&v.ID, &v.ProgramID, &v.VersionNumber, &v.UserID, &v.UserName, &v.Description, &changes, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return v, ErrNotFound
	}
	if err != nil {
		return v, err
	}
	v.Changes = map[string]any{}
	if err := json.Unmarshal([]byte(changes), &v.Changes); err != nil {
		return v, fmt.Errorf("decode version changes: %w", err)
	}
	return v, nil
}

func (r Repo) GetVersion(ctx context.Context, programID string, number int) (domain.Version, error) {
	return scanVersion(r.DB.QueryRowContext(ctx, `SELECT `+versionColumns+` FROM versions WHERE program_id=? AND version_number=?`, programID, number))
}

// ListVersions returns a program's versions, highest number first.
func (r Repo) ListVersions(ctx context.Context, programID string) ([]domain.Version, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+versionColumns+` FROM versions WHERE program_id=? ORDER BY version_number DESC`, programID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Version{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

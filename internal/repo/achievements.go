package repo

import (
	"context"
	"database/sql"
	"errors"

	"logicforge/internal/domain"
)

func (r Repo) GetBadgeForStep(ctx context.Context, tx *sql.Tx, step int) (domain.Badge, error) {
	var b domain.Badge
	err := r.conn(tx).QueryRowContext(ctx, `SELECT id,name,description,COALESCE(icon,''),step_number FROM badges WHERE step_number=?`, step).
		Scan(&b.ID, &b.Name, &b.Description, &b.Icon, &b.StepNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return b, ErrNotFound
	}
	return b, err
}

// AwardBadge records a badge for a user on a program. It reports whether the
// award is new.
func (r Repo) AwardBadge(ctx context.Context, tx *sql.Tx, ub domain.UserBadge) (bool, error) {
	res, err := r.conn(tx).ExecContext(ctx, `INSERT INTO user_badges(id,user_id,badge_id,program_id,earned_at) VALUES (?,?,?,?,?)
		ON CONFLICT(user_id,badge_id,program_id) DO NOTHING`,
		ub.ID, ub.UserID, ub.BadgeID, ub.ProgramID, ub.EarnedAt)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// ListBadges returns every badge in step order with Earned set when the user
// holds it on any program.
func (r Repo) ListBadges(ctx context.Context, userID string) ([]domain.Badge, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT b.id,b.name,b.description,COALESCE(b.icon,''),b.step_number,
		EXISTS (SELECT 1 FROM user_badges ub WHERE ub.badge_id=b.id AND ub.user_id=?)
		FROM badges b ORDER BY b.step_number`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Badge{}
	for rows.Next() {
		var (
			b      domain.Badge
			earned int
		)
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.Icon, &b.StepNumber, &earned); err != nil {
			return nil, err
		}
		b.Earned = earned == 1
		res = append(res, b)
	}
	return res, rows.Err()
}

func (r Repo) CountUserBadges(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_badges WHERE user_id=?`, userID).Scan(&n)
	return n, err
}

func (r Repo) InsertDocument(ctx context.Context, tx *sql.Tx, d domain.GeneratedDocument) error {
	_, err := r.conn(tx).ExecContext(ctx, `INSERT INTO generated_documents(id,program_id,format,filename,size_bytes,generated_at) VALUES (?,?,?,?,?,?)`,
		d.ID, d.ProgramID, d.Format, d.Filename, d.SizeBytes, d.GeneratedAt)
	return err
}

func (r Repo) ListDocuments(ctx context.Context, programID string) ([]domain.GeneratedDocument, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,program_id,format,filename,size_bytes,generated_at FROM generated_documents WHERE program_id=? ORDER BY generated_at DESC, rowid DESC`, programID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.GeneratedDocument{}
	for rows.Next() {
		var d domain.GeneratedDocument
		if err := rows.Scan(&d.ID, &d.ProgramID, &d.Format, &d.Filename, &d.SizeBytes, &d.GeneratedAt); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

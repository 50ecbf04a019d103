package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"logicforge/internal/domain"
)

const modelColumns = `id,name,COALESCE(description,''),COALESCE(implementation_guide,''),COALESCE(evidence_base,''),
	COALESCE(source_url,''),themes_json,target_outcomes_json,COALESCE(embedding_json,''),created_at,updated_at`

const qualifiedModelColumns = `m.id,m.name,COALESCE(m.description,''),COALESCE(m.implementation_guide,''),COALESCE(m.evidence_base,''),
	COALESCE(m.source_url,''),m.themes_json,m.target_outcomes_json,COALESCE(m.embedding_json,''),m.created_at,m.updated_at`

type modelScan struct {
	m         domain.ProvenModel
	themes    string
	outcomes  string
	embedding string
}

func (s *modelScan) dest() []any {
	return []any{&s.m.ID, &s.m.Name, &s.m.Description, &s.m.ImplementationGuide, &s.m.EvidenceBase,
		&s.m.SourceURL, &s.themes, &s.outcomes, &s.embedding, &s.m.CreatedAt, &s.m.UpdatedAt}
}

func (s *modelScan) model() (domain.ProvenModel, error) {
	var err error
	if s.m.Themes, err = unmarshalStrings(s.themes); err != nil {
		return s.m, fmt.Errorf("decode themes for %s: %w", s.m.ID, err)
	}
	if s.m.TargetOutcomes, err = unmarshalStrings(s.outcomes); err != nil {
		return s.m, fmt.Errorf("decode target outcomes for %s: %w", s.m.ID, err)
	}
	if s.embedding != "" {
		if err := json.Unmarshal([]byte(s.embedding), &s.m.Embedding); err != nil {
			return s.m, fmt.Errorf("decode embedding for %s: %w", s.m.ID, err)
		}
	}
	return s.m, nil
}

func scanModels(rows *sql.Rows) ([]domain.ProvenModel, error) {
	defer rows.Close()
	res := []domain.ProvenModel{}
	for rows.Next() {
		var s modelScan
		if err := rows.Scan(s.dest()...); err != nil {
			return nil, err
		}
		m, err := s.model()
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// UpsertModel inserts a catalog model or refreshes the one with the same name.
// It returns the id stored for the name.
func (r Repo) UpsertModel(ctx context.Context, tx *sql.Tx, m domain.ProvenModel) (string, error) {
	themes, err := marshalStrings(m.Themes)
	if err != nil {
		return "", err
	}
	outcomes, err := marshalStrings(m.TargetOutcomes)
	if err != nil {
		return "", err
	}
	var embedding any
	if len(m.Embedding) > 0 {
		data, err := json.Marshal(m.Embedding)
		if err != nil {
			return "", err
		}
		embedding = string(data)
	}
	q := r.conn(tx)
	_, err = q.ExecContext(ctx, `INSERT INTO proven_models(id,name,description,implementation_guide,evidence_base,source_url,themes_json,target_outcomes_json,embedding_json,created_at,updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(name) DO UPDATE SET description=excluded.description, implementation_guide=excluded.implementation_guide,
			evidence_base=excluded.evidence_base, source_url=excluded.source_url, themes_json=excluded.themes_json,
			target_outcomes_json=excluded.target_outcomes_json, embedding_json=excluded.embedding_json, updated_at=excluded.updated_at`,
		m.ID, m.Name, nullable(m.Description), nullable(m.ImplementationGuide), nullable(m.EvidenceBase), nullable(m.SourceURL),
		themes, outcomes, embedding, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return "", err
	}
	if _, err := q.ExecContext(ctx, `UPDATE catalog_state SET version = version + 1 WHERE id = 1`); err != nil {
		return "", fmt.Errorf("bump catalog version: %w", err)
	}
	var id string
	if err := q.QueryRowContext(ctx, `SELECT id FROM proven_models WHERE name=?`, m.Name).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func (r Repo) GetModel(ctx context.Context, tx *sql.Tx, id string) (domain.ProvenModel, error) {
	var s modelScan
	err := r.conn(tx).QueryRowContext(ctx, `SELECT `+modelColumns+` FROM proven_models WHERE id=?`, id).Scan(s.dest()...)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ProvenModel{}, ErrNotFound
	}
	if err != nil {
		return domain.ProvenModel{}, err
	}
	return s.model()
}

const themeClause = `EXISTS (SELECT 1 FROM json_each(m.themes_json) WHERE json_each.value = ?)`

// ListModels returns the catalog in name order, optionally restricted to a theme.
func (r Repo) ListModels(ctx context.Context, theme string, limit int) ([]domain.ProvenModel, error) {
	query := `SELECT ` + qualifiedModelColumns + ` FROM proven_models m`
	var args []any
	if theme != "" {
		query += ` WHERE ` + themeClause
		args = append(args, theme)
	}
	query += ` ORDER BY m.name, m.id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanModels(rows)
}

// ListEmbeddedModels returns every catalog model that carries an embedding.
func (r Repo) ListEmbeddedModels(ctx context.Context) ([]domain.ProvenModel, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+qualifiedModelColumns+` FROM proven_models m WHERE m.embedding_json IS NOT NULL ORDER BY m.name, m.id`)
	if err != nil {
		return nil, err
	}
	return scanModels(rows)
}

// CatalogFingerprint changes on every catalog write. The version counter is
// bumped by UpsertModel in the writing transaction, so rewrites within the
// same second still invalidate the search index.
func (r Repo) CatalogFingerprint(ctx context.Context) (string, error) {
	var version int64
	err := r.DB.QueryRowContext(ctx, `SELECT version FROM catalog_state WHERE id = 1`).Scan(&version)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(version, 10), nil
}

// SearchModelsByKeyword matches query case-insensitively against name,
// description and target-outcome tags, in catalog order.
func (r Repo) SearchModelsByKeyword(ctx context.Context, query, theme string, limit int) ([]domain.ProvenModel, error) {
	needle := strings.TrimSpace(query)
	clauses := []string{`(instr(lower(m.name), lower(?)) > 0
		OR instr(lower(COALESCE(m.description,'')), lower(?)) > 0
		OR EXISTS (SELECT 1 FROM json_each(m.target_outcomes_json) WHERE instr(lower(json_each.value), lower(?)) > 0))`}
	args := []any{needle, needle, needle}
	if theme != "" {
		clauses = append(clauses, themeClause)
		args = append(args, theme)
	}
	sqlText := `SELECT ` + qualifiedModelColumns + ` FROM proven_models m WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY m.name, m.id`
	if limit > 0 {
		sqlText += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	return scanModels(rows)
}

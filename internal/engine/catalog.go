package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"logicforge/internal/domain"
)

// ImportModels upserts catalog entries by name in one transaction and
// returns how many were written.
func (e Engine) ImportModels(ctx context.Context, models []domain.ProvenModel) (int, error) {
	dims := e.Config.AI.EmbeddingDimensions
	for i := range models {
		m := &models[i]
		m.Name = strings.TrimSpace(m.Name)
		if m.Name == "" {
			return 0, invalid(fmt.Sprintf("models[%d].name", i), "required")
		}
		themes, err := normalizeThemes(m.Themes)
		if err != nil {
			return 0, invalid(fmt.Sprintf("models[%d].themes", i), err.Error())
		}
		m.Themes = themes
		m.TargetOutcomes = nonEmpty(m.TargetOutcomes)
		if len(m.Embedding) > 0 && dims > 0 && len(m.Embedding) != dims {
			e.logger().Sugar().Warnf("catalog model %q has %d-dimensional embedding, index expects %d; it will only be found by keyword",
				m.Name, len(m.Embedding), dims)
		}
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		ts := e.timestamp()
		for i := range models {
			m := models[i]
			if m.ID == "" {
				m.ID = newID()
			}
			m.CreatedAt, m.UpdatedAt = ts, ts
			id, err := e.Repo.UpsertModel(ctx, tx, m)
			if err != nil {
				return fmt.Errorf("import model %q: %w", m.Name, err)
			}
			models[i].ID = id
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(models), nil
}

// normalizeThemes trims, deduplicates and validates theme tags, keeping first-seen order.
func normalizeThemes(themes []string) ([]string, error) {
	seen := mapset.NewThreadUnsafeSet[string]()
	out := make([]string, 0, len(themes))
	for _, t := range themes {
		t = strings.TrimSpace(t)
		if t == "" || seen.Contains(t) {
			continue
		}
		if !domain.ValidTheme(t) {
			return nil, fmt.Errorf("unknown theme %q", t)
		}
		seen.Add(t)
		out = append(out, t)
	}
	return out, nil
}

func (e Engine) GetModel(ctx context.Context, id string) (domain.ProvenModel, error) {
	return e.Repo.GetModel(ctx, nil, id)
}

func (e Engine) ListModels(ctx context.Context, theme string, limit int) ([]domain.ProvenModel, error) {
	return e.Repo.ListModels(ctx, theme, limit)
}

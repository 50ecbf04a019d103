package engine

import (
	"context"
	"database/sql"
	"strings"

	"logicforge/internal/domain"
	"logicforge/internal/repo"
	"logicforge/internal/templates"
)

func (e Engine) templates() (templates.Catalog, error) {
	return templates.Builtin()
}

func (e Engine) ListTemplates(theme string) ([]templates.Template, error) {
	c, err := e.templates()
	if err != nil {
		return nil, err
	}
	return c.List(theme), nil
}

func (e Engine) GetTemplate(id string) (templates.Template, error) {
	c, err := e.templates()
	if err != nil {
		return templates.Template{}, err
	}
	t, ok := c.Get(id)
	if !ok {
		return templates.Template{}, repo.ErrNotFound
	}
	return t, nil
}

// CreateFromTemplate creates a program pre-filled with the template's
// problem statement, stakeholders, outcomes and indicators. The program
// starts at step 1; steps still advance only through CompleteStep.
func (e Engine) CreateFromTemplate(ctx context.Context, templateID, userID, title string) (domain.Program, error) {
	tpl, err := e.GetTemplate(templateID)
	if err != nil {
		return domain.Program{}, err
	}
	if strings.TrimSpace(title) == "" {
		title = tpl.Name
	}
	var p domain.Program
	err = e.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		p, err = e.createProgramTx(ctx, tx, ProgramCreateOptions{UserID: userID, Title: title, Description: tpl.Description})
		if err != nil {
			return err
		}
		if _, err := e.saveProblemStatementTx(ctx, tx, p.ID, ProblemStatementInput{
			ChallengeText: tpl.ProblemStatement.ChallengeText,
			RootCauses:    tpl.ProblemStatement.RootCauses,
			Theme:         tpl.Theme,
			IsCompleted:   true,
		}, userID); err != nil {
			return err
		}
		for _, s := range tpl.Stakeholders {
			in := StakeholderInput{Name: s.Name, Role: s.Role, Priority: s.Priority}
			if err := validateStakeholder(&in); err != nil {
				return err
			}
			if _, err := e.addStakeholderTx(ctx, tx, p.ID, in, userID); err != nil {
				return err
			}
		}
		for _, o := range tpl.Outcomes {
			outcome, err := e.addOutcomeTx(ctx, tx, p.ID, OutcomeInput{Description: o.Description, Theme: tpl.Theme}, userID)
			if err != nil {
				return err
			}
			for _, ind := range o.Indicators {
				in := IndicatorInput{Type: ind.Type, Description: ind.Description, TargetValue: ind.TargetValue}
				if err := validateIndicator(&in); err != nil {
					return err
				}
				if _, err := e.addIndicatorTx(ctx, tx, p.ID, outcome.ID, in, userID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return p, err
}

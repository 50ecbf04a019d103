// Package templates holds the built-in program quick-start templates.
package templates

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var templatesYAML []byte

type Template struct {
	ID                  string           `yaml:"id" json:"id"`
	Name                string           `yaml:"name" json:"name"`
	Description         string           `yaml:"description" json:"description"`
	Theme               string           `yaml:"theme" json:"theme"`
	Difficulty          string           `yaml:"difficulty" json:"difficulty"`
	Duration            string           `yaml:"duration" json:"duration"`
	TargetBeneficiaries string           `yaml:"target_beneficiaries" json:"target_beneficiaries"`
	ProblemStatement    ProblemStatement `yaml:"problem_statement" json:"problem_statement"`
	Stakeholders        []Stakeholder    `yaml:"stakeholders" json:"stakeholders"`
	Outcomes            []Outcome        `yaml:"outcomes" json:"outcomes"`
}

type ProblemStatement struct {
	ChallengeText string   `yaml:"challenge_text" json:"challenge_text"`
	RootCauses    []string `yaml:"root_causes" json:"root_causes"`
}

type Stakeholder struct {
	Name     string `yaml:"name" json:"name"`
	Role     string `yaml:"role" json:"role"`
	Priority string `yaml:"priority" json:"priority"`
}

type Outcome struct {
	Description string      `yaml:"description" json:"description"`
	Indicators  []Indicator `yaml:"indicators" json:"indicators"`
}

type Indicator struct {
	Type        string `yaml:"type" json:"type"`
	Description string `yaml:"description" json:"description"`
	TargetValue string `yaml:"target_value" json:"target_value,omitempty"`
}

// Catalog is a read-only set of templates.
type Catalog struct {
	items []Template
}

// Builtin parses the embedded templates.
func Builtin() (Catalog, error) {
	var doc struct {
		Templates []Template `yaml:"templates"`
	}
	if err := yaml.Unmarshal(templatesYAML, &doc); err != nil {
		return Catalog{}, fmt.Errorf("parse templates: %w", err)
	}
	return Catalog{items: doc.Templates}, nil
}

// List returns templates, optionally restricted to a theme (case-insensitive).
func (c Catalog) List(theme string) []Template {
	out := make([]Template, 0, len(c.items))
	for _, t := range c.items {
		if theme == "" || strings.EqualFold(t.Theme, theme) {
			out = append(out, t)
		}
	}
	return out
}

func (c Catalog) Get(id string) (Template, bool) {
	for _, t := range c.items {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

package render

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logicforge/internal/domain"
)

func sampleSnapshot() domain.ProgramSnapshot {
	return domain.ProgramSnapshot{
		Program: domain.Program{ID: "p1", Title: "Reading Catch Up", Status: domain.StatusInProgress, CurrentStep: 5},
		Problem: &domain.ProblemStatement{
			ChallengeText: "Grade 3 students cannot read fluently",
			Theme:         "FLN",
			RootCauses:    []string{"Large classes", "No remedial time"},
			IsCompleted:   true,
		},
		Stakeholders: []domain.Stakeholder{{Name: "Teachers", Role: "Deliver sessions", Priority: "high"}},
		Models:       []domain.ProgramModel{{Model: domain.ProvenModel{Name: "Teaching at the Right Level"}, Notes: "pilot in 10 schools"}},
		Outcomes: []domain.Outcome{{
			Description: "Improved reading fluency",
			Timeframe:   "12 months",
			Indicators: []domain.Indicator{
				{Type: "outcome", Description: "Percentage of students reading grade text", TargetValue: "60%"},
				{Type: "output", Description: "Sessions delivered", MeasurementMethod: "Attendance register"},
			},
		}},
	}
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "Reading_Catch_Up_Program_Design.csv", Filename("Reading  Catch Up", "csv"))
	assert.Equal(t, "Program_Program_Design.json", Filename("  ", "json"))
}

func TestRenderJSON(t *testing.T) {
	doc, err := Render("", sampleSnapshot())
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, doc.Format)
	assert.Equal(t, "application/json", doc.ContentType)

	var back domain.ProgramSnapshot
	require.NoError(t, json.Unmarshal(doc.Content, &back))
	assert.Equal(t, "Reading Catch Up", back.Program.Title)
	assert.Len(t, back.Outcomes[0].Indicators, 2)
}

func TestRenderCSVHasOneRowPerEntity(t *testing.T) {
	doc, err := Render("CSV", sampleSnapshot())
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(doc.Content)).ReadAll()
	require.NoError(t, err)

	sections := map[string]int{}
	for _, row := range rows[1:] {
		sections[row[0]]++
	}
	assert.Equal(t, 1, sections["problem"])
	assert.Equal(t, 2, sections["root_cause"])
	assert.Equal(t, 1, sections["stakeholder"])
	assert.Equal(t, 1, sections["model"])
	assert.Equal(t, 1, sections["indicator:outcome"])
	assert.Equal(t, 1, sections["indicator:output"])
}

func TestRenderText(t *testing.T) {
	doc, err := Render(FormatText, sampleSnapshot())
	require.NoError(t, err)
	out := string(doc.Content)
	assert.Contains(t, out, "Reading Catch Up")
	assert.Contains(t, out, "  - Large classes")
	assert.Contains(t, out, "Teachers (Deliver sessions) [high]")
	assert.Contains(t, out, "[outcome] Percentage of students reading grade text target=60%")
	assert.Equal(t, "Reading_Catch_Up_Program_Design.txt", doc.Filename)
}

func TestRenderTextWithoutComponents(t *testing.T) {
	doc, err := Render(FormatText, domain.ProgramSnapshot{Program: domain.Program{Title: "Empty", CurrentStep: 1}})
	require.NoError(t, err)
	assert.Contains(t, string(doc.Content), "Not yet defined.")
	assert.Contains(t, string(doc.Content), "None identified.")
}

func TestRenderPDFIsUnsupported(t *testing.T) {
	_, err := Render(FormatPDF, sampleSnapshot())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestXLSForm(t *testing.T) {
	doc := XLSForm("Reading Catch Up", sampleSnapshot().Outcomes)
	out := string(doc.Content)
	assert.Contains(t, out, "integer\tindicator_1\tPercentage of students reading grade text\tyes\t")
	assert.Contains(t, out, "note\tindicator_1_target\tTarget: 60%")
	assert.Contains(t, out, "text\tindicator_2\tSessions delivered\tyes\tAttendance register")
	assert.Contains(t, out, "Reading Catch Up\treading_catch_up")
	assert.Equal(t, "Reading_Catch_Up_xlsform.txt", doc.Filename)
}

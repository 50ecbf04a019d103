// Package render lays a program snapshot out as a downloadable donor document.
package render

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"logicforge/internal/domain"
)

var ErrUnsupportedFormat = errors.New("unsupported document format")

const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatText = "text"
	FormatPDF  = "pdf"
)

// Document is a rendered program design.
type Document struct {
	Format      string
	Filename    string
	ContentType string
	Content     []byte
}

// Render produces the snapshot in the requested layout.
func Render(format string, snap domain.ProgramSnapshot) (Document, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatJSON
	}
	var (
		content     []byte
		contentType string
		ext         string
		err         error
	)
	switch format {
	case FormatJSON:
		content, err = json.MarshalIndent(snap, "", "  ")
		contentType, ext = "application/json", "json"
	case FormatCSV:
		content, err = renderCSV(snap)
		contentType, ext = "text/csv", "csv"
	case FormatText:
		content, err = renderText(snap)
		contentType, ext = "text/plain; charset=utf-8", "txt"
	default:
		return Document{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return Document{}, fmt.Errorf("render %s: %w", format, err)
	}
	return Document{
		Format:      format,
		Filename:    Filename(snap.Program.Title, ext),
		ContentType: contentType,
		Content:     content,
	}, nil
}

// Filename derives the download name from the program title.
func Filename(title, ext string) string {
	base := strings.Join(strings.Fields(title), "_")
	if base == "" {
		base = "Program"
	}
	return fmt.Sprintf("%s_Program_Design.%s", base, ext)
}

func renderCSV(snap domain.ProgramSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	rows := [][]string{
		{"section", "name", "detail", "extra"},
		{"program", snap.Program.Title, snap.Program.Description, snap.Program.Status},
	}
	if ps := snap.Problem; ps != nil {
		rows = append(rows, []string{"problem", ps.Theme, ps.ChallengeText, ps.RefinedText})
		for _, cause := range ps.RootCauses {
			rows = append(rows, []string{"root_cause", "", cause, ""})
		}
	}
	for _, s := range snap.Stakeholders {
		rows = append(rows, []string{"stakeholder", s.Name, s.Role, s.Priority})
	}
	for _, m := range snap.Models {
		rows = append(rows, []string{"model", m.Model.Name, m.Model.Description, m.Notes})
	}
	for _, o := range snap.Outcomes {
		rows = append(rows, []string{"outcome", o.Timeframe, o.Description, o.Theme})
		for _, ind := range o.Indicators {
			rows = append(rows, []string{"indicator:" + ind.Type, ind.MeasurementMethod, ind.Description, ind.TargetValue})
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var textLayout = template.Must(template.New("program").Parse(`{{.Program.Title}}
Program Design Document
Status: {{.Program.Status}} (step {{.Program.CurrentStep}} of 5)
{{with .Program.Description}}
{{.}}
{{end}}
1. PROBLEM STATEMENT
{{- with .Problem}}
Theme: {{or .Theme "n/a"}}
Challenge: {{.ChallengeText}}
{{- with .RefinedText}}
Refined: {{.}}
{{- end}}
{{- range .RootCauses}}
  - {{.}}
{{- end}}
{{- else}}
Not yet defined.
{{- end}}

2. STAKEHOLDERS
{{- range .Stakeholders}}
  - {{.Name}}{{with .Role}} ({{.}}){{end}} [{{.Priority}}]{{with .EngagementStrategy}}: {{.}}{{end}}
{{- else}}
None identified.
{{- end}}

3. EVIDENCE-BASED MODELS
{{- range .Models}}
  - {{.Model.Name}}{{with .Notes}}: {{.}}{{end}}
{{- else}}
None selected.
{{- end}}

4. OUTCOMES AND INDICATORS
{{- range .Outcomes}}
  * {{.Description}}{{with .Timeframe}} ({{.}}){{end}}
{{- range .Indicators}}
      [{{.Type}}] {{.Description}}{{with .TargetValue}} target={{.}}{{end}}{{with .Frequency}} every {{.}}{{end}}
{{- end}}
{{- else}}
None defined.
{{- end}}
`))

func renderText(snap domain.ProgramSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := textLayout.Execute(&buf, snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

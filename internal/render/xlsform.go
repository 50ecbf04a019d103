package render

import (
	"fmt"
	"strings"

	"logicforge/internal/domain"
)

// XLSForm lays the program's indicators out as a tab-separated XLSForm
// (survey, choices and settings sheets) importable by ODK and KoboToolbox.
func XLSForm(title string, outcomes []domain.Outcome) Document {
	survey := []string{
		"type\tname\tlabel\trequired\thint",
		"start\tstart\t\t\t",
		"end\tend\t\t\t",
		"today\ttoday\t\t\t",
		"text\tschool_name\tSchool/Center Name\tyes\tEnter the name of the school or center",
		"text\tdata_collector\tData Collector Name\tyes\tYour name",
		"date\tcollection_date\tData Collection Date\tyes\t",
	}
	n := 0
	for _, o := range outcomes {
		for _, ind := range o.Indicators {
			n++
			name := fmt.Sprintf("indicator_%d", n)
			survey = append(survey, fmt.Sprintf("%s\t%s\t%s\tyes\t%s", fieldType(ind.Description), name, clean(ind.Description), clean(ind.MeasurementMethod)))
			if ind.TargetValue != "" {
				survey = append(survey, fmt.Sprintf("note\t%s_target\tTarget: %s\t\t", name, clean(ind.TargetValue)))
			}
		}
	}
	survey = append(survey, "text\tobservations\tAdditional Observations\tno\tAny other relevant information")

	formID := strings.ToLower(strings.Join(strings.Fields(title), "_"))
	var b strings.Builder
	b.WriteString("=== SURVEY SHEET ===\n")
	b.WriteString(strings.Join(survey, "\n"))
	b.WriteString("\n\n=== CHOICES SHEET ===\n")
	b.WriteString("list_name\tname\tlabel\nyes_no\tyes\tYes\nyes_no\tno\tNo")
	b.WriteString("\n\n=== SETTINGS SHEET ===\n")
	b.WriteString("form_title\tform_id\n")
	b.WriteString(clean(title) + "\t" + formID + "\n")

	base := strings.Join(strings.Fields(title), "_")
	if base == "" {
		base = "Program"
	}
	return Document{
		Format:      "xlsform",
		Filename:    base + "_xlsform.txt",
		ContentType: "text/plain; charset=utf-8",
		Content:     []byte(b.String()),
	}
}

func fieldType(description string) string {
	d := strings.ToLower(description)
	for _, w := range []string{"percentage", "rate", "score", "number", "count"} {
		if strings.Contains(d, w) {
			return "integer"
		}
	}
	for _, w := range []string{"yes/no", "completed", "achieved"} {
		if strings.Contains(d, w) {
			return "select_one yes_no"
		}
	}
	return "text"
}

// clean keeps user text from breaking the tab-separated layout.
func clean(s string) string {
	return strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(s)
}

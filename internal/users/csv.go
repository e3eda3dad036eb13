package users

import "strings"

// TemplateHeaders is the header order of the self-service import template.
var TemplateHeaders = []string{
	"email", "first_name", "last_name", "role",
	"department", "employee_id", "student_id", "phone_number",
}

// ExportHeaders is the header order of the administrative export.
var ExportHeaders = []string{
	"email", "first_name", "last_name", "role",
	"department", "employee_id", "student_id", "phone_number",
	"is_active", "created_at", "last_login",
}

var templateSampleRow = []string{
	"john.doe@university.edu", "John", "Doe", "student",
	"Computer Science", "", "CS2024001", "+1234567890",
}

// DecodeCSV parses raw delimited text into rows of trimmed fields.
//
// The grammar is deliberately minimal: a double quote toggles quoted mode and
// is never emitted into the field value, so `""` is not unescaped. Quoted
// spans protect commas only; records never span lines. Blank lines are
// dropped and every field is trimmed after extraction.
func DecodeCSV(text string) [][]string {
	var result [][]string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var row []string
		var current strings.Builder
		inQuotes := false
		for _, ch := range line {
			switch {
			case ch == '"':
				inQuotes = !inQuotes
			case ch == ',' && !inQuotes:
				row = append(row, strings.TrimSpace(current.String()))
				current.Reset()
			default:
				current.WriteRune(ch)
			}
		}
		row = append(row, strings.TrimSpace(current.String()))
		result = append(result, row)
	}
	return result
}

// EncodeCSV serialises a header line plus one line per row. Fields containing
// a comma, double quote or newline are quoted with internal quotes doubled.
// Lines are joined with \n and there is no trailing newline.
func EncodeCSV(headers []string, rows [][]string) string {
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, encodeLine(headers))
	for _, row := range rows {
		lines = append(lines, encodeLine(row))
	}
	return strings.Join(lines, "\n")
}

func encodeLine(fields []string) string {
	escaped := make([]string, len(fields))
	for i, field := range fields {
		escaped[i] = escapeField(field)
	}
	return strings.Join(escaped, ",")
}

func escapeField(value string) string {
	if strings.ContainsAny(value, ",\"\n") {
		return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
	}
	return value
}

// GenerateUserTemplate returns the two-line import template: header row plus
// one sample row. The output is byte-identical across calls; onboarding
// tooling relies on it.
func GenerateUserTemplate() string {
	return strings.Join(TemplateHeaders, ",") + "\n" + strings.Join(templateSampleRow, ",")
}

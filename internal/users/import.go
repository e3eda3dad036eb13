package users

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrEmptyBatch indicates an import file without a header and at least one
// data row.
var ErrEmptyBatch = errors.New("import batch must contain a header row and at least one data row")

var requiredHeaders = []string{"email", "first_name", "last_name", "role"}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// HeaderError reports required columns missing from the header row. It is
// raised before any data row is inspected.
type HeaderError struct {
	Missing []string
}

func (e *HeaderError) Error() string {
	return "missing required headers: " + strings.Join(e.Missing, ", ")
}

// RowError reports a validation failure on a single data row. Row numbers are
// 1-based positions in the original file, the header being row 1.
type RowError struct {
	Row    int
	Field  string
	Value  string
	Reason string
}

func (e *RowError) Error() string {
	msg := e.Reason
	if e.Value != "" {
		msg = fmt.Sprintf("%s %q", e.Reason, e.Value)
	}
	if e.Row > 0 {
		msg = fmt.Sprintf("%s in row %d", msg, e.Row)
	}
	return msg
}

// ParseImportBatch maps decoded CSV rows onto import records.
//
// The first row is the header, matched case-insensitively against the
// required set. Unrecognised headers are ignored so newer templates stay
// importable. Blank rows are skipped. Validation is fail-fast: the first bad
// row aborts the whole batch and no partial record list is returned.
func ParseImportBatch(rows [][]string) ([]ImportRecord, error) {
	if len(rows) < 2 {
		return nil, ErrEmptyBatch
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var missing []string
	for _, required := range requiredHeaders {
		found := false
		for _, h := range headers {
			if h == required {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, &HeaderError{Missing: missing}
	}

	var records []ImportRecord
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if blankRow(row) {
			continue
		}
		rowNum := i + 1

		var record ImportRecord
		for col, header := range headers {
			var value string
			if col < len(row) {
				value = strings.TrimSpace(row[col])
			}
			switch header {
			case "email":
				record.Email = value
			case "first_name":
				record.FirstName = value
			case "last_name":
				record.LastName = value
			case "role":
				if value == "" {
					continue
				}
				role, ok := ParseRole(value)
				if !ok {
					return nil, &RowError{
						Row:    rowNum,
						Field:  "role",
						Value:  value,
						Reason: fmt.Sprintf("invalid role (valid roles: %s)", joinRoles()),
					}
				}
				record.Role = role
			case "department":
				record.Department = value
			case "employee_id":
				record.EmployeeID = value
			case "student_id":
				record.StudentID = value
			case "phone_number":
				record.PhoneNumber = value
			}
		}

		if missing := missingFields(record); len(missing) > 0 {
			return nil, &RowError{
				Row:    rowNum,
				Field:  strings.Join(missing, ", "),
				Reason: "missing required fields (" + strings.Join(missing, ", ") + ")",
			}
		}
		if !emailPattern.MatchString(record.Email) {
			return nil, &RowError{
				Row:    rowNum,
				Field:  "email",
				Value:  record.Email,
				Reason: "invalid email format",
			}
		}

		records = append(records, record)
	}

	return records, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func missingFields(record ImportRecord) []string {
	var missing []string
	if record.Email == "" {
		missing = append(missing, "email")
	}
	if record.FirstName == "" {
		missing = append(missing, "first_name")
	}
	if record.LastName == "" {
		missing = append(missing, "last_name")
	}
	if record.Role == "" {
		missing = append(missing, "role")
	}
	return missing
}

func joinRoles() string {
	roles := AllRoles()
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}

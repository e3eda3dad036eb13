package users

import "time"

const exportDateLayout = "2006-01-02"

// ExportRows renders accounts into display-formatted export fields matching
// ExportHeaders. Exports are reports, not re-import files: roles are
// humanised and activity flags spelled out.
func ExportRows(accounts []User) [][]string {
	rows := make([][]string, 0, len(accounts))
	for _, u := range accounts {
		rows = append(rows, []string{
			u.Email,
			u.FirstName,
			u.LastName,
			u.Role.DisplayName(),
			u.Department,
			u.EmployeeID,
			u.StudentID,
			u.PhoneNumber,
			formatActive(u.IsActive),
			u.CreatedAt.Format(exportDateLayout),
			formatLastLogin(u.LastLogin),
		})
	}
	return rows
}

func formatActive(active bool) string {
	if active {
		return "Active"
	}
	return "Inactive"
}

func formatLastLogin(at *time.Time) string {
	if at == nil {
		return "Never"
	}
	return at.Format(exportDateLayout)
}

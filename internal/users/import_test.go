package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var importHeader = []string{"email", "first_name", "last_name", "role"}

func TestParseImportBatchValid(t *testing.T) {
	records, err := ParseImportBatch([][]string{
		importHeader,
		{"jane@uni.edu", "Jane", "Doe", "student"},
		{"mark@uni.edu", "Mark", "Lee", "instructor"},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "jane@uni.edu", records[0].Email)
	assert.Equal(t, RoleStudent, records[0].Role)
	assert.Equal(t, RoleInstructor, records[1].Role)
}

func TestParseImportBatchEmpty(t *testing.T) {
	_, err := ParseImportBatch(nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)

	_, err = ParseImportBatch([][]string{importHeader})
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestParseImportBatchMissingHeaders(t *testing.T) {
	_, err := ParseImportBatch([][]string{
		{"email", "role"},
		{"jane@uni.edu", "student"},
	})
	var headerErr *HeaderError
	require.ErrorAs(t, err, &headerErr)
	assert.Equal(t, []string{"first_name", "last_name"}, headerErr.Missing)
	assert.Equal(t, "missing required headers: first_name, last_name", err.Error())
}

func TestParseImportBatchHeaderCaseInsensitive(t *testing.T) {
	records, err := ParseImportBatch([][]string{
		{"Email", "FIRST_NAME", "Last_Name", "Role"},
		{"jane@uni.edu", "Jane", "Doe", "student"},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestParseImportBatchUnknownHeadersIgnored(t *testing.T) {
	records, err := ParseImportBatch([][]string{
		{"email", "first_name", "last_name", "role", "favourite_color"},
		{"jane@uni.edu", "Jane", "Doe", "student", "teal"},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Jane", records[0].FirstName)
}

func TestParseImportBatchInvalidRole(t *testing.T) {
	_, err := ParseImportBatch([][]string{
		importHeader,
		{"jane@uni.edu", "Jane", "Doe", "wizard"},
	})
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 2, rowErr.Row)
	assert.Equal(t, "role", rowErr.Field)
	assert.Equal(t, "wizard", rowErr.Value)
	assert.Contains(t, rowErr.Reason, "valid roles: super_admin, admin, lab_manager, instructor, lab_staff, student")
}

func TestParseImportBatchMissingFields(t *testing.T) {
	_, err := ParseImportBatch([][]string{
		importHeader,
		{"jane@uni.edu", "", "", "student"},
	})
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 2, rowErr.Row)
	assert.Equal(t, "missing required fields (first_name, last_name) in row 2", rowErr.Error())
}

func TestParseImportBatchInvalidEmail(t *testing.T) {
	_, err := ParseImportBatch([][]string{
		importHeader,
		{"not-an-email", "Jane", "Doe", "student"},
	})
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, "email", rowErr.Field)
	assert.Equal(t, `invalid email format "not-an-email" in row 2`, rowErr.Error())
}

func TestParseImportBatchFailFast(t *testing.T) {
	// The bad second row aborts the batch even though rows one and three
	// are valid on their own.
	records, err := ParseImportBatch([][]string{
		importHeader,
		{"jane@uni.edu", "Jane", "Doe", "student"},
		{"bad", "Bad", "Row", "student"},
		{"mark@uni.edu", "Mark", "Lee", "student"},
	})
	assert.Nil(t, records)
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 3, rowErr.Row)
}

func TestParseImportBatchRowNumbersCountBlankRows(t *testing.T) {
	// Row numbers refer to positions in the decoded input, so a blank row
	// still occupies its slot.
	_, err := ParseImportBatch([][]string{
		importHeader,
		{"", "", "", ""},
		{"bad", "Jane", "Doe", "student"},
	})
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 3, rowErr.Row)
}

func TestParseImportBatchSkipsBlankRows(t *testing.T) {
	records, err := ParseImportBatch([][]string{
		importHeader,
		{"", "", "", ""},
		{"jane@uni.edu", "Jane", "Doe", "student"},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestParseImportBatchShortRow(t *testing.T) {
	// A row with fewer cells than headers treats the tail as empty.
	_, err := ParseImportBatch([][]string{
		importHeader,
		{"jane@uni.edu", "Jane"},
	})
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Contains(t, rowErr.Error(), "last_name, role")
}

func TestParseImportBatchOptionalColumns(t *testing.T) {
	records, err := ParseImportBatch([][]string{
		{"email", "first_name", "last_name", "role", "department", "employee_id", "student_id", "phone_number"},
		{"sam@uni.edu", "Sam", "Hill", "lab_staff", "Physics", "EMP042", "", "+15551234567"},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Physics", records[0].Department)
	assert.Equal(t, "EMP042", records[0].EmployeeID)
	assert.Empty(t, records[0].StudentID)
	assert.Equal(t, "+15551234567", records[0].PhoneNumber)
}

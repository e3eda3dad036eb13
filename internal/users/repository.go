package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lablink/lablink/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, first_name, last_name, role, department, employee_id, student_id,
phone_number, auth_provider, is_active, email_verified, profile_completed,
registration_completed, created_at, last_login, updated_at`

// ListUsers returns users matching search, role and department filters,
// newest first. Status filtering happens in the service layer.
func (r *Repository) ListUsers(ctx context.Context, filter ListFilter) ([]User, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		conditions = append(conditions, fmt.Sprintf(
			`(lower(first_name) LIKE %[1]s OR lower(last_name) LIKE %[1]s OR lower(email) LIKE %[1]s
			OR lower(coalesce(employee_id, '')) LIKE %[1]s OR lower(coalesce(student_id, '')) LIKE %[1]s)`,
			placeholder))
	}
	if filter.Role != "" {
		args = append(args, string(filter.Role))
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)))
	}

	query := `SELECT ` + userColumns + ` FROM users`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetUser fetches a user by ID.
func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id.String())
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindByEmail fetches a user by email, case-insensitively.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts a provisioned account with its temporary credential.
func (r *Repository) CreateUser(ctx context.Context, u User, passwordHash string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO users (
	id, email, first_name, last_name, role, department, employee_id, student_id,
	phone_number, auth_provider, is_active, email_verified, profile_completed,
	registration_completed, password_hash, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''),
	NULLIF($9, ''), $10, $11, $12, $13, $14, $15, NOW(), NOW())`,
		u.ID.String(), u.Email, u.FirstName, u.LastName, string(u.Role),
		u.Department, u.EmployeeID, u.StudentID, u.PhoneNumber, u.AuthProvider,
		u.IsActive, u.EmailVerified, u.ProfileCompleted, u.RegistrationCompleted,
		passwordHash)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// UpdateUser persists editable account fields.
func (r *Repository) UpdateUser(ctx context.Context, u User) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET
	first_name = $2,
	last_name = $3,
	role = $4,
	department = NULLIF($5, ''),
	employee_id = NULLIF($6, ''),
	student_id = NULLIF($7, ''),
	phone_number = NULLIF($8, ''),
	is_active = $9,
	updated_at = NOW()
WHERE id = $1`,
		u.ID.String(), u.FirstName, u.LastName, string(u.Role), u.Department,
		u.EmployeeID, u.StudentID, u.PhoneNumber, u.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteUser removes an account.
func (r *Repository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetActive toggles the active flag.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id.String(), active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountByRole tallies accounts per role.
func (r *Repository) CountByRole(ctx context.Context) (map[Role]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Role]int)
	for rows.Next() {
		var role string
		var count int
		if err := rows.Scan(&role, &count); err != nil {
			return nil, err
		}
		counts[Role(role)] = count
	}
	return counts, rows.Err()
}

// CountByStatus tallies active and inactive accounts.
func (r *Repository) CountByStatus(ctx context.Context) (int, int, error) {
	var active, inactive int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE is_active), COUNT(*) FILTER (WHERE NOT is_active) FROM users`).
		Scan(&active, &inactive)
	return active, inactive, err
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u          User
		id         string
		role       string
		department pgtype.Text
		employee   pgtype.Text
		student    pgtype.Text
		phone      pgtype.Text
		provider   pgtype.Text
		lastLogin  pgtype.Timestamptz
	)
	err := row.Scan(&id, &u.Email, &u.FirstName, &u.LastName, &role, &department,
		&employee, &student, &phone, &provider, &u.IsActive, &u.EmailVerified,
		&u.ProfileCompleted, &u.RegistrationCompleted, &u.CreatedAt, &lastLogin, &u.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return User{}, fmt.Errorf("users: parse id %q: %w", id, err)
	}
	u.ID = parsed
	u.Role = Role(role)
	u.Department = department.String
	u.EmployeeID = employee.String
	u.StudentID = student.String
	u.PhoneNumber = phone.String
	u.AuthProvider = provider.String
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return u, nil
}

var _ RepositoryPort = (*Repository)(nil)

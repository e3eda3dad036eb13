package identity

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lablink/lablink/internal/platform/db"
	"github.com/lablink/lablink/internal/shared"
	"github.com/lablink/lablink/internal/users"
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const profileColumns = `id, email, first_name, last_name, role, department, employee_id, student_id,
phone_number, profile_image_url, auth_provider, is_active, profile_completed,
registration_completed, email_verified, created_at`

// FindProfile fetches a stored profile by principal ID.
func (r *PGRepository) FindProfile(ctx context.Context, id string) (*StoredProfile, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM users WHERE id = $1`, id)
	return scanStoredProfile(row)
}

// FindProfileByEmail fetches a stored profile by email.
func (r *PGRepository) FindProfileByEmail(ctx context.Context, email string) (*StoredProfile, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanStoredProfile(row)
}

// SaveProfile upserts the reconciled profile keyed by principal ID.
func (r *PGRepository) SaveProfile(ctx context.Context, p Profile) error {
	return upsertProfile(ctx, r.pool, p)
}

// CreateAccount writes the profile and its password hash in one transaction
// so a failed credential write never leaves a password-less row behind.
func (r *PGRepository) CreateAccount(ctx context.Context, p Profile, passwordHash string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := upsertProfile(ctx, tx, p); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
			p.ID, passwordHash)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func upsertProfile(ctx context.Context, ex execer, p Profile) error {
	_, err := ex.Exec(ctx, `INSERT INTO users (
	id, email, first_name, last_name, role, department, employee_id, student_id,
	phone_number, profile_image_url, auth_provider, is_active, profile_completed,
	registration_completed, email_verified, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''),
	NULLIF($9, ''), NULLIF($10, ''), $11, $12, $13, $14, $15, COALESCE($16, NOW()), NOW())
ON CONFLICT (id) DO UPDATE SET
	email = EXCLUDED.email,
	first_name = EXCLUDED.first_name,
	last_name = EXCLUDED.last_name,
	role = EXCLUDED.role,
	department = EXCLUDED.department,
	employee_id = EXCLUDED.employee_id,
	student_id = EXCLUDED.student_id,
	phone_number = EXCLUDED.phone_number,
	profile_image_url = EXCLUDED.profile_image_url,
	auth_provider = EXCLUDED.auth_provider,
	is_active = EXCLUDED.is_active,
	profile_completed = EXCLUDED.profile_completed,
	registration_completed = EXCLUDED.registration_completed,
	email_verified = EXCLUDED.email_verified,
	updated_at = NOW()`,
		p.ID, p.Email, p.FirstName, p.LastName, string(p.Role), p.Department,
		p.EmployeeID, p.StudentID, p.PhoneNumber, p.ProfileImageURL,
		string(p.AuthProvider), p.IsActive, p.ProfileCompleted,
		p.RegistrationCompleted, p.EmailVerified, timestamptz(p.CreatedAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// CompleteProfile fills in required fields and marks the account completed.
func (r *PGRepository) CompleteProfile(ctx context.Context, id string, c ProfileCompletion) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET
	first_name = $2,
	last_name = $3,
	role = $4,
	department = NULLIF($5, ''),
	employee_id = NULLIF($6, ''),
	student_id = NULLIF($7, ''),
	phone_number = NULLIF($8, ''),
	profile_completed = TRUE,
	registration_completed = TRUE,
	updated_at = NOW()
WHERE id = $1`,
		id, c.FirstName, c.LastName, string(c.Role), c.Department, c.EmployeeID, c.StudentID, c.PhoneNumber)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CredentialByEmail returns the account ID and password hash for login.
func (r *PGRepository) CredentialByEmail(ctx context.Context, email string) (string, string, error) {
	var id, hash string
	err := r.pool.QueryRow(ctx,
		`SELECT id, password_hash FROM users WHERE lower(email) = lower($1) AND password_hash IS NOT NULL`,
		email).Scan(&id, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", shared.ErrNotFound
		}
		return "", "", err
	}
	return id, hash, nil
}

// MarkEmailVerified flags the address as verified and completes a pending
// email registration.
func (r *PGRepository) MarkEmailVerified(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET email_verified = TRUE, registration_completed = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// RecordLogin stamps the last successful login.
func (r *PGRepository) RecordLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
	return err
}

func scanStoredProfile(row pgx.Row) (*StoredProfile, error) {
	var (
		p          StoredProfile
		firstName  pgtype.Text
		lastName   pgtype.Text
		role       pgtype.Text
		department pgtype.Text
		employee   pgtype.Text
		student    pgtype.Text
		phone      pgtype.Text
		avatar     pgtype.Text
		provider   pgtype.Text
		createdAt  pgtype.Timestamptz
	)
	err := row.Scan(&p.ID, &p.Email, &firstName, &lastName, &role, &department,
		&employee, &student, &phone, &avatar, &provider, &p.IsActive,
		&p.ProfileCompleted, &p.RegistrationCompleted, &p.EmailVerified, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	p.FirstName = firstName.String
	p.LastName = lastName.String
	p.Role = users.Role(role.String)
	p.Department = department.String
	p.EmployeeID = employee.String
	p.StudentID = student.String
	p.PhoneNumber = phone.String
	p.ProfileImageURL = avatar.String
	p.AuthProvider = Provider(provider.String)
	if createdAt.Valid {
		t := createdAt.Time
		p.CreatedAt = &t
	}
	return &p, nil
}

func timestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

var _ Repository = (*PGRepository)(nil)

package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/lablink/lablink/internal/shared"
	"github.com/lablink/lablink/internal/users"
)

// Repository defines persistence operations for the identity module.
type Repository interface {
	FindProfile(ctx context.Context, id string) (*StoredProfile, error)
	FindProfileByEmail(ctx context.Context, email string) (*StoredProfile, error)
	SaveProfile(ctx context.Context, profile Profile) error
	CreateAccount(ctx context.Context, profile Profile, passwordHash string) error
	CompleteProfile(ctx context.Context, id string, completion ProfileCompletion) error
	CredentialByEmail(ctx context.Context, email string) (id string, hash string, err error)
	MarkEmailVerified(ctx context.Context, id string) error
	RecordLogin(ctx context.Context, id string, at time.Time) error
}

// Mailer enqueues identity-related notification emails.
type Mailer interface {
	EnqueueVerificationEmail(ctx context.Context, email, name string) error
}

// RegisterInput is a validated email/password signup request.
type RegisterInput struct {
	ID          string
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Role        users.Role
	Department  string
	EmployeeID  string
	StudentID   string
	PhoneNumber string
}

// ProfileCompletion carries the fields an OAuth account fills in after its
// first sign-in.
type ProfileCompletion struct {
	FirstName   string
	LastName    string
	Role        users.Role
	Department  string
	EmployeeID  string
	StudentID   string
	PhoneNumber string
}

// ErrWeakPassword rejects signup passwords that fail the policy.
var ErrWeakPassword = errors.New("password does not meet the policy")

// ErrRoleIdentifierMissing rejects role/identifier combinations: staff roles
// require an employee ID and students a student ID.
var ErrRoleIdentifierMissing = errors.New("employee ID is required for staff roles, student ID is required for students")

// Service wraps identity business rules.
type Service struct {
	repo   Repository
	mailer Mailer
	now    func() time.Time
}

// NewService constructs a new Service.
func NewService(repo Repository, mailer Mailer) *Service {
	return &Service{repo: repo, mailer: mailer, now: time.Now}
}

// EnsureProfile resolves the application profile for an authenticated
// principal, creating one on first sight and merging stored fields over
// defaults otherwise. The reconciled profile is persisted before returning.
func (s *Service) EnsureProfile(ctx context.Context, principal Principal) (Profile, error) {
	stored, err := s.repo.FindProfile(ctx, principal.ID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return Profile{}, fmt.Errorf("identity: find profile: %w", err)
	}

	profile := Reconcile(principal, stored)
	if err := s.repo.SaveProfile(ctx, profile); err != nil {
		return Profile{}, fmt.Errorf("identity: save profile: %w", err)
	}
	return profile, nil
}

// Register creates an email/password account. The profile starts with
// registration pending until the verification email is acted on.
func (s *Service) Register(ctx context.Context, input RegisterInput) (Profile, error) {
	if !PasswordStrength(input.Password).Valid {
		return Profile{}, ErrWeakPassword
	}
	if err := validateRoleIdentifiers(input.Role, input.EmployeeID, input.StudentID); err != nil {
		return Profile{}, err
	}

	if _, err := s.repo.FindProfileByEmail(ctx, input.Email); err == nil {
		return Profile{}, shared.ErrDuplicateEmail
	} else if !errors.Is(err, shared.ErrNotFound) {
		return Profile{}, fmt.Errorf("identity: check email: %w", err)
	}

	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	profile := Profile{
		ID:                    input.ID,
		Email:                 input.Email,
		FirstName:             input.FirstName,
		LastName:              input.LastName,
		Role:                  input.Role,
		Department:            input.Department,
		EmployeeID:            input.EmployeeID,
		StudentID:             input.StudentID,
		PhoneNumber:           input.PhoneNumber,
		AuthProvider:          ProviderEmail,
		IsActive:              true,
		RegistrationCompleted: false,
		ProfileCompleted:      true,
		EmailVerified:         false,
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return Profile{}, fmt.Errorf("identity: hash password: %w", err)
	}
	// Profile and credential land in one transaction; a failed credential
	// write must not leave a password-less account behind.
	if err := s.repo.CreateAccount(ctx, profile, string(hash)); err != nil {
		return Profile{}, fmt.Errorf("identity: create account: %w", err)
	}

	if s.mailer != nil {
		if err := s.mailer.EnqueueVerificationEmail(ctx, profile.Email, profile.FirstName); err != nil {
			// Account creation stands; verification can be re-requested.
			return profile, nil
		}
	}
	return profile, nil
}

// Authenticate validates email/password credentials and records the login.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Profile, error) {
	id, hash, err := s.repo.CredentialByEmail(ctx, email)
	if err != nil {
		return Profile{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return Profile{}, shared.ErrInvalidCredentials
	}

	stored, err := s.repo.FindProfile(ctx, id)
	if err != nil {
		return Profile{}, shared.ErrInvalidCredentials
	}
	profile := Reconcile(Principal{ID: id, Email: email}, stored)
	if !profile.IsActive {
		return Profile{}, shared.ErrAccountInactive
	}

	_ = s.repo.RecordLogin(ctx, id, s.now().UTC())
	return profile, nil
}

// CompleteProfile fills in the required fields for an account and marks both
// profile and registration as completed.
func (s *Service) CompleteProfile(ctx context.Context, id string, completion ProfileCompletion) error {
	if err := validateRoleIdentifiers(completion.Role, completion.EmployeeID, completion.StudentID); err != nil {
		return err
	}
	return s.repo.CompleteProfile(ctx, id, completion)
}

// VerifyEmail marks the account's address as verified and completes a
// pending email registration.
func (s *Service) VerifyEmail(ctx context.Context, id string) error {
	return s.repo.MarkEmailVerified(ctx, id)
}

// ProfileByID loads and reconciles the stored profile for a session user.
func (s *Service) ProfileByID(ctx context.Context, id string) (Profile, error) {
	stored, err := s.repo.FindProfile(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	return Reconcile(Principal{ID: stored.ID, Email: stored.Email}, stored), nil
}

// RoleFor returns the current role of an account, for authorization gates.
func (s *Service) RoleFor(ctx context.Context, id string) (users.Role, error) {
	profile, err := s.ProfileByID(ctx, id)
	if err != nil {
		return "", err
	}
	return profile.Role, nil
}

func validateRoleIdentifiers(role users.Role, employeeID, studentID string) error {
	if role.IsStaff() && employeeID == "" {
		return ErrRoleIdentifierMissing
	}
	if role == users.RoleStudent && studentID == "" {
		return ErrRoleIdentifierMissing
	}
	return nil
}

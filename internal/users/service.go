package users

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/lablink/lablink/internal/shared"
)

// RepositoryPort defines data access methods for user administration.
type RepositoryPort interface {
	ListUsers(ctx context.Context, filter ListFilter) ([]User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	CreateUser(ctx context.Context, user User, passwordHash string) error
	UpdateUser(ctx context.Context, user User) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	CountByRole(ctx context.Context) (map[Role]int, error)
	CountByStatus(ctx context.Context) (active int, inactive int, err error)
}

// Mailer enqueues administrative notification emails.
type Mailer interface {
	EnqueueInviteEmail(ctx context.Context, email, name, tempPassword string) error
}

// ListFilter narrows a user listing. Status is resolved in the service since
// the pending state is derived, not stored.
type ListFilter struct {
	Search     string
	Role       Role
	Status     string
	Department string
	Page       int
	PerPage    int
}

// UserPage is one page of a filtered listing.
type UserPage struct {
	Users      []User
	Pagination shared.Pagination
}

// ImportFailure records one row the import loop could not create.
type ImportFailure struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// ImportSummary reports the outcome of a create-or-skip import run.
type ImportSummary struct {
	Created   int             `json:"created"`
	Skipped   []string        `json:"skipped"`
	Failures  []ImportFailure `json:"failures"`
	RowsTotal int             `json:"rows_total"`
}

// Stats aggregates console dashboard counters.
type Stats struct {
	ByRole          map[Role]int `json:"by_role"`
	Active          int          `json:"active"`
	Inactive        int          `json:"inactive"`
	PendingApproval int          `json:"pending_approval"`
}

// ErrNotPendingApproval rejects approval of accounts that are not awaiting it.
var ErrNotPendingApproval = errors.New("account is not pending approval")

// Service handles user administration business logic.
type Service struct {
	repo   RepositoryPort
	mailer Mailer
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, mailer Mailer, logger *slog.Logger) *Service {
	return &Service{repo: repo, mailer: mailer, logger: logger, now: time.Now}
}

// List returns a page of users matching the filter. The pending status is
// derived from the approval heuristic, so status filtering and pagination
// happen here rather than in SQL.
func (s *Service) List(ctx context.Context, filter ListFilter) (UserPage, error) {
	matched, err := s.repo.ListUsers(ctx, filter)
	if err != nil {
		return UserPage{}, err
	}

	now := s.now()
	switch filter.Status {
	case "active":
		matched = filterUsers(matched, func(u User) bool { return u.IsActive })
	case "inactive":
		matched = filterUsers(matched, func(u User) bool { return !u.IsActive && !NeedsApproval(u, now) })
	case "pending":
		matched = filterUsers(matched, func(u User) bool { return NeedsApproval(u, now) })
	}

	page := shared.NewPagination(filter.Page, filter.PerPage, len(matched))
	start := page.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + page.PerPage
	if end > len(matched) {
		end = len(matched)
	}
	return UserPage{Users: matched[start:end], Pagination: page}, nil
}

// Get fetches one user by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetUser(ctx, id)
}

// Create provisions an account from the admin console.
func (s *Service) Create(ctx context.Context, user User) (User, error) {
	if !emailPattern.MatchString(user.Email) {
		return User{}, &RowError{Row: 0, Field: "email", Value: user.Email, Reason: "invalid email format"}
	}
	if _, err := s.repo.FindByEmail(ctx, user.Email); err == nil {
		return User{}, shared.ErrDuplicateEmail
	} else if !errors.Is(err, shared.ErrNotFound) {
		return User{}, err
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.AuthProvider = "email"
	user.EmailVerified = true
	user.ProfileCompleted = true
	user.RegistrationCompleted = true

	temp, hash, err := tempCredential()
	if err != nil {
		return User{}, fmt.Errorf("users: temp credential: %w", err)
	}
	if err := s.repo.CreateUser(ctx, user, hash); err != nil {
		return User{}, err
	}
	s.enqueueInvite(ctx, user, temp)
	return user, nil
}

// Update modifies an existing account.
func (s *Service) Update(ctx context.Context, user User) error {
	if _, ok := ParseRole(string(user.Role)); !ok {
		return &RowError{Field: "role", Value: string(user.Role), Reason: "invalid role"}
	}
	return s.repo.UpdateUser(ctx, user)
}

// Delete removes an account.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteUser(ctx, id)
}

// SetActive toggles the account's active flag.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return s.repo.SetActive(ctx, id, active)
}

// Approve activates an account that the approval heuristic marks as pending.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) error {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if !NeedsApproval(*user, s.now()) {
		return ErrNotPendingApproval
	}
	return s.repo.SetActive(ctx, id, true)
}

// ImportCSV validates an uploaded CSV and provisions an account per row.
//
// Validation is all-or-nothing: a bad row aborts before anything is created.
// Creation is create-or-skip per row: existing emails are skipped, store
// failures are recorded without aborting the rest of the batch (account
// creation is not transactional across rows).
func (s *Service) ImportCSV(ctx context.Context, csvText string) (ImportSummary, error) {
	records, err := ParseImportBatch(DecodeCSV(csvText))
	if err != nil {
		return ImportSummary{}, err
	}

	summary := ImportSummary{RowsTotal: len(records)}
	for _, record := range records {
		if _, err := s.repo.FindByEmail(ctx, record.Email); err == nil {
			summary.Skipped = append(summary.Skipped, record.Email)
			continue
		} else if !errors.Is(err, shared.ErrNotFound) {
			summary.Failures = append(summary.Failures, ImportFailure{Email: record.Email, Reason: "store lookup failed"})
			continue
		}

		user := User{
			ID:                    uuid.New(),
			Email:                 record.Email,
			FirstName:             record.FirstName,
			LastName:              record.LastName,
			Role:                  record.Role,
			Department:            record.Department,
			EmployeeID:            record.EmployeeID,
			StudentID:             record.StudentID,
			PhoneNumber:           record.PhoneNumber,
			AuthProvider:          "email",
			IsActive:              true,
			EmailVerified:         true,
			ProfileCompleted:      true,
			RegistrationCompleted: true,
		}
		temp, hash, err := tempCredential()
		if err != nil {
			return summary, fmt.Errorf("users: temp credential: %w", err)
		}
		if err := s.repo.CreateUser(ctx, user, hash); err != nil {
			s.logger.Warn("import row failed", slog.String("email", record.Email), slog.Any("error", err))
			summary.Failures = append(summary.Failures, ImportFailure{Email: record.Email, Reason: shared.UserSafeMessage(err)})
			continue
		}
		s.enqueueInvite(ctx, user, temp)
		summary.Created++
	}
	return summary, nil
}

// ExportCSV renders the filtered listing as CSV text.
func (s *Service) ExportCSV(ctx context.Context, filter ListFilter) (string, error) {
	// Export ignores pagination; the whole filtered set is written.
	filter.Page = 1
	filter.PerPage = 0
	matched, err := s.repo.ListUsers(ctx, filter)
	if err != nil {
		return "", err
	}
	now := s.now()
	switch filter.Status {
	case "active":
		matched = filterUsers(matched, func(u User) bool { return u.IsActive })
	case "inactive":
		matched = filterUsers(matched, func(u User) bool { return !u.IsActive && !NeedsApproval(u, now) })
	case "pending":
		matched = filterUsers(matched, func(u User) bool { return NeedsApproval(u, now) })
	}
	return EncodeCSV(ExportHeaders, ExportRows(matched)), nil
}

// Template returns the import template CSV.
func (s *Service) Template() string {
	return GenerateUserTemplate()
}

// Stats gathers console counters. The three queries are independent and run
// concurrently.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		byRole, err := s.repo.CountByRole(ctx)
		if err != nil {
			return err
		}
		stats.ByRole = byRole
		return nil
	})
	g.Go(func() error {
		active, inactive, err := s.repo.CountByStatus(ctx)
		if err != nil {
			return err
		}
		stats.Active = active
		stats.Inactive = inactive
		return nil
	})
	g.Go(func() error {
		all, err := s.repo.ListUsers(ctx, ListFilter{})
		if err != nil {
			return err
		}
		now := s.now()
		for _, u := range all {
			if NeedsApproval(u, now) {
				stats.PendingApproval++
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (s *Service) enqueueInvite(ctx context.Context, user User, tempPassword string) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.EnqueueInviteEmail(ctx, user.Email, user.FirstName, tempPassword); err != nil {
		s.logger.Warn("enqueue invite email", slog.String("email", user.Email), slog.Any("error", err))
	}
}

func filterUsers(in []User, keep func(User) bool) []User {
	out := in[:0]
	for _, u := range in {
		if keep(u) {
			out = append(out, u)
		}
	}
	return out
}

const tempPasswordLength = 16

// One character per class keeps generated credentials policy-compliant.
var tempPasswordCharsets = []string{
	"ABCDEFGHJKLMNPQRSTUVWXYZ",
	"abcdefghijkmnpqrstuvwxyz",
	"23456789",
	"!@#$%^&*",
}

func tempCredential() (password string, hash string, err error) {
	full := strings.Join(tempPasswordCharsets, "")
	var sb strings.Builder
	for i := 0; i < tempPasswordLength; i++ {
		source := full
		if i < len(tempPasswordCharsets) {
			source = tempPasswordCharsets[i]
		}
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(source))))
		if err != nil {
			return "", "", err
		}
		sb.WriteByte(source[n.Int64()])
	}
	password = sb.String()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}
	return password, string(hashed), nil
}

package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lablink/lablink/internal/shared"
	"github.com/lablink/lablink/internal/users"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	profiles    map[string]*StoredProfile
	credentials map[string]string
	logins      map[string]time.Time

	// Error injection
	findError    error
	saveError    error
	accountError error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		profiles:    make(map[string]*StoredProfile),
		credentials: make(map[string]string),
		logins:      make(map[string]time.Time),
	}
}

func boolPtr(v bool) *bool { return &v }

func storedFromProfile(p Profile) *StoredProfile {
	return &StoredProfile{
		ID:                    p.ID,
		Email:                 p.Email,
		FirstName:             p.FirstName,
		LastName:              p.LastName,
		Role:                  p.Role,
		Department:            p.Department,
		EmployeeID:            p.EmployeeID,
		StudentID:             p.StudentID,
		PhoneNumber:           p.PhoneNumber,
		ProfileImageURL:       p.ProfileImageURL,
		AuthProvider:          p.AuthProvider,
		IsActive:              boolPtr(p.IsActive),
		ProfileCompleted:      boolPtr(p.ProfileCompleted),
		RegistrationCompleted: boolPtr(p.RegistrationCompleted),
		EmailVerified:         boolPtr(p.EmailVerified),
		CreatedAt:             p.CreatedAt,
	}
}

func (m *mockRepository) FindProfile(ctx context.Context, id string) (*StoredProfile, error) {
	if m.findError != nil {
		return nil, m.findError
	}
	p, ok := m.profiles[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return p, nil
}

func (m *mockRepository) FindProfileByEmail(ctx context.Context, email string) (*StoredProfile, error) {
	for _, p := range m.profiles {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockRepository) SaveProfile(ctx context.Context, profile Profile) error {
	if m.saveError != nil {
		return m.saveError
	}
	m.profiles[profile.ID] = storedFromProfile(profile)
	return nil
}

func (m *mockRepository) CompleteProfile(ctx context.Context, id string, completion ProfileCompletion) error {
	p, ok := m.profiles[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.FirstName = completion.FirstName
	p.LastName = completion.LastName
	p.Role = completion.Role
	p.Department = completion.Department
	p.EmployeeID = completion.EmployeeID
	p.StudentID = completion.StudentID
	p.PhoneNumber = completion.PhoneNumber
	p.ProfileCompleted = boolPtr(true)
	p.RegistrationCompleted = boolPtr(true)
	return nil
}

func (m *mockRepository) CreateAccount(ctx context.Context, profile Profile, passwordHash string) error {
	if m.saveError != nil {
		return m.saveError
	}
	if m.accountError != nil {
		return m.accountError
	}
	m.profiles[profile.ID] = storedFromProfile(profile)
	m.credentials[profile.ID] = passwordHash
	return nil
}

func (m *mockRepository) CredentialByEmail(ctx context.Context, email string) (string, string, error) {
	for id, p := range m.profiles {
		if p.Email == email {
			hash, ok := m.credentials[id]
			if !ok {
				return "", "", shared.ErrNotFound
			}
			return id, hash, nil
		}
	}
	return "", "", shared.ErrNotFound
}

func (m *mockRepository) MarkEmailVerified(ctx context.Context, id string) error {
	p, ok := m.profiles[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.EmailVerified = boolPtr(true)
	p.RegistrationCompleted = boolPtr(true)
	return nil
}

func (m *mockRepository) RecordLogin(ctx context.Context, id string, at time.Time) error {
	m.logins[id] = at
	return nil
}

type mockMailer struct {
	verifications []string
}

func (m *mockMailer) EnqueueVerificationEmail(ctx context.Context, email, name string) error {
	m.verifications = append(m.verifications, email)
	return nil
}

func validRegisterInput() RegisterInput {
	return RegisterInput{
		Email:     "ann@university.edu",
		Password:  "Sup3rSecret!",
		FirstName: "Ann",
		LastName:  "Smith",
		Role:      users.RoleStudent,
		StudentID: "CS2024001",
	}
}

// ============================================================================
// TESTS
// ============================================================================

func TestRegister(t *testing.T) {
	repo := newMockRepository()
	mailer := &mockMailer{}
	svc := NewService(repo, mailer)

	profile, err := svc.Register(context.Background(), validRegisterInput())
	require.NoError(t, err)
	assert.NotEmpty(t, profile.ID)
	assert.Equal(t, ProviderEmail, profile.AuthProvider)
	assert.True(t, profile.IsActive)
	assert.True(t, profile.ProfileCompleted)
	assert.False(t, profile.RegistrationCompleted)
	assert.False(t, profile.EmailVerified)
	assert.Equal(t, []string{"ann@university.edu"}, mailer.verifications)

	hash := repo.credentials[profile.ID]
	require.NotEmpty(t, hash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("Sup3rSecret!")))
}

func TestRegisterWeakPassword(t *testing.T) {
	svc := NewService(newMockRepository(), &mockMailer{})
	input := validRegisterInput()
	input.Password = "password"
	_, err := svc.Register(context.Background(), input)
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestRegisterRoleIdentifiers(t *testing.T) {
	svc := NewService(newMockRepository(), &mockMailer{})

	input := validRegisterInput()
	input.StudentID = ""
	_, err := svc.Register(context.Background(), input)
	assert.ErrorIs(t, err, ErrRoleIdentifierMissing)

	input = validRegisterInput()
	input.Role = users.RoleInstructor
	input.StudentID = ""
	_, err = svc.Register(context.Background(), input)
	assert.ErrorIs(t, err, ErrRoleIdentifierMissing)

	input.EmployeeID = "EMP001"
	_, err = svc.Register(context.Background(), input)
	assert.NoError(t, err)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, &mockMailer{})

	_, err := svc.Register(context.Background(), validRegisterInput())
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), validRegisterInput())
	assert.ErrorIs(t, err, shared.ErrDuplicateEmail)
}

func TestRegisterFailedAccountWriteLeavesNoProfile(t *testing.T) {
	repo := newMockRepository()
	repo.accountError = errors.New("connection reset")
	svc := NewService(repo, &mockMailer{})

	_, err := svc.Register(context.Background(), validRegisterInput())
	require.Error(t, err)

	// Neither half of the account write may survive the failure.
	_, err = repo.FindProfileByEmail(context.Background(), "ann@university.edu")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Empty(t, repo.credentials)

	// A retry of the same registration must not hit the duplicate check.
	repo.accountError = nil
	_, err = svc.Register(context.Background(), validRegisterInput())
	assert.NoError(t, err)
}

func TestAuthenticate(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, &mockMailer{})

	registered, err := svc.Register(context.Background(), validRegisterInput())
	require.NoError(t, err)

	profile, err := svc.Authenticate(context.Background(), "ann@university.edu", "Sup3rSecret!")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, profile.ID)
	assert.False(t, repo.logins[registered.ID].IsZero())
}

func TestAuthenticateWrongPassword(t *testing.T) {
	svc := NewService(newMockRepository(), &mockMailer{})
	_, err := svc.Register(context.Background(), validRegisterInput())
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), "ann@university.edu", "wrong")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "nobody@university.edu", "Sup3rSecret!")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateInactiveAccount(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, &mockMailer{})

	registered, err := svc.Register(context.Background(), validRegisterInput())
	require.NoError(t, err)
	repo.profiles[registered.ID].IsActive = boolPtr(false)

	_, err = svc.Authenticate(context.Background(), "ann@university.edu", "Sup3rSecret!")
	assert.ErrorIs(t, err, shared.ErrAccountInactive)
}

func TestEnsureProfileFirstSight(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, &mockMailer{})

	profile, err := svc.EnsureProfile(context.Background(), Principal{
		ID:       "oauth-1",
		Email:    "ann@gmail.com",
		Provider: "google",
		Metadata: map[string]string{"given_name": "Ann"},
	})
	require.NoError(t, err)
	assert.Equal(t, ProviderGoogle, profile.AuthProvider)
	assert.True(t, profile.RegistrationCompleted)
	require.NotNil(t, repo.profiles["oauth-1"])
}

func TestEnsureProfileMergesStored(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, &mockMailer{})
	repo.profiles["oauth-1"] = &StoredProfile{
		ID:         "oauth-1",
		Email:      "ann@gmail.com",
		Department: "CS",
		Role:       users.RoleLabManager,
	}

	profile, err := svc.EnsureProfile(context.Background(), Principal{
		ID:       "oauth-1",
		Email:    "ann@gmail.com",
		Provider: "google",
		Metadata: map[string]string{"given_name": "Ann"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ann", profile.FirstName)
	assert.Equal(t, "CS", profile.Department)
	assert.Equal(t, users.RoleLabManager, profile.Role)
}

func TestCompleteProfile(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, &mockMailer{})
	repo.profiles["oauth-1"] = &StoredProfile{ID: "oauth-1", Email: "ann@gmail.com", AuthProvider: ProviderGoogle}

	err := svc.CompleteProfile(context.Background(), "oauth-1", ProfileCompletion{
		FirstName: "Ann",
		LastName:  "Smith",
		Role:      users.RoleInstructor,
	})
	assert.ErrorIs(t, err, ErrRoleIdentifierMissing)

	err = svc.CompleteProfile(context.Background(), "oauth-1", ProfileCompletion{
		FirstName:  "Ann",
		LastName:   "Smith",
		Role:       users.RoleInstructor,
		EmployeeID: "EMP001",
	})
	require.NoError(t, err)
	assert.True(t, *repo.profiles["oauth-1"].ProfileCompleted)
	assert.True(t, *repo.profiles["oauth-1"].RegistrationCompleted)
}

func TestVerifyEmail(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, &mockMailer{})

	registered, err := svc.Register(context.Background(), validRegisterInput())
	require.NoError(t, err)
	require.NoError(t, svc.VerifyEmail(context.Background(), registered.ID))
	assert.True(t, *repo.profiles[registered.ID].EmailVerified)
	assert.True(t, *repo.profiles[registered.ID].RegistrationCompleted)
}

func TestRoleFor(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, &mockMailer{})
	repo.profiles["u1"] = &StoredProfile{ID: "u1", Email: "a@b.com", Role: users.RoleAdmin}

	role, err := svc.RoleFor(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, users.RoleAdmin, role)

	_, err = svc.RoleFor(context.Background(), "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lablink/lablink/internal/users"
)

func readyProfile() *Profile {
	return &Profile{
		ID:                    "u1",
		Email:                 "ann@gmail.com",
		FirstName:             "Ann",
		LastName:              "Smith",
		Role:                  users.RoleStudent,
		AuthProvider:          ProviderGoogle,
		IsActive:              true,
		ProfileCompleted:      true,
		RegistrationCompleted: true,
		EmailVerified:         true,
	}
}

func TestAccessForFullAccess(t *testing.T) {
	state := AccessFor(readyProfile())
	assert.True(t, state.CanAccess)
	assert.Equal(t, "/dashboard", state.RedirectPath)
}

func TestAccessForNilProfile(t *testing.T) {
	state := AccessFor(nil)
	assert.False(t, state.CanAccess)
	assert.Equal(t, "/auth/login", state.RedirectPath)
}

func TestAccessForUnverifiedEmailAccount(t *testing.T) {
	p := readyProfile()
	p.AuthProvider = ProviderEmail
	p.EmailVerified = false
	state := AccessFor(p)
	assert.True(t, state.NeedsEmailVerification)
	assert.Equal(t, "/auth/verify-email", state.RedirectPath)
}

func TestAccessForIncompleteOAuthProfile(t *testing.T) {
	p := readyProfile()
	p.ProfileCompleted = false
	state := AccessFor(p)
	assert.True(t, state.NeedsProfileCompletion)
	assert.Equal(t, "/auth/complete-profile", state.RedirectPath)

	// Completed flag alone is not enough; required fields must be present.
	p = readyProfile()
	p.FirstName = ""
	assert.True(t, NeedsProfileCompletion(p))
}

func TestAccessForPendingEmailRegistration(t *testing.T) {
	p := readyProfile()
	p.AuthProvider = ProviderEmail
	p.EmailVerified = true
	p.RegistrationCompleted = false
	state := AccessFor(p)
	assert.True(t, state.NeedsProfileCompletion)
	assert.Equal(t, "/auth/complete-profile", state.RedirectPath)
}

func TestAccessForInactiveAccount(t *testing.T) {
	p := readyProfile()
	p.IsActive = false
	state := AccessFor(p)
	assert.False(t, state.CanAccess)
	assert.Equal(t, "/auth/login", state.RedirectPath)
}

func TestNeedsEmailVerificationTrustedProvider(t *testing.T) {
	p := readyProfile()
	p.EmailVerified = false
	// Google vouches for the address even without a stored verified flag.
	assert.False(t, NeedsEmailVerification(p))
}

package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lablink/lablink/internal/users"
)

func TestReconcileFirstSight(t *testing.T) {
	profile := Reconcile(Principal{
		ID:       "u1",
		Email:    "ann@university.edu",
		Provider: "google",
		Metadata: map[string]string{"given_name": "Ann", "family_name": "Smith", "picture": "https://img/ann.png"},
	}, nil)

	assert.Equal(t, "u1", profile.ID)
	assert.Equal(t, "Ann", profile.FirstName)
	assert.Equal(t, "Smith", profile.LastName)
	assert.Equal(t, "https://img/ann.png", profile.ProfileImageURL)
	assert.Equal(t, users.RoleStudent, profile.Role)
	assert.Equal(t, ProviderGoogle, profile.AuthProvider)
	assert.True(t, profile.IsActive)
	assert.True(t, profile.RegistrationCompleted)
	assert.True(t, profile.EmailVerified)
	assert.False(t, profile.ProfileCompleted)
	assert.Nil(t, profile.CreatedAt)
}

func TestReconcileMetadataKeyFallback(t *testing.T) {
	// Preferred keys win over their fallbacks when both are present.
	profile := Reconcile(Principal{
		ID:    "u1",
		Email: "ann@university.edu",
		Metadata: map[string]string{
			"first_name": "Annette",
			"given_name": "Ann",
			"avatar_url": "https://img/a.png",
			"picture":    "https://img/b.png",
		},
	}, nil)
	assert.Equal(t, "Annette", profile.FirstName)
	assert.Equal(t, "https://img/a.png", profile.ProfileImageURL)

	// Blank preferred keys fall through to the alternate.
	profile = Reconcile(Principal{
		ID:       "u1",
		Email:    "ann@university.edu",
		Metadata: map[string]string{"first_name": "  ", "given_name": "Ann"},
	}, nil)
	assert.Equal(t, "Ann", profile.FirstName)
}

func TestReconcileStoredFieldsOverride(t *testing.T) {
	stored := &StoredProfile{
		LastName:   "Smith",
		Department: "CS",
	}
	profile := Reconcile(Principal{
		ID:       "u1",
		Email:    "a@b.com",
		Metadata: map[string]string{"given_name": "Ann"},
	}, stored)

	assert.Equal(t, "Ann", profile.FirstName)
	assert.Equal(t, "Smith", profile.LastName)
	assert.Equal(t, "CS", profile.Department)
	assert.Equal(t, users.RoleStudent, profile.Role)
	assert.True(t, profile.IsActive)
}

func TestReconcileNullStoredFlagsFallBack(t *testing.T) {
	// A legacy row with NULL flag columns must not blank out defaults.
	profile := Reconcile(Principal{ID: "u1", Email: "a@gmail.com"}, &StoredProfile{})
	assert.True(t, profile.IsActive)
	assert.True(t, profile.EmailVerified)

	inactive := false
	profile = Reconcile(Principal{ID: "u1", Email: "a@gmail.com"}, &StoredProfile{IsActive: &inactive})
	assert.False(t, profile.IsActive)
}

func TestReconcileCreatedAtPassthrough(t *testing.T) {
	at := time.Date(2024, 11, 2, 10, 0, 0, 0, time.UTC)
	profile := Reconcile(Principal{ID: "u1", Email: "a@b.com"}, &StoredProfile{CreatedAt: &at})
	require.NotNil(t, profile.CreatedAt)
	assert.Equal(t, at, *profile.CreatedAt)
}

func TestReconcileDeterministic(t *testing.T) {
	principal := Principal{
		ID:       "u1",
		Email:    "ann@university.edu",
		Metadata: map[string]string{"given_name": "Ann"},
	}
	stored := &StoredProfile{Department: "CS"}
	assert.Equal(t, Reconcile(principal, stored), Reconcile(principal, stored))
}

func TestClassifyProvider(t *testing.T) {
	cases := []struct {
		name      string
		principal Principal
		want      Provider
	}{
		{"explicit provider wins", Principal{Provider: "APPLE", Email: "a@gmail.com"}, ProviderApple},
		{"gmail domain", Principal{Email: "a@gmail.com"}, ProviderGoogle},
		{"googlemail domain", Principal{Email: "a@googlemail.com"}, ProviderGoogle},
		{"icloud domain", Principal{Email: "a@icloud.com"}, ProviderApple},
		{"me domain", Principal{Email: "a@ME.com"}, ProviderApple},
		{"institutional domain", Principal{Email: "a@university.edu"}, ProviderEmail},
		{"no at sign", Principal{Email: "broken"}, ProviderEmail},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classifyProvider(tc.principal))
		})
	}
}

func TestDefaultProfileEmailSignup(t *testing.T) {
	profile := Reconcile(Principal{ID: "u1", Email: "a@university.edu"}, nil)
	assert.Equal(t, ProviderEmail, profile.AuthProvider)
	assert.False(t, profile.RegistrationCompleted)
	assert.False(t, profile.EmailVerified)

	// An untrusted principal that claims a verified email keeps the claim.
	profile = Reconcile(Principal{ID: "u1", Email: "a@university.edu", EmailVerified: true}, nil)
	assert.True(t, profile.EmailVerified)
}

package identity

import (
	"strings"

	"github.com/lablink/lablink/internal/users"
)

// Providers expose profile attributes under inconsistent metadata keys.
// Each list is tried in order; the first non-empty value wins.
var (
	firstNameKeys = []string{"first_name", "given_name"}
	lastNameKeys  = []string{"last_name", "family_name"}
	avatarKeys    = []string{"avatar_url", "picture"}
)

// webmailProviders maps consumer webmail domains onto the provider whose
// sign-in flow they are associated with. Used only when the principal does
// not carry an explicit provider.
var webmailProviders = map[string]Provider{
	"gmail.com":      ProviderGoogle,
	"googlemail.com": ProviderGoogle,
	"icloud.com":     ProviderApple,
	"me.com":         ProviderApple,
	"mac.com":        ProviderApple,
}

// Reconcile maps an authenticated principal onto an application profile.
//
// A default profile is derived from the principal's metadata. When a stored
// profile exists every present (non-null, non-empty) stored field overrides
// the default; absent stored fields fall back, so a legacy row with NULL
// columns cannot blank out sensible defaults. Pure function: no I/O, no
// clock, deterministic for identical inputs.
func Reconcile(principal Principal, stored *StoredProfile) Profile {
	profile := defaultProfile(principal)
	if stored == nil {
		return profile
	}

	profile.Email = firstNonEmpty(stored.Email, profile.Email)
	profile.FirstName = firstNonEmpty(stored.FirstName, profile.FirstName)
	profile.LastName = firstNonEmpty(stored.LastName, profile.LastName)
	if stored.Role != "" {
		profile.Role = stored.Role
	}
	profile.Department = firstNonEmpty(stored.Department, profile.Department)
	profile.EmployeeID = firstNonEmpty(stored.EmployeeID, profile.EmployeeID)
	profile.StudentID = firstNonEmpty(stored.StudentID, profile.StudentID)
	profile.PhoneNumber = firstNonEmpty(stored.PhoneNumber, profile.PhoneNumber)
	profile.ProfileImageURL = firstNonEmpty(stored.ProfileImageURL, profile.ProfileImageURL)
	if stored.AuthProvider != "" {
		profile.AuthProvider = stored.AuthProvider
	}
	if stored.IsActive != nil {
		profile.IsActive = *stored.IsActive
	}
	if stored.ProfileCompleted != nil {
		profile.ProfileCompleted = *stored.ProfileCompleted
	}
	if stored.RegistrationCompleted != nil {
		profile.RegistrationCompleted = *stored.RegistrationCompleted
	}
	if stored.EmailVerified != nil {
		profile.EmailVerified = *stored.EmailVerified
	}
	if stored.CreatedAt != nil {
		profile.CreatedAt = stored.CreatedAt
	}

	return profile
}

// defaultProfile synthesises the profile a first-sight principal would get.
func defaultProfile(principal Principal) Profile {
	provider := classifyProvider(principal)
	return Profile{
		ID:              principal.ID,
		Email:           principal.Email,
		FirstName:       metadataLookup(principal.Metadata, firstNameKeys),
		LastName:        metadataLookup(principal.Metadata, lastNameKeys),
		Role:            users.RoleStudent,
		ProfileImageURL: metadataLookup(principal.Metadata, avatarKeys),
		AuthProvider:    provider,
		IsActive:        true,
		// OAuth accounts are immediately usable; email signups finish
		// registration after verifying their address.
		RegistrationCompleted: provider != ProviderEmail,
		ProfileCompleted:      false,
		EmailVerified:         provider.Trusted() || principal.EmailVerified,
	}
}

// classifyProvider resolves the auth provider for a principal. An explicit
// provider claim wins; otherwise the email domain is matched against known
// consumer webmail domains, defaulting to email.
func classifyProvider(principal Principal) Provider {
	if principal.Provider != "" {
		return Provider(strings.ToLower(principal.Provider))
	}
	if provider, ok := webmailProviders[emailDomain(principal.Email)]; ok {
		return provider
	}
	return ProviderEmail
}

func emailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

func metadataLookup(meta map[string]string, keys []string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(meta[key]); value != "" {
			return value
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

package identity

import (
	"time"

	"github.com/lablink/lablink/internal/users"
)

// Provider identifies how an account authenticates.
type Provider string

const (
	ProviderEmail  Provider = "email"
	ProviderGoogle Provider = "google"
	ProviderApple  Provider = "apple"
)

// Trusted reports whether the provider's email-ownership claim is accepted
// without a separate verification step.
func (p Provider) Trusted() bool {
	return p == ProviderGoogle || p == ProviderApple
}

// Principal is an externally authenticated identity handed over by the
// identity collaborator. Read-only to this package.
type Principal struct {
	ID            string
	Email         string
	Provider      string
	EmailVerified bool
	Metadata      map[string]string
}

// Profile is the application-level view of a principal after reconciliation.
type Profile struct {
	ID                    string     `json:"id"`
	Email                 string     `json:"email"`
	FirstName             string     `json:"first_name"`
	LastName              string     `json:"last_name"`
	Role                  users.Role `json:"role"`
	Department            string     `json:"department,omitempty"`
	EmployeeID            string     `json:"employee_id,omitempty"`
	StudentID             string     `json:"student_id,omitempty"`
	PhoneNumber           string     `json:"phone_number,omitempty"`
	ProfileImageURL       string     `json:"profile_image_url,omitempty"`
	AuthProvider          Provider   `json:"auth_provider"`
	IsActive              bool       `json:"is_active"`
	ProfileCompleted      bool       `json:"profile_completed"`
	RegistrationCompleted bool       `json:"registration_completed"`
	EmailVerified         bool       `json:"email_verified"`
	CreatedAt             *time.Time `json:"created_at,omitempty"`
}

// StoredProfile is a previously persisted profile as read back from the
// store. Boolean and timestamp fields are pointers so legacy rows with NULL
// columns are recognised as absent instead of false, and fall back to
// defaults during the merge.
type StoredProfile struct {
	ID                    string
	Email                 string
	FirstName             string
	LastName              string
	Role                  users.Role
	Department            string
	EmployeeID            string
	StudentID             string
	PhoneNumber           string
	ProfileImageURL       string
	AuthProvider          Provider
	IsActive              *bool
	ProfileCompleted      *bool
	RegistrationCompleted *bool
	EmailVerified         *bool
	CreatedAt             *time.Time
}

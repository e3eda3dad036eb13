package identity

// AccessState summarises what a signed-in account still has to do before it
// may use the application.
type AccessState struct {
	NeedsEmailVerification bool   `json:"needs_email_verification"`
	NeedsProfileCompletion bool   `json:"needs_profile_completion"`
	CanAccess              bool   `json:"can_access"`
	RedirectPath           string `json:"redirect_path"`
}

// NeedsProfileCompletion reports whether the account must finish its profile.
// OAuth accounts need the required fields filled in; email accounts need
// their registration completed.
func NeedsProfileCompletion(profile *Profile) bool {
	if profile == nil {
		return true
	}
	if profile.AuthProvider != ProviderEmail {
		return !profile.ProfileCompleted ||
			profile.FirstName == "" ||
			profile.LastName == "" ||
			profile.Role == ""
	}
	return !profile.RegistrationCompleted
}

// NeedsEmailVerification reports whether the account must verify its email.
// Trusted OAuth providers vouch for the address.
func NeedsEmailVerification(profile *Profile) bool {
	if profile == nil {
		return true
	}
	if profile.AuthProvider.Trusted() {
		return false
	}
	return !profile.EmailVerified
}

// AccessFor derives the full access state and redirect decision for a
// profile.
func AccessFor(profile *Profile) AccessState {
	state := AccessState{
		NeedsEmailVerification: NeedsEmailVerification(profile),
		NeedsProfileCompletion: NeedsProfileCompletion(profile),
	}
	switch {
	case profile == nil:
		state.RedirectPath = "/auth/login"
	case state.NeedsEmailVerification:
		state.RedirectPath = "/auth/verify-email"
	case state.NeedsProfileCompletion:
		state.RedirectPath = "/auth/complete-profile"
	case !profile.IsActive:
		state.RedirectPath = "/auth/login"
	default:
		state.CanAccess = true
		state.RedirectPath = "/dashboard"
	}
	return state
}

package users

import "time"

// approvalWindow is how long a never-signed-in staff account counts as
// awaiting approval rather than plain inactive.
const approvalWindow = 30 * 24 * time.Hour

// NeedsApproval reports whether an account is pending administrator
// approval: a non-student account that is inactive, was created within the
// approval window and has never logged in. Older inactive accounts are
// treated as explicitly deactivated.
func NeedsApproval(u User, now time.Time) bool {
	if u.Role == RoleStudent {
		return false
	}
	if u.IsActive {
		return false
	}
	if u.LastLogin != nil {
		return false
	}
	return u.CreatedAt.After(now.Add(-approvalWindow))
}

package identity

import "unicode"

// StrengthReport scores a candidate password. One point each for length,
// uppercase, lowercase, digit and special character; Valid requires all
// five.
type StrengthReport struct {
	Score    int      `json:"score"`
	Feedback []string `json:"feedback"`
	Valid    bool     `json:"valid"`
}

const minPasswordLength = 8

// PasswordStrength evaluates a candidate password against the account
// password policy.
func PasswordStrength(password string) StrengthReport {
	var report StrengthReport

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	if len(password) >= minPasswordLength {
		report.Score++
	} else {
		report.Feedback = append(report.Feedback, "Use at least 8 characters")
	}
	if hasUpper {
		report.Score++
	} else {
		report.Feedback = append(report.Feedback, "Add uppercase letters")
	}
	if hasLower {
		report.Score++
	} else {
		report.Feedback = append(report.Feedback, "Add lowercase letters")
	}
	if hasDigit {
		report.Score++
	} else {
		report.Feedback = append(report.Feedback, "Add numbers")
	}
	if hasSpecial {
		report.Score++
	} else {
		report.Feedback = append(report.Feedback, "Add special characters")
	}

	report.Valid = report.Score == 5
	return report
}

// StrengthLabel maps a score onto the label shown next to signup meters.
func StrengthLabel(score int) string {
	switch score {
	case 2:
		return "Weak"
	case 3:
		return "Fair"
	case 4:
		return "Good"
	case 5:
		return "Strong"
	default:
		return "Very Weak"
	}
}

package authcore

// IsValid checks if the role is one of the predefined valid roles
func (r TokenPurpose) IsValid() bool {
	switch r {
	case PurposeVerification, PurposePasswordReset:
		return true
	default:
		return false
	}
}

// ValidRole checks if a role string is a known role
func ValidRole(r UserRole) bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsPrivileged reports whether the role gets the admin side-record treatment
// on sign-in.
func IsPrivileged(r UserRole) bool {
	return r == RoleAdmin
}

// ParseRole safely parses a string into a UserRole, falling back to RoleUser.
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, ValidRole(role)
}

package auth

import "errors"

// Role represents an authorisation tier carried in token claims.
// The core does not enforce per-role permissions yet; the claim is
// validated for presence and recorded in audit entries.
type Role string

const (
	// RoleUser is a household member operating devices and rules.
	RoleUser Role = "user"

	// RoleAdmin manages device and rule definitions and reads the
	// audit trail.
	RoleAdmin Role = "admin"
)

// ErrTokenInvalid is returned for any token that fails validation:
// bad signature, wrong algorithm, expired, or missing required claims.
var ErrTokenInvalid = errors.New("invalid token")

package rules

import "errors"

// Domain errors for the rules package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, rules.ErrRuleNotFound) {
//	    // handle not found case
//	}
var (
	// ErrRuleNotFound is returned when no rule matches the identifier.
	ErrRuleNotFound = errors.New("rules: not found")

	// ErrRuleExists is returned when adding a rule whose ID is taken.
	ErrRuleExists = errors.New("rules: id already exists")

	// ErrNameConflict is returned when a modify would give a rule the
	// same name as another rule.
	ErrNameConflict = errors.New("rules: name already in use")

	// ErrInvalidRule is returned when rule validation fails.
	ErrInvalidRule = errors.New("rules: invalid definition")

	// ErrInvalidLookupKey is returned for a lookup key outside {id, name}.
	ErrInvalidLookupKey = errors.New("rules: invalid lookup key")
)

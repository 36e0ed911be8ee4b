package submitter

import "github.com/trezcool/masomo-portal/core"

// Validate runs every field validator on p and returns the failures keyed by field.
func Validate(p Profile) core.FieldErrors {
	return core.ValidateStruct(p)
}

// ValidateField returns the error message of a single field, or "" when it is valid.
func ValidateField(p Profile, field string) string {
	return Validate(p)[field]
}

// CanAdvance reports whether every field validator passes.
func CanAdvance(p Profile) bool {
	return len(Validate(p)) == 0
}

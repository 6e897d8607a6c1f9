package kdf

import "github.com/vaultkeep/vaultkeep/internal/util"

// MinimumRecommendedLength is the advisory password length floor.
const MinimumRecommendedLength = 8

// MinimumEntropyBits is the advisory Shannon entropy floor, in bits, below
// which CheckPasswordStrength warns. It is calibrated against a 20-character
// password drawn from the generated-password alphabet (util.GenPassword),
// scaled down to flag passwords meaningfully weaker than that baseline.
const MinimumEntropyBits = 40.0

// StrengthWarning describes a single advisory password-policy violation.
// Policy checks never block key derivation; they only produce warnings for
// the caller to surface to the operator.
type StrengthWarning struct {
	Message string
}

// CheckPasswordStrength evaluates password against the advisory policy
// (minimum length, Shannon entropy floor) and returns zero or more
// warnings. The caller proceeds regardless of the result.
func CheckPasswordStrength(password string) []StrengthWarning {
	var warnings []StrengthWarning

	if len(password) < MinimumRecommendedLength {
		warnings = append(warnings, StrengthWarning{
			Message: "password is shorter than the recommended minimum length",
		})
	}

	if bits := util.ShannonEntropyBits(password); bits < MinimumEntropyBits {
		warnings = append(warnings, StrengthWarning{
			Message: "password entropy is below the recommended floor",
		})
	}

	return warnings
}

package roster

import "errors"

var (
	// ErrProfileNotFound is returned when a referenced profile doesn't exist.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrPersonNotFound is returned when a referenced person doesn't exist.
	ErrPersonNotFound = errors.New("person not found")

	// ErrInvalidProfile is returned when a profile fails validation.
	ErrInvalidProfile = errors.New("invalid profile")

	// ErrInvalidPerson is returned when a person update fails validation.
	ErrInvalidPerson = errors.New("invalid person")

	// ErrDeductionNotFound is returned when a deduction id is not defined on
	// the person's profile.
	ErrDeductionNotFound = errors.New("deduction not found on profile")
)

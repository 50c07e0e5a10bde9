// Package conflict detects scheduling collisions between a proposed
// allocation and the allocations that already exist on the same date.
//
// Everything in this package is pure: no I/O, no logging, no clocks. Callers
// own loading allocations and acting on the resulting report.
package conflict

import (
	"errors"
	"fmt"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/sma-scheduling-api/pkg/errors"
)

var (
	// ErrInvalidInterval marks a proposal whose start is not before its end.
	ErrInvalidInterval = errors.New("interval start must be before end")
	// ErrMissingDate marks an allocation without a calendar date.
	ErrMissingDate = errors.New("allocation date is required")
	// ErrMissingID marks an existing allocation without an identifier.
	ErrMissingID = errors.New("existing allocation id is required")
	// ErrDuplicateAllocation marks an existing set that repeats an id.
	ErrDuplicateAllocation = errors.New("duplicate allocation id in existing set")
)

// Overlaps reports whether two allocations claim the same instant. Different
// dates never overlap and back-to-back intervals are legal.
func Overlaps(a, b models.Allocation) bool {
	if !models.SameDate(a.Date, b.Date) {
		return false
	}
	return a.Interval.Overlaps(b.Interval)
}

// ValidateAllocation rejects malformed proposals before detection runs.
func ValidateAllocation(a models.Allocation) error {
	if a.Date.IsZero() {
		return validationError(ErrMissingDate, "allocation date is required")
	}
	if !a.Interval.Valid() {
		return validationError(ErrInvalidInterval, fmt.Sprintf("invalid interval %s", a.Interval))
	}
	return nil
}

func validateExisting(existing []models.Allocation) error {
	seen := make(map[string]struct{}, len(existing))
	for _, a := range existing {
		if a.ID == "" {
			return validationError(ErrMissingID, "existing allocation without id")
		}
		if _, dup := seen[a.ID]; dup {
			return validationError(ErrDuplicateAllocation, fmt.Sprintf("duplicate allocation id %q", a.ID))
		}
		seen[a.ID] = struct{}{}
	}
	return nil
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

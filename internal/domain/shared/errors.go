// Package shared holds the error kinds and events every domain package
// speaks. It has no external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is; DomainError values carry one.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	ErrValidation      = errors.New("validation error")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	ErrInvalidState     = errors.New("invalid state")
	ErrAlreadyProcessed = errors.New("already processed")

	// ErrConcurrentModification means a guarded UPDATE matched no row.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

var (
	validationKinds = []error{ErrValidation, ErrInvalidInput, ErrEmptyValue, ErrNegativeValue, ErrValueOutOfRange}
	conflictKinds   = []error{ErrAlreadyProcessed, ErrInvalidState, ErrConcurrentModification}
	retryableKinds  = []error{ErrServiceUnavailable, ErrTimeout, ErrConcurrentModification}
)

// DomainError attaches where an error happened to its kind.
type DomainError struct {
	Domain  string // "learning", "gamification", "leaderboard"
	Op      string
	Kind    error
	Message string
	Err     error // cause, may be nil
}

func (e *DomainError) Error() string {
	msg := e.Domain + "." + e.Op + ": " + e.Message
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the cause, or the kind when there is none.
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches the kind as well as anything in the cause chain.
func (e *DomainError) Is(target error) bool {
	return (e.Kind != nil && errors.Is(e.Kind, target)) ||
		(e.Err != nil && errors.Is(e.Err, target))
}

func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError is NewDomainError with a cause.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// Learning
var (
	ErrEnrollmentNotFound     = NewDomainError("learning", "Find", ErrNotFound, "enrollment not found")
	ErrModuleProgressNotFound = NewDomainError("learning", "Find", ErrNotFound, "module progress not found")
	ErrLessonProgressNotFound = NewDomainError("learning", "Find", ErrNotFound, "lesson progress not found")
	ErrAttemptNotFound        = NewDomainError("learning", "Find", ErrNotFound, "assessment attempt not found")
	ErrAlreadyCompleted       = NewDomainError("learning", "Complete", ErrAlreadyProcessed, "record already completed")
	ErrInvalidScore           = NewDomainError("learning", "Validate", ErrValueOutOfRange, "score must be between 0 and 100")
)

// Gamification and leaderboard
var (
	ErrAchievementNotFound = NewDomainError("gamification", "Find", ErrNotFound, "achievement not found")
	ErrInvalidCriteria     = NewDomainError("gamification", "Validate", ErrInvalidInput, "invalid achievement criteria")
	ErrUserRequired        = NewDomainError("gamification", "Validate", ErrEmptyValue, "user ID is required")
	ErrInvalidScope        = NewDomainError("leaderboard", "Validate", ErrInvalidInput, "invalid leaderboard scope")
)

func isAny(err error, kinds []error) bool {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

func IsNotFound(err error) bool      { return errors.Is(err, ErrNotFound) }
func IsAlreadyExists(err error) bool { return errors.Is(err, ErrAlreadyExists) }

// IsValidation reports bad caller input.
func IsValidation(err error) bool { return isAny(err, validationKinds) }

// IsConflict reports that the target's state does not allow the operation.
func IsConflict(err error) bool { return isAny(err, conflictKinds) }

// IsRetryable reports errors worth another attempt.
func IsRetryable(err error) bool { return isAny(err, retryableKinds) }

package domain

import (
	"errors"

	"finance-tracker/internal/money"
)

var (
	ErrInvalidAmount          = money.ErrInvalidAmount
	ErrInvalidInput           = errors.New("invalid input")
	ErrNotFound               = errors.New("not found")
	ErrInsufficientHolding    = errors.New("insufficient holding")
	ErrCategoryMismatch       = errors.New("category kind does not match transaction kind")
	ErrCategoryInUse          = errors.New("category in use")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrPersistence            = errors.New("persistence failure")
)

// IsRetryable reports whether the caller may retry the operation unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistence) || errors.Is(err, ErrConcurrentModification)
}

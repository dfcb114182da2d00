package explore

import (
	"errors"
	"fmt"

	"artbeat/shared/go/models"
)

var (
	// ErrDuplicateItem signals a result set that would break stack id uniqueness.
	ErrDuplicateItem = errors.New("duplicate item id")
	// ErrEmptyItemID signals an item without identity.
	ErrEmptyItemID = errors.New("item id is required")
	// ErrLoadFailed is wrapped by every LoadError.
	ErrLoadFailed = errors.New("load failed")
	// ErrMalformedItems signals a data source result that does not fit the requested category.
	ErrMalformedItems = errors.New("malformed items")
	// ErrUnknownFilterField is returned by SetField for keys the filter record does not have.
	ErrUnknownFilterField = errors.New("unknown filter field")
	// ErrInvalidFilterValue is returned when a filter value cannot be parsed or is out of range.
	ErrInvalidFilterValue = errors.New("invalid filter value")
	// ErrNothingToRetry is returned by Retry before any load was requested.
	ErrNothingToRetry = errors.New("no load to retry")
)

// LoadError describes a failed category load. The stack shown before the
// failing request is kept.
type LoadError struct {
	Category models.Category
	Token    LoadToken
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s (token %d): %v", e.Category, e.Token, e.Err)
}

func (e *LoadError) Unwrap() []error { return []error{ErrLoadFailed, e.Err} }

package core

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrNotFound         = errors.New("resource not found")
	ErrDatasetNotFound  = fmt.Errorf("%w: dataset", ErrNotFound)
	ErrWorkbookNotFound = fmt.Errorf("%w: workbook", ErrNotFound)
	ErrTabNotFound      = fmt.Errorf("%w: tab", ErrNotFound)
)

// NewNotFoundError wraps a not-found sentinel with the missing id
func NewNotFoundError(sentinel error, id string) error {
	return fmt.Errorf("%w: %s", sentinel, id)
}

// IsNotFoundError reports whether err wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

package adapter

import (
	apperrors "github.com/jun/repocms/internal/errors"
)

var (
	// ErrNotFound is returned when a requested path does not exist.
	ErrNotFound = apperrors.ErrNotFound

	// ErrConflict is returned when the expected SHA does not match the current one.
	ErrConflict = apperrors.ErrConflict
)

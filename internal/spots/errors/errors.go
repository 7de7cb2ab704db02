package errors

import "errors"

var (
	ErrNotFound = errors.New("spot not found")

	ErrInvalidID = errors.New("invalid spot ID format")

	ErrDuplicateNumber = errors.New("spot number already exists")
)

package errors

import "errors"

var (
	ErrBatchTooLarge = errors.New("too many dates in one request")

	ErrDuplicateDate = errors.New("duplicate date in request")
)

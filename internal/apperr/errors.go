package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrAlreadyExists   = errors.New("already exists")
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported content type")
)

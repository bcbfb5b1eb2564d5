package storage

import "errors"

var (
	ErrNotFound    = errors.New("storage: record not found")
	ErrInvalidCID  = errors.New("storage: invalid cid")
	ErrCIDMismatch = errors.New("storage: cid does not match stored bytes")
	ErrImmutable   = errors.New("storage: conflicting bytes for existing cid")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

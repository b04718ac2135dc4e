package core

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested object does not exist in storage.
var ErrNotFound = errors.New("not found")

// ErrReadOnly is returned by a closed repository handle.
var ErrReadOnly = errors.New("repository closed")

// DataError is the single failure kind for store access: unreachable store,
// corrupt row or violated integrity constraint. It aborts the current
// repository transaction; callers discard and retry or shut down.
type DataError struct {
	Op  string
	Err error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data access %s: %v", e.Op, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// WrapData wraps err as a DataError unless it is nil or already one.
// ErrNotFound passes through unchanged so callers can keep using errors.Is.
func WrapData(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	var de *DataError
	if errors.As(err, &de) {
		return err
	}
	return &DataError{Op: op, Err: err}
}

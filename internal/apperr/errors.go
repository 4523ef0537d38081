// Package apperr defines the error kinds surfaced by the detection
// pipeline, history store and report renderer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// DecodeError means the input could not be decoded as a raster image.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DetectionError means model invocation or annotation failed.
type DetectionError struct {
	Op  string
	Err error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("detection %s: %v", e.Op, e.Err)
}

func (e *DetectionError) Unwrap() error { return e.Err }

// StoreError means the history store failed to read or write.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// UnsupportedFormatError means an unknown report format was requested.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported report format %q", e.Format)
}

// NoDataError means a report was requested with no history to report on.
type NoDataError struct {
	What string
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no data available for %s", e.What)
}

// Store wraps err as a StoreError unless it is nil or already one.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// HTTPStatus maps an error to the status code the HTTP layer reports.
func HTTPStatus(err error) int {
	var (
		decode *DecodeError
		format *UnsupportedFormatError
		noData *NoDataError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &decode), errors.As(err, &format), errors.As(err, &noData):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

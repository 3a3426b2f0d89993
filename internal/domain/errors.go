package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrTokenExpired    = errors.New("token expired")
	ErrUnknownCategory = errors.New("unknown category")
	ErrEmptyBatch      = errors.New("no drafts to submit")
)

// ValidationError rejects bad input before any I/O happens.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// AlreadyUploadedError is the authoritative server rejection for a category
// that already received its upload for the day.
type AlreadyUploadedError struct {
	Category Category
	Message  string
}

func (e *AlreadyUploadedError) Error() string {
	msg := fmt.Sprintf("category %s already uploaded today", e.Category.Label())
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// NetworkError wraps transport failures and timeouts.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "network: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError covers 5xx responses and rate limiting (429). Both are retryable.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server: status %d", e.StatusCode)
	}
	return fmt.Sprintf("server: status %d: %s", e.StatusCode, e.Message)
}

// RateLimited reports whether the server asked the client to slow down.
func (e *ServerError) RateLimited() bool { return e.StatusCode == 429 }

// RejectedError covers the remaining 4xx responses. A 401 also matches ErrUnauthorized.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("rejected: status %d", e.StatusCode)
	}
	return fmt.Sprintf("rejected: status %d: %s", e.StatusCode, e.Message)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == 401
}

// StorageError means the durable store could not be opened or written.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// ItemFailure records why one donor's write failed inside a batch.
type ItemFailure struct {
	DonorName string `json:"donor_name"`
	Message   string `json:"message"`
	Err       error  `json:"-"`
}

// PartialFailure is returned when a batch had both accepted and failed writes.
type PartialFailure struct {
	Succeeded int
	Failed    []ItemFailure
}

func (e *PartialFailure) Error() string {
	names := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		names = append(names, f.DonorName)
	}
	return fmt.Sprintf("partial upload: %d succeeded, %d failed (%s)", e.Succeeded, len(e.Failed), strings.Join(names, ", "))
}

// Unwrap exposes the per-item errors to errors.Is / errors.As.
func (e *PartialFailure) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// Retryable reports whether err is a transient failure worth retrying later.
func Retryable(err error) bool {
	var netErr *NetworkError
	var srvErr *ServerError
	return errors.As(err, &netErr) || errors.As(err, &srvErr)
}

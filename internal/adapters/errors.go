package adapters

import (
	"context"
	"errors"
	"fmt"
)

// Class tags an adapter failure as retry-eligible or not.
type Class string

const (
	// ClassTransient marks network/timeout/provider hiccups; the worker
	// retries these on its fixed backoff schedule.
	ClassTransient Class = "transient"
	// ClassPermanent marks bad credentials, malformed output and
	// unsupported inputs; the worker fails the job immediately.
	ClassPermanent Class = "permanent"
)

// Error is a classified adapter failure.
type Error struct {
	Class  Class
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Class, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient wraps a retry-eligible failure.
func Transient(reason string, err error) *Error {
	return &Error{Class: ClassTransient, Reason: reason, Err: err}
}

// Permanent wraps a non-retryable failure.
func Permanent(reason string, err error) *Error {
	return &Error{Class: ClassPermanent, Reason: reason, Err: err}
}

// ClassOf classifies any error. Deadline expiry is transient (the remote
// job is abandoned, not known broken); unclassified errors default to
// transient so provider hiccups are retried rather than dropped.
func ClassOf(err error) Class {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Class
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	return ClassTransient
}

// IsPermanent reports whether err should not be retried.
func IsPermanent(err error) bool {
	return ClassOf(err) == ClassPermanent
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Codes
// =============================================================================

// ErrorCode categorizes a failure so callers can tell an invalid request from
// a state conflict or an unreachable engine.
type ErrorCode string

const (
	CodeValidation        ErrorCode = "validation"
	CodeNotFound          ErrorCode = "not_found"
	CodeState             ErrorCode = "state"
	CodeNotRewindable     ErrorCode = "not_rewindable"
	CodeNoHistory         ErrorCode = "no_history"
	CodeImmutable         ErrorCode = "immutable_state"
	CodeForbidden         ErrorCode = "forbidden"
	CodeNotReady          ErrorCode = "not_ready"
	CodeInvalidLabel      ErrorCode = "invalid_label"
	CodeOutOfRange        ErrorCode = "out_of_range"
	CodeEngineUnavailable ErrorCode = "engine_unavailable"
	CodeInternal          ErrorCode = "internal"
)

// =============================================================================
// Error
// =============================================================================

// Error is the single error type returned by the labeling services.
//
// # Description
//
// Every failure surfaced to a caller carries a Code from the taxonomy and a
// human-readable Message. Err optionally wraps the underlying cause (a
// storage error, a transport error) for logging; it is never shown to API
// clients.
//
// Comparison with errors.Is matches on Code only, so
//
//	errors.Is(err, datatypes.ErrNoHistory)
//
// holds for any *Error with CodeNoHistory regardless of its message.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrValidation        = &Error{Code: CodeValidation}
	ErrNotFound          = &Error{Code: CodeNotFound}
	ErrState             = &Error{Code: CodeState}
	ErrNotRewindable     = &Error{Code: CodeNotRewindable}
	ErrNoHistory         = &Error{Code: CodeNoHistory}
	ErrImmutable         = &Error{Code: CodeImmutable}
	ErrForbidden         = &Error{Code: CodeForbidden}
	ErrNotReady          = &Error{Code: CodeNotReady}
	ErrInvalidLabel      = &Error{Code: CodeInvalidLabel}
	ErrOutOfRange        = &Error{Code: CodeOutOfRange}
	ErrEngineUnavailable = &Error{Code: CodeEngineUnavailable}
)

// NewError builds an *Error with a formatted message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an *Error that keeps cause for logging.
func WrapError(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: cause}
}

// CodeOf returns the taxonomy code of err, or CodeInternal when err is not
// an *Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf returns the client-facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		return string(e.Code)
	}
	return "internal error"
}

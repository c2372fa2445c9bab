// Package errs provides the unified error type used across xetra.
//
// Every subsystem (filestore drivers, codecs, the connector, config) wraps
// its native errors into *errs.Error before returning them to callers.
// Callers use the Is* predicates to handle errors without importing
// driver-specific packages.
//
// Usage:
//
//	// In a driver, wrap native errors:
//	return errs.Wrap(errs.ErrKindStoreUnavailable, "failed to put object", err)
//
//	// In a caller, check the error kind:
//	if errs.IsNotFound(err) {
//	    // start from an empty meta file
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
// All backends (MinIO, S3, in-memory) and codecs map their native errors to
// one of these kinds, giving callers a single consistent API.
type ErrKind int

const (
	ErrKindUnknown           ErrKind = iota
	ErrKindConfig                    // missing credentials, invalid job config
	ErrKindNotFound                  // no object, no bucket
	ErrKindDecode                    // bytes not valid under the declared charset
	ErrKindParse                     // malformed delimited text or columnar body
	ErrKindEncode                    // table cannot be serialized
	ErrKindUnsupportedFormat         // format tag has no codec
	ErrKindStoreUnavailable          // cannot reach the backend / transport failure
	ErrKindTimeout                   // context deadline / cancellation
	ErrKindInvalidInput              // bad arguments from the caller
	ErrKindPermissionDenied          // access denied / auth failure
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindConfig:
		return "config"
	case ErrKindNotFound:
		return "not_found"
	case ErrKindDecode:
		return "decode"
	case ErrKindParse:
		return "parse"
	case ErrKindEncode:
		return "encode"
	case ErrKindUnsupportedFormat:
		return "unsupported_format"
	case ErrKindStoreUnavailable:
		return "store_unavailable"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all xetra subsystems.
type Error struct {
	Kind    ErrKind
	Message string
	Subject string // object key or format tag the error is about, if any
	Cause   error  // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Subject != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Subject)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, msg)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithSubject returns a copy of e naming the key or tag it concerns.
func (e *Error) WithSubject(subject string) *Error {
	c := *e
	c.Subject = subject
	return &c
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// UnsupportedFormat reports a format tag that has no registered codec.
// Declared-but-unimplemented tags and unknown tags produce the same error.
func UnsupportedFormat(tag string) *Error {
	return &Error{Kind: ErrKindUnsupportedFormat, Message: "unsupported file format", Subject: tag}
}

// --- Predicates ---

// IsConfig reports whether err is a configuration problem
// (missing credential entries, invalid job file).
func IsConfig(err error) bool {
	return KindOf(err) == ErrKindConfig
}

// IsNotFound reports whether err represents a missing object or bucket.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsDecode reports whether bytes could not be decoded under the requested charset.
func IsDecode(err error) bool {
	return KindOf(err) == ErrKindDecode
}

// IsParse reports whether a body was malformed (inconsistent rows, bad header, …).
func IsParse(err error) bool {
	return KindOf(err) == ErrKindParse
}

// IsEncode reports whether a table could not be serialized.
func IsEncode(err error) bool {
	return KindOf(err) == ErrKindEncode
}

// IsUnsupportedFormat reports whether a format tag had no codec.
func IsUnsupportedFormat(err error) bool {
	return KindOf(err) == ErrKindUnsupportedFormat
}

// IsStoreUnavailable reports whether the storage backend could not serve the call.
func IsStoreUnavailable(err error) bool {
	return KindOf(err) == ErrKindStoreUnavailable
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// KindOf extracts the ErrKind from any error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}

// SubjectOf returns the key or format tag attached to the first *Error in the chain.
func SubjectOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Subject
	}
	return ""
}

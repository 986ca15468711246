// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package perrors defines the closed set of error kinds returned by the
// MergeTree subsystem and its collaborators.
package perrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies the class of failure behind an Error. The set is closed:
// callers may safely switch on it without a default case silently eating
// new kinds.
type Kind int

const (
	// Unknown is never returned by this package; it is the zero value.
	Unknown Kind = iota
	InvalidHeader
	Duplicate
	UnknownParent
	NotFound
	Conflict
	SelectorError
	IoError
	ConfigError
	AuthError
)

func (k Kind) String() string {
	switch k {
	case InvalidHeader:
		return "InvalidHeader"
	case Duplicate:
		return "Duplicate"
	case UnknownParent:
		return "UnknownParent"
	case NotFound:
		return "NotFound"
	case Conflict:
		return "Conflict"
	case SelectorError:
		return "SelectorError"
	case IoError:
		return "IoError"
	case ConfigError:
		return "ConfigError"
	case AuthError:
		return "AuthError"
	default:
		return "Unknown"
	}
}

// Error is the error type returned across package boundaries in this
// module. It carries a Kind so callers can branch on failure class (see
// spec.md section 7) plus a wrapped stack trace from github.com/pkg/errors
// for diagnostics.
type Error struct {
	Kind    Kind
	Subject string // e.g. the offending version or attribute name
	cause   error
}

func (e *Error) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.cause)
	}
	return fmt.Sprintf("%s(%s): %s", e.Kind, e.Subject, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an Error of the given kind with a stack-annotated cause.
func New(kind Kind, subject string, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Subject: subject,
		cause:   errors.Errorf(format, args...),
	}
}

// Wrap annotates err with a Kind and a stack trace recorded at this call
// (via errors.WithStack). A nil err yields nil.
func Wrap(kind Kind, subject string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Subject: subject, cause: errors.WithStack(err)}
}

// KindOf returns the Kind of err, or Unknown if err is not (or does not
// wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

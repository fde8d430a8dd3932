package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers can react without string matching
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindValidation is bad caller input, rejected before any side effect.
	KindValidation
	// KindAuthorization is a blacklisted reporter.
	KindAuthorization
	// KindConfiguration is a missing or unreachable review channel.
	KindConfiguration
	// KindPersistence is a store failure. Nothing partial was committed.
	KindPersistence
	// KindDelivery is a notice or direct message that could not be sent.
	KindDelivery
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindConfiguration:
		return "configuration"
	case KindPersistence:
		return "persistence"
	case KindDelivery:
		return "delivery"
	}
	return "unknown"
}

// ErrCaseNotFound is returned by the ledger for unknown case ids
var ErrCaseNotFound = errors.New("case not found")

// Error carries a kind and the operation that failed
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds an *Error
func E(kind ErrorKind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

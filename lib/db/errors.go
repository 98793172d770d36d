package db

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/dbBench/lib/model"
)

// --------------------------------------------------------------------------
// Error Kinds
// --------------------------------------------------------------------------

type ErrKind uint64

const (
	ErrKUnknown           ErrKind = iota // 0: Not classified.
	ErrKConnection                       // 1: Backend cannot be reached or authenticated against.
	ErrKQuery                            // 2: Backend rejected a query.
	ErrKUnsupportedField                 // 3: Ranking requested on a field outside the whitelist.
	ErrKNotFound                         // 4: Requested package does not exist.
	ErrKParse                            // 5: A stored field cannot be converted.
	ErrKMissingSourceData                // 6: A stored field is absent.
)

func (k ErrKind) String() string {
	switch k {
	case ErrKConnection:
		return "ConnectionError"
	case ErrKQuery:
		return "QueryError"
	case ErrKUnsupportedField:
		return "UnsupportedField"
	case ErrKNotFound:
		return "NotFound"
	case ErrKParse:
		return "ParseError"
	case ErrKMissingSourceData:
		return "MissingSourceData"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is returned by all adapters. Backend issues keep the backend's own
// message in Msg and the original error (if any) in Err.
type Error struct {
	Kind    ErrKind        // The error kind
	Backend Implementation // The backend that produced the error (may be empty)
	Msg     string         // The error message
	Err     error          // The wrapped error
}

func (e *Error) Error() string {
	prefix := e.Kind.String()
	if e.Backend != "" {
		prefix = fmt.Sprintf("%s (%s)", prefix, e.Backend)
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", prefix, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", prefix, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	default:
		return prefix
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, &Error{Kind: k}) match on the kind only.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && t.Err == nil && (t.Backend == "" || t.Backend == e.Backend)
}

// Sentinels for errors.Is.
var (
	ErrConnection       = &Error{Kind: ErrKConnection}
	ErrQuery            = &Error{Kind: ErrKQuery}
	ErrUnsupportedField = &Error{Kind: ErrKUnsupportedField}
	ErrNotFound         = &Error{Kind: ErrKNotFound}
)

// NewError creates a new Error.
func NewError(kind ErrKind, backend Implementation, msg string, err error) *Error {
	return &Error{Kind: kind, Backend: backend, Msg: msg, Err: err}
}

// ConnectionError wraps err as ErrKConnection.
func ConnectionError(backend Implementation, err error) *Error {
	return NewError(ErrKConnection, backend, "", err)
}

// QueryError returns a query error carrying the backend message verbatim.
func QueryError(backend Implementation, msg string) *Error {
	return NewError(ErrKQuery, backend, msg, nil)
}

// NotFoundError returns a NotFound error for the package name.
func NotFoundError(backend Implementation, name string) *Error {
	return NewError(ErrKNotFound, backend, fmt.Sprintf("package %q does not exist", name), nil)
}

// UnsupportedFieldError returns an UnsupportedField error for field.
func UnsupportedFieldError(field string) *Error {
	return NewError(ErrKUnsupportedField, "", fmt.Sprintf("cannot rank packages by field %q", field), nil)
}

// DecodeError converts a model error into an adapter error of the matching kind.
func DecodeError(backend Implementation, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case model.IsMissingSourceData(err):
		return NewError(ErrKMissingSourceData, backend, "", err)
	case model.IsParseError(err):
		return NewError(ErrKParse, backend, "", err)
	default:
		return NewError(ErrKParse, backend, "", err)
	}
}

// KindOf classifies err. Model errors map to ErrKParse / ErrKMissingSourceData.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case model.IsMissingSourceData(err):
		return ErrKMissingSourceData
	case model.IsParseError(err):
		return ErrKParse
	default:
		return ErrKUnknown
	}
}

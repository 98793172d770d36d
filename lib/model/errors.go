package model

import (
	"errors"
	"fmt"
)

// FieldErrorKind distinguishes a missing source field from one that is
// present but cannot be converted.
type FieldErrorKind int

const (
	KindMissing   FieldErrorKind = iota // field absent from the source
	KindMalformed                       // field present but not parsable
)

func (k FieldErrorKind) String() string {
	switch k {
	case KindMissing:
		return "MissingSourceData"
	case KindMalformed:
		return "ParseError"
	default:
		return "Unknown"
	}
}

// FieldError is returned when a package cannot be built from its source.
type FieldError struct {
	Kind  FieldErrorKind
	Field string
	Msg   string
	Err   error
}

func (e *FieldError) Error() string {
	switch {
	case e.Msg != "":
		return fmt.Sprintf("%s (field %s): %s", e.Kind, e.Field, e.Msg)
	case e.Kind == KindMissing:
		return fmt.Sprintf("source lacks data required to create struct, missing field: %s", e.Field)
	case e.Err != nil:
		return fmt.Sprintf("cannot parse data for %s field: %v", e.Field, e.Err)
	default:
		return fmt.Sprintf("cannot parse data for %s field", e.Field)
	}
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// IsMissingSourceData reports whether err was caused by an absent field.
func IsMissingSourceData(err error) bool {
	var fe *FieldError
	return errors.As(err, &fe) && fe.Kind == KindMissing
}

// IsParseError reports whether err was caused by an unparsable field.
func IsParseError(err error) bool {
	var fe *FieldError
	return errors.As(err, &fe) && fe.Kind == KindMalformed
}

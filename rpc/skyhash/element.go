package skyhash

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// --------------------------------------------------------------------------
// Element Kinds
// --------------------------------------------------------------------------

// ElementKind is the type symbol of a response element on the wire.
type ElementKind byte

const (
	KindString     ElementKind = '+'
	KindBinary     ElementKind = '?'
	KindUint       ElementKind = ':'
	KindFloat      ElementKind = '%'
	KindRespCode   ElementKind = '!'
	KindArray      ElementKind = '&'
	KindTypedArray ElementKind = '@'
)

func (k ElementKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBinary:
		return "binstr"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindRespCode:
		return "respcode"
	case KindArray:
		return "array"
	case KindTypedArray:
		return "typed array"
	default:
		return fmt.Sprintf("unknown(%q)", byte(k))
	}
}

// --------------------------------------------------------------------------
// Element
// --------------------------------------------------------------------------

// Element is a single response element. Which fields are set depends on Kind:
//   - KindString, KindBinary, KindRespCode: Bytes
//   - KindUint: Uint
//   - KindFloat: Float
//   - KindArray: Array
//   - KindTypedArray: ItemKind and Items (a nil item is a null entry)
type Element struct {
	Kind     ElementKind
	Bytes    []byte
	Uint     uint64
	Float    float64
	Array    []Element
	ItemKind ElementKind
	Items    [][]byte
}

func String(s string) Element { return Element{Kind: KindString, Bytes: []byte(s)} }

func Binary(b []byte) Element { return Element{Kind: KindBinary, Bytes: b} }

func Uint(n uint64) Element { return Element{Kind: KindUint, Uint: n} }

func Float(f float64) Element { return Element{Kind: KindFloat, Float: f} }

func Code(code string) Element { return Element{Kind: KindRespCode, Bytes: []byte(code)} }

func Array(elements ...Element) Element { return Element{Kind: KindArray, Array: elements} }

// TypedArray creates an array whose items all share kind (KindString or KindBinary).
func TypedArray(kind ElementKind, items [][]byte) Element {
	return Element{Kind: KindTypedArray, ItemKind: kind, Items: items}
}

// StringArray creates a typed string array.
func StringArray(items []string) Element {
	b := make([][]byte, len(items))
	for i, s := range items {
		b[i] = []byte(s)
	}
	return TypedArray(KindString, b)
}

// Err converts a response code into an error. Okay codes and all other
// element kinds return nil.
func (e Element) Err() error {
	if e.Kind != KindRespCode || string(e.Bytes) == CodeOkay {
		return nil
	}
	return &RespError{Code: string(e.Bytes)}
}

// IsOkay reports whether e is the okay response code.
func (e Element) IsOkay() bool {
	return e.Kind == KindRespCode && string(e.Bytes) == CodeOkay
}

// Text renders the element for display. Scalars are printed as text,
// arrays as a JSON array of their rendered items and null entries as null.
func (e Element) Text() string {
	switch e.Kind {
	case KindString, KindBinary:
		return string(e.Bytes)
	case KindUint:
		return strconv.FormatUint(e.Uint, 10)
	case KindFloat:
		return strconv.FormatFloat(e.Float, 'g', -1, 64)
	case KindRespCode:
		return (&RespError{Code: string(e.Bytes)}).Error()
	case KindArray:
		items := make([]any, len(e.Array))
		for i, el := range e.Array {
			items[i] = el.Text()
		}
		return renderJSON(items)
	case KindTypedArray:
		items := make([]any, len(e.Items))
		for i, it := range e.Items {
			if it != nil {
				items[i] = string(it)
			}
		}
		return renderJSON(items)
	default:
		return ""
	}
}

func renderJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// --------------------------------------------------------------------------
// Response Codes
// --------------------------------------------------------------------------

const (
	CodeOkay            = "0"
	CodeNil             = "1"
	CodeOverwrite       = "2"
	CodeActionError     = "3"
	CodePacketError     = "4"
	CodeServerError     = "5"
	CodeOtherError      = "6"
	CodeWrongType       = "7"
	CodeUnknownDataType = "8"
	CodeEncodingError   = "9"

	CodeContainerNotFound = "container-not-found"
	CodeAlreadyExists     = "err-already-exists"
	CodeDefaultUnset      = "default-container-unset"
	CodeBadContainerName  = "bad-container-name"
	CodeUnknownAction     = "unknown-action"
	CodeUnknownDDL        = "unknown-ddl-query"
	CodeProtected         = "err-protected-object"
	CodeStillInUse        = "still-in-use"
)

var codeDescriptions = map[string]string{
	CodeOkay:            "okay",
	CodeNil:             "nil",
	CodeOverwrite:       "overwrite error",
	CodeActionError:     "action error",
	CodePacketError:     "packet error",
	CodeServerError:     "server error",
	CodeOtherError:      "other error",
	CodeWrongType:       "wrongtype error",
	CodeUnknownDataType: "unknown data type",
	CodeEncodingError:   "encoding error",
}

// RespError is a non-okay response code returned by the server.
type RespError struct {
	Code string
}

func (e *RespError) Error() string {
	if desc, ok := codeDescriptions[e.Code]; ok {
		return fmt.Sprintf("skyhash: %s (code %s)", desc, e.Code)
	}
	return "skyhash: " + e.Code
}

// IsCode reports whether err is a RespError with the given code.
func IsCode(err error, code string) bool {
	var re *RespError
	return errors.As(err, &re) && re.Code == code
}

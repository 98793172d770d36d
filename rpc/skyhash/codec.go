package skyhash

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// MaxElementSize bounds the size of a single sized element or query argument.
const MaxElementSize = 64 << 20 // 64 MiB

// maxArrayLen bounds the number of elements in one array or query.
const maxArrayLen = 1 << 24

// ErrProtocol is returned when a frame violates the wire format.
var ErrProtocol = errors.New("skyhash: protocol error")

// --------------------------------------------------------------------------
// Query
// --------------------------------------------------------------------------

// Query is a simple query: an action followed by its arguments.
type Query struct {
	args [][]byte
}

// NewQuery creates a query from string arguments.
func NewQuery(args ...string) *Query {
	q := &Query{args: make([][]byte, 0, len(args))}
	for _, a := range args {
		q.Arg(a)
	}
	return q
}

// ParseQuery splits a textual query on whitespace.
func ParseQuery(s string) *Query {
	return NewQuery(strings.Fields(s)...)
}

// Arg appends a string argument.
func (q *Query) Arg(s string) *Query {
	q.args = append(q.args, []byte(s))
	return q
}

// BinArg appends a binary argument.
func (q *Query) BinArg(b []byte) *Query {
	q.args = append(q.args, b)
	return q
}

// Args returns the raw arguments.
func (q *Query) Args() [][]byte { return q.args }

// Len returns the number of arguments (including the action).
func (q *Query) Len() int { return len(q.args) }

// Action returns the upper-cased first argument.
func (q *Query) Action() string {
	if len(q.args) == 0 {
		return ""
	}
	return strings.ToUpper(string(q.args[0]))
}

// String returns the query as space separated text.
func (q *Query) String() string {
	parts := make([]string, len(q.args))
	for i, a := range q.args {
		parts[i] = string(a)
	}
	return strings.Join(parts, " ")
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// WriteQuery writes q as a simple query frame:
//
//	*1\n~<n>\n(<len>\n<bytes>\n)*
func WriteQuery(w *bufio.Writer, q *Query) error {
	if q.Len() == 0 {
		return fmt.Errorf("%w: empty query", ErrProtocol)
	}
	w.WriteString("*1\n~")
	w.WriteString(strconv.Itoa(q.Len()))
	w.WriteByte('\n')
	for _, a := range q.args {
		writeSized(w, a)
	}
	return w.Flush()
}

// WriteResponse writes a single-element response frame.
func WriteResponse(w *bufio.Writer, e Element) error {
	w.WriteString("*1\n")
	if err := writeElement(w, e); err != nil {
		return err
	}
	return w.Flush()
}

func writeElement(w *bufio.Writer, e Element) error {
	switch e.Kind {
	case KindString, KindBinary, KindRespCode:
		w.WriteByte(byte(e.Kind))
		writeSized(w, e.Bytes)
	case KindUint:
		w.WriteByte(byte(e.Kind))
		writeSized(w, []byte(strconv.FormatUint(e.Uint, 10)))
	case KindFloat:
		w.WriteByte(byte(e.Kind))
		writeSized(w, []byte(strconv.FormatFloat(e.Float, 'g', -1, 64)))
	case KindArray:
		w.WriteByte(byte(e.Kind))
		w.WriteString(strconv.Itoa(len(e.Array)))
		w.WriteByte('\n')
		for _, el := range e.Array {
			if err := writeElement(w, el); err != nil {
				return err
			}
		}
	case KindTypedArray:
		if e.ItemKind != KindString && e.ItemKind != KindBinary {
			return fmt.Errorf("%w: typed array of %s", ErrProtocol, e.ItemKind)
		}
		w.WriteByte(byte(e.Kind))
		w.WriteByte(byte(e.ItemKind))
		w.WriteString(strconv.Itoa(len(e.Items)))
		w.WriteByte('\n')
		for _, it := range e.Items {
			if it == nil {
				w.WriteString("\x00\n")
				continue
			}
			writeSized(w, it)
		}
	default:
		return fmt.Errorf("%w: unknown element kind %s", ErrProtocol, e.Kind)
	}
	return nil
}

// writeSized writes <len>\n<bytes>\n. Errors surface on Flush.
func writeSized(w *bufio.Writer, b []byte) {
	w.WriteString(strconv.Itoa(len(b)))
	w.WriteByte('\n')
	w.Write(b)
	w.WriteByte('\n')
}

// --------------------------------------------------------------------------
// Decoding
// --------------------------------------------------------------------------

// ReadQuery reads one simple query frame.
func ReadQuery(r *bufio.Reader) (*Query, error) {
	if err := expectHeader(r); err != nil {
		return nil, err
	}
	b, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if b != '~' {
		return nil, fmt.Errorf("%w: expected query array, got %q", ErrProtocol, b)
	}
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: empty query", ErrProtocol)
	}
	q := &Query{args: make([][]byte, n)}
	for i := range q.args {
		if q.args[i], err = readSized(r); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// ReadResponse reads one single-element response frame.
func ReadResponse(r *bufio.Reader) (Element, error) {
	if err := expectHeader(r); err != nil {
		return Element{}, err
	}
	return readElement(r, 0)
}

func expectHeader(r *bufio.Reader) error {
	line, err := readLine(r)
	if err != nil {
		return err
	}
	if line != "*1" {
		return fmt.Errorf("%w: bad frame header %q", ErrProtocol, line)
	}
	return nil
}

func readElement(r *bufio.Reader, depth int) (Element, error) {
	if depth > 32 {
		return Element{}, fmt.Errorf("%w: nesting too deep", ErrProtocol)
	}
	b, err := r.ReadByte()
	if err != nil {
		return Element{}, unexpectedEOF(err)
	}
	kind := ElementKind(b)
	switch kind {
	case KindString, KindBinary, KindRespCode:
		data, err := readSized(r)
		return Element{Kind: kind, Bytes: data}, err
	case KindUint:
		data, err := readSized(r)
		if err != nil {
			return Element{}, err
		}
		n, err := strconv.ParseUint(string(data), 10, 64)
		if err != nil {
			return Element{}, fmt.Errorf("%w: bad uint %q", ErrProtocol, data)
		}
		return Uint(n), nil
	case KindFloat:
		data, err := readSized(r)
		if err != nil {
			return Element{}, err
		}
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return Element{}, fmt.Errorf("%w: bad float %q", ErrProtocol, data)
		}
		return Float(f), nil
	case KindArray:
		n, err := readCount(r)
		if err != nil {
			return Element{}, err
		}
		elements := make([]Element, n)
		for i := range elements {
			if elements[i], err = readElement(r, depth+1); err != nil {
				return Element{}, err
			}
		}
		return Array(elements...), nil
	case KindTypedArray:
		ib, err := r.ReadByte()
		if err != nil {
			return Element{}, unexpectedEOF(err)
		}
		itemKind := ElementKind(ib)
		if itemKind != KindString && itemKind != KindBinary {
			return Element{}, fmt.Errorf("%w: typed array of %s", ErrProtocol, itemKind)
		}
		n, err := readCount(r)
		if err != nil {
			return Element{}, err
		}
		items := make([][]byte, n)
		for i := range items {
			if items[i], err = readNullableSized(r); err != nil {
				return Element{}, err
			}
		}
		return TypedArray(itemKind, items), nil
	default:
		return Element{}, fmt.Errorf("%w: unknown element type %q", ErrProtocol, b)
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if line != "" {
			return "", unexpectedEOF(err)
		}
		return "", err
	}
	return line[:len(line)-1], nil
}

func readCount(r *bufio.Reader) (int, error) {
	line, err := readLine(r)
	if err != nil {
		return 0, unexpectedEOF(err)
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 0 || n > maxArrayLen {
		return 0, fmt.Errorf("%w: bad count %q", ErrProtocol, line)
	}
	return n, nil
}

func readSized(r *bufio.Reader) ([]byte, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, unexpectedEOF(err)
	}
	return readBody(r, line)
}

// readNullableSized reads a sized item or the null marker \0\n (returned as nil).
func readNullableSized(r *bufio.Reader) ([]byte, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, unexpectedEOF(err)
	}
	if line == "\x00" {
		return nil, nil
	}
	return readBody(r, line)
}

func readBody(r *bufio.Reader, sizeLine string) ([]byte, error) {
	n, err := strconv.Atoi(sizeLine)
	if err != nil || n < 0 || n > MaxElementSize {
		return nil, fmt.Errorf("%w: bad size %q", ErrProtocol, sizeLine)
	}
	buf := make([]byte, n+1)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, unexpectedEOF(err)
	}
	if buf[n] != '\n' {
		return nil, fmt.Errorf("%w: missing terminator", ErrProtocol)
	}
	return buf[:n], nil
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

package skyhash

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// testElements is a map of case name to element covering every kind
var testElements = map[string]Element{
	"string":       String("hello world"),
	"empty binary": Binary([]byte{}),
	"binary":       Binary([]byte{0, 1, '\n', 255}),
	"uint":         Uint(42),
	"float":        Float(1.5),
	"okay":         Code(CodeOkay),
	"string code":  Code(CodeContainerNotFound),
	"typed array":  TypedArray(KindBinary, [][]byte{[]byte("a"), nil, []byte("b\nc")}),
	"string array": StringArray([]string{"x", "y"}),
	"empty array":  Array(),
	"nested array": Array(String("a"), Uint(1), Array(Code(CodeNil))),
}

func TestResponseRoundTrip(t *testing.T) {
	for name, want := range testElements {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteResponse(bufio.NewWriter(&buf), want); err != nil {
				t.Fatalf("write failed: %v", err)
			}
			got, err := ReadResponse(bufio.NewReader(&buf))
			if err != nil {
				t.Fatalf("read failed: %v", err)
			}
			if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("element mismatch (-want +got):\n%s", diff)
			}
			if buf.Len() != 0 {
				t.Errorf("expected frame to be fully consumed, %d bytes left", buf.Len())
			}
		})
	}
}

func TestQueryWireFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteQuery(bufio.NewWriter(&buf), NewQuery("SET", "key", "value")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	want := "*1\n~3\n3\nSET\n3\nkey\n5\nvalue\n"
	if buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
}

func TestQueryRoundTrip(t *testing.T) {
	q := NewQuery("LMOD", "bash", "PUSH").BinArg([]byte{0, '\n', 7})

	var buf bytes.Buffer
	if err := WriteQuery(bufio.NewWriter(&buf), q); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	got, err := ReadQuery(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if diff := cmp.Diff(q.Args(), got.Args()); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
	if got.Action() != "LMOD" {
		t.Errorf("expected action LMOD, got %s", got.Action())
	}
}

func TestParseQuery(t *testing.T) {
	q := ParseQuery("  get   bash\tzsh ")
	if q.Len() != 3 || q.Action() != "GET" || q.String() != "get bash zsh" {
		t.Errorf("unexpected query %q (len %d)", q.String(), q.Len())
	}
	if err := WriteQuery(bufio.NewWriter(io.Discard), ParseQuery("   ")); !errors.Is(err, ErrProtocol) {
		t.Errorf("expected protocol error for empty query, got %v", err)
	}
}

func TestMalformedFrames(t *testing.T) {
	frames := map[string]string{
		"bad header":         "*2\n!1\n0\n",
		"unknown type":       "*1\n#1\n0\n",
		"bad size":           "*1\n+x\nabc\n",
		"missing terminator": "*1\n+3\nabcX",
		"bad uint":           "*1\n:2\n-1\n",
		"typed uint array":   "*1\n@:1\n1\n1\n",
	}
	for name, frame := range frames {
		t.Run(name, func(t *testing.T) {
			_, err := ReadResponse(bufio.NewReader(strings.NewReader(frame)))
			if !errors.Is(err, ErrProtocol) {
				t.Errorf("expected protocol error, got %v", err)
			}
		})
	}

	_, err := ReadResponse(bufio.NewReader(strings.NewReader("*1\n+5\nab")))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected unexpected EOF for truncated frame, got %v", err)
	}
	_, err = ReadResponse(bufio.NewReader(strings.NewReader("")))
	if err != io.EOF {
		t.Errorf("expected EOF on empty stream, got %v", err)
	}
}

func TestElementErrAndText(t *testing.T) {
	if err := Code(CodeOkay).Err(); err != nil {
		t.Errorf("okay code must not be an error: %v", err)
	}
	err := Code(CodeNil).Err()
	if !IsCode(err, CodeNil) {
		t.Errorf("expected nil code error, got %v", err)
	}
	if err.Error() != "skyhash: nil (code 1)" {
		t.Errorf("unexpected error text %q", err.Error())
	}
	if !IsCode(Code(CodeAlreadyExists).Err(), CodeAlreadyExists) {
		t.Errorf("expected string code to be preserved")
	}

	texts := map[string]Element{
		"hello":      String("hello"),
		"42":         Uint(42),
		"0.25":       Float(0.25),
		`["a",null]`: TypedArray(KindBinary, [][]byte{[]byte("a"), nil}),
		`["x","7"]`:  Array(String("x"), Uint(7)),
	}
	for want, el := range texts {
		if got := el.Text(); got != want {
			t.Errorf("expected text %q, got %q", want, got)
		}
	}
	if got := Code(CodeOkay).Text(); got != "skyhash: okay (code 0)" {
		t.Errorf("unexpected code text %q", got)
	}
}

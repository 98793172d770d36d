package surreal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/ValentinKolb/dbBench/lib/db"
	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
	surrealdb "github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

// --------------------------------------------------------------------------
// Statements
// --------------------------------------------------------------------------

var unmarshaler models.CborUnmarshaler

// statement is the result of one SurrealQL statement. The result stays in
// its CBOR form until the caller knows what to decode it into.
type statement struct {
	Status string
	Result cbor.RawMessage
}

// Err returns the statement error as reported by the server.
func (s statement) Err() error {
	if strings.EqualFold(s.Status, "OK") {
		return nil
	}
	var msg string
	if err := unmarshaler.Unmarshal(s.Result, &msg); err != nil || msg == "" {
		msg = fmt.Sprintf("statement failed with status %s", s.Status)
	}
	return db.QueryError(db.ImplSurreal, msg)
}

// Decode unmarshals the statement result into v. Struct fields are matched
// by their json tags.
func (s statement) Decode(v any) error {
	if len(s.Result) == 0 {
		return nil
	}
	if err := unmarshaler.Unmarshal(s.Result, v); err != nil {
		return db.NewError(db.ErrKParse, db.ImplSurreal, "cannot decode statement result", err)
	}
	return nil
}

// JSON renders the statement result as JSON.
func (s statement) JSON() string {
	var v any
	if err := s.Decode(&v); err != nil {
		return fmt.Sprintf("%x", []byte(s.Result))
	}
	b, err := json.Marshal(jsonable(v))
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// jsonable converts the generic maps of a CBOR decode into maps with string
// keys.
func jsonable(v any) any {
	switch v := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(v))
		for k, val := range v {
			m[fmt.Sprint(k)] = jsonable(val)
		}
		return m
	case map[string]any:
		for k, val := range v {
			v[k] = jsonable(val)
		}
		return v
	case []any:
		for i, val := range v {
			v[i] = jsonable(val)
		}
		return v
	default:
		return v
	}
}

// --------------------------------------------------------------------------
// Connection
// --------------------------------------------------------------------------

// conn runs SurrealQL with bound parameters. Failures of the transport are
// connection errors, statement errors are left to the caller.
type conn interface {
	Query(ctx context.Context, sql string, vars map[string]any) ([]statement, error)
	Close() error
}

// sdkConn is a conn on top of the official client.
type sdkConn struct {
	db      *surrealdb.DB
	timeout time.Duration
}

// dial connects, signs in and selects namespace and database.
func dial(ctx context.Context, opts Options) (*sdkConn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sdb, err := surrealdb.New(opts.Endpoint)
	if err != nil {
		return nil, err
	}
	if opts.Username != "" {
		auth := &surrealdb.Auth{Username: opts.Username, Password: opts.Password}
		if _, err := sdb.SignIn(auth); err != nil {
			sdb.Close()
			return nil, fmt.Errorf("signin as %s: %w", opts.Username, err)
		}
	}
	if err := sdb.Use(opts.Namespace, opts.Database); err != nil {
		sdb.Close()
		return nil, fmt.Errorf("use %s/%s: %w", opts.Namespace, opts.Database, err)
	}
	return &sdkConn{db: sdb, timeout: opts.Timeout}, nil
}

type queryReply struct {
	results *[]surrealdb.QueryResult[cbor.RawMessage]
	err     error
}

// Query runs sql. The client has no context support, so a cancelled context
// only stops the wait for the reply.
func (c *sdkConn) Query(ctx context.Context, sql string, vars map[string]any) ([]statement, error) {
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if vars == nil {
		vars = map[string]any{}
	}

	done := make(chan queryReply, 1)
	go func() {
		results, err := surrealdb.Query[cbor.RawMessage](c.db, sql, vars)
		done <- queryReply{results: results, err: err}
	}()

	var reply queryReply
	select {
	case <-ctx.Done():
		return nil, db.ConnectionError(db.ImplSurreal, ctx.Err())
	case reply = <-done:
	}
	if reply.err != nil {
		return nil, classify(reply.err)
	}
	if reply.results == nil {
		return nil, nil
	}

	statements := make([]statement, len(*reply.results))
	for i, r := range *reply.results {
		statements[i] = statement{Status: r.Status, Result: r.Result}
	}
	return statements, nil
}

func (c *sdkConn) Close() error {
	return c.db.Close()
}

// classify turns a failed request into a ConnectionError if the transport
// broke and into a QueryError if the server rejected the request.
func classify(err error) error {
	var netErr net.Error
	var closeErr *websocket.CloseError
	switch {
	case errors.As(err, &netErr),
		errors.As(err, &closeErr),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, context.DeadlineExceeded):
		return db.ConnectionError(db.ImplSurreal, err)
	default:
		return db.NewError(db.ErrKQuery, db.ImplSurreal, "", err)
	}
}

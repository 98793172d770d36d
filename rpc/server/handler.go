package server

import (
	"errors"
	"strconv"
	"strings"

	"github.com/ValentinKolb/dbBench/lib/tablestore"
	"github.com/ValentinKolb/dbBench/rpc/skyhash"
)

// defaultLSKeysCount is the number of keys LSKEYS returns without a count.
const defaultLSKeysCount = 10

// session is the per-connection state: the store and the active table
// selected with USE. Sessions start in the default table.
type session struct {
	store  *tablestore.Store
	active *tablestore.Table
}

func newSession(store *tablestore.Store) *session {
	s := &session{store: store}
	s.active, _ = store.Table(tablestore.DefaultTable)
	return s
}

// handle executes one query and returns the response element.
func (s *session) handle(q *skyhash.Query) skyhash.Element {
	args := q.Args()[1:]

	switch q.Action() {
	case "HEYA":
		if len(args) == 1 {
			return skyhash.String(string(args[0]))
		}
		return skyhash.String("HEY!")
	case "USE":
		return s.use(args)
	case "CREATE":
		return s.create(args)
	case "DROP":
		return s.drop(args)
	case "LSTABLES":
		return skyhash.StringArray(s.store.Tables())
	}

	// all remaining actions operate on the active table
	if s.active == nil {
		return skyhash.Code(skyhash.CodeDefaultUnset)
	}
	// the table may have been dropped or recreated by another connection
	t, err := s.store.Table(s.active.Name())
	if err != nil {
		s.active = nil
		return errorCode(err)
	}
	s.active = t

	switch q.Action() {
	case "SET":
		if len(args) != 2 {
			return actionError()
		}
		return okayOr(t.Set(string(args[0]), args[1]))
	case "UPDATE":
		if len(args) != 2 {
			return actionError()
		}
		return okayOr(t.Update(string(args[0]), args[1]))
	case "USET":
		if len(args) == 0 || len(args)%2 != 0 {
			return actionError()
		}
		for i := 0; i < len(args); i += 2 {
			if err := t.Upsert(string(args[i]), args[i+1]); err != nil {
				return errorCode(err)
			}
		}
		return skyhash.Uint(uint64(len(args) / 2))
	case "GET":
		if len(args) != 1 {
			return actionError()
		}
		v, err := t.Get(string(args[0]))
		if err != nil {
			return errorCode(err)
		}
		return skyhash.Binary(v)
	case "MGET":
		if len(args) == 0 {
			return actionError()
		}
		values, err := t.MGet(toStrings(args))
		if err != nil {
			return errorCode(err)
		}
		return skyhash.TypedArray(skyhash.KindBinary, values)
	case "DEL":
		if len(args) == 0 {
			return actionError()
		}
		return skyhash.Uint(t.Del(toStrings(args)...))
	case "EXISTS":
		if len(args) == 0 {
			return actionError()
		}
		return skyhash.Uint(t.Exists(toStrings(args)...))
	case "DBSIZE":
		return skyhash.Uint(t.Len())
	case "FLUSHDB":
		t.Flush()
		return skyhash.Code(skyhash.CodeOkay)
	case "LSKEYS":
		return s.lskeys(t, args)
	case "LSET":
		if len(args) == 0 {
			return actionError()
		}
		return okayOr(t.LSet(string(args[0]), args[1:]...))
	case "LGET":
		return s.lget(t, args)
	case "LMOD":
		return s.lmod(t, args)
	default:
		return skyhash.Code(skyhash.CodeUnknownAction)
	}
}

// --------------------------------------------------------------------------
// DDL
// --------------------------------------------------------------------------

// use switches the active table: USE <keyspace:table>
func (s *session) use(args [][]byte) skyhash.Element {
	if len(args) != 1 {
		return actionError()
	}
	t, err := s.store.Table(string(args[0]))
	if err != nil {
		return errorCode(err)
	}
	s.active = t
	return skyhash.Code(skyhash.CodeOkay)
}

// create handles CREATE KEYSPACE <name> and
// CREATE TABLE <name> keymap(str,<binstr|list<binstr>>)
func (s *session) create(args [][]byte) skyhash.Element {
	if len(args) == 2 && strings.EqualFold(string(args[0]), "KEYSPACE") {
		return okayOr(s.store.CreateKeyspace(string(args[1])))
	}
	if len(args) < 2 || !strings.EqualFold(string(args[0]), "TABLE") {
		return skyhash.Code(skyhash.CodeUnknownDDL)
	}
	kind := tablestore.KindBinary
	if len(args) > 2 {
		var err error
		if kind, err = parseKeymap(string(args[2])); err != nil {
			return skyhash.Code(skyhash.CodeUnknownDataType)
		}
	}
	return okayOr(s.store.CreateTable(string(args[1]), kind))
}

// drop handles DROP KEYSPACE <name> and DROP TABLE <name>. Dropping the
// active table switches back to the default table.
func (s *session) drop(args [][]byte) skyhash.Element {
	if len(args) != 2 {
		return skyhash.Code(skyhash.CodeUnknownDDL)
	}
	name := string(args[1])
	if strings.EqualFold(string(args[0]), "KEYSPACE") {
		return okayOr(s.store.DropKeyspace(name))
	}
	if !strings.EqualFold(string(args[0]), "TABLE") {
		return skyhash.Code(skyhash.CodeUnknownDDL)
	}

	if err := s.store.DropTable(name); err != nil {
		return errorCode(err)
	}
	if s.active != nil && s.active.Name() == name {
		s.active, _ = s.store.Table(tablestore.DefaultTable)
	}
	return skyhash.Code(skyhash.CodeOkay)
}

// parseTableKind accepts a keymap declaration or a bare value type.
func parseTableKind(decl string) (tablestore.ValueKind, error) {
	if strings.HasPrefix(strings.ToLower(decl), "keymap(") {
		return parseKeymap(decl)
	}
	return tablestore.ParseValueKind(decl)
}

// parseKeymap parses "keymap(str,binstr)" and returns the value kind.
func parseKeymap(decl string) (tablestore.ValueKind, error) {
	inner, ok := strings.CutPrefix(strings.ToLower(decl), "keymap(")
	if !ok || !strings.HasSuffix(inner, ")") {
		return 0, tablestore.ErrWrongType
	}
	key, value, ok := strings.Cut(strings.TrimSuffix(inner, ")"), ",")
	if !ok {
		return 0, tablestore.ErrWrongType
	}
	if k := strings.TrimSpace(key); k != "str" && k != "binstr" {
		return 0, tablestore.ErrWrongType
	}
	return tablestore.ParseValueKind(value)
}

// --------------------------------------------------------------------------
// Key and List Actions
// --------------------------------------------------------------------------

// lskeys handles LSKEYS [count]
func (s *session) lskeys(t *tablestore.Table, args [][]byte) skyhash.Element {
	count := defaultLSKeysCount
	switch len(args) {
	case 0:
	case 1:
		n, err := strconv.Atoi(string(args[0]))
		if err != nil || n < 0 {
			return skyhash.Code(skyhash.CodeWrongType)
		}
		count = n
	default:
		return actionError()
	}
	if count == 0 {
		return skyhash.StringArray(nil)
	}
	return skyhash.StringArray(t.Keys(count))
}

// lget handles LGET <key> [LEN]
func (s *session) lget(t *tablestore.Table, args [][]byte) skyhash.Element {
	switch {
	case len(args) == 1:
		list, err := t.LGet(string(args[0]))
		if err != nil {
			return errorCode(err)
		}
		return skyhash.TypedArray(skyhash.KindBinary, list)
	case len(args) == 2 && strings.EqualFold(string(args[1]), "LEN"):
		n, err := t.LLen(string(args[0]))
		if err != nil {
			return errorCode(err)
		}
		return skyhash.Uint(n)
	default:
		return actionError()
	}
}

// lmod handles LMOD <key> CLEAR | PUSH <values...> | POP
func (s *session) lmod(t *tablestore.Table, args [][]byte) skyhash.Element {
	if len(args) < 2 {
		return actionError()
	}
	key := string(args[0])
	switch strings.ToUpper(string(args[1])) {
	case "CLEAR":
		return okayOr(t.LClear(key))
	case "PUSH":
		if len(args) < 3 {
			return actionError()
		}
		return okayOr(t.LPush(key, args[2:]...))
	case "POP":
		v, err := t.LPop(key)
		if err != nil {
			return errorCode(err)
		}
		return skyhash.Binary(v)
	default:
		return skyhash.Code(skyhash.CodeUnknownAction)
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func actionError() skyhash.Element {
	return skyhash.Code(skyhash.CodeActionError)
}

func okayOr(err error) skyhash.Element {
	if err != nil {
		return errorCode(err)
	}
	return skyhash.Code(skyhash.CodeOkay)
}

// errorCode maps store errors to response codes.
func errorCode(err error) skyhash.Element {
	switch {
	case errors.Is(err, tablestore.ErrNil):
		return skyhash.Code(skyhash.CodeNil)
	case errors.Is(err, tablestore.ErrOverwrite):
		return skyhash.Code(skyhash.CodeOverwrite)
	case errors.Is(err, tablestore.ErrWrongType):
		return skyhash.Code(skyhash.CodeWrongType)
	case errors.Is(err, tablestore.ErrUnknownTable):
		return skyhash.Code(skyhash.CodeContainerNotFound)
	case errors.Is(err, tablestore.ErrAlreadyExists):
		return skyhash.Code(skyhash.CodeAlreadyExists)
	case errors.Is(err, tablestore.ErrBadTableName):
		return skyhash.Code(skyhash.CodeBadContainerName)
	case errors.Is(err, tablestore.ErrProtected):
		return skyhash.Code(skyhash.CodeProtected)
	case errors.Is(err, tablestore.ErrStillInUse):
		return skyhash.Code(skyhash.CodeStillInUse)
	default:
		Logger.Errorf("Unexpected store error: %v", err)
		return skyhash.Code(skyhash.CodeServerError)
	}
}

func toStrings(args [][]byte) []string {
	s := make([]string, len(args))
	for i, a := range args {
		s[i] = string(a)
	}
	return s
}

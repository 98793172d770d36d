package tablestore

import (
	"errors"
	"slices"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	ErrNil           = errors.New("nil")
	ErrOverwrite     = errors.New("overwrite error")
	ErrWrongType     = errors.New("wrongtype error")
	ErrUnknownTable  = errors.New("container-not-found")
	ErrAlreadyExists = errors.New("err-already-exists")
	ErrBadTableName  = errors.New("bad-container-name")
	ErrProtected     = errors.New("err-protected-object")
	ErrStillInUse    = errors.New("still-in-use")
)

// DefaultTable exists in every store and cannot be dropped. Connections start
// in it.
const (
	DefaultKeyspace = "default"
	DefaultTable    = DefaultKeyspace + ":default"
)

// --------------------------------------------------------------------------
// Value Kinds
// --------------------------------------------------------------------------

// ValueKind is the value type of a keymap table. Keys are always strings.
type ValueKind int

const (
	KindBinary ValueKind = iota // binstr values
	KindList                    // list<binstr> values
)

func (k ValueKind) String() string {
	switch k {
	case KindBinary:
		return "binstr"
	case KindList:
		return "list<binstr>"
	default:
		return "unknown"
	}
}

// ParseValueKind parses the value type of a keymap declaration.
func ParseValueKind(s string) (ValueKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "binstr", "str":
		return KindBinary, nil
	case "list<binstr>", "list<str>":
		return KindList, nil
	default:
		return 0, ErrWrongType
	}
}

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

// Store is a set of keyspaces holding named tables.
//
// Thread-safety: all methods are safe for concurrent use. Creating a table
// concurrently with dropping its keyspace may leave the table in place.
type Store struct {
	keyspaces *xsync.MapOf[string, struct{}]
	tables    *xsync.MapOf[string, *Table]
}

// New creates a store that only holds DefaultTable.
func New() *Store {
	s := &Store{
		keyspaces: xsync.NewMapOf[string, struct{}](),
		tables:    xsync.NewMapOf[string, *Table](),
	}
	s.keyspaces.Store(DefaultKeyspace, struct{}{})
	s.tables.Store(DefaultTable, newTable(DefaultTable, KindBinary))
	return s
}

// CreateKeyspace creates an empty keyspace.
func (s *Store) CreateKeyspace(name string) error {
	if !validIdent(name) {
		return ErrBadTableName
	}
	if _, loaded := s.keyspaces.LoadOrStore(name, struct{}{}); loaded {
		return ErrAlreadyExists
	}
	return nil
}

// DropKeyspace removes an empty keyspace.
func (s *Store) DropKeyspace(name string) error {
	if name == DefaultKeyspace {
		return ErrProtected
	}
	if _, ok := s.keyspaces.Load(name); !ok {
		return ErrUnknownTable
	}
	inUse := false
	s.tables.Range(func(table string, _ *Table) bool {
		inUse = strings.HasPrefix(table, name+":")
		return !inUse
	})
	if inUse {
		return ErrStillInUse
	}
	s.keyspaces.Delete(name)
	return nil
}

// CreateTable creates a table. Table names have the form "keyspace:table"
// and the keyspace must exist.
func (s *Store) CreateTable(name string, kind ValueKind) error {
	if !validTableName(name) {
		return ErrBadTableName
	}
	ks, _, _ := strings.Cut(name, ":")
	if _, ok := s.keyspaces.Load(ks); !ok {
		return ErrUnknownTable
	}
	_, loaded := s.tables.LoadOrStore(name, newTable(name, kind))
	if loaded {
		return ErrAlreadyExists
	}
	return nil
}

// DropTable removes a table and all its data.
func (s *Store) DropTable(name string) error {
	if name == DefaultTable {
		return ErrProtected
	}
	if _, ok := s.tables.LoadAndDelete(name); !ok {
		return ErrUnknownTable
	}
	return nil
}

// Table returns the table with the given name.
func (s *Store) Table(name string) (*Table, error) {
	t, ok := s.tables.Load(name)
	if !ok {
		return nil, ErrUnknownTable
	}
	return t, nil
}

// Tables returns the sorted names of all tables.
func (s *Store) Tables() []string {
	names := make([]string, 0, s.tables.Size())
	s.tables.Range(func(name string, _ *Table) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)
	return names
}

func validTableName(name string) bool {
	ks, tbl, ok := strings.Cut(name, ":")
	return ok && validIdent(ks) && validIdent(tbl)
}

func validIdent(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

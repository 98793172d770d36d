package tablestore

import (
	"slices"

	"github.com/puzpuzpuz/xsync/v3"
)

// entry is a stored value. Depending on the table kind either value or list is used.
type entry struct {
	value []byte
	list  [][]byte
}

// Table is a keymap with string keys and either binary or list values.
// Stored values are copied on write and on read.
//
// Thread-safety: all methods are safe for concurrent use.
type Table struct {
	name string
	kind ValueKind
	data *xsync.MapOf[string, entry]
}

func newTable(name string, kind ValueKind) *Table {
	return &Table{
		name: name,
		kind: kind,
		data: xsync.NewMapOf[string, entry](),
	}
}

// Name returns the "keyspace:table" name.
func (t *Table) Name() string { return t.name }

// Kind returns the value type of the table.
func (t *Table) Kind() ValueKind { return t.kind }

// --------------------------------------------------------------------------
// Key Operations
// --------------------------------------------------------------------------

// Set stores value under key, failing with ErrOverwrite if the key exists.
func (t *Table) Set(key string, value []byte) error {
	if t.kind != KindBinary {
		return ErrWrongType
	}
	_, loaded := t.data.LoadOrStore(key, entry{value: clone(value)})
	if loaded {
		return ErrOverwrite
	}
	return nil
}

// Update replaces the value of an existing key, failing with ErrNil otherwise.
func (t *Table) Update(key string, value []byte) error {
	if t.kind != KindBinary {
		return ErrWrongType
	}
	found := false
	t.data.Compute(key, func(old entry, loaded bool) (entry, bool) {
		found = loaded
		if !loaded {
			return old, true
		}
		return entry{value: clone(value)}, false
	})
	if !found {
		return ErrNil
	}
	return nil
}

// Upsert stores value under key, overwriting any previous value.
func (t *Table) Upsert(key string, value []byte) error {
	if t.kind != KindBinary {
		return ErrWrongType
	}
	t.data.Store(key, entry{value: clone(value)})
	return nil
}

// Get returns a copy of the value stored under key.
func (t *Table) Get(key string) ([]byte, error) {
	if t.kind != KindBinary {
		return nil, ErrWrongType
	}
	e, ok := t.data.Load(key)
	if !ok {
		return nil, ErrNil
	}
	return clone(e.value), nil
}

// MGet returns the values for keys, nil for missing keys.
func (t *Table) MGet(keys []string) ([][]byte, error) {
	if t.kind != KindBinary {
		return nil, ErrWrongType
	}
	values := make([][]byte, len(keys))
	for i, k := range keys {
		if e, ok := t.data.Load(k); ok {
			values[i] = clone(e.value)
		}
	}
	return values, nil
}

// Del removes keys and returns how many existed.
func (t *Table) Del(keys ...string) uint64 {
	var n uint64
	for _, k := range keys {
		if _, ok := t.data.LoadAndDelete(k); ok {
			n++
		}
	}
	return n
}

// Exists returns how many of keys exist.
func (t *Table) Exists(keys ...string) uint64 {
	var n uint64
	for _, k := range keys {
		if _, ok := t.data.Load(k); ok {
			n++
		}
	}
	return n
}

// Len returns the number of keys.
func (t *Table) Len() uint64 {
	return uint64(t.data.Size())
}

// Keys returns up to limit keys in sorted order (limit <= 0 means all).
func (t *Table) Keys(limit int) []string {
	keys := make([]string, 0, t.data.Size())
	t.data.Range(func(k string, _ entry) bool {
		keys = append(keys, k)
		return true
	})
	slices.Sort(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}

// Flush removes all keys.
func (t *Table) Flush() {
	t.data.Clear()
}

// --------------------------------------------------------------------------
// List Operations
// --------------------------------------------------------------------------

// LSet creates a list under key with the given initial elements.
// Fails with ErrOverwrite if the key exists.
func (t *Table) LSet(key string, values ...[]byte) error {
	if t.kind != KindList {
		return ErrWrongType
	}
	_, loaded := t.data.LoadOrStore(key, entry{list: cloneAll(values)})
	if loaded {
		return ErrOverwrite
	}
	return nil
}

// LGet returns a copy of the list under key.
func (t *Table) LGet(key string) ([][]byte, error) {
	if t.kind != KindList {
		return nil, ErrWrongType
	}
	e, ok := t.data.Load(key)
	if !ok {
		return nil, ErrNil
	}
	return cloneAll(e.list), nil
}

// LLen returns the length of the list under key.
func (t *Table) LLen(key string) (uint64, error) {
	if t.kind != KindList {
		return 0, ErrWrongType
	}
	e, ok := t.data.Load(key)
	if !ok {
		return 0, ErrNil
	}
	return uint64(len(e.list)), nil
}

// LPush appends values to the list under key.
func (t *Table) LPush(key string, values ...[]byte) error {
	return t.modifyList(key, func(list [][]byte) [][]byte {
		return append(list, cloneAll(values)...)
	})
}

// LClear empties the list under key.
func (t *Table) LClear(key string) error {
	return t.modifyList(key, func([][]byte) [][]byte {
		return [][]byte{}
	})
}

// LPop removes and returns the last element of the list under key.
func (t *Table) LPop(key string) ([]byte, error) {
	var popped []byte
	err := t.modifyList(key, func(list [][]byte) [][]byte {
		if len(list) == 0 {
			return list
		}
		popped = list[len(list)-1]
		return list[:len(list)-1]
	})
	if err != nil {
		return nil, err
	}
	if popped == nil {
		return nil, ErrNil
	}
	return popped, nil
}

// modifyList applies fn to a private copy of the list and stores the result.
func (t *Table) modifyList(key string, fn func([][]byte) [][]byte) error {
	if t.kind != KindList {
		return ErrWrongType
	}
	found := false
	t.data.Compute(key, func(old entry, loaded bool) (entry, bool) {
		found = loaded
		if !loaded {
			return old, true
		}
		return entry{list: fn(slices.Clone(old.list))}, false
	})
	if !found {
		return ErrNil
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func clone(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

func cloneAll(values [][]byte) [][]byte {
	c := make([][]byte, len(values))
	for i, v := range values {
		c[i] = clone(v)
	}
	return c
}

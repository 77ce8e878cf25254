package storage

import "errors"

// ErrTxnClosed is returned when writing through a committed or discarded Txn.
var ErrTxnClosed = errors.New("storage: transaction closed")

// Txn buffers writes against a backing database until Commit. Reads see the
// buffered writes first and fall through to the backing store. Discarding a
// Txn leaves the backing store untouched, which gives callers all-or-nothing
// semantics for multi-step transitions.
//
// Txn is not safe for concurrent use; the owner is expected to serialize
// transitions before opening one.
type Txn struct {
	db      Database
	pending map[string][]byte
	done    bool
}

// NewTxn opens a buffered transaction over db.
func NewTxn(db Database) *Txn {
	return &Txn{
		db:      db,
		pending: make(map[string][]byte),
	}
}

// Put stages a write. Nothing reaches the backing store until Commit.
func (t *Txn) Put(key []byte, value []byte) error {
	if t.done {
		return ErrTxnClosed
	}
	t.pending[string(key)] = append([]byte(nil), value...)
	return nil
}

// Get returns the staged value for key if one exists, otherwise the value
// from the backing store.
func (t *Txn) Get(key []byte) ([]byte, error) {
	if value, ok := t.pending[string(key)]; ok {
		return append([]byte(nil), value...), nil
	}
	return t.db.Get(key)
}

// Has reports whether the key is visible through the transaction.
func (t *Txn) Has(key []byte) (bool, error) {
	if _, ok := t.pending[string(key)]; ok {
		return true, nil
	}
	return t.db.Has(key)
}

// Close satisfies the Database interface; it discards pending writes.
func (t *Txn) Close() error {
	t.Discard()
	return nil
}

// WriteBatch stages all entries; they reach the backing store on Commit like
// individual Puts.
func (t *Txn) WriteBatch(entries map[string][]byte) error {
	if t.done {
		return ErrTxnClosed
	}
	for key, value := range entries {
		t.pending[key] = append([]byte(nil), value...)
	}
	return nil
}

// Commit flushes all staged writes to the backing store in one atomic batch:
// a crash or write error cannot leave a partial transition behind. A
// committed or discarded transaction cannot be reused.
func (t *Txn) Commit() error {
	if t.done {
		return nil
	}
	if len(t.pending) > 0 {
		if err := t.db.WriteBatch(t.pending); err != nil {
			return err
		}
	}
	t.done = true
	t.pending = nil
	return nil
}

// Discard drops all staged writes.
func (t *Txn) Discard() {
	t.done = true
	t.pending = nil
}

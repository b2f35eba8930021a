package storage

import "errors"

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("storage: key not found")

// KV is the minimal key-value surface the ledger modules write through.
// Both committed stores and overlays implement it.
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
}

// Iterable stores can walk keys in ascending byte order.
type Iterable interface {
	KV
	// Iterate calls fn for every key with the given prefix. An empty prefix
	// walks the whole store. Returning an error from fn stops the walk.
	Iterate(prefix []byte, fn func(key, value []byte) error) error
}

// Write is a single buffered mutation.
type Write struct {
	Key    []byte
	Value  []byte
	Delete bool
}

// Batcher applies a set of writes atomically.
type Batcher interface {
	Iterable
	Apply(writes []Write) error
}

package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

// GetJSON loads key into v. It reports false when the key is absent.
func GetJSON(kv KV, key []byte, v any) (bool, error) {
	data, err := kv.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %q: %w", key, err)
	}
	return true, nil
}

// PutJSON stores v under key.
func PutJSON(kv KV, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %q: %w", key, err)
	}
	return kv.Set(key, data)
}

// GetUint64 reads a big-endian counter, returning 0 for absent keys.
func GetUint64(kv KV, key []byte) (uint64, error) {
	data, err := kv.Get(key)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("counter %q: bad length %d", key, len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// PutUint64 writes a big-endian counter.
func PutUint64(kv KV, key []byte, n uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	return kv.Set(key, buf[:])
}

package storage

import (
	"errors"
	"fmt"
	"sort"
)

// Overlay buffers writes on top of a base KV. Reads see the buffered
// writes first. Nothing reaches the base until Commit; Discard drops the
// buffer. Overlays nest: an overlay can sit on top of another overlay.
type Overlay struct {
	base   KV
	writes map[string]Write
}

func NewOverlay(base KV) *Overlay {
	return &Overlay{base: base, writes: make(map[string]Write)}
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	if w, ok := o.writes[string(key)]; ok {
		if w.Delete {
			return nil, ErrNotFound
		}
		return append([]byte(nil), w.Value...), nil
	}
	return o.base.Get(key)
}

func (o *Overlay) Set(key, value []byte) error {
	k := append([]byte(nil), key...)
	o.writes[string(k)] = Write{Key: k, Value: append([]byte(nil), value...)}
	return nil
}

func (o *Overlay) Delete(key []byte) error {
	k := append([]byte(nil), key...)
	o.writes[string(k)] = Write{Key: k, Delete: true}
	return nil
}

// Pending returns the buffered writes sorted by key.
func (o *Overlay) Pending() []Write {
	out := make([]Write, 0, len(o.writes))
	for _, w := range o.writes {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return string(out[i].Key) < string(out[j].Key) })
	return out
}

// Commit flushes the buffer into the base. A Batcher base receives all
// writes in one atomic Apply.
func (o *Overlay) Commit() error {
	writes := o.Pending()
	o.writes = make(map[string]Write)
	if len(writes) == 0 {
		return nil
	}

	if b, ok := o.base.(Batcher); ok {
		return b.Apply(writes)
	}
	for _, w := range writes {
		var err error
		if w.Delete {
			err = o.base.Delete(w.Key)
		} else {
			err = o.base.Set(w.Key, w.Value)
		}
		if err != nil {
			return fmt.Errorf("overlay flush %q: %w", w.Key, err)
		}
	}
	return nil
}

func (o *Overlay) Discard() {
	o.writes = make(map[string]Write)
}

// Has reports whether key resolves to a value.
func Has(kv KV, key []byte) (bool, error) {
	_, err := kv.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

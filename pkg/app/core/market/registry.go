package market

import (
	"errors"
	"fmt"

	"github.com/uhyunpark/hyperspot/pkg/app/core/assets"
	"github.com/uhyunpark/hyperspot/pkg/storage"
)

var ErrUnknownPair = errors.New("unknown trading pair")

var pairListKey = []byte("pair:list")

// Registry is the persisted list of trading pairs. It reads and writes
// through a KV, so it follows whatever overlay the caller is in.
type Registry struct {
	kv storage.KV
}

func NewRegistry(kv storage.KV) *Registry {
	return &Registry{kv: kv}
}

// List returns all registered pairs in registration order.
func (r *Registry) List() ([]Detail, error) {
	var list []Detail
	if _, err := storage.GetJSON(r.kv, pairListKey, &list); err != nil {
		return nil, fmt.Errorf("failed to load pair list: %w", err)
	}
	return list, nil
}

// Add registers a pair. It reports false without error when the pair is
// already registered; the stored precision is kept in that case.
func (r *Registry) Add(p Pair, precision uint32) (bool, error) {
	if p.First == "" || p.Second == "" || p.First == p.Second {
		return false, fmt.Errorf("invalid pair %s", p)
	}
	if precision > assets.MaxPrecision {
		return false, fmt.Errorf("pair %s: precision %d exceeds %d", p, precision, assets.MaxPrecision)
	}

	list, err := r.List()
	if err != nil {
		return false, err
	}
	for _, d := range list {
		if d.Pair == p {
			return false, nil
		}
	}
	list = append(list, Detail{Pair: p, Precision: precision})
	if err := storage.PutJSON(r.kv, pairListKey, list); err != nil {
		return false, err
	}
	return true, nil
}

// Detail returns the metadata of a registered pair.
func (r *Registry) Detail(p Pair) (Detail, error) {
	list, err := r.List()
	if err != nil {
		return Detail{}, err
	}
	for _, d := range list {
		if d.Pair == p {
			return d, nil
		}
	}
	return Detail{}, fmt.Errorf("%w: %s", ErrUnknownPair, p)
}

func (r *Registry) Contains(p Pair) (bool, error) {
	_, err := r.Detail(p)
	if errors.Is(err, ErrUnknownPair) {
		return false, nil
	}
	return err == nil, err
}

// Find returns the pair trading first against second, if registered.
func (r *Registry) Find(first, second assets.Token) (Pair, bool, error) {
	p := NewPair(first, second)
	ok, err := r.Contains(p)
	return p, ok, err
}

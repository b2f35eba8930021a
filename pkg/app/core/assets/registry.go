package assets

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Token identifies an asset, e.g. "PCX" or "BTC".
type Token string

// MaxPrecision keeps 10^precision inside a uint64.
const MaxPrecision = 19

var ErrUnknownAsset = errors.New("unknown asset")

// Registry holds the decimal precision of every tradable asset and names
// the native asset. It is fixed at genesis.
type Registry struct {
	mu        sync.RWMutex
	native    Token
	precision map[Token]uint32
}

// NewRegistry creates a registry with the native asset already registered.
func NewRegistry(native Token, nativePrecision uint32) (*Registry, error) {
	r := &Registry{native: native, precision: make(map[Token]uint32)}
	if err := r.Register(native, nativePrecision); err != nil {
		return nil, err
	}
	return r, nil
}

// Register adds an asset. Re-registering with the same precision is a no-op.
func (r *Registry) Register(token Token, precision uint32) error {
	if token == "" {
		return fmt.Errorf("empty asset name")
	}
	if precision > MaxPrecision {
		return fmt.Errorf("asset %s: precision %d exceeds %d", token, precision, MaxPrecision)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, exists := r.precision[token]; exists && p != precision {
		return fmt.Errorf("asset %s already registered with precision %d", token, p)
	}
	r.precision[token] = precision
	return nil
}

func (r *Registry) Native() Token { return r.native }

func (r *Registry) Precision(token Token) (uint32, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.precision[token]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAsset, token)
	}
	return p, nil
}

func (r *Registry) Exists(token Token) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.precision[token]
	return ok
}

// List returns all tokens sorted by name.
func (r *Registry) List() []Token {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Token, 0, len(r.precision))
	for t := range r.precision {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Package channel maps referral channel names to the accounts that receive
// their share of dispatched fees.
package channel

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperspot/pkg/storage"
)

// MaxNameLen is the longest channel name an order may carry.
const MaxNameLen = 32

var ErrNameTooLong = errors.New("channel name too long")

type Directory struct {
	kv storage.KV
}

func NewDirectory(kv storage.KV) *Directory {
	return &Directory{kv: kv}
}

func nameKey(name string) []byte { return storage.Key("chan:", name) }

// Register binds name to account, replacing any previous binding.
func (d *Directory) Register(name string, account common.Address) error {
	if name == "" {
		return fmt.Errorf("empty channel name")
	}
	if len(name) > MaxNameLen {
		return fmt.Errorf("%w: %d bytes", ErrNameTooLong, len(name))
	}
	return d.kv.Set(nameKey(name), account.Bytes())
}

// AccountOf returns the account registered for name.
func (d *Directory) AccountOf(name string) (common.Address, bool, error) {
	if name == "" {
		return common.Address{}, false, nil
	}
	data, err := d.kv.Get(nameKey(name))
	if errors.Is(err, storage.ErrNotFound) {
		return common.Address{}, false, nil
	}
	if err != nil {
		return common.Address{}, false, fmt.Errorf("failed to load channel %q: %w", name, err)
	}
	return common.BytesToAddress(data), true, nil
}

// Resolve returns the channel's account, or fallback when the name is
// empty or unregistered.
func (d *Directory) Resolve(name string, fallback common.Address) (common.Address, error) {
	addr, ok, err := d.AccountOf(name)
	if err != nil {
		return common.Address{}, err
	}
	if !ok {
		return fallback, nil
	}
	return addr, nil
}

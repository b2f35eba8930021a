package assets

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperspot/pkg/storage"
)

var (
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInsufficientReserved = errors.New("insufficient reserved balance")
	ErrBalanceOverflow      = errors.New("balance overflow")
)

// Balance is the per-(account, token) state: Free can be spent, Reserved is
// locked against open orders.
type Balance struct {
	Free     uint64 `json:"free"`
	Reserved uint64 `json:"reserved"`
}

func (b Balance) Total() uint64 { return b.Free + b.Reserved }

// Ledger moves balances between accounts. It reads and writes through the
// given KV, so binding it to an overlay makes a sequence of moves atomic.
type Ledger struct {
	kv storage.KV
}

func NewLedger(kv storage.KV) *Ledger {
	return &Ledger{kv: kv}
}

// balanceKey returns "bal:{address}:{token}".
func balanceKey(addr common.Address, token Token) []byte {
	return storage.Key("bal:", addr.Hex(), string(token))
}

func (l *Ledger) Balance(addr common.Address, token Token) (Balance, error) {
	var b Balance
	if _, err := storage.GetJSON(l.kv, balanceKey(addr, token), &b); err != nil {
		return Balance{}, fmt.Errorf("failed to load balance %s/%s: %w", addr.Hex(), token, err)
	}
	return b, nil
}

func (l *Ledger) FreeBalance(addr common.Address, token Token) (uint64, error) {
	b, err := l.Balance(addr, token)
	return b.Free, err
}

func (l *Ledger) ReservedBalance(addr common.Address, token Token) (uint64, error) {
	b, err := l.Balance(addr, token)
	return b.Reserved, err
}

func (l *Ledger) save(addr common.Address, token Token, b Balance) error {
	if b == (Balance{}) {
		return l.kv.Delete(balanceKey(addr, token))
	}
	return storage.PutJSON(l.kv, balanceKey(addr, token), b)
}

// Deposit credits free balance (bridge or genesis mint).
func (l *Ledger) Deposit(addr common.Address, token Token, amount uint64) error {
	if amount == 0 {
		return nil
	}
	b, err := l.Balance(addr, token)
	if err != nil {
		return err
	}
	free, carry := bits.Add64(b.Free, amount, 0)
	if carry != 0 || b.Reserved > ^uint64(0)-free {
		return fmt.Errorf("%w: deposit %d to %s/%s", ErrBalanceOverflow, amount, addr.Hex(), token)
	}
	b.Free = free
	return l.save(addr, token, b)
}

// Withdraw debits free balance.
func (l *Ledger) Withdraw(addr common.Address, token Token, amount uint64) error {
	if amount == 0 {
		return nil
	}
	b, err := l.Balance(addr, token)
	if err != nil {
		return err
	}
	if b.Free < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, b.Free, amount)
	}
	b.Free -= amount
	return l.save(addr, token, b)
}

// Reserve locks free balance against an order.
func (l *Ledger) Reserve(addr common.Address, token Token, amount uint64) error {
	if amount == 0 {
		return nil
	}
	b, err := l.Balance(addr, token)
	if err != nil {
		return err
	}
	if b.Free < amount {
		return fmt.Errorf("%w to reserve: have %d, need %d", ErrInsufficientBalance, b.Free, amount)
	}
	b.Free -= amount
	b.Reserved += amount
	return l.save(addr, token, b)
}

// Unreserve releases reserved balance back to free.
func (l *Ledger) Unreserve(addr common.Address, token Token, amount uint64) error {
	if amount == 0 {
		return nil
	}
	b, err := l.Balance(addr, token)
	if err != nil {
		return err
	}
	if b.Reserved < amount {
		return fmt.Errorf("%w: reserved=%d, unreserve=%d", ErrInsufficientReserved, b.Reserved, amount)
	}
	b.Reserved -= amount
	b.Free += amount
	return l.save(addr, token, b)
}

// Move transfers free balance between accounts.
func (l *Ledger) Move(token Token, from, to common.Address, amount uint64) error {
	if amount == 0 || from == to {
		return nil
	}
	src, err := l.Balance(from, token)
	if err != nil {
		return err
	}
	if src.Free < amount {
		return fmt.Errorf("%w to move %s: have %d, need %d", ErrInsufficientBalance, token, src.Free, amount)
	}
	dst, err := l.Balance(to, token)
	if err != nil {
		return err
	}
	if dst.Total() > ^uint64(0)-amount {
		return fmt.Errorf("%w: move %d %s to %s", ErrBalanceOverflow, amount, token, to.Hex())
	}
	src.Free -= amount
	dst.Free += amount
	if err := l.save(from, token, src); err != nil {
		return err
	}
	return l.save(to, token, dst)
}

package spot

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/uhyunpark/hyperspot/pkg/app/core/assets"
)

// Share of a dispatched fee that goes to the order's channel; the rest is burned.
const channelSharePercent = 20

// discountTiers maps native holdings (in whole native units, inclusive
// upper bound) to the percentage of the gross fee that is charged.
var discountTiers = []struct {
	limit   uint64
	percent uint64
}{
	{10_000, 70},
	{100_000, 60},
	{1_000_000, 50},
	{10_000_000, 30},
	{100_000_000, 20},
}

const minFeePercent = 10

// FeePercent returns the percentage of a gross fee charged to an account
// holding balance base units of the native token. Zero holdings get no
// discount.
func FeePercent(balance uint64, nativePrecision uint32) uint64 {
	if balance == 0 {
		return 100
	}
	unit, err := pow10(nativePrecision)
	if err != nil {
		return 100
	}
	b := uint256.NewInt(balance)
	for _, tier := range discountTiers {
		limit := new(uint256.Int).Mul(uint256.NewInt(unit), uint256.NewInt(tier.limit))
		if b.Cmp(limit) <= 0 {
			return tier.percent
		}
	}
	return minFeePercent
}

// DiscountedFee applies the holder's tier to fee, rounding down.
func DiscountedFee(balance, fee uint64, nativePrecision uint32) (uint64, error) {
	return mulDiv(fee, FeePercent(balance, nativePrecision), 100)
}

func (tx *txn) discountFor(account common.Address, fee uint64) (uint64, error) {
	native := tx.e.assets.Native()
	precision, err := tx.e.assets.Precision(native)
	if err != nil {
		return 0, err
	}
	balance, err := tx.Ledger.FreeBalance(account, native)
	if err != nil {
		return 0, err
	}
	return DiscountedFee(balance, fee, precision)
}

// dispatchFee pays amount of the native token from payer: the channel
// share to the channel's account (the burn account when the channel is
// unknown), the rest to the burn account. Zero shares are skipped.
func (tx *txn) dispatchFee(payer common.Address, amount uint64, channelName string) error {
	if amount == 0 {
		return nil
	}
	native := tx.e.assets.Native()
	burn := tx.e.accounts.Burn

	channelShare, err := mulDiv(amount, channelSharePercent, 100)
	if err != nil {
		return err
	}
	burnShare := amount - channelShare

	if burnShare > 0 {
		if err := tx.Ledger.Move(native, payer, burn, burnShare); err != nil {
			return fmt.Errorf("burn fee: %w", err)
		}
	}
	if channelShare > 0 {
		to, err := tx.Channels.Resolve(channelName, burn)
		if err != nil {
			return err
		}
		if err := tx.Ledger.Move(native, payer, to, channelShare); err != nil {
			return fmt.Errorf("channel fee: %w", err)
		}
	}
	return nil
}

// settleLeg releases value of token reserved by from and delivers it to to,
// charging to's fee on the way. It returns what was charged.
//
// The fee is charged in the native token whenever possible (discounted by
// to's native holdings). A fee in another token that cannot be covered in
// native is taken in the token itself, parked with the system account and
// queued for conversion.
func (tx *txn) settleLeg(token assets.Token, value, fee uint64, from, to common.Address, channelName string) (FeeCharge, error) {
	if fee > value {
		return FeeCharge{}, fmt.Errorf("%w: fee %d, value %d", ErrFeeExceedsAmount, fee, value)
	}
	if err := tx.Ledger.Unreserve(from, token, value); err != nil {
		return FeeCharge{}, fmt.Errorf("release %s: %w", token, err)
	}

	native := tx.e.assets.Native()
	system := tx.e.accounts.System

	switch {
	case to == system && token == native:
		// Proceeds of a fee-buy order: all of it is dispatched.
		return FeeCharge{}, tx.dispatchFee(from, value, channelName)

	case from == system:
		return FeeCharge{}, tx.Ledger.Move(token, from, to, value)

	case token == native:
		charged, err := tx.discountFor(to, fee)
		if err != nil {
			return FeeCharge{}, err
		}
		if err := tx.Ledger.Move(token, from, to, value-charged); err != nil {
			return FeeCharge{}, err
		}
		if err := tx.dispatchFee(from, charged, channelName); err != nil {
			return FeeCharge{}, err
		}
		return FeeCharge{Token: native, Amount: charged}, nil
	}

	refPrice, err := tx.Prices.NativePrice(token)
	if err != nil {
		return FeeCharge{}, err
	}
	if refPrice > 0 {
		nativePrecision, err := tx.e.assets.Precision(native)
		if err != nil {
			return FeeCharge{}, err
		}
		unit, err := pow10(nativePrecision)
		if err != nil {
			return FeeCharge{}, err
		}
		converted, err := mulDiv(fee, unit, refPrice)
		if err != nil {
			return FeeCharge{}, err
		}
		charged, err := tx.discountFor(to, converted)
		if err != nil {
			return FeeCharge{}, err
		}
		held, err := tx.Ledger.FreeBalance(to, native)
		if err != nil {
			return FeeCharge{}, err
		}
		if held >= charged {
			if err := tx.Ledger.Move(token, from, to, value); err != nil {
				return FeeCharge{}, err
			}
			if err := tx.dispatchFee(to, charged, channelName); err != nil {
				return FeeCharge{}, err
			}
			return FeeCharge{Token: native, Amount: charged}, nil
		}
	}

	if err := tx.Ledger.Move(token, from, to, value-fee); err != nil {
		return FeeCharge{}, err
	}
	if err := tx.Ledger.Move(token, from, system, fee); err != nil {
		return FeeCharge{}, err
	}
	if err := tx.queueFeeBuy(token, fee, channelName); err != nil {
		return FeeCharge{}, err
	}
	return FeeCharge{Token: token, Amount: fee}, nil
}

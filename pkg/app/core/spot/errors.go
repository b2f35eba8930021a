package spot

import (
	"errors"

	"github.com/uhyunpark/hyperspot/pkg/app/core/assets"
	"github.com/uhyunpark/hyperspot/pkg/app/core/channel"
	"github.com/uhyunpark/hyperspot/pkg/app/core/market"
)

// Input validation.
var (
	ErrUnknownPair    = market.ErrUnknownPair
	ErrUnknownAsset   = assets.ErrUnknownAsset
	ErrZeroAmount     = errors.New("amount must be positive")
	ErrZeroPrice      = errors.New("price must be positive")
	ErrChannelTooLong = channel.ErrNameTooLong
	ErrAmountTooSmall = errors.New("amount*price too small")
)

// Authorization.
var ErrNotOwner = errors.New("order not owned by caller")

// Resources.
var (
	ErrInsufficientBalance = assets.ErrInsufficientBalance
	ErrReserveUnderflow    = errors.New("order reserve underflow")
	ErrOverflow            = errors.New("arithmetic overflow")
)

// Matcher or caller contract violations.
var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrAlreadyTerminal  = errors.New("order already terminal")
	ErrOverFill         = errors.New("fill exceeds order amount")
	ErrSameOrder        = errors.New("maker and taker are the same order")
	ErrSideMismatch     = errors.New("maker and taker on the same side")
	ErrFeeExceedsAmount = errors.New("fee exceeds settled amount")
	ErrCommandNotFound  = errors.New("command not found")
)

var reasons = []struct {
	err  error
	name string
}{
	{ErrUnknownPair, "unknown_pair"},
	{ErrUnknownAsset, "unknown_asset"},
	{ErrZeroAmount, "zero_amount"},
	{ErrZeroPrice, "zero_price"},
	{ErrChannelTooLong, "channel_too_long"},
	{ErrAmountTooSmall, "amount_too_small"},
	{ErrNotOwner, "not_owner"},
	{ErrInsufficientBalance, "insufficient_balance"},
	{ErrReserveUnderflow, "reserve_underflow"},
	{ErrOverflow, "overflow"},
	{ErrOrderNotFound, "order_not_found"},
	{ErrAlreadyTerminal, "already_terminal"},
	{ErrOverFill, "over_fill"},
	{ErrSameOrder, "same_order"},
	{ErrSideMismatch, "side_mismatch"},
	{ErrFeeExceedsAmount, "fee_exceeds_amount"},
	{ErrCommandNotFound, "command_not_found"},
}

// Reason returns a short label for err, used in metrics and tx results.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.name
		}
	}
	return "internal"
}

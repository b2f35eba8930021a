package spot

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperspot/pkg/app/core/assets"
	"github.com/uhyunpark/hyperspot/pkg/app/core/market"
)

type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

func ParseSide(s string) (Side, error) {
	switch strings.ToLower(s) {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	}
	return 0, fmt.Errorf("invalid side %q", s)
}

func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Status is the fill state of an order. It only moves forward:
// FillNone → FillPart → FillAll, and FillNone/FillPart → a cancelled state.
type Status uint8

const (
	FillNone Status = iota
	FillPart
	FillAll
	Cancelled
	FillPartAndCancelled
)

var statusNames = [...]string{"fill_none", "fill_part", "fill_all", "cancelled", "fill_part_and_cancelled"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	for i, n := range statusNames {
		if n == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("invalid order status %q", b)
}

// Terminal reports whether the order can no longer be filled or cancelled.
func (s Status) Terminal() bool {
	return s == FillAll || s == Cancelled || s == FillPartAndCancelled
}

// OrderID addresses an order: the owner, the pair and the owner's
// per-pair sequence number.
type OrderID struct {
	Account common.Address `json:"account"`
	Pair    market.Pair    `json:"pair"`
	Seq     uint64         `json:"seq"`
}

func (id OrderID) String() string {
	return fmt.Sprintf("%s/%s/%d", id.Account.Hex(), id.Pair, id.Seq)
}

type Order struct {
	Account           common.Address `json:"account"`
	Pair              market.Pair    `json:"pair"`
	Seq               uint64         `json:"seq"`
	Side              Side           `json:"side"`
	Amount            uint64         `json:"amount"` // quantity of Pair.First
	Price             uint64         `json:"price"`  // Pair.Second per unit of Pair.First
	Channel           string         `json:"channel,omitempty"`
	FilledAmount      uint64         `json:"filled_amount"`
	ReservedRemaining uint64         `json:"reserved_remaining"`
	Status            Status         `json:"status"`
	FillHistory       []uint64       `json:"fill_history,omitempty"`
	CreatedAt         uint64         `json:"created_at"`
	UpdatedAt         uint64         `json:"updated_at"`
}

func (o *Order) ID() OrderID {
	return OrderID{Account: o.Account, Pair: o.Pair, Seq: o.Seq}
}

// Remaining is the unfilled quantity.
func (o *Order) Remaining() uint64 { return o.Amount - o.FilledAmount }

// ReserveToken is the asset locked by the order: Second for buys, First for sells.
func (o *Order) ReserveToken() assets.Token {
	if o.Side == Buy {
		return o.Pair.Second
	}
	return o.Pair.First
}

func (o *Order) clone() *Order {
	c := *o
	c.FillHistory = append([]uint64(nil), o.FillHistory...)
	return &c
}

// FeeCharge is what one side of a fill actually paid.
type FeeCharge struct {
	Token  assets.Token `json:"token,omitempty"`
	Amount uint64       `json:"amount"`
}

type Fill struct {
	Pair     market.Pair    `json:"pair"`
	Index    uint64         `json:"index"`
	Maker    common.Address `json:"maker"`
	MakerSeq uint64         `json:"maker_seq"`
	Taker    common.Address `json:"taker"`
	TakerSeq uint64         `json:"taker_seq"`
	Price    uint64         `json:"price"`
	Amount   uint64         `json:"amount"`
	MakerFee FeeCharge      `json:"maker_fee"`
	TakerFee FeeCharge      `json:"taker_fee"`
	Height   uint64         `json:"height"`
}

type CommandKind uint8

const (
	CommandMatch CommandKind = iota
	CommandCancel
)

func (k CommandKind) String() string {
	if k == CommandCancel {
		return "cancel"
	}
	return "match"
}

func (k CommandKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *CommandKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "match":
		*k = CommandMatch
	case "cancel":
		*k = CommandCancel
	default:
		return fmt.Errorf("invalid command kind %q", b)
	}
	return nil
}

// Command asks the matcher to act on an order.
type Command struct {
	ID      uint64         `json:"id"`
	Account common.Address `json:"account"`
	Pair    market.Pair    `json:"pair"`
	Seq     uint64         `json:"seq"`
	Kind    CommandKind    `json:"kind"`
	Payload []byte         `json:"payload,omitempty"`
}

// FeeBuyTicket is a fee collected in a non-native token, waiting to be
// converted into the native token at the end of the block.
type FeeBuyTicket struct {
	ID      uint64      `json:"id"`
	Pair    market.Pair `json:"pair"`   // (native, fee token)
	Amount  uint64      `json:"amount"` // fee collected, in Pair.Second units
	Price   uint64      `json:"price"`  // last price when queued, 0 if none
	Channel string      `json:"channel,omitempty"`
}

type PriceState struct {
	Last    uint64 `json:"last"`
	Average uint64 `json:"average"`
}

type Config struct {
	OrderFee           uint64 `json:"order_fee"`
	AveragePriceWindow uint64 `json:"average_price_window"`
}

// FillRequest is the matcher's settlement call. Fees are quoted in units of
// Pair.First; the side receiving Pair.Second pays its fee converted at Price.
type FillRequest struct {
	Pair     market.Pair    `json:"pair"`
	Maker    common.Address `json:"maker"`
	MakerSeq uint64         `json:"maker_seq"`
	Taker    common.Address `json:"taker"`
	TakerSeq uint64         `json:"taker_seq"`
	Price    uint64         `json:"price"`
	Amount   uint64         `json:"amount"`
	MakerFee uint64         `json:"maker_fee"`
	TakerFee uint64         `json:"taker_fee"`
}

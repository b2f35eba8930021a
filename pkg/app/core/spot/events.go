package spot

import "github.com/uhyunpark/hyperspot/pkg/app/core/market"

type EventKind string

const (
	EventOrderPlaced    EventKind = "order_placed"
	EventOrderUpdated   EventKind = "order_updated"
	EventOrderCancelled EventKind = "order_cancelled"
	EventFillRecorded   EventKind = "fill_recorded"
	EventFeeBuyQueued   EventKind = "fee_buy_queued"
	EventFeeUpdated     EventKind = "fee_updated"
	EventWindowUpdated  EventKind = "window_updated"
	EventPairAdded      EventKind = "pair_added"
)

// Event is emitted for every committed state change, in commit order.
type Event struct {
	Kind   EventKind     `json:"kind"`
	Height uint64        `json:"height"`
	Pair   *market.Pair  `json:"pair,omitempty"`
	Order  *Order        `json:"order,omitempty"`
	Fill   *Fill         `json:"fill,omitempty"`
	Ticket *FeeBuyTicket `json:"ticket,omitempty"`
	Value  uint64        `json:"value,omitempty"`
}

// EventSink receives the events of each committed operation. Publish is
// called while the engine is locked and must not call back into it.
type EventSink interface {
	Publish(events []Event)
}

type EventSinkFunc func(events []Event)

func (f EventSinkFunc) Publish(events []Event) { f(events) }

func orderEvent(kind EventKind, o *Order) Event {
	p := o.Pair
	return Event{Kind: kind, Pair: &p, Order: o.clone()}
}

package spot

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	OrdersPlaced    *prometheus.CounterVec
	OrdersCancelled *prometheus.CounterVec
	FillsRecorded   *prometheus.CounterVec
	FilledVolume    *prometheus.CounterVec
	FeeBuyTickets   *prometheus.CounterVec
	Rejections      *prometheus.CounterVec
}

func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersPlaced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spot_orders_placed_total",
				Help: "Orders accepted by the lifecycle manager.",
			},
			[]string{"pair", "side"},
		),
		OrdersCancelled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spot_orders_cancelled_total",
				Help: "Orders cancelled by their owner.",
			},
			[]string{"pair"},
		),
		FillsRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spot_fills_total",
				Help: "Fills settled.",
			},
			[]string{"pair"},
		),
		FilledVolume: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spot_filled_amount_total",
				Help: "Settled quantity of the first token, in base units.",
			},
			[]string{"pair"},
		),
		FeeBuyTickets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spot_fee_buy_tickets_total",
				Help: "Fee-buy tickets by outcome (queued, placed, dropped).",
			},
			[]string{"outcome"},
		),
		Rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spot_rejected_operations_total",
				Help: "Operations rejected with an error.",
			},
			[]string{"op", "reason"},
		),
	}

	registry.MustRegister(m.OrdersPlaced, m.OrdersCancelled, m.FillsRecorded, m.FilledVolume, m.FeeBuyTickets, m.Rejections)
	return m
}

func (m *Metrics) ObserveOrderPlaced(pair, side string) {
	if m == nil {
		return
	}
	m.OrdersPlaced.WithLabelValues(pair, side).Inc()
}

func (m *Metrics) ObserveOrderCancelled(pair string) {
	if m == nil {
		return
	}
	m.OrdersCancelled.WithLabelValues(pair).Inc()
}

func (m *Metrics) ObserveFill(pair string, amount uint64) {
	if m == nil {
		return
	}
	m.FillsRecorded.WithLabelValues(pair).Inc()
	m.FilledVolume.WithLabelValues(pair).Add(float64(amount))
}

func (m *Metrics) ObserveFeeBuy(outcome string) {
	if m == nil {
		return
	}
	m.FeeBuyTickets.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRejection(op string, err error) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(op, Reason(err)).Inc()
}

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type MarketMetrics struct {
	listingsStaked   prometheus.Counter
	bidsAccepted     *prometheus.CounterVec
	listingsClaimed  *prometheus.CounterVec
	listingsRejected prometheus.Counter
	bountiesFunded   *prometheus.CounterVec
	submissions      *prometheus.CounterVec
	feesWithdrawn    *prometheus.CounterVec
}

var (
	marketOnce     sync.Once
	marketRegistry *MarketMetrics
)

func Market() *MarketMetrics {
	marketOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			listingsStaked: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_listings_staked_total",
				Help: "Count of listings staked into the auction engine.",
			}),
			bidsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_bids_accepted_total",
				Help: "Count of accepted bids by kind.",
			}, []string{"kind"}),
			listingsClaimed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_listings_claimed_total",
				Help: "Count of claimed listings by settlement mode.",
			}, []string{"mode"}),
			listingsRejected: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_listings_rejected_total",
				Help: "Count of listings rejected by an approver.",
			}),
			bountiesFunded: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_bounties_funded_total",
				Help: "Count of funded bounties by engine version.",
			}, []string{"engine"}),
			submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_submissions_total",
				Help: "Count of bounty submissions by outcome.",
			}, []string{"outcome"}),
			feesWithdrawn: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_fees_withdrawn_total",
				Help: "Count of fee withdrawals by engine.",
			}, []string{"engine"}),
		}
		prometheus.MustRegister(
			marketRegistry.listingsStaked,
			marketRegistry.bidsAccepted,
			marketRegistry.listingsClaimed,
			marketRegistry.listingsRejected,
			marketRegistry.bountiesFunded,
			marketRegistry.submissions,
			marketRegistry.feesWithdrawn,
		)
	})
	return marketRegistry
}

func (m *MarketMetrics) ObserveListingStaked() {
	if m == nil {
		return
	}
	m.listingsStaked.Inc()
}

func (m *MarketMetrics) ObserveBidAccepted(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.bidsAccepted.WithLabelValues(kind).Inc()
}

func (m *MarketMetrics) ObserveListingClaimed(mode string) {
	if m == nil {
		return
	}
	if mode == "" {
		mode = "unknown"
	}
	m.listingsClaimed.WithLabelValues(mode).Inc()
}

func (m *MarketMetrics) ObserveListingRejected() {
	if m == nil {
		return
	}
	m.listingsRejected.Inc()
}

func (m *MarketMetrics) ObserveBountyFunded(engine string) {
	if m == nil {
		return
	}
	m.bountiesFunded.WithLabelValues(engine).Inc()
}

func (m *MarketMetrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *MarketMetrics) ObserveFeesWithdrawn(engine string) {
	if m == nil {
		return
	}
	m.feesWithdrawn.WithLabelValues(engine).Inc()
}

package resource

import (
	"sync/atomic"
	"time"
)

// Observer receives hooks for every phase transition. Implementations can
// collect metrics or log; they are called with the store lock released.
type Observer interface {
	// OnPending is called when an operation starts.
	OnPending(resource string, category Category, seq uint64)

	// OnFulfilled is called when an operation settles successfully.
	OnFulfilled(resource string, category Category, duration time.Duration)

	// OnRejected is called when an operation settles with an error.
	OnRejected(resource string, category Category, errMsg string, duration time.Duration)

	// OnSuperseded is called when a response of a superseded request still
	// applied its collection change. The status belongs to the newer request.
	OnSuperseded(resource string, category Category, seq uint64)

	// OnDiscarded is called when a response was dropped entirely.
	OnDiscarded(resource string, category Category, seq uint64)

	// OnReset is called after a resource is wiped.
	OnReset(resource string)
}

// NoopObserver is a no-op implementation of Observer.
type NoopObserver struct{}

func (NoopObserver) OnPending(string, Category, uint64)                 {}
func (NoopObserver) OnFulfilled(string, Category, time.Duration)        {}
func (NoopObserver) OnRejected(string, Category, string, time.Duration) {}
func (NoopObserver) OnSuperseded(string, Category, uint64)              {}
func (NoopObserver) OnDiscarded(string, Category, uint64)               {}
func (NoopObserver) OnReset(string)                                     {}

// MetricsObserver counts transitions with atomic counters.
type MetricsObserver struct {
	pending        atomic.Int64
	fulfilled      atomic.Int64
	rejected       atomic.Int64
	superseded     atomic.Int64
	discarded      atomic.Int64
	resets         atomic.Int64
	totalLatencyNs atomic.Int64
}

// NewMetricsObserver creates a new thread-safe metrics observer.
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

func (m *MetricsObserver) OnPending(string, Category, uint64) {
	m.pending.Add(1)
}

func (m *MetricsObserver) OnFulfilled(_ string, _ Category, d time.Duration) {
	m.fulfilled.Add(1)
	m.totalLatencyNs.Add(int64(d))
}

func (m *MetricsObserver) OnRejected(_ string, _ Category, _ string, d time.Duration) {
	m.rejected.Add(1)
	m.totalLatencyNs.Add(int64(d))
}

func (m *MetricsObserver) OnSuperseded(string, Category, uint64) {
	m.superseded.Add(1)
}

func (m *MetricsObserver) OnDiscarded(string, Category, uint64) {
	m.discarded.Add(1)
}

func (m *MetricsObserver) OnReset(string) {
	m.resets.Add(1)
}

// Snapshot returns a point-in-time copy of the counters.
func (m *MetricsObserver) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Pending:      m.pending.Load(),
		Fulfilled:    m.fulfilled.Load(),
		Rejected:     m.rejected.Load(),
		Superseded:   m.superseded.Load(),
		Discarded:    m.discarded.Load(),
		Resets:       m.resets.Load(),
		TotalLatency: time.Duration(m.totalLatencyNs.Load()),
	}
}

// MetricsSnapshot is a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	Pending      int64         `json:"pending"`
	Fulfilled    int64         `json:"fulfilled"`
	Rejected     int64         `json:"rejected"`
	Superseded   int64         `json:"superseded"`
	Discarded    int64         `json:"discarded"`
	Resets       int64         `json:"resets"`
	TotalLatency time.Duration `json:"totalLatencyNs"`
}

// InFlight returns the number of operations that have not settled.
func (s MetricsSnapshot) InFlight() int64 {
	return s.Pending - s.Fulfilled - s.Rejected - s.Superseded - s.Discarded
}

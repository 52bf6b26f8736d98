package pipeline

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// RateMeter tracks persisted-record throughput and logs a per-minute rate
// with an extrapolated daily volume on a throttled cadence.
type RateMeter struct {
	mu         sync.Mutex
	start      time.Time
	lastReport time.Time
	count      int64
	interval   time.Duration
	log        *zap.Logger
}

// NewRateMeter creates a rate meter that reports at most once per interval.
func NewRateMeter(interval time.Duration, log *zap.Logger) *RateMeter {
	return &RateMeter{
		interval: interval,
		log:      log,
	}
}

// Record adds n records to the running count and reports if the cadence
// allows.
func (m *RateMeter) Record(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if m.start.IsZero() {
		m.start = now
		m.lastReport = now
	}
	m.count += int64(n)

	if now.Sub(m.lastReport) < m.interval {
		return
	}
	m.lastReport = now

	elapsed := now.Sub(m.start).Minutes()
	if elapsed <= 0 {
		return
	}
	perMinute := float64(m.count) / elapsed
	m.log.Info("Throughput",
		zap.Float64("records_per_minute", perMinute),
		zap.Int64("estimated_daily", int64(perMinute*60*24)))
}

// Count returns the number of records seen.
func (m *RateMeter) Count() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Summary logs the final rate.
func (m *RateMeter) Summary() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.start.IsZero() {
		return
	}
	elapsed := time.Since(m.start).Minutes()
	if elapsed <= 0 {
		return
	}
	perMinute := float64(m.count) / elapsed
	m.log.Info("Final throughput",
		zap.Float64("records_per_minute", perMinute),
		zap.Int64("estimated_daily", int64(perMinute*60*24)),
		zap.Int64("total_records", m.count))
}

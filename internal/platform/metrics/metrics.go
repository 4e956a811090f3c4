package metrics

import (
	"sync/atomic"
	"time"
)

type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64

	batchesStarted  uint64
	batchesFinished uint64
	payslipsSent    uint64
	payslipsFailed  uint64
	payslipsSkipped uint64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

func (c *Collector) BatchStarted() {
	atomic.AddUint64(&c.batchesStarted, 1)
}

// BatchFinished adds one batch's outcome counts.
func (c *Collector) BatchFinished(sent, failed, skipped int) {
	atomic.AddUint64(&c.batchesFinished, 1)
	atomic.AddUint64(&c.payslipsSent, uint64(sent))
	atomic.AddUint64(&c.payslipsFailed, uint64(failed))
	atomic.AddUint64(&c.payslipsSkipped, uint64(skipped))
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}
	return map[string]any{
		"requestsTotal":        total,
		"errorsTotal":          atomic.LoadUint64(&c.errorRequests),
		"rateLimitedTotal":     atomic.LoadUint64(&c.rateLimited),
		"avgDurationMs":        avg,
		"totalDurationMs":      totalMs,
		"batchesStartedTotal":  atomic.LoadUint64(&c.batchesStarted),
		"batchesFinishedTotal": atomic.LoadUint64(&c.batchesFinished),
		"payslipsSentTotal":    atomic.LoadUint64(&c.payslipsSent),
		"payslipsFailedTotal":  atomic.LoadUint64(&c.payslipsFailed),
		"payslipsSkippedTotal": atomic.LoadUint64(&c.payslipsSkipped),
	}
}

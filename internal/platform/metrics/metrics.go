package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64

	mu        sync.Mutex
	lifecycle map[string]*uint64
}

func New() *Collector {
	return &Collector{lifecycle: map[string]*uint64{}}
}

func (c *Collector) Record(status int, duration time.Duration) {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// Lifecycle counts a request lifecycle event such as "approved".
func (c *Collector) Lifecycle(event string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	counter, ok := c.lifecycle[event]
	if !ok {
		counter = new(uint64)
		c.lifecycle[event] = counter
	}
	c.mu.Unlock()
	atomic.AddUint64(counter, 1)
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	limited := atomic.LoadUint64(&c.rateLimited)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}

	lifecycle := map[string]uint64{}
	c.mu.Lock()
	for event, counter := range c.lifecycle {
		lifecycle[event] = atomic.LoadUint64(counter)
	}
	c.mu.Unlock()

	return map[string]any{
		"requestsTotal":    total,
		"errorsTotal":      errs,
		"rateLimitedTotal": limited,
		"avgDurationMs":    avg,
		"totalDurationMs":  totalMs,
		"lifecycle":        lifecycle,
	}
}

// Package metrics exposes pipeline counters in Prometheus text exposition
// format without pulling in client_golang.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Collector aggregates the pipeline's counters and latency histogram.
type Collector struct {
	mu        sync.Mutex
	counters  map[string]*counter
	order     []string
	latency   *histogram
	startTime time.Time
}

type counter struct {
	help  string
	value atomic.Int64
}

type histogram struct {
	name    string
	help    string
	mu      sync.Mutex
	count   int64
	sum     float64
	bounds  []float64
	buckets []int64
}

func NewCollector() *Collector {
	c := &Collector{
		counters:  make(map[string]*counter),
		startTime: time.Now(),
	}
	bounds := []float64{0.5, 1, 2, 5, 10, 30, 60}
	sort.Float64s(bounds)
	c.latency = &histogram{
		name:    "personabot_generation_latency_seconds",
		help:    "Completion call latency in seconds",
		bounds:  bounds,
		buckets: make([]int64, len(bounds)),
	}
	return c
}

// Inc increments the named counter, registering it on first use.
func (c *Collector) Inc(name, help string) {
	c.counter(name, help).value.Add(1)
}

func (c *Collector) counter(name, help string) *counter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctr, ok := c.counters[name]; ok {
		return ctr
	}
	ctr := &counter{help: help}
	c.counters[name] = ctr
	c.order = append(c.order, name)
	return ctr
}

// Value returns the current value of a counter, zero if never incremented.
func (c *Collector) Value(name string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctr, ok := c.counters[name]; ok {
		return ctr.value.Load()
	}
	return 0
}

// ObserveLatency records one completion-call duration.
func (c *Collector) ObserveLatency(d time.Duration) {
	v := d.Seconds()
	h := c.latency
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, le := range h.bounds {
		if v <= le {
			h.buckets[i]++
		}
	}
}

// Handler renders the metrics in Prometheus text format.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		fmt.Fprintf(w, "# HELP personabot_uptime_seconds Time since start in seconds\n")
		fmt.Fprintf(w, "# TYPE personabot_uptime_seconds gauge\n")
		fmt.Fprintf(w, "personabot_uptime_seconds %d\n", int64(time.Since(c.startTime).Seconds()))

		c.mu.Lock()
		names := make([]string, len(c.order))
		copy(names, c.order)
		c.mu.Unlock()

		for _, name := range names {
			c.mu.Lock()
			ctr := c.counters[name]
			c.mu.Unlock()
			fmt.Fprintf(w, "# HELP %s %s\n", name, ctr.help)
			fmt.Fprintf(w, "# TYPE %s counter\n", name)
			fmt.Fprintf(w, "%s %d\n", name, ctr.value.Load())
		}

		h := c.latency
		h.mu.Lock()
		defer h.mu.Unlock()
		fmt.Fprintf(w, "# HELP %s %s\n", h.name, h.help)
		fmt.Fprintf(w, "# TYPE %s histogram\n", h.name)
		for i, le := range h.bounds {
			fmt.Fprintf(w, "%s_bucket{le=\"%g\"} %d\n", h.name, le, h.buckets[i])
		}
		fmt.Fprintf(w, "%s_bucket{le=\"+Inf\"} %d\n", h.name, h.count)
		fmt.Fprintf(w, "%s_count %d\n", h.name, h.count)
		fmt.Fprintf(w, "%s_sum %f\n", h.name, h.sum)
	}
}

// Metric names used across the pipeline.
const (
	EventsTotal         = "personabot_events_total"
	DedupRejectsTotal   = "personabot_dedup_rejects_total"
	BotRejectsTotal     = "personabot_bot_rejects_total"
	TriggersTotal       = "personabot_triggers_total"
	GenerationsTotal    = "personabot_generations_total"
	GenerationFailures  = "personabot_generation_failures_total"
	PostsTotal          = "personabot_posts_total"
	PostFailuresTotal   = "personabot_post_failures_total"
)

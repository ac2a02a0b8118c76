// Package progress reports crawl counters to the terminal.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

// Reporter consumes named counters. One counter per year plus one global
// counter are declared during a crawl.
type Reporter interface {
	// DeclareCounter creates or resets a counter with the expected total
	DeclareCounter(label string, total int)

	// Increment advances a counter; unknown labels are ignored
	Increment(label string, delta int)

	// Count returns the current value of a counter
	Count(label string) int

	// Close finishes every open counter
	Close()
}

type counter struct {
	total int
	count int
	bar   *progressbar.ProgressBar
}

// BarReporter renders each counter as a progress bar
type BarReporter struct {
	mu       sync.Mutex
	out      io.Writer
	visible  bool
	counters map[string]*counter
}

// NewBarReporter creates a reporter writing to out. With visible false the
// counters are still tracked but nothing is drawn (JSON logs, quiet mode).
func NewBarReporter(out io.Writer, visible bool) *BarReporter {
	return &BarReporter{
		out:      out,
		visible:  visible,
		counters: make(map[string]*counter),
	}
}

func (r *BarReporter) DeclareCounter(label string, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.counters[label]; ok && old.bar != nil {
		_ = old.bar.Finish()
	}

	c := &counter{total: total}
	if r.visible {
		c.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(r.out),
			progressbar.OptionSetDescription(label),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(r.out) }),
		)
	}
	r.counters[label] = c
}

func (r *BarReporter) Increment(label string, delta int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.counters[label]
	if !ok {
		log.Debug().Str("counter", label).Msg("Increment on undeclared counter")
		return
	}
	c.count += delta
	if c.bar != nil {
		_ = c.bar.Add(delta)
	}
}

func (r *BarReporter) Count(label string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[label]; ok {
		return c.count
	}
	return 0
}

func (r *BarReporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for label, c := range r.counters {
		if c.bar != nil && !c.bar.IsFinished() {
			_ = c.bar.Finish()
		}
		log.Debug().Str("counter", label).Int("count", c.count).Int("total", c.total).Msg("Counter closed")
	}
}

// Recorder keeps counters in memory without drawing anything
type Recorder struct {
	mu     sync.Mutex
	totals map[string]int
	counts map[string]int
	order  []string
	closed bool
}

// NewRecorder creates an empty Recorder
func NewRecorder() *Recorder {
	return &Recorder{
		totals: make(map[string]int),
		counts: make(map[string]int),
	}
}

func (r *Recorder) DeclareCounter(label string, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.totals[label]; !ok {
		r.order = append(r.order, label)
	}
	r.totals[label] = total
	r.counts[label] = 0
}

func (r *Recorder) Increment(label string, delta int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.totals[label]; ok {
		r.counts[label] += delta
	}
}

func (r *Recorder) Count(label string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[label]
}

// Total returns the declared total of a counter
func (r *Recorder) Total(label string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totals[label]
}

// Labels returns declared labels in declaration order
func (r *Recorder) Labels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

// Closed reports whether Close was called
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

package core

import (
	"sync"

	"github.com/DonovanMods/flowupdater/internal/domain"

	"github.com/charmbracelet/log"
)

// ProgressTracker aggregates per-file completions into ProgressCallback updates.
// It is safe for concurrent use by download workers.
type ProgressTracker struct {
	mu         sync.Mutex
	callback   domain.ProgressCallback
	step       domain.Step
	downloaded int
	total      int
}

// NewProgressTracker wraps callback. A nil callback is replaced by domain.NullCallback.
func NewProgressTracker(callback domain.ProgressCallback) *ProgressTracker {
	if callback == nil {
		callback = domain.NullCallback{}
	}
	return &ProgressTracker{callback: callback}
}

// Init notifies the callback that the pipeline is starting
func (p *ProgressTracker) Init() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callback.Init()
}

// Step enters a new stage with a fixed number of units and resets the counter
func (p *ProgressTracker) Step(step domain.Step, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.step = step
	p.downloaded = 0
	p.total = total
	p.callback.Step(step)
}

// Increment records one finished unit and notifies the callback.
// Counting and notifying happen under one lock so updates are delivered in order.
func (p *ProgressTracker) Increment() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.downloaded < p.total {
		p.downloaded++
	}
	p.callback.Update(p.downloaded, p.total)
}

// Counters returns the current stage and its counters
func (p *ProgressTracker) Counters() (step domain.Step, downloaded, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.step, p.downloaded, p.total
}

// LogCallback reports progress through a logger
type LogCallback struct {
	Logger *log.Logger
	// Every limits Update logging to every n-th unit (and the last one). Zero logs all.
	Every int
}

func (c *LogCallback) logger() *log.Logger {
	if c.Logger == nil {
		return log.Default()
	}
	return c.Logger
}

func (c *LogCallback) Init() {
	c.logger().Info("starting update")
}

func (c *LogCallback) Step(step domain.Step) {
	c.logger().Info("step", "name", step.String())
}

func (c *LogCallback) Update(downloaded, total int) {
	if c.Every > 1 && downloaded%c.Every != 0 && downloaded != total {
		return
	}
	c.logger().Debug("progress", "done", downloaded, "total", total)
}

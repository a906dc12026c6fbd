package services

import (
	"sync"
	"time"
)

// clearDelay keeps a finished upload's state visible long enough for the
// client to show its success message before the slot resets.
const clearDelay = 2 * time.Second

// ProgressTracker holds per-upload fractional progress so clients can poll
// it while a single-file upload is in flight.
type ProgressTracker struct {
	mu  sync.Mutex
	pct map[string]float64
}

func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{pct: make(map[string]float64)}
}

// Callback returns an OnProgress function bound to one upload id.
func (t *ProgressTracker) Callback(id string) func(float64) {
	return func(pct float64) {
		t.mu.Lock()
		t.pct[id] = pct
		t.mu.Unlock()
	}
}

// Get reports the latest progress for id.
func (t *ProgressTracker) Get(id string) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pct, ok := t.pct[id]
	return pct, ok
}

// Complete pins the upload at 100 and schedules the slot to clear.
func (t *ProgressTracker) Complete(id string) {
	t.mu.Lock()
	t.pct[id] = 100
	t.mu.Unlock()

	time.AfterFunc(clearDelay, func() {
		t.mu.Lock()
		delete(t.pct, id)
		t.mu.Unlock()
	})
}

// Abandon drops the slot immediately, used when an upload fails.
func (t *ProgressTracker) Abandon(id string) {
	t.mu.Lock()
	delete(t.pct, id)
	t.mu.Unlock()
}

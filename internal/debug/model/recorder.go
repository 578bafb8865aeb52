package model

import "sync"

// Recorder is a Sink that keeps every published batch.
type Recorder struct {
	mu      sync.Mutex
	batches [][]Event
}

// Publish stores a copy of the batch.
func (r *Recorder) Publish(batch []Event) {
	cp := make([]Event, len(batch))
	copy(cp, batch)

	r.mu.Lock()
	r.batches = append(r.batches, cp)
	r.mu.Unlock()
}

// Batches returns the recorded batches in publish order.
func (r *Recorder) Batches() [][]Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([][]Event, len(r.batches))
	copy(out, r.batches)
	return out
}

// Events returns every recorded event flattened in publish order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Event
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

// Last returns the most recent batch, or nil.
func (r *Recorder) Last() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.batches) == 0 {
		return nil
	}
	return r.batches[len(r.batches)-1]
}

// Reset drops all recorded batches.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.batches = nil
	r.mu.Unlock()
}

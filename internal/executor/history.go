package executor

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"screenpilot/internal/action"
)

// Outcome is the result of handing an action to the platform.
type Outcome string

const (
	OutcomeSuccess       Outcome = "success"
	OutcomePlatformError Outcome = "platform_error"
)

// Record is one history entry.
type Record struct {
	ActionID   uuid.UUID         `json:"action_id" yaml:"action_id"`
	Descriptor action.Descriptor `json:"descriptor" yaml:"descriptor"`
	Outcome    Outcome           `json:"outcome" yaml:"outcome"`
	Err        string            `json:"error,omitempty" yaml:"error,omitempty"`
	Timestamp  time.Time         `json:"timestamp" yaml:"timestamp"`
}

// history is a fixed-capacity ring of records; the oldest entry is
// overwritten once it is full.
type history struct {
	mu      sync.Mutex
	records []Record
	next    int
	full    bool
}

func newHistory(capacity int) *history {
	return &history{records: make([]Record, capacity)}
}

func (h *history) add(r Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records[h.next] = r
	h.next = (h.next + 1) % len(h.records)
	if h.next == 0 {
		h.full = true
	}
}

// snapshot returns the records oldest first.
func (h *history) snapshot() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.full {
		return append([]Record(nil), h.records[:h.next]...)
	}
	out := make([]Record, 0, len(h.records))
	out = append(out, h.records[h.next:]...)
	return append(out, h.records[:h.next]...)
}

func (h *history) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.full {
		return len(h.records)
	}
	return h.next
}

func (h *history) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.records)
	h.next = 0
	h.full = false
}

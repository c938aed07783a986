package tracker

import (
	"slices"
	"sync"
)

// DefaultCapacity is 6 hours of history at the default 30 second poll interval.
const DefaultCapacity = 720

// History is a capacity-bounded, oldest-first buffer of poll results.
type History struct {
	mu       sync.Mutex
	records  []HistoryRecord
	capacity int
}

// NewHistory creates an empty buffer. A non-positive capacity means DefaultCapacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{
		records:  make([]HistoryRecord, 0, capacity+1),
		capacity: capacity,
	}
}

// Append adds rec at the tail and evicts from the head down to capacity.
func (h *History) Append(rec HistoryRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = append(h.records, rec)
	if over := len(h.records) - h.capacity; over > 0 {
		n := copy(h.records, h.records[over:])
		clear(h.records[n:])
		h.records = h.records[:n]
	}
}

// Snapshot returns an independent copy of every record, oldest first.
func (h *History) Snapshot() []HistoryRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]HistoryRecord, len(h.records))
	for i, rec := range h.records {
		out[i] = HistoryRecord{
			Timestamp: rec.Timestamp,
			Locations: slices.Clone(rec.Locations),
		}
	}
	return out
}

// Latest returns the most recently appended record.
func (h *History) Latest() (HistoryRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.records) == 0 {
		return HistoryRecord{}, false
	}
	rec := h.records[len(h.records)-1]
	return HistoryRecord{Timestamp: rec.Timestamp, Locations: slices.Clone(rec.Locations)}, true
}

// Len returns the number of records held.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// Capacity returns the maximum number of records held.
func (h *History) Capacity() int {
	return h.capacity
}

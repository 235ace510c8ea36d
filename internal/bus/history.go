package bus

import "sync"

// defaultHistorySize bounds the command history when config leaves it unset.
const defaultHistorySize = 50

// historyRing is a fixed-capacity ring of command records. When full, the
// oldest record is overwritten. All methods are safe for concurrent use.
type historyRing struct {
	mu      sync.Mutex
	records []CommandRecord
	start   int // index of the oldest record
	count   int
}

func newHistoryRing(capacity int) *historyRing {
	if capacity < 1 {
		capacity = defaultHistorySize
	}
	return &historyRing{records: make([]CommandRecord, capacity)}
}

// append adds a record, evicting the oldest when the ring is full.
func (r *historyRing) append(record CommandRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count < len(r.records) {
		r.records[(r.start+r.count)%len(r.records)] = record
		r.count++
		return
	}

	r.records[r.start] = record
	r.start = (r.start + 1) % len(r.records)
}

// snapshot returns the records in insertion order, oldest first.
func (r *historyRing) snapshot() []CommandRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]CommandRecord, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.records[(r.start+i)%len(r.records)])
	}
	return out
}

// size returns the number of records currently held.
func (r *historyRing) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

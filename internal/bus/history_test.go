package bus

import (
	"strconv"
	"testing"
)

func TestHistoryRingOrder(t *testing.T) {
	ring := newHistoryRing(5)
	for i := 0; i < 3; i++ {
		ring.append(CommandRecord{Topic: strconv.Itoa(i)})
	}

	got := ring.snapshot()
	if len(got) != 3 {
		t.Fatalf("snapshot length = %d, want 3", len(got))
	}
	for i, record := range got {
		if record.Topic != strconv.Itoa(i) {
			t.Errorf("snapshot[%d].Topic = %q, want %q", i, record.Topic, strconv.Itoa(i))
		}
	}
}

func TestHistoryRingEvictsOldest(t *testing.T) {
	ring := newHistoryRing(3)
	for i := 0; i < 7; i++ {
		ring.append(CommandRecord{Topic: strconv.Itoa(i)})
	}

	got := ring.snapshot()
	if len(got) != 3 {
		t.Fatalf("snapshot length = %d, want 3", len(got))
	}
	want := []string{"4", "5", "6"}
	for i, record := range got {
		if record.Topic != want[i] {
			t.Errorf("snapshot[%d].Topic = %q, want %q", i, record.Topic, want[i])
		}
	}
}

func TestHistoryRingDefaultCapacity(t *testing.T) {
	ring := newHistoryRing(0)
	for i := 0; i < defaultHistorySize+10; i++ {
		ring.append(CommandRecord{})
	}
	if got := ring.size(); got != defaultHistorySize {
		t.Errorf("size = %d, want %d", got, defaultHistorySize)
	}
}

func TestHistoryRingEmptySnapshot(t *testing.T) {
	ring := newHistoryRing(4)
	if got := ring.snapshot(); len(got) != 0 {
		t.Errorf("snapshot of empty ring = %v, want empty", got)
	}
}

package rerp

import (
	"brainlm/internal/errors"
)

// Event is one occurrence of a discrete condition at a sample.
type Event struct {
	Sample   int // sample index relative to the first retained sample
	Reserved int // always zero in acquisition tables, kept for column parity
	Code     int // condition code
}

// EventTable is an ordered, validated set of events with unique sample indices.
// The zero value is an empty table.
type EventTable struct {
	events []Event
}

// NewEventTable validates events and returns an immutable table.
// Negative sample indices and repeated sample indices are rejected.
func NewEventTable(events []Event) (EventTable, error) {
	seen := make(map[int]int, len(events))
	for i, ev := range events {
		if ev.Sample < 0 {
			return EventTable{}, errors.ShapeMismatchError("event %d has negative sample index %d", i, ev.Sample)
		}
		if prev, ok := seen[ev.Sample]; ok {
			return EventTable{}, errors.DuplicateEventError(
				"events %d and %d share sample index %d", prev, i, ev.Sample)
		}
		seen[ev.Sample] = i
	}

	copied := make([]Event, len(events))
	copy(copied, events)
	return EventTable{events: copied}, nil
}

// Len returns the number of events.
func (t EventTable) Len() int {
	return len(t.events)
}

// At returns the i-th event in table order.
func (t EventTable) At(i int) Event {
	return t.events[i]
}

// Events returns a copy of the events in table order.
func (t EventTable) Events() []Event {
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// MaxSample returns the largest sample index, or -1 for an empty table.
func (t EventTable) MaxSample() int {
	max := -1
	for _, ev := range t.events {
		if ev.Sample > max {
			max = ev.Sample
		}
	}
	return max
}

// Decimate shifts every event by firstSample and integer-divides by factor.
// Events that collapse onto the same decimated sample are a DuplicateEventError.
func (t EventTable) Decimate(factor, firstSample int) (EventTable, error) {
	if factor < 1 {
		return EventTable{}, errors.ConfigurationError("decimation factor must be >= 1, got %d", factor)
	}

	out := make([]Event, len(t.events))
	for i, ev := range t.events {
		shifted := ev.Sample - firstSample
		if shifted < 0 {
			return EventTable{}, errors.ShapeMismatchError(
				"event %d at sample %d precedes first sample %d", i, ev.Sample, firstSample)
		}
		out[i] = Event{Sample: shifted / factor, Reserved: ev.Reserved, Code: ev.Code}
	}

	decimated, err := NewEventTable(out)
	if err != nil {
		if errors.Is(err, errors.CodeDuplicateEvent) {
			return EventTable{}, errors.Wrapf(err,
				"events too closely spaced for decimation factor %d", factor)
		}
		return EventTable{}, err
	}
	return decimated, nil
}

// WithCodes returns the subset of events whose code is in codes, in table order.
func (t EventTable) WithCodes(codes []int) []Event {
	want := make(map[int]struct{}, len(codes))
	for _, c := range codes {
		want[c] = struct{}{}
	}
	var out []Event
	for _, ev := range t.events {
		if _, ok := want[ev.Code]; ok {
			out = append(out, ev)
		}
	}
	return out
}

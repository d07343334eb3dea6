package state

import "github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/domain"

// DefaultEventLogCapacity bounds the event log when no capacity is given.
const DefaultEventLogCapacity = 200

// EventLog is a bounded, most-recent-first list of event records. It is not
// safe for concurrent use; Store serializes access.
type EventLog struct {
	capacity int
	records  []domain.EventRecord
}

// NewEventLog creates an event log holding at most capacity records.
func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = DefaultEventLogCapacity
	}
	return &EventLog{capacity: capacity}
}

// Prepend inserts r at the head, evicting the oldest record when full.
func (l *EventLog) Prepend(r domain.EventRecord) {
	l.records = append(l.records, domain.EventRecord{})
	copy(l.records[1:], l.records)
	l.records[0] = r
	if len(l.records) > l.capacity {
		l.records[len(l.records)-1] = domain.EventRecord{}
		l.records = l.records[:l.capacity]
	}
}

// Update replaces the event stored under id. It reports false when the
// record has already been evicted.
func (l *EventLog) Update(id domain.EventIdentity, fn func(domain.DomainEvent) domain.DomainEvent) bool {
	for i := range l.records {
		if l.records[i].ID == id {
			l.records[i].Event = fn(l.records[i].Event)
			return true
		}
	}
	return false
}

// Records returns a copy of the log, most recent first.
func (l *EventLog) Records() []domain.EventRecord {
	out := make([]domain.EventRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of records held.
func (l *EventLog) Len() int { return len(l.records) }

// Capacity returns the maximum number of records held.
func (l *EventLog) Capacity() int { return l.capacity }

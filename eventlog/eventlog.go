// Package eventlog is the append-only match log: an ordered history of
// state-change entries plus fan-out to any number of live subscribers.
package eventlog

import "sync"

// Entry is one timestamped state-change event. Time is elapsed seconds
// since match start. Entries are immutable once appended.
type Entry struct {
	Time float64 `json:"time"`
	Msg  any     `json:"msg"`
}

// Log is the ordered event history with live fan-out. Appending and
// subscribing share one lock, so a new subscriber's history replay and its
// registration are a single atomic step: no appended entry can fall into a
// gap between the two, and replay plus tail together contain every entry
// exactly once, in append order.
type Log struct {
	mu      sync.Mutex
	history []Entry
	subs    []*Subscriber
}

// New creates an empty log.
func New() *Log {
	return &Log{}
}

// Append pushes the entry onto the history and forwards a copy to every
// live subscriber in the order they were registered. Append never blocks
// on a slow consumer; each subscriber buffers independently.
func (l *Log) Append(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, sub := range l.subs {
		sub.push(entry)
	}
	l.history = append(l.history, entry)
}

// Subscribe registers a new subscriber whose stream starts with the full
// history and continues with every future entry.
func (l *Log) Subscribe() *Subscriber {
	sub := newSubscriber()
	l.mu.Lock()
	for _, entry := range l.history {
		sub.push(entry)
	}
	l.subs = append(l.subs, sub)
	l.mu.Unlock()
	go sub.run()
	return sub
}

// Unsubscribe stops forwarding to the subscriber. Entries already
// forwarded are still delivered, then the subscriber's stream is closed.
// Unsubscribing a subscriber that is not registered is a no-op.
func (l *Log) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	l.mu.Lock()
	for i, registered := range l.subs {
		if registered == sub {
			l.subs = append(l.subs[:i], l.subs[i+1:]...)
			break
		}
	}
	l.mu.Unlock()
	sub.finish()
}

// History returns a copy of all entries appended so far.
func (l *Log) History() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	copied := make([]Entry, len(l.history))
	copy(copied, l.history)
	return copied
}

// Len reports the number of entries appended so far.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.history)
}

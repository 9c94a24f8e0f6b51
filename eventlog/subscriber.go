package eventlog

import (
	"sync"

	"github.com/google/uuid"
)

// Subscriber is one live consumer of the log. Entries pushed by the log
// land in an unbounded queue; a pump goroutine delivers them to the Events
// channel in order, so a slow consumer never stalls the match or the other
// subscribers.
type Subscriber struct {
	id   string
	out  chan Entry
	quit chan struct{}

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Entry
	finished bool

	cancelOnce sync.Once
}

func newSubscriber() *Subscriber {
	sub := &Subscriber{
		id:   uuid.NewString(),
		out:  make(chan Entry),
		quit: make(chan struct{}),
	}
	sub.cond = sync.NewCond(&sub.mu)
	return sub
}

// ID is the subscriber's opaque handle, unique per subscription.
func (s *Subscriber) ID() string {
	return s.id
}

// Events is the subscriber's ordered stream. It is closed after the
// subscriber is removed from the log and every queued entry has been
// delivered, or immediately on Cancel.
func (s *Subscriber) Events() <-chan Entry {
	return s.out
}

// Cancel abandons the stream: queued entries are dropped and the pump
// stops without waiting for a reader. Safe to call more than once. The
// caller is still expected to Unsubscribe from the log.
func (s *Subscriber) Cancel() {
	s.cancelOnce.Do(func() {
		close(s.quit)
		s.mu.Lock()
		s.finished = true
		s.mu.Unlock()
		s.cond.Signal()
	})
}

func (s *Subscriber) push(entry Entry) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, entry)
	s.mu.Unlock()
	s.cond.Signal()
}

// finish marks the subscriber drained-and-done: the pump delivers whatever
// is queued, then closes the stream.
func (s *Subscriber) finish() {
	s.mu.Lock()
	s.finished = true
	s.mu.Unlock()
	s.cond.Signal()
}

func (s *Subscriber) run() {
	defer close(s.out)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.finished {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, entry := range batch {
			select {
			case s.out <- entry:
			case <-s.quit:
				return
			}
		}
	}
}

package session

import (
	"sync"

	"github.com/kagent-dev/agentdesk/pkg/adk/orchestrator"
)

// Update is one event of a run as delivered to subscribers
type Update struct {
	RunID string             `json:"run_id"`
	Seq   uint64             `json:"seq"`
	Event orchestrator.Event `json:"event"`
}

// Feed fans run events out to subscribers. Each subscriber gets every
// update in publish order through its own unbounded queue, so a slow
// reader never blocks the run. Once a run's Finished event is published,
// later events for that run are dropped.
type Feed struct {
	mu     sync.Mutex
	seq    uint64
	nextID int
	subs   map[int]*subscriber
	closed bool

	// most recent sealed runs, oldest first
	sealed      map[string]struct{}
	sealedOrder []string
}

// maxSealedRuns bounds how many finished run IDs the feed remembers.
// Runs of one session are sequential, so only recent ones can still
// have a publisher in flight.
const maxSealedRuns = 32

// NewFeed creates an empty feed
func NewFeed() *Feed {
	return &Feed{
		subs:   make(map[int]*subscriber),
		sealed: make(map[string]struct{}),
	}
}

// Publish implements orchestrator.Sink
func (f *Feed) Publish(runID string, ev orchestrator.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	if _, done := f.sealed[runID]; done {
		return
	}
	f.seq++
	u := Update{RunID: runID, Seq: f.seq, Event: ev}
	for _, s := range f.subs {
		s.push(u)
	}
	if _, ok := ev.(orchestrator.Finished); ok {
		f.seal(runID)
	}
}

func (f *Feed) seal(runID string) {
	f.sealed[runID] = struct{}{}
	f.sealedOrder = append(f.sealedOrder, runID)
	if len(f.sealedOrder) > maxSealedRuns {
		delete(f.sealed, f.sealedOrder[0])
		f.sealedOrder = f.sealedOrder[1:]
	}
}

// Sealed reports whether runID already published its terminal event
func (f *Feed) Sealed(runID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sealed[runID]
	return ok
}

// Subscribe returns a channel of future updates and a func that ends the
// subscription and closes the channel.
func (f *Feed) Subscribe() (<-chan Update, func()) {
	s := newSubscriber()

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		s.stop()
		return s.out, func() {}
	}
	id := f.nextID
	f.nextID++
	f.subs[id] = s
	f.mu.Unlock()

	var once sync.Once
	return s.out, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			s.stop()
		})
	}
}

// Close ends every subscription. Updates already published are still
// delivered before a subscriber's channel closes.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, s := range f.subs {
		s.drain()
		delete(f.subs, id)
	}
}

type subscriber struct {
	mu      sync.Mutex
	queue   []Update
	wake    chan struct{}
	done    chan struct{}
	drained chan struct{}
	out     chan Update
	closer  sync.Once
	drainer sync.Once
}

func newSubscriber() *subscriber {
	s := &subscriber{
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		drained: make(chan struct{}),
		out:     make(chan Update),
	}
	go s.pump()
	return s
}

func (s *subscriber) push(u Update) {
	s.mu.Lock()
	s.queue = append(s.queue, u)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// stop ends the subscription, discarding queued updates
func (s *subscriber) stop() {
	s.closer.Do(func() { close(s.done) })
}

// drain ends the subscription once the queued updates are delivered.
// Nothing is pushed after drain.
func (s *subscriber) drain() {
	s.drainer.Do(func() { close(s.drained) })
}

func (s *subscriber) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		var next *Update
		if len(s.queue) > 0 {
			u := s.queue[0]
			s.queue = s.queue[1:]
			next = &u
		}
		s.mu.Unlock()

		if next == nil {
			select {
			case <-s.wake:
				continue
			case <-s.drained:
				s.mu.Lock()
				empty := len(s.queue) == 0
				s.mu.Unlock()
				if empty {
					return
				}
				continue
			case <-s.done:
				return
			}
		}
		select {
		case s.out <- *next:
		case <-s.done:
			return
		}
	}
}

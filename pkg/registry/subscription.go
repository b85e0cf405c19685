package registry

import (
	"sync"

	"github.com/prismrag/ragjobs/pkg/core"
)

// Subscription is an ordered, loss-free stream of job snapshots. Each
// subscriber has a private queue drained by its own pump goroutine, so a
// slow consumer never blocks the pipeline and never sees updates out of
// order or duplicated.
//
// Per-job subscriptions close their channel after delivering the terminal
// snapshot. Registry-wide subscriptions stay open until Close is called.
// Closing a subscription never affects the underlying job.
type Subscription struct {
	mu     sync.Mutex
	queue  []core.Snapshot
	ended  bool // terminal delivered to queue, no more pushes accepted
	wake   chan struct{}
	quit   chan struct{}
	out    chan core.Snapshot
	closed sync.Once
}

func newSubscription() *Subscription {
	s := &Subscription{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		out:  make(chan core.Snapshot),
	}
	go s.pump()
	return s
}

// Snapshots returns the receive channel. It is closed after the terminal
// snapshot (per-job subscriptions) or after Close.
func (s *Subscription) Snapshots() <-chan core.Snapshot {
	return s.out
}

// Close stops delivery and releases the pump. Safe to call more than once
// and concurrently with channel reads.
func (s *Subscription) Close() {
	s.closed.Do(func() { close(s.quit) })
}

// push appends a snapshot to the queue. final marks the stream ended after
// this snapshot is delivered.
func (s *Subscription) push(snap core.Snapshot, final bool) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, snap)
	if final {
		s.ended = true
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			done := s.ended
			s.mu.Unlock()
			if done {
				close(s.out)
				return
			}
			select {
			case <-s.wake:
				continue
			case <-s.quit:
				close(s.out)
				return
			}
		}
		snap := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- snap:
		case <-s.quit:
			close(s.out)
			return
		}
	}
}

package playback

import "sync"

const eventBufferSize = 16

// Subscription provides event channels for a subscriber.
type Subscription struct {
	Snapshots <-chan Snapshot
	Reports   <-chan Report
	Done      <-chan struct{}

	// Internal write channels
	snapshotCh chan Snapshot
	reportCh   chan Report
	doneCh     chan struct{}
	closeOnce  sync.Once
}

// newSubscription creates a new subscription with buffered channels.
func newSubscription() *Subscription {
	s := &Subscription{
		snapshotCh: make(chan Snapshot, eventBufferSize),
		reportCh:   make(chan Report, eventBufferSize),
		doneCh:     make(chan struct{}),
	}
	s.Snapshots = s.snapshotCh
	s.Reports = s.reportCh
	s.Done = s.doneCh
	return s
}

// close signals subscribers to stop by closing doneCh. Safe to call twice.
func (s *Subscription) close() {
	s.closeOnce.Do(func() { close(s.doneCh) })
}

// sendSnapshot sends a snapshot (non-blocking, drops the oldest if full).
func (s *Subscription) sendSnapshot(snap Snapshot) {
	offer(s.snapshotCh, snap)
}

// sendReport sends a report (non-blocking, drops the oldest if full).
func (s *Subscription) sendReport(r Report) {
	offer(s.reportCh, r)
}

// offer must only be called by the single producer (under the controller lock).
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

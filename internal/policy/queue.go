package policy

import (
	"context"
	"sync/atomic"

	"pkt.systems/pslog"
)

// DefaultQueueDepth is used when no depth is configured.
const DefaultQueueDepth = 256

// Queue is a bounded notice buffer. A full queue drops the newest notice
// with a warning so the producer never stalls.
type Queue struct {
	ch      chan Notice
	log     pslog.Logger
	dropped atomic.Uint64
}

var _ Sink = (*Queue)(nil)

func NewQueue(depth int, logger pslog.Logger) *Queue {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Queue{ch: make(chan Notice, depth), log: logger}
}

// Publish enqueues n without blocking.
func (q *Queue) Publish(n Notice) {
	select {
	case q.ch <- n:
	default:
		total := q.dropped.Add(1)
		q.log.Warn("policy notice dropped", "kind", string(n.Kind), "surface", n.Surface, "dropped_total", total)
	}
}

// C is the consumer side.
func (q *Queue) C() <-chan Notice {
	return q.ch
}

// Dropped is the number of notices lost to a full queue.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Discard drains notices until ctx ends. Use it when no policy runs so
// producers never hit the drop path.
func (q *Queue) Discard(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-q.ch:
			q.log.Trace("policy notice discarded", "kind", string(n.Kind))
		}
	}
}

package sim

import (
	"container/heap"
	"time"

	"github.com/chase3718/lou-piano/internal/keymap"
	"github.com/chase3718/lou-piano/internal/pcode"
)

type eventType int

// Order matters: at equal times retracts fire first, then rail steps, then
// commands (moves before deploys).
const (
	evRetract eventType = iota
	evStep
	evMove
	evDeploy
)

type event struct {
	at  time.Duration
	typ eventType
	seq int // insertion order, breaks remaining ties

	cmd      pcode.Command   // evMove, evDeploy
	position keymap.Position // evStep
	gen      int             // evRetract: matches the deploy that scheduled it
}

type eventQueue []event

func (q eventQueue) Len() int { return len(q) }
func (q eventQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	if q[i].typ != q[j].typ {
		return q[i].typ < q[j].typ
	}
	return q[i].seq < q[j].seq
}
func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *eventQueue) Push(x any)   { *q = append(*q, x.(event)) }
func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}

// scheduler wraps the heap with a running sequence number.
type scheduler struct {
	q   eventQueue
	seq int
}

func (s *scheduler) push(e event) {
	e.seq = s.seq
	s.seq++
	heap.Push(&s.q, e)
}

func (s *scheduler) pop() event { return heap.Pop(&s.q).(event) }

func (s *scheduler) len() int { return s.q.Len() }

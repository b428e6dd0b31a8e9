package layout

// Scheduler defers change broadcasts until the current unit of work is
// done, in the way a UI event loop runs queued callbacks after the handler
// that caused them.
type Scheduler interface {
	Schedule(fn func())
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(fn func())

func (f SchedulerFunc) Schedule(fn func()) { f(fn) }

// Immediate runs callbacks as soon as they are scheduled.
var Immediate Scheduler = SchedulerFunc(func(fn func()) { fn() })

// Queue holds scheduled callbacks until Drain is called.
type Queue struct {
	pending []func()
}

// Schedule appends fn to the queue.
func (q *Queue) Schedule(fn func()) {
	q.pending = append(q.pending, fn)
}

// Drain runs queued callbacks, including ones queued while draining, and
// returns how many ran.
func (q *Queue) Drain() int {
	n := 0
	for len(q.pending) > 0 {
		batch := q.pending
		q.pending = nil
		for _, fn := range batch {
			fn()
			n++
		}
	}
	return n
}

// Len returns the number of queued callbacks.
func (q *Queue) Len() int {
	return len(q.pending)
}

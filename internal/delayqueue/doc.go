// Package delayqueue implements a multi-lane, time-gated FIFO used for
// per-domain pacing.
//
// Time is supplied by the caller, so the queue can be driven by a wall clock
// or by a test counter:
//
//	q := delayqueue.New[string]()
//	q.Enqueue("wiki.org", "https://wiki.org/a", 2*time.Second, now)
//	if url, ok := q.Dequeue(time.Now()); ok { ... }
package delayqueue

package delayqueue

import (
	"slices"
	"time"
)

// entry is a queued payload. For the head of a lane, ready is absolute. For
// every later entry only delay is meaningful; it is turned into an absolute
// ready time when the entry becomes the head.
type entry[T any] struct {
	ready   time.Time
	delay   time.Duration
	payload T
}

// Queue is a set of independent FIFO lanes whose entries become available
// only after their delay has passed. Entries of one lane fire at least their
// delay apart, chained from the moment the previous entry was dequeued.
//
// Queue never blocks and is not safe for concurrent use; the caller passes
// the current time to every call.
type Queue[T any] struct {
	lanes map[string][]entry[T]
	// order keeps non-empty lanes in creation order so Dequeue scans
	// deterministically. A lane is dropped when it drains.
	order []string
}

// New returns an empty Queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{lanes: make(map[string][]entry[T])}
}

// Enqueue appends payload to lane. An entry entering an empty lane is ready at
// now+delay; otherwise delay is kept relative to the dequeue of its predecessor.
func (q *Queue[T]) Enqueue(lane string, payload T, delay time.Duration, now time.Time) {
	entries, known := q.lanes[lane]
	if !known {
		q.order = append(q.order, lane)
	}
	e := entry[T]{delay: delay, payload: payload}
	if len(entries) == 0 {
		e.ready = now.Add(delay)
	}
	q.lanes[lane] = append(entries, e)
}

// Dequeue removes and returns the head of the first lane whose head is ready
// at now. The lane's next entry, if any, becomes ready delay after now.
// ok is false when no lane has a ready head.
func (q *Queue[T]) Dequeue(now time.Time) (payload T, ok bool) {
	for i, lane := range q.order {
		entries := q.lanes[lane]
		if entries[0].ready.After(now) {
			continue
		}
		head := entries[0]
		if len(entries) == 1 {
			delete(q.lanes, lane)
			q.order = slices.Delete(q.order, i, i+1)
			return head.payload, true
		}
		var zero entry[T]
		entries[0] = zero
		entries = entries[1:]
		entries[0].ready = now.Add(entries[0].delay)
		q.lanes[lane] = entries
		return head.payload, true
	}
	return payload, false
}

// IsEmpty reports whether every lane is empty.
func (q *Queue[T]) IsEmpty() bool {
	return len(q.lanes) == 0
}

// Len returns the number of queued entries across all lanes.
func (q *Queue[T]) Len() int {
	n := 0
	for _, entries := range q.lanes {
		n += len(entries)
	}
	return n
}

// Lanes returns the number of lanes that currently hold entries.
func (q *Queue[T]) Lanes() int {
	return len(q.lanes)
}

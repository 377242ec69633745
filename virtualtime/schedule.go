package virtualtime

import (
	"container/heap"
	"sync/atomic"

	"github.com/noodlebox/vclock"
)

// Sequence numbers are shared by every Scheduler in the process.
var sequence atomic.Uint64

type item[T any] struct {
	due       T
	seq       uint64
	state     any
	action    Action
	handle    *Handle[T]
	cancelled bool
	index     int
}

// queued reports whether the item is still waiting in a queue.
func (it *item[T]) queued() bool {
	return it.index >= 0
}

type queue[T any] struct {
	items   []*item[T]
	compare vclock.Comparer[T]
}

// Implement sort.Interface
func (q *queue[T]) Len() int {
	return len(q.items)
}

func (q *queue[T]) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if c := q.compare(a.due, b.due); c != 0 {
		return c < 0
	}
	return a.seq < b.seq
}

func (q *queue[T]) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index, q.items[j].index = i, j
}

// Implement container.heap.Interface
func (q *queue[T]) Push(x any) {
	it := x.(*item[T])
	it.index = len(q.items)
	q.items = append(q.items, it)
}

func (q *queue[T]) Pop() any {
	n := len(q.items) - 1
	it := q.items[n]
	q.items[n] = nil
	it.index = -1
	q.items = q.items[:n]
	return it
}

func (q *queue[T]) insert(it *item[T]) {
	heap.Push(q, it)
}

func (q *queue[T]) peek() *item[T] {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

func (q *queue[T]) extract() *item[T] {
	if len(q.items) == 0 {
		return nil
	}
	return heap.Pop(q).(*item[T])
}

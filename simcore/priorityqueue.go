package simcore

import (
	"container/heap"
	"errors"
)

// ErrEmptyQueue is returned by PriorityQueue.Pop/Peek on an empty queue.
var ErrEmptyQueue = errors.New("simcore: priority queue is empty")

type pqEntry struct {
	time    int64
	kind    EventKind
	seq     uint64
	entity  any
	removed bool
	index   int
}

type pqKey struct {
	kind   EventKind
	entity any
}

// PriorityQueue is a totally-ordered event heap with logical removal.
// Re-adding the same (kind, entity) tombstones the prior live entry;
// ties break first by kind, then by a monotonic insertion sequence —
// entities themselves are never compared.
type PriorityQueue struct {
	heap  pqHeap
	index map[pqKey]*pqEntry
	seq   uint64
}

// NewPriorityQueue returns an empty queue.
func NewPriorityQueue() *PriorityQueue {
	return &PriorityQueue{index: make(map[pqKey]*pqEntry)}
}

// Add schedules (time, kind, entity), tombstoning any existing live
// entry with the same (kind, entity) key.
func (pq *PriorityQueue) Add(time int64, kind EventKind, entity any) {
	key := pqKey{kind, entity}
	if old, ok := pq.index[key]; ok {
		old.removed = true
	}
	e := &pqEntry{time: time, kind: kind, seq: pq.seq, entity: entity}
	pq.seq++
	pq.index[key] = e
	heap.Push(&pq.heap, e)
}

func (pq *PriorityQueue) popRemoved() {
	for pq.heap.Len() > 0 && pq.heap[0].removed {
		heap.Pop(&pq.heap)
	}
}

// Empty reports whether any live entry remains.
func (pq *PriorityQueue) Empty() bool {
	pq.popRemoved()
	return pq.heap.Len() == 0
}

// Peek returns the next live event without removing it.
func (pq *PriorityQueue) Peek() (time int64, kind EventKind, entity any, err error) {
	pq.popRemoved()
	if pq.heap.Len() == 0 {
		return 0, 0, nil, ErrEmptyQueue
	}
	e := pq.heap[0]
	return e.time, e.kind, e.entity, nil
}

// Pop removes and returns the next live event.
func (pq *PriorityQueue) Pop() (time int64, kind EventKind, entity any, err error) {
	pq.popRemoved()
	if pq.heap.Len() == 0 {
		return 0, 0, nil, ErrEmptyQueue
	}
	e := heap.Pop(&pq.heap).(*pqEntry)
	delete(pq.index, pqKey{e.kind, e.entity})
	return e.time, e.kind, e.entity, nil
}

// pqHeap implements container/heap.Interface over (time, kind, seq).
type pqHeap []*pqEntry

func (h pqHeap) Len() int { return len(h) }

func (h pqHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.time != b.time {
		return a.time < b.time
	}
	if a.kind != b.kind {
		return a.kind < b.kind
	}
	return a.seq < b.seq
}

func (h pqHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *pqHeap) Push(x any) {
	e := x.(*pqEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *pqHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

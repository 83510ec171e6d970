// internal/sched/queue.go

package sched

import (
	"github.com/emirpasic/gods/trees/redblacktree"
)

// activeQueue holds the enabled tasks ordered by descending static priority.
// Equal priorities keep insertion order. It owns no task data, only
// membership and order.
type activeQueue struct {
	capacity int
	nextSeq  uint64
	keys     map[TaskID]nodeKey
	rbt      *redblacktree.Tree
}

func newActiveQueue(capacity int) *activeQueue {
	return &activeQueue{
		capacity: capacity,
		keys:     make(map[TaskID]nodeKey, capacity),
		rbt:      redblacktree.NewWith(cmp),
	}
}

// enqueue inserts id behind every queued task of the same or higher priority.
func (q *activeQueue) enqueue(id TaskID, priority Priority) bool {
	if q.rbt.Size() >= q.capacity {
		return false
	}
	if _, dup := q.keys[id]; dup {
		return false
	}
	key := nodeKey{priority: priority, seq: q.nextSeq, id: id}
	q.nextSeq++
	q.keys[id] = key
	q.rbt.Put(key, id)
	return true
}

func (q *activeQueue) remove(id TaskID) bool {
	key, ok := q.keys[id]
	if !ok {
		return false
	}
	delete(q.keys, id)
	q.rbt.Remove(key)
	return true
}

func (q *activeQueue) contains(id TaskID) bool {
	_, ok := q.keys[id]
	return ok
}

func (q *activeQueue) len() int { return q.rbt.Size() }

// each walks the queue from the head. fn returning false stops the walk.
func (q *activeQueue) each(fn func(id TaskID, priority Priority) bool) {
	it := q.rbt.Iterator()
	for it.Next() {
		key := it.Key().(nodeKey)
		if !fn(key.id, key.priority) {
			return
		}
	}
}

// snapshot appends the queue order to buf[:0] and returns it.
func (q *activeQueue) snapshot(buf []TaskID) []TaskID {
	buf = buf[:0]
	q.each(func(id TaskID, _ Priority) bool {
		buf = append(buf, id)
		return true
	})
	return buf
}

// nodeKey is used as a key in the red-black tree.
type nodeKey struct {
	priority Priority
	seq      uint64
	id       TaskID
}

// cmp orders higher priority first, then older insertion first.
func cmp(a, b any) int {
	ka, kb := a.(nodeKey), b.(nodeKey)
	switch {
	case ka.priority > kb.priority:
		return -1
	case ka.priority < kb.priority:
		return 1
	case ka.seq < kb.seq:
		return -1
	case ka.seq > kb.seq:
		return 1
	default:
		return 0
	}
}

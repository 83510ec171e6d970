package sched

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var queuePriorities = []Priority{
	PriorityDisabled, PriorityLow, PriorityMedium, PriorityMediumHigh,
	PriorityHigh, PriorityRealTime, PriorityMaximum,
}

func queuePrioritiesOf(q *activeQueue) []Priority {
	out := make([]Priority, 0, q.len())
	q.each(func(_ TaskID, p Priority) bool {
		out = append(out, p)
		return true
	})
	return out
}

func TestActiveQueue_OrderingInvariant(t *testing.T) {
	const tasks = 24
	rng := rand.New(rand.NewSource(7))
	prio := make([]Priority, tasks)
	for i := range prio {
		prio[i] = queuePriorities[rng.Intn(len(queuePriorities))]
	}

	q := newActiveQueue(tasks)
	for step := 0; step < 2000; step++ {
		id := TaskID(rng.Intn(tasks))
		if rng.Intn(2) == 0 {
			assert.Equal(t, !q.contains(id), q.enqueue(id, prio[id]))
		} else {
			assert.Equal(t, q.contains(id), q.remove(id))
		}

		order := q.snapshot(nil)
		seen := make(map[TaskID]bool)
		for i, got := range order {
			require.False(t, seen[got], "duplicate %d at step %d", got, step)
			seen[got] = true
			if i > 0 {
				require.GreaterOrEqual(t, uint8(prio[order[i-1]]), uint8(prio[got]), "order broken at step %d", step)
			}
		}
		require.LessOrEqual(t, len(order), tasks)
	}
}

func TestActiveQueue_NoDuplicates(t *testing.T) {
	q := newActiveQueue(4)

	assert.True(t, q.enqueue(2, PriorityHigh))
	assert.False(t, q.enqueue(2, PriorityHigh))
	assert.Equal(t, 1, q.len())
	assert.True(t, q.contains(2))
}

func TestActiveQueue_TiesKeepInsertionOrder(t *testing.T) {
	q := newActiveQueue(8)
	require.True(t, q.enqueue(0, PriorityMedium))
	require.True(t, q.enqueue(1, PriorityRealTime))
	require.True(t, q.enqueue(2, PriorityMedium))
	require.True(t, q.enqueue(3, PriorityLow))
	require.True(t, q.enqueue(4, PriorityRealTime))

	assert.Equal(t, []TaskID{1, 4, 0, 2, 3}, q.snapshot(nil))
	assert.Equal(t, []Priority{PriorityRealTime, PriorityRealTime, PriorityMedium, PriorityMedium, PriorityLow}, queuePrioritiesOf(q))

	// a re-enqueued task goes behind its equals
	require.True(t, q.remove(0))
	require.True(t, q.enqueue(0, PriorityMedium))
	assert.Equal(t, []TaskID{1, 4, 2, 0, 3}, q.snapshot(nil))
}

func TestActiveQueue_Capacity(t *testing.T) {
	q := newActiveQueue(2)
	require.True(t, q.enqueue(0, PriorityLow))
	require.True(t, q.enqueue(1, PriorityLow))

	assert.False(t, q.enqueue(2, PriorityMaximum), "full")
	assert.False(t, q.contains(2))
	assert.Equal(t, []TaskID{0, 1}, q.snapshot(nil))

	require.True(t, q.remove(0))
	assert.True(t, q.enqueue(2, PriorityMaximum))
	assert.Equal(t, []TaskID{2, 1}, q.snapshot(nil))
}

func TestActiveQueue_Remove(t *testing.T) {
	q := newActiveQueue(3)
	assert.False(t, q.remove(1), "absent")

	require.True(t, q.enqueue(0, PriorityHigh))
	require.True(t, q.enqueue(1, PriorityMedium))
	require.True(t, q.enqueue(2, PriorityLow))

	assert.True(t, q.remove(1))
	assert.False(t, q.contains(1))
	assert.Equal(t, []TaskID{0, 2}, q.snapshot(nil))
}

func TestActiveQueue_WalkStopsEarly(t *testing.T) {
	q := newActiveQueue(3)
	require.True(t, q.enqueue(0, PriorityRealTime))
	require.True(t, q.enqueue(1, PriorityRealTime))
	require.True(t, q.enqueue(2, PriorityLow))

	var walked []TaskID
	q.each(func(id TaskID, p Priority) bool {
		if p != PriorityRealTime {
			return false
		}
		walked = append(walked, id)
		return true
	})
	assert.Equal(t, []TaskID{0, 1}, walked)
}

package taskgraph

import (
	"container/heap"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobHeapOrdersByPriorityThenInsertionOrder(t *testing.T) {
	h := newJobHeap()
	heap.Init(h)

	heap.Push(h, &jobHeapEntry{job: &Job{ID: "low-priority", Priority: 5}, seq: 1})
	heap.Push(h, &jobHeapEntry{job: &Job{ID: "high-priority", Priority: 1}, seq: 2})
	heap.Push(h, &jobHeapEntry{job: &Job{ID: "same-priority-later", Priority: 1}, seq: 3})

	var order []string
	for h.Len() > 0 {
		e := heap.Pop(h).(*jobHeapEntry)
		order = append(order, e.job.ID)
	}

	assert.Equal(t, []string{"high-priority", "same-priority-later", "low-priority"}, order)
}

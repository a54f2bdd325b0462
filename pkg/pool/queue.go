package pool

import (
	"container/heap"

	"github.com/filetools/taskpool/pkg/task"
)

// queuedTask pairs a task with its admission sequence number. The
// sequence breaks priority ties so that equal-priority tasks dispatch in
// submission order regardless of how the heap rebalances.
type queuedTask struct {
	task task.Task
	seq  uint64
}

// taskHeap orders by priority descending, then sequence ascending
type taskHeap []*queuedTask

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority > h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x interface{}) {
	*h = append(*h, x.(*queuedTask))
}

func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// taskQueue is the in-memory holding area for tasks awaiting a free
// worker. It is owned by the coordinator goroutine and needs no locking.
type taskQueue struct {
	heap taskHeap
	seq  uint64
}

func newTaskQueue() *taskQueue {
	return &taskQueue{
		heap: make(taskHeap, 0),
	}
}

// push appends a task, stamping it with the next sequence number
func (q *taskQueue) push(t task.Task) {
	q.seq++
	heap.Push(&q.heap, &queuedTask{task: t, seq: q.seq})
}

// pop removes and returns the highest-priority task
func (q *taskQueue) pop() (task.Task, bool) {
	if len(q.heap) == 0 {
		return task.Task{}, false
	}
	qt := heap.Pop(&q.heap).(*queuedTask)
	return qt.task, true
}

// remove drops the queued task with the given id, if present. Used when
// a task expires before it was ever dispatched.
func (q *taskQueue) remove(id string) bool {
	for i, qt := range q.heap {
		if qt.task.ID == id {
			heap.Remove(&q.heap, i)
			return true
		}
	}
	return false
}

// drain empties the queue and returns the removed tasks in heap order
func (q *taskQueue) drain() []task.Task {
	out := make([]task.Task, 0, len(q.heap))
	for len(q.heap) > 0 {
		t, _ := q.pop()
		out = append(out, t)
	}
	return out
}

func (q *taskQueue) len() int {
	return len(q.heap)
}

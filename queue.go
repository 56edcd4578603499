package offload

import "container/heap"

// QueuePolicy selects the ordering of the pending-task queue.
type QueuePolicy int

const (
	// QueueFIFO serves pending tasks strictly in arrival order. Default.
	QueueFIFO QueuePolicy = iota
	// QueuePriority serves pending tasks by Descriptor.Priority
	// (lower first), arrival order within equal priorities.
	QueuePriority
)

func (p QueuePolicy) String() string {
	switch p {
	case QueueFIFO:
		return "fifo"
	case QueuePriority:
		return "priority"
	default:
		return "unknown"
	}
}

// pendingQueue holds tasks awaiting assignment. Implementations are mutated
// only by the pool's coordinator goroutine, so none of them lock.
type pendingQueue[R any] interface {
	push(*task[R])
	pop() *task[R] // nil when empty
	len() int
}

func newPendingQueue[R any](policy QueuePolicy) pendingQueue[R] {
	if policy == QueuePriority {
		return &priorityQueue[R]{}
	}
	return &fifoQueue[R]{}
}

// fifoQueue is a slice-backed FIFO of pending tasks.
type fifoQueue[R any] struct {
	items []*task[R]
}

func (q *fifoQueue[R]) push(t *task[R]) { q.items = append(q.items, t) }

func (q *fifoQueue[R]) pop() *task[R] {
	if len(q.items) == 0 {
		return nil
	}
	t := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return t
}

func (q *fifoQueue[R]) len() int { return len(q.items) }

// priorityQueue is a min-heap over (priority, seq). The sequence number,
// assigned at admission, keeps equal priorities in arrival order.
type priorityQueue[R any] struct {
	h taskHeap[R]
}

func (q *priorityQueue[R]) push(t *task[R]) { heap.Push(&q.h, t) }

func (q *priorityQueue[R]) pop() *task[R] {
	if q.h.Len() == 0 {
		return nil
	}
	return heap.Pop(&q.h).(*task[R])
}

func (q *priorityQueue[R]) len() int { return q.h.Len() }

type taskHeap[R any] []*task[R]

func (h taskHeap[R]) Len() int { return len(h) }

func (h taskHeap[R]) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap[R]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap[R]) Push(x any) { *h = append(*h, x.(*task[R])) }

func (h *taskHeap[R]) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

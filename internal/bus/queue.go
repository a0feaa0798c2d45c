package bus

import (
	"container/list"
	"sync"
)

// Queued pairs a Message with the endpoint that sent it, as it sits
// in the delivery queue.
type Queued struct {
	Msg    Message
	Sender *Endpoint

	// Recipient is nil for a broadcast message (delivered to every
	// handler registered for Msg.Type) or set for a unicast send to a
	// single endpoint's owning module.
	Recipient *Endpoint
}

// Queue is the FIFO message queue at the heart of the core. Push may
// be called from any goroutine (the socket relayer, the heartbeat
// relayer, a timer callback already running on the mainloop
// goroutine); Pop and Len are only ever called from the mainloop
// goroutine itself, which is what actually applies messages to
// application state, preserving the single-threaded-core invariant.
type Queue struct {
	mu    sync.Mutex
	items *list.List
}

// NewQueue returns an empty message queue.
func NewQueue() *Queue {
	return &Queue{items: list.New()}
}

// Push appends q to the back of the queue.
func (q *Queue) Push(item Queued) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items.PushBack(item)
}

// Pop removes and returns the item at the front of the queue. The
// second return value is false if the queue was empty.
func (q *Queue) Pop() (Queued, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	front := q.items.Front()
	if front == nil {
		return Queued{}, false
	}
	q.items.Remove(front)
	return front.Value.(Queued), true
}

// Len reports the number of messages currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Empty reports whether the queue currently holds no messages.
func (q *Queue) Empty() bool {
	return q.Len() == 0
}

// Implements the WaitQueue, which holds jobs waiting for a free server.
// Jobs are enqueued on arrival and re-queued at the front when preempted.

package sim

import (
	"fmt"
	"strings"
)

// WaitQueue is a multi-level FIFO of job ids. Level 0 is served first; within
// a level jobs are served in arrival order. A FIFO discipline uses one level.
type WaitQueue struct {
	levels [][]int
	n      int
}

// NewWaitQueue creates a queue with the given number of priority levels (at least 1).
func NewWaitQueue(levels int) *WaitQueue {
	if levels < 1 {
		levels = 1
	}
	return &WaitQueue{levels: make([][]int, levels)}
}

// Enqueue adds a job to the back of its level.
func (wq *WaitQueue) Enqueue(job, level int) {
	wq.levels[level] = append(wq.levels[level], job)
	wq.n++
}

// PrependFront inserts a job at the front of its level.
// Used for preemption: a paused job resumes before later arrivals of its class.
func (wq *WaitQueue) PrependFront(job, level int) {
	wq.levels[level] = append([]int{job}, wq.levels[level]...)
	wq.n++
}

// Dequeue removes the first job of the highest non-empty level.
// Returns false when the queue is empty.
func (wq *WaitQueue) Dequeue() (int, bool) {
	for l, q := range wq.levels {
		if len(q) == 0 {
			continue
		}
		job := q[0]
		wq.levels[l] = q[1:]
		wq.n--
		return job, true
	}
	return 0, false
}

// Len returns the number of waiting jobs across all levels.
func (wq *WaitQueue) Len() int {
	return wq.n
}

func (wq *WaitQueue) String() string {
	parts := make([]string, len(wq.levels))
	for i, q := range wq.levels {
		parts[i] = fmt.Sprint(q)
	}
	return strings.Join(parts, " ")
}

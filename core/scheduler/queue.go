package scheduler

import (
	"container/heap"
	"sync"
	"time"
)

// JobQueue is a priority queue of job ids awaiting a training worker.
// Jobs submitted earlier run first; ties keep enqueue order.
type JobQueue struct {
	jobs []*QueuedJob
	seq  uint64
	mu   sync.Mutex
}

// QueuedJob wraps a job id with ordering information
type QueuedJob struct {
	JobID       string
	SubmittedAt time.Time
	seq         uint64
	Index       int // For heap.Interface
}

// NewJobQueue creates a new job queue
func NewJobQueue() *JobQueue {
	jq := &JobQueue{
		jobs: make([]*QueuedJob, 0),
	}
	heap.Init(jq)
	return jq
}

// Enqueue adds a job to the queue
func (jq *JobQueue) Enqueue(jobID string, submittedAt time.Time) {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	jq.seq++
	heap.Push(jq, &QueuedJob{
		JobID:       jobID,
		SubmittedAt: submittedAt,
		seq:         jq.seq,
	})
}

// PopJob removes and returns the oldest job id; ok is false when the queue is empty
func (jq *JobQueue) PopJob() (id string, ok bool) {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	if jq.Len() == 0 {
		return "", false
	}

	item := heap.Pop(jq).(*QueuedJob)
	return item.JobID, true
}

// Size returns the number of waiting jobs
func (jq *JobQueue) Size() int {
	jq.mu.Lock()
	defer jq.mu.Unlock()
	return jq.Len()
}

// Len implements heap.Interface; callers outside the package use Size
func (jq *JobQueue) Len() int {
	return len(jq.jobs)
}

// Less orders by submission time, then by enqueue order
func (jq *JobQueue) Less(i, j int) bool {
	a, b := jq.jobs[i], jq.jobs[j]
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.SubmittedAt.Before(b.SubmittedAt)
	}
	return a.seq < b.seq
}

// Swap swaps two jobs
func (jq *JobQueue) Swap(i, j int) {
	jq.jobs[i], jq.jobs[j] = jq.jobs[j], jq.jobs[i]
	jq.jobs[i].Index = i
	jq.jobs[j].Index = j
}

// Push implements heap.Interface
func (jq *JobQueue) Push(x interface{}) {
	n := len(jq.jobs)
	item := x.(*QueuedJob)
	item.Index = n
	jq.jobs = append(jq.jobs, item)
}

// Pop implements heap.Interface
func (jq *JobQueue) Pop() interface{} {
	old := jq.jobs
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.Index = -1
	jq.jobs = old[0 : n-1]
	return item
}

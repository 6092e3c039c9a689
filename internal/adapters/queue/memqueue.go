package queue

import (
	"sync"

	"github.com/ghalamif/SafeDetector/internal/domain"
	"github.com/ghalamif/SafeDetector/internal/ports"
)

// MemQueue is a bounded in-memory queue that preserves FIFO ordering.
type MemQueue struct {
	mu   sync.Mutex
	data []domain.SafetyStatus
	cap  int
}

func NewMemQueue(capacity int) *MemQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemQueue{
		data: make([]domain.SafetyStatus, 0, capacity),
		cap:  capacity,
	}
}

func (q *MemQueue) Enqueue(s domain.SafetyStatus) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) >= q.cap {
		return false
	}
	q.data = append(q.data, s)
	return true
}

// DropOldest discards the head of the queue and reports whether anything was removed.
func (q *MemQueue) DropOldest() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return false
	}
	q.data = append(q.data[:0], q.data[1:]...)
	return true
}

func (q *MemQueue) DequeueBatch(max int) []domain.SafetyStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil
	}
	if max <= 0 || max > len(q.data) {
		max = len(q.data)
	}
	out := make([]domain.SafetyStatus, max)
	copy(out, q.data[:max])
	q.data = append(q.data[:0], q.data[max:]...)
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

var _ ports.StatusQueue = (*MemQueue)(nil)

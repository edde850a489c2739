package llm

import (
	"context"
	"sync"
)

// Mock is a Gateway that replays canned replies in FIFO order and records
// every request. When the queue is empty it returns Err, or the last reply.
type Mock struct {
	mu      sync.Mutex
	replies []string
	last    string
	Err     error
	Calls   []Request
}

// NewMock creates a mock with the given replies.
func NewMock(replies ...string) *Mock {
	return &Mock{replies: replies}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Send(_ context.Context, req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.replies) > 0 {
		m.last = m.replies[0]
		m.replies = m.replies[1:]
	}
	return m.last, nil
}

// CallCount returns the number of Send calls so far.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

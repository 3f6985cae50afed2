// Package audit persists the append-only AgentMessage trail. Recording every
// request/response pair is the sole cross-agent observability mechanism;
// workers share no other coupling.
package audit

import (
	"context"
	"sync"

	contractx "github.com/witthaya/deskflow/agent/contract"
)

// MemorySink keeps trails in process; the demo runner and tests use it.
type MemorySink struct {
	mu     sync.Mutex
	trails map[string][]contractx.AgentMessage
}

func NewMemory() *MemorySink {
	return &MemorySink{trails: make(map[string][]contractx.AgentMessage, 4)}
}

func (s *MemorySink) Append(ctx context.Context, sessionID string, msg contractx.AgentMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trails[sessionID] = append(s.trails[sessionID], msg)
	return nil
}

func (s *MemorySink) Trail(ctx context.Context, sessionID string) ([]contractx.AgentMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trail := s.trails[sessionID]
	out := make([]contractx.AgentMessage, len(trail))
	copy(out, trail)
	return out, nil
}

var _ contractx.AuditSink = (*MemorySink)(nil)

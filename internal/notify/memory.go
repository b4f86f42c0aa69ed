package notify

import (
	"context"
	"sync"
)

// MemoryPublisher buffers events in process. Used in tests and when no
// brokers are configured.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []MemoryEvent
}

type MemoryEvent struct {
	Type    string
	Payload []byte
	Key     string
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(_ context.Context, eventType string, payload []byte, partitionKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, MemoryEvent{Type: eventType, Payload: payload, Key: partitionKey})
	return nil
}

func (p *MemoryPublisher) Events() []MemoryEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]MemoryEvent, len(p.events))
	copy(out, p.events)
	return out
}

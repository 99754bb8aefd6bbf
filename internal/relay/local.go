package relay

import (
	"context"

	"chat-relay/internal/domain"
)

// Local dispatches in-process only. It serves single-process deployments
// and tests.
type Local struct {
	registry *Registry
}

func NewLocal() *Local {
	return &Local{registry: NewRegistry()}
}

func (l *Local) Publish(_ context.Context, env domain.Envelope) error {
	l.registry.Dispatch(env)
	return nil
}

func (l *Local) Join(_ context.Context, address string, sub Subscriber) error {
	l.registry.Add(address, sub)
	return nil
}

func (l *Local) Leave(_ context.Context, address string, sub Subscriber) error {
	l.registry.Remove(address, sub)
	return nil
}

func (l *Local) LeaveAll(_ context.Context, sub Subscriber) {
	l.registry.RemoveAll(sub)
}

// IsJoined reports whether sub joined address.
func (l *Local) IsJoined(address string, sub Subscriber) bool {
	return l.registry.IsJoined(address, sub)
}

// Count returns how many subscribers joined address.
func (l *Local) Count(address string) int {
	return l.registry.Count(address)
}

func (l *Local) Close() error {
	return nil
}

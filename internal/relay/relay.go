// Package relay fans envelopes out to every connection subscribed to a room
// address. Implementations may span processes; callers cannot tell.
package relay

import (
	"context"

	"chat-relay/internal/domain"
)

// Subscriber receives envelopes for the addresses it joined. Deliver must
// not block; it reports false when the envelope was dropped.
type Subscriber interface {
	ID() string
	Deliver(env domain.Envelope) bool
}

type Relay interface {
	// Publish delivers env to every subscriber of env.Address on every
	// process. Ordering holds only within a single address.
	Publish(ctx context.Context, env domain.Envelope) error
	Join(ctx context.Context, address string, sub Subscriber) error
	Leave(ctx context.Context, address string, sub Subscriber) error
	// LeaveAll removes sub from every address it joined.
	LeaveAll(ctx context.Context, sub Subscriber)
	Close() error
}

// Publish encodes payload and publishes it to address.
func Publish(ctx context.Context, r Relay, address, event string, payload interface{}) error {
	env, err := domain.NewEnvelope(address, event, payload)
	if err != nil {
		return err
	}
	return r.Publish(ctx, env)
}

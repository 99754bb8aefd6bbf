package redis

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"chat-relay/internal/domain"
	"chat-relay/internal/relay"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	controlChannel   = "_control"
	minBackoff       = 100 * time.Millisecond
	maxBackoff       = 5 * time.Second
	subscribeTimeout = 2 * time.Second
)

// Relay fans envelopes out across processes over Redis pub/sub. Each room
// address maps to one channel, subscribed while at least one local
// subscriber has joined it.
type Relay struct {
	pub      *redis.Client
	sub      *redis.Client
	pubsub   *redis.PubSub
	prefix   string
	registry *relay.Registry
	log      logrus.FieldLogger

	// mu orders registry changes with SUBSCRIBE/UNSUBSCRIBE.
	mu sync.Mutex

	// waiting holds Joins blocked on a SUBSCRIBE confirmation, per channel.
	waitMu  sync.Mutex
	waiting map[string][]chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

var _ relay.Relay = (*Relay)(nil)

// NewRelay starts a relay publishing through client and subscribing through
// a duplicate of it.
func NewRelay(client *RedisClient, prefix string, log logrus.FieldLogger) *Relay {
	ctx, cancel := context.WithCancel(context.Background())
	sub := client.duplicate()
	r := &Relay{
		pub:      client.client,
		sub:      sub,
		pubsub:   sub.Subscribe(ctx, prefix+controlChannel),
		prefix:   prefix,
		registry: relay.NewRegistry(),
		waiting:  make(map[string][]chan struct{}),
		log:      log.WithField("component", "redis_relay"),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go r.receive()
	return r
}

func (r *Relay) channel(address string) string {
	return r.prefix + address
}

func (r *Relay) Publish(ctx context.Context, env domain.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := r.pub.Publish(ctx, r.channel(env.Address), data).Err(); err != nil {
		return domain.NewInfrastructureError("relay publish failed", err)
	}
	return nil
}

// Join subscribes sub to address. When address is new to this process it
// returns once Redis confirmed the subscription, so envelopes published
// after Join returns are delivered.
func (r *Relay) Join(ctx context.Context, address string, sub relay.Subscriber) error {
	confirmed, err := r.join(ctx, address, sub)
	if err != nil || confirmed == nil {
		return err
	}

	timer := time.NewTimer(subscribeTimeout)
	defer timer.Stop()
	select {
	case <-confirmed:
	case <-timer.C:
		r.log.WithField("address", address).Warn("Subscription not confirmed in time")
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// join registers sub and issues SUBSCRIBE for a new address. The returned
// channel closes on confirmation; it is nil when no SUBSCRIBE was needed.
func (r *Relay) join(ctx context.Context, address string, sub relay.Subscriber) (<-chan struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.registry.Add(address, sub) {
		return nil, nil
	}
	channel := r.channel(address)
	confirmed := r.await(channel)
	if err := r.pubsub.Subscribe(ctx, channel); err != nil {
		r.registry.Remove(address, sub)
		r.settle(channel)
		return nil, domain.NewInfrastructureError("relay subscribe failed", err)
	}
	return confirmed, nil
}

func (r *Relay) await(channel string) <-chan struct{} {
	ch := make(chan struct{})
	r.waitMu.Lock()
	r.waiting[channel] = append(r.waiting[channel], ch)
	r.waitMu.Unlock()
	return ch
}

// settle releases every Join waiting on channel.
func (r *Relay) settle(channel string) {
	r.waitMu.Lock()
	waiters := r.waiting[channel]
	delete(r.waiting, channel)
	r.waitMu.Unlock()
	for _, ch := range waiters {
		close(ch)
	}
}

func (r *Relay) Leave(ctx context.Context, address string, sub relay.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.registry.Remove(address, sub) {
		return nil
	}
	if err := r.pubsub.Unsubscribe(ctx, r.channel(address)); err != nil {
		return domain.NewInfrastructureError("relay unsubscribe failed", err)
	}
	return nil
}

func (r *Relay) LeaveAll(ctx context.Context, sub relay.Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	emptied := r.registry.RemoveAll(sub)
	if len(emptied) == 0 {
		return
	}
	channels := make([]string, 0, len(emptied))
	for _, address := range emptied {
		channels = append(channels, r.channel(address))
	}
	if err := r.pubsub.Unsubscribe(ctx, channels...); err != nil {
		r.log.WithError(err).WithField("conn_id", sub.ID()).Warn("Failed to unsubscribe channels")
	}
}

// receive reads the subscription connection, releases Joins on SUBSCRIBE
// confirmations and dispatches messages to local subscribers. It is the only
// reader, so messages of one channel are dispatched in publish order.
func (r *Relay) receive() {
	defer close(r.done)

	backoff := minBackoff
	for {
		in, err := r.pubsub.Receive(r.ctx)
		if err != nil {
			if r.ctx.Err() != nil {
				return
			}
			r.log.WithError(err).Warnf("Pub/sub receive failed, retrying in %s", backoff)
			select {
			case <-time.After(backoff):
			case <-r.ctx.Done():
				return
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = minBackoff

		var msg *redis.Message
		switch v := in.(type) {
		case *redis.Subscription:
			if v.Kind == "subscribe" {
				r.settle(v.Channel)
			}
			continue
		case *redis.Message:
			msg = v
		default:
			continue
		}
		if msg.Channel == r.prefix+controlChannel {
			continue
		}

		var env domain.Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			r.log.WithError(err).WithField("channel", msg.Channel).Warn("Dropping undecodable envelope")
			continue
		}
		r.registry.Dispatch(env)
	}
}

func (r *Relay) Close() error {
	r.cancel()
	err := r.pubsub.Close()
	<-r.done
	if cerr := r.sub.Close(); err == nil {
		err = cerr
	}
	return err
}

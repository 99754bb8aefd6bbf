// Package relaytest provides a recording relay subscriber for tests.
package relaytest

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"chat-relay/internal/domain"

	"github.com/google/uuid"
)

// Recorder is a Subscriber that buffers every envelope it receives.
type Recorder struct {
	id string
	ch chan domain.Envelope

	mu  sync.Mutex
	all []domain.Envelope
}

func NewRecorder() *Recorder {
	return &Recorder{id: uuid.New().String(), ch: make(chan domain.Envelope, 64)}
}

func (r *Recorder) ID() string {
	return r.id
}

func (r *Recorder) Deliver(env domain.Envelope) bool {
	r.mu.Lock()
	r.all = append(r.all, env)
	r.mu.Unlock()

	select {
	case r.ch <- env:
		return true
	default:
		return false
	}
}

// Next waits for the next envelope or fails the test after timeout.
func (r *Recorder) Next(t *testing.T, timeout time.Duration) domain.Envelope {
	t.Helper()
	select {
	case env := <-r.ch:
		return env
	case <-time.After(timeout):
		t.Fatalf("subscriber %s: no envelope within %s", r.id, timeout)
		return domain.Envelope{}
	}
}

// Try returns the next envelope if one arrives within timeout.
func (r *Recorder) Try(timeout time.Duration) (domain.Envelope, bool) {
	select {
	case env := <-r.ch:
		return env, true
	case <-time.After(timeout):
		return domain.Envelope{}, false
	}
}

// Drain discards buffered envelopes that were not read yet.
func (r *Recorder) Drain() {
	for {
		select {
		case <-r.ch:
		default:
			return
		}
	}
}

// Count returns how many envelopes were delivered so far.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.all)
}

// Decode unmarshals env.Data into v or fails the test.
func Decode(t *testing.T, env domain.Envelope, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode %s payload: %v", env.Event, err)
	}
}

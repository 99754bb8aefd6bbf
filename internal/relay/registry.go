package relay

import (
	"sync"

	"chat-relay/internal/domain"
)

// Registry tracks which local subscribers joined which addresses. It is the
// only process-wide connection state.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Subscriber // address -> subscriber id -> subscriber
	joined map[string]map[string]bool       // subscriber id -> addresses
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[string]map[string]Subscriber),
		joined: make(map[string]map[string]bool),
	}
}

// Add subscribes sub to address. first is true when address had no local
// subscribers before.
func (r *Registry) Add(address string, sub Subscriber) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.rooms[address]
	if !ok {
		subs = make(map[string]Subscriber)
		r.rooms[address] = subs
		first = true
	}
	subs[sub.ID()] = sub

	addrs, ok := r.joined[sub.ID()]
	if !ok {
		addrs = make(map[string]bool)
		r.joined[sub.ID()] = addrs
	}
	addrs[address] = true
	return first
}

// Remove unsubscribes sub from address. last is true when address has no
// local subscribers left.
func (r *Registry) Remove(address string, sub Subscriber) (last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(address, sub.ID())
}

// RemoveAll unsubscribes sub everywhere and returns the addresses that lost
// their last local subscriber.
func (r *Registry) RemoveAll(sub Subscriber) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var emptied []string
	for address := range r.joined[sub.ID()] {
		if r.removeLocked(address, sub.ID()) {
			emptied = append(emptied, address)
		}
	}
	delete(r.joined, sub.ID())
	return emptied
}

func (r *Registry) removeLocked(address, id string) bool {
	subs, ok := r.rooms[address]
	if !ok {
		return false
	}
	if _, ok := subs[id]; !ok {
		return false
	}
	delete(subs, id)
	if addrs, ok := r.joined[id]; ok {
		delete(addrs, address)
		if len(addrs) == 0 {
			delete(r.joined, id)
		}
	}
	if len(subs) == 0 {
		delete(r.rooms, address)
		return true
	}
	return false
}

// Dispatch hands env to every local subscriber of its address except
// env.ExceptConn and returns how many accepted it.
func (r *Registry) Dispatch(env domain.Envelope) int {
	r.mu.RLock()
	subs := make([]Subscriber, 0, len(r.rooms[env.Address]))
	for id, sub := range r.rooms[env.Address] {
		if id == env.ExceptConn {
			continue
		}
		subs = append(subs, sub)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, sub := range subs {
		if sub.Deliver(env) {
			delivered++
		}
	}
	return delivered
}

// IsJoined reports whether sub is subscribed to address in this process.
func (r *Registry) IsJoined(address string, sub Subscriber) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[address][sub.ID()]
	return ok
}

// Addresses returns every address with at least one local subscriber.
func (r *Registry) Addresses() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.rooms))
	for address := range r.rooms {
		out = append(out, address)
	}
	return out
}

// Count returns the number of local subscribers of address.
func (r *Registry) Count(address string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[address])
}

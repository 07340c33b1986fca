// Package registry keeps the local index of notification requests that were
// accepted and have not been cancelled or fired yet.
//
// A Registry is not safe for concurrent use; its owner serializes access.
package registry

import (
	"iter"

	"github.com/insider-one/local-notifications/internal/domain"
)

// Registry maps identifiers to pending requests
type Registry struct {
	pending map[string]domain.NotificationRequest
}

// New creates an empty Registry
func New() *Registry {
	return &Registry{pending: make(map[string]domain.NotificationRequest)}
}

// Add stores req under its identifier. An existing entry with the same
// identifier is replaced and replaced is true.
func (r *Registry) Add(req domain.NotificationRequest) (replaced bool) {
	_, replaced = r.pending[req.ID]
	r.pending[req.ID] = req.Clone()
	return replaced
}

// Remove drops the entry for id. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) bool {
	if _, ok := r.pending[id]; !ok {
		return false
	}
	delete(r.pending, id)
	return true
}

// Clear drops every entry and returns how many there were.
func (r *Registry) Clear() int {
	n := len(r.pending)
	if n > 0 {
		clear(r.pending)
	}
	return n
}

func (r *Registry) Get(id string) (domain.NotificationRequest, bool) {
	req, ok := r.pending[id]
	if !ok {
		return domain.NotificationRequest{}, false
	}
	return req.Clone(), true
}

func (r *Registry) Len() int {
	return len(r.pending)
}

// List returns a snapshot taken now. The sequence can be ranged over any
// number of times and is unaffected by later mutations. Order is unspecified.
func (r *Registry) List() iter.Seq[domain.NotificationRequest] {
	snapshot := make([]domain.NotificationRequest, 0, len(r.pending))
	for _, req := range r.pending {
		snapshot = append(snapshot, req.Clone())
	}

	return func(yield func(domain.NotificationRequest) bool) {
		for _, req := range snapshot {
			if !yield(req.Clone()) {
				return
			}
		}
	}
}

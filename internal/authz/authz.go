// Package authz defines the authorization contract consulted before
// every acknowledgment write. The actor's identity travels as an
// explicit Context value passed into each call; there is no ambient
// global actor state.
package authz

import (
	"context"
	"sync"
)

// CapabilityAcknowledge is required to create or undo ack records.
const CapabilityAcknowledge = "acknowledge"

// Context identifies the acting user for a single request.
type Context struct {
	Actor        string
	Capabilities []string
}

// Has reports whether the actor holds the named capability.
func (c Context) Has(capability string) bool {
	for _, have := range c.Capabilities {
		if have == capability {
			return true
		}
	}
	return false
}

// Authorizer is the external authorization collaborator.
type Authorizer interface {
	CanAcknowledge(ctx context.Context, actor Context, caseID string) (bool, error)
}

// Static authorizes from a fixed actor -> capabilities table, plus the
// capabilities carried on the request context itself. Suitable for
// wiring and tests; production deployments swap in a real collaborator.
type Static struct {
	mu    sync.RWMutex
	table map[string][]string
}

// NewStatic builds a Static authorizer from an actor -> capabilities map.
func NewStatic(table map[string][]string) *Static {
	cp := make(map[string][]string, len(table))
	for actor, caps := range table {
		cp[actor] = append([]string(nil), caps...)
	}
	return &Static{table: cp}
}

// CanAcknowledge implements Authorizer.
func (s *Static) CanAcknowledge(_ context.Context, actor Context, _ string) (bool, error) {
	if actor.Has(CapabilityAcknowledge) {
		return true, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, capability := range s.table[actor.Actor] {
		if capability == CapabilityAcknowledge {
			return true, nil
		}
	}
	return false, nil
}

// Grant adds capabilities for an actor.
func (s *Static) Grant(actor string, capabilities ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table[actor] = append(s.table[actor], capabilities...)
}

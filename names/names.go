// Package names resolves member ids to display names for status messages.
//
// Lookups are best effort: a missing name is reported with ok=false and never
// as an error, so a member who left the platform cannot break a notification.
package names

import (
	"context"
	"sync"
)

// Placeholder is shown for members whose name cannot be resolved.
const Placeholder = "(unknown)"

// Resolver looks up the display name of a member.
type Resolver interface {
	DisplayName(ctx context.Context, id string) (string, bool)
}

// Directory is a Resolver that can also learn names as members are seen.
type Directory interface {
	Resolver
	Remember(ctx context.Context, id, name string)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, id string) (string, bool)

// DisplayName calls f.
func (f ResolverFunc) DisplayName(ctx context.Context, id string) (string, bool) { return f(ctx, id) }

// Memory is an in-process Directory.
type Memory struct {
	mu    sync.RWMutex
	names map[string]string
}

// NewMemory returns an empty Memory directory.
func NewMemory() *Memory {
	return &Memory{names: make(map[string]string)}
}

// Remember stores name for id. Empty values are ignored.
func (m *Memory) Remember(_ context.Context, id, name string) {
	if id == "" || name == "" {
		return
	}
	m.mu.Lock()
	m.names[id] = name
	m.mu.Unlock()
}

// DisplayName returns the remembered name for id.
func (m *Memory) DisplayName(_ context.Context, id string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.names[id]
	return n, ok
}

// Chain tries each resolver in order. Remember is forwarded to every member
// that is also a Directory.
type Chain []Resolver

// DisplayName returns the first name found.
func (c Chain) DisplayName(ctx context.Context, id string) (string, bool) {
	for _, r := range c {
		if r == nil {
			continue
		}
		if n, ok := r.DisplayName(ctx, id); ok && n != "" {
			return n, true
		}
	}
	return "", false
}

// Remember forwards to every Directory in the chain.
func (c Chain) Remember(ctx context.Context, id, name string) {
	for _, r := range c {
		if d, ok := r.(Directory); ok {
			d.Remember(ctx, id, name)
		}
	}
}

// ResolveAll maps ids to names in order, substituting Placeholder for misses.
func ResolveAll(ctx context.Context, r Resolver, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		n, ok := "", false
		if r != nil {
			n, ok = r.DisplayName(ctx, id)
		}
		if !ok || n == "" {
			n = Placeholder
		}
		out = append(out, n)
	}
	return out
}

// Package adapters defines the boundary between the worker and the
// third-party generation services. Each algorithm maps to one Adapter;
// everything remote (upload, poll, parse) lives behind Execute.
package adapters

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// JobSpec is the input handed to an adapter for one generation job.
type JobSpec struct {
	RunID      string
	Algorithm  string
	ProductID  string
	Variant    string
	JobID      string
	InputPaths []string // absolute, canonical order
	OutputDir  string   // absolute; adapters may write here directly
}

// Result is a successful adapter execution. OutputRef is either a local
// file path or an http(s) URL to stream-download.
type Result struct {
	OutputRef         string
	PreviewRefs       []string
	ProviderRequestID string
	StartedAt         time.Time
	FinishedAt        time.Time
}

// Adapter executes one generation job. Implementations must return an
// *Error (transient or permanent) on failure so the worker can decide
// whether to retry.
type Adapter interface {
	Execute(ctx context.Context, spec JobSpec) (*Result, error)
}

// Registry maps algorithm adapter keys to implementations. Concrete
// adapters register at startup; an unknown key is a configuration
// error, not a crash.
type Registry struct {
	mu sync.RWMutex
	m  map[string]Adapter
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{m: make(map[string]Adapter)}
}

// Register binds an adapter to a key, replacing any previous binding.
func (r *Registry) Register(key string, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[key] = a
}

// Lookup returns the adapter for key. A missing key yields a permanent
// error naming the registered keys.
func (r *Registry) Lookup(key string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.m[key]; ok {
		return a, nil
	}
	return nil, Permanent(fmt.Sprintf("no adapter registered for %q (have %v)", key, r.Keys()), nil)
}

// Keys returns the registered adapter keys, sorted.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.m))
	for k := range r.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Package session holds the per-session artifact namespaces and hands
// them to archivers when a session ends.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dyike/cortexanalyst/models"
)

var (
	ErrSessionOpen   = errors.New("session already open")
	ErrSessionClosed = errors.New("session not open")
)

// NewID returns a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}

// Artifacts is one session's key to text store. Reads observe every
// completed write.
type Artifacts struct {
	mu    sync.RWMutex
	items map[string]string
}

func newArtifacts() *Artifacts {
	return &Artifacts{items: make(map[string]string)}
}

func (a *Artifacts) Put(key, value string) {
	a.mu.Lock()
	a.items[key] = value
	a.mu.Unlock()
}

func (a *Artifacts) Get(key string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.items[key]
	return v, ok
}

func (a *Artifacts) Delete(key string) {
	a.mu.Lock()
	delete(a.items, key)
	a.mu.Unlock()
}

func (a *Artifacts) Keys() []string {
	a.mu.RLock()
	keys := make([]string, 0, len(a.items))
	for k := range a.items {
		keys = append(keys, k)
	}
	a.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Snapshot returns a copy detached from later writes.
func (a *Artifacts) Snapshot() map[string]string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]string, len(a.items))
	for k, v := range a.items {
		out[k] = v
	}
	return out
}

// Record is what an archiver receives for a finished session.
type Record struct {
	Summary   models.SessionSummary
	Artifacts map[string]string
}

// An Archiver persists a finished session in one all-or-nothing step.
type Archiver interface {
	Archive(ctx context.Context, rec Record) error
}

// Registry owns the namespaces of all live sessions.
type Registry struct {
	mu        sync.Mutex
	open      map[string]*Artifacts
	archivers []Archiver
}

func NewRegistry(archivers ...Archiver) *Registry {
	r := &Registry{open: make(map[string]*Artifacts)}
	for _, a := range archivers {
		if a != nil {
			r.archivers = append(r.archivers, a)
		}
	}
	return r
}

// Open creates the namespace of session id.
func (r *Registry) Open(id string) (*Artifacts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.open[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionOpen, id)
	}
	a := newArtifacts()
	r.open[id] = a
	return a, nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.open)
}

// Close removes the namespace of rec.Summary.Session. When archive is set
// its snapshot goes to every archiver; otherwise it is discarded. Every
// archiver runs even if an earlier one failed.
func (r *Registry) Close(ctx context.Context, rec Record, archive bool) error {
	id := rec.Summary.Session
	r.mu.Lock()
	a, ok := r.open[id]
	delete(r.open, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionClosed, id)
	}
	if !archive || len(r.archivers) == 0 {
		return nil
	}

	rec.Artifacts = a.Snapshot()
	var errs []error
	for _, ar := range r.archivers {
		if err := ar.Archive(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

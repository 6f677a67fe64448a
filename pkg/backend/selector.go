package backend

import (
	"context"
	"sync"
	"time"

	"diagramport/pkg/errors"
)

// DefaultProbeTTL is how long a cached probe result stays valid.
const DefaultProbeTTL = 30 * time.Second

// probeResult is one cached capability check.
type probeResult struct {
	ok bool
	at time.Time
}

// Selector resolves a usable backend per job, preferring earlier entries
// in its priority-ordered backend list.
//
// Probe results are cached for a validity window: probing may spawn a
// process or instantiate an engine, which is too expensive to repeat for
// every job in a batch, but availability can also change mid-session, so
// stale results expire. A backend's cached probe is additionally
// invalidated on its first render failure.
//
// Resolve mutates nothing beyond the internal probe cache, which is
// mutex-guarded; it is safe to call concurrently from multiple jobs.
type Selector struct {
	backends []Backend
	ttl      time.Duration

	mu     sync.Mutex
	probes map[string]probeResult
}

// NewSelector creates a selector over the given priority-ordered backends.
// A ttl of zero means DefaultProbeTTL.
func NewSelector(ttl time.Duration, backends ...Backend) *Selector {
	if ttl == 0 {
		ttl = DefaultProbeTTL
	}
	return &Selector{
		backends: backends,
		ttl:      ttl,
		probes:   make(map[string]probeResult),
	}
}

// NewDefaultSelector creates a selector over the standard backend pair:
// the mermaid CLI first, the embedded engine as fallback.
func NewDefaultSelector(ttl time.Duration) *Selector {
	return NewSelector(ttl, NewCLIBackend(), NewEmbeddedBackend())
}

// Backends returns the priority-ordered backend list.
func (s *Selector) Backends() []Backend {
	return s.backends
}

// Resolve returns a usable backend. If preferred names a known backend
// whose probe succeeds, that backend is returned; otherwise the first
// backend in priority order whose probe succeeds wins. If none probe
// successfully the selection fails with STRATEGY_UNAVAILABLE.
func (s *Selector) Resolve(ctx context.Context, preferred string) (Backend, error) {
	if preferred != "" {
		for _, b := range s.backends {
			if b.Name() == preferred && s.probe(ctx, b) {
				return b, nil
			}
		}
	}

	for _, b := range s.backends {
		if s.probe(ctx, b) {
			return b, nil
		}
	}

	return nil, errors.New(errors.ErrCodeStrategyUnavailable,
		"no rendering backend available (tried %d)", len(s.backends))
}

// Render resolves a backend and renders, retrying once against the next
// candidate when the resolved backend's render call itself fails. This
// covers backends that pass probing but fail at render time, e.g. on
// malformed input they cannot recover from safely or transient resource
// exhaustion. The name of the backend that produced the bytes is returned
// alongside them.
func (s *Selector) Render(ctx context.Context, text string, opts RenderOptions, preferred string) ([]byte, string, error) {
	first, err := s.Resolve(ctx, preferred)
	if err != nil {
		return nil, "", err
	}

	data, renderErr := first.Render(ctx, text, opts)
	if renderErr == nil {
		return data, first.Name(), nil
	}

	// The backend probed fine but failed to render; drop its cached
	// probe so the next job re-checks it.
	s.Invalidate(first.Name())

	next := s.nextCandidate(ctx, first.Name())
	if next == nil {
		return nil, "", renderErr
	}

	data, err = next.Render(ctx, text, opts)
	if err != nil {
		// Surface the original failure; the fallback's error is usually
		// less specific (it may not understand the grammar at all).
		return nil, "", renderErr
	}
	return data, next.Name(), nil
}

// Invalidate drops the cached probe result for a backend, forcing a fresh
// probe on next resolution.
func (s *Selector) Invalidate(name string) {
	s.mu.Lock()
	delete(s.probes, name)
	s.mu.Unlock()
}

// probe runs a capability check through the TTL cache.
func (s *Selector) probe(ctx context.Context, b Backend) bool {
	name := b.Name()

	s.mu.Lock()
	cached, ok := s.probes[name]
	s.mu.Unlock()
	if ok && time.Since(cached.at) < s.ttl {
		return cached.ok
	}

	result := b.Probe(ctx)

	s.mu.Lock()
	s.probes[name] = probeResult{ok: result, at: time.Now()}
	s.mu.Unlock()
	return result
}

// nextCandidate returns the first probing backend after skip in priority
// order, or nil when no other backend is usable.
func (s *Selector) nextCandidate(ctx context.Context, skip string) Backend {
	for _, b := range s.backends {
		if b.Name() == skip {
			continue
		}
		if s.probe(ctx, b) {
			return b
		}
	}
	return nil
}

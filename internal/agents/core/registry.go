package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

var (
	// ErrDuplicateKey is returned when a key is already registered.
	ErrDuplicateKey = errors.New("duplicate agent key")
	// ErrNilAgent is returned when a descriptor carries no agent.
	ErrNilAgent = errors.New("descriptor has no agent")
	// ErrAgentNotFound is returned for unknown keys.
	ErrAgentNotFound = errors.New("agent not found")
)

// Registry maps keys to descriptors. It is immutable once built and safe for
// concurrent reads.
type Registry struct {
	byKey map[string]Descriptor
	order []string
}

// Get returns the descriptor for key.
func (r *Registry) Get(key string) (Descriptor, bool) {
	d, ok := r.byKey[key]
	return d, ok
}

// Lookup returns the descriptor for key or ErrAgentNotFound.
func (r *Registry) Lookup(key string) (Descriptor, error) {
	d, ok := r.byKey[key]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrAgentNotFound, key)
	}
	return d, nil
}

// Len returns the number of entries.
func (r *Registry) Len() int { return len(r.order) }

// Keys returns all keys sorted.
func (r *Registry) Keys() []string {
	keys := append([]string(nil), r.order...)
	sort.Strings(keys)
	return keys
}

// Order returns keys in insertion order.
func (r *Registry) Order() []string {
	return append([]string(nil), r.order...)
}

// Descriptors returns every descriptor sorted by key.
func (r *Registry) Descriptors() []Descriptor {
	keys := r.Keys()
	out := make([]Descriptor, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.byKey[k])
	}
	return out
}

// Builder assembles a Registry. The first descriptor for a key wins.
type Builder struct {
	byKey map[string]Descriptor
	order []string
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{byKey: make(map[string]Descriptor)}
}

// Add inserts d. It rejects descriptors without an agent and keys that are
// already present.
func (b *Builder) Add(d Descriptor) error {
	if d.Agent == nil {
		return fmt.Errorf("%w: %s", ErrNilAgent, d.Key)
	}
	if existing, ok := b.byKey[d.Key]; ok {
		return fmt.Errorf("%w: %s (already provided by %s)", ErrDuplicateKey, d.Key, existing.Source)
	}
	b.byKey[d.Key] = d
	b.order = append(b.order, d.Key)
	return nil
}

// Has reports whether key is already present.
func (b *Builder) Has(key string) bool {
	_, ok := b.byKey[key]
	return ok
}

// Build returns the assembled Registry. The builder may keep being used; the
// returned Registry does not observe later additions.
func (b *Builder) Build() *Registry {
	byKey := make(map[string]Descriptor, len(b.byKey))
	for k, d := range b.byKey {
		byKey[k] = d
	}
	return &Registry{byKey: byKey, order: append([]string(nil), b.order...)}
}

// Factory creates a compiled-in agent.
type Factory func(ctx context.Context, b AgentBuilder) (Agent, error)

// Kinds of manifest entries.
const (
	KindAgent = "agent"
	KindTeam  = "team"
)

// ManifestEntry describes a compiled-in agent.
type ManifestEntry struct {
	ID          string
	Kind        string
	Name        string
	Description string
	Examples    []string
	Factory     Factory
}

var (
	manifest   = make(map[string]ManifestEntry)
	manifestMu sync.RWMutex
)

// RegisterAgent registers a compiled-in agent. Called from init functions.
func RegisterAgent(id string, factory Factory, name, description string, examples ...string) {
	register(ManifestEntry{ID: id, Kind: KindAgent, Name: name, Description: description, Examples: examples, Factory: factory})
}

// RegisterTeam registers a compiled-in team. Called from init functions.
func RegisterTeam(id string, factory Factory, name, description string, examples ...string) {
	register(ManifestEntry{ID: id, Kind: KindTeam, Name: name, Description: description, Examples: examples, Factory: factory})
}

func register(e ManifestEntry) {
	manifestMu.Lock()
	defer manifestMu.Unlock()
	if _, ok := manifest[e.ID]; ok {
		panic(fmt.Sprintf("core: agent %q registered twice", e.ID))
	}
	manifest[e.ID] = e
}

// Manifest returns the compiled-in entries sorted by ID.
func Manifest() []ManifestEntry {
	manifestMu.RLock()
	defer manifestMu.RUnlock()
	out := make([]ManifestEntry, 0, len(manifest))
	for _, e := range manifest {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetManifestEntry returns the compiled-in entry for id.
func GetManifestEntry(id string) (ManifestEntry, bool) {
	manifestMu.RLock()
	defer manifestMu.RUnlock()
	e, ok := manifest[id]
	return e, ok
}

// Instantiate creates the agent for a manifest entry.
func (e ManifestEntry) Instantiate(ctx context.Context, b AgentBuilder) (Agent, error) {
	a, err := e.Factory(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", e.ID, err)
	}
	if a == nil {
		return nil, fmt.Errorf("%w: %s", ErrNilAgent, e.ID)
	}
	return a, nil
}

// AddBuiltins instantiates every manifest entry into b. Entries that fail to
// build are logged and skipped; the number added is returned.
func AddBuiltins(ctx context.Context, b *Builder, ab AgentBuilder, log *slog.Logger) int {
	added := 0
	for _, e := range Manifest() {
		a, err := e.Instantiate(ctx, ab)
		if err != nil {
			log.Warn("builtin agent unavailable", "key", e.ID, "error", err)
			continue
		}
		d := Describe(e.ID, a, SourceBuiltin, e.Examples)
		if err := b.Add(d); err != nil {
			log.Warn("builtin agent rejected", "key", e.ID, "error", err)
			continue
		}
		added++
	}
	return added
}

package provider

import (
	"context"
	"sort"
	"sync"
	"time"

	log "github.com/inboxmux/inboxmux/internal/logging"
)

// performanceOrder ranks adapters by observed real-world latency, fastest
// first. SelectBest prefers earlier entries among capability-eligible
// adapters; adapters not listed here sort after every listed one.
var performanceOrder = []string{
	"mailtm",
	"onesec",
	"guerrilla",
}

func performanceRank(name string) int {
	for i, n := range performanceOrder {
		if n == name {
			return i
		}
	}
	return len(performanceOrder)
}

// RouteConfig is the externally supplied routing state for one adapter.
type RouteConfig struct {
	Enabled  bool
	Priority int
}

type registration struct {
	provider Provider
	route    RouteConfig
}

// Registry holds the registered adapters and routes operations to them.
// Construct with NewRegistry; there is no package-level instance.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registration
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registration)}
}

// Register adds an adapter under its Name. Registering the same name again
// replaces the previous adapter; last registration wins.
func (r *Registry) Register(p Provider, route RouteConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := p.Name()
	if _, exists := r.entries[name]; exists {
		log.Warnf("provider %q re-registered, replacing previous adapter", name)
	}
	r.entries[name] = &registration{provider: p, route: route}
}

// SetRouteConfig updates the routing state of a registered adapter, used on
// configuration reload. Unknown names are ignored.
func (r *Registry) SetRouteConfig(name string, route RouteConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg, ok := r.entries[name]; ok {
		reg.route = route
	}
}

// Provider returns the adapter registered under name, or nil.
func (r *Registry) Provider(name string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if reg, ok := r.entries[name]; ok {
		return reg.provider
	}
	return nil
}

// Names returns every registered adapter name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Enabled returns the enabled adapters ordered by ascending priority.
// Adapters sharing a priority keep a stable name order.
func (r *Registry) Enabled() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	regs := make([]*registration, 0, len(r.entries))
	for _, reg := range r.entries {
		if reg.route.Enabled {
			regs = append(regs, reg)
		}
	}
	sort.SliceStable(regs, func(i, j int) bool {
		if regs[i].route.Priority != regs[j].route.Priority {
			return regs[i].route.Priority < regs[j].route.Priority
		}
		return regs[i].provider.Name() < regs[j].provider.Name()
	})

	providers := make([]Provider, len(regs))
	for i, reg := range regs {
		providers[i] = reg.provider
	}
	return providers
}

// SelectBest picks the preferred adapter among enabled ones that satisfy the
// required capabilities. Capability fit is a hard filter; among the fits the
// fixed performance ranking decides, falling back to configured priority for
// unranked adapters. Returns nil when nothing qualifies.
func (r *Registry) SelectBest(required *Capabilities) Provider {
	eligible := make([]Provider, 0, 4)
	for _, p := range r.Enabled() {
		if p.Capabilities().Satisfies(required) {
			eligible = append(eligible, p)
		}
	}
	if len(eligible) == 0 {
		return nil
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return performanceRank(eligible[i].Name()) < performanceRank(eligible[j].Name())
	})
	return eligible[0]
}

// ResolveByAddress finds the adapter serving the address's domain. Adapters'
// own Domains() lists are consulted first, then the static well-known table.
// Only enabled adapters are considered. Returns nil when no adapter claims
// the domain.
func (r *Registry) ResolveByAddress(address string) Provider {
	domain := domainOf(address)
	if domain == "" {
		return nil
	}

	enabled := r.Enabled()
	for _, p := range enabled {
		for _, d := range p.Domains() {
			if domain == d {
				return p
			}
		}
	}
	if name, ok := wellKnownDomains[domain]; ok {
		for _, p := range enabled {
			if p.Name() == name {
				return p
			}
		}
	}
	return nil
}

// AllHealth collects a health snapshot from every registered adapter,
// enabled or not, fanning out concurrently. A panicking adapter yields a
// synthetic error snapshot instead of taking the whole call down.
func (r *Registry) AllHealth(ctx context.Context) map[string]HealthSnapshot {
	r.mu.RLock()
	regs := make([]*registration, 0, len(r.entries))
	for _, reg := range r.entries {
		regs = append(regs, reg)
	}
	r.mu.RUnlock()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		out = make(map[string]HealthSnapshot, len(regs))
	)
	for _, reg := range regs {
		wg.Add(1)
		go func(reg *registration) {
			defer wg.Done()
			name := reg.provider.Name()
			snap := safeHealth(ctx, reg.provider)
			mu.Lock()
			out[name] = snap
			mu.Unlock()
		}(reg)
	}
	wg.Wait()
	return out
}

func safeHealth(ctx context.Context, p Provider) (snap HealthSnapshot) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("health check for %q panicked: %v", p.Name(), rec)
			snap = HealthSnapshot{
				Provider:    p.Name(),
				Status:      StatusError,
				LastChecked: time.Now(),
				LastError:   "health check panicked",
			}
		}
	}()
	return p.Health(ctx)
}

// AllStatistics collects cumulative statistics from every registered adapter.
func (r *Registry) AllStatistics() map[string]Statistics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Statistics, len(r.entries))
	for name, reg := range r.entries {
		out[name] = reg.provider.Statistics()
	}
	return out
}

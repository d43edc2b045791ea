// Package registry is the process-wide service registry: long-lived services
// registered by definition, looked up by name, health-checked under per
// service circuit breakers.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/kickai/kickai/internal/domain"
)

// Sentinel errors. Callers match with errors.Is.
var (
	ErrServiceNotFound   = errors.New("service not found")
	ErrAlreadyRegistered = errors.New("service already registered")
	ErrCircuitOpen       = errors.New("circuit breaker open")
	ErrNoChecker         = errors.New("no health checker supports service")
)

// Checker is a health-check plug-in. The first registered checker whose
// Supports returns true for a service name runs the probe.
type Checker interface {
	Supports(name string) bool
	Check(ctx context.Context, name string, instance any) domain.ServiceHealth
}

// Config tunes the registry.
type Config struct {
	DefaultTimeout time.Duration
	Breaker        BreakerConfig
	Logger         *slog.Logger
}

type entry struct {
	def      domain.ServiceDefinition
	instance any
	breaker  *breaker
}

// Registry is safe for concurrent use: mutations serialize under a write
// lock, lookups run concurrently, and each service's breaker has its own
// lock so health checks never contend across services.
type Registry struct {
	mu       sync.RWMutex
	services map[string]*entry
	health   map[string]domain.ServiceHealth
	checkers []Checker

	cfg    Config
	logger *slog.Logger
}

// New creates an empty registry.
func New(cfg Config) *Registry {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		services: make(map[string]*entry),
		health:   make(map[string]domain.ServiceHealth),
		cfg:      cfg,
		logger:   logger,
	}
}

// AddChecker appends a health-check plug-in. Order matters: the first
// supporting checker wins.
func (r *Registry) AddChecker(c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers = append(r.checkers, c)
}

// Register adds a service under its definition name. A definition and its
// instance are stored atomically; observers never see one without the other.
func (r *Registry) Register(def domain.ServiceDefinition, instance any) error {
	if def.Name == "" {
		return fmt.Errorf("register service: name must be non-empty")
	}
	if def.ServiceType == "" {
		def.ServiceType = domain.ServiceTypeUtility
	}
	if def.Timeout <= 0 {
		def.Timeout = r.cfg.DefaultTimeout
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.services[def.Name]; dup {
		return fmt.Errorf("register %q: %w", def.Name, ErrAlreadyRegistered)
	}
	r.services[def.Name] = &entry{
		def:      def,
		instance: instance,
		breaker:  newBreaker(r.cfg.Breaker),
	}
	r.logger.Debug("service registered", "service", def.Name, "type", def.ServiceType)
	return nil
}

// Get returns the registered instance for name.
func (r *Registry) Get(name string) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.services[name]
	if !ok {
		return nil, fmt.Errorf("get %q: %w", name, ErrServiceNotFound)
	}
	return e.instance, nil
}

// Definition returns the registered definition for name.
func (r *Registry) Definition(name string) (domain.ServiceDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.services[name]
	if !ok {
		return domain.ServiceDefinition{}, fmt.Errorf("definition %q: %w", name, ErrServiceNotFound)
	}
	return e.def, nil
}

// Definitions returns all registered definitions sorted by name.
func (r *Registry) Definitions() []domain.ServiceDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]domain.ServiceDefinition, 0, len(r.services))
	for _, e := range r.services {
		defs = append(defs, e.def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Names returns all registered service names sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Health returns the cached health record for name, if any check ran yet.
func (r *Registry) Health(name string) (domain.ServiceHealth, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.health[name]
	return h, ok
}

// CheckHealth probes one service under its circuit breaker. The result is
// cached and returned; an open breaker yields ErrCircuitOpen without
// touching the service. Probe failures are recorded, never panicked.
func (r *Registry) CheckHealth(ctx context.Context, name string) (domain.ServiceHealth, error) {
	r.mu.RLock()
	e, ok := r.services[name]
	checkers := r.checkers
	r.mu.RUnlock()
	if !ok {
		return domain.ServiceHealth{}, fmt.Errorf("check %q: %w", name, ErrServiceNotFound)
	}

	if !e.def.HealthCheckEnabled {
		h := domain.ServiceHealth{
			Name:      name,
			Status:    domain.HealthStatusDisabled,
			LastCheck: time.Now(),
		}
		r.storeHealth(h)
		return h, nil
	}

	if !e.breaker.Allow() {
		return domain.ServiceHealth{}, fmt.Errorf("check %q: %w", name, ErrCircuitOpen)
	}

	h := r.probe(ctx, e, checkers)
	if h.Healthy() {
		e.breaker.RecordSuccess()
	} else {
		e.breaker.RecordFailure()
	}
	r.storeHealth(h)
	return h, nil
}

// probe runs the first supporting checker under the definition timeout. A
// deadline overrun produces an unhealthy record rather than a stuck caller.
func (r *Registry) probe(ctx context.Context, e *entry, checkers []Checker) domain.ServiceHealth {
	name := e.def.Name
	var chk Checker
	for _, c := range checkers {
		if c.Supports(name) {
			chk = c
			break
		}
	}
	if chk == nil {
		return domain.ServiceHealth{
			Name:         name,
			Status:       domain.HealthStatusUnknown,
			LastCheck:    time.Now(),
			ErrorMessage: ErrNoChecker.Error(),
		}
	}

	timeout := e.def.Timeout
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan domain.ServiceHealth, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- domain.ServiceHealth{
					Name:         name,
					Status:       domain.HealthStatusUnhealthy,
					ErrorMessage: fmt.Sprintf("health check panic: %v", rec),
				}
			}
		}()
		done <- chk.Check(checkCtx, name, e.instance)
	}()

	select {
	case h := <-done:
		h.Name = name
		h.LastCheck = time.Now()
		if h.ResponseTime == 0 {
			h.ResponseTime = time.Since(start)
		}
		return h
	case <-checkCtx.Done():
		return domain.ServiceHealth{
			Name:         name,
			Status:       domain.HealthStatusUnhealthy,
			LastCheck:    time.Now(),
			ResponseTime: time.Since(start),
			ErrorMessage: fmt.Sprintf("Health check timeout after %gs", timeout.Seconds()),
		}
	}
}

func (r *Registry) storeHealth(h domain.ServiceHealth) {
	r.mu.Lock()
	r.health[h.Name] = h
	r.mu.Unlock()
}

// CheckAll fans out per-service checks concurrently. Individual failures
// (including open breakers) become unhealthy records; the bulk check itself
// never fails.
func (r *Registry) CheckAll(ctx context.Context) map[string]domain.ServiceHealth {
	names := r.Names()
	results := make(map[string]domain.ServiceHealth, len(names))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			h, err := r.CheckHealth(ctx, name)
			if err != nil {
				h = domain.ServiceHealth{
					Name:         name,
					Status:       domain.HealthStatusUnhealthy,
					LastCheck:    time.Now(),
					ErrorMessage: err.Error(),
				}
			}
			mu.Lock()
			results[name] = h
			mu.Unlock()
		}(name)
	}
	wg.Wait()
	return results
}

// Stats aggregates registration and health counts.
type Stats struct {
	Total    int            `json:"total"`
	ByType   map[string]int `json:"by_type"`
	ByHealth map[string]int `json:"by_health"`
}

// Stats returns totals by service type and by last-known health status.
// Services never checked count as unknown.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{
		Total:    len(r.services),
		ByType:   make(map[string]int),
		ByHealth: make(map[string]int),
	}
	for name, e := range r.services {
		s.ByType[e.def.ServiceType]++
		if h, ok := r.health[name]; ok {
			s.ByHealth[h.Status]++
		} else {
			s.ByHealth[domain.HealthStatusUnknown]++
		}
	}
	return s
}

// BreakerState exposes a service's breaker state for diagnostics.
func (r *Registry) BreakerState(name string) (BreakerState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.services[name]
	if !ok {
		return BreakerClosed, fmt.Errorf("breaker %q: %w", name, ErrServiceNotFound)
	}
	return e.breaker.State(), nil
}

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kickai/kickai/internal/config"
	"github.com/kickai/kickai/internal/tools"
)

// Factory creates named processors. The service registry's agent checker
// exercises it by creating the diagnostic agent; the runtime uses it for the
// router's NL processor.
type Factory struct {
	cfg     config.AISettings
	catalog *tools.Registry
	logger  *slog.Logger

	mu     sync.Mutex
	agents map[string]*Processor
}

// NewFactory builds a factory over one AI configuration and tool catalog.
func NewFactory(cfg config.AISettings, catalog *tools.Registry, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{
		cfg:     cfg,
		catalog: catalog,
		logger:  logger,
		agents:  make(map[string]*Processor),
	}
}

// CreateAgent constructs and retains a named processor. Idempotent: an
// existing name is left as is. An unconfigured model backend is not an
// error here; the processor reports unavailable at use time.
func (f *Factory) CreateAgent(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("agent name must be non-empty")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.agents[name]; ok {
		return nil
	}
	f.agents[name] = NewProcessor(ctx, f.cfg, f.catalog, f.logger.With("agent", name))
	f.logger.Info("agent created", "agent", name)
	return nil
}

// Agent returns a previously created processor.
func (f *Factory) Agent(name string) (*Processor, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.agents[name]
	return p, ok
}

// Names returns the created agent names.
func (f *Factory) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.agents))
	for n := range f.agents {
		names = append(names, n)
	}
	return names
}

package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/kickai/kickai/internal/bus"
	"github.com/kickai/kickai/internal/domain"
)

// MonitorConfig holds the periodic health monitor dependencies.
type MonitorConfig struct {
	Registry *Registry
	Bus      *bus.Bus
	Logger   *slog.Logger
	Interval time.Duration // defaults to 60s
	// OnResult receives each per-service record; used for metric recording.
	OnResult func(h domain.ServiceHealth)
}

// Monitor runs the registry bulk health check on a cron schedule and
// publishes health.checked events.
type Monitor struct {
	cfg  MonitorConfig
	cron *cronlib.Cron

	cancel context.CancelFunc
}

// NewMonitor creates a stopped monitor.
func NewMonitor(cfg MonitorConfig) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Monitor{cfg: cfg}
}

// Start schedules the periodic check and runs one immediately.
func (m *Monitor) Start(ctx context.Context) error {
	ctx, m.cancel = context.WithCancel(ctx)

	m.cron = cronlib.New()
	spec := fmt.Sprintf("@every %s", m.cfg.Interval)
	if _, err := m.cron.AddFunc(spec, func() { m.tick(ctx) }); err != nil {
		return fmt.Errorf("schedule health monitor: %w", err)
	}
	m.cron.Start()
	go m.tick(ctx)

	m.cfg.Logger.Info("health monitor started", "interval", m.cfg.Interval)
	return nil
}

// Stop halts the schedule and waits for a running tick to finish.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.cron != nil {
		<-m.cron.Stop().Done()
	}
	m.cfg.Logger.Info("health monitor stopped")
}

func (m *Monitor) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	results := m.cfg.Registry.CheckAll(ctx)

	unhealthy := 0
	for _, h := range results {
		if !h.Healthy() && h.Status != domain.HealthStatusDisabled {
			unhealthy++
			m.cfg.Logger.Warn("service unhealthy", "service", h.Name, "error", h.ErrorMessage)
		}
		if m.cfg.Bus != nil {
			m.cfg.Bus.Publish(bus.TopicHealthChecked, bus.HealthEvent{
				Service:      h.Name,
				Status:       h.Status,
				ResponseTime: h.ResponseTime.String(),
				Error:        h.ErrorMessage,
			})
		}
		if m.cfg.OnResult != nil {
			m.cfg.OnResult(h)
		}
	}
	m.cfg.Logger.Debug("health check pass complete", "services", len(results), "unhealthy", unhealthy)
}

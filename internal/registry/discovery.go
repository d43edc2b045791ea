package registry

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/kickai/kickai/internal/domain"
)

// Discovered pairs a service definition with its optional instance.
type Discovered struct {
	Definition domain.ServiceDefinition
	Instance   any
}

// Discovery enumerates services available for auto-registration.
type Discovery interface {
	Discover(ctx context.Context) ([]Discovered, error)
}

// Container is the in-process dependency container the container scanner
// enumerates.
type Container interface {
	ServiceNames() []string
	Resolve(name string) (any, bool)
}

// Classification keyword sets, checked in order: the first set with a token
// match decides the type.
var (
	coreKeywords     = []string{"store", "database", "container", "factory"}
	externalKeywords = []string{"telegram", "firebase", "llm", "client", "provider"}
	featureKeywords  = []string{"player", "team", "match", "attendance", "payment"}
)

// ClassifyServiceName assigns a service type from name tokens. Matching is
// word-boundary aware on snake_case names: "player_service" is a feature,
// "displayer" is not.
func ClassifyServiceName(name string) string {
	tokens := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	})
	has := func(keywords []string) bool {
		for _, tok := range tokens {
			for _, kw := range keywords {
				if tok == kw {
					return true
				}
			}
		}
		return false
	}
	switch {
	case has(coreKeywords):
		return domain.ServiceTypeCore
	case has(externalKeywords):
		return domain.ServiceTypeExternal
	case has(featureKeywords):
		return domain.ServiceTypeFeature
	default:
		return domain.ServiceTypeUtility
	}
}

// ContainerScanner discovers every service the container has constructed.
type ContainerScanner struct {
	Container Container
}

func (s ContainerScanner) Discover(_ context.Context) ([]Discovered, error) {
	if s.Container == nil {
		return nil, nil
	}
	var out []Discovered
	for _, name := range s.Container.ServiceNames() {
		instance, ok := s.Container.Resolve(name)
		if !ok {
			continue
		}
		out = append(out, Discovered{
			Definition: domain.ServiceDefinition{
				Name:               name,
				ServiceType:        ClassifyServiceName(name),
				HealthCheckEnabled: true,
			},
			Instance: instance,
		})
	}
	return out, nil
}

// Constructor is one entry in the module scanner's manifest: a named service
// builder registered at startup. The manifest is the explicit registration
// table standing in for import-time class scanning.
type Constructor struct {
	Name  string
	Build func(ctx context.Context) (any, error)
}

// ModuleScanner walks a static manifest of service constructors.
type ModuleScanner struct {
	Manifest []Constructor
	Logger   *slog.Logger
}

func (s ModuleScanner) Discover(ctx context.Context) ([]Discovered, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var out []Discovered
	for _, c := range s.Manifest {
		if c.Name == "" || c.Build == nil {
			continue
		}
		instance, err := c.Build(ctx)
		if err != nil {
			logger.Warn("service constructor failed", "service", c.Name, "error", err)
			continue
		}
		out = append(out, Discovered{
			Definition: domain.ServiceDefinition{
				Name:               c.Name,
				ServiceType:        ClassifyServiceName(c.Name),
				HealthCheckEnabled: true,
			},
			Instance: instance,
		})
	}
	return out, nil
}

// CompositeDiscovery combines strategies and deduplicates by service name;
// the first strategy to produce a name wins.
type CompositeDiscovery struct {
	Strategies []Discovery
	Logger     *slog.Logger
}

func (d CompositeDiscovery) Discover(ctx context.Context) ([]Discovered, error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	seen := make(map[string]struct{})
	var out []Discovered
	for _, strat := range d.Strategies {
		found, err := strat.Discover(ctx)
		if err != nil {
			return nil, err
		}
		for _, disc := range found {
			if _, dup := seen[disc.Definition.Name]; dup {
				logger.Debug("duplicate discovered service ignored", "service", disc.Definition.Name)
				continue
			}
			seen[disc.Definition.Name] = struct{}{}
			out = append(out, disc)
		}
	}
	return out, nil
}

// AutoRegister registers every discovered service, ignoring duplicates
// already present in the registry.
func AutoRegister(reg *Registry, discovered []Discovered) error {
	for _, d := range discovered {
		if err := reg.Register(d.Definition, d.Instance); err != nil {
			if errors.Is(err, ErrAlreadyRegistered) {
				reg.logger.Debug("discovered service already registered", "service", d.Definition.Name)
				continue
			}
			return err
		}
	}
	return nil
}

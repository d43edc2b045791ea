package domain

import "time"

// Service types for registry classification.
const (
	ServiceTypeCore     = "core"
	ServiceTypeFeature  = "feature"
	ServiceTypeExternal = "external"
	ServiceTypeUtility  = "utility"
)

// Health statuses for registry-owned service health records.
const (
	HealthStatusHealthy   = "healthy"
	HealthStatusUnhealthy = "unhealthy"
	HealthStatusUnknown   = "unknown"
	HealthStatusDisabled  = "disabled"
)

// ServiceTypes lists the closed service-type enumeration in startup order.
func ServiceTypes() []string {
	return []string{ServiceTypeCore, ServiceTypeExternal, ServiceTypeFeature, ServiceTypeUtility}
}

// ServiceDefinition declares a long-lived service to the registry. Loaded at
// startup from configuration or produced by discovery; never mutated after.
type ServiceDefinition struct {
	Name                string            `yaml:"name" json:"name"`
	ServiceType         string            `yaml:"service_type" json:"service_type"`
	Interface           string            `yaml:"interface,omitempty" json:"interface,omitempty"`
	Implementation      string            `yaml:"implementation,omitempty" json:"implementation,omitempty"`
	Dependencies        []string          `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	HealthCheckEnabled  bool              `yaml:"health_check_enabled" json:"health_check_enabled"`
	HealthCheckInterval time.Duration     `yaml:"health_check_interval,omitempty" json:"health_check_interval,omitempty"`
	Timeout             time.Duration     `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Retries             int               `yaml:"retries,omitempty" json:"retries,omitempty"`
	Metadata            map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// ServiceHealth is the registry's transient per-service health record.
type ServiceHealth struct {
	Name         string            `json:"name"`
	Status       string            `json:"status"`
	LastCheck    time.Time         `json:"last_check"`
	ResponseTime time.Duration     `json:"response_time"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Healthy reports whether the record carries a healthy status.
func (h ServiceHealth) Healthy() bool {
	return h.Status == HealthStatusHealthy
}

// Package config loads the immutable runtime Settings from environment
// variables and optional YAML settings files, plus the service-definition
// files consumed by the service registry.
package config

import (
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Environments recognized by the loader.
const (
	EnvDevelopment = "development"
	EnvTesting     = "testing"
	EnvProduction  = "production"
)

// Settings is the immutable configuration value the runtime is built from.
// Required-field failures are collected into a prioritized error list and
// abort startup; nothing reads configuration after Load returns.
type Settings struct {
	Environment string `mapstructure:"environment" validate:"oneof=development testing production"`
	LogLevel    string `mapstructure:"log_level"`
	Port        int    `mapstructure:"port" validate:"gt=0,lte=65535"`
	HomeDir     string `mapstructure:"home_dir"`

	// Store target. Project id and exactly one credentials source are
	// required unless the mock datastore is in use.
	FirebaseProjectID       string `mapstructure:"firebase_project_id"`
	FirebaseCredentialsFile string `mapstructure:"firebase_credentials_file"`
	FirebaseCredentialsJSON string `mapstructure:"firebase_credentials_json"`

	InviteSecretKey string `mapstructure:"kickai_invite_secret_key"`
	JWTSecret       string `mapstructure:"jwt_secret"`

	UseMockDatastore bool `mapstructure:"use_mock_datastore"`
	UseMockTelegram  bool `mapstructure:"use_mock_telegram"`
	UseMockUI        bool `mapstructure:"use_mock_ui"`

	// StoreBackend optionally forces a store driver: firestore, sqlite or
	// memory. Empty derives from USE_MOCK_DATASTORE.
	StoreBackend string `mapstructure:"store_backend"`
	SQLitePath   string `mapstructure:"sqlite_path"`

	AI       AISettings       `mapstructure:"ai"`
	Registry RegistrySettings `mapstructure:"registry"`
	Memory   MemorySettings   `mapstructure:"memory"`

	CacheTTLSeconds       int           `mapstructure:"cache_ttl_seconds" validate:"gte=0"`
	MaxConcurrentRequests int           `mapstructure:"max_concurrent_requests" validate:"gt=0"`
	RequestTimeout        time.Duration `mapstructure:"request_timeout"`
	RetryAttempts         int           `mapstructure:"retry_attempts" validate:"gte=0"`
	RetryDelay            time.Duration `mapstructure:"retry_delay"`

	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`

	TestMode       bool `mapstructure:"test_mode"`
	Debug          bool `mapstructure:"debug"`
	VerboseLogging bool `mapstructure:"verbose_logging"`

	// ServiceDefinitionDir holds per-file service definitions watched for
	// hot reload. Empty disables file-based definitions.
	ServiceDefinitionDir string `mapstructure:"service_definition_dir"`
}

// AISettings configures the NL agent layer.
type AISettings struct {
	Provider string `mapstructure:"provider" validate:"oneof=ollama"`

	OllamaBaseURL           string        `mapstructure:"ollama_base_url"`
	OllamaConnectionTimeout time.Duration `mapstructure:"ollama_connection_timeout"`
	OllamaRequestTimeout    time.Duration `mapstructure:"ollama_request_timeout"`

	Model        string        `mapstructure:"model"`
	Temperature  float64       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens    int           `mapstructure:"max_tokens" validate:"gt=0"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries" validate:"gte=0"`
	RetryMinWait time.Duration `mapstructure:"retry_min_wait"`
	RetryMaxWait time.Duration `mapstructure:"retry_max_wait"`
}

// RegistrySettings configures the service registry and its health monitor.
type RegistrySettings struct {
	AutoDiscovery           bool          `mapstructure:"auto_discovery"`
	HealthCheckEnabled      bool          `mapstructure:"health_check_enabled"`
	HealthCheckInterval     time.Duration `mapstructure:"health_check_interval"`
	ServiceTimeout          time.Duration `mapstructure:"service_timeout"`
	RetryCount              int           `mapstructure:"retry_count" validate:"gte=0"`
	CircuitBreakerThreshold int           `mapstructure:"circuit_breaker_threshold" validate:"gt=0"`
	CircuitBreakerRecovery  time.Duration `mapstructure:"circuit_breaker_recovery"`
	HalfOpenMaxProbes       int           `mapstructure:"half_open_max_probes" validate:"gt=0"`
	StartupTypeOrder        []string      `mapstructure:"startup_type_order"`
	MetricsEnabled          bool          `mapstructure:"metrics_enabled"`
}

// MemorySettings caps the agent memory layers.
type MemorySettings struct {
	EnableAdvancedMemory bool `mapstructure:"enable_advanced_memory"`
	ShortTermCap         int  `mapstructure:"short_term_cap" validate:"gt=0"`
	LongTermCap          int  `mapstructure:"long_term_cap" validate:"gt=0"`
	EpisodicCap          int  `mapstructure:"episodic_cap" validate:"gt=0"`
	SemanticCap          int  `mapstructure:"semantic_cap" validate:"gt=0"`
}

// HomeDir resolves the runtime data directory. KICKAI_HOME overrides the
// default ~/.kickai.
func HomeDir() string {
	if override := os.Getenv("KICKAI_HOME"); override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".kickai")
}

// settingsFilePaths is the fixed search order for optional settings files.
func settingsFilePaths(homeDir string) []string {
	return []string{
		"kickai.yaml",
		filepath.Join("config", "kickai.yaml"),
		filepath.Join(homeDir, "kickai.yaml"),
	}
}

// boundEnvVars maps viper keys to the authoritative (unprefixed) env names
// of the deployment contract.
var boundEnvVars = map[string]string{
	"environment":               "ENVIRONMENT",
	"log_level":                 "LOG_LEVEL",
	"port":                      "PORT",
	"firebase_project_id":       "FIREBASE_PROJECT_ID",
	"firebase_credentials_file": "FIREBASE_CREDENTIALS_FILE",
	"firebase_credentials_json": "FIREBASE_CREDENTIALS_JSON",
	"kickai_invite_secret_key":  "KICKAI_INVITE_SECRET_KEY",
	"jwt_secret":                "JWT_SECRET",
	"use_mock_datastore":        "USE_MOCK_DATASTORE",
	"use_mock_telegram":         "USE_MOCK_TELEGRAM",
	"use_mock_ui":               "USE_MOCK_UI",
	"store_backend":             "KICKAI_STORE_BACKEND",
	"sqlite_path":               "KICKAI_SQLITE_PATH",
	"ai.ollama_base_url":        "OLLAMA_BASE_URL",
	"ai.provider":               "AI_PROVIDER",
	"test_mode":                 "KICKAI_TEST_MODE",
	"debug":                     "KICKAI_DEBUG",
	"verbose_logging":           "KICKAI_VERBOSE_LOGGING",
	"service_definition_dir":    "KICKAI_SERVICE_DEFINITION_DIR",
}

func defaults(v *viper.Viper, homeDir string) {
	v.SetDefault("environment", EnvDevelopment)
	v.SetDefault("log_level", "info")
	v.SetDefault("port", 8080)
	v.SetDefault("home_dir", homeDir)

	v.SetDefault("ai.provider", "ollama")
	v.SetDefault("ai.model", "llama3.1:8b")
	v.SetDefault("ai.temperature", 0.3)
	v.SetDefault("ai.max_tokens", 800)
	v.SetDefault("ai.timeout", 120*time.Second)
	v.SetDefault("ai.max_retries", 3)
	v.SetDefault("ai.retry_min_wait", time.Second)
	v.SetDefault("ai.retry_max_wait", 30*time.Second)
	v.SetDefault("ai.ollama_connection_timeout", 10*time.Second)
	v.SetDefault("ai.ollama_request_timeout", 120*time.Second)

	v.SetDefault("registry.auto_discovery", true)
	v.SetDefault("registry.health_check_enabled", true)
	v.SetDefault("registry.health_check_interval", 60*time.Second)
	v.SetDefault("registry.service_timeout", 30*time.Second)
	v.SetDefault("registry.retry_count", 3)
	v.SetDefault("registry.circuit_breaker_threshold", 5)
	v.SetDefault("registry.circuit_breaker_recovery", 60*time.Second)
	v.SetDefault("registry.half_open_max_probes", 1)
	v.SetDefault("registry.startup_type_order", []string{"core", "external", "feature", "utility"})
	v.SetDefault("registry.metrics_enabled", true)

	v.SetDefault("memory.enable_advanced_memory", false)
	v.SetDefault("memory.short_term_cap", 100)
	v.SetDefault("memory.long_term_cap", 1000)
	v.SetDefault("memory.episodic_cap", 500)
	v.SetDefault("memory.semantic_cap", 2000)

	v.SetDefault("cache_ttl_seconds", 300)
	v.SetDefault("max_concurrent_requests", 10)
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("retry_attempts", 3)
	v.SetDefault("retry_delay", time.Second)
	v.SetDefault("shutdown_grace", 10*time.Second)
}

// Load reads settings files and environment, validates, and returns the
// immutable Settings. All missing-required problems are reported together.
func Load() (Settings, error) {
	homeDir := HomeDir()

	v := viper.New()
	defaults(v, homeDir)
	for key, env := range boundEnvVars {
		if err := v.BindEnv(key, env); err != nil {
			return Settings{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	for _, path := range settingsFilePaths(homeDir) {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read settings file %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	s.HomeDir = expandHome(s.HomeDir)
	if s.HomeDir == "" {
		s.HomeDir = homeDir
	}

	if errs := s.Validate(); len(errs) > 0 {
		return s, &ValidationError{Problems: errs}
	}
	return s, nil
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}

// ValidationError carries the prioritized list of settings problems.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid settings (%d problems):\n  - %s",
		len(e.Problems), strings.Join(e.Problems, "\n  - "))
}

// IsValidationError reports whether err is a settings validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate returns the prioritized problem list: missing required fields
// first, cross-field rules after, struct-tag violations last. Empty means
// the settings are usable.
func (s Settings) Validate() []string {
	var required, crossField, tagged []string

	switch s.StoreBackend {
	case "", "firestore", "sqlite", "memory":
	default:
		crossField = append(crossField, fmt.Sprintf("KICKAI_STORE_BACKEND %q is not one of firestore, sqlite, memory", s.StoreBackend))
	}

	if s.Backend() == "firestore" {
		if s.FirebaseProjectID == "" {
			required = append(required, "FIREBASE_PROJECT_ID is required")
		}
		switch {
		case s.FirebaseCredentialsFile == "" && s.FirebaseCredentialsJSON == "":
			required = append(required, "one of FIREBASE_CREDENTIALS_FILE or FIREBASE_CREDENTIALS_JSON is required")
		case s.FirebaseCredentialsFile != "" && s.FirebaseCredentialsJSON != "":
			crossField = append(crossField, "FIREBASE_CREDENTIALS_FILE and FIREBASE_CREDENTIALS_JSON are mutually exclusive; set exactly one")
		}
	}
	if s.InviteSecretKey == "" {
		required = append(required, "KICKAI_INVITE_SECRET_KEY is required")
	}
	if s.AI.Provider == "ollama" && s.AI.OllamaBaseURL == "" {
		required = append(required, "OLLAMA_BASE_URL is required when ai provider is ollama")
	}
	if s.Environment == EnvProduction && s.JWTSecret == "" {
		required = append(required, "JWT_SECRET is required in production")
	}

	for _, t := range s.Registry.StartupTypeOrder {
		switch t {
		case "core", "external", "feature", "utility":
		default:
			crossField = append(crossField, fmt.Sprintf("registry startup_type_order contains unknown service type %q", t))
		}
	}

	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				tagged = append(tagged, fmt.Sprintf("%s fails rule %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			sort.Strings(tagged)
		} else {
			tagged = append(tagged, err.Error())
		}
	}

	out := make([]string, 0, len(required)+len(crossField)+len(tagged))
	out = append(out, required...)
	out = append(out, crossField...)
	out = append(out, tagged...)
	return out
}

// Backend resolves the effective store driver name.
func (s Settings) Backend() string {
	if s.StoreBackend != "" {
		return s.StoreBackend
	}
	if s.UseMockDatastore {
		return "memory"
	}
	return "firestore"
}

// Production reports whether the settings target the production environment.
func (s Settings) Production() bool {
	return s.Environment == EnvProduction
}

// Fingerprint returns a stable hash of the non-secret settings, exposed on
// /health/detailed so operators can confirm which configuration is live.
func (s Settings) Fingerprint() string {
	h := fnv.New64a()
	fmt.Fprintf(h, "env=%s|port=%d|log=%s|store=%s|mockds=%t|mocktg=%t|ai=%s/%s|hc=%s|cb=%d/%s",
		s.Environment, s.Port, s.LogLevel, s.FirebaseProjectID,
		s.UseMockDatastore, s.UseMockTelegram,
		s.AI.Provider, s.AI.Model,
		s.Registry.HealthCheckInterval, s.Registry.CircuitBreakerThreshold,
		s.Registry.CircuitBreakerRecovery)
	return fmt.Sprintf("cfg-%x", h.Sum64())
}

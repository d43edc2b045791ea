package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kickai/kickai/internal/domain"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// definitionSchema validates service-definition files before decoding, so a
// malformed file fails with a line-item schema error instead of a half-built
// registry.
const definitionSchema = `{
  "type": "object",
  "properties": {
    "services": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "service_type"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "service_type": {"enum": ["core", "feature", "external", "utility"]},
          "interface": {"type": "string"},
          "implementation": {"type": "string"},
          "dependencies": {"type": "array", "items": {"type": "string"}},
          "health_check_enabled": {"type": "boolean"},
          "health_check_interval": {"type": "string"},
          "timeout": {"type": "string"},
          "retries": {"type": "integer", "minimum": 0},
          "metadata": {"type": "object", "additionalProperties": {"type": "string"}}
        },
        "additionalProperties": false
      }
    }
  },
  "required": ["services"],
  "additionalProperties": false
}`

var compiledDefinitionSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(definitionSchema))
	if err != nil {
		panic(fmt.Sprintf("service definition schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("definitions.json", doc); err != nil {
		panic(fmt.Sprintf("service definition schema: %v", err))
	}
	schema, err := c.Compile("definitions.json")
	if err != nil {
		panic(fmt.Sprintf("service definition schema: %v", err))
	}
	return schema
}

// definitionFile mirrors the on-disk shape; durations are strings there
// ("30s") and parsed into the domain type after schema validation.
type definitionFile struct {
	Services []definitionEntry `yaml:"services" json:"services"`
}

type definitionEntry struct {
	Name                string            `yaml:"name" json:"name"`
	ServiceType         string            `yaml:"service_type" json:"service_type"`
	Interface           string            `yaml:"interface" json:"interface,omitempty"`
	Implementation      string            `yaml:"implementation" json:"implementation,omitempty"`
	Dependencies        []string          `yaml:"dependencies" json:"dependencies,omitempty"`
	HealthCheckEnabled  bool              `yaml:"health_check_enabled" json:"health_check_enabled"`
	HealthCheckInterval string            `yaml:"health_check_interval" json:"health_check_interval,omitempty"`
	Timeout             string            `yaml:"timeout" json:"timeout,omitempty"`
	Retries             int               `yaml:"retries" json:"retries,omitempty"`
	Metadata            map[string]string `yaml:"metadata" json:"metadata,omitempty"`
}

// LoadServiceDefinitions reads every .yaml/.yml/.json file in dir, validates
// each against the embedded schema, and returns the merged definitions
// sorted by name. Duplicate names across files are a configuration error.
func LoadServiceDefinitions(dir string) ([]domain.ServiceDefinition, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read service definition dir: %w", err)
	}

	seen := make(map[string]string) // name -> file
	var defs []domain.ServiceDefinition
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		fileDefs, err := loadDefinitionFile(path)
		if err != nil {
			return nil, fmt.Errorf("service definitions %s: %w", path, err)
		}
		for _, d := range fileDefs {
			if prev, dup := seen[d.Name]; dup {
				return nil, fmt.Errorf("service %q defined in both %s and %s", d.Name, prev, path)
			}
			seen[d.Name] = path
			defs = append(defs, d)
		}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}

func loadDefinitionFile(path string) ([]domain.ServiceDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Normalize YAML to JSON for schema validation.
	var generic any
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(raw, &generic); err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(raw, &generic); err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
		buf, err := json.Marshal(generic)
		if err != nil {
			return nil, fmt.Errorf("normalize: %w", err)
		}
		generic, err = jsonschema.UnmarshalJSON(bytes.NewReader(buf))
		if err != nil {
			return nil, fmt.Errorf("normalize: %w", err)
		}
	}
	if err := compiledDefinitionSchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}

	var file definitionFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	defs := make([]domain.ServiceDefinition, 0, len(file.Services))
	for _, e := range file.Services {
		d := domain.ServiceDefinition{
			Name:               e.Name,
			ServiceType:        e.ServiceType,
			Interface:          e.Interface,
			Implementation:     e.Implementation,
			Dependencies:       e.Dependencies,
			HealthCheckEnabled: e.HealthCheckEnabled,
			Retries:            e.Retries,
			Metadata:           e.Metadata,
		}
		if d.HealthCheckInterval, err = parseOptionalDuration(e.HealthCheckInterval); err != nil {
			return nil, fmt.Errorf("service %q health_check_interval: %w", e.Name, err)
		}
		if d.Timeout, err = parseOptionalDuration(e.Timeout); err != nil {
			return nil, fmt.Errorf("service %q timeout: %w", e.Name, err)
		}
		defs = append(defs, d)
	}
	return defs, nil
}

func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

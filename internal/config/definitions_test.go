package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeDefinitionFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadServiceDefinitions(t *testing.T) {
	dir := t.TempDir()
	writeDefinitionFile(t, dir, "core.yaml", `
services:
  - name: data_store
    service_type: core
    health_check_enabled: true
    timeout: 30s
  - name: player_service
    service_type: feature
    dependencies: [data_store]
    health_check_enabled: true
    health_check_interval: 1m
    retries: 2
    metadata:
      owner: runtime
`)

	defs, err := LoadServiceDefinitions(dir)
	if err != nil {
		t.Fatalf("expected load to succeed, got %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	// Sorted by name.
	if defs[0].Name != "data_store" || defs[1].Name != "player_service" {
		t.Fatalf("unexpected order: %s, %s", defs[0].Name, defs[1].Name)
	}
	if defs[0].Timeout != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %v", defs[0].Timeout)
	}
	if defs[1].HealthCheckInterval != time.Minute {
		t.Fatalf("expected 1m interval, got %v", defs[1].HealthCheckInterval)
	}
	if len(defs[1].Dependencies) != 1 || defs[1].Dependencies[0] != "data_store" {
		t.Fatalf("unexpected dependencies %v", defs[1].Dependencies)
	}
	if defs[1].Metadata["owner"] != "runtime" {
		t.Fatalf("unexpected metadata %v", defs[1].Metadata)
	}
}

func TestLoadServiceDefinitionsRejectsBadType(t *testing.T) {
	dir := t.TempDir()
	writeDefinitionFile(t, dir, "bad.yaml", `
services:
  - name: something
    service_type: banana
`)
	_, err := LoadServiceDefinitions(dir)
	if err == nil {
		t.Fatal("expected schema failure for unknown service_type")
	}
	if !strings.Contains(err.Error(), "schema") {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestLoadServiceDefinitionsRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	writeDefinitionFile(t, dir, "a.yaml", "services:\n  - name: dup\n    service_type: core\n")
	writeDefinitionFile(t, dir, "b.yaml", "services:\n  - name: dup\n    service_type: utility\n")

	_, err := LoadServiceDefinitions(dir)
	if err == nil {
		t.Fatal("expected duplicate-name failure")
	}
	if !strings.Contains(err.Error(), "dup") {
		t.Fatalf("expected error naming the duplicate, got %v", err)
	}
}

func TestLoadServiceDefinitionsMissingDirIsEmpty(t *testing.T) {
	defs, err := LoadServiceDefinitions(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("expected missing dir to be tolerated, got %v", err)
	}
	if len(defs) != 0 {
		t.Fatalf("expected no definitions, got %d", len(defs))
	}
}

func TestTeamIDFromPath(t *testing.T) {
	cases := map[string]string{
		"/etc/kickai/defs/team_KTI.yaml": "KTI",
		"/etc/kickai/defs/core.yaml":     "",
		"team_ABC.json":                  "ABC",
	}
	for path, want := range cases {
		if got := teamIDFromPath(path); got != want {
			t.Fatalf("teamIDFromPath(%q): expected %q, got %q", path, want, got)
		}
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected default host 0.0.0.0, got %s", cfg.Server.Host)
	}
	if cfg.Run.Workers != 1 {
		t.Errorf("expected default workers 1, got %d", cfg.Run.Workers)
	}
	if cfg.Collective.Backend != "localmem" {
		t.Errorf("expected default collective backend localmem, got %s", cfg.Collective.Backend)
	}
	if cfg.Telemetry.Tracing.Exporter != "otlp" {
		t.Errorf("expected default exporter otlp, got %s", cfg.Telemetry.Tracing.Exporter)
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 70000
	err := Validate(cfg)
	if err == nil {
		t.Error("expected error for invalid port")
	}
}

func TestValidate_InvalidWorkers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Run.Workers = 0
	err := Validate(cfg)
	if err == nil {
		t.Error("expected error for zero workers")
	}
}

func TestValidate_InvalidCollectiveBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Collective.Backend = "mpi"
	err := Validate(cfg)
	if err == nil {
		t.Error("expected error for unsupported collective backend")
	}
}

func TestValidate_GrpccRequiresCoordinator(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Collective.Backend = "grpcc"
	cfg.Collective.Rank = 1
	cfg.Collective.Coordinator = ""
	err := Validate(cfg)
	if err == nil {
		t.Error("expected error for grpcc rank>0 with no coordinator address")
	}
}

func TestValidate_InvalidExportBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Export.Backend = "elasticsearch"
	err := Validate(cfg)
	if err == nil {
		t.Error("expected error for unsupported export backend")
	}
}

func TestValidate_InvalidSampleRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Telemetry.Tracing.SampleRate = 2.0
	err := Validate(cfg)
	if err == nil {
		t.Error("expected error for sample_rate > 1")
	}

	cfg.Telemetry.Tracing.SampleRate = -0.1
	err = Validate(cfg)
	if err == nil {
		t.Error("expected error for negative sample_rate")
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = -1
	cfg.Run.Workers = -5
	cfg.Collective.Backend = "mpi"
	err := Validate(cfg)
	if err == nil {
		t.Error("expected multiple validation errors")
	}
}

func TestInterpolateEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "hello")

	tests := []struct {
		input    string
		expected string
	}{
		{"${TEST_VAR}", "hello"},
		{"prefix-${TEST_VAR}-suffix", "prefix-hello-suffix"},
		{"${NONEXISTENT_VAR:-fallback}", "fallback"},
		{"${NONEXISTENT_VAR}", "${NONEXISTENT_VAR}"},
		{"no-vars-here", "no-vars-here"},
		{"${TEST_VAR:-default}", "hello"}, // env var exists, ignore default
	}

	for _, tt := range tests {
		result := InterpolateEnv(tt.input)
		if result != tt.expected {
			t.Errorf("InterpolateEnv(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
server:
  port: 9090
  host: 127.0.0.1

run:
  cabinets: 8
  workers: 4
  max_iterations: 50

collective:
  backend: grpcc
  coordinator: localhost:7000

export:
  backend: qdrant
  index: test-collection
  host: localhost:6334
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "cabinets.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected host 127.0.0.1, got %s", cfg.Server.Host)
	}
	if cfg.Run.Cabinets != 8 {
		t.Errorf("expected cabinets 8, got %d", cfg.Run.Cabinets)
	}
	if cfg.Run.Workers != 4 {
		t.Errorf("expected workers 4, got %d", cfg.Run.Workers)
	}
	if cfg.Collective.Backend != "grpcc" {
		t.Errorf("expected collective backend grpcc, got %s", cfg.Collective.Backend)
	}
	if cfg.Export.Backend != "qdrant" {
		t.Errorf("expected export backend qdrant, got %s", cfg.Export.Backend)
	}
	if cfg.Export.Index != "test-collection" {
		t.Errorf("expected index test-collection, got %s", cfg.Export.Index)
	}
}

func TestLoadFromFile_WithEnvInterpolation(t *testing.T) {
	t.Setenv("TEST_COORDINATOR", "10.0.0.5:7000")

	content := `
collective:
  backend: grpcc
  coordinator: ${TEST_COORDINATOR}
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "cabinets.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Collective.Coordinator != "10.0.0.5:7000" {
		t.Errorf("expected interpolated coordinator address, got %s", cfg.Collective.Coordinator)
	}
}

func TestLoadFromFile_InvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/cabinets.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "cabinets.yaml")
	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := LoadFromFile(cfgPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadFromFile_InvalidValues(t *testing.T) {
	content := `
server:
  port: 99999
run:
  workers: -1
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "cabinets.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := LoadFromFile(cfgPath)
	if err == nil {
		t.Error("expected validation error")
	}
}

func TestLoadFromFile_DefaultsPreserved(t *testing.T) {
	// Partial config should preserve defaults for unset fields
	content := `
server:
  port: 3000
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "cabinets.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("expected port 3000, got %d", cfg.Server.Port)
	}
	// Defaults should be preserved for unset fields
	if cfg.Collective.Backend != "localmem" {
		t.Errorf("expected default collective backend localmem, got %s", cfg.Collective.Backend)
	}
	if cfg.Run.Workers != 1 {
		t.Errorf("expected default workers 1, got %d", cfg.Run.Workers)
	}
}

func TestGenerateTemplate(t *testing.T) {
	tmpl := GenerateTemplate()

	// Verify key sections exist
	required := []string{
		"server:", "port:", "host:",
		"run:", "cabinets:", "workers:", "max_iterations:",
		"collective:", "backend:", "coordinator:",
		"export:", "index:",
		"telemetry:", "tracing:", "exporter:",
	}

	for _, s := range required {
		if !strings.Contains(tmpl, s) {
			t.Errorf("template missing %q", s)
		}
	}
}

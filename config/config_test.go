package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.AgentID != "bridge" {
		t.Fatalf("unexpected default agent id: %q", cfg.AgentID)
	}
	if cfg.AgentName != cfg.AgentID {
		t.Fatalf("agent name should default to agent id, got %q", cfg.AgentName)
	}
	if cfg.HTTPPort != 6000 {
		t.Fatalf("unexpected default port: %d", cfg.HTTPPort)
	}
	if cfg.PublicURL != "http://localhost:6000" {
		t.Fatalf("unexpected default public url: %q", cfg.PublicURL)
	}
	if cfg.DirectoryBackend != BackendMemory {
		t.Fatalf("unexpected default backend: %q", cfg.DirectoryBackend)
	}
	if cfg.TargetTimeout != 30*time.Second {
		t.Fatalf("unexpected default target timeout: %v", cfg.TargetTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AGENT_ID", "pirate")
	t.Setenv("HTTP_PORT", "7100")
	t.Setenv("AGENT_CAPABILITIES", "jokes, stories ,")
	t.Setenv("TARGET_TIMEOUT_MS", "5000")

	cfg := Load()

	if cfg.AgentID != "pirate" {
		t.Fatalf("unexpected agent id: %q", cfg.AgentID)
	}
	if cfg.HTTPPort != 7100 {
		t.Fatalf("unexpected port: %d", cfg.HTTPPort)
	}
	if len(cfg.Capabilities) != 2 || cfg.Capabilities[0] != "jokes" || cfg.Capabilities[1] != "stories" {
		t.Fatalf("unexpected capabilities: %v", cfg.Capabilities)
	}
	if cfg.TargetTimeout != 5*time.Second {
		t.Fatalf("unexpected target timeout: %v", cfg.TargetTimeout)
	}
}

func TestRegistryURLImpliesRegistryBackend(t *testing.T) {
	t.Setenv("REGISTRY_URL", "http://registry:6900")

	cfg := Load()

	if cfg.DirectoryBackend != BackendRegistry {
		t.Fatalf("expected registry backend, got %q", cfg.DirectoryBackend)
	}
}

func TestExplicitBackendWins(t *testing.T) {
	t.Setenv("REGISTRY_URL", "http://registry:6900")
	t.Setenv("DIRECTORY_BACKEND", BackendSQLite)

	cfg := Load()

	if cfg.DirectoryBackend != BackendSQLite {
		t.Fatalf("expected sqlite backend, got %q", cfg.DirectoryBackend)
	}
}

package config

import "testing"

func TestGatewayConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg GatewayConfig
	cfg.SetDefaults()

	if cfg.Server.Addr != "127.0.0.1:8080" {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, "127.0.0.1:8080")
	}
	if cfg.Server.LogLevel != "info" {
		t.Errorf("Server.LogLevel = %q, want %q", cfg.Server.LogLevel, "info")
	}
	if cfg.Server.MaxBodyBytes != 1<<20 {
		t.Errorf("Server.MaxBodyBytes = %d, want %d", cfg.Server.MaxBodyBytes, 1<<20)
	}
	if cfg.Policy.Path != "policy.yaml" {
		t.Errorf("Policy.Path = %q, want %q", cfg.Policy.Path, "policy.yaml")
	}
}

func TestGatewayConfig_SetDefaults_PreservesExistingValues(t *testing.T) {
	t.Parallel()

	cfg := GatewayConfig{
		Server: ServerConfig{Addr: ":9090", MaxBodyBytes: 2048},
		Policy: PolicyConfig{Path: "/etc/gateway/policy.yaml"},
	}
	cfg.SetDefaults()

	if cfg.Server.Addr != ":9090" {
		t.Errorf("Server.Addr was overwritten: %q", cfg.Server.Addr)
	}
	if cfg.Server.MaxBodyBytes != 2048 {
		t.Errorf("Server.MaxBodyBytes was overwritten: %d", cfg.Server.MaxBodyBytes)
	}
	if cfg.Policy.Path != "/etc/gateway/policy.yaml" {
		t.Errorf("Policy.Path was overwritten: %q", cfg.Policy.Path)
	}
}

func TestGatewayConfig_SetDevDefaults_OnlyAppliesWhenDevModeEnabled(t *testing.T) {
	t.Parallel()

	var cfg GatewayConfig
	cfg.SetDefaults()
	cfg.SetDevDefaults()
	if cfg.Server.LogLevel != "info" {
		t.Errorf("expected log level unchanged without dev mode, got %q", cfg.Server.LogLevel)
	}

	cfg.DevMode = true
	cfg.SetDevDefaults()
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("expected dev mode to force debug logging, got %q", cfg.Server.LogLevel)
	}
}

package config

import (
	"strings"
	"testing"
)

func TestValidateDefaults(t *testing.T) {
	cfg := DefaultConfig()
	result := Validate(cfg)
	if !result.IsValid() {
		t.Fatalf("default config should be valid, got errors: %v", result.Errors)
	}
}

func TestValidateServer(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*ServerConfig)
		wantError string
		wantWarn  string
	}{
		{
			name:      "missing listen address",
			mutate:    func(s *ServerConfig) { s.ListenAddr = "" },
			wantError: "svr_listen_addr",
		},
		{
			name:      "listen address without port",
			mutate:    func(s *ServerConfig) { s.ListenAddr = "0.0.0.0" },
			wantError: "svr_listen_addr",
		},
		{
			name:      "unknown transport",
			mutate:    func(s *ServerConfig) { s.Transport = "carrier-pigeon" },
			wantError: "svr_transport",
		},
		{
			name:     "reserved transport warns",
			mutate:   func(s *ServerConfig) { s.Transport = "quic" },
			wantWarn: "svr_transport",
		},
		{
			name:      "unknown compression",
			mutate:    func(s *ServerConfig) { s.Compression = "lzma" },
			wantError: "svr_compression",
		},
		{
			name:      "zero max players",
			mutate:    func(s *ServerConfig) { s.MaxPlayers = 0 },
			wantError: "svr_max_players",
		},
		{
			name:     "very high max players warns",
			mutate:   func(s *ServerConfig) { s.MaxPlayers = 5000 },
			wantWarn: "svr_max_players",
		},
		{
			name:      "negative min protocol",
			mutate:    func(s *ServerConfig) { s.MinProtocol = -1 },
			wantError: "svr_min_protocol",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg.Server)
			result := Validate(cfg)

			if tt.wantError != "" {
				if result.IsValid() {
					t.Fatal("expected validation error, got none")
				}
				if !hasField(result.Errors, tt.wantError) {
					t.Errorf("expected error on field containing %q, got %v", tt.wantError, result.Errors)
				}
			}
			if tt.wantWarn != "" {
				if !result.IsValid() {
					t.Fatalf("expected warning only, got errors: %v", result.Errors)
				}
				if !hasField(result.Warnings, tt.wantWarn) {
					t.Errorf("expected warning on field containing %q, got %v", tt.wantWarn, result.Warnings)
				}
			}
		})
	}
}

func TestValidateApplicationData(t *testing.T) {
	t.Run("mqtt enabled without broker", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Application.MQTT.Enabled = true
		cfg.Application.MQTT.BrokerURL = ""
		result := Validate(cfg)
		if !hasField(result.Errors, "mqtt.broker_url") {
			t.Errorf("expected broker_url error, got %v", result.Errors)
		}
	})

	t.Run("tls enabled without cert", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Application.Security.TLSEnabled = true
		result := Validate(cfg)
		if !hasField(result.Errors, "tls_cert_file") || !hasField(result.Errors, "tls_key_file") {
			t.Errorf("expected TLS cert and key errors, got %v", result.Errors)
		}
	})

	t.Run("missing database path", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Application.Database.Path = ""
		result := Validate(cfg)
		if !hasField(result.Errors, "database.path") {
			t.Errorf("expected database path error, got %v", result.Errors)
		}
	})

	t.Run("privileged api port warns", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Application.API.Port = 80
		result := Validate(cfg)
		if !result.IsValid() {
			t.Fatalf("privileged port should only warn, got errors: %v", result.Errors)
		}
		if !hasField(result.Warnings, "api.port") {
			t.Errorf("expected api.port warning, got %v", result.Warnings)
		}
	})
}

func hasField(errs []ValidationError, substr string) bool {
	for _, e := range errs {
		if strings.Contains(e.Field, substr) {
			return true
		}
	}
	return false
}

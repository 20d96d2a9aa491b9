package config

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate performs comprehensive validation of the configuration.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	validateServer(&cfg.Server, result)
	validateApplicationData(&cfg.Application, result)

	return result
}

func validateServer(data *ServerConfig, result *ValidationResult) {
	if strings.TrimSpace(data.ListenAddr) == "" {
		result.AddError("server.svr_listen_addr", "listen address is required")
	} else if _, _, err := net.SplitHostPort(data.ListenAddr); err != nil {
		result.AddError("server.svr_listen_addr",
			fmt.Sprintf("invalid listen address %q: must be host:port", data.ListenAddr))
	}

	switch data.Transport {
	case "raknet":
	case "nethernet", "quic", "tcp":
		result.AddWarning("server.svr_transport",
			fmt.Sprintf("transport %q is recognised but not yet implemented", data.Transport))
	default:
		result.AddError("server.svr_transport",
			fmt.Sprintf("unknown transport %q (expected raknet, nethernet, quic or tcp)", data.Transport))
	}

	switch data.Compression {
	case "none", "flate", "snappy":
	default:
		result.AddError("server.svr_compression",
			fmt.Sprintf("unknown compression %q (expected none, flate or snappy)", data.Compression))
	}

	if data.MaxPlayers < 1 {
		result.AddError("server.svr_max_players", "must allow at least 1 player")
	}
	if data.MaxPlayers > 1000 {
		result.AddWarning("server.svr_max_players",
			fmt.Sprintf("high player count (%d) may cause performance issues", data.MaxPlayers))
	}

	if data.MinProtocol < 0 {
		result.AddError("server.svr_min_protocol", "minimum protocol cannot be negative")
	}
}

func validateApplicationData(data *ApplicationData, result *ValidationResult) {
	// API
	if data.API.Enabled {
		validatePort(data.API.Port, "application_data.api.port", result)
	}

	// MQTT
	if data.MQTT.Enabled {
		if strings.TrimSpace(data.MQTT.BrokerURL) == "" {
			result.AddError("application_data.mqtt.broker_url", "MQTT broker URL is required when enabled")
		}
		if data.MQTT.Port < 1 || data.MQTT.Port > 65535 {
			result.AddError("application_data.mqtt.port", "invalid MQTT port")
		}
	}

	// Database
	if strings.TrimSpace(data.Database.Path) == "" {
		result.AddError("application_data.database.path", "database path is required")
	}

	// Security
	if data.Security.TLSEnabled {
		if strings.TrimSpace(data.Security.TLSCertFile) == "" {
			result.AddError("application_data.security.tls_cert_file",
				"TLS certificate file is required when TLS is enabled")
		}
		if strings.TrimSpace(data.Security.TLSKeyFile) == "" {
			result.AddError("application_data.security.tls_key_file",
				"TLS key file is required when TLS is enabled")
		}
	}
}

func validatePort(port int, field string, result *ValidationResult) {
	if port < 1 || port > 65535 {
		result.AddError(field, fmt.Sprintf("invalid port number: %d (must be 1-65535)", port))
		return
	}
	if port < 1024 {
		result.AddWarning(field,
			fmt.Sprintf("port %d is a privileged port, may require elevated permissions", port))
	}
}

// IsPortAvailable checks if a port is available for binding.
func IsPortAvailable(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every problem found in one configuration
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	var sb strings.Builder
	sb.WriteString("invalid configuration")
	for _, err := range e {
		sb.WriteString("\n--> ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// ValidateBridgeConfig validates a bridge configuration
func ValidateBridgeConfig(cfg *BridgeConfig) error {
	var errs ValidationErrors

	if strings.TrimSpace(cfg.OSC.ListenAddress) == "" {
		errs = append(errs, &ValidationError{Field: "osc.listen_address", Message: "must not be empty"})
	}
	if cfg.OSC.ListenPort < 0 || cfg.OSC.ListenPort > 65535 {
		errs = append(errs, &ValidationError{Field: "osc.listen_port", Message: fmt.Sprintf("port %d out of range", cfg.OSC.ListenPort)})
	}
	if cfg.OSC.QueueSize < 0 {
		errs = append(errs, &ValidationError{Field: "osc.queue_size", Message: "must not be negative"})
	}

	if u, err := url.Parse(cfg.Session.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		errs = append(errs, &ValidationError{Field: "session.url", Message: fmt.Sprintf("%q is not a websocket url", cfg.Session.URL)})
	}
	if cfg.Session.Backoff.Multiplier < 0 {
		errs = append(errs, &ValidationError{Field: "session.backoff.multiplier", Message: "must not be negative"})
	}

	for address, command := range cfg.CommandMapping {
		if !strings.HasPrefix(address, "/") {
			errs = append(errs, &ValidationError{Field: "command_mapping", Message: fmt.Sprintf("address %q must start with '/'", address)})
		}
		if strings.TrimSpace(command) == "" {
			errs = append(errs, &ValidationError{Field: "command_mapping", Message: fmt.Sprintf("address %q maps to an empty command", address)})
		}
	}

	if cfg.Admin.Port < 0 || cfg.Admin.Port > 65535 {
		errs = append(errs, &ValidationError{Field: "admin.port", Message: fmt.Sprintf("port %d out of range", cfg.Admin.Port)})
	}

	switch NotifierRole(cfg.Notifier.Role) {
	case "", RoleReceiver, RoleSender, RoleBoth:
	default:
		errs = append(errs, &ValidationError{Field: "notifier.role", Message: fmt.Sprintf("unknown role %q", cfg.Notifier.Role)})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

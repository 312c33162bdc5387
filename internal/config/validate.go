package config

import (
	"fmt"
	"strings"

	"smartquery/internal/naming"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors and returns validation results.
// It returns both errors (fatal) and warnings (non-fatal issues).
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	c.Database.validate(result)
	c.Logging.validate(result)
	c.Engine.validate(result)
	validateNamingConfig(result, c.Naming)

	return result
}

func (d *DatabaseConfig) validate(result *ValidationResult) {
	// Port range validation
	if d.Port < 1 || d.Port > 65535 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.port",
			Message: fmt.Sprintf("port %d is out of valid range (1-65535)", d.Port),
		})
	}

	if strings.TrimSpace(d.Database) == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.database",
			Message: "database name cannot be empty",
		})
	}

	for key := range d.Params {
		if strings.TrimSpace(key) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "database.params",
				Message: "parameter name cannot be empty",
			})
			continue
		}
		if managedDSNParams[key] {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "database.params",
				Message: fmt.Sprintf("parameter %q is managed by the engine and will be ignored", key),
				Hint:    "remove it from database.params",
			})
		}
	}

	// Connection pool validation
	if d.Pool.MaxOpen < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.pool.max_open",
			Message: "max_open cannot be negative",
		})
	}
	if d.Pool.MaxIdle < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.pool.max_idle",
			Message: "max_idle cannot be negative",
		})
	}
	if d.Pool.MaxIdle > d.Pool.MaxOpen && d.Pool.MaxOpen > 0 {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "database.pool.max_idle",
			Message: "max_idle is greater than max_open",
			Hint:    "idle connections will be limited to max_open",
		})
	}
}

func (l *LoggingConfig) validate(result *ValidationResult) {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[l.Level] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level %q", l.Level),
			Hint:    "valid values are: debug, info, warn, error",
		})
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[l.Format] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format %q", l.Format),
			Hint:    "valid values are: json, text",
		})
	}
}

func (e *EngineConfig) validate(result *ValidationResult) {
	if e.DefaultLimit < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "engine.default_limit",
			Message: "default_limit cannot be negative",
		})
	}
	if e.MaxEagerDepth < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "engine.max_eager_depth",
			Message: "max_eager_depth cannot be negative",
		})
	}
	if e.MaxJoins < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "engine.max_joins",
			Message: "max_joins cannot be negative",
		})
	}
}

func validateNamingConfig(result *ValidationResult, cfg naming.Config) {
	validateOverrideMap(result, "naming.plural_overrides", cfg.PluralOverrides)
	validateOverrideMap(result, "naming.singular_overrides", cfg.SingularOverrides)
}

func validateOverrideMap(result *ValidationResult, field string, overrides map[string]string) {
	for word, replacement := range overrides {
		if strings.TrimSpace(word) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Message: "word cannot be empty",
			})
			continue
		}
		if strings.TrimSpace(replacement) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("override for %q cannot be empty", word),
			})
		}
	}
}

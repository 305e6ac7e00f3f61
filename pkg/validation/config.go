package validation

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/dd0wney/cluso-topology/pkg/topology"
)

// ConfigValidator collects configuration errors rather than failing on the
// first one.
type ConfigValidator struct {
	errors []error
	name   string // config section for error messages
}

// NewConfigValidator creates a new config validator for the named section
func NewConfigValidator(section string) *ConfigValidator {
	return &ConfigValidator{name: section}
}

func (cv *ConfigValidator) addf(field, format string, args ...any) {
	cv.errors = append(cv.errors, fmt.Errorf("%s.%s: "+format, append([]any{cv.name, field}, args...)...))
}

// Required validates that a string field is not empty
func (cv *ConfigValidator) Required(field, value string) *ConfigValidator {
	if value == "" {
		cv.addf(field, "required field is empty")
	}
	return cv
}

// URL validates an absolute http(s) URL
func (cv *ConfigValidator) URL(field, value string) *ConfigValidator {
	if value == "" {
		cv.addf(field, "required field is empty")
		return cv
	}
	u, err := url.Parse(value)
	if err != nil {
		cv.addf(field, "invalid URL: %v", err)
		return cv
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		cv.addf(field, "URL %q must be absolute http or https", value)
	}
	return cv
}

// PositiveID validates that an identifier is positive (> 0)
func (cv *ConfigValidator) PositiveID(field string, value int64) *ConfigValidator {
	if value <= 0 {
		cv.addf(field, "value %d must be positive", value)
	}
	return cv
}

// PositiveFloat validates that a float field is positive (> 0)
func (cv *ConfigValidator) PositiveFloat(field string, value float64) *ConfigValidator {
	if value <= 0 {
		cv.addf(field, "value %g must be positive", value)
	}
	return cv
}

// NonNegativeDuration validates that a duration is not negative.
// Zero means no limit.
func (cv *ConfigValidator) NonNegativeDuration(field string, value time.Duration) *ConfigValidator {
	if value < 0 {
		cv.addf(field, "duration %v must be non-negative", value)
	}
	return cv
}

// OneOf validates that a string field is one of the allowed values
func (cv *ConfigValidator) OneOf(field, value string, allowed []string) *ConfigValidator {
	if !slices.Contains(allowed, value) {
		cv.addf(field, "value %q must be one of %v", value, allowed)
	}
	return cv
}

// Custom applies a custom validation function
func (cv *ConfigValidator) Custom(field string, fn func() error) *ConfigValidator {
	if err := fn(); err != nil {
		cv.addf(field, "%w", err)
	}
	return cv
}

// When conditionally applies validations if the condition is true
func (cv *ConfigValidator) When(condition bool, validations func(*ConfigValidator)) *ConfigValidator {
	if condition {
		validations(cv)
	}
	return cv
}

// HasErrors returns true if any validation errors occurred
func (cv *ConfigValidator) HasErrors() bool {
	return len(cv.errors) > 0
}

// Errors returns all validation errors
func (cv *ConfigValidator) Errors() []error {
	return cv.errors
}

// Validate returns every collected error joined, wrapped in ErrValidation
func (cv *ConfigValidator) Validate() error {
	if len(cv.errors) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", topology.ErrValidation, cv.name, errors.Join(cv.errors...))
}

// DefaultOr returns the value if it's non-zero, otherwise returns the default
func DefaultOr[T comparable](value, defaultValue T) T {
	var zero T
	if value == zero {
		return defaultValue
	}
	return value
}

package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidateSchedule checks that schedule can be registered with the cron
// scheduler. Standard five-field expressions and descriptors such as
// "@every 5m" are accepted.
func ValidateSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("invalid schedule: cannot be empty")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid schedule '%s': %w", schedule, err)
	}
	return nil
}

// ValidateDuration validates that a duration is within [min, max].
//
// Error messages include the actual value and the valid range,
// helping operators understand the limits.
//
// Example:
//
//	// Validate timeout is between 1s and 1h
//	err := ValidateDuration(30*time.Minute, 1*time.Second, 1*time.Hour)
func ValidateDuration(duration, min, max time.Duration) error {
	if min > max {
		return fmt.Errorf("invalid range: min (%v) cannot be greater than max (%v)", min, max)
	}

	if duration < min {
		return fmt.Errorf("duration %v is below minimum %v", duration, min)
	}

	if duration > max {
		return fmt.Errorf("duration %v exceeds maximum %v", duration, max)
	}

	return nil
}

// ValidateIntRange validates that an integer value is within [min, max].
//
// Use cases:
//   - Parallelism validation (e.g., 1-50 concurrent operations)
//   - Port number validation (e.g., 1024-65535)
func ValidateIntRange(value, min, max int) error {
	if min > max {
		return fmt.Errorf("invalid range: min (%d) cannot be greater than max (%d)", min, max)
	}

	if value < min {
		return fmt.Errorf("value %d is below minimum %d", value, min)
	}

	if value > max {
		return fmt.Errorf("value %d exceeds maximum %d", value, max)
	}

	return nil
}

// ValidatePositiveDuration validates that a duration is strictly positive.
func ValidatePositiveDuration(duration time.Duration) error {
	if duration <= 0 {
		return fmt.Errorf("duration must be positive, got %v", duration)
	}

	return nil
}

// ValidatePort validates an unprivileged TCP port.
func ValidatePort(port int) error {
	if err := ValidateIntRange(port, 1024, 65535); err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	return nil
}

// ValidateOneOf validates that value is one of allowed. Comparison is exact.
func ValidateOneOf(value string, allowed ...string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	return fmt.Errorf("value %q must be one of %s", value, strings.Join(allowed, ", "))
}

// ValidateWebhookURL checks that raw is an https URL on host whose path
// starts with pathPrefix. The URL itself is never echoed in the error
// because webhook URLs carry their credential in the path.
func ValidateWebhookURL(raw, host, pathPrefix string) error {
	if raw == "" {
		return fmt.Errorf("webhook URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("webhook URL is malformed")
	}
	if u.Scheme != "https" {
		return fmt.Errorf("webhook URL must use https, got %q", u.Scheme)
	}
	if u.Host != host {
		return fmt.Errorf("webhook host must be %s, got %q", host, u.Host)
	}
	if !strings.HasPrefix(u.Path, pathPrefix) {
		return fmt.Errorf("webhook path must start with %s", pathPrefix)
	}
	return nil
}

package config

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ConfigMetrics provides parameterized Prometheus metrics for configuration loading.
//
// Metrics generated (parameterized by component name):
//   - {component}_config_load_timestamp: Unix timestamp of the last successful load
//   - {component}_config_validation_errors_total: Validation errors by field
//
// Configuration is fail-closed: a validation error aborts startup, so the
// error counter is mostly useful on the last scrape before a crash loop.
//
// Example usage:
//
//	metrics := config.NewConfigMetrics("worker", prometheus.DefaultRegisterer)
//	cfg, err := appconfig.Load()
//	if err != nil {
//	    for _, field := range appconfig.InvalidFields(err) {
//	        metrics.RecordValidationError(field)
//	    }
//	}
//	metrics.RecordLoadTimestamp()
type ConfigMetrics struct {
	// LoadTimestamp records the Unix timestamp of the last configuration load.
	LoadTimestamp prometheus.Gauge

	// ValidationErrorsTotal counts configuration validation errors by field.
	ValidationErrorsTotal *prometheus.CounterVec

	componentName string
}

// NewConfigMetrics creates component-prefixed metrics registered with reg.
// A nil reg uses the Prometheus default registerer.
func NewConfigMetrics(componentName string, reg prometheus.Registerer) *ConfigMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &ConfigMetrics{
		LoadTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_config_load_timestamp", componentName),
			Help: fmt.Sprintf("Unix timestamp of last %s configuration load", componentName),
		}),

		ValidationErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_config_validation_errors_total", componentName),
			Help: fmt.Sprintf("Total number of %s configuration validation errors", componentName),
		}, []string{"field"}),

		componentName: componentName,
	}
}

// RecordLoadTimestamp records the current time as the configuration load timestamp.
func (m *ConfigMetrics) RecordLoadTimestamp() {
	m.LoadTimestamp.SetToCurrentTime()
}

// RecordValidationError increments the validation error counter for a specific field.
func (m *ConfigMetrics) RecordValidationError(field string) {
	m.ValidationErrorsTotal.WithLabelValues(field).Inc()
}

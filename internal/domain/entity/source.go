package entity

import (
	"fmt"
	"strings"
)

// Source is a configured feed the worker polls every cycle.
type Source struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Validate validates the Source entity fields.
func (s *Source) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return &ValidationError{Field: "name", Message: "source name is required"}
	}
	if err := ValidateURL(s.URL); err != nil {
		return fmt.Errorf("source %q: %w", s.Name, err)
	}
	return nil
}

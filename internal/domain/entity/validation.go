package entity

import (
	"fmt"
	"net/mail"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

// maxURLLength defines the maximum allowed length for URLs to prevent DoS attacks.
const maxURLLength = 2048

// ValidateURL validates the format of a feed or webhook URL.
// It checks that the URL is well-formed, uses HTTP/HTTPS scheme, and has a valid host.
// Private address checks happen at fetch time in the content fetcher.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return &ValidationError{Field: "url", Message: "URL is required"}
	}

	if len(rawURL) > maxURLLength {
		return &ValidationError{
			Field:   "url",
			Message: fmt.Sprintf("url must not exceed %d characters", maxURLLength),
		}
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse URL: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return &ValidationError{Field: "url", Message: "URL must use http or https scheme"}
	}

	if parsedURL.Host == "" {
		return &ValidationError{Field: "url", Message: "URL must have a valid host"}
	}

	return nil
}

// emailValidate is safe for concurrent use once built.
var emailValidate = validator.New()

// ValidateEmail performs a basic shape check on an email address.
// Display names ("Bot <bot@example.com>") are accepted; only the address part is checked.
func ValidateEmail(address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return &ValidationError{Field: "email", Message: "address is required"}
	}

	parsed, err := mail.ParseAddress(address)
	if err != nil {
		return &ValidationError{Field: "email", Message: fmt.Sprintf("invalid address %q", address)}
	}

	if err := emailValidate.Var(parsed.Address, "required,email"); err != nil {
		return &ValidationError{Field: "email", Message: fmt.Sprintf("invalid address %q", address)}
	}

	return nil
}

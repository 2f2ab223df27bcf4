package fetcher

import "errors"

var (
	// ErrInvalidURL indicates the URL cannot be fetched (bad scheme, no host, failed lookup).
	ErrInvalidURL = errors.New("invalid content URL")

	// ErrPrivateIP indicates the URL or a redirect target resolves to a private address.
	ErrPrivateIP = errors.New("URL resolves to private IP")

	// ErrTooManyRedirects indicates the redirect chain exceeded MaxRedirects.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrTimeout indicates the request exceeded the per-request timeout.
	ErrTimeout = errors.New("content fetch timeout")

	// ErrBodyTooLarge indicates the response exceeded MaxBodySize.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrReadabilityFailed indicates no readable article could be extracted.
	ErrReadabilityFailed = errors.New("readability extraction failed")
)

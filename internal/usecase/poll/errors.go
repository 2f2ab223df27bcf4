// Package poll runs polling cycles: fetch every source, keep fresh unseen
// items, enrich them, dispatch one digest and record what was delivered.
package poll

import "errors"

var (
	// ErrDispatchFailed indicates the digest was not accepted; nothing was marked seen.
	ErrDispatchFailed = errors.New("digest dispatch failed")

	// ErrPanicked wraps a panic recovered from a source fetch or an enrichment step.
	ErrPanicked = errors.New("recovered panic")

	// ErrNoSources is returned by NewService when no source is configured.
	ErrNoSources = errors.New("no feed sources configured")
)

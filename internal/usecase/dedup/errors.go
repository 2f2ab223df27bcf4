package dedup

import "errors"

var (
	// ErrMissingID is returned by IsNew for items without an identifier.
	ErrMissingID = errors.New("dedup: item has no identifier")

	// ErrMissingPublishedAt is returned by IsNew for items without a usable publish time.
	ErrMissingPublishedAt = errors.New("dedup: item has no publish time")
)

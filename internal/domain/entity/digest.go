package entity

import "time"

// Annotation is the optional generated suggestion attached to an item.
type Annotation struct {
	// ShouldSurface is false when the generator judged the item not worth a reply.
	ShouldSurface bool
	Text          string
	Reason        string
}

// DigestEntry is one rendered line of a digest.
type DigestEntry struct {
	Item FeedItem

	// Body is the enriched text when extraction succeeded, otherwise the feed body.
	Body string

	Annotation *Annotation

	// Skipped entries are still rendered, only without an annotation block.
	Skipped    bool
	SkipReason string
}

// Digest is the batch dispatched once per polling cycle.
type Digest struct {
	ID          string
	GeneratedAt time.Time
	Entries     []DigestEntry
}

// ItemIDs returns the identifiers of every entry, skipped ones included.
func (d *Digest) ItemIDs() []string {
	ids := make([]string, 0, len(d.Entries))
	for _, e := range d.Entries {
		ids = append(ids, e.Item.ID)
	}
	return ids
}

// SurfacedCount returns the number of entries that were not skipped.
func (d *Digest) SurfacedCount() int {
	n := 0
	for _, e := range d.Entries {
		if !e.Skipped {
			n++
		}
	}
	return n
}

// SkippedCount returns the number of entries the annotation suppressed.
func (d *Digest) SkippedCount() int {
	return len(d.Entries) - d.SurfacedCount()
}

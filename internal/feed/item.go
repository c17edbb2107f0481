package feed

import (
	"fmt"
	"net/url"
)

// Kind classifies the media carried by a feed item.
type Kind string

const (
	KindVideo Kind = "video"
	KindImage Kind = "image"
	KindText  Kind = "text"
	KindAudio Kind = "audio"
)

// Valid reports whether k is one of the four supported kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindVideo, KindImage, KindText, KindAudio:
		return true
	}
	return false
}

// ItemID is the stable identifier of a feed item. Handles, cache entries and
// journal rows are all keyed by it.
type ItemID string

// Item is one unit in the scroll feed.
//
// Items are created when the feed is (re)loaded and are immutable afterwards;
// a feed reload replaces the whole slice. Media locators are either direct
// URLs or a (Bucket, Path) pair resolved by the fetch layer.
type Item struct {
	ID           ItemID
	Kind         Kind
	VideoURL     string
	ThumbnailURL string
	AudioURL     string
	Bucket       string
	Path         string

	// FeedIndex is the item's rank in the current feed ordering.
	FeedIndex int
}

// Validate checks the item's internal consistency: a non-empty id, a known
// kind, and a usable locator for kinds that require bytes. Text items carry
// no media and need no locator.
func (i Item) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("item: id is required")
	}
	if !i.Kind.Valid() {
		return fmt.Errorf("item %s: unknown kind %q", i.ID, i.Kind)
	}
	if i.FeedIndex < 0 {
		return fmt.Errorf("item %s: negative feed index %d", i.ID, i.FeedIndex)
	}

	switch i.Kind {
	case KindVideo, KindImage:
		if i.ThumbnailURL == "" && !i.hasObjectLocator() {
			return fmt.Errorf("item %s: %s item needs a thumbnail locator", i.ID, i.Kind)
		}
	case KindAudio:
		if i.AudioURL == "" && !i.hasObjectLocator() {
			return fmt.Errorf("item %s: audio item needs an audio locator", i.ID)
		}
	case KindText:
		// No media bytes.
	}
	return nil
}

func (i Item) hasObjectLocator() bool {
	return i.Bucket != "" && i.Path != ""
}

// ThumbnailLocator returns the URL used to prefetch preview bytes for video
// and image items. Falls back to the (bucket, path) object locator when no
// direct URL is set. Empty string means nothing to fetch.
func (i Item) ThumbnailLocator() string {
	if i.ThumbnailURL != "" {
		return i.ThumbnailURL
	}
	if i.hasObjectLocator() {
		return ObjectURL(i.Bucket, i.Path)
	}
	return ""
}

// AudioLocator returns the URL used to prefetch audio head bytes.
func (i Item) AudioLocator() string {
	if i.AudioURL != "" {
		return i.AudioURL
	}
	if i.hasObjectLocator() {
		return ObjectURL(i.Bucket, i.Path)
	}
	return ""
}

// ObjectURL resolves a (bucket, path) storage pair to a fetchable URL.
// The path segment is escaped; the bucket name is used verbatim.
func ObjectURL(bucket, path string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, url.PathEscape(path))
}

// Definition is a compiled feed: an ordered item list plus tuning overrides.
// Produced by the compiler from a CUE feed file, or assembled directly in
// tests.
type Definition struct {
	Name   string
	Items  []Item
	Tuning Tuning
}

// Validate checks the definition: a name, valid items, unique ids.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("feed: name is required")
	}
	seen := make(map[ItemID]bool, len(d.Items))
	for idx, it := range d.Items {
		if err := it.Validate(); err != nil {
			return fmt.Errorf("feed %s: items[%d]: %w", d.Name, idx, err)
		}
		if seen[it.ID] {
			return fmt.Errorf("feed %s: duplicate item id %s", d.Name, it.ID)
		}
		seen[it.ID] = true
	}
	return d.Tuning.Validate()
}

// Normalize assigns each item's FeedIndex from its slice position.
// The slice order is the feed ordering; indexes recorded in a source file
// are advisory and are overwritten here.
func (d *Definition) Normalize() {
	for i := range d.Items {
		d.Items[i].FeedIndex = i
	}
}

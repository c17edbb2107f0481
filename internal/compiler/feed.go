// Package compiler turns CUE feed files into feed definitions.
//
// A feed file declares the item list and optional tuning overrides:
//
//	feed: {
//	    name: "home"
//	    tuning: {
//	        grace_period_ms: 3000
//	        preload_window:  8
//	    }
//	    items: [
//	        {id: "p1", kind: "video", video_url: "https://...", thumbnail_url: "https://..."},
//	        {id: "p2", kind: "image", bucket: "media", path: "img/p2.jpg"},
//	    ]
//	}
//
// Tuning fields are individually optional; anything not set keeps its
// default. Item order in the file is the feed order.
package compiler

import (
	"fmt"
	"time"

	"cuelang.org/go/cue"

	"github.com/carrotlabs/feedgate/internal/feed"
)

// CompileFeed parses a CUE value into a feed definition.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the feed struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`feed: { ... }`)
//	def, err := CompileFeed(v.LookupPath(cue.ParsePath("feed")))
func CompileFeed(v cue.Value) (*feed.Definition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if !v.Exists() {
		return nil, &CompileError{Field: "feed", Message: "feed struct not found"}
	}

	def := &feed.Definition{Tuning: feed.DefaultTuning()}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return nil, &CompileError{
			Field:   "name",
			Message: "name is required",
			Pos:     v.Pos(),
		}
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	def.Name = name

	tuningVal := v.LookupPath(cue.ParsePath("tuning"))
	if tuningVal.Exists() {
		if err := parseTuning(tuningVal, &def.Tuning); err != nil {
			return nil, err
		}
	}

	items, err := parseItems(v)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &CompileError{
			Field:   "items",
			Message: "at least one item is required",
			Pos:     v.Pos(),
		}
	}
	def.Items = items

	def.Normalize()
	if err := def.Validate(); err != nil {
		return nil, &CompileError{
			Field:   "feed",
			Message: err.Error(),
			Pos:     v.Pos(),
		}
	}
	return def, nil
}

// parseItems extracts the ordered item list.
func parseItems(v cue.Value) ([]feed.Item, error) {
	itemsVal := v.LookupPath(cue.ParsePath("items"))
	if !itemsVal.Exists() {
		return nil, &CompileError{
			Field:   "items",
			Message: "items list is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := itemsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var items []feed.Item
	for iter.Next() {
		item, err := parseItem(iter.Value())
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// parseItem extracts one feed item.
func parseItem(v cue.Value) (feed.Item, error) {
	var item feed.Item

	id, err := requiredString(v, "id")
	if err != nil {
		return item, err
	}
	item.ID = feed.ItemID(id)

	kind, err := requiredString(v, "kind")
	if err != nil {
		return item, err
	}
	item.Kind = feed.Kind(kind)
	if !item.Kind.Valid() {
		return item, &CompileError{
			Field:   "kind",
			Message: fmt.Sprintf("item %s: unknown kind %q", id, kind),
			Pos:     v.Pos(),
		}
	}

	if item.VideoURL, err = optionalString(v, "video_url"); err != nil {
		return item, err
	}
	if item.ThumbnailURL, err = optionalString(v, "thumbnail_url"); err != nil {
		return item, err
	}
	if item.AudioURL, err = optionalString(v, "audio_url"); err != nil {
		return item, err
	}
	if item.Bucket, err = optionalString(v, "bucket"); err != nil {
		return item, err
	}
	if item.Path, err = optionalString(v, "path"); err != nil {
		return item, err
	}

	return item, nil
}

// parseTuning applies per-field overrides on top of the defaults already in
// t. Durations are declared in milliseconds.
func parseTuning(v cue.Value, t *feed.Tuning) error {
	if err := v.Err(); err != nil {
		return formatCUEError(err)
	}

	durations := []struct {
		field string
		dst   *time.Duration
	}{
		{"grace_period_ms", &t.GracePeriod},
		{"sweep_debounce_ms", &t.SweepDebounce},
		{"fetch_spacing_ms", &t.FetchSpacing},
		{"fling_window_ms", &t.FlingWindow},
		{"fast_scroll_cooldown_ms", &t.FastScrollCooldown},
	}
	for _, d := range durations {
		val := v.LookupPath(cue.ParsePath(d.field))
		if !val.Exists() {
			continue
		}
		ms, err := val.Int64()
		if err != nil {
			return formatCUEError(err)
		}
		*d.dst = time.Duration(ms) * time.Millisecond
	}

	ints := []struct {
		field string
		dst   *int
	}{
		{"preload_window", &t.PreloadWindow},
		{"cache_capacity", &t.CacheCapacity},
	}
	for _, n := range ints {
		val := v.LookupPath(cue.ParsePath(n.field))
		if !val.Exists() {
			continue
		}
		i, err := val.Int64()
		if err != nil {
			return formatCUEError(err)
		}
		*n.dst = int(i)
	}

	if val := v.LookupPath(cue.ParsePath("audio_head_bytes")); val.Exists() {
		i, err := val.Int64()
		if err != nil {
			return formatCUEError(err)
		}
		t.AudioHeadBytes = i
	}

	floats := []struct {
		field string
		dst   *float64
	}{
		{"sweep_threshold_screens", &t.SweepThresholdScreens},
		{"fast_scroll_velocity", &t.FastScrollVelocity},
		{"fling_screens", &t.FlingScreens},
	}
	for _, f := range floats {
		val := v.LookupPath(cue.ParsePath(f.field))
		if !val.Exists() {
			continue
		}
		x, err := val.Float64()
		if err != nil {
			return formatCUEError(err)
		}
		*f.dst = x
	}

	return nil
}

func requiredString(v cue.Value, field string) (string, error) {
	val := v.LookupPath(cue.ParsePath(field))
	if !val.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	val := v.LookupPath(cue.ParsePath(field))
	if !val.Exists() {
		return "", nil
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

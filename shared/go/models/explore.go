package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Category selects which catalogue the explore feed is paging through.
type Category string

const (
	CategoryArtists Category = "artists"
	CategoryEvents  Category = "events"
	CategoryVenues  Category = "venues"
	CategoryGallery Category = "gallery"
)

// ErrUnknownCategory is returned when a category string is not one of the known values.
var ErrUnknownCategory = errors.New("unknown category")

// Categories lists every category in selector order.
func Categories() []Category {
	return []Category{CategoryArtists, CategoryEvents, CategoryVenues, CategoryGallery}
}

// ParseCategory validates a raw category name.
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, raw)
	}
	return c, nil
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryArtists, CategoryEvents, CategoryVenues, CategoryGallery:
		return true
	}
	return false
}

// SwipeDirection is the direction a committed card left the screen.
type SwipeDirection string

const (
	SwipeLeft  SwipeDirection = "left"
	SwipeRight SwipeDirection = "right"
	SwipeUp    SwipeDirection = "up"
	SwipeDown  SwipeDirection = "down"
)

// Valid reports whether d is one of the four swipe directions.
func (d SwipeDirection) Valid() bool {
	switch d {
	case SwipeLeft, SwipeRight, SwipeUp, SwipeDown:
		return true
	}
	return false
}

// ExploreItem is a single recommendation card. Exactly one of the variant
// pointers is set and it must agree with Kind.
type ExploreItem struct {
	ID       string   `json:"id"`
	Kind     Category `json:"kind"`
	Name     string   `json:"name"`
	Rating   float64  `json:"rating"`
	Location string   `json:"location"`
	Price    float64  `json:"price"`
	Images   []string `json:"images"`

	// Coordinates are optional; items without them never match a distance filter.
	Coordinates *Coordinates `json:"coordinates,omitempty"`

	Artist      *ArtistDetails      `json:"artist,omitempty"`
	Event       *EventDetails       `json:"event,omitempty"`
	Venue       *VenueDetails       `json:"venue,omitempty"`
	GalleryItem *GalleryItemDetails `json:"gallery_item,omitempty"`
}

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ArtistDetails holds the artist-specific card fields.
type ArtistDetails struct {
	Discipline string `json:"discipline"` // e.g. "painter", "dj", "photographer"
	Role       string `json:"role"`
	Bio        string `json:"bio,omitempty"`
}

// EventDetails holds the event-specific card fields.
type EventDetails struct {
	StartsAt  time.Time `json:"starts_at"`
	VenueName string    `json:"venue_name"`
	Format    string    `json:"format"` // e.g. "live", "exhibition", "workshop"
}

// VenueDetails holds the venue-specific card fields.
type VenueDetails struct {
	Capacity  int    `json:"capacity"`
	VenueType string `json:"venue_type"`
}

// GalleryItemDetails holds the gallery-specific card fields.
type GalleryItemDetails struct {
	ArtistName      string `json:"artist_name"`
	Medium          string `json:"medium"`
	TransactionType string `json:"transaction_type"` // buy, rent, commission
	Condition       string `json:"condition"`
}

// CheckVariant reports an error when the variant payload does not match Kind.
func (i ExploreItem) CheckVariant() error {
	set := 0
	for _, present := range []bool{i.Artist != nil, i.Event != nil, i.Venue != nil, i.GalleryItem != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("item %q: expected exactly one variant, got %d", i.ID, set)
	}

	var ok bool
	switch i.Kind {
	case CategoryArtists:
		ok = i.Artist != nil
	case CategoryEvents:
		ok = i.Event != nil
	case CategoryVenues:
		ok = i.Venue != nil
	case CategoryGallery:
		ok = i.GalleryItem != nil
	default:
		return fmt.Errorf("item %q: %w: %q", i.ID, ErrUnknownCategory, i.Kind)
	}
	if !ok {
		return fmt.Errorf("item %q: variant does not match kind %q", i.ID, i.Kind)
	}
	return nil
}

// SwipeRecord is an entry of the swipe history log.
type SwipeRecord struct {
	CardID    string         `json:"card_id"`
	Direction SwipeDirection `json:"direction"`
	Timestamp time.Time      `json:"timestamp"`
}

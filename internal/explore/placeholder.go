package explore

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"artbeat/shared/go/models"
)

// PlaceholderProvider supplies canned cards when a load succeeds with no
// items. Sessions without a provider show the empty state instead.
type PlaceholderProvider interface {
	Placeholders(category models.Category) []models.ExploreItem
}

// StaticPlaceholders is a fixed placeholder set per category.
type StaticPlaceholders map[models.Category][]models.ExploreItem

// Placeholders returns a copy of the set for category.
func (p StaticPlaceholders) Placeholders(category models.Category) []models.ExploreItem {
	items := p[category]
	out := make([]models.ExploreItem, len(items))
	copy(out, items)
	return out
}

// All returns every placeholder grouped by category.
func (p StaticPlaceholders) All() map[models.Category][]models.ExploreItem {
	return p
}

type catalogFile struct {
	Placeholders []catalogEntry `yaml:"placeholders"`
}

type catalogEntry struct {
	ID       string   `yaml:"id"`
	Kind     string   `yaml:"kind"`
	Name     string   `yaml:"name"`
	Rating   float64  `yaml:"rating"`
	Location string   `yaml:"location"`
	Price    float64  `yaml:"price"`
	Images   []string `yaml:"images"`
	Lat      *float64 `yaml:"lat"`
	Lon      *float64 `yaml:"lon"`

	Discipline string `yaml:"discipline"`
	Role       string `yaml:"role"`
	Bio        string `yaml:"bio"`

	StartsAt  time.Time `yaml:"starts_at"`
	VenueName string    `yaml:"venue_name"`
	Format    string    `yaml:"format"`

	Capacity  int    `yaml:"capacity"`
	VenueType string `yaml:"venue_type"`

	ArtistName      string `yaml:"artist_name"`
	Medium          string `yaml:"medium"`
	TransactionType string `yaml:"transaction_type"`
	Condition       string `yaml:"condition"`
}

// LoadPlaceholderFile reads the placeholders section of a YAML catalogue.
func LoadPlaceholderFile(path string) (StaticPlaceholders, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open placeholder catalog: %w", err)
	}
	defer f.Close()
	return DecodePlaceholders(f)
}

// DecodePlaceholders parses a YAML catalogue. Every entry must be a valid
// card of its kind and ids must be unique per category.
func DecodePlaceholders(r io.Reader) (StaticPlaceholders, error) {
	var file catalogFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode placeholder catalog: %w", err)
	}

	out := StaticPlaceholders{}
	for _, entry := range file.Placeholders {
		item, err := entry.item()
		if err != nil {
			return nil, err
		}
		out[item.Kind] = append(out[item.Kind], item)
	}
	for category, items := range out {
		if err := checkIdentity(items); err != nil {
			return nil, fmt.Errorf("placeholders for %s: %w", category, err)
		}
	}
	return out, nil
}

func (e catalogEntry) item() (models.ExploreItem, error) {
	kind, err := models.ParseCategory(e.Kind)
	if err != nil {
		return models.ExploreItem{}, fmt.Errorf("placeholder %q: %w", e.ID, err)
	}

	item := models.ExploreItem{
		ID:       e.ID,
		Kind:     kind,
		Name:     e.Name,
		Rating:   e.Rating,
		Location: e.Location,
		Price:    e.Price,
		Images:   append([]string{}, e.Images...),
	}
	if e.Lat != nil && e.Lon != nil {
		item.Coordinates = &models.Coordinates{Lat: *e.Lat, Lon: *e.Lon}
	}
	switch kind {
	case models.CategoryArtists:
		item.Artist = &models.ArtistDetails{Discipline: e.Discipline, Role: e.Role, Bio: e.Bio}
	case models.CategoryEvents:
		item.Event = &models.EventDetails{StartsAt: e.StartsAt, VenueName: e.VenueName, Format: e.Format}
	case models.CategoryVenues:
		item.Venue = &models.VenueDetails{Capacity: e.Capacity, VenueType: e.VenueType}
	case models.CategoryGallery:
		item.GalleryItem = &models.GalleryItemDetails{
			ArtistName:      e.ArtistName,
			Medium:          e.Medium,
			TransactionType: e.TransactionType,
			Condition:       e.Condition,
		}
	}
	if item.ID == "" {
		return models.ExploreItem{}, fmt.Errorf("placeholder %q: %w", e.Name, ErrEmptyItemID)
	}
	return item, nil
}

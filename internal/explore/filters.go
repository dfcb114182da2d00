package explore

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"

	"artbeat/shared/go/models"
)

// DateWindow restricts dated items to an upcoming period.
type DateWindow string

const (
	DateAny   DateWindow = "any"
	DateToday DateWindow = "today"
	DateWeek  DateWindow = "week"
	DateMonth DateWindow = "month"
)

// GeoPoint is the optional origin distance filtering is measured from.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// GenericFilters apply to every category.
type GenericFilters struct {
	MaxDistanceKm float64    `json:"max_distance_km"`
	PriceMin      float64    `json:"price_min"`
	PriceMax      float64    `json:"price_max"`
	DateWindow    DateWindow `json:"date_window"`
	Origin        *GeoPoint  `json:"origin,omitempty"`
}

// ArtistFilters are read only when exploring artists.
type ArtistFilters struct {
	Discipline string `json:"discipline"`
	Role       string `json:"role"`
	Sort       string `json:"sort"`
}

// EventFilters are read only when exploring events.
type EventFilters struct {
	Format string `json:"format"`
	Sort   string `json:"sort"`
}

// VenueFilters are read only when exploring venues.
type VenueFilters struct {
	VenueType   string `json:"venue_type"`
	MinCapacity int    `json:"min_capacity"`
	Sort        string `json:"sort"`
}

// GalleryFilters are read only when exploring gallery items.
type GalleryFilters struct {
	TransactionTypes []string `json:"transaction_types"`
	Conditions       []string `json:"conditions"`
	Sort             string   `json:"sort"`
}

// FilterState is the single record edited by the filter panel. It carries
// every category's fields at once; loads read it through Query.
type FilterState struct {
	Generic GenericFilters `json:"generic"`
	Artists ArtistFilters  `json:"artists"`
	Events  EventFilters   `json:"events"`
	Venues  VenueFilters   `json:"venues"`
	Gallery GalleryFilters `json:"gallery"`
}

// Query is the validated, category-scoped view of a FilterState handed to
// the data source. Only the pointer matching Category is set.
type Query struct {
	Category models.Category `json:"category"`
	Generic  GenericFilters  `json:"generic"`
	Artists  *ArtistFilters  `json:"artists,omitempty"`
	Events   *EventFilters   `json:"events,omitempty"`
	Venues   *VenueFilters   `json:"venues,omitempty"`
	Gallery  *GalleryFilters `json:"gallery,omitempty"`
}

const maxDistanceKm = 500

var (
	dateWindows       = []string{string(DateAny), string(DateToday), string(DateWeek), string(DateMonth)}
	artistDisciplines = []string{"any", "painter", "sculptor", "photographer", "illustrator", "musician", "dj", "dancer", "tattoo"}
	artistRoles       = []string{"any", "solo", "band", "collective", "instructor"}
	artistSorts       = []string{"recommended", "rating", "price_asc", "price_desc"}
	eventFormats      = []string{"any", "live", "exhibition", "workshop", "festival", "online"}
	eventSorts        = []string{"soonest", "rating", "price_asc", "price_desc"}
	venueTypes        = []string{"any", "gallery", "club", "theater", "studio", "outdoor"}
	venueSorts        = []string{"recommended", "rating", "capacity"}
	transactionTypes  = []string{"buy", "rent", "commission"}
	itemConditions    = []string{"new", "like_new", "used", "restored"}
	gallerySorts      = []string{"newest", "rating", "price_asc", "price_desc"}
)

// DefaultFilters returns the state produced by a reset.
func DefaultFilters() FilterState {
	return FilterState{
		Generic: GenericFilters{
			MaxDistanceKm: 50,
			PriceMin:      0,
			PriceMax:      10000,
			DateWindow:    DateAny,
		},
		Artists: ArtistFilters{Discipline: "any", Role: "any", Sort: "recommended"},
		Events:  EventFilters{Format: "any", Sort: "soonest"},
		Venues:  VenueFilters{VenueType: "any", MinCapacity: 0, Sort: "recommended"},
		Gallery: GalleryFilters{TransactionTypes: []string{}, Conditions: []string{}, Sort: "newest"},
	}
}

// Clone returns a deep copy.
func (f FilterState) Clone() FilterState {
	out := f
	if f.Generic.Origin != nil {
		origin := *f.Generic.Origin
		out.Generic.Origin = &origin
	}
	out.Gallery.TransactionTypes = append([]string{}, f.Gallery.TransactionTypes...)
	out.Gallery.Conditions = append([]string{}, f.Gallery.Conditions...)
	return out
}

// Query validates the generic fields and the subset belonging to category,
// and returns them as a category-scoped query.
func (f FilterState) Query(category models.Category) (Query, error) {
	if !category.Valid() {
		return Query{}, fmt.Errorf("%w: %q", models.ErrUnknownCategory, category)
	}
	if err := f.Generic.validate(); err != nil {
		return Query{}, err
	}

	c := f.Clone()
	q := Query{Category: category, Generic: c.Generic}
	switch category {
	case models.CategoryArtists:
		if err := c.Artists.validate(); err != nil {
			return Query{}, err
		}
		q.Artists = &c.Artists
	case models.CategoryEvents:
		if err := c.Events.validate(); err != nil {
			return Query{}, err
		}
		q.Events = &c.Events
	case models.CategoryVenues:
		if err := c.Venues.validate(); err != nil {
			return Query{}, err
		}
		q.Venues = &c.Venues
	case models.CategoryGallery:
		if err := c.Gallery.validate(); err != nil {
			return Query{}, err
		}
		q.Gallery = &c.Gallery
	}
	return q, nil
}

// Validate checks every category's fields.
func (f FilterState) Validate() error {
	for _, c := range models.Categories() {
		if _, err := f.Query(c); err != nil {
			return err
		}
	}
	return nil
}

func (g GenericFilters) validate() error {
	for key, v := range map[string]float64{"distance": g.MaxDistanceKm, "price_min": g.PriceMin, "price_max": g.PriceMax} {
		if !finite(v) {
			return invalid(key, fmt.Sprint(v))
		}
	}
	if o := g.Origin; o != nil && !(finite(o.Lat) && finite(o.Lon)) {
		return invalid("origin", fmt.Sprintf("%v,%v", o.Lat, o.Lon))
	}
	if g.MaxDistanceKm <= 0 || g.MaxDistanceKm > maxDistanceKm {
		return invalid("distance", fmt.Sprint(g.MaxDistanceKm))
	}
	if g.PriceMin < 0 {
		return invalid("price_min", fmt.Sprint(g.PriceMin))
	}
	if g.PriceMax < g.PriceMin {
		return fmt.Errorf("%w: price_max %v below price_min %v", ErrInvalidFilterValue, g.PriceMax, g.PriceMin)
	}
	if err := oneOf("date", string(g.DateWindow), dateWindows); err != nil {
		return err
	}
	if o := g.Origin; o != nil && (o.Lat < -90 || o.Lat > 90 || o.Lon < -180 || o.Lon > 180) {
		return invalid("origin", fmt.Sprintf("%v,%v", o.Lat, o.Lon))
	}
	return nil
}

func (a ArtistFilters) validate() error {
	if err := oneOf("artists.discipline", a.Discipline, artistDisciplines); err != nil {
		return err
	}
	if err := oneOf("artists.role", a.Role, artistRoles); err != nil {
		return err
	}
	return oneOf("artists.sort", a.Sort, artistSorts)
}

func (e EventFilters) validate() error {
	if err := oneOf("events.format", e.Format, eventFormats); err != nil {
		return err
	}
	return oneOf("events.sort", e.Sort, eventSorts)
}

func (v VenueFilters) validate() error {
	if err := oneOf("venues.type", v.VenueType, venueTypes); err != nil {
		return err
	}
	if v.MinCapacity < 0 {
		return invalid("venues.min_capacity", strconv.Itoa(v.MinCapacity))
	}
	return oneOf("venues.sort", v.Sort, venueSorts)
}

func (g GalleryFilters) validate() error {
	for _, t := range g.TransactionTypes {
		if err := oneOf("gallery.transaction_types", t, transactionTypes); err != nil {
			return err
		}
	}
	for _, c := range g.Conditions {
		if err := oneOf("gallery.conditions", c, itemConditions); err != nil {
			return err
		}
	}
	return oneOf("gallery.sort", g.Sort, gallerySorts)
}

// FilterStore holds the mutable filter record for one explore session. It
// only parameterises the next load; it never filters the displayed stack.
type FilterStore struct {
	mu    sync.Mutex
	state FilterState
}

// NewFilterStore returns a store holding the defaults.
func NewFilterStore() *FilterStore {
	return &FilterStore{state: DefaultFilters()}
}

// State returns a copy of the current record.
func (s *FilterStore) State() FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Query returns the category-scoped view of the current record.
func (s *FilterStore) Query(category models.Category) (Query, error) {
	return s.State().Query(category)
}

// Reset restores DefaultFilters.
func (s *FilterStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = DefaultFilters()
}

// Apply replaces the whole record after validating it.
func (s *FilterStore) Apply(state FilterState) error {
	next := state.Clone()
	if err := next.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = next
	return nil
}

// SetField parses value and assigns it to the field named key. Cross-field
// constraints such as price_min <= price_max are checked when a query is built.
func (s *FilterStore) SetField(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Clone()
	if err := setField(&next, strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
		return err
	}
	s.state = next
	return nil
}

func setField(f *FilterState, key, value string) error {
	switch key {
	case "distance":
		v, err := parseFloat(key, value)
		if err != nil {
			return err
		}
		if v <= 0 || v > maxDistanceKm {
			return invalid(key, value)
		}
		f.Generic.MaxDistanceKm = v
	case "price_min":
		v, err := parseFloat(key, value)
		if err != nil {
			return err
		}
		if v < 0 {
			return invalid(key, value)
		}
		f.Generic.PriceMin = v
	case "price_max":
		v, err := parseFloat(key, value)
		if err != nil {
			return err
		}
		if v < 0 {
			return invalid(key, value)
		}
		f.Generic.PriceMax = v
	case "date":
		if err := oneOf(key, value, dateWindows); err != nil {
			return err
		}
		f.Generic.DateWindow = DateWindow(value)
	case "origin":
		origin, err := parseOrigin(value)
		if err != nil {
			return err
		}
		f.Generic.Origin = origin
	case "artists.discipline":
		return assignEnum(&f.Artists.Discipline, key, value, artistDisciplines)
	case "artists.role":
		return assignEnum(&f.Artists.Role, key, value, artistRoles)
	case "artists.sort":
		return assignEnum(&f.Artists.Sort, key, value, artistSorts)
	case "events.format":
		return assignEnum(&f.Events.Format, key, value, eventFormats)
	case "events.sort":
		return assignEnum(&f.Events.Sort, key, value, eventSorts)
	case "venues.type":
		return assignEnum(&f.Venues.VenueType, key, value, venueTypes)
	case "venues.min_capacity":
		v, err := strconv.Atoi(value)
		if err != nil || v < 0 {
			return invalid(key, value)
		}
		f.Venues.MinCapacity = v
	case "venues.sort":
		return assignEnum(&f.Venues.Sort, key, value, venueSorts)
	case "gallery.transaction_types":
		return assignList(&f.Gallery.TransactionTypes, key, value, transactionTypes)
	case "gallery.conditions":
		return assignList(&f.Gallery.Conditions, key, value, itemConditions)
	case "gallery.sort":
		return assignEnum(&f.Gallery.Sort, key, value, gallerySorts)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFilterField, key)
	}
	return nil
}

func assignEnum(dst *string, key, value string, allowed []string) error {
	if err := oneOf(key, value, allowed); err != nil {
		return err
	}
	*dst = value
	return nil
}

func assignList(dst *[]string, key, value string, allowed []string) error {
	list := []string{}
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if err := oneOf(key, part, allowed); err != nil {
			return err
		}
		if !slices.Contains(list, part) {
			list = append(list, part)
		}
	}
	*dst = list
	return nil
}

func parseFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || !finite(v) {
		return 0, invalid(key, value)
	}
	return v, nil
}

// finite rejects NaN and the infinities, which JSON cannot encode.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func parseOrigin(value string) (*GeoPoint, error) {
	if value == "" {
		return nil, nil
	}
	lat, lon, ok := strings.Cut(value, ",")
	if !ok {
		return nil, invalid("origin", value)
	}
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil || !finite(la) || la < -90 || la > 90 {
		return nil, invalid("origin", value)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil || !finite(lo) || lo < -180 || lo > 180 {
		return nil, invalid("origin", value)
	}
	return &GeoPoint{Lat: la, Lon: lo}, nil
}

func oneOf(key, value string, allowed []string) error {
	if !slices.Contains(allowed, value) {
		return invalid(key, value)
	}
	return nil
}

func invalid(key, value string) error {
	return fmt.Errorf("%w: %s=%q", ErrInvalidFilterValue, key, value)
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"artbeat/internal/explore"
	"artbeat/shared/go/models"
)

// ErrUnsupportedCategory is returned for a category without a catalog table.
var ErrUnsupportedCategory = errors.New("unsupported category")

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var baseColumns = []string{"id", "name", "rating", "location", "price", "images", "latitude", "longitude"}

var catalogTables = map[models.Category]struct {
	table   string
	columns []string
}{
	models.CategoryArtists: {table: "artists", columns: []string{"discipline", "role", "bio"}},
	models.CategoryEvents:  {table: "events", columns: []string{"starts_at", "venue_name", "format"}},
	models.CategoryVenues:  {table: "venues", columns: []string{"capacity", "venue_type"}},
	models.CategoryGallery: {table: "gallery_items", columns: []string{"artist_name", "medium", "transaction_type", "item_condition"}},
}

const kmPerDegreeLat = 111.32

// ListExploreItems returns up to limit catalog rows matching q, best match first.
func (s *Store) ListExploreItems(ctx context.Context, q explore.Query, limit int, now time.Time) ([]models.ExploreItem, error) {
	stmt, args, err := exploreQuery(q, limit, now)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", q.Category, err)
	}
	defer rows.Close()

	var items []models.ExploreItem
	for rows.Next() {
		item, err := scanExploreItem(rows, q.Category)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", q.Category, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", q.Category, err)
	}
	return items, nil
}

func exploreQuery(q explore.Query, limit int, now time.Time) (string, []interface{}, error) {
	t, ok := catalogTables[q.Category]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrUnsupportedCategory, q.Category)
	}

	b := psql.Select(append(append([]string{}, baseColumns...), t.columns...)...).
		From(t.table).
		Where(sq.GtOrEq{"price": q.Generic.PriceMin}).
		Where(sq.LtOrEq{"price": q.Generic.PriceMax})

	if o := q.Generic.Origin; o != nil && q.Generic.MaxDistanceKm > 0 {
		dLat, dLon := boundingBox(o.Lat, q.Generic.MaxDistanceKm)
		b = b.Where("latitude BETWEEN ? AND ?", o.Lat-dLat, o.Lat+dLat)
		if lon := longitudeRange(o.Lon, dLon); lon != nil {
			b = b.Where(lon)
		}
	}

	switch q.Category {
	case models.CategoryArtists:
		f := q.Artists
		if f == nil {
			return "", nil, fmt.Errorf("artists query without artist filters")
		}
		if f.Discipline != "any" {
			b = b.Where(sq.Eq{"discipline": f.Discipline})
		}
		if f.Role != "any" {
			b = b.Where(sq.Eq{"role": f.Role})
		}
		b = b.OrderBy(artistOrder(f.Sort)...)

	case models.CategoryEvents:
		f := q.Events
		if f == nil {
			return "", nil, fmt.Errorf("events query without event filters")
		}
		b = b.Where(sq.GtOrEq{"starts_at": now})
		if end, ok := windowEnd(q.Generic.DateWindow, now); ok {
			b = b.Where(sq.Lt{"starts_at": end})
		}
		if f.Format != "any" {
			b = b.Where(sq.Eq{"format": f.Format})
		}
		b = b.OrderBy(eventOrder(f.Sort)...)

	case models.CategoryVenues:
		f := q.Venues
		if f == nil {
			return "", nil, fmt.Errorf("venues query without venue filters")
		}
		if f.VenueType != "any" {
			b = b.Where(sq.Eq{"venue_type": f.VenueType})
		}
		if f.MinCapacity > 0 {
			b = b.Where(sq.GtOrEq{"capacity": f.MinCapacity})
		}
		b = b.OrderBy(venueOrder(f.Sort)...)

	case models.CategoryGallery:
		f := q.Gallery
		if f == nil {
			return "", nil, fmt.Errorf("gallery query without gallery filters")
		}
		if len(f.TransactionTypes) > 0 {
			b = b.Where("transaction_type = ANY(?)", pq.Array(f.TransactionTypes))
		}
		if len(f.Conditions) > 0 {
			b = b.Where("item_condition = ANY(?)", pq.Array(f.Conditions))
		}
		b = b.OrderBy(galleryOrder(f.Sort)...)
	}

	if limit > 0 {
		b = b.Limit(uint64(limit))
	}

	stmt, args, err := b.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build %s query: %w", q.Category, err)
	}
	return stmt, args, nil
}

// boundingBox returns the latitude and longitude half-widths of a square
// around lat covering km in every direction.
func boundingBox(lat, km float64) (float64, float64) {
	dLat := km / kmPerDegreeLat
	cos := math.Cos(lat * math.Pi / 180)
	if cos < 0.01 {
		return dLat, 180
	}
	return dLat, km / (kmPerDegreeLat * cos)
}

// longitudeRange matches longitudes within dLon of lon, wrapping across the
// antimeridian. It returns nil when every longitude matches.
func longitudeRange(lon, dLon float64) sq.Sqlizer {
	if dLon >= 180 {
		return nil
	}
	lo, hi := lon-dLon, lon+dLon
	switch {
	case lo < -180:
		return sq.Or{
			sq.Expr("longitude BETWEEN ? AND ?", lo+360, 180.0),
			sq.Expr("longitude BETWEEN ? AND ?", -180.0, hi),
		}
	case hi > 180:
		return sq.Or{
			sq.Expr("longitude BETWEEN ? AND ?", lo, 180.0),
			sq.Expr("longitude BETWEEN ? AND ?", -180.0, hi-360),
		}
	}
	return sq.Expr("longitude BETWEEN ? AND ?", lo, hi)
}

func windowEnd(w explore.DateWindow, now time.Time) (time.Time, bool) {
	switch w {
	case explore.DateToday:
		y, m, d := now.Date()
		return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location()), true
	case explore.DateWeek:
		return now.AddDate(0, 0, 7), true
	case explore.DateMonth:
		return now.AddDate(0, 1, 0), true
	}
	return time.Time{}, false
}

func priceOrder(sort string) ([]string, bool) {
	switch sort {
	case "price_asc":
		return []string{"price ASC", "id ASC"}, true
	case "price_desc":
		return []string{"price DESC", "id ASC"}, true
	}
	return nil, false
}

func artistOrder(sort string) []string {
	if order, ok := priceOrder(sort); ok {
		return order
	}
	if sort == "rating" {
		return []string{"rating DESC", "id ASC"}
	}
	return []string{"rating DESC", "created_at DESC", "id ASC"}
}

func eventOrder(sort string) []string {
	if order, ok := priceOrder(sort); ok {
		return order
	}
	if sort == "rating" {
		return []string{"rating DESC", "id ASC"}
	}
	return []string{"starts_at ASC", "id ASC"}
}

func venueOrder(sort string) []string {
	switch sort {
	case "rating":
		return []string{"rating DESC", "id ASC"}
	case "capacity":
		return []string{"capacity DESC", "id ASC"}
	}
	return []string{"rating DESC", "created_at DESC", "id ASC"}
}

func galleryOrder(sort string) []string {
	if order, ok := priceOrder(sort); ok {
		return order
	}
	if sort == "rating" {
		return []string{"rating DESC", "id ASC"}
	}
	return []string{"created_at DESC", "id ASC"}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExploreItem(row rowScanner, category models.Category) (models.ExploreItem, error) {
	item := models.ExploreItem{Kind: category}
	var (
		lat, lon sql.NullFloat64
		images   []string
	)
	base := []interface{}{&item.ID, &item.Name, &item.Rating, &item.Location, &item.Price, pq.Array(&images), &lat, &lon}

	var err error
	switch category {
	case models.CategoryArtists:
		var (
			a   models.ArtistDetails
			bio sql.NullString
		)
		err = row.Scan(append(base, &a.Discipline, &a.Role, &bio)...)
		a.Bio = bio.String
		item.Artist = &a
	case models.CategoryEvents:
		var e models.EventDetails
		err = row.Scan(append(base, &e.StartsAt, &e.VenueName, &e.Format)...)
		item.Event = &e
	case models.CategoryVenues:
		var v models.VenueDetails
		err = row.Scan(append(base, &v.Capacity, &v.VenueType)...)
		item.Venue = &v
	case models.CategoryGallery:
		var g models.GalleryItemDetails
		err = row.Scan(append(base, &g.ArtistName, &g.Medium, &g.TransactionType, &g.Condition)...)
		item.GalleryItem = &g
	default:
		return models.ExploreItem{}, fmt.Errorf("%w: %q", ErrUnsupportedCategory, category)
	}
	if err != nil {
		return models.ExploreItem{}, err
	}

	if images == nil {
		images = []string{}
	}
	item.Images = images
	if lat.Valid && lon.Valid {
		item.Coordinates = &models.Coordinates{Lat: lat.Float64, Lon: lon.Float64}
	}
	return item, nil
}

// SeedCatalog inserts items into their catalog tables in one transaction and
// reports how many rows were new. Existing ids are skipped.
func (s *Store) SeedCatalog(ctx context.Context, items []models.ExploreItem) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	inserted := 0
	for _, item := range items {
		stmt, args, err := seedStatement(item)
		if err != nil {
			return 0, err
		}
		res, err := tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			return 0, fmt.Errorf("insert %s %q: %w", item.Kind, item.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected for %s %q: %w", item.Kind, item.ID, err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	tx = nil
	return inserted, nil
}

func seedStatement(item models.ExploreItem) (string, []interface{}, error) {
	if err := item.CheckVariant(); err != nil {
		return "", nil, err
	}
	t, ok := catalogTables[item.Kind]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrUnsupportedCategory, item.Kind)
	}

	var lat, lon sql.NullFloat64
	if c := item.Coordinates; c != nil {
		lat = sql.NullFloat64{Float64: c.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: c.Lon, Valid: true}
	}
	images := item.Images
	if images == nil {
		images = []string{}
	}
	values := []interface{}{item.ID, item.Name, item.Rating, item.Location, item.Price, pq.Array(images), lat, lon}

	switch item.Kind {
	case models.CategoryArtists:
		values = append(values, item.Artist.Discipline, item.Artist.Role, item.Artist.Bio)
	case models.CategoryEvents:
		values = append(values, item.Event.StartsAt, item.Event.VenueName, item.Event.Format)
	case models.CategoryVenues:
		values = append(values, item.Venue.Capacity, item.Venue.VenueType)
	case models.CategoryGallery:
		g := item.GalleryItem
		values = append(values, g.ArtistName, g.Medium, g.TransactionType, g.Condition)
	}

	stmt, args, err := psql.Insert(t.table).
		Columns(append(append([]string{}, baseColumns...), t.columns...)...).
		Values(values...).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build %s insert: %w", item.Kind, err)
	}
	return stmt, args, nil
}

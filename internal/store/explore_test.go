package store

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"artbeat/internal/explore"
	"artbeat/shared/go/models"
)

var testNow = time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)

func exploreQueryFor(t *testing.T, c models.Category, mutate func(*explore.FilterState)) explore.Query {
	t.Helper()
	f := explore.DefaultFilters()
	if mutate != nil {
		mutate(&f)
	}
	q, err := f.Query(c)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	return q
}

func TestExploreQueryByCategory(t *testing.T) {
	tests := []struct {
		name     string
		category models.Category
		mutate   func(*explore.FilterState)
		contains []string
		absent   []string
		args     int
	}{
		{
			name:     "artists defaults",
			category: models.CategoryArtists,
			contains: []string{
				"FROM artists",
				"WHERE price >= $1 AND price <= $2",
				"ORDER BY rating DESC, created_at DESC, id ASC",
				"LIMIT 20",
			},
			absent: []string{"discipline =", "latitude BETWEEN"},
			args:   2,
		},
		{
			name:     "artists discipline and role",
			category: models.CategoryArtists,
			mutate: func(f *explore.FilterState) {
				f.Artists.Discipline = "painter"
				f.Artists.Role = "solo"
				f.Artists.Sort = "price_asc"
			},
			contains: []string{"discipline = $3", "role = $4", "ORDER BY price ASC, id ASC"},
			args:     4,
		},
		{
			name:     "events this week",
			category: models.CategoryEvents,
			mutate: func(f *explore.FilterState) {
				f.Generic.DateWindow = explore.DateWeek
				f.Events.Format = "live"
			},
			contains: []string{"FROM events", "starts_at >= $3", "starts_at < $4", "format = $5", "ORDER BY starts_at ASC"},
			args:     5,
		},
		{
			name:     "venues capacity",
			category: models.CategoryVenues,
			mutate: func(f *explore.FilterState) {
				f.Venues.MinCapacity = 200
				f.Venues.Sort = "capacity"
			},
			contains: []string{"FROM venues", "capacity >= $3", "ORDER BY capacity DESC"},
			absent:   []string{"venue_type ="},
			args:     3,
		},
		{
			name:     "gallery lists",
			category: models.CategoryGallery,
			mutate: func(f *explore.FilterState) {
				f.Gallery.TransactionTypes = []string{"buy", "rent"}
				f.Gallery.Conditions = []string{"new"}
			},
			contains: []string{"FROM gallery_items", "transaction_type = ANY($3)", "item_condition = ANY($4)", "ORDER BY created_at DESC"},
			args:     4,
		},
		{
			name:     "distance from origin",
			category: models.CategoryVenues,
			mutate: func(f *explore.FilterState) {
				f.Generic.Origin = &explore.GeoPoint{Lat: 52.52, Lon: 13.405}
				f.Generic.MaxDistanceKm = 10
			},
			contains: []string{"latitude BETWEEN $3 AND $4", "longitude BETWEEN $5 AND $6"},
			args:     6,
		},
		{
			name:     "distance across the antimeridian",
			category: models.CategoryEvents,
			mutate: func(f *explore.FilterState) {
				f.Generic.Origin = &explore.GeoPoint{Lat: -17.7, Lon: 179.9}
				f.Generic.MaxDistanceKm = 50
			},
			contains: []string{"latitude BETWEEN $3 AND $4", "(longitude BETWEEN $5 AND $6 OR longitude BETWEEN $7 AND $8)", "starts_at >= $9"},
			args:     9,
		},
		{
			name:     "distance at the pole",
			category: models.CategoryVenues,
			mutate: func(f *explore.FilterState) {
				f.Generic.Origin = &explore.GeoPoint{Lat: 89.99, Lon: 0}
				f.Generic.MaxDistanceKm = 10
			},
			contains: []string{"latitude BETWEEN $3 AND $4"},
			absent:   []string{"longitude BETWEEN"},
			args:     4,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			stmt, args, err := exploreQuery(exploreQueryFor(t, tc.category, tc.mutate), 20, testNow)
			if err != nil {
				t.Fatalf("exploreQuery: %v", err)
			}
			for _, want := range tc.contains {
				if !strings.Contains(stmt, want) {
					t.Errorf("expected %q in %s", want, stmt)
				}
			}
			for _, unwanted := range tc.absent {
				if strings.Contains(stmt, unwanted) {
					t.Errorf("did not expect %q in %s", unwanted, stmt)
				}
			}
			if len(args) != tc.args {
				t.Fatalf("expected %d args, got %d: %v", tc.args, len(args), args)
			}
		})
	}
}

func TestExploreQueryRejectsUnknownCategory(t *testing.T) {
	_, _, err := exploreQuery(explore.Query{Category: "books"}, 10, testNow)
	if !errors.Is(err, ErrUnsupportedCategory) {
		t.Fatalf("expected ErrUnsupportedCategory, got %v", err)
	}
}

func TestBoundingBox(t *testing.T) {
	dLat, dLon := boundingBox(0, kmPerDegreeLat)
	if dLat != 1 || dLon < 0.999 || dLon > 1.001 {
		t.Fatalf("unexpected box at the equator: %f, %f", dLat, dLon)
	}
	if _, dLon := boundingBox(60, kmPerDegreeLat); dLon < 1.99 || dLon > 2.01 {
		t.Fatalf("expected longitude span to double at 60 degrees, got %f", dLon)
	}
	if _, dLon := boundingBox(90, 10); dLon != 180 {
		t.Fatalf("expected full longitude span at the pole, got %f", dLon)
	}
}

func TestLongitudeRange(t *testing.T) {
	tests := []struct {
		name     string
		lon      float64
		dLon     float64
		wantSQL  string
		wantArgs []interface{}
	}{
		{
			name:     "inside",
			lon:      10,
			dLon:     1,
			wantSQL:  "longitude BETWEEN ? AND ?",
			wantArgs: []interface{}{9.0, 11.0},
		},
		{
			name:     "wraps east",
			lon:      179.5,
			dLon:     1,
			wantSQL:  "(longitude BETWEEN ? AND ? OR longitude BETWEEN ? AND ?)",
			wantArgs: []interface{}{178.5, 180.0, -180.0, -179.5},
		},
		{
			name:     "wraps west",
			lon:      -179.5,
			dLon:     1,
			wantSQL:  "(longitude BETWEEN ? AND ? OR longitude BETWEEN ? AND ?)",
			wantArgs: []interface{}{179.5, 180.0, -180.0, -178.5},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stmt, args, err := longitudeRange(tc.lon, tc.dLon).ToSql()
			if err != nil {
				t.Fatalf("ToSql: %v", err)
			}
			if stmt != tc.wantSQL {
				t.Fatalf("expected %q, got %q", tc.wantSQL, stmt)
			}
			if len(args) != len(tc.wantArgs) {
				t.Fatalf("expected args %v, got %v", tc.wantArgs, args)
			}
			for i := range args {
				if math.Abs(args[i].(float64)-tc.wantArgs[i].(float64)) > 1e-9 {
					t.Fatalf("expected args %v, got %v", tc.wantArgs, args)
				}
			}
		})
	}

	if longitudeRange(0, 180) != nil {
		t.Fatalf("expected no constraint for a full longitude span")
	}
}

func TestWindowEnd(t *testing.T) {
	if end, ok := windowEnd(explore.DateToday, testNow); !ok || !end.Equal(time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end of today: %v", end)
	}
	if _, ok := windowEnd(explore.DateAny, testNow); ok {
		t.Fatalf("any window should be unbounded")
	}
}

func TestListExploreItemsArtists(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	s := New(db)

	columns := []string{"id", "name", "rating", "location", "price", "images", "latitude", "longitude", "discipline", "role", "bio"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM artists WHERE price >= $1 AND price <= $2")).
		WithArgs(0.0, 10000.0).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("a-1", "Mara Quill", 4.8, "Berlin", 120.0, "{https://img.example/a-1.jpg}", 52.5, 13.4, "painter", "solo", "Large canvases").
			AddRow("a-2", "The Loud Room", 4.1, "Leipzig", 300.0, "{}", nil, nil, "musician", "band", nil))

	items, err := s.ListExploreItems(context.Background(), exploreQueryFor(t, models.CategoryArtists, nil), 20, testNow)
	if err != nil {
		t.Fatalf("ListExploreItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Kind != models.CategoryArtists || first.Artist == nil || first.Artist.Discipline != "painter" {
		t.Fatalf("unexpected first item %+v", first)
	}
	if len(first.Images) != 1 || first.Images[0] != "https://img.example/a-1.jpg" {
		t.Fatalf("unexpected images %v", first.Images)
	}
	if first.Coordinates == nil || first.Coordinates.Lat != 52.5 {
		t.Fatalf("expected coordinates, got %+v", first.Coordinates)
	}
	if err := first.CheckVariant(); err != nil {
		t.Fatalf("variant: %v", err)
	}

	second := items[1]
	if second.Coordinates != nil || second.Artist.Bio != "" || second.Images == nil {
		t.Fatalf("unexpected second item %+v", second)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListExploreItemsEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	s := New(db)

	starts := testNow.Add(48 * time.Hour)
	columns := []string{"id", "name", "rating", "location", "price", "images", "latitude", "longitude", "starts_at", "venue_name", "format"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM events WHERE")).
		WithArgs(0.0, 10000.0, testNow).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("e-1", "Night Market", 4.2, "Hamburg", 15.0, "{}", nil, nil, starts, "Hall 3", "festival"))

	items, err := s.ListExploreItems(context.Background(), exploreQueryFor(t, models.CategoryEvents, nil), 10, testNow)
	if err != nil {
		t.Fatalf("ListExploreItems: %v", err)
	}
	if len(items) != 1 || items[0].Event == nil || !items[0].Event.StartsAt.Equal(starts) {
		t.Fatalf("unexpected items %+v", items)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListExploreItemsQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	s := New(db)
	boom := errors.New("connection refused")

	mock.ExpectQuery(regexp.QuoteMeta("FROM venues")).WillReturnError(boom)

	_, err = s.ListExploreItems(context.Background(), exploreQueryFor(t, models.CategoryVenues, nil), 10, testNow)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped driver error, got %v", err)
	}
	if !strings.Contains(err.Error(), "venues") {
		t.Fatalf("error does not name the category: %v", err)
	}
}

func TestSeedCatalog(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	s := New(db)

	items := []models.ExploreItem{
		{
			ID: "v-1", Kind: models.CategoryVenues, Name: "Kesselhaus", Location: "Berlin",
			Venue: &models.VenueDetails{Capacity: 800, VenueType: "club"},
		},
		{
			ID: "g-1", Kind: models.CategoryGallery, Name: "Blue Study", Price: 450,
			Coordinates: &models.Coordinates{Lat: 48.1, Lon: 11.6},
			GalleryItem: &models.GalleryItemDetails{ArtistName: "Mara Quill", Medium: "oil", TransactionType: "buy", Condition: "new"},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO venues")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO gallery_items")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := s.SeedCatalog(context.Background(), items)
	if err != nil {
		t.Fatalf("SeedCatalog: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows, got %d", n)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSeedCatalogCountsOnlyNewRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	s := New(db)

	items := []models.ExploreItem{
		{
			ID: "v-1", Kind: models.CategoryVenues, Name: "Kesselhaus",
			Venue: &models.VenueDetails{Capacity: 800, VenueType: "club"},
		},
		{
			ID: "v-2", Kind: models.CategoryVenues, Name: "Tresor",
			Venue: &models.VenueDetails{Capacity: 400, VenueType: "club"},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO venues")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO venues")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := s.SeedCatalog(context.Background(), items)
	if err != nil {
		t.Fatalf("SeedCatalog: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 new row, got %d", n)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSeedCatalogRollsBackOnInvalidItem(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	s := New(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err = s.SeedCatalog(context.Background(), []models.ExploreItem{{ID: "x", Kind: models.CategoryArtists}})
	if err == nil {
		t.Fatalf("expected variant error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appexplore "artbeat/internal/app/explore"
	"artbeat/internal/explore"
	"artbeat/internal/gesture"
	"artbeat/shared/go/models"
)

const testToken = "token-1"

type stubSessionService struct {
	source   explore.DataSource
	sessions map[string]*explore.Session
	created  int
}

func newStubSessions(items map[models.Category][]models.ExploreItem) *stubSessionService {
	source := explore.DataSourceFunc(func(_ context.Context, q explore.Query) ([]models.ExploreItem, error) {
		return items[q.Category], nil
	})
	return &stubSessionService{source: source, sessions: map[string]*explore.Session{}}
}

func (s *stubSessionService) Create(ctx context.Context) (*explore.Session, string, error) {
	s.created++
	session := explore.NewSession(explore.SessionConfig{
		ID:      "session-1",
		Source:  s.source,
		Gesture: gesture.DefaultConfig(),
	})
	s.sessions[testToken] = session
	return session, testToken, nil
}

func (s *stubSessionService) Lookup(token string) (*explore.Session, error) {
	switch token {
	case "expired":
		return nil, appexplore.ErrInvalidToken
	case "swept":
		return nil, appexplore.ErrSessionNotFound
	}
	session, ok := s.sessions[token]
	if !ok {
		return nil, appexplore.ErrInvalidToken
	}
	return session, nil
}

type stubHealth struct{ err error }

func (h stubHealth) Ping(context.Context) error { return h.err }

func artistCard(id string) models.ExploreItem {
	return models.ExploreItem{ID: id, Kind: models.CategoryArtists, Name: id, Artist: &models.ArtistDetails{Discipline: "painter", Role: "solo"}}
}

func eventCard(id string) models.ExploreItem {
	return models.ExploreItem{ID: id, Kind: models.CategoryEvents, Name: id, Event: &models.EventDetails{Format: "live"}}
}

func demoCatalog() map[models.Category][]models.ExploreItem {
	return map[models.Category][]models.ExploreItem{
		models.CategoryArtists: {artistCard("A"), artistCard("B"), artistCard("C")},
		models.CategoryEvents:  {eventCard("e1"), eventCard("e2")},
	}
}

func doRequest(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestCreateSessionWithCategory(t *testing.T) {
	sessions := newStubSessions(demoCatalog())
	handler := New(sessions).Routes()

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/explore/sessions?wait=true", "", map[string]string{"category": "artists"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp createSessionResponse
	decodeBody(t, rec, &resp)
	if resp.Token != testToken {
		t.Fatalf("unexpected token %q", resp.Token)
	}
	if resp.Load == nil || resp.Load.Result == nil || resp.Load.Result.State != explore.StateSuccess {
		t.Fatalf("expected finished load, got %+v", resp.Load)
	}
	if resp.Session.Top == nil || resp.Session.Top.ID != "C" || len(resp.Session.Items) != 3 {
		t.Fatalf("unexpected session %+v", resp.Session)
	}
}

func TestCreateSessionRejectsUnknownCategory(t *testing.T) {
	sessions := newStubSessions(demoCatalog())
	handler := New(sessions).Routes()

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/explore/sessions", "", map[string]string{"category": "books"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if sessions.created != 0 {
		t.Fatalf("session created for invalid request")
	}
}

func TestCreateSessionWithoutBody(t *testing.T) {
	sessions := newStubSessions(demoCatalog())
	handler := New(sessions).Routes()

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/explore/sessions", "", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp createSessionResponse
	decodeBody(t, rec, &resp)
	if resp.Load != nil || resp.Session.State != explore.StateIdle {
		t.Fatalf("expected idle session without load, got %+v", resp)
	}
}

func TestSessionAuthErrors(t *testing.T) {
	handler := New(newStubSessions(demoCatalog())).Routes()

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{name: "missing", token: "", status: http.StatusUnauthorized},
		{name: "invalid", token: "expired", status: http.StatusUnauthorized},
		{name: "swept", token: "swept", status: http.StatusNotFound},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, handler, http.MethodGet, "/api/v1/explore", tc.token, nil)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			var resp errorResponse
			decodeBody(t, rec, &resp)
			if resp.Error == "" {
				t.Fatalf("expected error message")
			}
		})
	}
}

func TestSwipeFlowOverHTTP(t *testing.T) {
	sessions := newStubSessions(demoCatalog())
	handler := New(sessions).Routes()

	doRequest(t, handler, http.MethodPost, "/api/v1/explore/sessions?wait=1", "", map[string]string{"category": "artists"})

	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := doRequest(t, handler, http.MethodPost, "/api/v1/explore/gestures", testToken, gestureRequest{Samples: []gestureSample{
		{Type: "press", PointerID: 1, CardID: "C", At: start},
		{Type: "move", PointerID: 1, X: -150, At: start.Add(40 * time.Millisecond)},
		{Type: "release", PointerID: 1, X: -200, At: start.Add(80 * time.Millisecond)},
		{Type: "finish"},
	}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp gestureResponse
	decodeBody(t, rec, &resp)
	if len(resp.Results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(resp.Results))
	}
	release := resp.Results[2]
	if !release.Accepted || release.Decision == nil || release.Decision.Outcome != gesture.OutcomeCommit || release.Decision.Direction != models.SwipeLeft {
		t.Fatalf("unexpected release result %+v", release)
	}
	if resp.Top == nil || resp.Top.ID != "B" {
		t.Fatalf("expected B on top after swipe, got %+v", resp.Top)
	}
	if resp.State != gesture.Idle.String() {
		t.Fatalf("expected idle controller, got %s", resp.State)
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/explore", testToken, nil)
	var snap explore.Snapshot
	decodeBody(t, rec, &snap)
	if len(snap.History) != 1 || snap.History[0].CardID != "C" || snap.History[0].Direction != models.SwipeLeft {
		t.Fatalf("unexpected history %+v", snap.History)
	}

	rec = doRequest(t, handler, http.MethodPut, "/api/v1/explore/category?wait=true", testToken, categoryRequest{Category: "events"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var load loadResponse
	decodeBody(t, rec, &load)
	if load.Session == nil || len(load.Session.History) != 0 || load.Session.Top == nil || load.Session.Top.ID != "e2" {
		t.Fatalf("category switch did not replace the stack: %+v", load.Session)
	}
}

func TestGestureOnNonTopCardIsIgnored(t *testing.T) {
	sessions := newStubSessions(demoCatalog())
	handler := New(sessions).Routes()
	doRequest(t, handler, http.MethodPost, "/api/v1/explore/sessions?wait=true", "", map[string]string{"category": "artists"})

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/explore/gestures", testToken, gestureRequest{Samples: []gestureSample{
		{Type: "press", PointerID: 1, CardID: "A"},
	}})
	var resp gestureResponse
	decodeBody(t, rec, &resp)
	if resp.Results[0].Accepted {
		t.Fatalf("press on a card below the top was accepted")
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/v1/explore/gestures", testToken, gestureRequest{Samples: []gestureSample{
		{Type: "pinch"},
	}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown sample type, got %d", rec.Code)
	}
}

func TestFilterEndpoints(t *testing.T) {
	sessions := newStubSessions(demoCatalog())
	handler := New(sessions).Routes()
	doRequest(t, handler, http.MethodPost, "/api/v1/explore/sessions?wait=true", "", map[string]string{"category": "artists"})

	rec := doRequest(t, handler, http.MethodPatch, "/api/v1/explore/filters", testToken, filterUpdateRequest{
		Fields: map[string]string{"artists.discipline": "sculptor", "price_max": "500"},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var load loadResponse
	decodeBody(t, rec, &load)
	if load.Token == 0 || load.Session == nil || load.Session.Filters.Artists.Discipline != "sculptor" || load.Session.Filters.Generic.PriceMax != 500 {
		t.Fatalf("filters not applied: %+v", load.Session)
	}

	rec = doRequest(t, handler, http.MethodPatch, "/api/v1/explore/filters", testToken, filterUpdateRequest{
		Fields: map[string]string{"artists.mood": "happy"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}

	bad := explore.DefaultFilters()
	bad.Events.Sort = "loudest"
	rec = doRequest(t, handler, http.MethodPut, "/api/v1/explore/filters", testToken, bad)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid record, got %d", rec.Code)
	}

	rec = doRequest(t, handler, http.MethodDelete, "/api/v1/explore/filters?wait=true", testToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	load = loadResponse{}
	decodeBody(t, rec, &load)
	if load.Session.Filters.Artists.Discipline != "any" || load.Result == nil || load.Result.Category != models.CategoryArtists {
		t.Fatalf("reset did not restore defaults: %+v", load)
	}
}

func TestRetryWithoutLoadConflicts(t *testing.T) {
	sessions := newStubSessions(demoCatalog())
	handler := New(sessions).Routes()
	doRequest(t, handler, http.MethodPost, "/api/v1/explore/sessions", "", nil)

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/explore/retry", testToken, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestReloadEmptyCategory(t *testing.T) {
	sessions := newStubSessions(demoCatalog())
	handler := New(sessions).Routes()
	rec := doRequest(t, handler, http.MethodPost, "/api/v1/explore/sessions?wait=true", "", map[string]string{"category": "venues"})

	var created createSessionResponse
	decodeBody(t, rec, &created)
	if created.Session.State != explore.StateEmpty {
		t.Fatalf("expected empty venues, got %s", created.Session.State)
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/v1/explore/reload?wait=true", testToken, nil)
	var load loadResponse
	decodeBody(t, rec, &load)
	if load.Result == nil || load.Result.Category != models.CategoryVenues || load.Result.State != explore.StateEmpty {
		t.Fatalf("unexpected reload result %+v", load.Result)
	}
}

type stubCounter map[models.SwipeDirection]int

func (c stubCounter) Counts() map[models.SwipeDirection]int { return c }

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		health HealthChecker
		status int
	}{
		{name: "no checker", status: http.StatusOK},
		{name: "healthy", health: stubHealth{}, status: http.StatusOK},
		{name: "database down", health: stubHealth{err: errors.New("dial tcp: refused")}, status: http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			opts := []Option{WithSwipeCounter(stubCounter{models.SwipeLeft: 3})}
			if tc.health != nil {
				opts = append(opts, WithHealthChecker(tc.health))
			}
			handler := New(newStubSessions(nil), opts...).Routes()

			rec := doRequest(t, handler, http.MethodGet, "/health", "", nil)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			var resp healthResponse
			decodeBody(t, rec, &resp)
			if resp.Swipes[models.SwipeLeft] != 3 {
				t.Fatalf("unexpected swipe counts %v", resp.Swipes)
			}
		})
	}
}

func TestParseBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{header: "", want: ""},
		{header: "Bearer abc", want: "abc"},
		{header: "bearer  abc ", want: "abc"},
		{header: "Basic abc", want: ""},
		{header: "Bearerabc", want: ""},
	}
	for _, tc := range tests {
		if got := parseBearerToken(tc.header); got != tc.want {
			t.Errorf("parseBearerToken(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}

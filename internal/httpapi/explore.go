package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"artbeat/internal/explore"
	"artbeat/internal/gesture"
	"artbeat/shared/go/models"
)

type createSessionRequest struct {
	Category string `json:"category"`
}

type createSessionResponse struct {
	Token   string           `json:"token"`
	Load    *loadResponse    `json:"load,omitempty"`
	Session explore.Snapshot `json:"session"`
}

type categoryRequest struct {
	Category string `json:"category"`
}

type filterUpdateRequest struct {
	Fields map[string]string `json:"fields"`
}

type loadResult struct {
	Category    models.Category   `json:"category"`
	State       explore.LoadState `json:"state"`
	Stale       bool              `json:"stale"`
	Placeholder bool              `json:"placeholder"`
	Items       int               `json:"items"`
	Error       string            `json:"error,omitempty"`
}

type loadResponse struct {
	Token   explore.LoadToken `json:"token"`
	Result  *loadResult       `json:"result,omitempty"`
	Session *explore.Snapshot `json:"session,omitempty"`
}

type gestureSample struct {
	Type      string    `json:"type"`
	PointerID int64     `json:"pointer_id"`
	CardID    string    `json:"card_id"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	At        time.Time `json:"at"`
}

type gestureRequest struct {
	Samples []gestureSample `json:"samples"`
}

type sampleResult struct {
	Type     string            `json:"type"`
	Accepted bool              `json:"accepted"`
	Decision *gesture.Decision `json:"decision,omitempty"`
}

type gestureResponse struct {
	Results   []sampleResult      `json:"results"`
	State     string              `json:"state"`
	Transform gesture.Transform   `json:"transform"`
	Top       *models.ExploreItem `json:"top"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON payload"})
		return
	}

	var category models.Category
	if req.Category != "" {
		c, err := models.ParseCategory(req.Category)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		category = c
	}

	session, token, err := s.sessions.Create(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	resp := createSessionResponse{Token: token}
	if category != "" {
		loadToken, done, err := session.OnCategoryChange(r.Context(), category)
		if err != nil {
			writeRequestError(w, err)
			return
		}
		resp.Load = s.awaitLoad(r, loadToken, done)
	}
	resp.Session = session.Snapshot()
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request, session *explore.Session) {
	writeJSON(w, http.StatusOK, session.Snapshot())
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request, session *explore.Session) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON payload"})
		return
	}

	category, err := models.ParseCategory(req.Category)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	s.respondLoad(w, r, session, func(ctx context.Context) (explore.LoadToken, <-chan explore.LoadResult, error) {
		return session.OnCategoryChange(ctx, category)
	})
}

func (s *Server) handleFilterUpdate(w http.ResponseWriter, r *http.Request, session *explore.Session) {
	var req filterUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON payload"})
		return
	}
	if len(req.Fields) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "fields are required"})
		return
	}

	s.respondLoad(w, r, session, func(ctx context.Context) (explore.LoadToken, <-chan explore.LoadResult, error) {
		return session.OnFilterUpdate(ctx, req.Fields)
	})
}

func (s *Server) handleFilterApply(w http.ResponseWriter, r *http.Request, session *explore.Session) {
	var state explore.FilterState
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&state); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON payload"})
		return
	}

	s.respondLoad(w, r, session, func(ctx context.Context) (explore.LoadToken, <-chan explore.LoadResult, error) {
		return session.OnFilterApply(ctx, state)
	})
}

func (s *Server) handleFilterReset(w http.ResponseWriter, r *http.Request, session *explore.Session) {
	s.respondLoad(w, r, session, session.OnFilterReset)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request, session *explore.Session) {
	s.respondLoad(w, r, session, session.Retry)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request, session *explore.Session) {
	s.respondLoad(w, r, session, session.Reload)
}

func (s *Server) handleGestures(w http.ResponseWriter, r *http.Request, session *explore.Session) {
	var req gestureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON payload"})
		return
	}
	if len(req.Samples) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "samples are required"})
		return
	}

	drag := session.Drag()
	results := make([]sampleResult, 0, len(req.Samples))
	for i, sample := range req.Samples {
		at := sample.At
		if at.IsZero() {
			at = time.Now()
		}
		p := gesture.Point{X: sample.X, Y: sample.Y}

		res := sampleResult{Type: sample.Type}
		switch sample.Type {
		case "press":
			res.Accepted = drag.Press(sample.PointerID, sample.CardID, p, at)
		case "move":
			res.Accepted = drag.Move(sample.PointerID, p, at)
		case "release":
			if d, ok := drag.Release(sample.PointerID, p, at); ok {
				res.Accepted = true
				res.Decision = &d
			}
		case "tick":
			drag.Tick(at)
			res.Accepted = true
		case "finish":
			drag.Finish()
			res.Accepted = true
		default:
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("sample %d: unknown type %q", i, sample.Type)})
			return
		}
		results = append(results, res)
	}

	writeJSON(w, http.StatusOK, gestureResponse{
		Results:   results,
		State:     drag.State().String(),
		Transform: drag.Transform(),
		Top:       session.CurrentTopCard(),
	})
}

type loadFunc func(ctx context.Context) (explore.LoadToken, <-chan explore.LoadResult, error)

// respondLoad starts a load and answers 202, or 200 with the result when the
// client asked to wait.
func (s *Server) respondLoad(w http.ResponseWriter, r *http.Request, session *explore.Session, start loadFunc) {
	token, done, err := start(r.Context())
	if err != nil {
		writeRequestError(w, err)
		return
	}

	resp := s.awaitLoad(r, token, done)
	snap := session.Snapshot()
	resp.Session = &snap

	status := http.StatusAccepted
	if resp.Result != nil {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) awaitLoad(r *http.Request, token explore.LoadToken, done <-chan explore.LoadResult) *loadResponse {
	resp := &loadResponse{Token: token}
	if !waitRequested(r) {
		return resp
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.waitTimeout)
	defer cancel()

	select {
	case res, ok := <-done:
		if ok {
			resp.Result = toLoadResult(res)
		}
	case <-ctx.Done():
		s.logger.Debug().Uint64("token", uint64(token)).Msg("stopped waiting for load")
	}
	return resp
}

func toLoadResult(res explore.LoadResult) *loadResult {
	out := &loadResult{
		Category:    res.Category,
		State:       res.State,
		Stale:       res.Stale,
		Placeholder: res.Placeholder,
		Items:       res.Items,
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

func waitRequested(r *http.Request) bool {
	wait, err := strconv.ParseBool(r.URL.Query().Get("wait"))
	return err == nil && wait
}

func writeRequestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrUnknownCategory),
		errors.Is(err, explore.ErrUnknownFilterField),
		errors.Is(err, explore.ErrInvalidFilterValue):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, explore.ErrNothingToRetry):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func decodeOptionalJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

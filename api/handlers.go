package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/poiesic/culldron/core"
	"github.com/poiesic/culldron/feed"
	"github.com/poiesic/culldron/storage"
)

const (
	defaultThemesLimit   = 10000
	defaultTimelineLimit = 1000
	maxIngestBodyBytes   = 1 << 20
)

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type ingestRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "Culldron Insight Extractor is running."})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIngestBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	url := strings.TrimSpace(req.URL)
	if url == "" {
		writeError(w, http.StatusBadRequest, "Field 'url' is required.")
		return
	}

	result, err := s.backend.Ingest(r.Context(), url)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, result)
	case errors.Is(err, feed.ErrFeedTooLarge):
		writeError(w, http.StatusBadRequest, "Feed exceeds the maximum size.")
	case errors.Is(err, feed.ErrSourceUnreachable):
		writeError(w, http.StatusBadRequest, "Unable to parse feed URL.")
	case errors.Is(err, feed.ErrInvalidFeed):
		writeError(w, http.StatusUnprocessableEntity, "Invalid or unreadable feed format.")
	default:
		s.logger.Error("ingest failed", "feed_url", url, "err", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to parse feed: %v", err))
	}
}

func (s *Server) handleListThemes(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r, defaultThemesLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	themes, err := s.backend.ListThemes(r.Context(), limit, offset)
	if err != nil {
		s.storageError(w, err)
		return
	}
	if themes == nil {
		themes = []core.ThemeSummary{}
	}
	writeJSON(w, http.StatusOK, themes)
}

func (s *Server) handleThemeTimeline(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Theme id must be a positive integer.")
		return
	}
	limit, offset, err := pageParams(r, defaultTimelineLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	timeline, err := s.backend.ThemeTimeline(r.Context(), core.ID(id), limit, offset)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Theme not found")
			return
		}
		s.storageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, timeline)
}

func (s *Server) storageError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrInvalidQuery) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error("storage read failed", "err", err)
	writeError(w, http.StatusInternalServerError, "Internal server error.")
}

// pageParams parses limit and offset query parameters.
func pageParams(r *http.Request, defaultLimit int) (limit, offset int, err error) {
	limit, err = intParam(r, "limit", defaultLimit)
	if err != nil {
		return 0, 0, err
	}
	offset, err = intParam(r, "offset", 0)
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("query parameter %q must be a non-negative integer", name)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

type handlers struct {
	logger     zerolog.Logger
	highlights Highlights
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handlers) trigger(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusAccepted, h.highlights.Trigger(id))
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}
	st, found := h.highlights.Status(id)
	if !found {
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "no highlight run for this event"})
		return
	}
	h.writeJSON(w, http.StatusOK, st)
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) eventID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid event id"})
		return 0, false
	}
	return id, true
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Package server exposes the event log over HTTP.
//
// POST /events accepts a single JSON event or an array of them. Every
// submitted item yields exactly one terminal record: the stored Event, or a
// RejectedEvent classifying the failure (unsupported for unparseable input,
// malformed for a wrong field set, invalid for a field failing validation,
// unknown for persistence failures). A submission is never silently
// dropped.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/randalmurphal/eventlog/pkg/eventlog"
	"github.com/randalmurphal/eventlog/pkg/eventlog/domain"
	"github.com/randalmurphal/eventlog/pkg/eventlog/store"
)

// maxBodyBytes caps an ingest request body. Far above the payload limit;
// it only guards against runaway clients.
const maxBodyBytes = 1 << 20

// Handler serves the event log HTTP API.
type Handler struct {
	log    eventlog.EventLog
	logger *slog.Logger
}

// New builds the HTTP handler for the given log.
func New(log eventlog.EventLog, logger *slog.Logger) http.Handler {
	h := &Handler{log: log, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /events", h.ingest)
	mux.HandleFunc("GET /events", h.query)
	mux.HandleFunc("GET /events/{id}", h.fetch)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// ingest handles POST /events.
func (h *Handler) ingest(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	body := string(raw)

	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		rejected, rejectErr := h.log.Reject(r.Context(), domain.RejectedEventDef{
			Reason:  domain.ReasonUnsupported,
			Message: (&domain.ParseError{Err: err}).Error(),
			Body:    body,
		})
		if rejectErr != nil {
			h.internalError(w, rejectErr)
			return
		}
		writeJSON(w, http.StatusUnsupportedMediaType, rejected)
		return
	}

	items, batch := itemsOf(parsed)
	results := make([]any, 0, len(items))
	for _, item := range items {
		result, err := h.ingestOne(r, body, item)
		if err != nil {
			h.internalError(w, err)
			return
		}
		results = append(results, result)
	}

	if batch {
		writeJSON(w, http.StatusCreated, results)
		return
	}
	writeJSON(w, http.StatusCreated, results[0])
}

// itemsOf splits a decoded body into the items to ingest. An array body is
// processed item by item; anything else is a single submission.
func itemsOf(parsed any) (items []any, batch bool) {
	if list, ok := parsed.([]any); ok {
		return list, true
	}
	return []any{parsed}, false
}

// ingestOne turns one submitted item into an Event or a RejectedEvent. The
// returned error is only non-nil when recording the outcome itself failed.
func (h *Handler) ingestOne(r *http.Request, body string, item any) (any, error) {
	fields, ok := item.(map[string]any)
	if !ok {
		return h.log.Reject(r.Context(), domain.RejectedEventDef{
			Reason:  domain.ReasonMalformed,
			Message: "event should be a JSON object",
			Body:    body,
		})
	}

	def, err := domain.EventDefOf(fields)
	if err != nil {
		return h.log.Reject(r.Context(), domain.RejectedEventDef{
			Reason:  domain.ReasonOf(err),
			Message: err.Error(),
			Body:    body,
		})
	}

	event, err := h.log.Publish(r.Context(), def)
	if err != nil {
		// Not attributable to the input's shape: record it as unknown,
		// preserving the raw body for audit.
		return h.log.Reject(r.Context(), domain.RejectedEventDef{
			Reason:  domain.ReasonUnknown,
			Message: err.Error(),
			Body:    body,
		})
	}
	return event, nil
}

// query handles GET /events with optional stream, since and limit params.
func (h *Handler) query(w http.ResponseWriter, r *http.Request) {
	q := eventlog.Query{Stream: r.URL.Query().Get("stream")}

	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || since < 0 {
			http.Error(w, "since should be a non-negative integer", http.StatusBadRequest)
			return
		}
		q.Since = domain.EventID(since)
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			http.Error(w, "limit should be a positive integer", http.StatusBadRequest)
			return
		}
		q.Limit = limit
	}

	events, err := h.log.Query(r.Context(), q)
	if err != nil {
		h.internalError(w, err)
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// fetch handles GET /events/{id}.
func (h *Handler) fetch(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("id")
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		http.Error(w, "event id should be an integer", http.StatusBadRequest)
		return
	}
	id, err := domain.EventIDOf(parsed)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	event, err := h.log.Fetch(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "event not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *Handler) internalError(w http.ResponseWriter, err error) {
	if h.logger != nil {
		h.logger.Error("request failed", slog.String("error", err.Error()))
	}
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

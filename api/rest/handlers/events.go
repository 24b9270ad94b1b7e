package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"validation-viewer/core/models"

	"github.com/gorilla/mux"
)

// EventLog reads recorded lookup events
type EventLog interface {
	GetLookupEvents(ctx context.Context, key string, limit int) ([]models.LookupEvent, error)
}

// EventHandler serves the lookup history of comparison keys
type EventHandler struct {
	events EventLog
	logger *slog.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler(events EventLog, logger *slog.Logger) *EventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHandler{events: events, logger: logger}
}

// GetLookupEvents handles GET /v1/comparisons/{key}/events?limit=
func (h *EventHandler) GetLookupEvents(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			badRequest(w, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	events, err := h.events.GetLookupEvents(r.Context(), key, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	items := make([]map[string]interface{}, len(events))
	for i, event := range events {
		item := map[string]interface{}{
			"at":       event.At,
			"to_phase": event.ToPhase,
			"reason":   event.Reason,
		}
		if event.FromPhase != nil {
			item["from_phase"] = *event.FromPhase
		}
		if len(event.MetaJSON) > 0 {
			item["meta"] = event.MetaJSON
		}
		items[i] = item
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"key":   key,
		"items": items,
	})
}

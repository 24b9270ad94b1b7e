package routes

import (
	"log/slog"
	"net/http"

	"validation-viewer/api/rest/handlers"
	"validation-viewer/core/viewer"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes. events may be nil when no event log is kept.
func SetupRoutes(r *mux.Router, manager *viewer.Manager, events handlers.EventLog, logger *slog.Logger) {
	revisionHandler := handlers.NewRevisionHandler(manager, logger)
	sessionHandler := handlers.NewSessionHandler(manager, logger)

	api := r.PathPrefix("/v1").Subrouter()

	// Catalog
	api.HandleFunc("/revisions", revisionHandler.GetRevisions).Methods("GET")

	// Sessions
	api.HandleFunc("/sessions", sessionHandler.CreateSession).Methods("POST")
	api.HandleFunc("/sessions/{id}", sessionHandler.GetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", sessionHandler.DeleteSession).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/selection", sessionHandler.UpdateSelection).Methods("PUT")
	api.HandleFunc("/sessions/{id}/comparison", sessionHandler.StartComparison).Methods("POST")
	api.HandleFunc("/sessions/{id}/comparison", sessionHandler.GetComparison).Methods("GET")
	api.HandleFunc("/sessions/{id}/packages/{name}", sessionHandler.GetPackage).Methods("GET")
	api.HandleFunc("/sessions/{id}/preferences/{scope}/{name}", sessionHandler.GetPreference).Methods("GET")
	api.HandleFunc("/sessions/{id}/preferences/{scope}/{name}", sessionHandler.PutPreference).Methods("PUT")

	// Lookup history
	if events != nil {
		eventHandler := handlers.NewEventHandler(events, logger)
		api.HandleFunc("/comparisons/{key}/events", eventHandler.GetLookupEvents).Methods("GET")
	}

	// Health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

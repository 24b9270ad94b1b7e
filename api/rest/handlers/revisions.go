package handlers

import (
	"log/slog"
	"net/http"

	"validation-viewer/core/catalog"
	"validation-viewer/core/viewer"
)

// RevisionHandler serves the revision catalog
type RevisionHandler struct {
	manager *viewer.Manager
	logger  *slog.Logger
}

// NewRevisionHandler creates a new revision handler
func NewRevisionHandler(manager *viewer.Manager, logger *slog.Logger) *RevisionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RevisionHandler{manager: manager, logger: logger}
}

// RevisionsResponse is the classified catalog
type RevisionsResponse struct {
	Labels    []string       `json:"labels"`
	Release   []string       `json:"release"`
	Build     []string       `json:"build"`
	Nightly   []string       `json:"nightly"`
	Reference string         `json:"reference,omitempty"`
	Defaults  []string       `json:"defaults"`
	Mode      string         `json:"mode"`
	Warning   *ErrorResponse `json:"warning,omitempty"`
}

// GetRevisions handles GET /v1/revisions?mode=
func (h *RevisionHandler) GetRevisions(w http.ResponseWriter, r *http.Request) {
	cat, err := h.manager.LoadCatalog(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	classes := cat.Classified()
	requested := r.URL.Query().Get("mode")
	defaults, modeErr := cat.DefaultSelection(catalog.Mode(requested))
	mode, _ := catalog.ParseMode(requested)
	if modeErr != nil {
		h.logger.Warn("unknown default selection mode, using rbn", "mode", requested)
	}
	writeJSON(w, http.StatusOK, RevisionsResponse{
		Labels:    cat.Labels(),
		Release:   classes.Release,
		Build:     classes.Build,
		Nightly:   classes.Nightly,
		Reference: classes.Reference,
		Defaults:  defaults,
		Mode:      string(mode),
		Warning:   warning(modeErr),
	})
}

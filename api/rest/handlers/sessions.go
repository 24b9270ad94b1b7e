package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"validation-viewer/core/models"
	"validation-viewer/core/preferences"
	"validation-viewer/core/reconciler"
	"validation-viewer/core/selection"
	"validation-viewer/core/viewer"

	"github.com/gorilla/mux"
)

// SessionHandler handles viewer session requests
type SessionHandler struct {
	manager *viewer.Manager
	logger  *slog.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(manager *viewer.Manager, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{manager: manager, logger: logger}
}

// CreateSessionRequest represents the request to open a session
type CreateSessionRequest struct {
	ClientID string `json:"client_id"`
	Mode     string `json:"mode"`
}

// SessionResponse describes a session
type SessionResponse struct {
	ID            string          `json:"id"`
	ClientID      string          `json:"client_id"`
	Selection     []string        `json:"selection"`
	ReferenceMode string          `json:"reference_mode"`
	Reference     string          `json:"reference,omitempty"`
	Key           string          `json:"key,omitempty"`
	KeyError      string          `json:"key_error,omitempty"`
	Status        *StatusResponse `json:"status,omitempty"`
	Warning       *ErrorResponse  `json:"warning,omitempty"`
}

// StatusResponse describes the latest lookup of a session
type StatusResponse struct {
	Key      string          `json:"key"`
	Phase    models.Phase    `json:"phase"`
	Progress models.Progress `json:"progress"`
	Polls    int             `json:"polls"`
	Running  bool            `json:"running"`
	Error    string          `json:"error,omitempty"`
	Code     string          `json:"code,omitempty"`
}

// UpdateSelectionRequest changes the selection and/or the reference choice
type UpdateSelectionRequest struct {
	Revisions     *[]string `json:"revisions"`
	ReferenceMode string    `json:"reference_mode"`
	Reference     string    `json:"reference"`
}

// ComparisonResponse is a loaded comparison
type ComparisonResponse struct {
	*viewer.Snapshot
	Colors map[string]string `json:"colors"`
}

// PreferenceRequest carries a preference value: a boolean, null or a string
type PreferenceRequest struct {
	Value json.RawMessage `json:"value"`
}

// PreferenceResponse is a stored preference
type PreferenceResponse struct {
	Scope string      `json:"scope"`
	Name  string      `json:"name"`
	Key   string      `json:"key"`
	Found bool        `json:"found"`
	Value interface{} `json:"value"`
}

func statusResponse(st viewer.Status) *StatusResponse {
	if st.Key == "" && st.Err == nil {
		return nil
	}
	resp := &StatusResponse{
		Key:      st.Key,
		Phase:    st.Phase,
		Progress: st.Progress,
		Polls:    st.Polls,
		Running:  st.Running,
	}
	if st.Err != nil {
		_, resp.Code = classify(st.Err)
		resp.Error = st.Err.Error()
	}
	return resp
}

func sessionResponse(s *viewer.Session) SessionResponse {
	mode, _ := s.ReferenceMode()
	resp := SessionResponse{
		ID:            s.ID(),
		ClientID:      s.ClientID(),
		Selection:     s.Selected(),
		ReferenceMode: string(mode),
		Status:        statusResponse(s.Status()),
	}
	if ref, ok := s.Reference(); ok {
		resp.Reference = ref
	}
	key, err := s.Key()
	if err != nil {
		resp.KeyError = err.Error()
	} else {
		resp.Key = key
	}
	return resp
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*viewer.Session, bool) {
	s, err := h.manager.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.logger, err)
		return nil, false
	}
	return s, true
}

// CreateSession handles POST /v1/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "Invalid request body")
			return
		}
	}

	s, err := h.manager.Create(r.Context(), req.ClientID, req.Mode)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	resp := sessionResponse(s)
	resp.Warning = warning(s.Warning())
	writeJSON(w, http.StatusCreated, resp)
}

// GetSession handles GET /v1/sessions/{id}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(s))
}

// DeleteSession handles DELETE /v1/sessions/{id}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Close(mux.Vars(r)["id"]); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateSelection handles PUT /v1/sessions/{id}/selection
func (h *SessionHandler) UpdateSelection(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req UpdateSelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}

	if req.Revisions != nil {
		if err := s.Select(r.Context(), *req.Revisions); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}
	if req.ReferenceMode != "" {
		mode, err := selection.ParseReferenceMode(req.ReferenceMode)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		if err := s.SetReference(r.Context(), mode, req.Reference); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, sessionResponse(s))
}

// StartComparison handles POST /v1/sessions/{id}/comparison.
// With ?wait=true the request blocks until the comparison is loaded.
func (h *SessionHandler) StartComparison(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		snap, err := s.Load(r.Context())
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, comparisonResponse(s, snap))
		return
	}

	key, err := s.Start()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"key":    key,
		"status": statusResponse(s.Status()),
	})
}

// GetComparison handles GET /v1/sessions/{id}/comparison
func (h *SessionHandler) GetComparison(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	status := s.Status()
	switch {
	case status.Running:
		writeJSON(w, http.StatusAccepted, statusResponse(status))
	case status.Err != nil:
		writeError(w, h.logger, status.Err)
	case status.Key == "":
		writeError(w, h.logger, viewer.ErrNoSnapshot)
	default:
		snap := s.Current()
		if snap == nil || snap.Key != status.Key {
			writeError(w, h.logger, viewer.ErrNoSnapshot)
			return
		}
		writeJSON(w, http.StatusOK, comparisonResponse(s, snap))
	}
}

func comparisonResponse(s *viewer.Session, snap *viewer.Snapshot) ComparisonResponse {
	return ComparisonResponse{
		Snapshot: snap,
		Colors:   reconciler.RevisionColors(snap.Comparison, s.Catalog().Labels(), snap.Selection),
	}
}

// GetPackage handles GET /v1/sessions/{id}/packages/{name}
func (h *SessionHandler) GetPackage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	name := mux.Vars(r)["name"]
	if name == "default" {
		name = ""
	}

	view, err := s.PackageView(r.Context(), name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetPreference handles GET /v1/sessions/{id}/preferences/{scope}/{name}
func (h *SessionHandler) GetPreference(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	scope, err := preferences.ParseScope(vars["scope"])
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	v, found, err := s.Preferences().Recover(r.Context(), scope, vars["name"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, PreferenceResponse{
		Scope: string(scope),
		Name:  vars["name"],
		Key:   s.Preferences().Key(vars["name"]),
		Found: found,
		Value: jsonValue(v, found),
	})
}

// PutPreference handles PUT /v1/sessions/{id}/preferences/{scope}/{name}
func (h *SessionHandler) PutPreference(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	scope, err := preferences.ParseScope(vars["scope"])
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	var req PreferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	v, err := parseValue(req.Value)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := s.Preferences().Preserve(r.Context(), scope, vars["name"], v); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, PreferenceResponse{
		Scope: string(scope),
		Name:  vars["name"],
		Key:   s.Preferences().Key(vars["name"]),
		Found: true,
		Value: jsonValue(v, true),
	})
}

func parseValue(raw json.RawMessage) (preferences.Value, error) {
	if len(raw) == 0 {
		return preferences.Null(), nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return preferences.Value{}, err
	}
	switch t := v.(type) {
	case nil:
		return preferences.Null(), nil
	case bool:
		return preferences.Bool(t), nil
	case string:
		return preferences.String(t), nil
	default:
		return preferences.Value{}, errors.New("preference value must be a boolean, null or a string")
	}
}

func jsonValue(v preferences.Value, found bool) interface{} {
	if !found {
		return nil
	}
	if b, ok := v.AsBool(); ok {
		return b
	}
	if s, ok := v.AsString(); ok {
		return s
	}
	return nil
}

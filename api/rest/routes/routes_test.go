package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"validation-viewer/core/models"
	"validation-viewer/core/orchestrator"
	"validation-viewer/core/viewer"
	"validation-viewer/providers/validation"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backend emulates the comparison generation service
type backend struct {
	mu          sync.Mutex
	comparisons map[string]bool
	pending     map[string]int
	failFor     string
}

func newBackend() *backend {
	return &backend{comparisons: map[string]bool{}, pending: map[string]int{}}
}

const revisionsJSON = `{"revisions":[
	{"label":"reference"},
	{"label":"release-4","creation_date":"2024-01-01"},
	{"label":"build-7","creation_date":"2024-02-01","packages":[{"name":"ecl","fail_count":2}]},
	{"label":"nightly-21","creation_date":"2024-03-02"}
]}`

const artifactJSON = `{"packages":[{"name":"ecl","visible":true,"plotfiles":[{"plots":[{"title":"a"},{"title":"b"}]}]}],
	"revisions":[{"label":"reference","color":"black"},{"label":"build-7","color":"red"}]}`

func (b *backend) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/revisions", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(revisionsJSON))
	}).Methods("GET")
	r.HandleFunc("/comparisons/{key}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		ok := b.comparisons[mux.Vars(r)["key"]]
		b.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(artifactJSON))
	}).Methods("GET")
	r.HandleFunc("/create_comparison", func(w http.ResponseWriter, r *http.Request) {
		var req models.GenerationRequest
		json.NewDecoder(r.Body).Decode(&req)
		key := strings.Join(req.RevisionList, "_")
		b.mu.Lock()
		defer b.mu.Unlock()
		if key == b.failFor {
			http.Error(w, "generator crashed", http.StatusInternalServerError)
			return
		}
		b.pending[key] = 0
		json.NewEncoder(w).Encode(map[string]string{"progress_key": key})
	}).Methods("POST")
	r.HandleFunc("/check_comparison_status", func(w http.ResponseWriter, r *http.Request) {
		var req models.ProgressRequest
		json.NewDecoder(r.Body).Decode(&req)
		b.mu.Lock()
		defer b.mu.Unlock()
		b.pending[req.Input]++
		if b.pending[req.Input] < 2 {
			w.Write([]byte(`{"status":"running","current_package":1,"total_package":1,"package_name":"ecl"}`))
			return
		}
		b.comparisons[req.Input] = true
		w.Write([]byte(`{"status":"complete"}`))
	}).Methods("POST")
	return r
}

type fakeEvents struct{}

func (fakeEvents) GetLookupEvents(ctx context.Context, key string, limit int) ([]models.LookupEvent, error) {
	from := models.PhaseFetching
	return []models.LookupEvent{{Key: key, FromPhase: &from, ToPhase: models.PhaseFound}}, nil
}

func newTestServer(t *testing.T, b *backend) *httptest.Server {
	t.Helper()
	backendSrv := httptest.NewServer(b.router())
	t.Cleanup(backendSrv.Close)

	client, err := validation.NewClient(backendSrv.URL, 2*time.Second, nil)
	require.NoError(t, err)
	orch, err := orchestrator.New(client, orchestrator.Options{
		PollInterval:    50 * time.Millisecond,
		PollTimeout:     40 * time.Millisecond,
		MaxPollFailures: 5,
	})
	require.NoError(t, err)
	manager, err := viewer.NewManager(viewer.ManagerConfig{Revisions: client, Lookup: orch})
	require.NoError(t, err)
	t.Cleanup(manager.CloseAll)

	r := mux.NewRouter()
	SetupRoutes(r, manager, fakeEvents{}, nil)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func createSession(t *testing.T, srv *httptest.Server, mode string) string {
	t.Helper()
	status, body := call(t, srv, "POST", "/v1/sessions", map[string]string{"client_id": "c1", "mode": mode})
	require.Equal(t, http.StatusCreated, status, body)
	return body["id"].(string)
}

func TestRevisions(t *testing.T) {
	srv := newTestServer(t, newBackend())

	status, body := call(t, srv, "GET", "/v1/revisions", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "reference", body["reference"])
	assert.Equal(t, []interface{}{"reference", "release-4", "build-7", "nightly-21"}, body["defaults"])

	assert.Nil(t, body["warning"])

	status, body = call(t, srv, "GET", "/v1/revisions?mode=q", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "rbn", body["mode"])
	assert.Equal(t, []interface{}{"reference", "release-4", "build-7", "nightly-21"}, body["defaults"])
	require.IsType(t, map[string]interface{}{}, body["warning"])
	assert.Equal(t, "unknown_mode", body["warning"].(map[string]interface{})["code"])
}

func TestCreateSession_UnknownModeFallsBack(t *testing.T) {
	srv := newTestServer(t, newBackend())

	status, body := call(t, srv, "POST", "/v1/sessions", map[string]string{"client_id": "c1", "mode": "q"})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, []interface{}{"build-7", "nightly-21", "reference", "release-4"}, body["selection"])
	require.IsType(t, map[string]interface{}{}, body["warning"])
	assert.Equal(t, "unknown_mode", body["warning"].(map[string]interface{})["code"])
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t, newBackend())
	id := createSession(t, srv, "b")

	status, body := call(t, srv, "GET", "/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "reference_build-7", body["key"])
	assert.Equal(t, []interface{}{"build-7", "reference"}, body["selection"])

	// generates the missing artifact, then loads it
	status, body = call(t, srv, "POST", "/v1/sessions/"+id+"/comparison?wait=true", nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "reference_build-7", body["key"])
	colors := body["colors"].(map[string]interface{})
	assert.Equal(t, "red", colors["build-7"])
	assert.Equal(t, "grey", colors["release-4"])

	comparison := body["comparison"].(map[string]interface{})
	pkg := comparison["packages"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, float64(2), pkg["fail_count"])

	status, _ = call(t, srv, "GET", "/v1/sessions/"+id+"/comparison", nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = call(t, srv, "GET", "/v1/sessions/"+id+"/packages/default", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ecl", body["name"])

	status, body = call(t, srv, "GET", "/v1/sessions/"+id+"/packages/svd", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body["code"])

	status, _ = call(t, srv, "DELETE", "/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, body = call(t, srv, "GET", "/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body["code"])
}

func TestAsyncComparison(t *testing.T) {
	srv := newTestServer(t, newBackend())
	id := createSession(t, srv, "r")

	status, body := call(t, srv, "GET", "/v1/sessions/"+id+"/comparison", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = call(t, srv, "POST", "/v1/sessions/"+id+"/comparison", nil)
	require.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, "reference_release-4", body["key"])

	require.Eventually(t, func() bool {
		status, _ := call(t, srv, "GET", "/v1/sessions/"+id+"/comparison", nil)
		return status == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)
}

func TestSelectionErrors(t *testing.T) {
	srv := newTestServer(t, newBackend())
	id := createSession(t, srv, "")

	status, body := call(t, srv, "PUT", "/v1/sessions/"+id+"/selection", map[string]interface{}{"revisions": []string{}})
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["key_error"])

	status, body = call(t, srv, "POST", "/v1/sessions/"+id+"/comparison", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "no_comparison", body["code"])

	status, _ = call(t, srv, "PUT", "/v1/sessions/"+id+"/selection", map[string]interface{}{
		"revisions":      []string{"build-7", "nightly-21"},
		"reference_mode": "explicit",
		"reference":      "release-4",
	})
	require.Equal(t, http.StatusOK, status)
	status, body = call(t, srv, "POST", "/v1/sessions/"+id+"/comparison", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "reference_unresolved", body["code"])

	// the rejected lookup is what the comparison endpoint reports, not an older result
	status, body = call(t, srv, "GET", "/v1/sessions/"+id+"/comparison", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "reference_unresolved", body["code"])

	status, body = call(t, srv, "PUT", "/v1/sessions/"+id+"/selection", map[string]interface{}{"revisions": []string{"release-9"}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "unknown_revision", body["code"])
}

func TestGenerationFailure(t *testing.T) {
	b := newBackend()
	b.failFor = "reference_nightly-21"
	srv := newTestServer(t, b)
	id := createSession(t, srv, "n")

	status, body := call(t, srv, "POST", "/v1/sessions/"+id+"/comparison?wait=true", nil)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "generation_failed", body["code"])

	status, body = call(t, srv, "GET", "/v1/sessions/"+id+"/comparison", nil)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "generation_failed", body["code"])
}

func TestPreferences(t *testing.T) {
	srv := newTestServer(t, newBackend())
	id := createSession(t, srv, "")
	base := "/v1/sessions/" + id + "/preferences/"

	status, body := call(t, srv, "GET", base+"session/show_expert_plots", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["found"])

	status, _ = call(t, srv, "PUT", base+"session/show_expert_plots", map[string]interface{}{"value": true})
	require.Equal(t, http.StatusOK, status)

	status, body = call(t, srv, "GET", base+"session/show_expert_plots", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["value"])
	assert.Equal(t, "validation_config_show_expert_plots", body["key"])

	status, _ = call(t, srv, "PUT", base+"durable/mode", map[string]interface{}{"value": 3})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, srv, "GET", base+"cookie/mode", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHealthMetricsEvents(t *testing.T) {
	srv := newTestServer(t, newBackend())

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	status, body := call(t, srv, "GET", "/v1/comparisons/reference_build-7/events", nil)
	require.Equal(t, http.StatusOK, status)
	items := body["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "fetching", items[0].(map[string]interface{})["from_phase"])

	status, _ = call(t, srv, "GET", "/v1/comparisons/reference_build-7/events?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

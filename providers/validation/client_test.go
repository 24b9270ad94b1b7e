package validation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"validation-viewer/core/models"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer emulates the comparison backend
type fakeServer struct {
	mu          sync.Mutex
	revisions   string
	comparisons map[string]string
	progress    []string
	requested   [][]string
	tokens      []string
}

func (f *fakeServer) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/revisions", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(f.revisions))
	}).Methods("GET")
	r.HandleFunc("/comparisons/{key}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		body, ok := f.comparisons[mux.Vars(r)["key"]]
		f.mu.Unlock()
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Write([]byte(body))
	}).Methods("GET")
	r.HandleFunc("/create_comparison", func(w http.ResponseWriter, r *http.Request) {
		var req models.GenerationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.requested = append(f.requested, req.RevisionList)
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"progress_key": "pk-42"})
	}).Methods("POST")
	r.HandleFunc("/check_comparison_status", func(w http.ResponseWriter, r *http.Request) {
		var req models.ProgressRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.tokens = append(f.tokens, req.Input)
		if len(f.progress) == 0 {
			w.Write([]byte("null"))
			return
		}
		body := f.progress[0]
		f.progress = f.progress[1:]
		w.Write([]byte(body))
	}).Methods("POST")
	return r
}

func newTestClient(t *testing.T, f *fakeServer) *Client {
	t.Helper()
	srv := httptest.NewServer(f.router())
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL+"/", 2*time.Second, nil)
	require.NoError(t, err)
	return c
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	_, err := NewClient("ftp://example.org", time.Second, nil)
	assert.ErrorIs(t, err, models.ErrInvalidConfig)
	_, err = NewClient("://", time.Second, nil)
	assert.ErrorIs(t, err, models.ErrInvalidConfig)
}

func TestFetchRevisions(t *testing.T) {
	f := &fakeServer{revisions: `{"revisions":[
		{"label":"reference","creation_date":"","packages":[]},
		{"label":"nightly-21","creation_date":"2024-03-02 04:00:00","packages":[
			{"name":"ecl","fail_count":1,"scriptfiles":[{"name":"a.py","path":"ecl/a.py","status":"failed","log_url":"ecl/a.log"}]}
		]}
	]}`}
	c := newTestClient(t, f)

	revs, err := c.FetchRevisions(context.Background())
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.True(t, revs[0].IsReference())
	assert.Equal(t, 2024, revs[1].CreationDate.Year())
	pkg, ok := revs[1].Package("ecl")
	require.True(t, ok)
	assert.Equal(t, 1, pkg.FailCount)
	assert.Equal(t, models.ScriptFailed, pkg.ScriptFiles[0].Status)
}

func TestFetchRevisions_MalformedIsDataShapeError(t *testing.T) {
	for name, body := range map[string]string{
		"not json":      `<html>`,
		"no revisions":  `{}`,
		"missing label": `{"revisions":[{"creation_date":"2024-01-01"}]}`,
		"missing name":  `{"revisions":[{"label":"a","packages":[{"fail_count":0}]}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, &fakeServer{revisions: body})
			_, err := c.FetchRevisions(context.Background())
			require.Error(t, err)
			assert.True(t, models.IsDataShape(err), "got %v", err)
		})
	}
}

func TestFetchComparison(t *testing.T) {
	f := &fakeServer{comparisons: map[string]string{
		"reference_build-7": `{"packages":[{"name":"ecl","visible":true,"comparison_error":2,"plotfiles":[{"plots":[{"title":"h1"}]}]}],
			"revisions":[{"label":"reference","color":"black"}]}`,
		"broken": `{"packages":[{"visible":true}]}`,
	}}
	c := newTestClient(t, f)
	ctx := context.Background()

	artifact, err := c.FetchComparison(ctx, "reference_build-7")
	require.NoError(t, err)
	require.Len(t, artifact.Packages, 1)
	assert.Equal(t, 2, artifact.Packages[0].ComparisonError)
	assert.Equal(t, "h1", artifact.Packages[0].PlotFiles[0].Plots[0].Title)

	_, err = c.FetchComparison(ctx, "reference_release-4")
	assert.ErrorIs(t, err, models.ErrArtifactNotFound)
	assert.False(t, models.IsTransport(err))

	_, err = c.FetchComparison(ctx, "broken")
	assert.True(t, models.IsDataShape(err))
}

func TestRequestComparison(t *testing.T) {
	f := &fakeServer{}
	c := newTestClient(t, f)

	token, err := c.RequestComparison(context.Background(), []string{"reference", "build-7"})
	require.NoError(t, err)
	assert.Equal(t, "pk-42", token)
	assert.Equal(t, [][]string{{"reference", "build-7"}}, f.requested)
}

func TestPollProgress(t *testing.T) {
	f := &fakeServer{progress: []string{
		"",
		"false",
		"{}",
		`{"status":"running","current_package":2,"total_package":5,"package_name":"ecl"}`,
		`{"status":"complete"}`,
		`{"current_package":1}`,
	}}
	c := newTestClient(t, f)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		status, err := c.PollProgress(ctx, "pk-42")
		require.NoError(t, err)
		assert.Nil(t, status)
	}

	status, err := c.PollProgress(ctx, "pk-42")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.False(t, status.Complete())
	assert.Equal(t, models.Progress{CurrentPackage: 2, TotalPackages: 5, PackageName: "ecl"}, status.Progress())

	status, err = c.PollProgress(ctx, "pk-42")
	require.NoError(t, err)
	assert.True(t, status.Complete())

	_, err = c.PollProgress(ctx, "pk-42")
	assert.True(t, models.IsDataShape(err))

	assert.Equal(t, []string{"pk-42", "pk-42", "pk-42", "pk-42", "pk-42", "pk-42"}, f.tokens)
}

func TestTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	c, err := NewClient(srv.URL, time.Second, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.FetchComparison(ctx, "a_b")
	assert.True(t, models.IsTransport(err))
	_, err = c.PollProgress(ctx, "pk")
	assert.True(t, models.IsTransport(err))

	srv.Close()
	_, err = c.FetchRevisions(ctx)
	assert.True(t, models.IsTransport(err))
}

func TestPollProgress_HonorsContextTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	c, err := NewClient(srv.URL, 5*time.Second, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.PollProgress(ctx, "pk")
	require.Error(t, err)
	assert.True(t, models.IsTransport(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calmstack/jobkeep/internal/job"
	"github.com/calmstack/jobkeep/internal/service"
)

func newTestRouter(t *testing.T) (*httptest.Server, *service.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, err := service.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	srv := httptest.NewServer(NewRouter(svc, "/api").Handler())
	t.Cleanup(srv.Close)
	return srv, svc
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func launchJob(t *testing.T, srv *httptest.Server, command []string, label string) string {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/jobs", map[string]any{
		"command":        command,
		"tracking_label": label,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	out := decode[map[string]string](t, resp)
	require.NotEmpty(t, out["id"])
	return out["id"]
}

func waitTerminal(t *testing.T, svc *service.Service, id string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := svc.Get(id)
		require.NotNil(t, rec)
		if rec.Status.Terminal() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job %s never finished", id)
}

func TestLaunchAndGetJob(t *testing.T) {
	srv, svc := newTestRouter(t)

	id := launchJob(t, srv, []string{"sh", "-c", "echo over http"}, "web")
	waitTerminal(t, svc, id)

	resp, err := http.Get(srv.URL + "/api/jobs/" + id)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rec := decode[job.Record](t, resp)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, job.StatusCompleted, rec.Status)
	assert.Equal(t, "web", rec.TrackingLabel)
}

func TestLaunchRejectsEmptyCommand(t *testing.T) {
	srv, _ := newTestRouter(t)
	resp := postJSON(t, srv.URL+"/api/jobs", map[string]any{"command": []string{}})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLaunchRejectsInvalidJSON(t *testing.T) {
	srv, _ := newTestRouter(t)
	resp, err := http.Post(srv.URL+"/api/jobs", "application/json", bytes.NewReader([]byte("{nope")))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetUnknownJobIs404(t *testing.T) {
	srv, _ := newTestRouter(t)
	resp, err := http.Get(srv.URL + "/api/jobs/nope")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListJobs(t *testing.T) {
	srv, svc := newTestRouter(t)

	a := launchJob(t, srv, []string{"true"}, "a")
	b := launchJob(t, srv, []string{"true"}, "b")
	waitTerminal(t, svc, a)
	waitTerminal(t, svc, b)

	resp, err := http.Get(srv.URL + "/api/jobs")
	require.NoError(t, err)
	recs := decode[[]job.Record](t, resp)
	assert.Len(t, recs, 2)
}

func TestLogAndTailEndpoints(t *testing.T) {
	srv, svc := newTestRouter(t)

	id := launchJob(t, srv, []string{"sh", "-c", "echo one; echo two; echo three"}, "")
	waitTerminal(t, svc, id)

	resp, err := http.Get(srv.URL + "/api/jobs/" + id + "/log")
	require.NoError(t, err)
	logOut := decode[map[string]string](t, resp)
	assert.Equal(t, "one\ntwo\nthree\n", logOut["log"])

	resp, err = http.Get(srv.URL + "/api/jobs/" + id + "/tail?n=2")
	require.NoError(t, err)
	tailOut := decode[map[string][]string](t, resp)
	assert.Equal(t, []string{"two", "three"}, tailOut["lines"])

	resp, err = http.Get(srv.URL + "/api/jobs/" + id + "/log?max_chars=6")
	require.NoError(t, err)
	truncated := decode[map[string]string](t, resp)
	assert.Equal(t, "three\n", truncated["log"])
}

func TestLogInvalidQueryParams(t *testing.T) {
	srv, svc := newTestRouter(t)
	id := launchJob(t, srv, []string{"true"}, "")
	waitTerminal(t, svc, id)

	resp, err := http.Get(srv.URL + "/api/jobs/" + id + "/log?max_chars=potato")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/jobs/" + id + "/tail?n=-1")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func newRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestTerminateEndpoint(t *testing.T) {
	srv, _ := newTestRouter(t)

	id := launchJob(t, srv, []string{"sleep", "30"}, "victim")

	resp := newRequest(t, http.MethodDelete, srv.URL+"/api/jobs/"+id)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[map[string]string](t, resp)
	assert.Equal(t, string(job.TerminateDone), out["result"])

	// Second call reports the job is already stopped, still 200.
	resp = newRequest(t, http.MethodDelete, srv.URL+"/api/jobs/"+id)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out = decode[map[string]string](t, resp)
	assert.Equal(t, string(job.TerminateAlreadyStopped), out["result"])
}

func TestTerminateUnknownIs404(t *testing.T) {
	srv, _ := newTestRouter(t)
	resp := newRequest(t, http.MethodDelete, srv.URL+"/api/jobs/ghost")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	out := decode[map[string]string](t, resp)
	assert.Equal(t, string(job.TerminateNotFound), out["result"])
}

func TestPruneEndpoint(t *testing.T) {
	srv, svc := newTestRouter(t)

	id := launchJob(t, srv, []string{"true"}, "")
	waitTerminal(t, svc, id)

	resp := postJSON(t, srv.URL+"/api/jobs/prune", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[map[string][]string](t, resp)
	assert.Equal(t, []string{id}, out["removed"])
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestRouter(t)
	resp, err := http.Get(srv.URL + "/api/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSanitizeBase(t *testing.T) {
	assert.Equal(t, "/api", sanitizeBase(""))
	assert.Equal(t, "/api", sanitizeBase("api/"))
	assert.Equal(t, "/v1", sanitizeBase("/v1"))
	assert.Equal(t, "", sanitizeBase("/"))
}

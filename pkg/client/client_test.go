package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calmstack/jobkeep/internal/job"
	"github.com/calmstack/jobkeep/internal/server"
	"github.com/calmstack/jobkeep/internal/service"
)

func newDaemon(t *testing.T) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, err := service.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	srv := httptest.NewServer(server.NewRouter(svc, "/api").Handler())
	t.Cleanup(srv.Close)

	return New(Config{BaseURL: srv.URL + "/api", Timeout: 5 * time.Second})
}

func waitDone(t *testing.T, c *Client, id string) *job.Record {
	t.Helper()
	ctx := context.Background()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := c.Get(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, rec)
		if rec.Status.Terminal() {
			return rec
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job %s never finished", id)
	return nil
}

func TestClientRoundtrip(t *testing.T) {
	c := newDaemon(t)
	ctx := context.Background()

	require.True(t, c.IsReachable(ctx))

	id, err := c.Launch(ctx, LaunchRequest{Command: []string{"sh", "-c", "echo alpha; echo beta"}, TrackingLabel: "rt"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec := waitDone(t, c, id)
	assert.Equal(t, job.StatusCompleted, rec.Status)
	assert.Equal(t, "rt", rec.TrackingLabel)

	content, err := c.FullLog(ctx, id, 0)
	require.NoError(t, err)
	assert.Equal(t, "alpha\nbeta\n", content)

	lines, err := c.LogTail(ctx, id, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"beta"}, lines)

	all, err := c.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	removed, err := c.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, removed)
}

func TestClientGetUnknownIsNil(t *testing.T) {
	c := newDaemon(t)
	rec, err := c.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestClientTerminate(t *testing.T) {
	c := newDaemon(t)
	ctx := context.Background()

	id, err := c.Launch(ctx, LaunchRequest{Command: []string{"sleep", "30"}})
	require.NoError(t, err)

	result, err := c.Terminate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, string(job.TerminateDone), result)

	result, err = c.Terminate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, string(job.TerminateAlreadyStopped), result)

	// Unknown id maps onto the NOT_FOUND outcome, not an error.
	result, err = c.Terminate(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, string(job.TerminateNotFound), result)
}

func TestClientLaunchEmptyCommand(t *testing.T) {
	c := newDaemon(t)
	_, err := c.Launch(context.Background(), LaunchRequest{})
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.StatusCode)
}

func TestClientUnreachableDaemon(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1/api", Timeout: time.Second})
	assert.False(t, c.IsReachable(context.Background()))
}

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-conversion-service/internal/models"
)

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestProgressStreamsUntilTerminal(t *testing.T) {
	ts := newTestServer(t, completingWorker)
	srv := httptest.NewServer(ts.srv.Router())
	defer srv.Close()

	_, err := ts.reg.Create("ws-job")
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/api/progress/ws-job"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var rec models.JobRecord
	require.NoError(t, conn.ReadJSON(&rec))
	assert.Equal(t, models.StatusQueued, rec.Status)

	require.NoError(t, ts.reg.Update("ws-job", models.StatusUpdate{
		Status:   models.StatusPtr(models.StatusCompleted),
		Progress: models.IntPtr(100),
	}))

	// The stream ends with the terminal snapshot, then the server closes.
	for {
		if err := conn.ReadJSON(&rec); err != nil {
			t.Fatalf("connection closed before terminal snapshot: %v", err)
		}
		if rec.Status.Terminal() {
			break
		}
	}
	assert.Equal(t, models.StatusCompleted, rec.Status)
	assert.Equal(t, 100, rec.Progress)

	var extra models.JobRecord
	assert.Error(t, conn.ReadJSON(&extra), "server closes after the terminal snapshot")
}

func TestProgressUnknownJobRejectsUpgrade(t *testing.T) {
	ts := newTestServer(t, completingWorker)
	srv := httptest.NewServer(ts.srv.Router())
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/api/progress/nope"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

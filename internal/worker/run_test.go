package worker

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-conversion-service/internal/log"
	"pdf-conversion-service/internal/models"
	"pdf-conversion-service/internal/statusfile"
)

func newRunner(t *testing.T, seed models.StatusUpdate, hbTimeout time.Duration) *runner {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.status.json")
	ch, err := statusfile.Create(path, seed)
	require.NoError(t, err)
	return &runner{
		opts:    Options{JobID: "j1", StatusRef: path, HeartbeatTimeout: hbTimeout},
		ch:      ch,
		logger:  log.New(false),
		started: time.Now(),
	}
}

func converting() models.StatusUpdate {
	return models.StatusUpdate{
		Status:   models.StatusPtr(models.StatusConverting),
		Progress: models.IntPtr(0),
	}
}

func TestCheckpointDetectsCancellationIntent(t *testing.T) {
	r := newRunner(t, converting(), time.Second)
	require.NoError(t, r.ch.Merge(models.StatusUpdate{
		Status: models.StatusPtr(models.StatusCancelled),
	}))

	assert.ErrorIs(t, r.checkpoint(), ErrCancelled)
}

func TestCheckpointDetectsAbandonment(t *testing.T) {
	r := newRunner(t, converting(), time.Second)
	require.NoError(t, r.ch.TouchLiveness(time.Now().Add(-time.Minute)))

	err := r.checkpoint()
	assert.ErrorIs(t, err, ErrAbandoned)
	assert.Contains(t, err.Error(), "no heartbeat")
}

func TestCheckpointWithoutHeartbeatsProceeds(t *testing.T) {
	r := newRunner(t, converting(), time.Second)

	// A client that never heartbeats is not abandoned.
	assert.NoError(t, r.checkpoint())

	// Disabled staleness check ignores even a stale marker.
	r2 := newRunner(t, converting(), 0)
	require.NoError(t, r2.ch.TouchLiveness(time.Now().Add(-time.Hour)))
	assert.NoError(t, r2.checkpoint())
}

func TestCheckpointFreshHeartbeatProceeds(t *testing.T) {
	r := newRunner(t, converting(), time.Minute)
	require.NoError(t, r.ch.TouchLiveness(time.Now()))

	assert.NoError(t, r.checkpoint())
	assert.True(t, r.hbSeen)
}

func TestReportTotalPublishesPageCount(t *testing.T) {
	r := newRunner(t, converting(), 0)
	r.reportTotal(7)

	snap, err := r.ch.Read()
	require.NoError(t, err)
	require.NotNil(t, snap.TotalPages)
	assert.Equal(t, 7, *snap.TotalPages)
}

func TestRunReportsErrorForUnreadableDocument(t *testing.T) {
	dir := t.TempDir()
	statusPath := filepath.Join(dir, "job.status.json")
	_, err := statusfile.Create(statusPath, converting())
	require.NoError(t, err)

	inputPath := filepath.Join(dir, "in.pdf")
	outputPath := filepath.Join(dir, "out.docx")
	require.NoError(t, os.WriteFile(inputPath, []byte("definitely not a pdf"), 0o644))

	err = Run(log.New(false), Options{
		JobID:      "j1",
		InputPath:  inputPath,
		OutputPath: outputPath,
		StatusRef:  statusPath,
	})
	require.Error(t, err)

	snap, readErr := statusfile.New(statusPath).Read()
	require.NoError(t, readErr)
	require.NotNil(t, snap.Status)
	assert.Equal(t, models.StatusError, *snap.Status)
	require.NotNil(t, snap.Error)
	assert.NotEmpty(t, *snap.Error)

	_, statErr := os.Stat(outputPath)
	assert.True(t, os.IsNotExist(statErr), "no partial artifact after failure")
}

func TestEtaString(t *testing.T) {
	start := time.Now().Add(-10 * time.Second)
	assert.Equal(t, "about 10s remaining", etaString(start, 5, 10))
	assert.Empty(t, etaString(start, 0, 10))
	assert.Empty(t, etaString(start, 10, 10))
}

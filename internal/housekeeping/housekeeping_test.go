package housekeeping

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-conversion-service/internal/log"
)

func TestPurgeRemovesOnlyStaleFiles(t *testing.T) {
	uploads := t.TempDir()
	outputs := t.TempDir()

	stale := filepath.Join(uploads, "old.pdf")
	fresh := filepath.Join(uploads, "new.pdf")
	staleOut := filepath.Join(outputs, "old.docx")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(staleOut, []byte("x"), 0o644))

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, past, past))
	require.NoError(t, os.Chtimes(staleOut, past, past))

	require.NoError(t, Purge(context.Background(), log.New(false), time.Hour, uploads, outputs))

	assert.NoFileExists(t, stale)
	assert.NoFileExists(t, staleOut)
	assert.FileExists(t, fresh)
}

func TestPurgeIgnoresMissingDirs(t *testing.T) {
	err := Purge(context.Background(), log.New(false), time.Hour, filepath.Join(t.TempDir(), "absent"))
	assert.NoError(t, err)
}

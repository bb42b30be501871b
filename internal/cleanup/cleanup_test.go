package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chunkwire/chunkwire/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTarget(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0644))

	return path
}

func TestDeleteExpiredFiles_DeletesExpiredCompletedTransfers(t *testing.T) {
	dir := t.TempDir()

	// Record paths are stored the way the downloader claims them: the
	// full target path, not a name relative to some base directory.
	expired := writeTarget(t, dir, "expired.bin")
	fresh := writeTarget(t, dir, "fresh.bin")
	pending := writeTarget(t, dir, "pending.bin")

	records := []storage.TransferRecord{
		{
			TransferID:    "a",
			FilePath:      expired,
			TransferredAt: time.Now().Add(-48 * time.Hour).Format(time.RFC3339),
			Status:        "completed",
		},
		{
			TransferID:    "b",
			FilePath:      fresh,
			TransferredAt: time.Now().Add(-1 * time.Hour).Format(time.RFC3339),
			Status:        "completed",
		},
		{
			TransferID:    "c",
			FilePath:      pending,
			TransferredAt: time.Now().Add(-48 * time.Hour).Format(time.RFC3339),
			Status:        "pending",
		},
	}

	require.NoError(t, DeleteExpiredFiles(context.Background(), records, 24*time.Hour))

	assert.NoFileExists(t, expired)
	assert.FileExists(t, fresh)
	assert.FileExists(t, pending)
}

func TestDeleteExpiredFiles_SkipsAlreadyDeleted(t *testing.T) {
	records := []storage.TransferRecord{
		{
			TransferID:    "gone",
			FilePath:      filepath.Join(t.TempDir(), "never-written.bin"),
			TransferredAt: time.Now().Add(-48 * time.Hour).Format(time.RFC3339),
			Status:        "completed",
		},
	}

	assert.NoError(t, DeleteExpiredFiles(context.Background(), records, 24*time.Hour))
}

func TestDeleteExpiredFiles_UnparsableTimestampFallsBackToModTime(t *testing.T) {
	dir := t.TempDir()
	path := writeTarget(t, dir, "old.bin")

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	records := []storage.TransferRecord{
		{TransferID: "d", FilePath: path, TransferredAt: "not-a-time", Status: "completed"},
	}

	require.NoError(t, DeleteExpiredFiles(context.Background(), records, 24*time.Hour))
	assert.NoFileExists(t, path)
}

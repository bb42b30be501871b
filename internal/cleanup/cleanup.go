// Package cleanup removes transferred files once their retention
// window has passed.
package cleanup

import (
	"context"
	"os"
	"time"

	"github.com/chunkwire/chunkwire/internal/logctx"
	"github.com/chunkwire/chunkwire/internal/storage"
)

// DeleteExpiredFiles deletes completed transfers older than
// keepDuration. Record paths are the full target paths the downloader
// claimed the transfers with.
func DeleteExpiredFiles(ctx context.Context, records []storage.TransferRecord, keepDuration time.Duration) error {
	logger := logctx.LoggerFromContext(ctx)
	now := time.Now()

	for _, rec := range records {
		if rec.Status != "completed" {
			continue
		}

		info, err := os.Stat(rec.FilePath)
		if err != nil {
			if os.IsNotExist(err) {
				continue // already deleted
			}

			logger.Error("failed to stat file", "file", rec.FilePath, "err", err)

			return err
		}

		transferredAt, err := time.Parse(time.RFC3339, rec.TransferredAt)
		if err != nil {
			// fallback: use file mod time
			logger.Warn("failed to parse transfer time, using file mod time", "file", rec.FilePath, "err", err)

			transferredAt = info.ModTime()
		}

		if now.Sub(transferredAt) > keepDuration {
			if err := os.Remove(rec.FilePath); err != nil && !os.IsNotExist(err) {
				logger.Error("failed to delete expired file", "file", rec.FilePath, "err", err)

				return err
			}

			logger.Info("deleted expired file", "file", rec.FilePath)
		}
	}

	return nil
}

// Package downloader orchestrates whole-file transfers on top of the
// chunk pipeline: it splits a file into block-aligned ranges, runs the
// chunk sub-requests in parallel and reassembles the plaintext.
package downloader

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/chunkwire/chunkwire/internal/chunk"
	"github.com/chunkwire/chunkwire/internal/crypto"
	"github.com/chunkwire/chunkwire/internal/logctx"
	"github.com/chunkwire/chunkwire/internal/netstatus"
	"github.com/chunkwire/chunkwire/internal/request"
	"github.com/chunkwire/chunkwire/internal/storage"
	"github.com/chunkwire/chunkwire/internal/telemetry"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

const dirPerm = 0755

// Downloader pulls encrypted files chunk by chunk and writes the
// decrypted plaintext to disk.
type Downloader struct {
	transport   request.Transport
	cipher      *crypto.AES
	repo        storage.TransferWriteRepository
	detector    *netstatus.Detector
	tel         *telemetry.Telemetry
	chunkSize   int64
	maxParallel int
}

func NewDownloader(
	transport request.Transport,
	cipher *crypto.AES,
	repo storage.TransferWriteRepository,
	detector *netstatus.Detector,
	tel *telemetry.Telemetry,
	chunkSize int64,
	maxParallel int,
) *Downloader {
	if tel == nil {
		tel = &telemetry.Telemetry{}
	}

	return &Downloader{
		transport:   transport,
		cipher:      cipher,
		repo:        repo,
		detector:    detector,
		tel:         tel,
		chunkSize:   alignChunkSize(chunkSize),
		maxParallel: maxParallel,
	}
}

// alignChunkSize rounds up to the cipher block size so every chunk
// except the last starts and ends on a block boundary.
func alignChunkSize(n int64) int64 {
	if n < crypto.BlockSize {
		return crypto.BlockSize
	}

	return (n + crypto.BlockSize - 1) &^ int64(crypto.BlockSize-1)
}

// transferID derives a stable identifier for one file URL.
func transferID(baseURL string) string {
	sum := sha1.Sum([]byte(baseURL))

	return hex.EncodeToString(sum[:])
}

// DownloadFile transfers the file behind baseURL into targetPath and
// returns the ledger of per-chunk tags. The transfer is claimed in the
// repository first so concurrent agent instances skip it.
func (d *Downloader) DownloadFile(ctx context.Context, baseURL string, seed uint64, size int64, targetPath string) (*chunk.MacLedger, error) {
	logger := logctx.LoggerFromContext(ctx).With("target", targetPath)

	id := transferID(baseURL)

	claimed, err := d.repo.ClaimTransfer(id, targetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to claim transfer: %w", err)
	}

	if !claimed {
		return nil, fmt.Errorf("transfer %s claimed by another instance", id)
	}

	d.tel.IncrementActiveTransfers()
	defer d.tel.DecrementActiveTransfers()

	logger.Info("downloading file", "file_size", humanize.Bytes(uint64(size)), "chunk_size", humanize.Bytes(uint64(d.chunkSize)))

	if err := os.MkdirAll(filepath.Dir(targetPath), dirPerm); err != nil {
		d.markFailed(ctx, id)

		return nil, fmt.Errorf("failed to create target directory: %w", err)
	}

	out, err := os.Create(targetPath)
	if err != nil {
		d.markFailed(ctx, id)

		return nil, fmt.Errorf("failed to create target file: %w", err)
	}
	defer out.Close()

	ledger := chunk.NewMacLedger()

	wg, ctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, d.maxParallel)

	var transferred atomic.Int64

	for start := int64(0); start < size; start += d.chunkSize {
		start := start

		end := start + d.chunkSize
		if end > size {
			end = size
		}

		sem <- struct{}{}

		wg.Go(func() error {
			defer func() { <-sem }()

			if err := d.downloadChunk(ctx, out, baseURL, seed, start, end, ledger); err != nil {
				return err
			}

			total := transferred.Add(end - start)
			logger.Debug("download progress",
				"downloaded", humanize.Bytes(uint64(total)),
				"total", humanize.Bytes(uint64(size)))

			return nil
		})
	}

	if err := wg.Wait(); err != nil {
		d.markFailed(ctx, id)

		return nil, fmt.Errorf("failed to download chunks: %w", err)
	}

	if err := d.repo.UpdateTransferStatus(id, "completed"); err != nil {
		return nil, fmt.Errorf("failed to update transfer status: %w", err)
	}

	logger.Info("download completed", "file_size", humanize.Bytes(uint64(size)))

	return ledger, nil
}

// markFailed records the failure and releases the claim so another
// run can retry the transfer.
func (d *Downloader) markFailed(ctx context.Context, id string) {
	if err := d.repo.UpdateTransferStatus(id, "failed"); err != nil {
		logctx.LoggerFromContext(ctx).Error("failed to update transfer status", "transfer_id", id, "err", err)
	}
}

func (d *Downloader) downloadChunk(ctx context.Context, out *os.File, baseURL string, seed uint64, start, end int64, ledger *chunk.MacLedger) error {
	logger := logctx.LoggerFromContext(ctx)

	dl := chunk.NewDownload()
	dl.Prepare(baseURL, start, end)

	started := time.Now()

	if err := dl.Post(ctx, d.transport, nil); err != nil {
		d.reportStatus(ctx, false)
		d.tel.RecordChunk("download", "error", 0, time.Since(started))

		return fmt.Errorf("failed to post chunk at %d: %w", start, err)
	}

	err := dl.Wait(ctx)
	d.reportStatus(ctx, err == nil)

	if err != nil {
		dl.Disconnect()
		d.tel.RecordChunk("download", "error", dl.Transferred(), time.Since(started))

		return fmt.Errorf("chunk at %d failed: %w", start, err)
	}

	dl.Finalize(d.cipher, ledger, seed)

	if _, err := out.WriteAt(dl.Data(), start); err != nil {
		return fmt.Errorf("failed to write chunk at %d: %w", start, err)
	}

	d.tel.RecordChunk("download", "success", dl.Transferred(), time.Since(started))

	logger.Debug("chunk finalized", "start", start, "end", end, "bytes", dl.Transferred())

	return nil
}

// reportStatus feeds the outage detector and surfaces the recovery
// edge once.
func (d *Downloader) reportStatus(ctx context.Context, up bool) {
	if d.detector == nil {
		return
	}

	d.detector.ReportStatus(up)

	if d.detector.Recovered() {
		d.tel.RecordOutageRecovery()
		logctx.LoggerFromContext(ctx).Info("connectivity recovered after sustained outage")
	}
}

// Verify condenses the ledger into the whole-file tag and compares it
// with want.
func (d *Downloader) Verify(ledger *chunk.MacLedger, want [crypto.BlockSize]byte) error {
	if got := ledger.Condense(d.cipher); got != want {
		return &chunk.IntegrityError{Offset: -1, Reason: "file tag mismatch"}
	}

	return nil
}

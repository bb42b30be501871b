package downloader

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chunkwire/chunkwire/internal/chunk"
	"github.com/chunkwire/chunkwire/internal/crypto"
	"github.com/chunkwire/chunkwire/internal/logctx"
	"github.com/chunkwire/chunkwire/internal/netstatus"
	"github.com/chunkwire/chunkwire/internal/request"
	"github.com/chunkwire/chunkwire/internal/telemetry"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// Uploader pushes local files chunk by chunk, encrypting each chunk
// before its first byte leaves the process.
type Uploader struct {
	transport   request.Transport
	cipher      *crypto.AES
	detector    *netstatus.Detector
	tel         *telemetry.Telemetry
	chunkSize   int64
	maxParallel int
}

func NewUploader(
	transport request.Transport,
	cipher *crypto.AES,
	detector *netstatus.Detector,
	tel *telemetry.Telemetry,
	chunkSize int64,
	maxParallel int,
) *Uploader {
	if tel == nil {
		tel = &telemetry.Telemetry{}
	}

	return &Uploader{
		transport:   transport,
		cipher:      cipher,
		detector:    detector,
		tel:         tel,
		chunkSize:   alignChunkSize(chunkSize),
		maxParallel: maxParallel,
	}
}

// UploadFile transfers the file at path to baseURL and returns the
// ledger of per-chunk tags.
func (u *Uploader) UploadFile(ctx context.Context, baseURL string, seed uint64, path string) (*chunk.MacLedger, error) {
	logger := logctx.LoggerFromContext(ctx).With("source", path)

	in, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat source file: %w", err)
	}

	size := info.Size()

	logger.Info("uploading file", "file_size", humanize.Bytes(uint64(size)), "chunk_size", humanize.Bytes(uint64(u.chunkSize)))

	ledger := chunk.NewMacLedger()

	wg, ctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, u.maxParallel)

	for start := int64(0); start < size; start += u.chunkSize {
		start := start

		end := start + u.chunkSize
		if end > size {
			end = size
		}

		sem <- struct{}{}

		wg.Go(func() error {
			defer func() { <-sem }()

			return u.uploadChunk(ctx, in, baseURL, seed, start, end, ledger)
		})
	}

	if err := wg.Wait(); err != nil {
		return nil, fmt.Errorf("failed to upload chunks: %w", err)
	}

	logger.Info("upload completed", "file_size", humanize.Bytes(uint64(size)))

	return ledger, nil
}

func (u *Uploader) uploadChunk(ctx context.Context, in io.ReaderAt, baseURL string, seed uint64, start, end int64, ledger *chunk.MacLedger) error {
	plain := make([]byte, end-start)
	if _, err := in.ReadAt(plain, start); err != nil {
		return fmt.Errorf("failed to read chunk at %d: %w", start, err)
	}

	ul := chunk.NewUpload()
	ul.Out().Put(plain, true)
	ul.Prepare(baseURL, u.cipher, ledger, seed, start, end)

	started := time.Now()

	if err := ul.Post(ctx, u.transport, ul.Out().Data()); err != nil {
		u.reportStatus(ctx, false)
		u.tel.RecordChunk("upload", "error", 0, time.Since(started))

		return fmt.Errorf("failed to post chunk at %d: %w", start, err)
	}

	err := ul.Wait(ctx)
	u.reportStatus(ctx, err == nil)

	if err != nil {
		ul.Disconnect()
		u.tel.RecordChunk("upload", "error", ul.Transferred(), time.Since(started))

		return fmt.Errorf("chunk at %d failed: %w", start, err)
	}

	u.tel.RecordChunk("upload", "success", end-start, time.Since(started))

	return nil
}

func (u *Uploader) reportStatus(ctx context.Context, up bool) {
	if u.detector == nil {
		return
	}

	u.detector.ReportStatus(up)

	if u.detector.Recovered() {
		u.tel.RecordOutageRecovery()
		logctx.LoggerFromContext(ctx).Info("connectivity recovered after sustained outage")
	}
}

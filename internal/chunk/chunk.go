package chunk

import (
	"fmt"

	"github.com/chunkwire/chunkwire/internal/buffer"
	"github.com/chunkwire/chunkwire/internal/crypto"
	"github.com/chunkwire/chunkwire/internal/request"
)

func roundUpToBlock(n int) int {
	return (n + crypto.BlockSize - 1) &^ (crypto.BlockSize - 1)
}

// Download is a binary request bound to one chunk of a file being
// downloaded: Idle -> Prepared -> Receiving -> Finalized, with the
// transport filling the buffer in between.
type Download struct {
	*request.Request

	Start int64
	End   int64
}

func NewDownload() *Download {
	return &Download{Request: request.New(true)}
}

// Prepare binds the chunk [start, end) to its sub-request target
// "<base>/<start>-<end-1>" and sizes the inbound buffer. The buffer is
// kept when its capacity already matches, so same-size chunks across
// retries or sequential ranges never reallocate.
func (d *Download) Prepare(baseURL string, start, end int64) {
	d.SetURL(fmt.Sprintf("%s/%d-%d", baseURL, start, end-1))
	d.Start = start
	d.End = end

	size := int(end - start)

	if in := d.In(); in == nil || in.Capacity() != size {
		d.SetIn(buffer.NewFixed(size, roundUpToBlock(size)))
	} else {
		in.Reset()
	}
}

// Finalize decrypts the received bytes in place and records the
// chunk's tag in the ledger. Must only be called after the transport
// signalled the sub-request complete: decryption covers exactly the
// bytes transferred, so finalizing early processes a short chunk.
func (d *Download) Finalize(c crypto.CounterCipher, ledger *MacLedger, seed uint64) {
	var mac [crypto.BlockSize]byte

	c.CTRCrypt(d.Data(), d.Start, seed, &mac, false)
	ledger.Set(d.Start, mac)
}

// Upload is a binary request bound to one chunk of a file being
// uploaded. There is no finalize step: the transport streams straight
// from the outbound buffer, so encryption happens in Prepare, before
// the first byte leaves.
type Upload struct {
	*request.Request
}

func NewUpload() *Upload {
	return &Upload{Request: request.New(true)}
}

// Prepare encrypts the plaintext already staged in the outbound buffer
// in place, records the tag, sets the sub-request target to
// "<base>/<start>" and trims any block padding so the transport sends
// exactly the encrypted length.
func (u *Upload) Prepare(baseURL string, c crypto.CounterCipher, ledger *MacLedger, seed uint64, start, end int64) {
	u.SetURL(fmt.Sprintf("%s/%d", baseURL, start))

	size := int(end - start)

	var mac [crypto.BlockSize]byte

	out := u.Out()
	c.CTRCrypt(out.Data()[:size], start, seed, &mac, true)
	ledger.Set(start, mac)

	// unpad for POSTing
	out.Truncate(size)
}

// Transferred reports the bytes of this chunk the transport has sent
// so far.
func (u *Upload) Transferred() int64 {
	return u.Sent()
}

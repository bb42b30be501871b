package chunk

import (
	"bytes"
	"testing"

	"github.com/chunkwire/chunkwire/internal/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCipher(t *testing.T) *crypto.AES {
	t.Helper()

	c, err := crypto.NewAES(bytes.Repeat([]byte{0x24}, 16))
	require.NoError(t, err)

	return c
}

func TestDownload_PrepareURLFormat(t *testing.T) {
	d := NewDownload()

	d.Prepare("https://cs.example.net/file", 0, 131072)

	// Byte-offset addressed, inclusive end.
	assert.Equal(t, "https://cs.example.net/file/0-131071", d.URL())
	assert.Equal(t, int64(0), d.Start)
	assert.Equal(t, int64(131072), d.End)
}

func TestDownload_PrepareBufferSizing(t *testing.T) {
	d := NewDownload()

	d.Prepare("https://cs.example.net/file", 0, 100)

	in := d.In()
	require.NotNil(t, in)
	assert.Equal(t, 100, in.Capacity())

	// Appending more than the chunk truncates, never grows.
	in.Put(make([]byte, 200), false)
	assert.Equal(t, int64(100), in.Transferred())
}

func TestDownload_PrepareReusesSameSizeBuffer(t *testing.T) {
	d := NewDownload()

	d.Prepare("https://cs.example.net/file", 0, 1024)
	first := d.In()
	first.Put([]byte("left over"), false)

	d.Prepare("https://cs.example.net/file", 1024, 2048)

	assert.Same(t, first, d.In(), "same-size prepare must keep the buffer")
	assert.Equal(t, int64(0), d.In().Transferred(), "reused buffer must be rewound")

	d.Prepare("https://cs.example.net/file", 2048, 2048+512)
	assert.NotSame(t, first, d.In(), "size change must reallocate")
}

func TestUpload_PrepareURLFormat(t *testing.T) {
	u := NewUpload()
	u.Out().Put(make([]byte, 64), true)

	u.Prepare("https://cs.example.net/file", testCipher(t), NewMacLedger(), 1, 4096, 4160)

	assert.Equal(t, "https://cs.example.net/file/4096", u.URL())
}

func TestUploadDownload_RoundTrip(t *testing.T) {
	cipher := testCipher(t)

	const (
		seed  = uint64(7)
		start = int64(0)
		end   = int64(100) // exercises a partial final block
	)

	plain := make([]byte, end-start)
	for i := range plain {
		plain[i] = byte(i % 251)
	}

	// Upload: stage plaintext, prepare encrypts in place.
	ul := NewUpload()
	ulLedger := NewMacLedger()
	ul.Out().Put(plain, true)
	ul.Prepare("https://cs.example.net/f", cipher, ulLedger, seed, start, end)

	ciphertext := ul.Out().Data()
	require.Len(t, ciphertext, int(end-start), "outbound buffer trimmed to encrypted length")
	assert.NotEqual(t, plain, ciphertext)

	// Download the identical range: receive ciphertext, finalize.
	dl := NewDownload()
	dlLedger := NewMacLedger()
	dl.Prepare("https://cs.example.net/f", start, end)
	dl.Put(ciphertext, false)
	dl.Finalize(cipher, dlLedger, seed)

	assert.Equal(t, plain, dl.Data(), "decryption must reproduce the plaintext")

	ulMAC, ok := ulLedger.Get(start)
	require.True(t, ok)
	dlMAC, ok := dlLedger.Get(start)
	require.True(t, ok)
	assert.Equal(t, ulMAC, dlMAC, "both directions must record identical tags")
}

func TestDownload_FinalizeZeroCiphertext(t *testing.T) {
	// prepare(seed=7, start=0, end=16) on a 16-byte chunk of zero
	// ciphertext: the buffer ends up holding its decryption and the
	// ledger tag equals an independent run of the transform.
	cipher := testCipher(t)
	ledger := NewMacLedger()

	dl := NewDownload()
	dl.Prepare("https://x/f", 0, 16)
	dl.Put(make([]byte, 16), false)
	dl.Finalize(cipher, ledger, 7)

	want := make([]byte, 16)

	var wantMAC [crypto.BlockSize]byte

	cipher.CTRCrypt(want, 0, 7, &wantMAC, false)

	assert.Equal(t, want, dl.Data())

	got, ok := ledger.Get(0)
	require.True(t, ok)
	assert.Equal(t, wantMAC, got)
}

func TestMacLedger_OverwriteSameOffset(t *testing.T) {
	ledger := NewMacLedger()

	var a, b [crypto.BlockSize]byte
	a[0] = 1
	b[0] = 2

	ledger.Set(0, a)
	ledger.Set(0, b)

	got, ok := ledger.Get(0)
	require.True(t, ok)
	assert.Equal(t, b, got)
	assert.Equal(t, 1, ledger.Len())
}

func TestMacLedger_CondenseIsOrderIndependent(t *testing.T) {
	cipher := testCipher(t)

	var m0, m1, m2 [crypto.BlockSize]byte
	m0[0], m1[0], m2[0] = 0xA0, 0xA1, 0xA2

	forward := NewMacLedger()
	forward.Set(0, m0)
	forward.Set(1024, m1)
	forward.Set(2048, m2)

	backward := NewMacLedger()
	backward.Set(2048, m2)
	backward.Set(0, m0)
	backward.Set(1024, m1)

	assert.Equal(t, forward.Condense(cipher), backward.Condense(cipher))
}

func TestIntegrityError_Format(t *testing.T) {
	chunkErr := &IntegrityError{Offset: 1024, Reason: "tag mismatch"}
	assert.Equal(t, "integrity check failed for chunk at 1024: tag mismatch", chunkErr.Error())

	fileErr := &IntegrityError{Offset: -1, Reason: "meta-mac mismatch"}
	assert.Equal(t, "integrity check failed: meta-mac mismatch", fileErr.Error())
}

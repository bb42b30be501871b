package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 16)
}

func TestNewAES_KeySizes(t *testing.T) {
	tests := []struct {
		name    string
		keyLen  int
		wantErr bool
	}{
		{name: "AES-128", keyLen: 16, wantErr: false},
		{name: "AES-192", keyLen: 24, wantErr: false},
		{name: "AES-256", keyLen: 32, wantErr: false},
		{name: "too short", keyLen: 8, wantErr: true},
		{name: "empty", keyLen: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAES(make([]byte, tt.keyLen))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrKeySize)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCTRCrypt_RoundTrip(t *testing.T) {
	c, err := NewAES(testKey())
	require.NoError(t, err)

	lengths := []int{1, 15, 16, 17, 64, 1000}

	for _, n := range lengths {
		plain := make([]byte, n)
		for i := range plain {
			plain[i] = byte(i * 7)
		}

		data := append([]byte(nil), plain...)

		var encMAC, decMAC [BlockSize]byte

		c.CTRCrypt(data, 0, 7, &encMAC, true)
		if n >= BlockSize {
			assert.NotEqual(t, plain, data, "len=%d: ciphertext equals plaintext", n)
		}

		c.CTRCrypt(data, 0, 7, &decMAC, false)
		assert.Equal(t, plain, data, "len=%d: round trip mismatch", n)

		// The tag is chained over plaintext in both directions.
		assert.Equal(t, encMAC, decMAC, "len=%d: tag mismatch", n)
	}
}

func TestCTRCrypt_Deterministic(t *testing.T) {
	c, err := NewAES(testKey())
	require.NoError(t, err)

	a := []byte("the same sixteen")
	b := append([]byte(nil), a...)

	var macA, macB [BlockSize]byte

	c.CTRCrypt(a, 32, 99, &macA, true)
	c.CTRCrypt(b, 32, 99, &macB, true)

	assert.Equal(t, a, b)
	assert.Equal(t, macA, macB)
}

func TestCTRCrypt_OffsetChangesKeystream(t *testing.T) {
	c, err := NewAES(testKey())
	require.NoError(t, err)

	a := make([]byte, 32)
	b := make([]byte, 32)

	c.CTRCrypt(a, 0, 1, nil, true)
	c.CTRCrypt(b, 32, 1, nil, true)

	assert.NotEqual(t, a, b)
}

func TestCTRCrypt_SeedChangesKeystream(t *testing.T) {
	c, err := NewAES(testKey())
	require.NoError(t, err)

	a := make([]byte, 32)
	b := make([]byte, 32)

	c.CTRCrypt(a, 0, 1, nil, true)
	c.CTRCrypt(b, 0, 2, nil, true)

	assert.NotEqual(t, a, b)
}

func TestCTRCrypt_ContiguousChunksMatchWhole(t *testing.T) {
	// Encrypting [0,32) in one call must equal encrypting [0,16) and
	// [16,32) separately: the keystream is addressed by absolute byte
	// offset, not call order.
	c, err := NewAES(testKey())
	require.NoError(t, err)

	whole := make([]byte, 32)
	split := make([]byte, 32)
	for i := range whole {
		whole[i] = byte(i)
		split[i] = byte(i)
	}

	c.CTRCrypt(whole, 0, 5, nil, true)
	c.CTRCrypt(split[:16], 0, 5, nil, true)
	c.CTRCrypt(split[16:], 16, 5, nil, true)

	assert.Equal(t, whole, split)
}

func TestCTRCrypt_NilMAC(t *testing.T) {
	c, err := NewAES(testKey())
	require.NoError(t, err)

	data := []byte("no tag requested")
	orig := append([]byte(nil), data...)

	c.CTRCrypt(data, 0, 3, nil, true)
	c.CTRCrypt(data, 0, 3, nil, false)

	assert.Equal(t, orig, data)
}

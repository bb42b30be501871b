// Package crypto implements the counter-mode transform used by the
// chunked transfer pipeline: an AES keystream keyed by a per-file seed
// and a byte offset, plus a per-chunk authentication tag chained over
// the plaintext.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"errors"
)

// BlockSize is the cipher block size; chunk offsets are aligned to it
// and authentication tags are one block wide.
const BlockSize = aes.BlockSize

var ErrKeySize = errors.New("crypto: invalid AES key size")

// CounterCipher is the encryption contract consumed by the chunk
// codec. Implementations must be deterministic and must process
// exactly len(data) bytes.
type CounterCipher interface {
	// CTRCrypt transforms data in place. offset is the byte position
	// of data within the logical file and must be block-aligned; seed
	// is the per-file counter initialization value. When mac is
	// non-nil the per-chunk authentication tag is written into it.
	// encrypt selects the direction; the tag is always computed over
	// the plaintext, so both directions produce the same tag for the
	// same bytes.
	CTRCrypt(data []byte, offset int64, seed uint64, mac *[BlockSize]byte, encrypt bool)
}

// AES is the concrete CounterCipher holding one file key.
type AES struct {
	block cipher.Block
}

// NewAES creates an AES counter cipher from a 16, 24 or 32 byte key.
func NewAES(key []byte) (*AES, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, ErrKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return &AES{block: block}, nil
}

func (a *AES) CTRCrypt(data []byte, offset int64, seed uint64, mac *[BlockSize]byte, encrypt bool) {
	var ctr, keystream [BlockSize]byte

	binary.BigEndian.PutUint64(ctr[:8], seed)
	binary.BigEndian.PutUint64(ctr[8:], uint64(offset)/BlockSize)

	if mac != nil {
		binary.BigEndian.PutUint64(mac[:8], seed)
		binary.BigEndian.PutUint64(mac[8:], seed)
	}

	for i := 0; i < len(data); i += BlockSize {
		end := i + BlockSize
		if end > len(data) {
			end = len(data)
		}

		blk := data[i:end]

		if encrypt && mac != nil {
			a.chainMAC(mac, blk)
		}

		a.block.Encrypt(keystream[:], ctr[:])
		for j := range blk {
			blk[j] ^= keystream[j]
		}

		if !encrypt && mac != nil {
			a.chainMAC(mac, blk)
		}

		// big-endian increment of the block counter
		for k := len(ctr) - 1; k >= 8; k-- {
			ctr[k]++
			if ctr[k] != 0 {
				break
			}
		}
	}
}

// chainMAC folds one plaintext block into the running tag: XOR, then
// one cipher round. A short final block only XORs the bytes present.
func (a *AES) chainMAC(mac *[BlockSize]byte, blk []byte) {
	for j := range blk {
		mac[j] ^= blk[j]
	}

	a.block.Encrypt(mac[:], mac[:])
}

// EncryptBlock runs one raw cipher round over b in place. Used to
// condense per-chunk tags into a whole-file tag.
func (a *AES) EncryptBlock(b *[BlockSize]byte) {
	a.block.Encrypt(b[:], b[:])
}

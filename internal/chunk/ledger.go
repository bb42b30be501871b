// Package chunk binds byte ranges of a file to HTTP sub-requests and
// drives the counter-mode transform over them: download chunks are
// decrypted once fully received, upload chunks are encrypted in place
// before the first byte is sent. Either way the chunk's authentication
// tag lands in the MacLedger keyed by the range start.
package chunk

import (
	"sort"
	"sync"

	"github.com/chunkwire/chunkwire/internal/crypto"
)

// MacLedger maps chunk start offsets to authentication tags.
// Concurrent chunks of the same file write disjoint keys, so a plain
// mutex around the map is all the coordination needed.
type MacLedger struct {
	mu   sync.Mutex
	macs map[int64][crypto.BlockSize]byte
}

func NewMacLedger() *MacLedger {
	return &MacLedger{macs: make(map[int64][crypto.BlockSize]byte)}
}

// Set records the tag for the chunk starting at offset. A re-prepared
// chunk overwrites its own prior entry.
func (l *MacLedger) Set(offset int64, mac [crypto.BlockSize]byte) {
	l.mu.Lock()
	l.macs[offset] = mac
	l.mu.Unlock()
}

func (l *MacLedger) Get(offset int64) ([crypto.BlockSize]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	mac, ok := l.macs[offset]

	return mac, ok
}

func (l *MacLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.macs)
}

// Condense folds the per-chunk tags, in offset order, into a single
// whole-file tag: XOR each chunk tag into the accumulator, then one
// cipher round. Used to verify a completed transfer against the
// expected file tag.
func (l *MacLedger) Condense(c *crypto.AES) [crypto.BlockSize]byte {
	l.mu.Lock()
	defer l.mu.Unlock()

	offsets := make([]int64, 0, len(l.macs))
	for off := range l.macs {
		offsets = append(offsets, off)
	}

	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	var acc [crypto.BlockSize]byte

	for _, off := range offsets {
		mac := l.macs[off]
		for i := range acc {
			acc[i] ^= mac[i]
		}

		c.EncryptBlock(&acc)
	}

	return acc
}

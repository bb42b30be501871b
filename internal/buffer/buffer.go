// Package buffer provides the byte stores backing in-flight transfer
// request bodies. Two variants exist behind one interface: a growable
// store for protocol traffic and a pre-sized fixed store for binary
// file chunks. The variant is chosen at construction so call sites
// never branch on the mode.
package buffer

// Buffer is the store behind one request body. It is exclusively owned
// by that request; none of its operations fail: invalid input is
// clamped or ignored.
type Buffer interface {
	// Put copies p at the write cursor and advances it. A fixed store
	// silently truncates at capacity. When allowPurge is set, a
	// growable store first compacts out the purged prefix so the
	// space can be reused.
	Put(p []byte, allowPurge bool)

	// ReservePut returns a writable window at the current write
	// position. The window may be shorter than n (fixed store running
	// out of capacity) or longer (growable store with spare room);
	// callers re-issue for any remainder. Bytes written into the
	// window become visible only after Commit.
	ReservePut(n int) []byte

	// Commit advances the write cursor over n bytes previously
	// written into a reserved window.
	Commit(n int)

	// Purge marks the first n unconsumed bytes as consumed. Physical
	// compaction is deferred to the next Put/ReservePut that needs
	// the space.
	Purge(n int)

	// Data returns the unconsumed region between the purge offset and
	// the write cursor. The slice aliases the store; in-place
	// mutation is allowed.
	Data() []byte

	// Truncate drops unconsumed bytes beyond n, moving the write
	// cursor back.
	Truncate(n int)

	// SetContentLength declares the expected total size so a growable
	// store can reserve capacity up front. Fixed stores ignore it.
	SetContentLength(n int64)

	// Transferred reports the bytes ingested: the write cursor for a
	// fixed store, the occupied store size for a growable one (not
	// reduced by a pending purge).
	Transferred() int64

	// Capacity reports the logical capacity of a fixed store and the
	// allocated capacity of a growable one.
	Capacity() int

	// Reset moves the write cursor and purge offset back to zero so
	// the buffer can back a retried request without reallocating.
	Reset()
}

// Growable is the variable-size variant used for protocol and metadata
// traffic. The purged prefix is reclaimed lazily: Purge only advances
// an offset, and the next Put/ReservePut shifts the live region down
// in a single copy. This avoids repeated O(n) shifts while a consumer
// drains data incrementally.
type Growable struct {
	store  []byte
	pos    int // write cursor
	purged int // consumed prefix, not yet compacted
}

// NewGrowable returns an empty growable buffer.
func NewGrowable() *Growable {
	return &Growable{}
}

func (g *Growable) compact() {
	if g.purged == 0 {
		return
	}

	g.store = append(g.store[:0], g.store[g.purged:g.pos]...)
	g.pos -= g.purged
	g.purged = 0
}

func (g *Growable) Put(p []byte, allowPurge bool) {
	if allowPurge {
		g.compact()
	}

	g.store = append(g.store[:g.pos], p...)
	g.pos = len(g.store)
}

func (g *Growable) ReservePut(n int) []byte {
	g.compact()

	if g.pos+n > len(g.store) {
		g.store = append(g.store, make([]byte, g.pos+n-len(g.store))...)
	}

	return g.store[g.pos:]
}

func (g *Growable) Commit(n int) {
	g.pos += n
	if g.pos > len(g.store) {
		g.pos = len(g.store)
	}
}

func (g *Growable) Purge(n int) {
	g.purged += n
	if g.purged > g.pos {
		// purging beyond the write cursor is a caller defect; clamp
		// rather than corrupt state
		g.purged = g.pos
	}
}

func (g *Growable) Data() []byte {
	return g.store[g.purged:g.pos]
}

func (g *Growable) Truncate(n int) {
	if end := g.purged + n; end < g.pos {
		g.pos = end
		g.store = g.store[:end]
	}
}

func (g *Growable) SetContentLength(n int64) {
	if n > 0 && int64(cap(g.store)) < n {
		grown := make([]byte, len(g.store), n)
		copy(grown, g.store)
		g.store = grown
	}
}

func (g *Growable) Transferred() int64 {
	return int64(len(g.store))
}

func (g *Growable) Capacity() int {
	return cap(g.store)
}

func (g *Growable) Reset() {
	g.store = g.store[:0]
	g.pos = 0
	g.purged = 0
}

// Fixed is the pre-sized variant backing one bounded binary chunk.
// The backing store may be allocated larger than the logical capacity
// (cipher block padding); writes clamp at the logical capacity and
// never error. Fixed buffers are never purged.
type Fixed struct {
	store []byte
	limit int // logical capacity; limit <= len(store)
	pos   int
}

// NewFixed returns a fixed buffer of the given logical size backed by
// a store of padded bytes. padded must be >= size.
func NewFixed(size, padded int) *Fixed {
	return &Fixed{
		store: make([]byte, padded),
		limit: size,
	}
}

func (f *Fixed) Put(p []byte, _ bool) {
	n := len(p)
	if f.pos+n > f.limit {
		n = f.limit - f.pos
	}

	copy(f.store[f.pos:], p[:n])
	f.pos += n
}

func (f *Fixed) ReservePut(n int) []byte {
	if f.pos+n > f.limit {
		n = f.limit - f.pos
	}

	return f.store[f.pos : f.pos+n]
}

func (f *Fixed) Commit(n int) {
	f.pos += n
	if f.pos > f.limit {
		f.pos = f.limit
	}
}

// Purge is a no-op: a fixed buffer represents one bounded chunk and is
// consumed as a whole.
func (f *Fixed) Purge(int) {}

func (f *Fixed) Data() []byte {
	return f.store[:f.pos]
}

func (f *Fixed) Truncate(n int) {
	if n < f.pos {
		f.pos = n
	}
}

// SetContentLength is a no-op: the store is already sized.
func (f *Fixed) SetContentLength(int64) {}

func (f *Fixed) Transferred() int64 {
	return int64(f.pos)
}

func (f *Fixed) Capacity() int {
	return f.limit
}

func (f *Fixed) Reset() {
	f.pos = 0
}

// Package request models one in-flight transfer request: the unit
// submitted to the transport, owning the byte buffer its body is
// staged in or received into.
package request

import (
	"context"
	"sync"

	"github.com/chunkwire/chunkwire/internal/buffer"
	"github.com/chunkwire/chunkwire/internal/logctx"
)

// Status is the request lifecycle state.
type Status int

const (
	StatusReady Status = iota
	StatusInflight
	StatusSuccess
	StatusFailure
)

// Handle is the transport's opaque per-request token. The transport
// sets it when a request starts and the request hands it back for
// progress queries.
type Handle any

// Transport is the collaborator that actually moves bytes. Post starts
// the request asynchronously and the transport reports the outcome via
// Finish. Cancel must be safe to call multiple times and on requests
// that never started.
type Transport interface {
	Post(ctx context.Context, r *Request, body []byte) error
	Cancel(r *Request)
	SendChunked(r *Request) error
	PostPos(h Handle) int64
}

// Request is a single HTTP sub-request. Exactly one logical owner
// drives it through its lifecycle; the only concurrent access is the
// transport filling the inbound buffer and finishing the request,
// which the owner observes through Wait.
type Request struct {
	url     string
	binary  bool
	chunked bool

	in  buffer.Buffer
	out *buffer.Growable

	contentLength int64

	transport Transport
	handle    Handle

	mu         sync.Mutex
	status     Status
	httpStatus int
	err        error
	done       chan struct{}
	finished   bool
}

// New creates a ready request. Binary requests receive their fixed
// inbound buffer at chunk-prepare time; protocol requests get a
// growable one immediately.
func New(binary bool) *Request {
	r := &Request{
		binary: binary,
		out:    buffer.NewGrowable(),
		status: StatusReady,
	}

	if !binary {
		r.in = buffer.NewGrowable()
	}

	return r
}

func (r *Request) URL() string     { return r.url }
func (r *Request) Chunked() bool   { return r.chunked }
func (r *Request) SetURL(u string) { r.url = u }
func (r *Request) Binary() bool    { return r.binary }

// In returns the inbound buffer, nil for a binary request that has not
// been prepared yet.
func (r *Request) In() buffer.Buffer { return r.in }

// SetIn installs the inbound buffer. Used by the chunk codec to bind a
// pre-sized store to the request.
func (r *Request) SetIn(b buffer.Buffer) { r.in = b }

// Out returns the outbound staging buffer.
func (r *Request) Out() *buffer.Growable { return r.out }

// Post submits the request to t. A request still associated with a
// live transport is cancelled first, so re-sending cannot leak the
// previous attempt. The inbound cursor and purge offset are reset and
// the content length marked unknown before the transport takes over.
func (r *Request) Post(ctx context.Context, t Transport, body []byte) error {
	if r.transport != nil {
		logctx.LoggerFromContext(ctx).Warn("ensuring the request is finished before sending it again", "url", r.url)
		r.transport.Cancel(r)
	}

	r.transport = t
	r.contentLength = -1

	if r.in != nil {
		r.in.Reset()
	}

	r.mu.Lock()
	r.status = StatusInflight
	r.httpStatus = 0
	r.err = nil
	r.done = make(chan struct{})
	r.finished = false
	r.mu.Unlock()

	if err := t.Post(ctx, r, body); err != nil {
		r.Finish(StatusFailure, 0, err)

		return err
	}

	return nil
}

// PostChunked starts a chunked upload on first call and flushes the
// outbound buffer to the live transport on subsequent calls.
func (r *Request) PostChunked(ctx context.Context, t Transport) error {
	if !r.chunked {
		r.chunked = true

		return r.Post(ctx, t, nil)
	}

	if r.transport != nil {
		return r.transport.SendChunked(r)
	}

	return nil
}

// Disconnect cancels the request if it is live and resets the inbound
// buffer so the request object can be reused for a retry without
// reallocating. Safe to call repeatedly and on requests that never
// started.
func (r *Request) Disconnect() {
	if r.transport != nil {
		r.transport.Cancel(r)
		r.transport = nil
	}

	r.chunked = false
	r.setHandleLocked(nil)

	if r.in != nil {
		r.in.Reset()
	}
}

// Wait blocks until the transport finishes the request or ctx is
// cancelled. Returns the transport error, if any. Waiting on a request
// that was never posted returns immediately.
func (r *Request) Wait(ctx context.Context) error {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return r.Err()
	}
}

// Finish records the outcome. Called by the transport exactly once per
// attempt; later calls for the same attempt are ignored.
func (r *Request) Finish(status Status, httpStatus int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return
	}

	r.status = status
	r.httpStatus = httpStatus
	r.err = err
	r.finished = true

	if r.done != nil {
		close(r.done)
	}
}

func (r *Request) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.status
}

func (r *Request) HTTPStatus() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.httpStatus
}

func (r *Request) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.err
}

// SetHandle is called by the transport when the request starts.
func (r *Request) SetHandle(h Handle) { r.setHandleLocked(h) }

func (r *Request) setHandleLocked(h Handle) {
	r.mu.Lock()
	r.handle = h
	r.mu.Unlock()
}

// Handle returns the transport token, nil when no attempt is live.
func (r *Request) Handle() Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.handle
}

// Sent reports the bytes the transport has pushed out for this
// request so far.
func (r *Request) Sent() int64 {
	h := r.Handle()
	if r.transport == nil || h == nil {
		return 0
	}

	return r.transport.PostPos(h)
}

// Put appends received bytes to the inbound buffer.
func (r *Request) Put(p []byte, allowPurge bool) {
	if r.in != nil {
		r.in.Put(p, allowPurge)
	}
}

// ReservePut exposes a writable window of the inbound buffer to the
// transport; Commit advances over what was actually written.
func (r *Request) ReservePut(n int) []byte {
	if r.in == nil {
		return nil
	}

	return r.in.ReservePut(n)
}

func (r *Request) Commit(n int) {
	if r.in != nil {
		r.in.Commit(n)
	}
}

// Purge marks the first n inbound bytes as consumed.
func (r *Request) Purge(n int) {
	if r.in != nil {
		r.in.Purge(n)
	}
}

// Data returns the unconsumed inbound bytes.
func (r *Request) Data() []byte {
	if r.in == nil {
		return nil
	}

	return r.in.Data()
}

// SetContentLength records the declared response size and lets a
// growable inbound buffer reserve storage in one step.
func (r *Request) SetContentLength(n int64) {
	if r.in != nil && !r.binary {
		r.in.SetContentLength(n)
	}

	r.contentLength = n
}

func (r *Request) ContentLength() int64 { return r.contentLength }

// Transferred reports the bytes received in this request.
func (r *Request) Transferred() int64 {
	if r.in == nil {
		return 0
	}

	return r.in.Transferred()
}

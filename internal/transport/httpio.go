// Package transport moves request bodies over HTTP. It implements the
// request.Transport contract: requests are posted asynchronously,
// response bytes are streamed into the request's buffer through its
// reserve/commit protocol, and cancellation tears down the underlying
// connection.
package transport

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"context"

	"github.com/chunkwire/chunkwire/internal/logctx"
	"github.com/chunkwire/chunkwire/internal/request"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

// readWindow is how many bytes we ask the buffer to reserve per read.
const readWindow = 16 * 1024

// HTTPIO posts transfer requests over net/http.
type HTTPIO struct {
	client *http.Client
	token  string

	mu     sync.Mutex
	active map[*request.Request]*handle
}

// handle is the per-attempt transport token.
type handle struct {
	cancel context.CancelFunc
	sent   atomic.Int64
	pw     *io.PipeWriter // chunked uploads only
}

type Option func(*HTTPIO)

// WithClient substitutes the HTTP client, mainly for tests.
func WithClient(c *http.Client) Option {
	return func(h *HTTPIO) { h.client = c }
}

// WithToken attaches a static bearer token to every request.
func WithToken(token string) Option {
	return func(h *HTTPIO) { h.token = token }
}

// New creates an HTTPIO. The default client instruments outgoing
// requests with otelhttp; a token, if configured, rides on an oauth2
// transport around that.
func New(opts ...Option) *HTTPIO {
	h := &HTTPIO{active: make(map[*request.Request]*handle)}

	for _, opt := range opts {
		opt(h)
	}

	if h.client == nil {
		var rt http.RoundTripper = otelhttp.NewTransport(http.DefaultTransport)

		if h.token != "" {
			rt = &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: h.token}),
				Base:   rt,
			}
		}

		h.client = &http.Client{Transport: rt}
	}

	return h
}

// Post starts the request. The outcome is reported through the
// request's Finish/Wait pair, never through the return value; an error
// here means the request could not even be started.
func (h *HTTPIO) Post(ctx context.Context, r *request.Request, body []byte) error {
	reqCtx, cancel := context.WithCancel(ctx)
	hd := &handle{cancel: cancel}

	var reqBody io.Reader

	bodyLen := int64(len(body))

	switch {
	case r.Chunked():
		pr, pw := io.Pipe()
		hd.pw = pw
		reqBody = pr
		bodyLen = -1
	case body != nil:
		reqBody = &countingReader{r: bytes.NewReader(body), sent: &hd.sent}
	}

	h.mu.Lock()
	h.active[r] = hd
	h.mu.Unlock()

	r.SetHandle(hd)

	go h.do(reqCtx, r, hd, reqBody, bodyLen)

	return nil
}

func (h *HTTPIO) do(ctx context.Context, r *request.Request, hd *handle, body io.Reader, bodyLen int64) {
	logger := logctx.LoggerFromContext(ctx)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL(), body)
	if err != nil {
		h.finish(r, hd, request.StatusFailure, 0, &request.NetworkError{Operation: "post", URL: r.URL(), Err: err})

		return
	}

	if bodyLen >= 0 {
		httpReq.ContentLength = bodyLen
	}

	if r.Binary() {
		httpReq.Header.Set("Content-Type", "application/octet-stream")
	} else {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		h.finish(r, hd, request.StatusFailure, 0, &request.NetworkError{Operation: "post", URL: r.URL(), Err: err})

		return
	}
	defer resp.Body.Close()

	r.SetContentLength(resp.ContentLength)

	for {
		if !h.owns(r, hd) {
			return
		}

		window := r.ReservePut(readWindow)
		if len(window) == 0 {
			// Buffer at capacity: drain whatever the server still
			// sends so the connection can be reused.
			if _, err := io.Copy(io.Discard, resp.Body); err != nil {
				logger.Debug("discarding response remainder failed", "url", r.URL(), "err", err)
			}

			break
		}

		n, rerr := resp.Body.Read(window)
		if n > 0 {
			// A cancel may have landed while the read was blocked.
			// The buffer now belongs to the next attempt; committing
			// would corrupt it.
			if !h.owns(r, hd) {
				return
			}

			r.Commit(n)
		}

		if rerr == io.EOF {
			break
		}

		if rerr != nil {
			h.finish(r, hd, request.StatusFailure, resp.StatusCode,
				&request.NetworkError{Operation: "read_body", URL: r.URL(), StatusCode: resp.StatusCode, Err: rerr})

			return
		}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		h.finish(r, hd, request.StatusFailure, resp.StatusCode,
			&request.NetworkError{Operation: "post", URL: r.URL(), StatusCode: resp.StatusCode})

		return
	}

	h.finish(r, hd, request.StatusSuccess, resp.StatusCode, nil)
}

// owns reports whether hd is still the live attempt for r. The read
// loop checks this before touching the buffer so a cancelled attempt
// never writes into a reused one.
func (h *HTTPIO) owns(r *request.Request, hd *handle) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.active[r] == hd
}

// finish reports the outcome unless a newer attempt has replaced this
// handle (the request was cancelled and re-posted while we were still
// unwinding).
func (h *HTTPIO) finish(r *request.Request, hd *handle, status request.Status, httpStatus int, err error) {
	h.mu.Lock()
	if h.active[r] == hd {
		delete(h.active, r)
	}
	h.mu.Unlock()

	if r.Handle() != request.Handle(hd) {
		return
	}

	r.Finish(status, httpStatus, err)
}

// Cancel aborts the in-flight attempt, if any. Safe to call multiple
// times and for requests that never started.
func (h *HTTPIO) Cancel(r *request.Request) {
	h.mu.Lock()
	hd, ok := h.active[r]
	if ok {
		delete(h.active, r)
	}
	h.mu.Unlock()

	if !ok {
		return
	}

	// Detach before cancelling so the unwinding goroutine cannot
	// report a stale outcome onto a reused request.
	r.SetHandle(nil)

	if hd.pw != nil {
		hd.pw.CloseWithError(context.Canceled)
	}

	hd.cancel()
}

// SendChunked pushes the unconsumed outbound bytes of a chunked
// request into the live body stream and purges them from the buffer.
// An empty outbound buffer terminates the body.
func (h *HTTPIO) SendChunked(r *request.Request) error {
	h.mu.Lock()
	hd, ok := h.active[r]
	h.mu.Unlock()

	if !ok || hd.pw == nil {
		return fmt.Errorf("transport: no chunked request in flight for %s", r.URL())
	}

	data := r.Out().Data()
	if len(data) == 0 {
		return hd.pw.Close()
	}

	n, err := hd.pw.Write(data)
	hd.sent.Add(int64(n))
	r.Out().Purge(n)

	if err != nil {
		return &request.NetworkError{Operation: "send_chunked", URL: r.URL(), Err: err}
	}

	return nil
}

// PostPos reports the bytes sent so far for the given handle.
func (h *HTTPIO) PostPos(hd request.Handle) int64 {
	if t, ok := hd.(*handle); ok {
		return t.sent.Load()
	}

	return 0
}

type countingReader struct {
	r    io.Reader
	sent *atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.sent.Add(int64(n))

	return n, err
}

package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// asyncConnectCap bounds the async path's dial timeout regardless of the
// configured request timeout.
const asyncConnectCap = 10 * time.Second

// TimeoutError marks a request that hit its deadline; the message names
// the dispatch mode and the configured timeout for report compatibility.
type TimeoutError struct {
	Async   bool
	Seconds int
}

func (e *TimeoutError) Error() string {
	if e.Async {
		return fmt.Sprintf("異步請求超時 (%ds)", e.Seconds)
	}
	return fmt.Sprintf("同步請求超時 (%ds)", e.Seconds)
}

// Response is one completed exchange.
type Response struct {
	Status  int
	Headers map[string]string
	Body    string
}

// Options selects how one request is dispatched.
type Options struct {
	APIID          int64
	UseSession     bool
	UseAsync       bool
	TimeoutSeconds int
	TLS            *tls.Config
}

// Dispatcher executes prepared requests synchronously or through the
// pool-backed async path.
type Dispatcher struct {
	sessions *SessionStore
	base     *http.Transport
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher sharing one ad-hoc transport.
func NewDispatcher(sessions *SessionStore, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		sessions: sessions,
		base:     newTransport(nil),
		logger:   logger,
	}
}

// Do builds and dispatches one request. Timeouts surface as *TimeoutError;
// every other transport failure is returned as-is for the caller to record.
func (d *Dispatcher) Do(ctx context.Context, spec RequestSpec, opts Options) (*Response, error) {
	preq, err := Prepare(spec)
	if err != nil {
		return nil, err
	}
	if opts.UseAsync {
		return d.doAsync(ctx, preq, opts)
	}
	return d.doSync(ctx, preq, opts)
}

func (d *Dispatcher) doSync(ctx context.Context, preq *PreparedRequest, opts Options) (*Response, error) {
	var client *http.Client
	switch {
	case opts.UseSession && d.sessions != nil:
		client = d.sessions.Get(opts.APIID, opts.TLS)
	case opts.TLS != nil:
		client = &http.Client{Transport: newTransport(opts.TLS)}
	default:
		client = &http.Client{Transport: d.base}
	}

	ctx, cancel := d.deadline(ctx, opts)
	defer cancel()

	resp, err := send(ctx, client, preq)
	if err != nil {
		if isTimeout(err) {
			return nil, &TimeoutError{Seconds: opts.TimeoutSeconds}
		}
		return nil, err
	}
	return resp, nil
}

// doAsync mirrors the sync path with a fresh connection pool per call, a
// dial timeout capped at 10s, and execution on its own goroutine.
func (d *Dispatcher) doAsync(ctx context.Context, preq *PreparedRequest, opts Options) (*Response, error) {
	timeout := time.Duration(opts.TimeoutSeconds) * time.Second
	connect := timeout
	if connect <= 0 || connect > asyncConnectCap {
		connect = asyncConnectCap
	}
	transport := newTransport(opts.TLS)
	transport.DialContext = (&net.Dialer{Timeout: connect}).DialContext
	defer transport.CloseIdleConnections()
	client := &http.Client{Transport: transport}

	ctx, cancel := d.deadline(ctx, opts)
	defer cancel()

	type outcome struct {
		resp *Response
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		resp, err := send(ctx, client, preq)
		done <- outcome{resp, err}
	}()

	out := <-done
	if out.err != nil {
		if isTimeout(out.err) {
			return nil, &TimeoutError{Async: true, Seconds: opts.TimeoutSeconds}
		}
		return nil, out.err
	}
	return out.resp, nil
}

func (d *Dispatcher) deadline(ctx context.Context, opts Options) (context.Context, context.CancelFunc) {
	if opts.TimeoutSeconds <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(opts.TimeoutSeconds)*time.Second)
}

func send(ctx context.Context, client *http.Client, preq *PreparedRequest) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, preq.Method, preq.URL, bytesReader(preq.Body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, values := range preq.Header {
		for _, v := range values {
			req.Header.Set(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	body, readErr := io.ReadAll(resp.Body)
	if closeErr := resp.Body.Close(); closeErr != nil && readErr == nil {
		readErr = closeErr
	}
	if readErr != nil {
		return nil, fmt.Errorf("read response body: %w", readErr)
	}

	return &Response{
		Status:  resp.StatusCode,
		Headers: flattenHeaders(resp.Header),
		Body:    string(body),
	}, nil
}

// bytesReader returns an io.Reader for b, or nil if b is empty.
func bytesReader(b []byte) io.Reader {
	if len(b) == 0 {
		return nil
	}
	return bytes.NewReader(b)
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, values := range h {
		out[k] = strings.Join(values, ", ")
	}
	return out
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

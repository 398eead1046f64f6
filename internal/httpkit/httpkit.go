// Package httpkit builds the HTTP clients used for every outbound call:
// the model runtime, ElevenLabs, Twilio and read-source fetching. All of
// them share one transport with explicit dial and TLS timeouts and a
// LocalAgent User-Agent.
package httpkit

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/nugget/localagent/internal/buildinfo"
)

// Transport limits.
const (
	DialTimeout         = 10 * time.Second
	TLSHandshakeTimeout = 10 * time.Second
	IdleConnTimeout     = 90 * time.Second
	MaxIdleConnsPerHost = 5
)

// DefaultTimeout applies when no [WithTimeout] option is given.
const DefaultTimeout = 30 * time.Second

var (
	sharedOnce      sync.Once
	sharedTransport *http.Transport
)

// Transport returns the process-wide transport.
func Transport() *http.Transport {
	sharedOnce.Do(func() {
		sharedTransport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: TLSHandshakeTimeout,
			IdleConnTimeout:     IdleConnTimeout,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: MaxIdleConnsPerHost,
			ForceAttemptHTTP2:   true,
		}
	})
	return sharedTransport
}

// Option configures a client built by [NewClient].
type Option func(*options)

type options struct {
	timeout    time.Duration
	userAgent  string
	retries    int
	retryDelay time.Duration
	logger     *slog.Logger
	base       http.RoundTripper
}

// WithTimeout sets the overall request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithUserAgent overrides the LocalAgent User-Agent.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// WithRetry retries requests that failed to connect (refused, host or
// network unreachable). Those failures happen before the server sees
// anything, so retrying a POST is safe as long as its body can be
// rewound.
func WithRetry(count int, delay time.Duration) Option {
	return func(o *options) {
		o.retries = count
		o.retryDelay = delay
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithBase replaces the shared transport, mostly for tests.
func WithBase(rt http.RoundTripper) Option {
	return func(o *options) { o.base = rt }
}

// NewClient returns an *http.Client on the shared transport.
func NewClient(opts ...Option) *http.Client {
	o := options{
		timeout:   DefaultTimeout,
		userAgent: buildinfo.UserAgent(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	var rt http.RoundTripper = Transport()
	if o.base != nil {
		rt = o.base
	}
	rt = &userAgent{base: rt, ua: o.userAgent}
	if o.retries > 0 {
		logger := o.logger
		if logger == nil {
			logger = slog.Default()
		}
		rt = &retrying{base: rt, count: o.retries, delay: o.retryDelay, logger: logger}
	}

	return &http.Client{Timeout: o.timeout, Transport: rt}
}

type userAgent struct {
	base http.RoundTripper
	ua   string
}

func (t *userAgent) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" && t.ua != "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.ua)
	}
	return t.base.RoundTrip(req)
}

type retrying struct {
	base   http.RoundTripper
	count  int
	delay  time.Duration
	logger *slog.Logger
}

func (t *retrying) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err == nil || !IsConnectError(err) {
		return resp, err
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return resp, err
	}

	for attempt := 1; attempt <= t.count; attempt++ {
		t.logger.Debug("retrying request after connect error",
			"method", req.Method,
			"host", req.URL.Host,
			"attempt", attempt,
			"error", err,
		)

		timer := time.NewTimer(t.delay)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}

		retry := req.Clone(req.Context())
		if req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, fmt.Errorf("retry: rewind body: %w", bodyErr)
			}
			retry.Body = body
		}

		resp, err = t.base.RoundTrip(retry)
		if err == nil || !IsConnectError(err) {
			return resp, err
		}
	}
	return resp, err
}

// IsConnectError reports whether err is a dial failure that never
// reached the server. Connection resets are excluded: the server may
// already have acted on the request.
func IsConnectError(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}
	switch errno {
	case syscall.ECONNREFUSED, syscall.EHOSTUNREACH, syscall.ENETUNREACH:
		return true
	}
	return false
}

// ReadErrorBody reads up to limit bytes of an error response for
// messages, then drains and closes the rest so the connection can be
// reused.
func ReadErrorBody(rc io.ReadCloser, limit int64) string {
	if rc == nil {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(rc, limit))
	DrainAndClose(rc, 4096)
	if err != nil {
		return fmt.Sprintf("(failed to read error body: %v)", err)
	}
	return string(body)
}

// DrainAndClose discards up to limit bytes and closes rc.
func DrainAndClose(rc io.ReadCloser, limit int64) {
	if rc == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, limit))
	rc.Close()
}

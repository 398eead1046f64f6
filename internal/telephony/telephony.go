// Package telephony places and tracks outbound voice calls through the
// Twilio REST API.
package telephony

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	api "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/nugget/localagent/internal/config"
	"github.com/nugget/localagent/internal/httpkit"
)

// ErrDisabled is returned when Twilio credentials are not configured.
var ErrDisabled = errors.New("telephony is not configured")

// ErrCallNotFound is returned for a call SID Twilio does not know.
var ErrCallNotFound = errors.New("call not found")

// statusEvents are the progress events Twilio posts to the status
// callback.
var statusEvents = []string{"initiated", "ringing", "answered", "completed"}

// terminal call states; calls in these states leave the active set.
var terminal = map[string]bool{
	"completed": true,
	"failed":    true,
	"busy":      true,
	"no-answer": true,
	"canceled":  true,
}

// Call is the state of one outbound call.
type Call struct {
	SID       string    `json:"call_sid"`
	Status    string    `json:"status"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Price     string    `json:"price,omitempty"`
	Duration  string    `json:"duration,omitempty"`
	StartTime string    `json:"start_time,omitempty"`
	EndTime   string    `json:"end_time,omitempty"`
	Language  string    `json:"language,omitempty"`
	Text      string    `json:"-"`
	Started   time.Time `json:"-"`
}

func fromTwilio(tc *api.ApiV2010Call) *Call {
	return &Call{
		SID:       deref(tc.Sid),
		Status:    deref(tc.Status),
		From:      deref(tc.From),
		To:        deref(tc.To),
		Price:     deref(tc.Price),
		Duration:  deref(tc.Duration),
		StartTime: deref(tc.StartTime),
		EndTime:   deref(tc.EndTime),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Client places calls and tracks the ones in flight.
type Client struct {
	cfg    config.TelephonyConfig
	rest   *twilio.RestClient
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]*Call
}

// NewClient creates a client from cfg. A non-empty cfg.BaseURL
// redirects every Twilio API request to that host.
func NewClient(cfg config.TelephonyConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	opts := []httpkit.Option{httpkit.WithTimeout(30 * time.Second), httpkit.WithLogger(logger)}
	if base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/")); err == nil && base.Host != "" {
		opts = append(opts, httpkit.WithBase(&rebase{target: base, base: httpkit.Transport()}))
	}
	hc := &twclient.Client{
		Credentials: twclient.NewCredentials(cfg.AccountSID, cfg.AuthToken),
		HTTPClient:  httpkit.NewClient(opts...),
	}
	hc.SetAccountSid(cfg.AccountSID)

	return &Client{
		cfg:    cfg,
		rest:   twilio.NewRestClientWithParams(twilio.ClientParams{Client: hc}),
		logger: logger,
		active: make(map[string]*Call),
	}
}

// rebase sends requests to target's scheme and host, keeping the path.
type rebase struct {
	target *url.URL
	base   http.RoundTripper
}

func (t *rebase) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = t.target.Scheme
	out.URL.Host = t.target.Host
	out.URL.Path = strings.TrimRight(t.target.Path, "/") + req.URL.Path
	out.Host = t.target.Host
	return t.base.RoundTrip(out)
}

// Enabled reports whether calls can be placed.
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.Configured()
}

func (c *Client) webhook(path string) string {
	if c.cfg.WebhookURL == "" {
		return ""
	}
	return strings.TrimRight(c.cfg.WebhookURL, "/") + path
}

// InitiateCall dials to. text is what the callee hears once the call
// connects; empty text plays [DefaultGreeting]. The call is recorded.
func (c *Client) InitiateCall(ctx context.Context, to, language, text string) (*Call, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return nil, fmt.Errorf("destination number is required")
	}

	// The SDK takes no context; honour cancellation before dialing.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	params := &api.CreateCallParams{}
	params.SetPathAccountSid(c.cfg.AccountSID)
	params.SetFrom(c.cfg.FromNumber)
	params.SetTo(to)
	params.SetRecord(true)
	if u := c.webhook("/v1/twilio/twiml"); u != "" {
		params.SetUrl(u)
	} else {
		// Without a webhook Twilio needs the instructions inline.
		params.SetTwiml(TwiML(orGreeting(text), language, false))
	}
	if u := c.webhook("/v1/twilio/status"); u != "" {
		params.SetStatusCallback(u)
		params.SetStatusCallbackEvent(statusEvents)
	}

	tc, err := c.rest.Api.CreateCall(params)
	if err := callError(err); err != nil {
		return nil, fmt.Errorf("initiate call: %w", err)
	}

	call := fromTwilio(tc)
	call.Language = language
	call.Text = text
	call.Started = time.Now()

	c.mu.Lock()
	c.active[call.SID] = call
	c.mu.Unlock()

	c.logger.Info("call initiated", "call_sid", call.SID, "to", to, "status", call.Status)
	cp := *call
	return &cp, nil
}

// EndCall hangs up an in-progress call.
func (c *Client) EndCall(ctx context.Context, sid string) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &api.UpdateCallParams{}
	params.SetPathAccountSid(c.cfg.AccountSID)
	params.SetStatus("completed")
	_, err := c.rest.Api.UpdateCall(sid, params)
	if err := callError(err); err != nil {
		return fmt.Errorf("end call: %w", err)
	}
	c.UpdateStatus(sid, "completed")
	c.logger.Info("call ended", "call_sid", sid)
	return nil
}

// CallStatus fetches the current state of a call from Twilio.
func (c *Client) CallStatus(ctx context.Context, sid string) (*Call, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	params := &api.FetchCallParams{}
	params.SetPathAccountSid(c.cfg.AccountSID)
	tc, err := c.rest.Api.FetchCall(sid, params)
	if err := callError(err); err != nil {
		return nil, err
	}
	call := fromTwilio(tc)
	c.mu.Lock()
	if a, ok := c.active[sid]; ok {
		call.Language = a.Language
	}
	c.mu.Unlock()
	return call, nil
}

// UpdateStatus records a status reported by Twilio's callback. Calls
// reaching a terminal state stop being tracked.
func (c *Client) UpdateStatus(sid, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.active[sid]
	if !ok {
		return
	}
	if terminal[status] {
		delete(c.active, sid)
		return
	}
	call.Status = status
}

// ActiveCalls returns a snapshot of calls that have not finished.
func (c *Client) ActiveCalls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, 0, len(c.active))
	for _, call := range c.active {
		out = append(out, *call)
	}
	return out
}

// Script returns the TwiML for a connected call. Unknown SIDs get the
// default greeting.
func (c *Client) Script(sid string) string {
	text, language := DefaultGreeting, "en"
	c.mu.Lock()
	if call, ok := c.active[sid]; ok {
		text = orGreeting(call.Text)
		if call.Language != "" {
			language = call.Language
		}
	}
	c.mu.Unlock()
	return TwiML(text, language, false)
}

func orGreeting(text string) string {
	if strings.TrimSpace(text) == "" {
		return DefaultGreeting
	}
	return text
}

// callError maps a Twilio SDK error onto the package errors.
func callError(err error) error {
	if err == nil {
		return nil
	}
	var restErr *twclient.TwilioRestError
	if errors.As(err, &restErr) {
		if restErr.Status == http.StatusNotFound {
			return ErrCallNotFound
		}
		return fmt.Errorf("twilio returned %d: %s", restErr.Status, restErr.Message)
	}
	return fmt.Errorf("request failed: %w", err)
}

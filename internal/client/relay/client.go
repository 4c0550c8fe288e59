// Package relay sends SOS notifications through a third-party email relay.
//
// The relay accepts a JSON form post and forwards it by email; any 2xx status
// means the message was accepted. The client applies a per-call timeout and
// never retries.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"

	domain "github.com/oshokin/drowsiness-alarm/internal/domain/drowsiness"
)

// DefaultCallTimeout bounds a single delivery when no option overrides it.
const DefaultCallTimeout = 15 * time.Second

// maxErrorBody limits the response body kept in StatusError.
const maxErrorBody = 512

// Client posts SOS messages to the relay endpoint.
type Client struct {
	// http is the underlying resty client.
	http *resty.Client
	// endpoint is the relay form URL.
	endpoint string
	// callTimeout is the timeout for a single delivery.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets the timeout for a single delivery.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithHTTPClient uses a copy of hc as the transport client.
// The copy gets the call timeout; hc itself is left untouched.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			clone := *hc
			c.http = resty.NewWithClient(&clone)
		}
	}
}

// StatusError is returned when the relay answers with a non-2xx status.
type StatusError struct {
	// Code is the HTTP status code.
	Code int
	// Body is the beginning of the response body.
	Body string
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("relay responded with status %d: %s", e.Code, e.Body)
}

var (
	// errEndpointRequired is returned when the endpoint is empty.
	errEndpointRequired = errors.New("relay endpoint must be provided")
	// errMessageRequired is returned when a nil message is sent.
	errMessageRequired = errors.New("message must be provided")
)

// payload is the form body understood by the relay.
type payload struct {
	ReplyTo          string `json:"_replyto"`
	Email            string `json:"email"`
	Subject          string `json:"_subject"`
	Message          string `json:"message"`
	DrowsinessEvents string `json:"drowsiness_events"`
	EyesClosedCount  string `json:"eyes_closed_count"`
	TotalFrames      string `json:"total_frames"`
}

// New creates a client for the relay endpoint.
func New(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, errEndpointRequired
	}

	client := &Client{
		http:        resty.New(),
		endpoint:    endpoint,
		callTimeout: DefaultCallTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	client.http.
		SetTimeout(client.callTimeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")

	return client, nil
}

// Send posts the message and returns nil only for a 2xx answer.
func (c *Client) Send(ctx context.Context, msg *domain.SOSMessage) error {
	if msg == nil {
		return errMessageRequired
	}

	body, err := json.Marshal(newPayload(msg))
	if err != nil {
		return fmt.Errorf("encode sos message: %w", err)
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.http.R().
		SetContext(callCtx).
		SetBody(body).
		Post(c.endpoint)
	if err != nil {
		return fmt.Errorf("post sos message: %w", err)
	}

	if !resp.IsSuccess() {
		text := resp.String()
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}

		return &StatusError{
			Code: resp.StatusCode(),
			Body: text,
		}
	}

	return nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}

// newPayload maps the domain message to the relay form fields.
func newPayload(msg *domain.SOSMessage) *payload {
	return &payload{
		ReplyTo:          msg.Recipient,
		Email:            msg.Recipient,
		Subject:          msg.Subject(),
		Message:          msg.Body(),
		DrowsinessEvents: strconv.FormatUint(msg.Stats.DrowsinessEvents, 10),
		EyesClosedCount:  strconv.FormatUint(msg.Stats.EyesClosedFrames, 10),
		TotalFrames:      strconv.FormatUint(msg.Stats.FramesProcessed, 10),
	}
}

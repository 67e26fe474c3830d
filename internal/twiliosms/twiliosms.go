// Package twiliosms wraps the Twilio API for the optional direct-SMS
// heads-up channel in SleepEMA.
package twiliosms

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Sender sends a plain SMS to a patient's phone number.
type Sender interface {
	SendSMS(ctx context.Context, to string, body string) error
}

// Opts holds configuration options for the Twilio SMS client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Option defines a configuration option for the Twilio SMS client.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromNumber sets the sending phone number in E.164 format.
func WithFromNumber(from string) Option {
	return func(o *Opts) { o.FromNumber = from }
}

// Client wraps the Twilio REST API for plain SMS.
type Client struct {
	client     *twilio.RestClient
	fromNumber string
}

// NewClient creates a Twilio SMS client, falling back to the standard
// TWILIO_* environment variables for anything not provided via options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio SMS client config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromNumber_set", cfg.FromNumber != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(
		twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		},
	)

	return &Client{
		client:     client,
		fromNumber: cfg.FromNumber,
	}, nil
}

// SendSMS sends a single SMS using the Twilio API.
func (c *Client) SendSMS(ctx context.Context, to string, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(c.fromNumber)
	params.SetBody(body)

	_, err := c.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio SendSMS failed", "to", to, "error", err)
		return fmt.Errorf("failed to send SMS to %s: %w", to, err)
	}

	slog.Debug("Twilio SMS sent", "to", to)
	return nil
}

// MockClient records sent messages for tests.
type MockClient struct {
	SentMessages []SentMessage
}

// SentMessage is one recorded SMS.
type SentMessage struct {
	To   string
	Body string
}

// NewMockClient creates an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{SentMessages: []SentMessage{}}
}

// SendSMS records the message instead of sending it.
func (m *MockClient) SendSMS(ctx context.Context, to string, body string) error {
	m.SentMessages = append(m.SentMessages, SentMessage{To: to, Body: body})
	return nil
}

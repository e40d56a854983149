// Package twiliowhatsapp wraps the Twilio REST API for WhatsApp delivery.
package twiliowhatsapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Sender is the outbound surface the messaging layer needs from Twilio.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// ErrMissingCredentials is returned when no account SID/auth token pair is
// configured.
var ErrMissingCredentials = errors.New("twilio credentials are not configured")

// ErrMissingSender is returned when no sending WhatsApp number is configured.
var ErrMissingSender = errors.New("twilio sending number is not configured")

// Opts holds configuration options for the Twilio WhatsApp client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Option defines a configuration option for the Twilio WhatsApp client.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromNumber sets the sending WhatsApp number.
func WithFromNumber(from string) Option {
	return func(o *Opts) { o.FromNumber = from }
}

// fillFromEnv backfills unset options from TWILIO_* environment variables.
func (o *Opts) fillFromEnv() {
	if o.AccountSID == "" {
		o.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if o.AuthToken == "" {
		o.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if o.FromNumber == "" {
		o.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
}

func (o *Opts) validate() error {
	if o.AccountSID == "" || o.AuthToken == "" {
		return ErrMissingCredentials
	}
	if o.FromNumber == "" {
		return ErrMissingSender
	}
	return nil
}

// Client delivers WhatsApp messages through the Twilio REST API.
type Client struct {
	rest *twilio.RestClient
	from string // "whatsapp:+<digits>"
}

// NewClient creates a Twilio client, falling back to TWILIO_* environment
// variables for unset options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.fillFromEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	slog.Debug("Twilio client configured", "accountSID_set", cfg.AccountSID != "", "from", cfg.FromNumber)

	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Client{rest: rest, from: whatsappAddress(cfg.FromNumber)}, nil
}

// SendMessage sends one WhatsApp message. The recipient is canonical digits;
// Twilio's channel addressing prefix is applied here.
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(whatsappAddress(to))
	params.SetFrom(c.from)
	params.SetBody(body)

	if _, err := c.rest.Api.CreateMessage(params); err != nil {
		slog.Error("Twilio SendMessage failed", "to", to, "error", err)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	slog.Debug("Twilio message sent", "to", to, "bytes", len(body))
	return nil
}

// whatsappAddress converts a digits-only number into Twilio's WhatsApp
// addressing format, leaving already-prefixed values alone.
func whatsappAddress(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:+" + strings.TrimPrefix(number, "+")
}

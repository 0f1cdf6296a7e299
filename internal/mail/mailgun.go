package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"kwikflow/internal/metrics"
)

// ErrNotConfigured is returned when the Mailgun API key or domain is missing.
var ErrNotConfigured = errors.New("mailgun credentials not configured")

const (
	euBaseURL = "https://api.eu.mailgun.net"
	usBaseURL = "https://api.mailgun.net"
)

// Config holds Mailgun settings.
type Config struct {
	APIKey   string
	Domain   string
	Region   string
	FromName string
	Timeout  time.Duration
	// BaseURL overrides the region endpoint, used by tests.
	BaseURL string
}

// Message is a rendered e-mail ready to send.
type Message struct {
	// Template names the message for metrics and logs.
	Template string
	To       string
	Subject  string
	HTML     string
	ReplyTo  string
}

// SendError reports a non-2xx Mailgun response.
type SendError struct {
	StatusCode int
	Body       string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("mailgun responded %d: %s", e.StatusCode, e.Body)
}

// Client sends e-mail through the Mailgun messages API.
type Client struct {
	http    *resty.Client
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Mailgun client. A client without credentials is valid; Send then
// returns ErrNotConfigured.
func New(cfg Config, logger *slog.Logger, metricRegistry *metrics.Metrics) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = euBaseURL
		if strings.EqualFold(cfg.Region, "us") {
			base = usBaseURL
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if cfg.FromName == "" {
		cfg.FromName = "KwikFlow"
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimSuffix(base, "/")).
		SetTimeout(timeout).
		SetBasicAuth("api", cfg.APIKey)

	return &Client{
		http:    httpClient,
		cfg:     cfg,
		logger:  logger.With("component", "mailgun"),
		metrics: metricRegistry,
	}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != "" && c.cfg.Domain != ""
}

// From returns the sender address, e.g. "KwikFlow <noreply@mg.example.com>".
func (c *Client) From() string {
	return fmt.Sprintf("%s <noreply@%s>", c.cfg.FromName, c.cfg.Domain)
}

// Send delivers msg.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if !c.Configured() {
		c.observe(msg.Template, "not_configured")
		return ErrNotConfigured
	}

	form := map[string]string{
		"from":    c.From(),
		"to":      msg.To,
		"subject": msg.Subject,
		"html":    msg.HTML,
	}
	if msg.ReplyTo != "" {
		form["h:Reply-To"] = msg.ReplyTo
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(form).
		SetPathParam("domain", c.cfg.Domain).
		Post("/v3/{domain}/messages")
	if err != nil {
		c.observe(msg.Template, "error")
		return fmt.Errorf("mailgun send: %w", err)
	}
	if resp.IsError() {
		c.observe(msg.Template, "error")
		return &SendError{StatusCode: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
	}

	c.observe(msg.Template, "sent")
	c.logger.Info("email sent", "template", msg.Template, "to", msg.To)
	return nil
}

func (c *Client) observe(template, status string) {
	if c.metrics != nil {
		c.metrics.EmailsSent.WithLabelValues(template, status).Inc()
	}
}

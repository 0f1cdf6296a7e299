package whatsapp

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

const defaultBaseURL = "https://graph.facebook.com"

// ErrNotConfigured indicates the phone number id or access token is missing.
var ErrNotConfigured = errors.New("whatsapp cloud api not configured")

// APIError reports a non-2xx Graph API response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph api responded %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the failure is worth another attempt.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// Config holds Cloud API settings.
type Config struct {
	PhoneNumberID string
	AccessToken   string
	APIVersion    string
	Timeout       time.Duration
	// BaseURL overrides the Graph endpoint, used by tests.
	BaseURL string
}

// Client sends messages through the WhatsApp Cloud API.
type Client struct {
	http    *resty.Client
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type sendTextRequest struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		PreviewURL bool   `json:"preview_url"`
		Body       string `json:"body"`
	} `json:"text"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// New creates a Cloud API client.
func New(cfg Config, logger *slog.Logger, metricRegistry *metrics.Metrics) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v20.0"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetAuthToken(cfg.AccessToken).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:    httpClient,
		cfg:     cfg,
		logger:  logger.With("component", "whatsapp"),
		metrics: metricRegistry,
	}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.PhoneNumberID != "" && c.cfg.AccessToken != ""
}

// SendText sends a plain text message and returns the provider message id.
func (c *Client) SendText(ctx context.Context, to, text string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	recipient := NormalizePhone(to)
	if recipient == "" {
		return "", fmt.Errorf("send text: invalid recipient %q", to)
	}

	var body sendTextRequest
	body.MessagingProduct = "whatsapp"
	body.RecipientType = "individual"
	body.To = recipient
	body.Type = "text"
	body.Text.Body = text

	var out sendResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetPathParams(map[string]string{
			"version": c.cfg.APIVersion,
			"phoneID": c.cfg.PhoneNumberID,
		}).
		Post("/{version}/{phoneID}/messages")
	if err != nil {
		c.observe("error")
		return "", fmt.Errorf("send text: %w", err)
	}
	if resp.IsError() {
		c.observe("error")
		return "", &APIError{StatusCode: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
	}

	c.observe("sent")
	var id string
	if len(out.Messages) > 0 {
		id = out.Messages[0].ID
	}
	c.logger.Info("whatsapp message sent", "to", recipient, "message_id", id)
	return id, nil
}

func (c *Client) observe(status string) {
	if c.metrics != nil {
		c.metrics.WAOutgoingMessages.WithLabelValues(status).Inc()
	}
}

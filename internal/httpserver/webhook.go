package httpserver

import (
	"crypto/subtle"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"kwikflow/internal/whatsapp"
)

// GET /api/webhook/whatsapp
func (h *handlers) verifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if h.verifyToken == "" || mode != "subscribe" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.verifyToken)) != 1 {
		h.countWebhook("verify_rejected")
		h.logger.Warn("webhook verification rejected", "mode", mode)
		c.String(http.StatusForbidden, "Forbidden")
		return
	}
	h.countWebhook("verified")
	c.String(http.StatusOK, challenge)
}

// POST /api/webhook/whatsapp
func (h *handlers) receiveWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.countWebhook("read_error")
		h.logger.Warn("read webhook body", "error", err)
		c.String(http.StatusOK, "EVENT_RECEIVED")
		return
	}

	if h.appSecret != "" {
		if err := whatsapp.VerifySignature(h.appSecret, c.GetHeader(whatsapp.SignatureHeader), body); err != nil {
			h.countWebhook("invalid_signature")
			h.logger.Warn("webhook signature rejected", "request_id", c.GetString(requestIDKey), "error", err)
			c.String(http.StatusForbidden, "Forbidden")
			return
		}
	}

	msgs, err := whatsapp.ParseInbound(body)
	if err != nil {
		h.countWebhook("malformed")
		h.logger.Warn("malformed webhook payload dropped", "request_id", c.GetString(requestIDKey), "error", err)
		c.String(http.StatusOK, "EVENT_RECEIVED")
		return
	}

	if len(msgs) > 0 {
		res := h.svc.IngestInbound(c.Request.Context(), msgs)
		h.logger.Info("webhook processed",
			"request_id", c.GetString(requestIDKey),
			"messages", len(msgs),
			"stored", res.Stored,
			"duplicates", res.Duplicates,
			"replies", res.Replies,
		)
		h.countWebhook("processed")
	} else {
		h.countWebhook("ignored")
	}
	c.String(http.StatusOK, "EVENT_RECEIVED")
}

func (h *handlers) countWebhook(outcome string) {
	if h.metrics != nil {
		h.metrics.WebhookEvents.WithLabelValues(outcome).Inc()
	}
}

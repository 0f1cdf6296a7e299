package whatsapp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WebhookPayload mirrors the parts of a Cloud API webhook delivery this service reads.
type WebhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					From      string `json:"from"`
					ID        string `json:"id"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// InboundMessage is a text message received from a customer.
type InboundMessage struct {
	ID          string
	From        string
	ContactName string
	Text        string
	// Timestamp is zero when the provider omitted or garbled it.
	Timestamp time.Time
}

// ParseInbound decodes a webhook body and returns its text messages. Missing
// fields never fail the parse; only invalid JSON does.
func ParseInbound(body []byte) ([]InboundMessage, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}
	return extractTextMessages(payload), nil
}

func extractTextMessages(payload WebhookPayload) []InboundMessage {
	var out []InboundMessage

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if field := strings.TrimSpace(change.Field); field != "" && field != "messages" {
				continue
			}

			names := make(map[string]string, len(change.Value.Contacts))
			var firstName string
			for _, contact := range change.Value.Contacts {
				name := strings.TrimSpace(contact.Profile.Name)
				if name == "" {
					continue
				}
				names[strings.TrimSpace(contact.WaID)] = name
				if firstName == "" {
					firstName = name
				}
			}

			for _, m := range change.Value.Messages {
				if t := strings.ToLower(strings.TrimSpace(m.Type)); t != "" && t != "text" {
					continue
				}
				from := strings.TrimSpace(m.From)
				body := strings.TrimSpace(m.Text.Body)
				if from == "" || body == "" {
					continue
				}
				name, ok := names[from]
				if !ok {
					name = firstName
				}
				out = append(out, InboundMessage{
					ID:          strings.TrimSpace(m.ID),
					From:        from,
					ContactName: name,
					Text:        body,
					Timestamp:   parseUnix(m.Timestamp),
				})
			}
		}
	}

	return out
}

func parseUnix(s string) time.Time {
	secs, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}

package service

import (
	"context"
	"fmt"

	"kwikflow/internal/automation"
	"kwikflow/internal/repo"
	"kwikflow/internal/whatsapp"
)

// Inbound message statuses and senders.
const (
	StatusReceived = "received"
	SenderBot      = "bot"
)

// IngestResult counts what happened to a webhook delivery.
type IngestResult struct {
	Stored     int
	Duplicates int
	Replies    int
}

// IngestInbound stores inbound WhatsApp text messages and runs automation for each.
// A failure on one message is logged and does not stop the rest.
func (s *Service) IngestInbound(ctx context.Context, msgs []whatsapp.InboundMessage) IngestResult {
	var res IngestResult
	for _, in := range msgs {
		logger := s.logger.With("wa_message_id", in.ID)
		if s.isDuplicate(ctx, in) {
			res.Duplicates++
			logger.Info("duplicate inbound message dropped")
			continue
		}

		replies, err := s.ingestOne(ctx, in)
		if err != nil {
			logger.Error("ingest inbound message", "error", err)
			s.countError("webhook_ingest")
			continue
		}
		res.Stored++
		res.Replies += replies
		if s.metrics != nil {
			s.metrics.WAIncomingMessages.WithLabelValues("text").Inc()
		}
	}
	return res
}

func (s *Service) isDuplicate(ctx context.Context, in whatsapp.InboundMessage) bool {
	if s.dedupe == nil || in.ID == "" {
		return false
	}
	fresh, err := s.dedupe.Claim(ctx, "kwikflow:wamid:"+in.ID, s.dedupeTTL)
	if err != nil {
		// Prefer a possible duplicate over dropping a real message.
		s.logger.Warn("dedupe claim failed", "wa_message_id", in.ID, "error", err)
		return false
	}
	return !fresh
}

func (s *Service) ingestOne(ctx context.Context, in whatsapp.InboundMessage) (int, error) {
	phone := whatsapp.CanonicalPhone(in.From)
	if phone == "" {
		return 0, fmt.Errorf("sender %q has no digits", in.From)
	}

	newConv := repo.NewConversation{PhoneNumber: phone, Status: repo.DefaultConversationStatus}
	if in.ContactName != "" {
		name := in.ContactName
		newConv.ContactName = &name
	}
	conv, created, err := s.repo.FindOrCreateConversation(ctx, newConv)
	if err != nil {
		return 0, fmt.Errorf("find or create conversation: %w", err)
	}
	if created {
		s.logger.Info("conversation opened", "conversation_id", conv.ID)
	}

	at := in.Timestamp
	if at.IsZero() {
		at = s.now().UTC()
	}
	if _, err := s.repo.CreateMessage(ctx, repo.NewMessage{
		ConversationID: conv.ID,
		Content:        in.Text,
		Sender:         phone,
		MessageType:    repo.DefaultMessageType,
		Timestamp:      at,
		Status:         StatusReceived,
		IsFromUser:     true,
	}); err != nil {
		return 0, fmt.Errorf("store inbound message: %w", err)
	}

	triggers := []string{repo.TriggerMessageReceived}
	if created {
		triggers = []string{repo.TriggerNewConversation, repo.TriggerMessageReceived}
	}
	return s.runAutomation(ctx, conv, in.Text, triggers), nil
}

// runAutomation evaluates the rules for each trigger in order and sends the replies.
func (s *Service) runAutomation(ctx context.Context, conv *repo.Conversation, text string, triggers []string) int {
	rules, err := s.repo.ListAutomationRules(ctx)
	if err != nil {
		s.logger.Error("load automation rules", "error", err)
		return 0
	}

	sent := 0
	for _, trigger := range triggers {
		matches := s.engine.Evaluate(rules, automation.Event{Trigger: trigger, Text: text, At: s.now()})
		for _, m := range matches {
			for _, action := range m.Actions {
				if err := s.reply(ctx, conv, action.Content); err != nil {
					s.logger.Error("automation reply", "rule_id", m.Rule.ID, "error", err)
					continue
				}
				sent++
			}
		}
	}
	return sent
}

func (s *Service) reply(ctx context.Context, conv *repo.Conversation, content string) error {
	msg, err := s.repo.CreateMessage(ctx, repo.NewMessage{
		ConversationID: conv.ID,
		Content:        content,
		Sender:         SenderBot,
		MessageType:    repo.DefaultMessageType,
		Timestamp:      s.now().UTC(),
		IsFromUser:     false,
	})
	if err != nil {
		return fmt.Errorf("store reply: %w", err)
	}
	if s.whatsappReady() {
		s.relay(ctx, conv, msg)
	}
	return nil
}

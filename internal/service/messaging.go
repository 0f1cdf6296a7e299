package service

import (
	"context"
	"errors"
	"fmt"

	"kwikflow/internal/outbox"
	"kwikflow/internal/repo"
)

// RelayPayload is the outbox payload for an outbound WhatsApp message.
type RelayPayload struct {
	ConversationID int64  `json:"conversationId"`
	MessageID      int64  `json:"messageId"`
	To             string `json:"to"`
	Text           string `json:"text"`
}

func (s *Service) ListConversations(ctx context.Context) ([]repo.Conversation, error) {
	return s.repo.ListConversations(ctx)
}

func (s *Service) GetConversation(ctx context.Context, id int64) (*repo.Conversation, error) {
	return s.repo.GetConversation(ctx, id)
}

func (s *Service) CreateConversation(ctx context.Context, in repo.NewConversation) (*repo.Conversation, error) {
	return s.repo.CreateConversation(ctx, in)
}

func (s *Service) UpdateConversation(ctx context.Context, id int64, patch repo.ConversationPatch) (*repo.Conversation, error) {
	return s.repo.UpdateConversation(ctx, id, patch)
}

func (s *Service) ListMessages(ctx context.Context, conversationID int64) ([]repo.Message, error) {
	return s.repo.ListMessages(ctx, conversationID)
}

// CreateMessage stores a message, stamping the current time when none is given.
// Outbound messages on a known conversation are relayed through WhatsApp when configured.
func (s *Service) CreateMessage(ctx context.Context, in repo.NewMessage) (*repo.Message, error) {
	if in.Timestamp.IsZero() {
		in.Timestamp = s.now().UTC()
	}
	msg, err := s.repo.CreateMessage(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}
	if msg.IsFromUser || !s.whatsappReady() {
		return msg, nil
	}

	conv, err := s.repo.GetConversation(ctx, msg.ConversationID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		s.logger.Warn("message stored for unknown conversation, not relayed", "message_id", msg.ID, "conversation_id", msg.ConversationID)
	case err != nil:
		s.logger.Error("load conversation for relay", "conversation_id", msg.ConversationID, "error", err)
	default:
		s.relay(ctx, conv, msg)
	}
	return msg, nil
}

func (s *Service) relay(ctx context.Context, conv *repo.Conversation, msg *repo.Message) {
	s.enqueue(ctx, outbox.KindWhatsAppSendText, RelayPayload{
		ConversationID: conv.ID,
		MessageID:      msg.ID,
		To:             conv.PhoneNumber,
		Text:           msg.Content,
	})
}

func (s *Service) ListSessions(ctx context.Context, conversationID *int64) ([]repo.Session, error) {
	return s.repo.ListSessions(ctx, conversationID)
}

// CreateSession stores a session, starting it now when no start time is given.
func (s *Service) CreateSession(ctx context.Context, in repo.NewSession) (*repo.Session, error) {
	if in.StartedAt.IsZero() {
		in.StartedAt = s.now().UTC()
	}
	return s.repo.CreateSession(ctx, in)
}

func (s *Service) UpdateSession(ctx context.Context, id int64, patch repo.SessionPatch) (*repo.Session, error) {
	return s.repo.UpdateSession(ctx, id, patch)
}

func (s *Service) ListAutomationRules(ctx context.Context) ([]repo.AutomationRule, error) {
	return s.repo.ListAutomationRules(ctx)
}

func (s *Service) GetAutomationRule(ctx context.Context, id int64) (*repo.AutomationRule, error) {
	return s.repo.GetAutomationRule(ctx, id)
}

func (s *Service) CreateAutomationRule(ctx context.Context, in repo.NewAutomationRule) (*repo.AutomationRule, error) {
	return s.repo.CreateAutomationRule(ctx, in)
}

func (s *Service) UpdateAutomationRule(ctx context.Context, id int64, patch repo.AutomationRulePatch) (*repo.AutomationRule, error) {
	return s.repo.UpdateAutomationRule(ctx, id, patch)
}

func (s *Service) DeleteAutomationRule(ctx context.Context, id int64) error {
	return s.repo.DeleteAutomationRule(ctx, id)
}

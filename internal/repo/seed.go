package repo

import (
	"context"
	"fmt"
	"time"
)

// SeedDemoData loads two sample conversations, three messages and two automation rules.
// It does nothing when conversations already exist.
func SeedDemoData(ctx context.Context, r Repository, now time.Time) error {
	existing, err := r.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("seed check: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	yesterday := now.Add(-24 * time.Hour)

	john, err := r.CreateConversation(ctx, NewConversation{
		PhoneNumber: "+27612345678",
		ContactName: strPtr("John Smith"),
		Status:      DefaultConversationStatus,
	})
	if err != nil {
		return fmt.Errorf("seed conversation: %w", err)
	}
	if _, err := r.CreateConversation(ctx, NewConversation{
		PhoneNumber:   "+27698765432",
		ContactName:   strPtr("Sarah Johnson"),
		Status:        DefaultConversationStatus,
		LastMessageAt: &yesterday,
	}); err != nil {
		return fmt.Errorf("seed conversation: %w", err)
	}

	messages := []NewMessage{
		{Content: "Hi, I need help with my order", Sender: "user", Timestamp: yesterday, IsFromUser: true},
		{Content: "Hello! How can I help you today?", Sender: "bot", Timestamp: yesterday, IsFromUser: false},
		{Content: "I'd like to track my package", Sender: "user", Timestamp: now, IsFromUser: true},
	}
	for _, m := range messages {
		m.ConversationID = john.ID
		m.MessageType = DefaultMessageType
		m.Status = "delivered"
		if _, err := r.CreateMessage(ctx, m); err != nil {
			return fmt.Errorf("seed message: %w", err)
		}
	}

	rules := []NewAutomationRule{
		{
			Name:    "Welcome Message",
			Trigger: TriggerNewConversation,
			Actions: `[{"type":"send_message","content":"Welcome! How can we help you today?"}]`,
		},
		{
			Name:       "Business Hours Response",
			Trigger:    TriggerMessageReceived,
			Conditions: strPtr(`{"outside_business_hours":true}`),
			Actions:    `[{"type":"send_message","content":"Thanks for your message. Our team will respond during business hours (9 AM - 5 PM)."}]`,
		},
	}
	for _, rule := range rules {
		if _, err := r.CreateAutomationRule(ctx, rule); err != nil {
			return fmt.Errorf("seed automation rule: %w", err)
		}
	}
	return nil
}

func strPtr(s string) *string { return &s }

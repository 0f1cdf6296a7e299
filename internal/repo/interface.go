package repo

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when the referenced record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("record already exists")
)

// Repository defines the interface for data persistence.
type Repository interface {
	// Lifecycle
	Close()
	Ping(ctx context.Context) error

	// Users
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, user NewUser) (*User, error)

	// Contact forms
	CreateConsultationRequest(ctx context.Context, req NewConsultationRequest) (*ConsultationRequest, error)
	GetConsultationRequest(ctx context.Context, id int64) (*ConsultationRequest, error)
	ListConsultationRequests(ctx context.Context) ([]ConsultationRequest, error)
	CreateLead(ctx context.Context, lead NewLead) (*Lead, error)
	GetLead(ctx context.Context, id int64) (*Lead, error)
	ListLeads(ctx context.Context) ([]Lead, error)

	// Conversations
	ListConversations(ctx context.Context) ([]Conversation, error)
	GetConversation(ctx context.Context, id int64) (*Conversation, error)
	CreateConversation(ctx context.Context, conv NewConversation) (*Conversation, error)
	UpdateConversation(ctx context.Context, id int64, patch ConversationPatch) (*Conversation, error)
	FindConversationByPhone(ctx context.Context, phone string) (*Conversation, error)
	FindOrCreateConversation(ctx context.Context, conv NewConversation) (*Conversation, bool, error)

	// Messages
	ListMessages(ctx context.Context, conversationID int64) ([]Message, error)
	CreateMessage(ctx context.Context, msg NewMessage) (*Message, error)

	// Sessions
	ListSessions(ctx context.Context, conversationID *int64) ([]Session, error)
	CreateSession(ctx context.Context, session NewSession) (*Session, error)
	UpdateSession(ctx context.Context, id int64, patch SessionPatch) (*Session, error)

	// Automation rules
	ListAutomationRules(ctx context.Context) ([]AutomationRule, error)
	GetAutomationRule(ctx context.Context, id int64) (*AutomationRule, error)
	CreateAutomationRule(ctx context.Context, rule NewAutomationRule) (*AutomationRule, error)
	UpdateAutomationRule(ctx context.Context, id int64, patch AutomationRulePatch) (*AutomationRule, error)
	DeleteAutomationRule(ctx context.Context, id int64) error
}

package repo

import "time"

// Automation rule triggers.
const (
	TriggerNewConversation = "new_conversation"
	TriggerMessageReceived = "message_received"
)

// Defaults applied on create when the caller leaves a field empty.
const (
	DefaultConversationStatus = "active"
	DefaultMessageType        = "text"
	DefaultMessageStatus      = "sent"
)

// User represents the users table row. PasswordHash holds a bcrypt hash.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}

// NewUser carries data used to create a user.
type NewUser struct {
	Username     string
	PasswordHash string
}

// ConsultationRequest is a contact-form submission for the automation consultancy.
type ConsultationRequest struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"fullName"`
	Company   *string   `json:"company"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone"`
	Systems   *string   `json:"systems"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewConsultationRequest carries data used to store a consultation request.
type NewConsultationRequest struct {
	FullName  string
	Company   *string
	Email     string
	Phone     *string
	Systems   *string
	Message   string
	CreatedAt time.Time
}

// Lead is a contact-form submission for the messaging product.
// InterestedFeatures is the comma-joined list of selected feature tags.
type Lead struct {
	ID                 int64     `json:"id"`
	ContactName        *string   `json:"contactName"`
	Email              string    `json:"email"`
	CompanyName        *string   `json:"companyName"`
	Phone              *string   `json:"phone"`
	Role               *string   `json:"role"`
	Message            *string   `json:"message"`
	InterestedFeatures string    `json:"interestedFeatures"`
	PreferredPlan      *string   `json:"preferredPlan"`
	CreatedAt          time.Time `json:"createdAt"`
}

// NewLead carries data used to store a lead.
type NewLead struct {
	ContactName        *string
	Email              string
	CompanyName        *string
	Phone              *string
	Role               *string
	Message            *string
	InterestedFeatures string
	PreferredPlan      *string
	CreatedAt          time.Time
}

// Conversation tracks the exchange with one phone number.
type Conversation struct {
	ID            int64      `json:"id"`
	PhoneNumber   string     `json:"phoneNumber"`
	ContactName   *string    `json:"contactName"`
	Status        string     `json:"status"`
	LastMessageAt *time.Time `json:"lastMessageAt"`
	AssignedTo    *string    `json:"assignedTo"`
}

// NewConversation carries data used to create a conversation.
type NewConversation struct {
	PhoneNumber   string
	ContactName   *string
	Status        string
	LastMessageAt *time.Time
	AssignedTo    *string
}

// ConversationPatch lists the fields an update may replace. Nil fields are kept.
type ConversationPatch struct {
	ContactName   *string
	Status        *string
	LastMessageAt *time.Time
	AssignedTo    *string
}

// Message is a single inbound or outbound message in a conversation.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversationId"`
	Content        string    `json:"content"`
	Sender         string    `json:"sender"`
	MessageType    string    `json:"messageType"`
	Timestamp      time.Time `json:"timestamp"`
	Status         string    `json:"status"`
	IsFromUser     bool      `json:"isFromUser"`
}

// NewMessage carries data used to append a message.
type NewMessage struct {
	ConversationID int64
	Content        string
	Sender         string
	MessageType    string
	Timestamp      time.Time
	Status         string
	IsFromUser     bool
}

// Session is a bounded period of activity on a conversation.
type Session struct {
	ID             int64      `json:"id"`
	ConversationID int64      `json:"conversationId"`
	StartedAt      time.Time  `json:"startedAt"`
	EndedAt        *time.Time `json:"endedAt"`
	SessionType    string     `json:"sessionType"`
	Metadata       *string    `json:"metadata"`
}

// NewSession carries data used to create a session.
type NewSession struct {
	ConversationID int64
	StartedAt      time.Time
	EndedAt        *time.Time
	SessionType    string
	Metadata       *string
}

// SessionPatch lists the fields an update may replace. Nil fields are kept.
type SessionPatch struct {
	EndedAt     *time.Time
	SessionType *string
	Metadata    *string
}

// AutomationRule maps a trigger to actions. Conditions and Actions are JSON text.
type AutomationRule struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Trigger    string  `json:"trigger"`
	Conditions *string `json:"conditions"`
	Actions    string  `json:"actions"`
	IsActive   bool    `json:"isActive"`
}

// NewAutomationRule carries data used to create a rule. A nil IsActive means true.
type NewAutomationRule struct {
	Name       string
	Trigger    string
	Conditions *string
	Actions    string
	IsActive   *bool
}

// AutomationRulePatch lists the fields an update may replace. Nil fields are kept;
// an empty Conditions string clears the conditions.
type AutomationRulePatch struct {
	Name       *string
	Trigger    *string
	Conditions *string
	Actions    *string
	IsActive   *bool
}

func (p ConversationPatch) apply(c Conversation) Conversation {
	if p.ContactName != nil {
		c.ContactName = p.ContactName
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.LastMessageAt != nil {
		c.LastMessageAt = p.LastMessageAt
	}
	if p.AssignedTo != nil {
		c.AssignedTo = p.AssignedTo
	}
	return c
}

func (p SessionPatch) apply(s Session) Session {
	if p.EndedAt != nil {
		s.EndedAt = p.EndedAt
	}
	if p.SessionType != nil {
		s.SessionType = *p.SessionType
	}
	if p.Metadata != nil {
		s.Metadata = p.Metadata
	}
	return s
}

func (p AutomationRulePatch) apply(r AutomationRule) AutomationRule {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Trigger != nil {
		r.Trigger = *p.Trigger
	}
	if p.Conditions != nil {
		if *p.Conditions == "" {
			r.Conditions = nil
		} else {
			r.Conditions = p.Conditions
		}
	}
	if p.Actions != nil {
		r.Actions = *p.Actions
	}
	if p.IsActive != nil {
		r.IsActive = *p.IsActive
	}
	return r
}

func (n NewConversation) build(id int64) Conversation {
	status := n.Status
	if status == "" {
		status = DefaultConversationStatus
	}
	return Conversation{
		ID:            id,
		PhoneNumber:   n.PhoneNumber,
		ContactName:   n.ContactName,
		Status:        status,
		LastMessageAt: n.LastMessageAt,
		AssignedTo:    n.AssignedTo,
	}
}

func (n NewMessage) build(id int64) Message {
	msgType := n.MessageType
	if msgType == "" {
		msgType = DefaultMessageType
	}
	status := n.Status
	if status == "" {
		status = DefaultMessageStatus
	}
	return Message{
		ID:             id,
		ConversationID: n.ConversationID,
		Content:        n.Content,
		Sender:         n.Sender,
		MessageType:    msgType,
		Timestamp:      n.Timestamp,
		Status:         status,
		IsFromUser:     n.IsFromUser,
	}
}

func (n NewAutomationRule) build(id int64) AutomationRule {
	active := true
	if n.IsActive != nil {
		active = *n.IsActive
	}
	conditions := n.Conditions
	if conditions != nil && *conditions == "" {
		conditions = nil
	}
	return AutomationRule{
		ID:         id,
		Name:       n.Name,
		Trigger:    n.Trigger,
		Conditions: conditions,
		Actions:    n.Actions,
		IsActive:   active,
	}
}

// advance returns the later of the stored last-message time and at.
func advance(current *time.Time, at time.Time) *time.Time {
	if current != nil && !at.After(*current) {
		return current
	}
	t := at
	return &t
}

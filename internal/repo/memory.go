package repo

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository keeps every entity in process memory. Data is lost on restart.
type MemoryRepository struct {
	mu sync.RWMutex

	users         map[int64]User
	consultations map[int64]ConsultationRequest
	leads         map[int64]Lead
	conversations map[int64]Conversation
	messages      map[int64]Message
	sessions      map[int64]Session
	rules         map[int64]AutomationRule

	usersByName    map[string]int64
	convByPhone    map[string]int64
	messagesByConv map[int64][]int64

	seq struct {
		user, consultation, lead, conversation, message, session, rule int64
	}
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemory returns an empty in-memory repository.
func NewMemory() *MemoryRepository {
	return &MemoryRepository{
		users:          make(map[int64]User),
		consultations:  make(map[int64]ConsultationRequest),
		leads:          make(map[int64]Lead),
		conversations:  make(map[int64]Conversation),
		messages:       make(map[int64]Message),
		sessions:       make(map[int64]Session),
		rules:          make(map[int64]AutomationRule),
		usersByName:    make(map[string]int64),
		convByPhone:    make(map[string]int64),
		messagesByConv: make(map[int64][]int64),
	}
}

// Close is a no-op for the in-memory store.
func (r *MemoryRepository) Close() {}

// Ping always succeeds.
func (r *MemoryRepository) Ping(context.Context) error { return nil }

// -- Users --

func (r *MemoryRepository) GetUser(_ context.Context, id int64) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r *MemoryRepository) GetUserByUsername(_ context.Context, username string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.usersByName[username]
	if !ok {
		return nil, ErrNotFound
	}
	u := r.users[id]
	return &u, nil
}

func (r *MemoryRepository) CreateUser(_ context.Context, in NewUser) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.usersByName[in.Username]; exists {
		return nil, ErrDuplicate
	}
	r.seq.user++
	u := User{ID: r.seq.user, Username: in.Username, PasswordHash: in.PasswordHash}
	r.users[u.ID] = u
	r.usersByName[u.Username] = u.ID
	return &u, nil
}

// -- Contact forms --

func (r *MemoryRepository) CreateConsultationRequest(_ context.Context, in NewConsultationRequest) (*ConsultationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq.consultation++
	req := ConsultationRequest{
		ID:        r.seq.consultation,
		FullName:  in.FullName,
		Company:   in.Company,
		Email:     in.Email,
		Phone:     in.Phone,
		Systems:   in.Systems,
		Message:   in.Message,
		CreatedAt: in.CreatedAt,
	}
	r.consultations[req.ID] = req
	return &req, nil
}

func (r *MemoryRepository) GetConsultationRequest(_ context.Context, id int64) (*ConsultationRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.consultations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &req, nil
}

func (r *MemoryRepository) ListConsultationRequests(context.Context) ([]ConsultationRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ConsultationRequest, 0, len(r.consultations))
	for _, req := range r.consultations {
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) CreateLead(_ context.Context, in NewLead) (*Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq.lead++
	lead := Lead{
		ID:                 r.seq.lead,
		ContactName:        in.ContactName,
		Email:              in.Email,
		CompanyName:        in.CompanyName,
		Phone:              in.Phone,
		Role:               in.Role,
		Message:            in.Message,
		InterestedFeatures: in.InterestedFeatures,
		PreferredPlan:      in.PreferredPlan,
		CreatedAt:          in.CreatedAt,
	}
	r.leads[lead.ID] = lead
	return &lead, nil
}

func (r *MemoryRepository) GetLead(_ context.Context, id int64) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lead, ok := r.leads[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &lead, nil
}

func (r *MemoryRepository) ListLeads(context.Context) ([]Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Lead, 0, len(r.leads))
	for _, lead := range r.leads {
		out = append(out, lead)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// -- Conversations --

func (r *MemoryRepository) ListConversations(context.Context) ([]Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Conversation, 0, len(r.conversations))
	for _, c := range r.conversations {
		out = append(out, c)
	}
	sortConversations(out)
	return out, nil
}

func (r *MemoryRepository) GetConversation(_ context.Context, id int64) (*Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (r *MemoryRepository) CreateConversation(_ context.Context, in NewConversation) (*Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.insertConversationLocked(in)
	return &c, nil
}

func (r *MemoryRepository) insertConversationLocked(in NewConversation) Conversation {
	r.seq.conversation++
	c := in.build(r.seq.conversation)
	r.conversations[c.ID] = c
	if _, taken := r.convByPhone[c.PhoneNumber]; !taken {
		r.convByPhone[c.PhoneNumber] = c.ID
	}
	return c
}

func (r *MemoryRepository) UpdateConversation(_ context.Context, id int64, patch ConversationPatch) (*Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	c = patch.apply(c)
	r.conversations[id] = c
	return &c, nil
}

func (r *MemoryRepository) FindConversationByPhone(_ context.Context, phone string) (*Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.convByPhone[phone]
	if !ok {
		return nil, ErrNotFound
	}
	c := r.conversations[id]
	return &c, nil
}

func (r *MemoryRepository) FindOrCreateConversation(_ context.Context, in NewConversation) (*Conversation, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.convByPhone[in.PhoneNumber]; ok {
		c := r.conversations[id]
		return &c, false, nil
	}
	c := r.insertConversationLocked(in)
	return &c, true, nil
}

// -- Messages --

func (r *MemoryRepository) ListMessages(_ context.Context, conversationID int64) ([]Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.messagesByConv[conversationID]
	out := make([]Message, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.messages[id])
	}
	sortMessages(out)
	return out, nil
}

func (r *MemoryRepository) CreateMessage(_ context.Context, in NewMessage) (*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq.message++
	m := in.build(r.seq.message)
	r.messages[m.ID] = m
	r.messagesByConv[m.ConversationID] = append(r.messagesByConv[m.ConversationID], m.ID)

	if c, ok := r.conversations[m.ConversationID]; ok {
		c.LastMessageAt = advance(c.LastMessageAt, m.Timestamp)
		r.conversations[c.ID] = c
	}
	return &m, nil
}

// -- Sessions --

func (r *MemoryRepository) ListSessions(_ context.Context, conversationID *int64) ([]Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if conversationID != nil && s.ConversationID != *conversationID {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) CreateSession(_ context.Context, in NewSession) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq.session++
	s := Session{
		ID:             r.seq.session,
		ConversationID: in.ConversationID,
		StartedAt:      in.StartedAt,
		EndedAt:        in.EndedAt,
		SessionType:    in.SessionType,
		Metadata:       in.Metadata,
	}
	r.sessions[s.ID] = s
	return &s, nil
}

func (r *MemoryRepository) UpdateSession(_ context.Context, id int64, patch SessionPatch) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	s = patch.apply(s)
	r.sessions[id] = s
	return &s, nil
}

// -- Automation rules --

func (r *MemoryRepository) ListAutomationRules(context.Context) ([]AutomationRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]AutomationRule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) GetAutomationRule(_ context.Context, id int64) (*AutomationRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rule, nil
}

func (r *MemoryRepository) CreateAutomationRule(_ context.Context, in NewAutomationRule) (*AutomationRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq.rule++
	rule := in.build(r.seq.rule)
	r.rules[rule.ID] = rule
	return &rule, nil
}

func (r *MemoryRepository) UpdateAutomationRule(_ context.Context, id int64, patch AutomationRulePatch) (*AutomationRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[id]
	if !ok {
		return nil, ErrNotFound
	}
	rule = patch.apply(rule)
	r.rules[id] = rule
	return &rule, nil
}

func (r *MemoryRepository) DeleteAutomationRule(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[id]; !ok {
		return ErrNotFound
	}
	delete(r.rules, id)
	return nil
}

// sortConversations orders by last message time, newest first; conversations without
// messages sort last and ties keep creation order.
func sortConversations(cs []Conversation) {
	sort.Slice(cs, func(i, j int) bool {
		a, b := cs[i].LastMessageAt, cs[j].LastMessageAt
		switch {
		case a == nil && b == nil:
			return cs[i].ID < cs[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case a.Equal(*b):
			return cs[i].ID < cs[j].ID
		default:
			return a.After(*b)
		}
	})
}

func sortMessages(ms []Message) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Timestamp.Equal(ms[j].Timestamp) {
			return ms[i].ID < ms[j].ID
		}
		return ms[i].Timestamp.Before(ms[j].Timestamp)
	})
}

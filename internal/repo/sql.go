package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"kwikflow/migrations"
)

type dialect string

const (
	dialectSQLite   dialect = "sqlite"
	dialectPostgres dialect = "postgres"
)

// timeLayout is fixed width so that stored values sort lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLRepository implements Repository on top of database/sql for SQLite and Postgres.
type SQLRepository struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
	onClose func()

	// phoneMu serialises find-or-create so concurrent webhooks for one number
	// do not open two conversations.
	phoneMu sync.Mutex
}

var _ Repository = (*SQLRepository)(nil)

func newSQLRepository(db *sql.DB, d dialect, logger *slog.Logger) *SQLRepository {
	return &SQLRepository{
		db:      db,
		dialect: d,
		logger:  logger.With("component", "repo_"+string(d)),
	}
}

// Close releases the database connection.
func (r *SQLRepository) Close() {
	if r.db != nil {
		r.db.Close()
	}
	if r.onClose != nil {
		r.onClose()
	}
}

// Ping ensures the database is reachable.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// RunMigrations applies the embedded schema for the repository's dialect.
func (r *SQLRepository) RunMigrations(ctx context.Context) error {
	if err := ApplyMigrations(ctx, r.db, migrations.Files, string(r.dialect)); err != nil {
		return err
	}
	r.logger.Info("migrations applied")
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (r *SQLRepository) rebind(q string) string {
	if r.dialect != dialectPostgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, ch := range q {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// -- Users --

const userColumns = `id, username, password`

func scanUser(s scanner) (*User, error) {
	var u User
	if err := s.Scan(&u.ID, &u.Username, &u.PasswordHash); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *SQLRepository) GetUser(ctx context.Context, id int64) (*User, error) {
	q := r.rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	u, err := scanUser(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, wrapNotFound("get user", err)
	}
	return u, nil
}

func (r *SQLRepository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	q := r.rebind(`SELECT ` + userColumns + ` FROM users WHERE username = ?`)
	u, err := scanUser(r.db.QueryRowContext(ctx, q, username))
	if err != nil {
		return nil, wrapNotFound("get user by username", err)
	}
	return u, nil
}

func (r *SQLRepository) CreateUser(ctx context.Context, in NewUser) (*User, error) {
	var out *User
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, r.rebind(`SELECT 1 FROM users WHERE username = ?`), in.Username).Scan(&exists)
		switch {
		case err == nil:
			return ErrDuplicate
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}
		q := r.rebind(`INSERT INTO users (username, password) VALUES (?, ?) RETURNING ` + userColumns)
		out, err = scanUser(tx.QueryRowContext(ctx, q, in.Username, in.PasswordHash))
		return err
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return out, nil
}

// -- Contact forms --

const consultationColumns = `id, full_name, company, email, phone, systems, message, created_at`

func scanConsultation(s scanner) (*ConsultationRequest, error) {
	var (
		c                       ConsultationRequest
		company, phone, systems sql.NullString
		createdAt               string
	)
	if err := s.Scan(&c.ID, &c.FullName, &company, &c.Email, &phone, &systems, &c.Message, &createdAt); err != nil {
		return nil, err
	}
	c.Company, c.Phone, c.Systems = stringPtr(company), stringPtr(phone), stringPtr(systems)
	var err error
	if c.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *SQLRepository) CreateConsultationRequest(ctx context.Context, in NewConsultationRequest) (*ConsultationRequest, error) {
	q := r.rebind(`
INSERT INTO consultation_requests (full_name, company, email, phone, systems, message, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + consultationColumns)
	c, err := scanConsultation(r.db.QueryRowContext(ctx, q,
		in.FullName, in.Company, in.Email, in.Phone, in.Systems, in.Message, encodeTime(in.CreatedAt)))
	if err != nil {
		return nil, fmt.Errorf("insert consultation request: %w", err)
	}
	return c, nil
}

func (r *SQLRepository) GetConsultationRequest(ctx context.Context, id int64) (*ConsultationRequest, error) {
	q := r.rebind(`SELECT ` + consultationColumns + ` FROM consultation_requests WHERE id = ?`)
	c, err := scanConsultation(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, wrapNotFound("get consultation request", err)
	}
	return c, nil
}

func (r *SQLRepository) ListConsultationRequests(ctx context.Context) ([]ConsultationRequest, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+consultationColumns+` FROM consultation_requests ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list consultation requests: %w", err)
	}
	return collect(rows, scanConsultation, "consultation request")
}

const leadColumns = `id, contact_name, email, company_name, phone, role, message, interested_features, preferred_plan, created_at`

func scanLead(s scanner) (*Lead, error) {
	var (
		l                                                 Lead
		contactName, companyName, phone, role, msg, plan sql.NullString
		createdAt                                         string
	)
	if err := s.Scan(&l.ID, &contactName, &l.Email, &companyName, &phone, &role, &msg, &l.InterestedFeatures, &plan, &createdAt); err != nil {
		return nil, err
	}
	l.ContactName, l.CompanyName, l.Phone = stringPtr(contactName), stringPtr(companyName), stringPtr(phone)
	l.Role, l.Message, l.PreferredPlan = stringPtr(role), stringPtr(msg), stringPtr(plan)
	var err error
	if l.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *SQLRepository) CreateLead(ctx context.Context, in NewLead) (*Lead, error) {
	q := r.rebind(`
INSERT INTO leads (contact_name, email, company_name, phone, role, message, interested_features, preferred_plan, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + leadColumns)
	l, err := scanLead(r.db.QueryRowContext(ctx, q,
		in.ContactName, in.Email, in.CompanyName, in.Phone, in.Role, in.Message,
		in.InterestedFeatures, in.PreferredPlan, encodeTime(in.CreatedAt)))
	if err != nil {
		return nil, fmt.Errorf("insert lead: %w", err)
	}
	return l, nil
}

func (r *SQLRepository) GetLead(ctx context.Context, id int64) (*Lead, error) {
	q := r.rebind(`SELECT ` + leadColumns + ` FROM leads WHERE id = ?`)
	l, err := scanLead(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, wrapNotFound("get lead", err)
	}
	return l, nil
}

func (r *SQLRepository) ListLeads(ctx context.Context) ([]Lead, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+leadColumns+` FROM leads ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	return collect(rows, scanLead, "lead")
}

// -- Conversations --

const conversationColumns = `id, phone_number, contact_name, status, last_message_at, assigned_to`

func scanConversation(s scanner) (*Conversation, error) {
	var (
		c                       Conversation
		contactName, assignedTo sql.NullString
		lastMessageAt           sql.NullString
	)
	if err := s.Scan(&c.ID, &c.PhoneNumber, &contactName, &c.Status, &lastMessageAt, &assignedTo); err != nil {
		return nil, err
	}
	c.ContactName, c.AssignedTo = stringPtr(contactName), stringPtr(assignedTo)
	var err error
	if c.LastMessageAt, err = decodeNullTime(lastMessageAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *SQLRepository) ListConversations(ctx context.Context) ([]Conversation, error) {
	const q = `
SELECT ` + conversationColumns + `
FROM conversations
ORDER BY last_message_at IS NULL, last_message_at DESC, id ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return collect(rows, scanConversation, "conversation")
}

func (r *SQLRepository) GetConversation(ctx context.Context, id int64) (*Conversation, error) {
	return r.getConversation(ctx, r.db, id)
}

func (r *SQLRepository) getConversation(ctx context.Context, db queryer, id int64) (*Conversation, error) {
	q := r.rebind(`SELECT ` + conversationColumns + ` FROM conversations WHERE id = ?`)
	c, err := scanConversation(db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, wrapNotFound("get conversation", err)
	}
	return c, nil
}

func (r *SQLRepository) CreateConversation(ctx context.Context, in NewConversation) (*Conversation, error) {
	return r.insertConversation(ctx, r.db, in)
}

func (r *SQLRepository) insertConversation(ctx context.Context, db queryer, in NewConversation) (*Conversation, error) {
	c := in.build(0)
	q := r.rebind(`
INSERT INTO conversations (phone_number, contact_name, status, last_message_at, assigned_to)
VALUES (?, ?, ?, ?, ?)
RETURNING ` + conversationColumns)
	out, err := scanConversation(db.QueryRowContext(ctx, q,
		c.PhoneNumber, c.ContactName, c.Status, encodeNullTime(c.LastMessageAt), c.AssignedTo))
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) UpdateConversation(ctx context.Context, id int64, patch ConversationPatch) (*Conversation, error) {
	var out *Conversation
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		c, err := r.getConversation(ctx, tx, id)
		if err != nil {
			return err
		}
		updated := patch.apply(*c)
		if err := r.writeConversation(ctx, tx, updated); err != nil {
			return err
		}
		out = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SQLRepository) writeConversation(ctx context.Context, db queryer, c Conversation) error {
	q := r.rebind(`
UPDATE conversations
SET contact_name = ?, status = ?, last_message_at = ?, assigned_to = ?
WHERE id = ?`)
	if _, err := db.ExecContext(ctx, q, c.ContactName, c.Status, encodeNullTime(c.LastMessageAt), c.AssignedTo, c.ID); err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	return nil
}

func (r *SQLRepository) FindConversationByPhone(ctx context.Context, phone string) (*Conversation, error) {
	return r.findConversationByPhone(ctx, r.db, phone)
}

func (r *SQLRepository) findConversationByPhone(ctx context.Context, db queryer, phone string) (*Conversation, error) {
	q := r.rebind(`SELECT ` + conversationColumns + ` FROM conversations WHERE phone_number = ? ORDER BY id LIMIT 1`)
	c, err := scanConversation(db.QueryRowContext(ctx, q, phone))
	if err != nil {
		return nil, wrapNotFound("find conversation by phone", err)
	}
	return c, nil
}

func (r *SQLRepository) FindOrCreateConversation(ctx context.Context, in NewConversation) (*Conversation, bool, error) {
	r.phoneMu.Lock()
	defer r.phoneMu.Unlock()

	var (
		out     *Conversation
		created bool
	)
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		c, err := r.findConversationByPhone(ctx, tx, in.PhoneNumber)
		if err == nil {
			out = c
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		out, err = r.insertConversation(ctx, tx, in)
		created = err == nil
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

// -- Messages --

const messageColumns = `id, conversation_id, content, sender, message_type, sent_at, status, is_from_user`

func scanMessage(s scanner) (*Message, error) {
	var (
		m      Message
		sentAt string
	)
	if err := s.Scan(&m.ID, &m.ConversationID, &m.Content, &m.Sender, &m.MessageType, &sentAt, &m.Status, &m.IsFromUser); err != nil {
		return nil, err
	}
	var err error
	if m.Timestamp, err = decodeTime(sentAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *SQLRepository) ListMessages(ctx context.Context, conversationID int64) ([]Message, error) {
	q := r.rebind(`
SELECT ` + messageColumns + `
FROM messages
WHERE conversation_id = ?
ORDER BY sent_at ASC, id ASC`)
	rows, err := r.db.QueryContext(ctx, q, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return collect(rows, scanMessage, "message")
}

// CreateMessage stores the message and advances the owning conversation's
// last-message time in the same transaction.
func (r *SQLRepository) CreateMessage(ctx context.Context, in NewMessage) (*Message, error) {
	m := in.build(0)
	var out *Message
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		q := r.rebind(`
INSERT INTO messages (conversation_id, content, sender, message_type, sent_at, status, is_from_user)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + messageColumns)
		var err error
		out, err = scanMessage(tx.QueryRowContext(ctx, q,
			m.ConversationID, m.Content, m.Sender, m.MessageType, encodeTime(m.Timestamp), m.Status, m.IsFromUser))
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		c, err := r.getConversation(ctx, tx, m.ConversationID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		next := advance(c.LastMessageAt, out.Timestamp)
		if next == c.LastMessageAt {
			return nil
		}
		c.LastMessageAt = next
		return r.writeConversation(ctx, tx, *c)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// -- Sessions --

const sessionColumns = `id, conversation_id, started_at, ended_at, session_type, metadata`

func scanSession(s scanner) (*Session, error) {
	var (
		sess             Session
		startedAt        string
		endedAt, payload sql.NullString
	)
	if err := s.Scan(&sess.ID, &sess.ConversationID, &startedAt, &endedAt, &sess.SessionType, &payload); err != nil {
		return nil, err
	}
	sess.Metadata = stringPtr(payload)
	var err error
	if sess.StartedAt, err = decodeTime(startedAt); err != nil {
		return nil, err
	}
	if sess.EndedAt, err = decodeNullTime(endedAt); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (r *SQLRepository) ListSessions(ctx context.Context, conversationID *int64) ([]Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions`
	var args []any
	if conversationID != nil {
		q += ` WHERE conversation_id = ?`
		args = append(args, *conversationID)
	}
	q += ` ORDER BY id`
	rows, err := r.db.QueryContext(ctx, r.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return collect(rows, scanSession, "session")
}

func (r *SQLRepository) getSession(ctx context.Context, db queryer, id int64) (*Session, error) {
	q := r.rebind(`SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`)
	s, err := scanSession(db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, wrapNotFound("get session", err)
	}
	return s, nil
}

func (r *SQLRepository) CreateSession(ctx context.Context, in NewSession) (*Session, error) {
	q := r.rebind(`
INSERT INTO sessions (conversation_id, started_at, ended_at, session_type, metadata)
VALUES (?, ?, ?, ?, ?)
RETURNING ` + sessionColumns)
	s, err := scanSession(r.db.QueryRowContext(ctx, q,
		in.ConversationID, encodeTime(in.StartedAt), encodeNullTime(in.EndedAt), in.SessionType, in.Metadata))
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return s, nil
}

func (r *SQLRepository) UpdateSession(ctx context.Context, id int64, patch SessionPatch) (*Session, error) {
	var out *Session
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		s, err := r.getSession(ctx, tx, id)
		if err != nil {
			return err
		}
		updated := patch.apply(*s)
		q := r.rebind(`UPDATE sessions SET ended_at = ?, session_type = ?, metadata = ? WHERE id = ?`)
		if _, err := tx.ExecContext(ctx, q, encodeNullTime(updated.EndedAt), updated.SessionType, updated.Metadata, id); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		out = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// -- Automation rules --

const ruleColumns = `id, name, trigger_event, conditions, actions, is_active`

func scanRule(s scanner) (*AutomationRule, error) {
	var (
		rule       AutomationRule
		conditions sql.NullString
	)
	if err := s.Scan(&rule.ID, &rule.Name, &rule.Trigger, &conditions, &rule.Actions, &rule.IsActive); err != nil {
		return nil, err
	}
	rule.Conditions = stringPtr(conditions)
	return &rule, nil
}

func (r *SQLRepository) ListAutomationRules(ctx context.Context) ([]AutomationRule, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+ruleColumns+` FROM automation_rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list automation rules: %w", err)
	}
	return collect(rows, scanRule, "automation rule")
}

func (r *SQLRepository) GetAutomationRule(ctx context.Context, id int64) (*AutomationRule, error) {
	return r.getRule(ctx, r.db, id)
}

func (r *SQLRepository) getRule(ctx context.Context, db queryer, id int64) (*AutomationRule, error) {
	q := r.rebind(`SELECT ` + ruleColumns + ` FROM automation_rules WHERE id = ?`)
	rule, err := scanRule(db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, wrapNotFound("get automation rule", err)
	}
	return rule, nil
}

func (r *SQLRepository) CreateAutomationRule(ctx context.Context, in NewAutomationRule) (*AutomationRule, error) {
	rule := in.build(0)
	q := r.rebind(`
INSERT INTO automation_rules (name, trigger_event, conditions, actions, is_active)
VALUES (?, ?, ?, ?, ?)
RETURNING ` + ruleColumns)
	out, err := scanRule(r.db.QueryRowContext(ctx, q, rule.Name, rule.Trigger, rule.Conditions, rule.Actions, rule.IsActive))
	if err != nil {
		return nil, fmt.Errorf("insert automation rule: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) UpdateAutomationRule(ctx context.Context, id int64, patch AutomationRulePatch) (*AutomationRule, error) {
	var out *AutomationRule
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		rule, err := r.getRule(ctx, tx, id)
		if err != nil {
			return err
		}
		updated := patch.apply(*rule)
		q := r.rebind(`
UPDATE automation_rules
SET name = ?, trigger_event = ?, conditions = ?, actions = ?, is_active = ?
WHERE id = ?`)
		if _, err := tx.ExecContext(ctx, q, updated.Name, updated.Trigger, updated.Conditions, updated.Actions, updated.IsActive, id); err != nil {
			return fmt.Errorf("update automation rule: %w", err)
		}
		out = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SQLRepository) DeleteAutomationRule(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM automation_rules WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete automation rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// -- helpers --

func collect[T any](rows *sql.Rows, scan func(scanner) (*T, error), what string) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", what, err)
	}
	return out, nil
}

func wrapNotFound(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func encodeNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
		}
	}
	return t.UTC(), nil
}

func decodeNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := decodeTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

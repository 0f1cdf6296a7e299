package repo

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kwikflow/internal/logging"
)

// backends runs fn against every repository implementation that needs no external service.
func backends(t *testing.T, fn func(t *testing.T, r Repository)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemory())
	})
	t.Run("sqlite", func(t *testing.T) {
		ctx := context.Background()
		r, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "test.db"), logging.Discard())
		require.NoError(t, err)
		t.Cleanup(r.Close)
		require.NoError(t, r.RunMigrations(ctx))
		fn(t, r)
	})
}

func base() time.Time {
	return time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
}

func TestConsultationRequestsGetIncreasingIDs(t *testing.T) {
	backends(t, func(t *testing.T, r Repository) {
		ctx := context.Background()
		first, err := r.CreateConsultationRequest(ctx, NewConsultationRequest{
			FullName: "Ann", Email: "ann@example.com", Message: "hi", CreatedAt: base(),
		})
		require.NoError(t, err)
		second, err := r.CreateConsultationRequest(ctx, NewConsultationRequest{
			FullName: "Bob", Email: "bob@example.com", Message: "hello", Company: strPtr("Acme"), CreatedAt: base(),
		})
		require.NoError(t, err)

		require.Equal(t, int64(1), first.ID)
		require.Greater(t, second.ID, first.ID)
		require.Nil(t, first.Company)
		require.Equal(t, "Acme", *second.Company)

		got, err := r.GetConsultationRequest(ctx, second.ID)
		require.NoError(t, err)
		require.Equal(t, "bob@example.com", got.Email)
		require.True(t, got.CreatedAt.Equal(base()))

		all, err := r.ListConsultationRequests(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)

		_, err = r.GetConsultationRequest(ctx, 99)
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestLeadsRoundTrip(t *testing.T) {
	backends(t, func(t *testing.T, r Repository) {
		ctx := context.Background()
		lead, err := r.CreateLead(ctx, NewLead{
			Email:              "lead@example.com",
			InterestedFeatures: "automation,crm",
			PreferredPlan:      strPtr("pro"),
			CreatedAt:          base(),
		})
		require.NoError(t, err)

		got, err := r.GetLead(ctx, lead.ID)
		require.NoError(t, err)
		require.Equal(t, "automation,crm", got.InterestedFeatures)
		require.Equal(t, "pro", *got.PreferredPlan)
		require.Nil(t, got.ContactName)

		leads, err := r.ListLeads(ctx)
		require.NoError(t, err)
		require.Len(t, leads, 1)
	})
}

func TestMessagesListAscendingAndAdvanceConversation(t *testing.T) {
	backends(t, func(t *testing.T, r Repository) {
		ctx := context.Background()
		conv, err := r.CreateConversation(ctx, NewConversation{PhoneNumber: "+27600000000"})
		require.NoError(t, err)
		require.Equal(t, DefaultConversationStatus, conv.Status)
		require.Nil(t, conv.LastMessageAt)

		offsets := []time.Duration{3 * time.Minute, time.Minute, 2 * time.Minute, time.Minute}
		for _, off := range offsets {
			_, err := r.CreateMessage(ctx, NewMessage{
				ConversationID: conv.ID,
				Content:        off.String(),
				Sender:         "user",
				Timestamp:      base().Add(off),
				IsFromUser:     true,
			})
			require.NoError(t, err)
		}

		msgs, err := r.ListMessages(ctx, conv.ID)
		require.NoError(t, err)
		require.Len(t, msgs, len(offsets))
		for i := 1; i < len(msgs); i++ {
			require.False(t, msgs[i].Timestamp.Before(msgs[i-1].Timestamp))
		}
		// equal timestamps keep insertion order
		require.Less(t, msgs[0].ID, msgs[1].ID)
		require.Equal(t, DefaultMessageType, msgs[0].MessageType)
		require.Equal(t, DefaultMessageStatus, msgs[0].Status)
		require.True(t, msgs[0].IsFromUser)

		got, err := r.GetConversation(ctx, conv.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastMessageAt)
		require.True(t, got.LastMessageAt.Equal(base().Add(3*time.Minute)))

		empty, err := r.ListMessages(ctx, 999)
		require.NoError(t, err)
		require.Empty(t, empty)
	})
}

func TestMessageForMissingConversationIsStored(t *testing.T) {
	backends(t, func(t *testing.T, r Repository) {
		ctx := context.Background()
		_, err := r.CreateMessage(ctx, NewMessage{ConversationID: 42, Content: "x", Sender: "user", Timestamp: base()})
		require.NoError(t, err)

		msgs, err := r.ListMessages(ctx, 42)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
	})
}

func TestListConversationsOrder(t *testing.T) {
	backends(t, func(t *testing.T, r Repository) {
		ctx := context.Background()
		older := base().Add(-time.Hour)
		newer := base()

		noMsgs, err := r.CreateConversation(ctx, NewConversation{PhoneNumber: "1"})
		require.NoError(t, err)
		old, err := r.CreateConversation(ctx, NewConversation{PhoneNumber: "2", LastMessageAt: &older})
		require.NoError(t, err)
		recent, err := r.CreateConversation(ctx, NewConversation{PhoneNumber: "3", LastMessageAt: &newer})
		require.NoError(t, err)

		list, err := r.ListConversations(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		require.Equal(t, []int64{recent.ID, old.ID, noMsgs.ID}, []int64{list[0].ID, list[1].ID, list[2].ID})
	})
}

func TestUpdateConversationMergesPatch(t *testing.T) {
	backends(t, func(t *testing.T, r Repository) {
		ctx := context.Background()
		conv, err := r.CreateConversation(ctx, NewConversation{PhoneNumber: "+1", ContactName: strPtr("Ann")})
		require.NoError(t, err)

		closed := "closed"
		got, err := r.UpdateConversation(ctx, conv.ID, ConversationPatch{Status: &closed})
		require.NoError(t, err)
		require.Equal(t, "closed", got.Status)
		require.Equal(t, "Ann", *got.ContactName)

		reread, err := r.GetConversation(ctx, conv.ID)
		require.NoError(t, err)
		require.Equal(t, "closed", reread.Status)

		_, err = r.UpdateConversation(ctx, 999, ConversationPatch{Status: &closed})
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestFindOrCreateConversationIsAtomic(t *testing.T) {
	backends(t, func(t *testing.T, r Repository) {
		ctx := context.Background()
		const workers = 8

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
			errs    []error
			ids     = map[int64]struct{}{}
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c, isNew, err := r.FindOrCreateConversation(ctx, NewConversation{PhoneNumber: "+27611111111"})
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
					return
				}
				if isNew {
					created++
				}
				ids[c.ID] = struct{}{}
			}()
		}
		wg.Wait()

		require.Empty(t, errs)
		require.Equal(t, 1, created)
		require.Len(t, ids, 1)

		found, err := r.FindConversationByPhone(ctx, "+27611111111")
		require.NoError(t, err)
		_, ok := ids[found.ID]
		require.True(t, ok)

		_, err = r.FindConversationByPhone(ctx, "+0")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestAutomationRuleLifecycle(t *testing.T) {
	backends(t, func(t *testing.T, r Repository) {
		ctx := context.Background()
		rule, err := r.CreateAutomationRule(ctx, NewAutomationRule{
			Name:       "Welcome",
			Trigger:    TriggerNewConversation,
			Conditions: strPtr(`{"keywords":["hi"]}`),
			Actions:    `[{"type":"send_message","content":"hey"}]`,
		})
		require.NoError(t, err)
		require.True(t, rule.IsActive)

		inactive := false
		noConditions := ""
		updated, err := r.UpdateAutomationRule(ctx, rule.ID, AutomationRulePatch{IsActive: &inactive, Conditions: &noConditions})
		require.NoError(t, err)
		require.False(t, updated.IsActive)
		require.Nil(t, updated.Conditions)
		require.Equal(t, "Welcome", updated.Name)

		list, err := r.ListAutomationRules(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.False(t, list[0].IsActive)

		require.NoError(t, r.DeleteAutomationRule(ctx, rule.ID))
		_, err = r.GetAutomationRule(ctx, rule.ID)
		require.ErrorIs(t, err, ErrNotFound)
		require.ErrorIs(t, r.DeleteAutomationRule(ctx, rule.ID), ErrNotFound)
		_, err = r.UpdateAutomationRule(ctx, rule.ID, AutomationRulePatch{IsActive: &inactive})
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSessionsFilterAndUpdate(t *testing.T) {
	backends(t, func(t *testing.T, r Repository) {
		ctx := context.Background()
		a, err := r.CreateSession(ctx, NewSession{ConversationID: 1, StartedAt: base(), SessionType: "support"})
		require.NoError(t, err)
		_, err = r.CreateSession(ctx, NewSession{ConversationID: 2, StartedAt: base(), SessionType: "sales"})
		require.NoError(t, err)

		all, err := r.ListSessions(ctx, nil)
		require.NoError(t, err)
		require.Len(t, all, 2)

		conv := int64(1)
		filtered, err := r.ListSessions(ctx, &conv)
		require.NoError(t, err)
		require.Len(t, filtered, 1)
		require.Equal(t, a.ID, filtered[0].ID)

		ended := base().Add(time.Hour)
		got, err := r.UpdateSession(ctx, a.ID, SessionPatch{EndedAt: &ended})
		require.NoError(t, err)
		require.True(t, got.EndedAt.Equal(ended))
		require.Equal(t, "support", got.SessionType)

		_, err = r.UpdateSession(ctx, 999, SessionPatch{EndedAt: &ended})
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUsersRejectDuplicateUsername(t *testing.T) {
	backends(t, func(t *testing.T, r Repository) {
		ctx := context.Background()
		u, err := r.CreateUser(ctx, NewUser{Username: "admin", PasswordHash: "hash"})
		require.NoError(t, err)

		got, err := r.GetUserByUsername(ctx, "admin")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)
		require.Equal(t, "hash", got.PasswordHash)

		_, err = r.CreateUser(ctx, NewUser{Username: "admin", PasswordHash: "other"})
		require.ErrorIs(t, err, ErrDuplicate)

		_, err = r.GetUser(ctx, 999)
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSeedDemoDataIsIdempotent(t *testing.T) {
	backends(t, func(t *testing.T, r Repository) {
		ctx := context.Background()
		now := base()
		require.NoError(t, SeedDemoData(ctx, r, now))
		require.NoError(t, SeedDemoData(ctx, r, now))

		convs, err := r.ListConversations(ctx)
		require.NoError(t, err)
		require.Len(t, convs, 2)
		require.Equal(t, "+27612345678", convs[0].PhoneNumber)
		require.True(t, convs[0].LastMessageAt.Equal(now))

		msgs, err := r.ListMessages(ctx, convs[0].ID)
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		require.Equal(t, "delivered", msgs[0].Status)

		rules, err := r.ListAutomationRules(ctx)
		require.NoError(t, err)
		require.Len(t, rules, 2)
		require.Nil(t, rules[0].Conditions)
		require.Equal(t, TriggerMessageReceived, rules[1].Trigger)
	})
}

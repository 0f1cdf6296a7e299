package automation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kwikflow/internal/logging"
	"kwikflow/internal/repo"
)

func ptr(s string) *string { return &s }

func engine() *Engine {
	return New(BusinessHours{Start: 9, End: 17, Location: time.UTC}, logging.Discard())
}

// Thursday 14 March 2024.
func at(hour int) time.Time {
	return time.Date(2024, 3, 14, hour, 0, 0, 0, time.UTC)
}

func TestBusinessHours(t *testing.T) {
	h := BusinessHours{Start: 9, End: 17, Location: time.UTC}
	require.True(t, h.Contains(at(9)))
	require.True(t, h.Contains(at(16)))
	require.False(t, h.Contains(at(17)))
	require.False(t, h.Contains(at(3)))
	require.False(t, h.Contains(time.Date(2024, 3, 16, 12, 0, 0, 0, time.UTC)), "saturday")
}

func TestEvaluateMatchesTriggerAndActiveFlag(t *testing.T) {
	rules := []repo.AutomationRule{
		{ID: 1, Name: "welcome", Trigger: repo.TriggerNewConversation, Actions: `[{"type":"send_message","content":"Welcome!"}]`, IsActive: true},
		{ID: 2, Name: "off", Trigger: repo.TriggerNewConversation, Actions: `[{"type":"send_message","content":"nope"}]`, IsActive: false},
		{ID: 3, Name: "reply", Trigger: repo.TriggerMessageReceived, Actions: `[{"type":"send_message","content":"got it"}]`, IsActive: true},
	}

	matches := engine().Evaluate(rules, Event{Trigger: repo.TriggerNewConversation, Text: "hi", At: at(10)})
	require.Len(t, matches, 1)
	require.Equal(t, int64(1), matches[0].Rule.ID)
	require.Equal(t, []Action{{Type: ActionSendMessage, Content: "Welcome!"}}, matches[0].Actions)
}

func TestEvaluateBusinessHoursCondition(t *testing.T) {
	rules := []repo.AutomationRule{{
		ID:         1,
		Trigger:    repo.TriggerMessageReceived,
		Conditions: ptr(`{"outside_business_hours":true}`),
		Actions:    `[{"type":"send_message","content":"We're closed"}]`,
		IsActive:   true,
	}}

	require.Empty(t, engine().Evaluate(rules, Event{Trigger: repo.TriggerMessageReceived, At: at(11)}))
	require.Len(t, engine().Evaluate(rules, Event{Trigger: repo.TriggerMessageReceived, At: at(20)}), 1)
}

func TestEvaluateKeywordCondition(t *testing.T) {
	rules := []repo.AutomationRule{{
		ID:         1,
		Trigger:    repo.TriggerMessageReceived,
		Conditions: ptr(`{"keywords":["Track","refund"]}`),
		Actions:    `[{"type":"send_message","content":"Tracking link coming up"}]`,
		IsActive:   true,
	}}

	require.Len(t, engine().Evaluate(rules, Event{Trigger: repo.TriggerMessageReceived, Text: "I'd like to TRACK my package", At: at(10)}), 1)
	require.Empty(t, engine().Evaluate(rules, Event{Trigger: repo.TriggerMessageReceived, Text: "hello", At: at(10)}))
}

func TestEvaluateSkipsMalformedRules(t *testing.T) {
	rules := []repo.AutomationRule{
		{ID: 1, Trigger: repo.TriggerMessageReceived, Conditions: ptr(`{oops`), Actions: `[]`, IsActive: true},
		{ID: 2, Trigger: repo.TriggerMessageReceived, Actions: `not json`, IsActive: true},
		{ID: 3, Trigger: repo.TriggerMessageReceived, Actions: `[{"type":"assign_agent","content":"x"}]`, IsActive: true},
		{ID: 4, Trigger: repo.TriggerMessageReceived, Actions: `[{"type":"send_message","content":"ok"}]`, IsActive: true},
	}

	matches := engine().Evaluate(rules, Event{Trigger: repo.TriggerMessageReceived, At: at(10)})
	require.Len(t, matches, 1)
	require.Equal(t, int64(4), matches[0].Rule.ID)
}

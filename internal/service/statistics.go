package service

import (
	"context"
	"fmt"
	"time"

	"kwikflow/internal/repo"
)

// Statistics is the dashboard summary.
type Statistics struct {
	TotalConversations    int `json:"totalConversations"`
	ActiveConversations   int `json:"activeConversations"`
	TotalMessages         int `json:"totalMessages"`
	MessagesToday         int `json:"messagesToday"`
	ActiveAutomationRules int `json:"activeAutomationRules"`
	TotalAutomationRules  int `json:"totalAutomationRules"`
}

// Statistics recomputes the summary on every call. Only messages that belong to an
// existing conversation are counted; "today" is the current calendar day in the
// configured location.
func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	var stats Statistics

	convs, err := s.repo.ListConversations(ctx)
	if err != nil {
		return stats, fmt.Errorf("statistics: %w", err)
	}
	stats.TotalConversations = len(convs)

	now := s.now().In(s.loc)
	for _, c := range convs {
		if c.Status == repo.DefaultConversationStatus {
			stats.ActiveConversations++
		}
		msgs, err := s.repo.ListMessages(ctx, c.ID)
		if err != nil {
			return stats, fmt.Errorf("statistics: %w", err)
		}
		stats.TotalMessages += len(msgs)
		for _, m := range msgs {
			if sameDay(m.Timestamp.In(s.loc), now) {
				stats.MessagesToday++
			}
		}
	}

	rules, err := s.repo.ListAutomationRules(ctx)
	if err != nil {
		return stats, fmt.Errorf("statistics: %w", err)
	}
	stats.TotalAutomationRules = len(rules)
	for _, r := range rules {
		if r.IsActive {
			stats.ActiveAutomationRules++
		}
	}
	return stats, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

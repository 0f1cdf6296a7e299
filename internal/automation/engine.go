package automation

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"kwikflow/internal/repo"
)

// ActionSendMessage replies to the conversation with Content.
const ActionSendMessage = "send_message"

// Action is one entry of a rule's actions array.
type Action struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Conditions is the optional JSON object attached to a rule. Every present
// condition must hold for the rule to fire.
type Conditions struct {
	OutsideBusinessHours *bool    `json:"outside_business_hours"`
	Keywords             []string `json:"keywords"`
}

// Event describes what happened on a conversation.
type Event struct {
	Trigger string
	Text    string
	At      time.Time
}

// BusinessHours is the Monday to Friday window [Start, End) in hours of Location.
type BusinessHours struct {
	Start    int
	End      int
	Location *time.Location
}

// Contains reports whether t falls inside business hours.
func (h BusinessHours) Contains(t time.Time) bool {
	loc := h.Location
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	hour := local.Hour()
	return hour >= h.Start && hour < h.End
}

// Match is a rule that fired together with the actions to run.
type Match struct {
	Rule    repo.AutomationRule
	Actions []Action
}

// Engine selects the automation rules that apply to an event.
type Engine struct {
	hours  BusinessHours
	logger *slog.Logger
}

// New returns an Engine evaluating time conditions against hours.
func New(hours BusinessHours, logger *slog.Logger) *Engine {
	return &Engine{hours: hours, logger: logger.With("component", "automation")}
}

// Evaluate returns, in rule order, the active rules whose trigger and conditions match ev.
// Rules with malformed JSON are skipped.
func (e *Engine) Evaluate(rules []repo.AutomationRule, ev Event) []Match {
	var out []Match
	for _, rule := range rules {
		if !rule.IsActive || rule.Trigger != ev.Trigger {
			continue
		}
		logger := e.logger.With("rule_id", rule.ID, "rule", rule.Name)

		var cond Conditions
		if rule.Conditions != nil && strings.TrimSpace(*rule.Conditions) != "" {
			if err := json.Unmarshal([]byte(*rule.Conditions), &cond); err != nil {
				logger.Warn("skipping rule with invalid conditions", "error", err)
				continue
			}
		}
		if !e.holds(cond, ev) {
			continue
		}

		var actions []Action
		if err := json.Unmarshal([]byte(rule.Actions), &actions); err != nil {
			logger.Warn("skipping rule with invalid actions", "error", err)
			continue
		}
		supported := actions[:0]
		for _, a := range actions {
			if a.Type != ActionSendMessage || strings.TrimSpace(a.Content) == "" {
				logger.Warn("ignoring unsupported action", "type", a.Type)
				continue
			}
			supported = append(supported, a)
		}
		if len(supported) == 0 {
			continue
		}
		out = append(out, Match{Rule: rule, Actions: supported})
	}
	return out
}

func (e *Engine) holds(cond Conditions, ev Event) bool {
	if cond.OutsideBusinessHours != nil {
		outside := !e.hours.Contains(ev.At)
		if outside != *cond.OutsideBusinessHours {
			return false
		}
	}
	if len(cond.Keywords) > 0 {
		text := strings.ToLower(ev.Text)
		found := false
		for _, kw := range cond.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" && strings.Contains(text, kw) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

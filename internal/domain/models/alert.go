package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RuleKind is the closed set of alert rule kinds.
type RuleKind string

const (
	RuleAbove         RuleKind = "above"          // fire when modal >= threshold
	RuleBelow         RuleKind = "below"          // fire when modal <= threshold
	RuleChangePercent RuleKind = "change_percent" // fire on |change| vs previous point
)

// ParseRuleKind validates a kind string.
func ParseRuleKind(s string) (RuleKind, error) {
	switch RuleKind(s) {
	case RuleAbove, RuleBelow, RuleChangePercent:
		return RuleKind(s), nil
	}
	return "", fmt.Errorf("unknown rule kind %q", s)
}

// TriggerState is the per-rule latch position.
type TriggerState string

const (
	StateArmed     TriggerState = "armed"
	StateTriggered TriggerState = "triggered" // transient, between CAS and handoff
	StateCooldown  TriggerState = "cooldown"
)

// AlertRule is a user-owned price alert. Creating a rule never evaluates
// retroactively against already-stored points; the latch starts armed and
// only newly ingested observations can fire it.
type AlertRule struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"owner_id"`
	Commodity     string          `json:"commodity"`
	Market        string          `json:"market"`
	Kind          RuleKind        `json:"kind"`
	Threshold     decimal.Decimal `json:"threshold"`
	ChangePercent decimal.Decimal `json:"change_percent,omitempty"` // only for RuleChangePercent
	Active        bool            `json:"active"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Matches reports whether a point belongs to the rule's series.
func (r AlertRule) Matches(p PricePoint) bool {
	return r.Active && r.Commodity == p.Commodity && r.Market == p.Market
}

// TriggerStatus is the mutable latch attached to a rule. It is written only
// by the evaluator; user actions never touch it.
type TriggerStatus struct {
	State            TriggerState    `json:"state"`
	LastTriggerValue decimal.Decimal `json:"last_trigger_value"`
	LastTriggeredAt  time.Time       `json:"last_triggered_at"`
}

// NotificationTopic is the message type fired alerts are published under.
const NotificationTopic = "notification.fired"

// NotificationEvent is the record handed to the dispatcher when a rule
// fires. EventID is monotonically increasing for downstream deduplication.
type NotificationEvent struct {
	EventID   int64           `json:"event_id"`
	RuleID    string          `json:"rule_id"`
	OwnerID   string          `json:"owner_id"`
	Kind      RuleKind        `json:"kind"`
	Threshold decimal.Decimal `json:"threshold"`
	Observed  decimal.Decimal `json:"observed"`
	Point     PricePoint      `json:"point"`
	FiredAt   time.Time       `json:"fired_at"`
}

package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Webhook processing outcomes, recorded so silent-by-design no-ops stay
// distinguishable from silent-by-bug ones.
const (
	WebhookOutcomeApplied   = "applied"
	WebhookOutcomeNoMatch   = "no_match"
	WebhookOutcomeUnknown   = "unknown_event"
	WebhookOutcomeFailed    = "failed"
)

type WebhookEvent struct {
	gorm.Model
	EventID     string         `json:"event_id" gorm:"uniqueIndex;size:128;not null"`
	EventType   string         `json:"event_type" gorm:"size:64;index"`
	Outcome     string         `json:"outcome" gorm:"size:32"`
	ProcessedAt *time.Time     `json:"processed_at"`
	Payload     datatypes.JSON `json:"payload"`
}

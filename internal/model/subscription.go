package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Plan Types
type PlanType string

const (
	PlanBasic        PlanType = "basic"
	PlanPremium      PlanType = "premium"
	PlanProfessional PlanType = "professional"
)

// Plan Durations
type PlanDuration string

const (
	DurationMonthly  PlanDuration = "monthly"
	DurationYearly   PlanDuration = "yearly"
	DurationLifetime PlanDuration = "lifetime"
)

// Subscription Status
const (
	SubStatusActive    = "active"
	SubStatusSuspended = "suspended"
	SubStatusPastDue   = "past_due"
	SubStatusCanceled  = "canceled"
)

type Subscription struct {
	gorm.Model
	UserID            uint         `json:"user_id" gorm:"index"`
	PlanType          PlanType     `json:"plan_type" gorm:"size:32;not null"`
	PlanDuration      PlanDuration `json:"plan_duration" gorm:"size:32;not null"`
	Status            string       `json:"status" gorm:"size:32;index;default:'active'"`
	StartDate         time.Time    `json:"start_date"`
	EndDate           time.Time    `json:"end_date"`
	AutoRenew         bool         `json:"auto_renew"`
	CancelAtPeriodEnd bool         `json:"cancel_at_period_end" gorm:"default:false"`
	PaymentMethod     string       `json:"payment_method" gorm:"size:32"`
	// Provider order/subscription id. Webhook handlers correlate on this,
	// never on the local primary key.
	PaymentID string         `json:"payment_id" gorm:"uniqueIndex;size:64"`
	Metadata  datatypes.JSON `json:"metadata" gorm:"default:'{}'"`

	User User `json:"-" gorm:"foreignKey:UserID"`
}

// IsLifetime reports whether this subscription never renews.
func (s *Subscription) IsLifetime() bool {
	return s.PlanDuration == DurationLifetime
}

// PeriodEnd returns start advanced by one plan interval.
func PeriodEnd(start time.Time, duration PlanDuration) time.Time {
	switch duration {
	case DurationMonthly:
		return start.AddDate(0, 1, 0)
	case DurationYearly:
		return start.AddDate(1, 0, 0)
	default:
		// Lifetime plans are approximated as a century.
		return start.AddDate(100, 0, 0)
	}
}

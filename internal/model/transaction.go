package model

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Transaction Status
const (
	TxStatusCompleted = "completed"
	TxStatusFailed    = "failed"
	TxStatusRefunded  = "refunded"
)

// Transaction Types
const (
	TxTypeSubscription = "subscription"
	TxTypeOneTime      = "one-time"
)

type Transaction struct {
	gorm.Model
	UserID        uint    `json:"user_id" gorm:"index"`
	Amount        float64 `json:"amount" gorm:"not null"`
	Currency      string  `json:"currency" gorm:"size:8;not null"`
	Status        string  `json:"status" gorm:"size:32;index"`
	Type          string  `json:"type" gorm:"size:32"`
	PaymentMethod string  `json:"payment_method" gorm:"size:32"`
	// Provider capture id. One row per capture event; refund webhooks
	// locate the row through this column.
	PaymentID    string         `json:"payment_id" gorm:"uniqueIndex;size:64"`
	PlanType     PlanType       `json:"plan_type" gorm:"size:32"`
	PlanDuration PlanDuration   `json:"plan_duration" gorm:"size:32"`
	Metadata     datatypes.JSON `json:"metadata" gorm:"default:'{}'"`

	User User `json:"-" gorm:"foreignKey:UserID"`
}

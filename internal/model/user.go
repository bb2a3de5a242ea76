package model

import (
	"strings"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Email    string `json:"email" gorm:"uniqueIndex;not null"`
	Username string `json:"username" gorm:"uniqueIndex;not null"`

	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Avatar    string `json:"avatar"`

	// Session issuance is delegated to the external OAuth provider; these
	// two columns link the local user to that identity.
	AuthProvider string `json:"auth_provider" gorm:"size:32"`
	AuthSubject  string `json:"auth_subject" gorm:"index;size:128"`

	// Denormalized copy of the current provider plan id, written
	// best-effort alongside Subscription upserts. Display only; the
	// Subscription row stays the source of truth for entitlement.
	SubscriptionPlan string `json:"subscription_plan"`

	// Relations
	Recipes       []Recipe       `json:"-"`
	Subscriptions []Subscription `json:"-"`
}

func (u *User) GetFullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) GetPublicProfile() map[string]interface{} {
	return map[string]interface{}{
		"id":                u.ID,
		"username":          u.Username,
		"full_name":         u.GetFullName(),
		"avatar":            u.Avatar,
		"subscription_plan": u.SubscriptionPlan,
	}
}

package cron

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"mealmate_backend/internal/model"
	"mealmate_backend/pkg/database"
	"mealmate_backend/pkg/email"
)

func InitSubscriptionExpiryCron() {
	c := cron.New()

	_, err := c.AddFunc("0 9 * * *", func() {
		expireLapsedSubscriptions()
		warnExpiringSubscriptions()
	})

	if err != nil {
		log.Printf("Could not initialize subscription expiry cron: %v", err)
		return
	}

	c.Start()
}

// expireLapsedSubscriptions cancels non-renewing subscriptions whose paid
// period has ended. Renewing ones are left to the provider's webhooks.
func expireLapsedSubscriptions() {
	log.Println("Checking for lapsed subscriptions...")

	result := database.DB.Model(&model.Subscription{}).
		Where("status = ? AND auto_renew = ? AND end_date < ?", model.SubStatusActive, false, time.Now()).
		Updates(map[string]interface{}{
			"status":               model.SubStatusCanceled,
			"cancel_at_period_end": true,
		})

	if result.Error != nil {
		log.Printf("Error expiring lapsed subscriptions: %v", result.Error)
		return
	}
	if result.RowsAffected > 0 {
		log.Printf("Expired %d lapsed subscriptions", result.RowsAffected)
	}
}

func warnExpiringSubscriptions() {
	warningDays := []int{7, 3}

	for _, days := range warningDays {
		var subs []model.Subscription
		windowStart := time.Now().AddDate(0, 0, days).Truncate(24 * time.Hour)
		windowEnd := windowStart.Add(24 * time.Hour)

		err := database.DB.Where("status = ? AND auto_renew = ? AND end_date >= ? AND end_date < ?",
			model.SubStatusActive, false, windowStart, windowEnd).
			Preload("User").
			Find(&subs).Error

		if err != nil {
			log.Printf("Error fetching expiring subscriptions: %v", err)
			continue
		}

		log.Printf("Found %d subscriptions expiring in %d days", len(subs), days)

		for _, sub := range subs {
			if email.GlobalEmailService == nil {
				continue
			}
			err := email.GlobalEmailService.SendSubscriptionExpiryWarning(
				sub.User.Email,
				string(sub.PlanType),
				sub.EndDate,
				days,
			)
			if err != nil {
				log.Printf("Error sending expiry warning to %s: %v", sub.User.Email, err)
			}
		}
	}
}

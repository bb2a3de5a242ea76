package cron

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"mealmate_backend/internal/model"
	"mealmate_backend/pkg/database"
	"mealmate_backend/pkg/paypal"
)

// InitReconciliationCron starts the periodic sweep that re-syncs
// non-terminal recurring subscriptions against the provider. It closes
// the window where a capture succeeded but the matching webhook or local
// write was lost.
func InitReconciliationCron(client *paypal.Client) {
	c := cron.New()

	_, err := c.AddFunc("30 */6 * * *", func() {
		reconcileSubscriptions(client)
	})

	if err != nil {
		log.Printf("Could not initialize reconciliation cron: %v", err)
		return
	}

	c.Start()
}

var providerToLocalStatus = map[string]string{
	"ACTIVE":    model.SubStatusActive,
	"SUSPENDED": model.SubStatusSuspended,
	"CANCELLED": model.SubStatusCanceled,
	"EXPIRED":   model.SubStatusCanceled,
}

func reconcileSubscriptions(client *paypal.Client) {
	log.Println("Reconciling subscriptions against provider state...")

	var subs []model.Subscription
	err := database.DB.Where("status IN ? AND auto_renew = ?",
		[]string{model.SubStatusActive, model.SubStatusSuspended, model.SubStatusPastDue}, true).
		Find(&subs).Error
	if err != nil {
		log.Printf("Error listing subscriptions for reconciliation: %v", err)
		return
	}

	for _, sub := range subs {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		providerSub, err := client.GetSubscription(ctx, sub.PaymentID)
		cancel()

		if err != nil {
			// One-time orders have no provider subscription object; a
			// 404 here is expected, not drift.
			if !errors.Is(err, paypal.ErrNotFound) {
				log.Printf("Reconciliation: could not fetch subscription %s: %v", sub.PaymentID, err)
			}
			continue
		}

		localStatus, ok := providerToLocalStatus[providerSub.Status]
		if !ok || localStatus == sub.Status {
			continue
		}

		log.Printf("Reconciliation: subscription %s drifted (local=%s provider=%s), converging",
			sub.PaymentID, sub.Status, providerSub.Status)

		updates := map[string]interface{}{"status": localStatus}
		if localStatus == model.SubStatusCanceled {
			updates["cancel_at_period_end"] = true
		}
		if err := database.DB.Model(&model.Subscription{}).Where("id = ?", sub.ID).
			Updates(updates).Error; err != nil {
			log.Printf("Reconciliation: could not update subscription %d: %v", sub.ID, err)
		}
	}
}

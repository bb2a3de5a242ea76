package payment

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mealmate_backend/internal/model"
)

// Repository is the persistence contract consumed by the checkout,
// capture and webhook paths. Idempotency-sensitive writes (one
// transaction per capture, one webhook event row per delivery) are
// enforced here, at the storage layer, not by caller sequencing.
type Repository interface {
	FindActiveSubscriptionByUser(userID uint) (*model.Subscription, error)
	FindSubscriptionByPaymentID(paymentID string) (*model.Subscription, error)
	CreateSubscription(sub *model.Subscription) error
	SaveSubscription(sub *model.Subscription) error
	ListSubscriptionsByStatus(statuses ...string) ([]model.Subscription, error)

	FindTransactionByPaymentID(paymentID string) (*model.Transaction, error)
	CreateTransactionIfNotExists(tx *model.Transaction) (bool, error)
	SaveTransaction(tx *model.Transaction) error

	UpdateUserSubscriptionPlan(userID uint, planID string) error
	GetUserEmail(userID uint) (string, error)

	CreateWebhookEventIfNotExists(event *model.WebhookEvent) (bool, error)
	MarkWebhookProcessed(eventID, outcome string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payment repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindActiveSubscriptionByUser(userID uint) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.Where("user_id = ? AND status = ?", userID, model.SubStatusActive).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) FindSubscriptionByPaymentID(paymentID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.Where("payment_id = ?", paymentID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) CreateSubscription(sub *model.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *gormRepository) SaveSubscription(sub *model.Subscription) error {
	return r.db.Save(sub).Error
}

func (r *gormRepository) ListSubscriptionsByStatus(statuses ...string) ([]model.Subscription, error) {
	var subs []model.Subscription
	err := r.db.Where("status IN ?", statuses).Find(&subs).Error
	return subs, err
}

func (r *gormRepository) FindTransactionByPaymentID(paymentID string) (*model.Transaction, error) {
	var tx model.Transaction
	err := r.db.Where("payment_id = ?", paymentID).First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// CreateTransactionIfNotExists inserts keyed on the provider capture id.
// A duplicate capture (retried callback, replayed webhook) leaves the
// original row untouched; the struct is reloaded either way.
func (r *gormRepository) CreateTransactionIfNotExists(tx *model.Transaction) (bool, error) {
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "payment_id"}},
		DoNothing: true,
	}).Create(tx)
	if res.Error != nil {
		return false, res.Error
	}

	created := res.RowsAffected > 0
	if err := r.db.Where("payment_id = ?", tx.PaymentID).First(tx).Error; err != nil {
		return false, err
	}
	return created, nil
}

func (r *gormRepository) SaveTransaction(tx *model.Transaction) error {
	return r.db.Save(tx).Error
}

func (r *gormRepository) UpdateUserSubscriptionPlan(userID uint, planID string) error {
	return r.db.Model(&model.User{}).Where("id = ?", userID).
		Update("subscription_plan", planID).Error
}

func (r *gormRepository) GetUserEmail(userID uint) (string, error) {
	var user model.User
	if err := r.db.Select("email").First(&user, userID).Error; err != nil {
		return "", err
	}
	return user.Email, nil
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *model.WebhookEvent) (bool, error) {
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(event)
	if res.Error != nil {
		return false, res.Error
	}

	created := res.RowsAffected > 0
	if err := r.db.Where("event_id = ?", event.EventID).First(event).Error; err != nil {
		return false, err
	}
	return created, nil
}

func (r *gormRepository) MarkWebhookProcessed(eventID, outcome string) error {
	now := time.Now()
	return r.db.Model(&model.WebhookEvent{}).Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"outcome":      outcome,
			"processed_at": &now,
		}).Error
}

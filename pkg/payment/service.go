package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"mealmate_backend/internal/model"
	"mealmate_backend/pkg/email"
	"mealmate_backend/pkg/paypal"
	"mealmate_backend/pkg/plans"
)

// ErrNotRecurring rejects recurring checkout for plans without a
// registered provider billing plan (lifetime deals).
var ErrNotRecurring = errors.New("payment: plan does not support recurring billing")

const paymentMethodPayPal = "paypal"

var validate = validator.New()

// ProviderClient is the slice of the PayPal client the payment service
// depends on. *paypal.Client satisfies it; tests substitute a fake.
type ProviderClient interface {
	CreateOrder(ctx context.Context, in paypal.OrderRequest) (*paypal.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*paypal.Order, error)
	GetOrder(ctx context.Context, orderID string) (*paypal.Order, error)
	CreateSubscription(ctx context.Context, in paypal.SubscriptionRequest) (*paypal.Subscription, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*paypal.Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID, reason string) error
}

type Service struct {
	repo     Repository
	provider ProviderClient

	// now is swapped in tests to pin period boundaries.
	now func() time.Time
}

func NewService(repo Repository, provider ProviderClient) *Service {
	return &Service{
		repo:     repo,
		provider: provider,
		now:      time.Now,
	}
}

type CheckoutInput struct {
	PlanID       string  `json:"plan_id" validate:"required"`
	PlanName     string  `json:"plan_name"`
	PlanDuration string  `json:"plan_duration"`
	Price        float64 `json:"price"`

	Recurring       bool   `json:"recurring"`
	SubscriberName  string `json:"subscriber_name"`
	SubscriberEmail string `json:"subscriber_email" validate:"omitempty,email"`
}

type CheckoutResult struct {
	ApprovalURL string `json:"approval_url"`
	// Provider order id (one-time) or subscription id (recurring).
	CorrelationID string `json:"correlation_id"`
}

// CreateCheckout turns a plan selection into a provider order or
// subscription and returns the approval redirect. No local rows are
// written here; abandoning checkout must leave nothing behind.
func (s *Service) CreateCheckout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	plan, err := plans.Lookup(in.PlanID)
	if err != nil {
		return nil, err
	}
	if in.Price != 0 && in.Price != plan.Price {
		// The catalog price wins; a mismatch is either a stale client or
		// someone probing the price field.
		log.Printf("checkout: price mismatch for plan %s: caller sent %.0f, catalog says %.0f", plan.ID, in.Price, plan.Price)
	}

	if in.Recurring {
		if plan.ProviderPlanID == "" {
			return nil, ErrNotRecurring
		}
		sub, err := s.provider.CreateSubscription(ctx, paypal.SubscriptionRequest{
			ProviderPlanID:  plan.ProviderPlanID,
			PlanID:          plan.ID,
			SubscriberName:  in.SubscriberName,
			SubscriberEmail: in.SubscriberEmail,
		})
		if err != nil {
			return nil, err
		}
		return &CheckoutResult{
			ApprovalURL:   paypal.ApprovalURL(sub.Links),
			CorrelationID: sub.ID,
		}, nil
	}

	order, err := s.provider.CreateOrder(ctx, paypal.OrderRequest{
		PlanID:   plan.ID,
		Amount:   formatAmount(plan.Price),
		Currency: plan.Currency,
	})
	if err != nil {
		return nil, err
	}
	return &CheckoutResult{
		ApprovalURL:   paypal.ApprovalURL(order.Links),
		CorrelationID: order.ID,
	}, nil
}

type CaptureResult struct {
	TransactionID uint   `json:"transaction_id"`
	CaptureID     string `json:"capture_id"`
}

// CapturePayment finalizes an approved order on the user's return and
// idempotently upserts the local Subscription and Transaction records.
// Any provider-side failure aborts before the first local write.
func (s *Service) CapturePayment(ctx context.Context, userID uint, orderID string) (*CaptureResult, error) {
	order, err := s.provider.CaptureOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	capture := order.FirstCapture()
	planID := order.ReferenceID()
	if capture == nil || planID == "" {
		// Some capture responses come back minimal; the order read has
		// the full reference data.
		order, err = s.provider.GetOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		capture = order.FirstCapture()
		planID = order.ReferenceID()
	}
	if capture == nil {
		return nil, fmt.Errorf("payment: order %s has no capture", orderID)
	}

	amount, err := strconv.ParseFloat(capture.Amount.Value, 64)
	if err != nil {
		return nil, fmt.Errorf("payment: unparseable capture amount %q: %w", capture.Amount.Value, err)
	}

	planType, planDuration := plans.Resolve(planID)
	startDate := s.now()
	endDate := model.PeriodEnd(startDate, planDuration)

	tx := &model.Transaction{
		UserID:        userID,
		Amount:        amount,
		Currency:      capture.Amount.CurrencyCode,
		Status:        model.TxStatusCompleted,
		Type:          model.TxTypeSubscription,
		PaymentMethod: paymentMethodPayPal,
		PaymentID:     capture.ID,
		PlanType:      planType,
		PlanDuration:  planDuration,
		Metadata:      mustJSON(map[string]string{"order_id": orderID, "plan_id": planID}),
	}
	created, err := s.repo.CreateTransactionIfNotExists(tx)
	if err != nil {
		return nil, err
	}
	if !created {
		log.Printf("capture: transaction for capture %s already recorded, replaying upsert", capture.ID)
	}

	sub, err := s.repo.FindActiveSubscriptionByUser(userID)
	switch {
	case err == nil:
		// Renewal or plan change: mutate in place, keep the original
		// start date.
		sub.PlanType = planType
		sub.PlanDuration = planDuration
		sub.EndDate = endDate
		sub.AutoRenew = planDuration != model.DurationLifetime
		sub.PaymentMethod = paymentMethodPayPal
		sub.PaymentID = orderID
		sub.Metadata = mustJSON(map[string]string{"order_id": orderID, "capture_id": capture.ID})
		if err := s.repo.SaveSubscription(sub); err != nil {
			return nil, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		sub = &model.Subscription{
			UserID:        userID,
			PlanType:      planType,
			PlanDuration:  planDuration,
			Status:        model.SubStatusActive,
			StartDate:     startDate,
			EndDate:       endDate,
			AutoRenew:     planDuration != model.DurationLifetime,
			PaymentMethod: paymentMethodPayPal,
			PaymentID:     orderID,
			Metadata:      mustJSON(map[string]string{"order_id": orderID, "capture_id": capture.ID}),
		}
		if err := s.repo.CreateSubscription(sub); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	// Cache write only; the Subscription row stays the source of truth.
	if err := s.repo.UpdateUserSubscriptionPlan(userID, planID); err != nil {
		log.Printf("capture: could not update user %d plan cache: %v", userID, err)
	}

	if email.GlobalEmailService != nil {
		if to, err := s.repo.GetUserEmail(userID); err == nil {
			if err := email.GlobalEmailService.SendSubscriptionStartedEmail(to, string(planType), string(planDuration), endDate); err != nil {
				log.Printf("capture: could not send subscription email: %v", err)
			}
		}
	}

	return &CaptureResult{TransactionID: tx.ID, CaptureID: capture.ID}, nil
}

// CancelUserSubscription handles user-initiated cancellation: cancel at
// the provider first (already-canceled is a no-op there), then flip the
// local status.
func (s *Service) CancelUserSubscription(ctx context.Context, userID uint, reason string) (*model.Subscription, error) {
	sub, err := s.repo.FindActiveSubscriptionByUser(userID)
	if err != nil {
		return nil, err
	}

	if !sub.IsLifetime() {
		if err := s.provider.CancelSubscription(ctx, sub.PaymentID, reason); err != nil && !errors.Is(err, paypal.ErrNotFound) {
			return nil, err
		}
	}

	sub.Status = model.SubStatusCanceled
	sub.CancelAtPeriodEnd = true
	if err := s.repo.SaveSubscription(sub); err != nil {
		return nil, err
	}

	if email.GlobalEmailService != nil {
		if to, err := s.repo.GetUserEmail(userID); err == nil {
			if err := email.GlobalEmailService.SendSubscriptionCanceledEmail(to, string(sub.PlanType)); err != nil {
				log.Printf("cancel: could not send cancellation email: %v", err)
			}
		}
	}

	return sub, nil
}

func formatAmount(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}

func mustJSON(v interface{}) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(raw)
}

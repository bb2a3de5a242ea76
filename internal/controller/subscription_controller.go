package controller

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"

	"mealmate_backend/internal/model"
	"mealmate_backend/pkg/database"
	"mealmate_backend/pkg/payment"
	"mealmate_backend/pkg/paypal"
	"mealmate_backend/pkg/plans"
	"mealmate_backend/pkg/utils/archive"
	"mealmate_backend/pkg/utils/jwt"
)

// WebhookVerifier is the signature-check dependency of the webhook
// endpoint; *paypal.Client satisfies it.
type WebhookVerifier interface {
	VerifyWebhookSignature(ctx context.Context, sig paypal.WebhookSignature, body []byte) bool
}

var webhookVerifier WebhookVerifier

func InitSubscriptionController(verifier WebhookVerifier) {
	webhookVerifier = verifier
}

// ListPlans returns the sellable catalog.
func ListPlans(c *fiber.Ctx) error {
	return c.JSON(plans.All())
}

// GetMySubscription reads the Subscription entity directly; the
// denormalized plan field on the user is display-only and never consulted
// for entitlement.
func GetMySubscription(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	var sub model.Subscription
	if err := database.DB.Where("user_id = ? AND status = ?", claims.UserID, model.SubStatusActive).
		First(&sub).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No active subscription found",
		})
	}

	return c.JSON(sub)
}

type CancelSubscriptionInput struct {
	Reason string `json:"reason"`
}

// CancelSubscription cancels the caller's active subscription at the
// provider and locally.
func CancelSubscription(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(CancelSubscriptionInput)
	c.BodyParser(input)
	reason := input.Reason
	if reason == "" {
		reason = "Canceled by user"
	}

	sub, err := paymentService.CancelUserSubscription(c.Context(), claims.UserID, reason)
	if err != nil {
		return paymentError(c, "Could not cancel subscription", err)
	}

	return c.JSON(fiber.Map{
		"message":      "Subscription cancelled successfully",
		"subscription": sub,
	})
}

// HandlePayPalWebhook receives asynchronous provider events. The raw body
// must be rejected before any state mutation if the signature does not
// verify; after verification the endpoint always acknowledges so the
// provider does not redeliver for handler-internal no-ops.
func HandlePayPalWebhook(c *fiber.Ctx) error {
	body := c.Body()

	sig := paypal.WebhookSignature{
		TransmissionID:   c.Get("Paypal-Transmission-Id"),
		TransmissionTime: c.Get("Paypal-Transmission-Time"),
		TransmissionSig:  c.Get("Paypal-Transmission-Sig"),
		CertURL:          c.Get("Paypal-Cert-Url"),
		AuthAlgo:         c.Get("Paypal-Auth-Algo"),
	}

	if !webhookVerifier.VerifyWebhookSignature(c.Context(), sig, body) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid signature",
		})
	}

	event, err := payment.ParseWebhookEvent(body)
	if err != nil {
		// Verified but unparseable; acknowledge, a retry would not parse
		// any better.
		log.Printf("webhook: unparseable event body: %v", err)
		return c.JSON(fiber.Map{"received": true})
	}

	if archive.Enabled() {
		if _, err := archive.StoreWebhookPayload(event.ID, event.EventType, body); err != nil {
			log.Printf("webhook %s: archive failed: %v", event.ID, err)
		}
	}

	paymentService.HandleWebhookEvent(c.Context(), event, body)

	return c.JSON(fiber.Map{"received": true})
}

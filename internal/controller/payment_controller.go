package controller

import (
	"errors"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"mealmate_backend/pkg/payment"
	"mealmate_backend/pkg/paypal"
	"mealmate_backend/pkg/plans"
	"mealmate_backend/pkg/utils/jwt"
)

var paymentService *payment.Service

func InitPaymentController(svc *payment.Service) {
	paymentService = svc
}

type CapturePaymentInput struct {
	OrderID string `json:"order_id"`
}

// CreateOrder starts checkout for a catalog plan and returns the
// provider approval redirect.
func CreateOrder(c *fiber.Ctx) error {
	input := new(payment.CheckoutInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	result, err := paymentService.CreateCheckout(c.Context(), *input)
	if err != nil {
		return paymentError(c, "Could not create payment order", err)
	}

	return c.JSON(fiber.Map{
		"approval_url": result.ApprovalURL,
		"order_id":     result.CorrelationID,
	})
}

// CapturePayment is called when the buyer returns from the provider.
func CapturePayment(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(CapturePaymentInput)
	if err := c.BodyParser(input); err != nil || input.OrderID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "order_id is required",
		})
	}

	result, err := paymentService.CapturePayment(c.Context(), claims.UserID, input.OrderID)
	if err != nil {
		return paymentError(c, "Could not capture payment", err)
	}

	return c.JSON(fiber.Map{
		"success":        true,
		"message":        "Payment captured and subscription activated",
		"transaction_id": result.TransactionID,
	})
}

// paymentError translates service failures into user-safe responses while
// the raw provider error stays in the server log.
func paymentError(c *fiber.Ctx, message string, err error) error {
	log.Printf("payment: %s: %v", message, err)

	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, plans.ErrUnknownPlan):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown subscription plan",
		})
	case errors.Is(err, payment.ErrNotRecurring):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "This plan does not support recurring billing",
		})
	case errors.As(err, &validationErrs):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	case errors.Is(err, paypal.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Payment order not found",
		})
	default:
		var timeoutErr *paypal.TimeoutError
		if errors.As(err, &timeoutErr) {
			return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
				"error": "Payment provider timed out, please retry",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": message,
		})
	}
}

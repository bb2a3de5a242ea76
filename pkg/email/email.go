package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"
)

const resendEndpoint = "https://api.resend.com/emails"

type EmailService struct {
	apiKey    string
	from      string
	templates *template.Template
	client    *http.Client
}

type EmailData struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Html    string `json:"html"`
}

type SubscriptionStartedData struct {
	PlanType     string
	PlanDuration string
	ExpiresAt    string
}

type ExpiryWarningData struct {
	PlanType  string
	ExpiresAt string
	DaysLeft  int
}

type PaymentFailedData struct {
	PlanType string
}

type SubscriptionCanceledData struct {
	PlanType string
}

func NewEmailService(apiKey string) (*EmailService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}

	tmpl, err := loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("could not load email templates: %v", err)
	}

	return &EmailService{
		apiKey:    apiKey,
		from:      "MealMate <noreply@mealmate.app>",
		templates: tmpl,
		client:    &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (s *EmailService) send(to, subject, templateName string, data interface{}) error {
	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, templateName, data); err != nil {
		return fmt.Errorf("could not render template %s: %v", templateName, err)
	}

	payload, err := json.Marshal(EmailData{
		From:    s.from,
		To:      to,
		Subject: subject,
		Html:    body.String(),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, resendEndpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return fmt.Errorf("resend returned status=%d body=%s", resp.StatusCode, string(raw))
	}
	return nil
}

func (s *EmailService) SendSubscriptionStartedEmail(to, planType, planDuration string, expiresAt time.Time) error {
	return s.send(to, "Your MealMate subscription is active", "subscription_started", SubscriptionStartedData{
		PlanType:     planType,
		PlanDuration: planDuration,
		ExpiresAt:    expiresAt.Format("January 2, 2006"),
	})
}

func (s *EmailService) SendSubscriptionExpiryWarning(to, planType string, expiresAt time.Time, daysLeft int) error {
	return s.send(to, "Your MealMate subscription is about to expire", "expiry_warning", ExpiryWarningData{
		PlanType:  planType,
		ExpiresAt: expiresAt.Format("January 2, 2006"),
		DaysLeft:  daysLeft,
	})
}

func (s *EmailService) SendPaymentFailedEmail(to, planType string) error {
	return s.send(to, "Payment failed for your MealMate subscription", "payment_failed", PaymentFailedData{
		PlanType: planType,
	})
}

func (s *EmailService) SendSubscriptionCanceledEmail(to, planType string) error {
	return s.send(to, "Your MealMate subscription was canceled", "subscription_canceled", SubscriptionCanceledData{
		PlanType: planType,
	})
}

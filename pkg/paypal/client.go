package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultAPIBaseURL = "https://api-m.sandbox.paypal.com"

// tokenExpiryMargin is subtracted from the provider-reported token
// lifetime so a token is never used right at its expiry edge.
const tokenExpiryMargin = 60 * time.Second

type Client struct {
	ClientID     string
	ClientSecret string
	WebhookID    string

	APIBaseURL string
	AppBaseURL string

	HTTPClient *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

type Config struct {
	ClientID     string
	ClientSecret string
	WebhookID    string
	APIBaseURL   string
	AppBaseURL   string
}

func NewClient(cfg Config) *Client {
	base := strings.TrimSpace(cfg.APIBaseURL)
	if base == "" {
		base = defaultAPIBaseURL
	}

	return &Client{
		ClientID:     strings.TrimSpace(cfg.ClientID),
		ClientSecret: strings.TrimSpace(cfg.ClientSecret),
		WebhookID:    strings.TrimSpace(cfg.WebhookID),
		APIBaseURL:   strings.TrimRight(base, "/"),
		AppBaseURL:   strings.TrimRight(strings.TrimSpace(cfg.AppBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

type Amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type Capture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount Amount `json:"amount"`
}

type Payments struct {
	Captures []Capture `json:"captures"`
}

type PurchaseUnit struct {
	ReferenceID string    `json:"reference_id,omitempty"`
	Amount      Amount    `json:"amount"`
	Payments    *Payments `json:"payments,omitempty"`
}

type Order struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units"`
	Links         []Link         `json:"links"`
}

type Subscription struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	PlanID   string `json:"plan_id"`
	CustomID string `json:"custom_id"`
	Links    []Link `json:"links"`
}

// OrderRequest is the server-side resolved order input. The amount comes
// from the plan catalog, never from the browser.
type OrderRequest struct {
	PlanID   string
	Amount   string
	Currency string
}

// SubscriptionRequest starts a recurring billing agreement on a provider
// billing plan.
type SubscriptionRequest struct {
	ProviderPlanID  string
	PlanID          string
	SubscriberName  string
	SubscriberEmail string
}

// ApprovalURL returns the link the buyer must be redirected to, or "".
func ApprovalURL(links []Link) string {
	for _, l := range links {
		if l.Rel == "approve" {
			return l.Href
		}
	}
	return ""
}

// FirstCapture digs the capture out of an order's purchase units.
func (o *Order) FirstCapture() *Capture {
	for _, pu := range o.PurchaseUnits {
		if pu.Payments != nil && len(pu.Payments.Captures) > 0 {
			return &pu.Payments.Captures[0]
		}
	}
	return nil
}

// ReferenceID returns the internal plan id the order was created with.
func (o *Order) ReferenceID() string {
	for _, pu := range o.PurchaseUnits {
		if pu.ReferenceID != "" {
			return pu.ReferenceID
		}
	}
	return ""
}

func (c *Client) getAccessToken(ctx context.Context) (string, error) {
	if c.ClientID == "" || c.ClientSecret == "" {
		return "", &AuthError{Reason: "PAYPAL_CLIENT_ID/PAYPAL_CLIENT_SECRET are not configured"}
	}

	c.mu.Lock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		token := c.accessToken
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.ClientID, c.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", &TimeoutError{Op: "token request", Err: err}
		}
		return "", &AuthError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &AuthError{Reason: fmt.Sprintf("token endpoint returned status=%d body=%s", resp.StatusCode, string(body))}
	}

	var out tokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &AuthError{Reason: "malformed token response: " + err.Error()}
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return "", &AuthError{Reason: "token endpoint returned empty access_token"}
	}

	c.mu.Lock()
	c.accessToken = out.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(out.ExpiresIn)*time.Second - tokenExpiryMargin)
	c.mu.Unlock()

	return out.AccessToken, nil
}

// doRequest runs an authenticated JSON call and decodes the response into
// out (when out is non-nil and the response has a body).
func (c *Client) doRequest(ctx context.Context, method, path string, payload interface{}, out interface{}, headers map[string]string) error {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return err
	}

	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.APIBaseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return &TimeoutError{Op: method + " " + path, Err: err}
		}
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	if out != nil && len(body) > 0 {
		return json.Unmarshal(body, out)
	}
	return nil
}

// CreateOrder builds a one-time CAPTURE order. The buyer lands on
// return/cancel URLs under the application's own base URL.
func (c *Client) CreateOrder(ctx context.Context, in OrderRequest) (*Order, error) {
	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"reference_id": in.PlanID,
				"amount": map[string]string{
					"currency_code": in.Currency,
					"value":         in.Amount,
				},
			},
		},
		"application_context": map[string]string{
			"return_url": c.AppBaseURL + "/payment/success",
			"cancel_url": c.AppBaseURL + "/payment/cancel",
		},
	}

	var order Order
	if err := c.doRequest(ctx, http.MethodPost, "/v2/checkout/orders", payload, &order, nil); err != nil {
		return nil, err
	}
	return &order, nil
}

// CaptureOrder finalizes payment for an approved order. The provider
// treats capture as idempotent; an ORDER_ALREADY_CAPTURED rejection is
// resolved by re-reading the order so the caller still gets the existing
// capture id.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, errors.New("paypal: order id is required")
	}

	headers := map[string]string{
		// Dedupes retries of this capture on the provider side.
		"PayPal-Request-Id": uuid.New().String(),
	}

	var order Order
	err := c.doRequest(ctx, http.MethodPost, "/v2/checkout/orders/"+orderID+"/capture", struct{}{}, &order, headers)
	if err == nil {
		return &order, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.Contains(apiErr.Body, "ORDER_ALREADY_CAPTURED") {
		return c.GetOrder(ctx, orderID)
	}
	return nil, err
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	if err := c.doRequest(ctx, http.MethodGet, "/v2/checkout/orders/"+orderID, nil, &order, nil); err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateSubscription starts a recurring agreement and returns the
// approval link alongside the provider subscription id.
func (c *Client) CreateSubscription(ctx context.Context, in SubscriptionRequest) (*Subscription, error) {
	payload := map[string]interface{}{
		"plan_id":   in.ProviderPlanID,
		"custom_id": in.PlanID,
		"subscriber": map[string]interface{}{
			"name": map[string]string{
				"given_name": in.SubscriberName,
			},
			"email_address": in.SubscriberEmail,
		},
		"application_context": map[string]string{
			"return_url": c.AppBaseURL + "/payment/success",
			"cancel_url": c.AppBaseURL + "/payment/cancel",
		},
	}

	var sub Subscription
	if err := c.doRequest(ctx, http.MethodPost, "/v1/billing/subscriptions", payload, &sub, nil); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	var sub Subscription
	if err := c.doRequest(ctx, http.MethodGet, "/v1/billing/subscriptions/"+subscriptionID, nil, &sub, nil); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (c *Client) CancelSubscription(ctx context.Context, subscriptionID, reason string) error {
	return c.subscriptionAction(ctx, subscriptionID, "cancel", reason)
}

func (c *Client) SuspendSubscription(ctx context.Context, subscriptionID, reason string) error {
	return c.subscriptionAction(ctx, subscriptionID, "suspend", reason)
}

func (c *Client) ActivateSubscription(ctx context.Context, subscriptionID, reason string) error {
	return c.subscriptionAction(ctx, subscriptionID, "activate", reason)
}

// subscriptionAction posts a lifecycle verb. Repeating a verb on a
// subscription already in the target state is reported by the provider as
// SUBSCRIPTION_STATUS_INVALID; that is swallowed as already-done.
func (c *Client) subscriptionAction(ctx context.Context, subscriptionID, action, reason string) error {
	payload := map[string]string{"reason": reason}

	err := c.doRequest(ctx, http.MethodPost, "/v1/billing/subscriptions/"+subscriptionID+"/"+action, payload, nil, nil)
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.Contains(apiErr.Body, "SUBSCRIPTION_STATUS_INVALID") {
		return nil
	}
	return err
}

// WebhookSignature carries the provider signature headers of an inbound
// webhook delivery.
type WebhookSignature struct {
	TransmissionID   string
	TransmissionTime string
	TransmissionSig  string
	CertURL          string
	AuthAlgo         string
}

// VerifyWebhookSignature re-posts the delivery to the provider's
// verification endpoint. Fails closed: any transport error, non-2xx or
// non-SUCCESS verdict means "not verified".
func (c *Client) VerifyWebhookSignature(ctx context.Context, sig WebhookSignature, body []byte) bool {
	if c.WebhookID == "" {
		return false
	}

	payload := map[string]interface{}{
		"transmission_id":   sig.TransmissionID,
		"transmission_time": sig.TransmissionTime,
		"transmission_sig":  sig.TransmissionSig,
		"cert_url":          sig.CertURL,
		"auth_algo":         sig.AuthAlgo,
		"webhook_id":        c.WebhookID,
		"webhook_event":     json.RawMessage(body),
	}

	var out struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", payload, &out, nil); err != nil {
		return false
	}
	return out.VerificationStatus == "SUCCESS"
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

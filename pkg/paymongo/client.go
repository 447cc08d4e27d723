package paymongo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/miketere/businesscard-sub000/pkg/config"
	pkgerrors "github.com/miketere/businesscard-sub000/pkg/errors"
	"github.com/miketere/businesscard-sub000/pkg/logger"
	"github.com/miketere/businesscard-sub000/pkg/metrics"
)

var (
	errSecretKeyRequired     = errors.New("paymongo secret key is required")
	errWebhookSecretRequired = errors.New("paymongo webhook secret is required")
	errLoggerRequired        = errors.New("paymongo logger is required")
)

// declineCodes are gateway error codes that mean the charge itself was
// refused, as opposed to a malformed request.
var declineCodes = map[string]struct{}{
	"generic_decline":        {},
	"insufficient_funds":     {},
	"card_expired":           {},
	"cvc_invalid":            {},
	"fraudulent":             {},
	"lost_card":              {},
	"stolen_card":            {},
	"processor_blocked":      {},
	"blocked":                {},
	"payment_intent_invalid": {},
}

// Client exposes PayMongo primitives with centralized auth, logging, and
// error mapping.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	secretKey     string
	publicKey     string
	webhookSecret string
	logger        *logger.Logger
	billing       *metrics.BillingMetrics
}

// NewClient initializes the PayMongo wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.PayMongoConfig, logg *logger.Logger, billing *metrics.BillingMetrics) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if secretKey == "" {
		return nil, errSecretKeyRequired
	}
	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:     secretKey,
		publicKey:     strings.TrimSpace(cfg.PublicKey),
		webhookSecret: webhookSecret,
		logger:        logg,
		billing:       billing,
	}

	logg.Info(ctx, "paymongo client initialized")
	return c, nil
}

// SigningSecret returns the PayMongo webhook secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// CreateCustomer registers a gateway customer for the given identity.
func (c *Client) CreateCustomer(ctx context.Context, info CustomerInfo) (*Customer, error) {
	first, last := splitName(info.FullName)
	attrs := map[string]any{
		"first_name": first,
		"last_name":  last,
		"email":      info.Email,
	}
	if info.Phone != "" {
		attrs["phone"] = info.Phone
	}

	c.log(ctx, "request", "create_customer", map[string]any{"email": info.Email})
	res, err := c.do(ctx, http.MethodPost, "/customers", attrs, "create_customer")
	if err != nil {
		return nil, err
	}

	var body customerAttributes
	if err := json.Unmarshal(res.Attributes, &body); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paymongo create_customer returned an unreadable body")
	}
	c.log(ctx, "response", "create_customer", map[string]any{"customer_id": res.ID})
	return &Customer{ID: res.ID, Email: body.Email, FullName: strings.TrimSpace(body.FirstName + " " + body.LastName)}, nil
}

// CreatePaymentMethod tokenizes a card. Card shape is validated locally
// before anything is sent to the gateway.
func (c *Client) CreatePaymentMethod(ctx context.Context, card CardDetails) (*PaymentMethod, error) {
	if err := ValidateCard(card, time.Now().UTC()); err != nil {
		return nil, err
	}

	attrs := map[string]any{
		"type": "card",
		"details": map[string]any{
			"card_number": normalizedCardNumber(card),
			"exp_month":   card.ExpMonth,
			"exp_year":    card.ExpYear,
			"cvc":         card.CVC,
		},
	}
	if card.Name != "" {
		attrs["billing"] = map[string]any{"name": card.Name}
	}

	c.log(ctx, "request", "create_payment_method", map[string]any{"last4": cardLast4(card)})
	res, err := c.do(ctx, http.MethodPost, "/payment_methods", attrs, "create_payment_method")
	if err != nil {
		return nil, err
	}

	var body paymentMethodAttributes
	if err := json.Unmarshal(res.Attributes, &body); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paymongo create_payment_method returned an unreadable body")
	}
	c.log(ctx, "response", "create_payment_method", map[string]any{"payment_method_id": res.ID})
	return &PaymentMethod{ID: res.ID, Brand: body.Details.Brand, Last4: body.Details.Last4}, nil
}

// CreatePaymentIntent opens a one-time charge for the given amount.
func (c *Client) CreatePaymentIntent(ctx context.Context, amountCents int64, currency, description string) (*PaymentIntent, error) {
	attrs := map[string]any{
		"amount":                 amountCents,
		"currency":               currency,
		"description":            description,
		"payment_method_allowed": []string{"card"},
		"capture_type":           "automatic",
	}

	c.log(ctx, "request", "create_payment_intent", map[string]any{"amount": amountCents, "currency": currency})
	res, err := c.do(ctx, http.MethodPost, "/payment_intents", attrs, "create_payment_intent")
	if err != nil {
		return nil, err
	}

	intent, err := decodePaymentIntent(res)
	if err != nil {
		return nil, err
	}
	c.log(ctx, "response", "create_payment_intent", map[string]any{"payment_intent_id": intent.ID, "status": intent.Status})
	return intent, nil
}

// AttachPaymentMethod binds a tokenized card to an intent, which triggers
// the charge attempt.
func (c *Client) AttachPaymentMethod(ctx context.Context, intentID, paymentMethodID string) (*PaymentIntent, error) {
	attrs := map[string]any{"payment_method": paymentMethodID}

	c.log(ctx, "request", "attach_payment_method", map[string]any{"payment_intent_id": intentID})
	res, err := c.do(ctx, http.MethodPost, "/payment_intents/"+url.PathEscape(intentID)+"/attach", attrs, "attach_payment_method")
	if err != nil {
		return nil, err
	}

	intent, err := decodePaymentIntent(res)
	if err != nil {
		return nil, err
	}
	c.log(ctx, "response", "attach_payment_method", map[string]any{"payment_intent_id": intent.ID, "status": intent.Status})
	return intent, nil
}

// ProcessOneTimePayment runs the full intent/attach flow and returns the
// terminal intent. A charge the gateway refuses comes back as a payment
// rejection carrying the gateway's reason.
func (c *Client) ProcessOneTimePayment(ctx context.Context, params OneTimePaymentParams) (*PaymentIntent, error) {
	intent, err := c.CreatePaymentIntent(ctx, params.AmountCents, params.Currency, params.Description)
	if err != nil {
		return nil, err
	}

	intent, err = c.AttachPaymentMethod(ctx, intent.ID, params.PaymentMethodID)
	if err != nil {
		return nil, err
	}
	if !intent.Succeeded() {
		reason := intent.LastError
		if reason == "" {
			reason = fmt.Sprintf("payment ended in status %q", intent.Status)
		}
		return intent, pkgerrors.New(pkgerrors.CodePaymentRejected, reason)
	}
	return intent, nil
}

// CreateSubscription opens a recurring subscription on a gateway plan.
func (c *Client) CreateSubscription(ctx context.Context, params SubscriptionCreateParams) (*Subscription, error) {
	attrs := map[string]any{
		"customer_id":       params.CustomerID,
		"plan_id":           params.PlanID,
		"payment_method_id": params.PaymentMethodID,
	}
	if len(params.Metadata) > 0 {
		attrs["metadata"] = params.Metadata
	}

	c.log(ctx, "request", "create_subscription", map[string]any{"customer_id": params.CustomerID, "plan_id": params.PlanID})
	res, err := c.do(ctx, http.MethodPost, "/subscriptions", attrs, "create_subscription")
	if err != nil {
		return nil, err
	}

	sub, err := decodeSubscription(res)
	if err != nil {
		return nil, err
	}
	c.log(ctx, "response", "create_subscription", map[string]any{"subscription_id": sub.ID, "status": sub.Status})
	return sub, nil
}

// UpdateSubscription moves a recurring subscription onto a different plan.
func (c *Client) UpdateSubscription(ctx context.Context, subscriptionID, planID string) (*Subscription, error) {
	attrs := map[string]any{"plan_id": planID}

	c.log(ctx, "request", "update_subscription", map[string]any{"subscription_id": subscriptionID, "plan_id": planID})
	res, err := c.do(ctx, http.MethodPost, "/subscriptions/"+url.PathEscape(subscriptionID), attrs, "update_subscription")
	if err != nil {
		return nil, err
	}

	sub, err := decodeSubscription(res)
	if err != nil {
		return nil, err
	}
	c.log(ctx, "response", "update_subscription", map[string]any{"subscription_id": sub.ID, "status": sub.Status})
	return sub, nil
}

// CancelSubscription cancels a recurring subscription at the gateway.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	c.log(ctx, "request", "cancel_subscription", map[string]any{"subscription_id": subscriptionID})
	res, err := c.do(ctx, http.MethodPost, "/subscriptions/"+url.PathEscape(subscriptionID)+"/cancel", nil, "cancel_subscription")
	if err != nil {
		return nil, err
	}

	sub, err := decodeSubscription(res)
	if err != nil {
		return nil, err
	}
	c.log(ctx, "response", "cancel_subscription", map[string]any{"subscription_id": sub.ID, "status": sub.Status})
	return sub, nil
}

// GetSubscription fetches the authoritative subscription state from the
// gateway.
func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	c.log(ctx, "request", "get_subscription", map[string]any{"subscription_id": subscriptionID})
	res, err := c.do(ctx, http.MethodGet, "/subscriptions/"+url.PathEscape(subscriptionID), nil, "get_subscription")
	if err != nil {
		return nil, err
	}

	sub, err := decodeSubscription(res)
	if err != nil {
		return nil, err
	}
	c.log(ctx, "response", "get_subscription", map[string]any{"subscription_id": sub.ID, "status": sub.Status})
	return sub, nil
}

// CreatePlan registers a billing plan at the gateway.
func (c *Client) CreatePlan(ctx context.Context, params PlanCreateParams) (*Plan, error) {
	attrs := map[string]any{
		"name":     params.Name,
		"amount":   params.AmountCents,
		"currency": params.Currency,
		"interval": params.Interval,
	}

	c.log(ctx, "request", "create_plan", map[string]any{"name": params.Name, "amount": params.AmountCents})
	res, err := c.do(ctx, http.MethodPost, "/plans", attrs, "create_plan")
	if err != nil {
		return nil, err
	}

	var body planAttributes
	if err := json.Unmarshal(res.Attributes, &body); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paymongo create_plan returned an unreadable body")
	}
	c.log(ctx, "response", "create_plan", map[string]any{"plan_id": res.ID})
	return &Plan{ID: res.ID, Name: body.Name, AmountCents: body.Amount, Currency: body.Currency, Interval: body.Interval}, nil
}

// ListInvoices returns the invoices attached to a recurring subscription.
func (c *Client) ListInvoices(ctx context.Context, subscriptionID string) ([]Invoice, error) {
	c.log(ctx, "request", "list_invoices", map[string]any{"subscription_id": subscriptionID})
	resources, err := c.doList(ctx, http.MethodGet, "/invoices?subscription_id="+url.QueryEscape(subscriptionID), "list_invoices")
	if err != nil {
		return nil, err
	}

	invoices := make([]Invoice, 0, len(resources))
	for _, res := range resources {
		var body invoiceAttributes
		if err := json.Unmarshal(res.Attributes, &body); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paymongo list_invoices returned an unreadable body")
		}
		invoices = append(invoices, Invoice{
			ID:             res.ID,
			SubscriptionID: body.SubscriptionID,
			AmountCents:    body.Amount,
			Currency:       body.Currency,
			Status:         body.Status,
			PaidAt:         body.PaidAt,
		})
	}
	c.log(ctx, "response", "list_invoices", map[string]any{"count": len(invoices)})
	return invoices, nil
}

type resource struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Attributes json.RawMessage `json:"attributes"`
}

type customerAttributes struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type paymentMethodAttributes struct {
	Type    string `json:"type"`
	Details struct {
		Brand string `json:"brand"`
		Last4 string `json:"last4"`
	} `json:"details"`
}

type paymentIntentAttributes struct {
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	Description      string `json:"description"`
	PaymentMethod    string `json:"payment_method"`
	LastPaymentError *struct {
		FailedCode    string `json:"failed_code"`
		FailedMessage string `json:"failed_message"`
	} `json:"last_payment_error"`
}

type subscriptionAttributes struct {
	Status             string `json:"status"`
	CustomerID         string `json:"customer_id"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	CancelledAt        *int64 `json:"cancelled_at"`
	Plan               struct {
		ID string `json:"id"`
	} `json:"plan"`
}

type planAttributes struct {
	Name     string `json:"name"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Interval string `json:"interval"`
}

type invoiceAttributes struct {
	SubscriptionID string `json:"subscription_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Status         string `json:"status"`
	PaidAt         *int64 `json:"paid_at"`
}

func decodePaymentIntent(res *resource) (*PaymentIntent, error) {
	var body paymentIntentAttributes
	if err := json.Unmarshal(res.Attributes, &body); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paymongo payment intent body is unreadable")
	}
	intent := &PaymentIntent{
		ID:            res.ID,
		Status:        body.Status,
		AmountCents:   body.Amount,
		Currency:      body.Currency,
		Description:   body.Description,
		PaymentMethod: body.PaymentMethod,
	}
	if body.LastPaymentError != nil {
		intent.LastError = strings.TrimSpace(body.LastPaymentError.FailedCode + ": " + body.LastPaymentError.FailedMessage)
	}
	return intent, nil
}

func decodeSubscription(res *resource) (*Subscription, error) {
	var body subscriptionAttributes
	if err := json.Unmarshal(res.Attributes, &body); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paymongo subscription body is unreadable")
	}
	return &Subscription{
		ID:                 res.ID,
		Status:             body.Status,
		PlanID:             body.Plan.ID,
		CustomerID:         body.CustomerID,
		CurrentPeriodStart: body.CurrentPeriodStart,
		CurrentPeriodEnd:   body.CurrentPeriodEnd,
		CancelAtPeriodEnd:  body.CancelAtPeriodEnd,
		CancelledAt:        body.CancelledAt,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, attrs map[string]any, op string) (*resource, error) {
	raw, err := c.roundTrip(ctx, method, path, attrs, op)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Data resource `json:"data"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("paymongo %s returned an unreadable body", op))
	}
	return &doc.Data, nil
}

func (c *Client) doList(ctx context.Context, method, path, op string) ([]resource, error) {
	raw, err := c.roundTrip(ctx, method, path, nil, op)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Data []resource `json:"data"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("paymongo %s returned an unreadable body", op))
	}
	return doc.Data, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, attrs map[string]any, op string) ([]byte, error) {
	started := time.Now()
	defer func() {
		c.billing.ObserveGatewayLatency(op, time.Since(started))
	}()

	var reqBody io.Reader
	if attrs != nil {
		payload, err := json.Marshal(map[string]any{"data": map[string]any{"attributes": attrs}})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("paymongo %s request could not be encoded", op))
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("paymongo %s request could not be built", op))
	}
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.secretKey+":")))
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log(ctx, "error", op, map[string]any{"error": err.Error()})
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("paymongo %s failed", op))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log(ctx, "error", op, map[string]any{"error": err.Error()})
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("paymongo %s body read failed", op))
	}

	if resp.StatusCode >= 400 {
		mapped := c.mapAPIError(resp.StatusCode, raw, op)
		c.log(ctx, "error", op, map[string]any{"status": resp.StatusCode, "error": mapped.Error()})
		return nil, mapped
	}
	return raw, nil
}

func (c *Client) mapAPIError(status int, raw []byte, op string) error {
	var payload struct {
		Errors []struct {
			Code   string `json:"code"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	_ = json.Unmarshal(raw, &payload)

	code := domainCodeForStatus(status)
	detail := ""
	for _, apiErr := range payload.Errors {
		if detail == "" {
			detail = apiErr.Detail
		}
		if _, declined := declineCodes[apiErr.Code]; declined {
			code = pkgerrors.CodePaymentRejected
			detail = apiErr.Detail
			break
		}
	}
	if detail == "" {
		detail = fmt.Sprintf("paymongo %s failed with status %d", op, status)
	}
	return pkgerrors.New(code, detail)
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusPaymentRequired:
		return pkgerrors.CodePaymentRejected
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("paymongo %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("paymongo %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card_number", "number", "cvc", "cvv", "secret", "email", "phone", "token"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func splitName(full string) (string, string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	parts := strings.SplitN(full, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

package paymongo

// CustomerInfo is the caller-supplied identity used for gateway customer
// creation.
type CustomerInfo struct {
	Email    string
	FullName string
	Phone    string
}

// Customer is the gateway's customer record.
type Customer struct {
	ID       string
	Email    string
	FullName string
}

// CardDetails holds raw card input for tokenization. Values never leave
// this package except as last-4 and brand.
type CardDetails struct {
	Number   string
	ExpMonth int
	ExpYear  int
	CVC      string
	Name     string
}

// PaymentMethod is the tokenized card reference returned by the gateway.
type PaymentMethod struct {
	ID    string
	Brand string
	Last4 string
}

// PaymentIntent tracks a one-time charge at the gateway.
type PaymentIntent struct {
	ID            string
	Status        string
	AmountCents   int64
	Currency      string
	Description   string
	LastError     string
	PaymentMethod string
}

// Succeeded reports whether the intent reached the terminal success state.
func (p *PaymentIntent) Succeeded() bool {
	return p != nil && p.Status == "succeeded"
}

// OneTimePaymentParams configures ProcessOneTimePayment.
type OneTimePaymentParams struct {
	AmountCents     int64
	Currency        string
	Description     string
	PaymentMethodID string
	CustomerID      string
}

// Subscription is the gateway's recurring subscription object.
type Subscription struct {
	ID                 string
	Status             string
	PlanID             string
	CustomerID         string
	CurrentPeriodStart int64
	CurrentPeriodEnd   int64
	CancelAtPeriodEnd  bool
	CancelledAt        *int64
}

// SubscriptionCreateParams configures CreateSubscription.
type SubscriptionCreateParams struct {
	CustomerID      string
	PlanID          string
	PaymentMethodID string
	Metadata        map[string]string
}

// Plan is the gateway's plan object.
type Plan struct {
	ID          string
	Name        string
	AmountCents int64
	Currency    string
	Interval    string
}

// PlanCreateParams configures CreatePlan.
type PlanCreateParams struct {
	Name        string
	AmountCents int64
	Currency    string
	Interval    string
}

// Invoice is a billing document attached to a recurring subscription.
type Invoice struct {
	ID             string
	SubscriptionID string
	AmountCents    int64
	Currency       string
	Status         string
	PaidAt         *int64
}

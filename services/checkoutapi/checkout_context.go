package checkoutapi

import (
	"time"

	"github.com/skala-commerce/storefront/services/checkoutevents"
)

// CheckoutState tracks where a checkout-session is in its lifecycle
type CheckoutState string

const (
	StateIdle             CheckoutState = "idle"
	StateSessionRequested CheckoutState = "sessionRequested"
	StateSessionReady     CheckoutState = "sessionReady"
	StateGatewayOpen      CheckoutState = "gatewayOpen"
	StateVerifying        CheckoutState = "verifying"
	StateSucceeded        CheckoutState = "succeeded"
	StateFailed           CheckoutState = "failed"
)

// IsTerminal reports whether a new checkout-session may replace this one
func (s CheckoutState) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// CheckoutContext is the per-cart checkout-session as persisted between the
// create-order call, the hosted widget callback and the verification call
type CheckoutContext struct {
	CartUID               string
	ShopperUID            string
	CreatedAt             time.Time
	LastModified          *time.Time
	State                 CheckoutState
	PaymentProvider       string
	GatewayOrderID        string
	GatewayKey            string
	SessionData           string `datastore:",noindex"`
	AmountInPaise         int64
	Currency              string
	AddressUID            string
	OriginalReturnURL     string
	OrderUID              string
	PaymentMethod         string
	CheckoutStatus        checkoutevents.CheckoutStatus
	CheckoutStatusDetails string
}

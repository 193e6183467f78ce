package checkoutrazorpay

import (
	"github.com/skala-commerce/storefront/services/order"
)

const providerName = "razorpay"

type CreateOrderRequest struct {
	AddressUID    string `json:"addressUID" validate:"required"`
	AmountInPaise int64  `json:"amountInPaise" validate:"required,gt=0"`
}

// CreateOrderResponse carries everything the hosted widget needs to open
type CreateOrderResponse struct {
	SessionID     string
	AmountInPaise int64
	Currency      string
	GatewayKey    string
	Prefill       Prefill
}

type Prefill struct {
	Name  string
	Email string
	Phone string
}

// VerifyRequest is the signed callback the widget posts after the shopper paid
type VerifyRequest struct {
	GatewayOrderID   string `json:"razorpay_order_id" validate:"required"`
	GatewayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	GatewaySignature string `json:"razorpay_signature" validate:"required"`
}

type VerifyResponse struct {
	Severity string
	Message  string
	Order    order.FinalOrder
	Shipment *order.ShipmentDetails
}

// CheckoutPageInfo is what the embedded widget page template is rendered with
type CheckoutPageInfo struct {
	CartUID        string
	GatewayKey     string
	GatewayOrderID string
	AmountInPaise  int64
	Currency       string
	ShopperName    string
	Email          string
	Phone          string
}

// WebhookEvent is the subset of the gateway's notification payload that we act upon
type WebhookEvent struct {
	Event   string         `json:"event"`
	Payload WebhookPayload `json:"payload"`
}

type WebhookPayload struct {
	Payment WebhookPayment `json:"payment"`
}

type WebhookPayment struct {
	Entity WebhookPaymentEntity `json:"entity"`
}

type WebhookPaymentEntity struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Method  string `json:"method"`
}

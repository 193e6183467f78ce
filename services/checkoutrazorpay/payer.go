package checkoutrazorpay

import (
	"context"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"

	"github.com/skala-commerce/storefront/lib/myerrors"
)

// GatewayOrder is the gateway-side order that the hosted widget is opened with
type GatewayOrder struct {
	ID            string
	AmountInPaise int64
	Currency      string
}

//go:generate mockgen -source=payer.go -package checkoutrazorpay -destination payer_mock.go Payer
type Payer interface {
	CreateOrder(c context.Context, amountInPaise int64, currency string, receipt string) (GatewayOrder, error)
	VerifyPaymentSignature(gatewayOrderID string, gatewayPaymentID string, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
}

type razorpayPayer struct {
	client        *razorpay.Client
	keySecret     string
	webhookSecret string
}

func NewPayer(keyID string, keySecret string, webhookSecret string) Payer {
	return &razorpayPayer{
		client:        razorpay.NewClient(keyID, keySecret),
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
	}
}

func (p *razorpayPayer) CreateOrder(c context.Context, amountInPaise int64, currency string, receipt string) (GatewayOrder, error) {
	body, err := p.client.Order.Create(map[string]interface{}{
		"amount":   amountInPaise,
		"currency": currency,
		"receipt":  receipt,
	}, nil)
	if err != nil {
		return GatewayOrder{}, myerrors.NewInternalError(fmt.Errorf("error creating razorpay order: %s", err))
	}

	orderID, ok := body["id"].(string)
	if !ok || orderID == "" {
		return GatewayOrder{}, myerrors.NewInternalError(fmt.Errorf("razorpay order response carries no id"))
	}

	return GatewayOrder{
		ID:            orderID,
		AmountInPaise: amountInPaise,
		Currency:      currency,
	}, nil
}

func (p *razorpayPayer) VerifyPaymentSignature(gatewayOrderID string, gatewayPaymentID string, signature string) bool {
	return utils.VerifyPaymentSignature(map[string]interface{}{
		"razorpay_order_id":   gatewayOrderID,
		"razorpay_payment_id": gatewayPaymentID,
	}, signature, p.keySecret)
}

func (p *razorpayPayer) VerifyWebhookSignature(body []byte, signature string) bool {
	return utils.VerifyWebhookSignature(string(body), signature, p.webhookSecret)
}

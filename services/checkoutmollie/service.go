package checkoutmollie

import (
	"context"
	"fmt"
	"net/url"

	"github.com/VictorAvelar/mollie-api-go/v3/mollie"

	"github.com/skala-commerce/storefront/lib/myerrors"
	"github.com/skala-commerce/storefront/lib/mylog"
	"github.com/skala-commerce/storefront/lib/mypublisher"
	"github.com/skala-commerce/storefront/lib/mystore"
	"github.com/skala-commerce/storefront/lib/mytime"
	"github.com/skala-commerce/storefront/lib/myuuid"
	"github.com/skala-commerce/storefront/services/address"
	"github.com/skala-commerce/storefront/services/cart"
	"github.com/skala-commerce/storefront/services/checkoutapi"
	"github.com/skala-commerce/storefront/services/checkoutevents"
	"github.com/skala-commerce/storefront/services/order"
)

const providerName = "mollie"

// ShipmentRequester is implemented by the shipping service
type ShipmentRequester interface {
	RequestShipment(c context.Context, orderUID string) (order.ShipmentDetails, error)
}

type service struct {
	payer         Payer
	checkoutStore mystore.Store[checkoutapi.CheckoutContext]
	cartStore     mystore.Store[cart.Cart]
	addressStore  mystore.Store[address.Address]
	orderStore    mystore.Store[order.FinalOrder]
	shipper       ShipmentRequester
	publisher     mypublisher.Publisher
	nower         mytime.Nower
	uuider        myuuid.UUIDer
	logger        mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(apiKey string, payer Payer, checkoutStore mystore.Store[checkoutapi.CheckoutContext], cartStore mystore.Store[cart.Cart], addressStore mystore.Store[address.Address], orderStore mystore.Store[order.FinalOrder], shipper ShipmentRequester, publisher mypublisher.Publisher, nower mytime.Nower, uuider myuuid.UUIDer, logger mylog.Logger) *service {
	payer.UseAPIKey(apiKey)
	return &service{
		payer:         payer,
		checkoutStore: checkoutStore,
		cartStore:     cartStore,
		addressStore:  addressStore,
		orderStore:    orderStore,
		shipper:       shipper,
		publisher:     publisher,
		nower:         nower,
		uuider:        uuider,
		logger:        logger,
	}
}

// startCheckout creates a payment on the Mollie platform and answers the URL of
// the hosted payment page
func (s *service) startCheckout(c context.Context, co checkoutapi.Checkout, hostname string) (string, error) {
	cartUID := co.CartUID

	s.logger.Log(c, cartUID, mylog.SeverityInfo, "Start mollie checkout for cart %s", cartUID)

	shoppingCart, found, err := s.cartStore.Get(c, co.Shopper.UID)
	if err != nil {
		return "", myerrors.NewInternalError(fmt.Errorf("error fetching cart of shopper %s: %s", co.Shopper.UID, err))
	}
	if !found {
		return "", myerrors.NewNotFoundError(fmt.Errorf("cart of shopper %s not found", co.Shopper.UID))
	}

	summary := cart.Summarize(shoppingCart)
	if !summary.CheckoutAllowed {
		return "", myerrors.NewInvalidInputError(fmt.Errorf("cart %s is empty or contains invalid lines", cartUID))
	}
	if co.TotalAmount.Value != summary.GrandTotalInPaise {
		return "", myerrors.NewInvalidInputError(fmt.Errorf("amount %d does not match cart total %d", co.TotalAmount.Value, summary.GrandTotalInPaise))
	}

	payment, err := s.payer.CreatePayment(c, paymentRequest(summary, co, hostname))
	if err != nil {
		return "", err
	}

	now := s.nower.Now()
	err = s.checkoutStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent

		err := s.checkoutStore.Put(c, cartUID, checkoutapi.CheckoutContext{
			CartUID:           cartUID,
			ShopperUID:        co.Shopper.UID,
			CreatedAt:         now,
			State:             checkoutapi.StateGatewayOpen,
			PaymentProvider:   providerName,
			GatewayOrderID:    payment.ID,
			AmountInPaise:     summary.GrandTotalInPaise,
			Currency:          summary.Currency,
			AddressUID:        co.AddressUID,
			OriginalReturnURL: co.ReturnURL,
		})
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing checkout-session: %s", err))
		}

		err = s.publisher.Publish(c, checkoutevents.TopicName, checkoutevents.CheckoutStarted{
			CheckoutUID:   cartUID,
			ProviderName:  providerName,
			ShopperUID:    co.Shopper.UID,
			AmountInPaise: summary.GrandTotalInPaise,
			Currency:      summary.Currency,
		})
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error publishing event: %s", err))
		}

		return nil
	})
	if err != nil {
		return "", err
	}

	return payment.Links.Checkout.Href, nil
}

func paymentRequest(summary cart.CartSummary, co checkoutapi.Checkout, hostname string) mollie.Payment {
	return mollie.Payment{
		Description:       "Goods ordered in cart " + co.CartUID,
		CustomerReference: co.Shopper.UID,
		ConsumerName:      co.Shopper.FullName,
		BillingEmail:      co.Shopper.ContactInfo.Email,
		RedirectURL:       fmt.Sprintf("%s/mollie/checkout/%s/status/success", hostname, co.CartUID),
		CancelURL:         fmt.Sprintf("%s/mollie/checkout/%s/status/cancelled", hostname, co.CartUID),
		WebhookURL:        fmt.Sprintf("%s/mollie/checkout/webhook/event/%s", hostname, co.CartUID),
		Metadata: map[string]string{
			"cartUID": co.CartUID,
		},
		Amount: &mollie.Amount{
			Currency: summary.Currency,
			Value:    fmt.Sprintf("%.2f", float64(summary.GrandTotalInPaise)/100.0),
		},
	}
}

// finalizeCheckout handles the redirect back from the hosted payment page. The
// webhook is authoritative, the redirect only annotates and forwards.
func (s *service) finalizeCheckout(c context.Context, cartUID string, status string) (string, error) {
	s.logger.Log(c, cartUID, mylog.SeverityInfo, "Redirect: mollie checkout of cart %s -> %s", cartUID, status)

	now := s.nower.Now()

	adjustedReturnURL := ""
	err := s.checkoutStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent

		checkoutContext, found, err := s.checkoutStore.Get(c, cartUID)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error fetching checkout-session of cart %s: %s", cartUID, err))
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("no checkout-session for cart %s", cartUID))
		}

		if !checkoutContext.State.IsTerminal() && status == "success" {
			checkoutContext.State = checkoutapi.StateVerifying
			checkoutContext.CheckoutStatus = checkoutevents.CheckoutStatusPending
			checkoutContext.LastModified = &now

			err = s.checkoutStore.Put(c, cartUID, checkoutContext)
			if err != nil {
				return myerrors.NewInternalError(err)
			}
		}

		adjustedReturnURL, err = addStatusQueryParam(checkoutContext.OriginalReturnURL, status)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error adjusting url: %s", err))
		}

		return nil
	})
	if err != nil {
		return "", err
	}

	return adjustedReturnURL, nil
}

func addStatusQueryParam(orgURL string, status string) (string, error) {
	u, err := url.Parse(orgURL)
	if err != nil {
		return "", fmt.Errorf("error parsing return URL %s: %s", orgURL, err)
	}
	params := u.Query()
	params.Set("status", status)
	u.RawQuery = params.Encode()
	return u.String(), nil
}

// webhookNotification fetches the payment the notification points at and
// settles or fails the checkout on its status
func (s *service) webhookNotification(c context.Context, cartUID string, paymentID string) error {
	s.logger.Log(c, cartUID, mylog.SeverityInfo, "Mollie webhook for cart %s: payment %s", cartUID, paymentID)

	payment, err := s.payer.GetPaymentOnID(c, paymentID)
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error getting payment %s: %s", paymentID, err))
	}

	status := classifyPaymentStatus(payment.Status)
	if status == checkoutevents.CheckoutStatusSuccess {
		return s.settle(c, cartUID, string(payment.Method))
	}

	return s.fail(c, cartUID, status, fmt.Sprintf("mollie payment status %s", payment.Status))
}

func classifyPaymentStatus(mollieStatus string) checkoutevents.CheckoutStatus {
	switch mollieStatus {
	case "paid":
		return checkoutevents.CheckoutStatusSuccess
	case "canceled":
		return checkoutevents.CheckoutStatusCancelled
	case "failed":
		return checkoutevents.CheckoutStatusFailed
	case "expired":
		return checkoutevents.CheckoutStatusExpired
	default:
		return checkoutevents.CheckoutStatusError
	}
}

// settle creates the final order out of the priced cart, exactly once
func (s *service) settle(c context.Context, cartUID string, paymentMethod string) error {
	checkoutContext, found, err := s.checkoutStore.Get(c, cartUID)
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error fetching checkout-session of cart %s: %s", cartUID, err))
	}
	if !found {
		return myerrors.NewNotFoundError(fmt.Errorf("no checkout-session for cart %s", cartUID))
	}
	if checkoutContext.State == checkoutapi.StateSucceeded {
		return nil
	}

	shoppingCart, found, err := s.cartStore.Get(c, checkoutContext.ShopperUID)
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error fetching cart of shopper %s: %s", checkoutContext.ShopperUID, err))
	}
	if !found {
		return myerrors.NewNotFoundError(fmt.Errorf("cart of shopper %s not found", checkoutContext.ShopperUID))
	}
	summary := cart.Summarize(shoppingCart)

	shipTo, found, err := s.addressStore.Get(c, checkoutContext.AddressUID)
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error fetching address %s: %s", checkoutContext.AddressUID, err))
	}
	if !found {
		return myerrors.NewNotFoundError(fmt.Errorf("address with uid %s not found", checkoutContext.AddressUID))
	}

	now := s.nower.Now()
	orderUID := s.uuider.Create()
	finalOrder := order.NewFromCheckout(orderUID, summary, shipTo, providerName, now)

	err = s.checkoutStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent

		checkoutContext, found, err := s.checkoutStore.Get(c, cartUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("no checkout-session for cart %s", cartUID))
		}
		if checkoutContext.State == checkoutapi.StateSucceeded {
			orderUID = checkoutContext.OrderUID
			return nil
		}

		err = s.orderStore.Put(c, orderUID, finalOrder)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing order: %s", err))
		}

		checkoutContext.State = checkoutapi.StateSucceeded
		checkoutContext.OrderUID = orderUID
		checkoutContext.PaymentMethod = paymentMethod
		checkoutContext.CheckoutStatus = checkoutevents.CheckoutStatusSuccess
		checkoutContext.LastModified = &now

		err = s.checkoutStore.Put(c, cartUID, checkoutContext)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing checkout-session: %s", err))
		}

		err = s.publisher.Publish(c, checkoutevents.TopicName, checkoutevents.CheckoutCompleted{
			CheckoutUID:    cartUID,
			ProviderName:   providerName,
			ShopperUID:     checkoutContext.ShopperUID,
			OrderUID:       orderUID,
			PaymentMethod:  paymentMethod,
			CheckoutStatus: checkoutevents.CheckoutStatusSuccess,
		})
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error publishing event: %s", err))
		}

		return nil
	})
	if err != nil {
		return err
	}

	_, shipErr := s.shipper.RequestShipment(c, orderUID)
	if shipErr != nil {
		s.logger.Log(c, cartUID, mylog.SeverityWarn, "Order %s is paid but shipment creation failed: %s", orderUID, shipErr)
	}

	return nil
}

func (s *service) fail(c context.Context, cartUID string, status checkoutevents.CheckoutStatus, details string) error {
	now := s.nower.Now()

	return s.checkoutStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent

		checkoutContext, found, err := s.checkoutStore.Get(c, cartUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("no checkout-session for cart %s", cartUID))
		}
		if checkoutContext.State.IsTerminal() {
			return nil
		}

		checkoutContext.State = checkoutapi.StateFailed
		checkoutContext.CheckoutStatus = status
		checkoutContext.CheckoutStatusDetails = details
		checkoutContext.LastModified = &now

		err = s.checkoutStore.Put(c, cartUID, checkoutContext)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		err = s.publisher.Publish(c, checkoutevents.TopicName, checkoutevents.CheckoutCompleted{
			CheckoutUID:           cartUID,
			ProviderName:          providerName,
			ShopperUID:            checkoutContext.ShopperUID,
			CheckoutStatus:        status,
			CheckoutStatusDetails: details,
		})
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error publishing event: %s", err))
		}

		return nil
	})
}

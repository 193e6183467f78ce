package checkoutstripe

import (
	"context"
	"fmt"
	"net/url"

	"github.com/stripe/stripe-go/v74"

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

const providerName = "stripe"

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

// startCheckout opens a hosted checkout session on the Stripe platform and
// answers the URL to redirect the shopper to
func (s *service) startCheckout(c context.Context, co checkoutapi.Checkout, hostname string) (string, error) {
	cartUID := co.CartUID

	s.logger.Log(c, cartUID, mylog.SeverityInfo, "Start stripe checkout for cart %s", cartUID)

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

	session, err := s.payer.CreateCheckoutSession(c, checkoutSessionParams(summary, co, hostname))
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
			GatewayOrderID:    session.ID,
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

	return session.URL, nil
}

func checkoutSessionParams(summary cart.CartSummary, co checkoutapi.Checkout, hostname string) stripe.CheckoutSessionParams {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(summary.Lines)+2)
	for _, line := range summary.Lines {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(summary.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(line.Product.Name),
				},
				UnitAmount: stripe.Int64(line.Product.PriceInPaise),
			},
			Quantity: stripe.Int64(int64(line.Quantity)),
		})
	}
	lineItems = append(lineItems,
		&stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(summary.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Tax"),
				},
				UnitAmount: stripe.Int64(summary.TaxInPaise),
			},
			Quantity: stripe.Int64(1),
		},
		&stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(summary.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Shipping"),
				},
				UnitAmount: stripe.Int64(summary.ShippingInPaise),
			},
			Quantity: stripe.Int64(1),
		})

	return stripe.CheckoutSessionParams{
		SuccessURL:        stripe.String(hostname + fmt.Sprintf("/stripe/checkout/%s/status/success", co.CartUID)),
		CancelURL:         stripe.String(hostname + fmt.Sprintf("/stripe/checkout/%s/status/cancelled", co.CartUID)),
		ClientReferenceID: stripe.String(co.CartUID),
		LineItems:         lineItems,
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		Currency:          stripe.String(summary.Currency),
		CustomerEmail:     stripe.String(co.Shopper.ContactInfo.Email),
	}
}

// finalizeCheckout handles the redirect back from the hosted page. A success
// redirect is provisional: the webhook settles the checkout.
func (s *service) finalizeCheckout(c context.Context, cartUID string, status string) (string, error) {
	s.logger.Log(c, cartUID, mylog.SeverityInfo, "Redirect: stripe checkout of cart %s -> %s", cartUID, status)

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

		if !checkoutContext.State.IsTerminal() {
			if status == "success" {
				checkoutContext.State = checkoutapi.StateVerifying
				checkoutContext.CheckoutStatus = checkoutevents.CheckoutStatusPending
			} else {
				checkoutContext.State = checkoutapi.StateFailed
				checkoutContext.CheckoutStatus = checkoutevents.CheckoutStatusCancelled
				checkoutContext.CheckoutStatusDetails = fmt.Sprintf("redirect reported status %s", status)
			}
			checkoutContext.LastModified = &now

			err = s.checkoutStore.Put(c, cartUID, checkoutContext)
			if err != nil {
				return myerrors.NewInternalError(err)
			}

			if checkoutContext.State == checkoutapi.StateFailed {
				err = s.publisher.Publish(c, checkoutevents.TopicName, checkoutevents.CheckoutCompleted{
					CheckoutUID:           cartUID,
					ProviderName:          providerName,
					ShopperUID:            checkoutContext.ShopperUID,
					CheckoutStatus:        checkoutContext.CheckoutStatus,
					CheckoutStatusDetails: checkoutContext.CheckoutStatusDetails,
				})
				if err != nil {
					return myerrors.NewInternalError(fmt.Errorf("error publishing event: %s", err))
				}
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

// webhookNotification settles the checkout once Stripe confirms the session completed
func (s *service) webhookNotification(c context.Context, event stripe.Event) error {
	cartUID := event.GetObjectValue("client_reference_id")

	s.logger.Log(c, cartUID, mylog.SeverityInfo, "Stripe webhook %s for cart %s", event.Type, cartUID)

	switch event.Type {
	case "checkout.session.completed":
		return s.settle(c, cartUID)
	case "checkout.session.expired":
		return s.fail(c, cartUID, checkoutevents.CheckoutStatusExpired, "stripe session expired")
	default:
		s.logger.Log(c, cartUID, mylog.SeverityInfo, "Ignoring stripe event %s", event.Type)
		return nil
	}
}

// settle creates the final order out of the priced cart, exactly once
func (s *service) settle(c context.Context, cartUID string) error {
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
		checkoutContext.PaymentMethod = providerName
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
			PaymentMethod:  providerName,
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

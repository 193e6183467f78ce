package checkoutrazorpay

import (
	"context"
	"fmt"

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
	"github.com/skala-commerce/storefront/services/session"
)

// ShipmentRequester is implemented by the shipping service. Shipment creation is
// best-effort: a returned error means partial success, never a failed checkout.
type ShipmentRequester interface {
	RequestShipment(c context.Context, orderUID string) (order.ShipmentDetails, error)
}

type service struct {
	gatewayKey    string
	payer         Payer
	checkoutStore mystore.Store[checkoutapi.CheckoutContext]
	cartStore     mystore.Store[cart.Cart]
	addressStore  mystore.Store[address.Address]
	orderStore    mystore.Store[order.FinalOrder]
	accountStore  mystore.Store[session.Account]
	shipper       ShipmentRequester
	publisher     mypublisher.Publisher
	nower         mytime.Nower
	uuider        myuuid.UUIDer
	logger        mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(gatewayKey string, payer Payer, checkoutStore mystore.Store[checkoutapi.CheckoutContext], cartStore mystore.Store[cart.Cart], addressStore mystore.Store[address.Address], orderStore mystore.Store[order.FinalOrder], accountStore mystore.Store[session.Account], shipper ShipmentRequester, publisher mypublisher.Publisher, nower mytime.Nower, uuider myuuid.UUIDer, logger mylog.Logger) *service {
	return &service{
		gatewayKey:    gatewayKey,
		payer:         payer,
		checkoutStore: checkoutStore,
		cartStore:     cartStore,
		addressStore:  addressStore,
		orderStore:    orderStore,
		accountStore:  accountStore,
		shipper:       shipper,
		publisher:     publisher,
		nower:         nower,
		uuider:        uuider,
		logger:        logger,
	}
}

func (s *service) CreateTopics(c context.Context) error {
	err := s.publisher.CreateTopic(c, checkoutevents.TopicName)
	if err != nil {
		return fmt.Errorf("error creating topic %s: %s", checkoutevents.TopicName, err)
	}

	return nil
}

// createOrder re-validates the cart and address server-side before any gateway
// traffic and then opens a gateway-side order for the cart's grand total
func (s *service) createOrder(c context.Context, shopperUID string, req CreateOrderRequest) (CreateOrderResponse, error) {
	s.logger.Log(c, shopperUID, mylog.SeverityInfo, "Create checkout-session for cart of shopper %s", shopperUID)

	shoppingCart, found, err := s.cartStore.Get(c, shopperUID)
	if err != nil {
		return CreateOrderResponse{}, myerrors.NewInternalError(fmt.Errorf("error fetching cart of shopper %s: %s", shopperUID, err))
	}
	if !found {
		return CreateOrderResponse{}, myerrors.NewNotFoundError(fmt.Errorf("cart of shopper %s not found", shopperUID))
	}

	summary := cart.Summarize(shoppingCart)
	if !summary.CheckoutAllowed {
		return CreateOrderResponse{}, myerrors.NewInvalidInputError(fmt.Errorf("cart of shopper %s is empty or contains invalid lines", shopperUID))
	}
	if req.AmountInPaise != summary.GrandTotalInPaise {
		return CreateOrderResponse{}, myerrors.NewInvalidInputError(fmt.Errorf("amount %d does not match cart total %d", req.AmountInPaise, summary.GrandTotalInPaise))
	}

	shipTo, found, err := s.addressStore.Get(c, req.AddressUID)
	if err != nil {
		return CreateOrderResponse{}, myerrors.NewInternalError(fmt.Errorf("error fetching address %s: %s", req.AddressUID, err))
	}
	if !found || shipTo.ShopperUID != shopperUID {
		return CreateOrderResponse{}, myerrors.NewNotFoundError(fmt.Errorf("address with uid %s not found", req.AddressUID))
	}

	// A non-terminal session for the same total is handed out again instead of
	// opening a second gateway order for the same cart
	existing, found, err := s.checkoutStore.Get(c, shopperUID)
	if err != nil {
		return CreateOrderResponse{}, myerrors.NewInternalError(fmt.Errorf("error fetching checkout-session of cart %s: %s", shopperUID, err))
	}
	if found && !existing.State.IsTerminal() && existing.AmountInPaise == summary.GrandTotalInPaise {
		s.logger.Log(c, shopperUID, mylog.SeverityInfo, "Re-using open checkout-session %s of cart %s", existing.GatewayOrderID, shopperUID)
		return s.newCreateOrderResponse(c, existing.GatewayOrderID, summary, shipTo), nil
	}

	gatewayOrder, err := s.payer.CreateOrder(c, summary.GrandTotalInPaise, summary.Currency, shopperUID)
	if err != nil {
		return CreateOrderResponse{}, err
	}

	now := s.nower.Now()
	err = s.checkoutStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent

		err := s.checkoutStore.Put(c, shopperUID, checkoutapi.CheckoutContext{
			CartUID:         shopperUID,
			ShopperUID:      shopperUID,
			CreatedAt:       now,
			State:           checkoutapi.StateSessionReady,
			PaymentProvider: providerName,
			GatewayOrderID:  gatewayOrder.ID,
			GatewayKey:      s.gatewayKey,
			AmountInPaise:   summary.GrandTotalInPaise,
			Currency:        summary.Currency,
			AddressUID:      shipTo.UID,
		})
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing checkout-session: %s", err))
		}

		err = s.publisher.Publish(c, checkoutevents.TopicName, checkoutevents.CheckoutStarted{
			CheckoutUID:   shopperUID,
			ProviderName:  providerName,
			ShopperUID:    shopperUID,
			AmountInPaise: summary.GrandTotalInPaise,
			Currency:      summary.Currency,
		})
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error publishing event: %s", err))
		}

		return nil
	})
	if err != nil {
		return CreateOrderResponse{}, err
	}

	return s.newCreateOrderResponse(c, gatewayOrder.ID, summary, shipTo), nil
}

func (s *service) newCreateOrderResponse(c context.Context, gatewayOrderID string, summary cart.CartSummary, shipTo address.Address) CreateOrderResponse {
	prefill := Prefill{
		Name:  shipTo.FullName,
		Phone: shipTo.PhoneNumber,
	}
	account, found, err := s.accountStore.Get(c, summary.ShopperUID)
	if err == nil && found {
		prefill.Email = account.Email
		if prefill.Name == "" {
			prefill.Name = account.FullName
		}
	}

	return CreateOrderResponse{
		SessionID:     gatewayOrderID,
		AmountInPaise: summary.GrandTotalInPaise,
		Currency:      summary.Currency,
		GatewayKey:    s.gatewayKey,
		Prefill:       prefill,
	}
}

// checkoutPage marks the session opened in the hosted widget and returns what
// the widget page template needs
func (s *service) checkoutPage(c context.Context, cartUID string) (CheckoutPageInfo, error) {
	now := s.nower.Now()

	s.logger.Log(c, cartUID, mylog.SeverityInfo, "Render checkout page of cart %s", cartUID)

	var checkoutContext checkoutapi.CheckoutContext
	err := s.checkoutStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent

		var found bool
		var err error
		checkoutContext, found, err = s.checkoutStore.Get(c, cartUID)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error fetching checkout-session of cart %s: %s", cartUID, err))
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("no checkout-session for cart %s", cartUID))
		}
		if checkoutContext.State.IsTerminal() {
			return myerrors.NewConflictError(fmt.Errorf("checkout-session of cart %s already completed", cartUID))
		}

		checkoutContext.State = checkoutapi.StateGatewayOpen
		checkoutContext.LastModified = &now

		err = s.checkoutStore.Put(c, cartUID, checkoutContext)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return nil
	})
	if err != nil {
		return CheckoutPageInfo{}, err
	}

	info := CheckoutPageInfo{
		CartUID:        cartUID,
		GatewayKey:     checkoutContext.GatewayKey,
		GatewayOrderID: checkoutContext.GatewayOrderID,
		AmountInPaise:  checkoutContext.AmountInPaise,
		Currency:       checkoutContext.Currency,
	}

	account, found, err := s.accountStore.Get(c, checkoutContext.ShopperUID)
	if err == nil && found {
		info.ShopperName = account.FullName
		info.Email = account.Email
		info.Phone = account.PhoneNumber
	}

	return info, nil
}

// verify settles the checkout: it checks the gateway's signature over the
// callback and, when genuine, turns the priced cart into a final order
func (s *service) verify(c context.Context, shopperUID string, req VerifyRequest) (VerifyResponse, error) {
	cartUID := shopperUID

	s.logger.Log(c, cartUID, mylog.SeverityInfo, "Verify payment %s of cart %s", req.GatewayPaymentID, cartUID)

	checkoutContext, found, err := s.checkoutStore.Get(c, cartUID)
	if err != nil {
		return VerifyResponse{}, myerrors.NewInternalError(fmt.Errorf("error fetching checkout-session of cart %s: %s", cartUID, err))
	}
	if !found {
		return VerifyResponse{}, myerrors.NewNotFoundError(fmt.Errorf("no checkout-session for cart %s", cartUID))
	}
	if checkoutContext.GatewayOrderID != req.GatewayOrderID {
		// A callback of an abandoned earlier session must not touch the current one
		return VerifyResponse{}, myerrors.NewConflictError(fmt.Errorf("callback for unknown gateway order %s ignored", req.GatewayOrderID))
	}
	if checkoutContext.State == checkoutapi.StateSucceeded {
		return s.verifyResponseFor(c, checkoutContext.OrderUID, nil)
	}
	if checkoutContext.State.IsTerminal() {
		return VerifyResponse{}, myerrors.NewConflictError(fmt.Errorf("checkout-session of cart %s already completed", cartUID))
	}

	if !s.payer.VerifyPaymentSignature(req.GatewayOrderID, req.GatewayPaymentID, req.GatewaySignature) {
		failErr := s.failCheckout(c, cartUID, checkoutevents.CheckoutStatusFailed, "payment signature mismatch")
		if failErr != nil {
			return VerifyResponse{}, failErr
		}

		return VerifyResponse{}, myerrors.NewAuthenticationError(fmt.Errorf("payment signature mismatch for gateway order %s", req.GatewayOrderID))
	}

	shoppingCart, found, err := s.cartStore.Get(c, shopperUID)
	if err != nil {
		return VerifyResponse{}, myerrors.NewInternalError(fmt.Errorf("error fetching cart of shopper %s: %s", shopperUID, err))
	}
	if !found {
		return VerifyResponse{}, myerrors.NewNotFoundError(fmt.Errorf("cart of shopper %s not found", shopperUID))
	}
	summary := cart.Summarize(shoppingCart)

	shipTo, found, err := s.addressStore.Get(c, checkoutContext.AddressUID)
	if err != nil {
		return VerifyResponse{}, myerrors.NewInternalError(fmt.Errorf("error fetching address %s: %s", checkoutContext.AddressUID, err))
	}
	if !found {
		return VerifyResponse{}, myerrors.NewNotFoundError(fmt.Errorf("address with uid %s not found", checkoutContext.AddressUID))
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
			ShopperUID:     shopperUID,
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
		return VerifyResponse{}, err
	}

	shipment, shipErr := s.shipper.RequestShipment(c, orderUID)
	if shipErr != nil {
		s.logger.Log(c, cartUID, mylog.SeverityWarn, "Order %s is paid but shipment creation failed: %s", orderUID, shipErr)

		// A failure before the courier was even reached leaves no error on the details
		if shipment.Error == "" {
			shipment.Error = shipErr.Error()
		}
	}

	return s.verifyResponseFor(c, orderUID, &shipment)
}

func (s *service) verifyResponseFor(c context.Context, orderUID string, shipment *order.ShipmentDetails) (VerifyResponse, error) {
	finalOrder, found, err := s.orderStore.Get(c, orderUID)
	if err != nil {
		return VerifyResponse{}, myerrors.NewInternalError(fmt.Errorf("error fetching order %s: %s", orderUID, err))
	}
	if !found {
		return VerifyResponse{}, myerrors.NewInternalError(fmt.Errorf("order %s of completed checkout not found", orderUID))
	}

	if shipment == nil {
		shipment = finalOrder.ShipmentDetails
	}

	resp := VerifyResponse{
		Severity: "success",
		Message:  "Payment verified",
		Order:    finalOrder,
		Shipment: shipment,
	}
	if shipment != nil && shipment.Error != "" {
		resp.Severity = "warning"
		resp.Message = "Payment verified, shipment creation is still pending"
	}

	return resp, nil
}

// finalizeStatus handles the widget's failure and cancellation callbacks.
// The cart is left intact so the shopper can start over.
func (s *service) finalizeStatus(c context.Context, cartUID string, status string) error {
	s.logger.Log(c, cartUID, mylog.SeverityInfo, "Checkout of cart %s finalized by widget with status %s", cartUID, status)

	checkoutStatus, err := statusFromWidget(status)
	if err != nil {
		return err
	}

	return s.failCheckout(c, cartUID, checkoutStatus, fmt.Sprintf("widget reported status %s", status))
}

func statusFromWidget(status string) (checkoutevents.CheckoutStatus, error) {
	switch checkoutevents.CheckoutStatus(status) {
	case checkoutevents.CheckoutStatusCancelled,
		checkoutevents.CheckoutStatusExpired,
		checkoutevents.CheckoutStatusFailed,
		checkoutevents.CheckoutStatusError:
		return checkoutevents.CheckoutStatus(status), nil
	default:
		return checkoutevents.CheckoutStatusUndefined, myerrors.NewInvalidInputError(fmt.Errorf("unsupported widget status %s", status))
	}
}

func (s *service) failCheckout(c context.Context, cartUID string, status checkoutevents.CheckoutStatus, details string) error {
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

// teardown removes the checkout-session so the next create-order starts fresh
func (s *service) teardown(c context.Context, cartUID string) error {
	s.logger.Log(c, cartUID, mylog.SeverityInfo, "Teardown checkout-session of cart %s", cartUID)

	err := s.checkoutStore.Delete(c, cartUID)
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error removing checkout-session of cart %s: %s", cartUID, err))
	}

	return nil
}

// webhookNotification processes the gateway's async notification. It may arrive
// before, after or instead of the widget callback and must be idempotent.
func (s *service) webhookNotification(c context.Context, event WebhookEvent) error {
	gatewayOrderID := event.Payload.Payment.Entity.OrderID

	s.logger.Log(c, gatewayOrderID, mylog.SeverityInfo, "Webhook %s for gateway order %s", event.Event, gatewayOrderID)

	var status checkoutevents.CheckoutStatus
	switch event.Event {
	case "payment.captured":
		status = checkoutevents.CheckoutStatusSuccess
	case "payment.failed":
		status = checkoutevents.CheckoutStatusFailed
	default:
		s.logger.Log(c, gatewayOrderID, mylog.SeverityInfo, "Ignoring webhook event %s", event.Event)
		return nil
	}

	contexts, err := s.checkoutStore.Query(c, []mystore.Filter{
		{Field: "GatewayOrderID", Compare: "=", Value: gatewayOrderID},
	}, "")
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error looking up checkout-session of gateway order %s: %s", gatewayOrderID, err))
	}
	cartUID := ""
	for _, checkoutContext := range contexts {
		if checkoutContext.GatewayOrderID == gatewayOrderID {
			cartUID = checkoutContext.CartUID
			break
		}
	}
	if cartUID == "" {
		return myerrors.NewNotFoundError(fmt.Errorf("no checkout-session for gateway order %s", gatewayOrderID))
	}

	if status != checkoutevents.CheckoutStatusSuccess {
		return s.failCheckout(c, cartUID, status, fmt.Sprintf("webhook reported %s", event.Event))
	}

	// A captured payment only annotates the session: the synchronous verify call
	// owns order creation, the webhook merely confirms it
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
		if checkoutContext.CheckoutStatus == checkoutevents.CheckoutStatusSuccess &&
			checkoutContext.PaymentMethod == event.Payload.Payment.Entity.Method {
			return nil
		}

		checkoutContext.CheckoutStatus = checkoutevents.CheckoutStatusSuccess
		if event.Payload.Payment.Entity.Method != "" {
			checkoutContext.PaymentMethod = event.Payload.Payment.Entity.Method
		}
		checkoutContext.LastModified = &now

		err = s.checkoutStore.Put(c, cartUID, checkoutContext)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return nil
	})
}

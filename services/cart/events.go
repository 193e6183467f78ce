package cart

import (
	"context"
	"fmt"

	"github.com/skala-commerce/storefront/lib/myerrors"
	"github.com/skala-commerce/storefront/lib/myhttp"
	"github.com/skala-commerce/storefront/lib/mylog"
	"github.com/skala-commerce/storefront/services/checkoutevents"
)

func (s *service) Subscribe(c context.Context) error {
	err := s.subscriber.Subscribe(c, checkoutevents.TopicName, myhttp.GuessHostnameWithScheme()+"/cart/event")
	if err != nil {
		return fmt.Errorf("error subscribing to topic %s: %s", checkoutevents.TopicName, err)
	}

	return nil
}

func (s *service) OnCheckoutStarted(c context.Context, topic string, event checkoutevents.CheckoutStarted) error {
	return nil
}

// OnCheckoutCompleted empties the shopper's cart once payment has succeeded
func (s *service) OnCheckoutCompleted(c context.Context, topic string, event checkoutevents.CheckoutCompleted) error {
	s.logger.Log(c, event.CheckoutUID, mylog.SeverityInfo, "Checkout %s of shopper %s completed -> %s", event.CheckoutUID, event.ShopperUID, event.CheckoutStatus)

	if event.CheckoutStatus != checkoutevents.CheckoutStatusSuccess {
		return nil
	}

	now := s.nower.Now()

	err := s.cartStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent
		cart, found, err := s.cartStore.Get(c, event.ShopperUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found || len(cart.Lines) == 0 {
			return nil
		}

		cart.Lines = []CartLine{}
		cart.LastModified = &now

		err = s.cartStore.Put(c, event.ShopperUID, cart)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

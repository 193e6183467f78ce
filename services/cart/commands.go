package cart

import (
	"context"
	"fmt"

	"github.com/skala-commerce/storefront/lib/myerrors"
	"github.com/skala-commerce/storefront/lib/mylog"
)

func (s *service) getCart(c context.Context, shopperUID string) (CartSummary, error) {
	s.logger.Log(c, shopperUID, mylog.SeverityInfo, "Fetch cart of shopper %s", shopperUID)

	cart, found, err := s.cartStore.Get(c, shopperUID)
	if err != nil {
		return CartSummary{}, myerrors.NewInternalError(err)
	}
	if !found {
		cart = Cart{ShopperUID: shopperUID, Lines: []CartLine{}}
	}

	return Summarize(cart), nil
}

func (s *service) addLine(c context.Context, shopperUID string, product ProductSnapshot, quantity int) (CartSummary, error) {
	s.logger.Log(c, shopperUID, mylog.SeverityInfo, "Add product %s (qty %d) to cart of shopper %s", product.UID, quantity, shopperUID)

	if quantity < 1 {
		return CartSummary{}, myerrors.NewInvalidInputError(fmt.Errorf("quantity must be at least 1, got %d", quantity))
	}

	now := s.nower.Now()

	var cart Cart
	err := s.cartStore.RunInTransaction(c, func(c context.Context) error {
		var found bool
		var err error
		cart, found, err = s.cartStore.Get(c, shopperUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			cart = Cart{
				ShopperUID: shopperUID,
				CreatedAt:  now,
				Lines:      []CartLine{},
			}
		}

		cart.Upsert(s.uuider.Create(), product, quantity, now)

		err = s.cartStore.Put(c, shopperUID, cart)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return nil
	})
	if err != nil {
		return CartSummary{}, err
	}

	return Summarize(cart), nil
}

func (s *service) changeQuantity(c context.Context, shopperUID string, lineUID string, quantity int) (CartSummary, error) {
	s.logger.Log(c, shopperUID, mylog.SeverityInfo, "Change quantity of line %s to %d for shopper %s", lineUID, quantity, shopperUID)

	if quantity < 1 {
		return CartSummary{}, myerrors.NewInvalidInputError(fmt.Errorf("quantity must be at least 1, got %d", quantity))
	}

	now := s.nower.Now()

	var cart Cart
	err := s.cartStore.RunInTransaction(c, func(c context.Context) error {
		var found bool
		var err error
		cart, found, err = s.cartStore.Get(c, shopperUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("cart of shopper %s not found", shopperUID))
		}

		adjusted := false
		for i, line := range cart.Lines {
			if line.UID == lineUID {
				cart.Lines[i].Quantity = quantity
				adjusted = true
				break
			}
		}
		if !adjusted {
			return myerrors.NewNotFoundError(fmt.Errorf("cart line %s not found", lineUID))
		}
		cart.LastModified = &now

		err = s.cartStore.Put(c, shopperUID, cart)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return nil
	})
	if err != nil {
		return CartSummary{}, err
	}

	return Summarize(cart), nil
}

func (s *service) removeLine(c context.Context, shopperUID string, lineUID string) (CartSummary, error) {
	s.logger.Log(c, shopperUID, mylog.SeverityInfo, "Remove line %s from cart of shopper %s", lineUID, shopperUID)

	now := s.nower.Now()

	var cart Cart
	err := s.cartStore.RunInTransaction(c, func(c context.Context) error {
		var found bool
		var err error
		cart, found, err = s.cartStore.Get(c, shopperUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("cart of shopper %s not found", shopperUID))
		}

		lines := make([]CartLine, 0, len(cart.Lines))
		removed := false
		for _, line := range cart.Lines {
			if line.UID == lineUID {
				removed = true
				continue
			}
			lines = append(lines, line)
		}
		if !removed {
			return myerrors.NewNotFoundError(fmt.Errorf("cart line %s not found", lineUID))
		}
		cart.Lines = lines
		cart.LastModified = &now

		err = s.cartStore.Put(c, shopperUID, cart)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return nil
	})
	if err != nil {
		return CartSummary{}, err
	}

	return Summarize(cart), nil
}

func (s *service) clear(c context.Context, shopperUID string) (CartSummary, error) {
	s.logger.Log(c, shopperUID, mylog.SeverityInfo, "Clear cart of shopper %s", shopperUID)

	now := s.nower.Now()

	cart := Cart{
		ShopperUID:   shopperUID,
		CreatedAt:    now,
		LastModified: &now,
		Lines:        []CartLine{},
	}
	err := s.cartStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent
		err := s.cartStore.Put(c, shopperUID, cart)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return nil
	})
	if err != nil {
		return CartSummary{}, err
	}

	return Summarize(cart), nil
}

package wishlist

import (
	"context"
	"fmt"

	"github.com/skala-commerce/storefront/lib/myerrors"
	"github.com/skala-commerce/storefront/lib/mylog"
	"github.com/skala-commerce/storefront/lib/mystore"
	"github.com/skala-commerce/storefront/lib/mytime"
	"github.com/skala-commerce/storefront/lib/myuuid"
	"github.com/skala-commerce/storefront/services/cart"
)

type service struct {
	wishlistStore mystore.Store[Wishlist]
	cartStore     mystore.Store[cart.Cart]
	nower         mytime.Nower
	uuider        myuuid.UUIDer
	logger        mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(wishlistStore mystore.Store[Wishlist], cartStore mystore.Store[cart.Cart], nower mytime.Nower, uuider myuuid.UUIDer, logger mylog.Logger) *service {
	return &service{
		wishlistStore: wishlistStore,
		cartStore:     cartStore,
		nower:         nower,
		uuider:        uuider,
		logger:        logger,
	}
}

func (s *service) getWishlist(c context.Context, shopperUID string) (Wishlist, error) {
	s.logger.Log(c, shopperUID, mylog.SeverityInfo, "Fetch wishlist of shopper %s", shopperUID)

	wishlist, found, err := s.wishlistStore.Get(c, shopperUID)
	if err != nil {
		return Wishlist{}, myerrors.NewInternalError(err)
	}
	if !found {
		wishlist = Wishlist{ShopperUID: shopperUID, Items: []Item{}}
	}

	return wishlist, nil
}

func (s *service) addItem(c context.Context, shopperUID string, product cart.ProductSnapshot) (Wishlist, error) {
	s.logger.Log(c, shopperUID, mylog.SeverityInfo, "Add product %s to wishlist of shopper %s", product.UID, shopperUID)

	now := s.nower.Now()

	var wishlist Wishlist
	err := s.wishlistStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent
		var found bool
		var err error
		wishlist, found, err = s.wishlistStore.Get(c, shopperUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			wishlist = Wishlist{
				ShopperUID: shopperUID,
				CreatedAt:  now,
				Items:      []Item{},
			}
		}

		for _, item := range wishlist.Items {
			if item.Product.UID == product.UID {
				return nil
			}
		}

		wishlist.Items = append(wishlist.Items, Item{
			Product: product,
			AddedAt: now,
		})
		wishlist.LastModified = &now

		err = s.wishlistStore.Put(c, shopperUID, wishlist)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return nil
	})
	if err != nil {
		return Wishlist{}, err
	}

	return wishlist, nil
}

func (s *service) removeItem(c context.Context, shopperUID string, productUID string) (Wishlist, error) {
	s.logger.Log(c, shopperUID, mylog.SeverityInfo, "Remove product %s from wishlist of shopper %s", productUID, shopperUID)

	now := s.nower.Now()

	var wishlist Wishlist
	err := s.wishlistStore.RunInTransaction(c, func(c context.Context) error {
		var found bool
		var err error
		wishlist, found, err = s.wishlistStore.Get(c, shopperUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("wishlist of shopper %s not found", shopperUID))
		}

		items := make([]Item, 0, len(wishlist.Items))
		removed := false
		for _, item := range wishlist.Items {
			if item.Product.UID == productUID {
				removed = true
				continue
			}
			items = append(items, item)
		}
		if !removed {
			return myerrors.NewNotFoundError(fmt.Errorf("product %s not on wishlist", productUID))
		}
		wishlist.Items = items
		wishlist.LastModified = &now

		err = s.wishlistStore.Put(c, shopperUID, wishlist)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return nil
	})
	if err != nil {
		return Wishlist{}, err
	}

	return wishlist, nil
}

// moveToCart removes the product from the wishlist and adds it to the cart in one transaction
func (s *service) moveToCart(c context.Context, shopperUID string, productUID string) (Wishlist, error) {
	s.logger.Log(c, shopperUID, mylog.SeverityInfo, "Move product %s from wishlist to cart for shopper %s", productUID, shopperUID)

	now := s.nower.Now()

	var wishlist Wishlist
	err := s.wishlistStore.RunInTransaction(c, func(c context.Context) error {
		var found bool
		var err error
		wishlist, found, err = s.wishlistStore.Get(c, shopperUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("wishlist of shopper %s not found", shopperUID))
		}

		var moved *Item
		items := make([]Item, 0, len(wishlist.Items))
		for _, item := range wishlist.Items {
			if item.Product.UID == productUID {
				moved = &item
				continue
			}
			items = append(items, item)
		}
		if moved == nil {
			return myerrors.NewNotFoundError(fmt.Errorf("product %s not on wishlist", productUID))
		}
		wishlist.Items = items
		wishlist.LastModified = &now

		shoppingCart, cartFound, err := s.cartStore.Get(c, shopperUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !cartFound {
			shoppingCart = cart.Cart{
				ShopperUID: shopperUID,
				CreatedAt:  now,
			}
		}
		shoppingCart.Upsert(s.uuider.Create(), moved.Product, 1, now)

		err = s.cartStore.Put(c, shopperUID, shoppingCart)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		err = s.wishlistStore.Put(c, shopperUID, wishlist)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return nil
	})
	if err != nil {
		return Wishlist{}, err
	}

	return wishlist, nil
}

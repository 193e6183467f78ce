package address

import (
	"context"
	"fmt"
	"sort"

	"github.com/skala-commerce/storefront/lib/myerrors"
	"github.com/skala-commerce/storefront/lib/mylog"
	"github.com/skala-commerce/storefront/lib/mystore"
	"github.com/skala-commerce/storefront/lib/mytime"
	"github.com/skala-commerce/storefront/lib/myuuid"
)

type service struct {
	addressStore mystore.Store[Address]
	nower        mytime.Nower
	uuider       myuuid.UUIDer
	logger       mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(store mystore.Store[Address], nower mytime.Nower, uuider myuuid.UUIDer, logger mylog.Logger) *service {
	return &service{
		addressStore: store,
		nower:        nower,
		uuider:       uuider,
		logger:       logger,
	}
}

func (s *service) listAddresses(c context.Context, shopperUID string) ([]Address, error) {
	s.logger.Log(c, shopperUID, mylog.SeverityInfo, "Fetch all addresses of shopper %s", shopperUID)

	addresses, err := s.addressStore.Query(c, []mystore.Filter{
		{Field: "ShopperUID", Compare: "=", Value: shopperUID},
	}, "")
	if err != nil {
		return nil, myerrors.NewInternalError(err)
	}

	sort.Slice(addresses, func(i, j int) bool {
		return addresses[i].CreatedAt.After(addresses[j].CreatedAt)
	})
	return addresses, nil
}

func (s *service) getAddress(c context.Context, shopperUID string, addressUID string) (Address, error) {
	address, found, err := s.addressStore.Get(c, addressUID)
	if err != nil {
		return Address{}, myerrors.NewInternalError(err)
	}
	if !found || address.ShopperUID != shopperUID {
		return Address{}, myerrors.NewNotFoundError(fmt.Errorf("address with uid %s not found", addressUID))
	}

	return address, nil
}

func (s *service) createAddress(c context.Context, shopperUID string, req AddressRequest) (Address, error) {
	addressUID := s.uuider.Create()
	now := s.nower.Now()

	s.logger.Log(c, addressUID, mylog.SeverityInfo, "Creating address %s for shopper %s", addressUID, shopperUID)

	address := Address{
		UID:         addressUID,
		ShopperUID:  shopperUID,
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
		Street:      req.Street,
		City:        req.City,
		State:       req.State,
		PostalCode:  req.PostalCode,
		CreatedAt:   now,
	}

	err := s.addressStore.RunInTransaction(c, func(c context.Context) error {
		// The first address of a shopper automatically becomes the default
		existing, err := s.addressStore.Query(c, []mystore.Filter{
			{Field: "ShopperUID", Compare: "=", Value: shopperUID},
		}, "")
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		address.IsDefault = len(existing) == 0

		err = s.addressStore.Put(c, addressUID, address)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return nil
	})
	if err != nil {
		return Address{}, err
	}

	return address, nil
}

func (s *service) updateAddress(c context.Context, shopperUID string, addressUID string, req AddressRequest) (Address, error) {
	s.logger.Log(c, addressUID, mylog.SeverityInfo, "Updating address %s of shopper %s", addressUID, shopperUID)

	now := s.nower.Now()

	var address Address
	err := s.addressStore.RunInTransaction(c, func(c context.Context) error {
		var found bool
		var err error
		address, found, err = s.addressStore.Get(c, addressUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found || address.ShopperUID != shopperUID {
			return myerrors.NewNotFoundError(fmt.Errorf("address with uid %s not found", addressUID))
		}

		address.FullName = req.FullName
		address.PhoneNumber = req.PhoneNumber
		address.Street = req.Street
		address.City = req.City
		address.State = req.State
		address.PostalCode = req.PostalCode
		address.LastModified = &now

		err = s.addressStore.Put(c, addressUID, address)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return nil
	})
	if err != nil {
		return Address{}, err
	}

	return address, nil
}

func (s *service) deleteAddress(c context.Context, shopperUID string, addressUID string) error {
	s.logger.Log(c, addressUID, mylog.SeverityInfo, "Deleting address %s of shopper %s", addressUID, shopperUID)

	return s.addressStore.RunInTransaction(c, func(c context.Context) error {
		address, found, err := s.addressStore.Get(c, addressUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found || address.ShopperUID != shopperUID {
			return myerrors.NewNotFoundError(fmt.Errorf("address with uid %s not found", addressUID))
		}

		return s.addressStore.Delete(c, addressUID)
	})
}

// selectDefault atomically moves the default flag: the previous default is
// cleared in the same transaction that sets the new one
func (s *service) selectDefault(c context.Context, shopperUID string, addressUID string) (Address, error) {
	s.logger.Log(c, addressUID, mylog.SeverityInfo, "Selecting address %s as default for shopper %s", addressUID, shopperUID)

	now := s.nower.Now()

	var selected Address
	err := s.addressStore.RunInTransaction(c, func(c context.Context) error {
		addresses, err := s.addressStore.Query(c, []mystore.Filter{
			{Field: "ShopperUID", Compare: "=", Value: shopperUID},
		}, "")
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		found := false
		for _, address := range addresses {
			switch {
			case address.UID == addressUID:
				found = true
				address.IsDefault = true
				address.LastModified = &now
				selected = address
			case address.IsDefault:
				address.IsDefault = false
				address.LastModified = &now
			default:
				continue
			}

			err = s.addressStore.Put(c, address.UID, address)
			if err != nil {
				return myerrors.NewInternalError(err)
			}
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("address with uid %s not found", addressUID))
		}

		return nil
	})
	if err != nil {
		return Address{}, err
	}

	return selected, nil
}

package order

import (
	"context"
	"fmt"
	"sort"

	"github.com/skala-commerce/storefront/lib/myerrors"
	"github.com/skala-commerce/storefront/lib/mylog"
	"github.com/skala-commerce/storefront/lib/mypublisher"
	"github.com/skala-commerce/storefront/lib/mystore"
	"github.com/skala-commerce/storefront/lib/mytime"
	"github.com/skala-commerce/storefront/services/order/orderevents"
)

type service struct {
	orderStore mystore.Store[FinalOrder]
	publisher  mypublisher.Publisher
	nower      mytime.Nower
	logger     mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(store mystore.Store[FinalOrder], publisher mypublisher.Publisher, nower mytime.Nower, logger mylog.Logger) *service {
	return &service{
		orderStore: store,
		publisher:  publisher,
		nower:      nower,
		logger:     logger,
	}
}

func (s *service) CreateTopics(c context.Context) error {
	err := s.publisher.CreateTopic(c, orderevents.TopicName)
	if err != nil {
		return fmt.Errorf("error creating topic %s: %s", orderevents.TopicName, err)
	}

	return nil
}

func (s *service) listOrders(c context.Context, shopperUID string) ([]FinalOrder, error) {
	s.logger.Log(c, shopperUID, mylog.SeverityInfo, "Fetch all orders of shopper %s", shopperUID)

	orders, err := s.orderStore.Query(c, []mystore.Filter{
		{Field: "ShopperUID", Compare: "=", Value: shopperUID},
	}, "")
	if err != nil {
		return nil, myerrors.NewInternalError(err)
	}

	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (s *service) getOrder(c context.Context, shopperUID string, orderUID string) (FinalOrder, error) {
	s.logger.Log(c, orderUID, mylog.SeverityInfo, "Fetch order %s", orderUID)

	order, found, err := s.orderStore.Get(c, orderUID)
	if err != nil {
		return FinalOrder{}, myerrors.NewInternalError(err)
	}
	if !found || order.ShopperUID != shopperUID {
		return FinalOrder{}, myerrors.NewNotFoundError(fmt.Errorf("order with uid %s not found", orderUID))
	}

	return order, nil
}

func (s *service) listAllOrders(c context.Context) ([]FinalOrder, error) {
	s.logger.Log(c, "", mylog.SeverityInfo, "Fetch all orders")

	orders, err := s.orderStore.List(c)
	if err != nil {
		return nil, myerrors.NewInternalError(err)
	}

	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (s *service) updateStatus(c context.Context, orderUID string, newStatus OrderStatus) (FinalOrder, error) {
	s.logger.Log(c, orderUID, mylog.SeverityInfo, "Update status of order %s -> %s", orderUID, newStatus)

	if !newStatus.IsValid() {
		return FinalOrder{}, myerrors.NewInvalidInputError(fmt.Errorf("unknown order status %s", newStatus))
	}

	now := s.nower.Now()

	var order FinalOrder
	err := s.orderStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent
		var found bool
		var err error
		order, found, err = s.orderStore.Get(c, orderUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("order with uid %s not found", orderUID))
		}

		if order.Status == newStatus {
			return nil
		}
		if !order.Status.CanAdvanceTo(newStatus) {
			return myerrors.NewConflictError(fmt.Errorf("order %s cannot move from %s to %s", orderUID, order.Status, newStatus))
		}

		oldStatus := order.Status
		order.Status = newStatus
		order.LastModified = &now

		err = s.orderStore.Put(c, orderUID, order)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		err = s.publisher.Publish(c, orderevents.TopicName, orderevents.OrderStatusChanged{
			OrderUID:   orderUID,
			ShopperUID: order.ShopperUID,
			OldStatus:  string(oldStatus),
			NewStatus:  string(newStatus),
		})
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error publishing event: %s", err))
		}

		return nil
	})
	if err != nil {
		return FinalOrder{}, err
	}

	return order, nil
}

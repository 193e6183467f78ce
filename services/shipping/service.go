package shipping

import (
	"context"
	"fmt"

	"github.com/skala-commerce/storefront/lib/myerrors"
	"github.com/skala-commerce/storefront/lib/mylog"
	"github.com/skala-commerce/storefront/lib/myqueue"
	"github.com/skala-commerce/storefront/lib/mystore"
	"github.com/skala-commerce/storefront/lib/mytime"
	"github.com/skala-commerce/storefront/services/courier"
	"github.com/skala-commerce/storefront/services/order"
)

// Service registers consignments with the courier. Shipment creation is
// best-effort: a failure never invalidates the already-paid order.
type Service struct {
	orderStore mystore.Store[order.FinalOrder]
	gateway    courier.Gateway
	queue      myqueue.TaskQueuer
	nower      mytime.Nower
	logger     mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewService(orderStore mystore.Store[order.FinalOrder], gateway courier.Gateway, queue myqueue.TaskQueuer, nower mytime.Nower, logger mylog.Logger) *Service {
	return &Service{
		orderStore: orderStore,
		gateway:    gateway,
		queue:      queue,
		nower:      nower,
		logger:     logger,
	}
}

// RequestShipment makes one synchronous attempt. When the courier is down the
// failure is recorded on the order and a retry task is enqueued; the returned
// error tells the caller to treat the result as a partial success.
func (s *Service) RequestShipment(c context.Context, orderUID string) (order.ShipmentDetails, error) {
	details, err := s.createShipment(c, orderUID)
	if err != nil {
		s.logger.Log(c, orderUID, mylog.SeverityWarn, "Shipment creation for order %s failed, scheduling retry: %s", orderUID, err)

		queueErr := s.queue.Enqueue(c, myqueue.Task{
			UID:            "shipment_" + orderUID,
			WebhookURLPath: fmt.Sprintf("/shipping/task/%s", orderUID),
			Payload:        []byte{},
		})
		if queueErr != nil {
			s.logger.Log(c, orderUID, mylog.SeverityError, "Error enqueuing shipment retry for order %s: %s", orderUID, queueErr)
		}

		return details, err
	}

	return details, nil
}

// createShipment is also what the queued retry task executes
func (s *Service) createShipment(c context.Context, orderUID string) (order.ShipmentDetails, error) {
	s.logger.Log(c, orderUID, mylog.SeverityInfo, "Create shipment for order %s", orderUID)

	now := s.nower.Now()

	ord, found, err := s.orderStore.Get(c, orderUID)
	if err != nil {
		return order.ShipmentDetails{}, myerrors.NewInternalError(err)
	}
	if !found {
		return order.ShipmentDetails{}, myerrors.NewNotFoundError(fmt.Errorf("order with uid %s not found", orderUID))
	}
	if ord.ShipmentDetails != nil && ord.ShipmentDetails.ConsignmentID != "" {
		return *ord.ShipmentDetails, nil
	}

	var details order.ShipmentDetails
	consignment, gatewayErr := s.gateway.CreateConsignment(c, courier.ConsignmentRequest{
		OrderUID:    orderUID,
		FullName:    ord.Address.FullName,
		PhoneNumber: ord.Address.PhoneNumber,
		Street:      ord.Address.Street,
		City:        ord.Address.City,
		State:       ord.Address.State,
		PostalCode:  ord.Address.PostalCode,
	})
	if gatewayErr != nil {
		details = order.ShipmentDetails{Error: gatewayErr.Error()}
	} else {
		details = order.ShipmentDetails{
			ConsignmentID: consignment.ConsignmentID,
			Courier:       consignment.Courier,
		}
	}

	err = s.orderStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent
		ord, found, err := s.orderStore.Get(c, orderUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("order with uid %s not found", orderUID))
		}
		if ord.ShipmentDetails != nil && ord.ShipmentDetails.ConsignmentID != "" {
			details = *ord.ShipmentDetails
			return nil
		}

		ord.ShipmentDetails = &details
		ord.LastModified = &now

		err = s.orderStore.Put(c, orderUID, ord)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return nil
	})
	if err != nil {
		return order.ShipmentDetails{}, err
	}
	if gatewayErr != nil {
		return details, gatewayErr
	}

	return details, nil
}

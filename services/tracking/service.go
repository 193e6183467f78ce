package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/skala-commerce/storefront/lib/mycache"
	"github.com/skala-commerce/storefront/lib/myerrors"
	"github.com/skala-commerce/storefront/lib/mylog"
	"github.com/skala-commerce/storefront/lib/mystore"
	"github.com/skala-commerce/storefront/services/courier"
	"github.com/skala-commerce/storefront/services/order"
)

// TrackingInfo is what the shopper sees. An unshipped order yields a static
// response without any courier traffic.
type TrackingInfo struct {
	OrderUID string
	Shipped  bool
	Status   *courier.TrackingStatus
}

type service struct {
	orderStore mystore.Store[order.FinalOrder]
	gateway    courier.Gateway
	cache      mycache.Cache
	reconciler *Reconciler
	logger     mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(orderStore mystore.Store[order.FinalOrder], gateway courier.Gateway, cache mycache.Cache, reconciler *Reconciler, logger mylog.Logger) *service {
	return &service{
		orderStore: orderStore,
		gateway:    gateway,
		cache:      cache,
		reconciler: reconciler,
		logger:     logger,
	}
}

func (s *service) getTracking(c context.Context, shopperUID string, orderUID string) (TrackingInfo, error) {
	s.logger.Log(c, orderUID, mylog.SeverityInfo, "Fetch tracking info of order %s", orderUID)

	ord, found, err := s.orderStore.Get(c, orderUID)
	if err != nil {
		return TrackingInfo{}, myerrors.NewInternalError(err)
	}
	if !found || ord.ShopperUID != shopperUID {
		return TrackingInfo{}, myerrors.NewNotFoundError(fmt.Errorf("order with uid %s not found", orderUID))
	}

	if ord.ShipmentDetails == nil || ord.ShipmentDetails.ConsignmentID == "" {
		return TrackingInfo{OrderUID: orderUID, Shipped: false}, nil
	}

	status, err := s.liveStatus(c, orderUID, ord.ShipmentDetails.ConsignmentID)
	if err != nil {
		return TrackingInfo{}, err
	}

	// Keep the cached status fresh while the order is being watched
	s.reconciler.Start(context.WithoutCancel(c), orderUID, ord.ShipmentDetails.ConsignmentID)

	return TrackingInfo{
		OrderUID: orderUID,
		Shipped:  true,
		Status:   &status,
	}, nil
}

func (s *service) stopTracking(c context.Context, orderUID string) {
	s.logger.Log(c, orderUID, mylog.SeverityInfo, "Stop watching order %s", orderUID)

	s.reconciler.Stop()
}

func (s *service) liveStatus(c context.Context, orderUID string, consignmentID string) (courier.TrackingStatus, error) {
	cached, err := s.cache.Get(c, cacheKey(orderUID))
	if err == nil {
		status := courier.TrackingStatus{}
		err = json.Unmarshal(cached, &status)
		if err == nil {
			return status, nil
		}
	} else if !errors.Is(err, mycache.ErrCacheMiss) {
		s.logger.Log(c, orderUID, mylog.SeverityWarn, "Error reading cached status of order %s: %s", orderUID, err)
	}

	status, err := s.gateway.GetTrackingStatus(c, consignmentID)
	if err != nil {
		return courier.TrackingStatus{}, err
	}

	statusBytes, err := json.Marshal(status)
	if err == nil {
		_ = s.cache.Set(c, cacheKey(orderUID), statusBytes, cacheTTL)
	}

	return status, nil
}

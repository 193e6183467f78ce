package tracking

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/skala-commerce/storefront/lib/mycache"
	"github.com/skala-commerce/storefront/lib/mylog"
	"github.com/skala-commerce/storefront/lib/mystore"
	"github.com/skala-commerce/storefront/services/courier"
	"github.com/skala-commerce/storefront/services/order"
	"github.com/skala-commerce/storefront/services/session"
)

func TestTrackingService(t *testing.T) {

	t.Run("Unshipped order yields static response without courier traffic", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup: no gateway expectations, any courier call fails the test
		ctx, router, storer, _, sut := setup(t, ctrl)
		defer sut.Stop()

		// given
		_ = storer.Put(ctx, "order_1", order.FinalOrder{
			UID:        "order_1",
			ShopperUID: "shopper_123",
			Status:     order.OrderStatusConfirmed,
		})

		// when
		request, err := http.NewRequest(http.MethodGet, "/track/order_1", nil)
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		assert.Contains(t, response.Body.String(), `"Shipped": false`)
	})

	t.Run("Shipped order returns live courier status", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, gateway, sut := setup(t, ctrl)
		defer sut.Stop()

		// given
		gateway.EXPECT().GetTrackingStatus(gomock.Any(), "cons_1").Return(courier.TrackingStatus{
			Status:    "out_for_delivery",
			Location:  "Bengaluru",
			Timestamp: time.Date(2024, 7, 15, 12, 30, 0, 0, time.UTC),
		}, nil).AnyTimes()
		_ = storer.Put(ctx, "order_1", order.FinalOrder{
			UID:        "order_1",
			ShopperUID: "shopper_123",
			Status:     order.OrderStatusShipped,
			ShipmentDetails: &order.ShipmentDetails{
				ConsignmentID: "cons_1",
				Courier:       "bluedart",
			},
		})

		// when
		request, _ := http.NewRequest(http.MethodGet, "/track/order_1", nil)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		assert.Contains(t, response.Body.String(), `"Shipped": true`)
		assert.Contains(t, response.Body.String(), "out_for_delivery")
	})

	t.Run("Cannot track another shopper's order", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, _, sut := setup(t, ctrl)
		defer sut.Stop()

		_ = storer.Put(ctx, "order_1", order.FinalOrder{
			UID:        "order_1",
			ShopperUID: "shopper_someone_else",
		})

		// when
		request, _ := http.NewRequest(http.MethodGet, "/track/order_1", nil)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 404, response.Code)
	})

	t.Run("Stop endpoint halts the poller", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, gateway, sut := setup(t, ctrl)

		gateway.EXPECT().GetTrackingStatus(gomock.Any(), "cons_1").Return(courier.TrackingStatus{
			Status: "in_transit",
		}, nil).AnyTimes()
		_ = storer.Put(ctx, "order_1", order.FinalOrder{
			UID:        "order_1",
			ShopperUID: "shopper_123",
			ShipmentDetails: &order.ShipmentDetails{
				ConsignmentID: "cons_1",
			},
		})

		request, _ := http.NewRequest(http.MethodGet, "/track/order_1", nil)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)
		assert.Equal(t, 200, response.Code)

		// when
		request, _ = http.NewRequest(http.MethodDelete, "/track/order_1", nil)
		response = httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)

		sut.mutex.Lock()
		assert.Nil(t, sut.cancel)
		sut.mutex.Unlock()
	})
}

func testAuth(shopperUID string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), session.Session{
				ShopperUID: shopperUID,
			})))
		})
	}
}

func setup(t *testing.T, ctrl *gomock.Controller) (context.Context, *mux.Router, mystore.Store[order.FinalOrder], *courier.MockGateway, *Reconciler) {
	c := context.TODO()
	storer, _, _ := mystore.New[order.FinalOrder](c)
	gateway := courier.NewMockGateway(ctrl)
	cache, _, _ := mycache.NewInMemoryCache(c)
	reconciler := NewReconciler(gateway, cache, mylog.New("tracking_test"))

	sut := NewWebService(storer, gateway, cache, reconciler, testAuth("shopper_123"))
	router := mux.NewRouter()

	err := sut.RegisterEndpoints(c, router)
	assert.NoError(t, err)

	return c, router, storer, gateway, reconciler
}

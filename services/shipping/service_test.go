package shipping

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/skala-commerce/storefront/lib/mylog"
	"github.com/skala-commerce/storefront/lib/myqueue"
	"github.com/skala-commerce/storefront/lib/mystore"
	"github.com/skala-commerce/storefront/lib/mytime"
	"github.com/skala-commerce/storefront/services/courier"
	"github.com/skala-commerce/storefront/services/order"
)

func TestShippingService(t *testing.T) {

	t.Run("Successful shipment is stored on the order", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, sut, storer, gateway, _, nower := setup(t, ctrl)

		// given
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		gateway.EXPECT().CreateConsignment(gomock.Any(), gomock.Any()).Return(courier.Consignment{
			ConsignmentID: "cons_1",
			Courier:       "bluedart",
		}, nil)
		_ = storer.Put(ctx, "order_1", FinalOrderFixture("order_1"))

		// when
		details, err := sut.RequestShipment(ctx, "order_1")

		// then
		assert.NoError(t, err)
		assert.Equal(t, "cons_1", details.ConsignmentID)

		ord, _, _ := storer.Get(ctx, "order_1")
		assert.NotNil(t, ord.ShipmentDetails)
		assert.Equal(t, "cons_1", ord.ShipmentDetails.ConsignmentID)
		assert.Empty(t, ord.ShipmentDetails.Error)
	})

	t.Run("Courier failure records error and schedules retry", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, sut, storer, gateway, queue, nower := setup(t, ctrl)

		// given
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		gateway.EXPECT().CreateConsignment(gomock.Any(), gomock.Any()).Return(courier.Consignment{}, fmt.Errorf("courier down"))
		queue.EXPECT().Enqueue(gomock.Any(), myqueue.Task{
			UID:            "shipment_order_1",
			WebhookURLPath: "/shipping/task/order_1",
			Payload:        []byte{},
		}).Return(nil)
		_ = storer.Put(ctx, "order_1", FinalOrderFixture("order_1"))

		// when
		details, err := sut.RequestShipment(ctx, "order_1")

		// then: the order survives with the error recorded
		assert.Error(t, err)
		assert.Contains(t, details.Error, "courier down")

		ord, _, _ := storer.Get(ctx, "order_1")
		assert.NotNil(t, ord.ShipmentDetails)
		assert.Contains(t, ord.ShipmentDetails.Error, "courier down")
	})

	t.Run("Second attempt after success is a no-op", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, sut, storer, _, _, nower := setup(t, ctrl)

		// given: shipment already registered, no courier call expected
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		ord := FinalOrderFixture("order_1")
		ord.ShipmentDetails = &order.ShipmentDetails{ConsignmentID: "cons_1", Courier: "bluedart"}
		_ = storer.Put(ctx, "order_1", ord)

		// when
		details, err := sut.RequestShipment(ctx, "order_1")

		// then
		assert.NoError(t, err)
		assert.Equal(t, "cons_1", details.ConsignmentID)
	})

	t.Run("Queued retry task succeeds where the first attempt failed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, sut, storer, gateway, _, nower := setup(t, ctrl)

		router := mux.NewRouter()
		err := NewWebService(sut).RegisterEndpoints(ctx, router)
		assert.NoError(t, err)

		// given: the earlier attempt left only an error behind
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		gateway.EXPECT().CreateConsignment(gomock.Any(), gomock.Any()).Return(courier.Consignment{
			ConsignmentID: "cons_1",
			Courier:       "bluedart",
		}, nil)
		ord := FinalOrderFixture("order_1")
		ord.ShipmentDetails = &order.ShipmentDetails{Error: "courier down"}
		_ = storer.Put(ctx, "order_1", ord)

		// when
		request, _ := http.NewRequest(http.MethodPut, "/shipping/task/order_1", nil)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)

		stored, _, _ := storer.Get(ctx, "order_1")
		assert.Equal(t, "cons_1", stored.ShipmentDetails.ConsignmentID)
		assert.Empty(t, stored.ShipmentDetails.Error)
	})
}

func FinalOrderFixture(uid string) order.FinalOrder {
	return order.FinalOrder{
		UID:        uid,
		ShopperUID: "shopper_123",
		Status:     order.OrderStatusConfirmed,
		Address: order.AddressSnapshot{
			FullName:    "Asha Sharma",
			PhoneNumber: "+919812345678",
			Street:      "14 MG Road",
			City:        "Bengaluru",
			State:       "Karnataka",
			PostalCode:  "560001",
		},
	}
}

func setup(t *testing.T, ctrl *gomock.Controller) (context.Context, *Service, mystore.Store[order.FinalOrder], *courier.MockGateway, *myqueue.MockTaskQueuer, *mytime.MockNower) {
	c := context.TODO()
	storer, _, _ := mystore.New[order.FinalOrder](c)
	gateway := courier.NewMockGateway(ctrl)
	queue := myqueue.NewMockTaskQueuer(ctrl)
	nower := mytime.NewMockNower(ctrl)

	sut := NewService(storer, gateway, queue, nower, mylog.New("shipping_test"))

	return c, sut, storer, gateway, queue, nower
}

package checkoutstripe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v74"
	"go.uber.org/mock/gomock"

	"github.com/skala-commerce/storefront/lib/mylog"
	"github.com/skala-commerce/storefront/lib/mypublisher"
	"github.com/skala-commerce/storefront/lib/myqueue"
	"github.com/skala-commerce/storefront/lib/mystore"
	"github.com/skala-commerce/storefront/lib/mytime"
	"github.com/skala-commerce/storefront/lib/myuuid"
	"github.com/skala-commerce/storefront/services/address"
	"github.com/skala-commerce/storefront/services/cart"
	"github.com/skala-commerce/storefront/services/checkoutapi"
	"github.com/skala-commerce/storefront/services/checkoutevents"
	"github.com/skala-commerce/storefront/services/courier"
	"github.com/skala-commerce/storefront/services/order"
	"github.com/skala-commerce/storefront/services/shipping"
)

func TestStripeCheckout(t *testing.T) {

	t.Run("Start checkout redirects to the hosted page", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		f := setup(t, ctrl)

		// given
		givenFilledCart(t, f)
		f.nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()
		f.payer.EXPECT().CreateCheckoutSession(gomock.Any(), gomock.Any()).Return(stripe.CheckoutSession{
			ID:  "cs_1",
			URL: "https://checkout.stripe.com/pay/cs_1",
		}, nil)
		f.publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, checkoutevents.CheckoutStarted{
			CheckoutUID:   "shopper_123",
			ProviderName:  "stripe",
			ShopperUID:    "shopper_123",
			AmountInPaise: 114900,
			Currency:      "INR",
		}).Return(nil)

		// when
		form, err := checkoutapi.Checkout{
			AddressUID:  "address_1",
			TotalAmount: checkoutapi.Amount{Value: 114900, Currency: "INR"},
			Shopper:     checkoutapi.Shopper{UID: "shopper_123"},
			ReturnURL:   "http://shop.example/basket",
		}.ToForm()
		assert.NoError(t, err)
		request, err := http.NewRequest(http.MethodPost, "/stripe/checkout/shopper_123", strings.NewReader(form.Encode()))
		assert.NoError(t, err)
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		response := httptest.NewRecorder()
		f.router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 303, response.Code)
		assert.Equal(t, "https://checkout.stripe.com/pay/cs_1", response.Header().Get("Location"))

		stored, exists, _ := f.checkoutStore.Get(f.ctx, "shopper_123")
		assert.True(t, exists)
		assert.Equal(t, checkoutapi.StateGatewayOpen, stored.State)
		assert.Equal(t, "cs_1", stored.GatewayOrderID)
	})

	t.Run("Cancel redirect fails the session", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		f := setup(t, ctrl)

		// given
		_ = f.checkoutStore.Put(f.ctx, "shopper_123", checkoutapi.CheckoutContext{
			CartUID:           "shopper_123",
			ShopperUID:        "shopper_123",
			State:             checkoutapi.StateGatewayOpen,
			PaymentProvider:   "stripe",
			GatewayOrderID:    "cs_1",
			OriginalReturnURL: "http://shop.example/basket",
		})
		f.nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()
		f.publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, gomock.Any()).Return(nil)

		// when
		request, _ := http.NewRequest(http.MethodGet, "/stripe/checkout/shopper_123/status/cancelled", nil)
		response := httptest.NewRecorder()
		f.router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 303, response.Code)
		assert.Equal(t, "http://shop.example/basket?status=cancelled", response.Header().Get("Location"))

		stored, _, _ := f.checkoutStore.Get(f.ctx, "shopper_123")
		assert.Equal(t, checkoutapi.StateFailed, stored.State)
	})

	t.Run("Webhook completion settles the order", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		f := setup(t, ctrl)

		// given
		givenFilledCart(t, f)
		_ = f.addressStore.Put(f.ctx, "address_1", address.Address{
			UID:        "address_1",
			ShopperUID: "shopper_123",
			FullName:   "Asha Mehta",
			City:       "Bengaluru",
			PostalCode: "560001",
		})
		_ = f.checkoutStore.Put(f.ctx, "shopper_123", checkoutapi.CheckoutContext{
			CartUID:         "shopper_123",
			ShopperUID:      "shopper_123",
			State:           checkoutapi.StateVerifying,
			PaymentProvider: "stripe",
			GatewayOrderID:  "cs_1",
			AmountInPaise:   114900,
			Currency:        "INR",
			AddressUID:      "address_1",
		})
		f.nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()
		f.uuider.EXPECT().Create().Return("order_1")
		f.publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, checkoutevents.CheckoutCompleted{
			CheckoutUID:    "shopper_123",
			ProviderName:   "stripe",
			ShopperUID:     "shopper_123",
			OrderUID:       "order_1",
			PaymentMethod:  "stripe",
			CheckoutStatus: checkoutevents.CheckoutStatusSuccess,
		}).Return(nil)
		f.courier.EXPECT().CreateConsignment(gomock.Any(), gomock.Any()).Return(courier.Consignment{
			ConsignmentID: "cons_1",
			Courier:       "bluedart",
		}, nil)

		// when
		request, _ := http.NewRequest(http.MethodPost, "/stripe/checkout/webhook/event", strings.NewReader(
			`{"type":"checkout.session.completed","data":{"object":{"id":"cs_1","client_reference_id":"shopper_123"}}}`))
		response := httptest.NewRecorder()
		f.router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)

		stored, _, _ := f.checkoutStore.Get(f.ctx, "shopper_123")
		assert.Equal(t, checkoutapi.StateSucceeded, stored.State)
		assert.Equal(t, "order_1", stored.OrderUID)

		finalOrder, exists, _ := f.orderStore.Get(f.ctx, "order_1")
		assert.True(t, exists)
		assert.Equal(t, int64(114900), finalOrder.TotalPriceInPaise)
		assert.Equal(t, order.OrderStatusConfirmed, finalOrder.Status)
	})

	t.Run("Replayed webhook does not create a second order", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		f := setup(t, ctrl)

		// given: already settled
		givenFilledCart(t, f)
		_ = f.checkoutStore.Put(f.ctx, "shopper_123", checkoutapi.CheckoutContext{
			CartUID:         "shopper_123",
			ShopperUID:      "shopper_123",
			State:           checkoutapi.StateSucceeded,
			PaymentProvider: "stripe",
			GatewayOrderID:  "cs_1",
			OrderUID:        "order_1",
			CheckoutStatus:  checkoutevents.CheckoutStatusSuccess,
		})

		// when
		request, _ := http.NewRequest(http.MethodPost, "/stripe/checkout/webhook/event", strings.NewReader(
			`{"type":"checkout.session.completed","data":{"object":{"id":"cs_1","client_reference_id":"shopper_123"}}}`))
		response := httptest.NewRecorder()
		f.router.ServeHTTP(response, request)

		// then: no order store writes, no events, no shipments
		assert.Equal(t, 200, response.Code)
		orders, _ := f.orderStore.List(f.ctx)
		assert.Empty(t, orders)
	})
}

type fixture struct {
	ctx           context.Context
	router        *mux.Router
	payer         *MockPayer
	checkoutStore mystore.Store[checkoutapi.CheckoutContext]
	cartStore     mystore.Store[cart.Cart]
	addressStore  mystore.Store[address.Address]
	orderStore    mystore.Store[order.FinalOrder]
	courier       *courier.MockGateway
	publisher     *mypublisher.MockPublisher
	nower         *mytime.MockNower
	uuider        *myuuid.MockUUIDer
}

func setup(t *testing.T, ctrl *gomock.Controller) fixture {
	c := context.TODO()

	f := fixture{ctx: c}
	f.checkoutStore, _, _ = mystore.New[checkoutapi.CheckoutContext](c)
	f.cartStore, _, _ = mystore.New[cart.Cart](c)
	f.addressStore, _, _ = mystore.New[address.Address](c)
	f.orderStore, _, _ = mystore.New[order.FinalOrder](c)
	f.payer = NewMockPayer(ctrl)
	f.courier = courier.NewMockGateway(ctrl)
	f.publisher = mypublisher.NewMockPublisher(ctrl)
	f.nower = mytime.NewMockNower(ctrl)
	f.uuider = myuuid.NewMockUUIDer(ctrl)

	queue := myqueue.NewMockTaskQueuer(ctrl)
	shipper := shipping.NewService(f.orderStore, f.courier, queue, f.nower, mylog.New("shipping_test"))

	// Called when the web service is constructed
	f.payer.EXPECT().UseAPIKey("sk_test_123")

	sut := NewWebService("sk_test_123", f.payer, f.checkoutStore, f.cartStore, f.addressStore, f.orderStore,
		shipper, f.publisher, f.nower, f.uuider)
	f.router = mux.NewRouter()

	err := sut.RegisterEndpoints(c, f.router)
	assert.NoError(t, err)

	return f
}

func givenFilledCart(t *testing.T, f fixture) {
	err := f.cartStore.Put(f.ctx, "shopper_123", cart.Cart{
		ShopperUID: "shopper_123",
		Lines: []cart.CartLine{
			{UID: "line_1", Product: cart.ProductSnapshot{UID: "product_kurta", Name: "Cotton kurta", PriceInPaise: 50000}, Quantity: 2},
		},
	})
	assert.NoError(t, err)
}

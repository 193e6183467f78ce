package cart

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/skala-commerce/storefront/lib/mypublisher"
	"github.com/skala-commerce/storefront/lib/mypubsub"
	"github.com/skala-commerce/storefront/lib/mystore"
	"github.com/skala-commerce/storefront/lib/mytime"
	"github.com/skala-commerce/storefront/lib/myuuid"
	"github.com/skala-commerce/storefront/services/checkoutevents"
	"github.com/skala-commerce/storefront/services/session"
)

func TestCartService(t *testing.T) {

	t.Run("Fetch empty cart", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _, _, _ := setup(t, ctrl)

		// when
		request, err := http.NewRequest(http.MethodGet, "/users/cart", nil)
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		assert.Contains(t, response.Body.String(), `"GrandTotalInPaise": 0`)
		assert.Contains(t, response.Body.String(), `"CheckoutAllowed": false`)
	})

	t.Run("Add line to cart", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, uuider, _, _ := setup(t, ctrl)

		// given
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		uuider.EXPECT().Create().Return("line_1")

		// when
		request, err := http.NewRequest(http.MethodPost, "/users/cart", strings.NewReader(
			`{"productUid":"product_kurta","name":"Cotton kurta","priceInPaise":50000,"quantity":2}`))
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		assert.Contains(t, response.Body.String(), `"GrandTotalInPaise": 114900`)
		assert.Contains(t, response.Body.String(), `"CheckoutAllowed": true`)

		cart, exists, _ := storer.Get(ctx, "shopper_123")
		assert.True(t, exists)
		assert.Len(t, cart.Lines, 1)
		assert.Equal(t, 2, cart.Lines[0].Quantity)
	})

	t.Run("Adding same product twice bumps quantity", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, uuider, _, _ := setup(t, ctrl)

		nower.EXPECT().Now().Return(mytime.ExampleTime).Times(2)
		uuider.EXPECT().Create().Return("line_1").Times(2)

		// when
		for i := 0; i < 2; i++ {
			request, _ := http.NewRequest(http.MethodPost, "/users/cart", strings.NewReader(
				`{"productUid":"product_kurta","name":"Cotton kurta","priceInPaise":50000,"quantity":1}`))
			response := httptest.NewRecorder()
			router.ServeHTTP(response, request)
			assert.Equal(t, 200, response.Code)
		}

		// then
		cart, exists, _ := storer.Get(ctx, "shopper_123")
		assert.True(t, exists)
		assert.Len(t, cart.Lines, 1)
		assert.Equal(t, 2, cart.Lines[0].Quantity)
	})

	t.Run("Add line with zero quantity is rejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _, _, _ := setup(t, ctrl)

		// when
		request, _ := http.NewRequest(http.MethodPost, "/users/cart", strings.NewReader(
			`{"productUid":"product_kurta","name":"Cotton kurta","priceInPaise":50000,"quantity":0}`))
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 400, response.Code)
	})

	t.Run("Change quantity of existing line", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, _, _, _ := setup(t, ctrl)

		// given
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		_ = storer.Put(ctx, "shopper_123", Cart{
			ShopperUID: "shopper_123",
			CreatedAt:  mytime.ExampleTime,
			Lines:      []CartLine{validLine("line_1", 50000, 2)},
		})

		// when
		request, _ := http.NewRequest(http.MethodPut, "/users/cart/line_1", strings.NewReader(`{"quantity":5}`))
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		cart, _, _ := storer.Get(ctx, "shopper_123")
		assert.Equal(t, 5, cart.Lines[0].Quantity)
	})

	t.Run("Change quantity of unknown line yields 404", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, _, _, _ := setup(t, ctrl)

		nower.EXPECT().Now().Return(mytime.ExampleTime)
		_ = storer.Put(ctx, "shopper_123", Cart{
			ShopperUID: "shopper_123",
			Lines:      []CartLine{validLine("line_1", 50000, 2)},
		})

		// when
		request, _ := http.NewRequest(http.MethodPut, "/users/cart/line_999", strings.NewReader(`{"quantity":5}`))
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 404, response.Code)
	})

	t.Run("Removing the only invalid line unblocks checkout", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, _, _, _ := setup(t, ctrl)

		// given: one valid and one orphaned line
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		_ = storer.Put(ctx, "shopper_123", Cart{
			ShopperUID: "shopper_123",
			Lines: []CartLine{
				validLine("line_1", 50000, 2),
				invalidLine("line_2"),
			},
		})

		// when
		request, _ := http.NewRequest(http.MethodDelete, "/users/cart/line_2", nil)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		assert.Contains(t, response.Body.String(), `"CheckoutAllowed": true`)
		assert.Contains(t, response.Body.String(), `"GrandTotalInPaise": 114900`)
	})

	t.Run("Checkout completed event clears the cart", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, _, _, _ := setup(t, ctrl)

		// given
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		_ = storer.Put(ctx, "shopper_123", Cart{
			ShopperUID: "shopper_123",
			Lines:      []CartLine{validLine("line_1", 50000, 2)},
		})

		// when
		request, _ := http.NewRequest(http.MethodPost, "/cart/event", strings.NewReader(
			mypublisher.CreatePubsubMessage(checkoutevents.TopicName, checkoutevents.CheckoutCompleted{
				CheckoutUID:    "cart_123",
				ProviderName:   "razorpay",
				ShopperUID:     "shopper_123",
				OrderUID:       "order_1",
				PaymentMethod:  "upi",
				CheckoutStatus: checkoutevents.CheckoutStatusSuccess,
			})))
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		cart, exists, _ := storer.Get(ctx, "shopper_123")
		assert.True(t, exists)
		assert.Empty(t, cart.Lines)
	})

	t.Run("Failed checkout event leaves the cart alone", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, _, _, _, _ := setup(t, ctrl)

		// given
		_ = storer.Put(ctx, "shopper_123", Cart{
			ShopperUID: "shopper_123",
			Lines:      []CartLine{validLine("line_1", 50000, 2)},
		})

		// when
		request, _ := http.NewRequest(http.MethodPost, "/cart/event", strings.NewReader(
			mypublisher.CreatePubsubMessage(checkoutevents.TopicName, checkoutevents.CheckoutCompleted{
				CheckoutUID:    "cart_123",
				ProviderName:   "razorpay",
				ShopperUID:     "shopper_123",
				CheckoutStatus: checkoutevents.CheckoutStatusFailed,
			})))
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		cart, _, _ := storer.Get(ctx, "shopper_123")
		assert.Len(t, cart.Lines, 1)
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

func setup(t *testing.T, ctrl *gomock.Controller) (context.Context, *mux.Router, mystore.Store[Cart], *mytime.MockNower, *myuuid.MockUUIDer, *mypubsub.MockPubSub, *mypublisher.MockPublisher) {
	c := context.TODO()
	storer, _, _ := mystore.New[Cart](c)
	nower := mytime.NewMockNower(ctrl)
	uuider := myuuid.NewMockUUIDer(ctrl)
	subscriber := mypubsub.NewMockPubSub(ctrl)
	publisher := mypublisher.NewMockPublisher(ctrl)

	sut := NewWebService(storer, nower, uuider, subscriber, publisher, testAuth("shopper_123"))
	router := mux.NewRouter()

	// Called by RegisterEndpoints
	subscriber.EXPECT().Subscribe(gomock.Any(), checkoutevents.TopicName, gomock.Any()).Return(nil)

	err := sut.RegisterEndpoints(c, router)
	assert.NoError(t, err)

	return c, router, storer, nower, uuider, subscriber, publisher
}

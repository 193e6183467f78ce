package wishlist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/skala-commerce/storefront/lib/mystore"
	"github.com/skala-commerce/storefront/lib/mytime"
	"github.com/skala-commerce/storefront/lib/myuuid"
	"github.com/skala-commerce/storefront/services/cart"
	"github.com/skala-commerce/storefront/services/session"
)

func TestWishlistService(t *testing.T) {

	t.Run("Add item to wishlist", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, _, nower, _ := setup(t, ctrl)

		// given
		nower.EXPECT().Now().Return(mytime.ExampleTime)

		// when
		request, err := http.NewRequest(http.MethodPost, "/users/wishlist", strings.NewReader(
			`{"productUid":"product_kurta","name":"Cotton kurta","priceInPaise":50000}`))
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)

		wishlist, exists, _ := storer.Get(ctx, "shopper_123")
		assert.True(t, exists)
		assert.Len(t, wishlist.Items, 1)
	})

	t.Run("Adding same product twice is a no-op", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, _, nower, _ := setup(t, ctrl)

		nower.EXPECT().Now().Return(mytime.ExampleTime).Times(2)

		// when
		for i := 0; i < 2; i++ {
			request, _ := http.NewRequest(http.MethodPost, "/users/wishlist", strings.NewReader(
				`{"productUid":"product_kurta","name":"Cotton kurta","priceInPaise":50000}`))
			response := httptest.NewRecorder()
			router.ServeHTTP(response, request)
			assert.Equal(t, 200, response.Code)
		}

		// then
		wishlist, _, _ := storer.Get(ctx, "shopper_123")
		assert.Len(t, wishlist.Items, 1)
	})

	t.Run("Move item to cart", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, cartStorer, nower, uuider := setup(t, ctrl)

		// given
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		uuider.EXPECT().Create().Return("line_1")
		_ = storer.Put(ctx, "shopper_123", Wishlist{
			ShopperUID: "shopper_123",
			Items: []Item{
				{Product: cart.ProductSnapshot{UID: "product_kurta", Name: "Cotton kurta", PriceInPaise: 50000}},
			},
		})

		// when
		request, _ := http.NewRequest(http.MethodPost, "/users/wishlist/product_kurta/cart", nil)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)

		wishlist, _, _ := storer.Get(ctx, "shopper_123")
		assert.Empty(t, wishlist.Items)

		shoppingCart, exists, _ := cartStorer.Get(ctx, "shopper_123")
		assert.True(t, exists)
		assert.Len(t, shoppingCart.Lines, 1)
		assert.Equal(t, "product_kurta", shoppingCart.Lines[0].Product.UID)
	})

	t.Run("Move unknown item yields 404", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, _, nower, _ := setup(t, ctrl)

		nower.EXPECT().Now().Return(mytime.ExampleTime)
		_ = storer.Put(ctx, "shopper_123", Wishlist{ShopperUID: "shopper_123", Items: []Item{}})

		// when
		request, _ := http.NewRequest(http.MethodPost, "/users/wishlist/product_unknown/cart", nil)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 404, response.Code)
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

func setup(t *testing.T, ctrl *gomock.Controller) (context.Context, *mux.Router, mystore.Store[Wishlist], mystore.Store[cart.Cart], *mytime.MockNower, *myuuid.MockUUIDer) {
	c := context.TODO()
	storer, _, _ := mystore.New[Wishlist](c)
	cartStorer, _, _ := mystore.New[cart.Cart](c)
	nower := mytime.NewMockNower(ctrl)
	uuider := myuuid.NewMockUUIDer(ctrl)

	sut := NewWebService(storer, cartStorer, nower, uuider, testAuth("shopper_123"))
	router := mux.NewRouter()

	err := sut.RegisterEndpoints(c, router)
	assert.NoError(t, err)

	return c, router, storer, cartStorer, nower, uuider
}

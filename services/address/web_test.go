package address

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
	"github.com/skala-commerce/storefront/services/session"
)

const addressPayload = `{"fullName":"Asha Sharma","phone":"+919812345678","street":"14 MG Road","city":"Bengaluru","state":"Karnataka","postalCode":"560001"}`

func TestAddressService(t *testing.T) {

	t.Run("Create first address becomes default", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, uuider := setup(t, ctrl)

		// given
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		uuider.EXPECT().Create().Return("address_1")

		// when
		request, err := http.NewRequest(http.MethodPost, "/users/address", strings.NewReader(addressPayload))
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)

		address, exists, _ := storer.Get(ctx, "address_1")
		assert.True(t, exists)
		assert.True(t, address.IsDefault)
		assert.Equal(t, "shopper_123", address.ShopperUID)
	})

	t.Run("Create address with missing postal code is rejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _ := setup(t, ctrl)

		// when
		request, _ := http.NewRequest(http.MethodPost, "/users/address", strings.NewReader(
			`{"fullName":"Asha Sharma","phone":"+919812345678","street":"14 MG Road","city":"Bengaluru"}`))
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 400, response.Code)
	})

	t.Run("Select default clears previous default atomically", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, _ := setup(t, ctrl)

		// given: two addresses, first is default
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		_ = storer.Put(ctx, "address_1", Address{UID: "address_1", ShopperUID: "shopper_123", IsDefault: true})
		_ = storer.Put(ctx, "address_2", Address{UID: "address_2", ShopperUID: "shopper_123"})

		// when
		request, _ := http.NewRequest(http.MethodPut, "/users/address/address_2/default", nil)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)

		first, _, _ := storer.Get(ctx, "address_1")
		second, _, _ := storer.Get(ctx, "address_2")
		assert.False(t, first.IsDefault)
		assert.True(t, second.IsDefault)
	})

	t.Run("Select default of unknown address yields 404", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, nower, _ := setup(t, ctrl)

		nower.EXPECT().Now().Return(mytime.ExampleTime)

		// when
		request, _ := http.NewRequest(http.MethodPut, "/users/address/address_999/default", nil)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 404, response.Code)
	})

	t.Run("List only returns own addresses", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, _, _ := setup(t, ctrl)

		// given: addresses of two shoppers
		_ = storer.Put(ctx, "address_1", Address{UID: "address_1", ShopperUID: "shopper_123", City: "Bengaluru"})
		_ = storer.Put(ctx, "address_2", Address{UID: "address_2", ShopperUID: "shopper_someone_else", City: "Pune"})

		// when
		request, _ := http.NewRequest(http.MethodGet, "/users/address", nil)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		assert.Contains(t, response.Body.String(), "Bengaluru")
		assert.NotContains(t, response.Body.String(), "Pune")
	})

	t.Run("Second address does not steal the default flag", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, uuider := setup(t, ctrl)

		// given: another shopper's default must not count as ours
		nower.EXPECT().Now().Return(mytime.ExampleTime).Times(2)
		uuider.EXPECT().Create().Return("address_1")
		uuider.EXPECT().Create().Return("address_2")
		_ = storer.Put(ctx, "address_other", Address{UID: "address_other", ShopperUID: "shopper_someone_else", IsDefault: true})

		request, _ := http.NewRequest(http.MethodPost, "/users/address", strings.NewReader(addressPayload))
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)
		assert.Equal(t, 200, response.Code)

		// when
		request, _ = http.NewRequest(http.MethodPost, "/users/address", strings.NewReader(addressPayload))
		response = httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then: our first address is the default, the second is not
		assert.Equal(t, 200, response.Code)
		first, _, _ := storer.Get(ctx, "address_1")
		second, _, _ := storer.Get(ctx, "address_2")
		assert.True(t, first.IsDefault)
		assert.False(t, second.IsDefault)
	})

	t.Run("Cannot touch another shopper's address", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, _ := setup(t, ctrl)

		nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()
		_ = storer.Put(ctx, "address_1", Address{UID: "address_1", ShopperUID: "shopper_someone_else"})

		// when
		request, _ := http.NewRequest(http.MethodDelete, "/users/address/address_1", nil)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 404, response.Code)

		_, exists, _ := storer.Get(ctx, "address_1")
		assert.True(t, exists)
	})

	t.Run("Delete address", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, _, _ := setup(t, ctrl)

		_ = storer.Put(ctx, "address_1", Address{UID: "address_1", ShopperUID: "shopper_123"})

		// when
		request, _ := http.NewRequest(http.MethodDelete, "/users/address/address_1", nil)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)

		_, exists, _ := storer.Get(ctx, "address_1")
		assert.False(t, exists)
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

func setup(t *testing.T, ctrl *gomock.Controller) (context.Context, *mux.Router, mystore.Store[Address], *mytime.MockNower, *myuuid.MockUUIDer) {
	c := context.TODO()
	storer, _, _ := mystore.New[Address](c)
	nower := mytime.NewMockNower(ctrl)
	uuider := myuuid.NewMockUUIDer(ctrl)

	sut := NewWebService(storer, nower, uuider, testAuth("shopper_123"))
	router := mux.NewRouter()

	err := sut.RegisterEndpoints(c, router)
	assert.NoError(t, err)

	return c, router, storer, nower, uuider
}

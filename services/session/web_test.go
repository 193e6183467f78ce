package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/gorilla/mux"

	"github.com/skala-commerce/storefront/lib/mylog"
	"github.com/skala-commerce/storefront/lib/mystore"
	"github.com/skala-commerce/storefront/lib/mytime"
	"github.com/skala-commerce/storefront/lib/myuuid"
)

func TestSessionService(t *testing.T) {

	t.Run("Register account", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, uuider, _ := setup(t, ctrl)

		// given
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		uuider.EXPECT().Create().Return("shopper_123")

		// when
		request, err := http.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(
			`{"fullName":"Asha Sharma","email":"asha@example.com","phone":"+919812345678","password":"s3cretword"}`))
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)

		account, exists, _ := storer.Get(ctx, "shopper_123")
		assert.True(t, exists)
		assert.Equal(t, "asha@example.com", account.Email)
		assert.NotEqual(t, "s3cretword", account.HashedPassword)
	})

	t.Run("Register account with invalid payload", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _, _ := setup(t, ctrl)

		// when: password too short
		request, err := http.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(
			`{"fullName":"Asha Sharma","email":"asha@example.com","phone":"+919812345678","password":"short"}`))
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 400, response.Code)
	})

	t.Run("Login with registered account", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, nower, uuider, tokenizer := setup(t, ctrl)

		// real clock here: the issued token's expiry is checked against wall time on Verify
		nower.EXPECT().Now().Return(time.Now()).AnyTimes()
		uuider.EXPECT().Create().Return("shopper_123")

		request, err := http.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(
			`{"fullName":"Asha Sharma","email":"asha@example.com","phone":"+919812345678","password":"s3cretword"}`))
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)
		assert.Equal(t, 200, response.Code)

		// when
		request, err = http.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(
			`{"email":"asha@example.com","password":"s3cretword"}`))
		assert.NoError(t, err)
		response = httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		assert.Contains(t, response.Body.String(), "AccessToken")

		// and the issued token must verify back to the same shopper
		body := response.Body.String()
		start := strings.Index(body, `"AccessToken": "`) + len(`"AccessToken": "`)
		end := strings.Index(body[start:], `"`)
		session, err := tokenizer.Verify(body[start : start+end])
		assert.NoError(t, err)
		assert.Equal(t, "shopper_123", session.ShopperUID)
	})

	t.Run("Register second account with different email", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, uuider, _ := setup(t, ctrl)

		// given
		nower.EXPECT().Now().Return(mytime.ExampleTime).Times(2)
		uuider.EXPECT().Create().Return("shopper_123")
		uuider.EXPECT().Create().Return("shopper_456")

		request, _ := http.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(
			`{"fullName":"Asha Sharma","email":"asha@example.com","phone":"+919812345678","password":"s3cretword"}`))
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)
		assert.Equal(t, 200, response.Code)

		// when
		request, _ = http.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(
			`{"fullName":"Ravi Iyer","email":"ravi@example.com","phone":"+919887654321","password":"an0therword"}`))
		response = httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)

		account, exists, _ := storer.Get(ctx, "shopper_456")
		assert.True(t, exists)
		assert.Equal(t, "ravi@example.com", account.Email)
	})

	t.Run("Register with duplicate email yields 409", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, nower, uuider, _ := setup(t, ctrl)

		// given
		nower.EXPECT().Now().Return(mytime.ExampleTime).Times(2)
		uuider.EXPECT().Create().Return("shopper_123")
		uuider.EXPECT().Create().Return("shopper_456")

		request, _ := http.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(
			`{"fullName":"Asha Sharma","email":"asha@example.com","phone":"+919812345678","password":"s3cretword"}`))
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)
		assert.Equal(t, 200, response.Code)

		// when
		request, _ = http.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(
			`{"fullName":"Asha S","email":"asha@example.com","phone":"+919812345678","password":"s3cretword"}`))
		response = httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 409, response.Code)
	})

	t.Run("Login matches on email with multiple accounts present", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, nower, uuider, tokenizer := setup(t, ctrl)

		// real clock here: the issued token's expiry is checked against wall time on Verify
		nower.EXPECT().Now().Return(time.Now()).AnyTimes()
		uuider.EXPECT().Create().Return("shopper_123")
		uuider.EXPECT().Create().Return("shopper_456")

		for _, payload := range []string{
			`{"fullName":"Asha Sharma","email":"asha@example.com","phone":"+919812345678","password":"s3cretword"}`,
			`{"fullName":"Ravi Iyer","email":"ravi@example.com","phone":"+919887654321","password":"an0therword"}`,
		} {
			request, _ := http.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(payload))
			response := httptest.NewRecorder()
			router.ServeHTTP(response, request)
			assert.Equal(t, 200, response.Code)
		}

		// when
		request, _ := http.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(
			`{"email":"ravi@example.com","password":"an0therword"}`))
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		body := response.Body.String()
		start := strings.Index(body, `"AccessToken": "`) + len(`"AccessToken": "`)
		end := strings.Index(body[start:], `"`)
		session, err := tokenizer.Verify(body[start : start+end])
		assert.NoError(t, err)
		assert.Equal(t, "shopper_456", session.ShopperUID)

		// and the other account's password must not unlock this one
		request, _ = http.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(
			`{"email":"ravi@example.com","password":"s3cretword"}`))
		response = httptest.NewRecorder()
		router.ServeHTTP(response, request)
		assert.Equal(t, 401, response.Code)
	})

	t.Run("Login with wrong password", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, nower, uuider, _ := setup(t, ctrl)

		nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()
		uuider.EXPECT().Create().Return("shopper_123")

		request, _ := http.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(
			`{"fullName":"Asha Sharma","email":"asha@example.com","phone":"+919812345678","password":"s3cretword"}`))
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)
		assert.Equal(t, 200, response.Code)

		// when
		request, _ = http.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(
			`{"email":"asha@example.com","password":"wrong"}`))
		response = httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 401, response.Code)
	})
}

func TestBearerAuth(t *testing.T) {
	logger := mylog.New("session_test")
	tokenizer := NewTokenizer("test-secret")

	router := mux.NewRouter()
	protected := router.PathPrefix("/users").Subrouter()
	protected.Use(BearerAuth(tokenizer, logger))
	protected.HandleFunc("/whoami", func(w http.ResponseWriter, r *http.Request) {
		session, _ := FromContext(r.Context())
		w.Write([]byte(session.ShopperUID))
	}).Methods("GET")

	t.Run("Missing token yields 401", func(t *testing.T) {
		request, _ := http.NewRequest(http.MethodGet, "/users/whoami", nil)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		assert.Equal(t, 401, response.Code)
	})

	t.Run("Garbage token yields 401", func(t *testing.T) {
		request, _ := http.NewRequest(http.MethodGet, "/users/whoami", nil)
		request.Header.Set("Authorization", "Bearer garbage")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		assert.Equal(t, 401, response.Code)
	})

	t.Run("Valid token passes session to handler", func(t *testing.T) {
		token, err := tokenizer.Issue("shopper_123", false, time.Now())
		assert.NoError(t, err)

		request, _ := http.NewRequest(http.MethodGet, "/users/whoami", nil)
		request.Header.Set("Authorization", "Bearer "+token)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		assert.Equal(t, 200, response.Code)
		assert.Equal(t, "shopper_123", response.Body.String())
	})
}

func setup(t *testing.T, ctrl *gomock.Controller) (context.Context, *mux.Router, mystore.Store[Account], *mytime.MockNower, *myuuid.MockUUIDer, Tokenizer) {
	c := context.TODO()
	storer, _, _ := mystore.New[Account](c)
	nower := mytime.NewMockNower(ctrl)
	uuider := myuuid.NewMockUUIDer(ctrl)
	tokenizer := NewTokenizer("test-secret")

	sut := NewWebService(storer, tokenizer, nower, uuider)
	router := mux.NewRouter()

	err := sut.RegisterEndpoints(c, router)
	assert.NoError(t, err)

	return c, router, storer, nower, uuider, tokenizer
}

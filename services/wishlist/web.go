package wishlist

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/skala-commerce/storefront/lib/mycontext"
	"github.com/skala-commerce/storefront/lib/myerrors"
	"github.com/skala-commerce/storefront/lib/myhttp"
	"github.com/skala-commerce/storefront/lib/mylog"
	"github.com/skala-commerce/storefront/lib/mystore"
	"github.com/skala-commerce/storefront/lib/mytime"
	"github.com/skala-commerce/storefront/lib/myuuid"
	"github.com/skala-commerce/storefront/services/cart"
	"github.com/skala-commerce/storefront/services/session"
)

var validate = validator.New()

type AddItemRequest struct {
	ProductUID   string `json:"productUid" validate:"required"`
	Name         string `json:"name"`
	PriceInPaise int64  `json:"priceInPaise" validate:"gte=0"`
}

type webService struct {
	logger       mylog.Logger
	service      *service
	authenticate mux.MiddlewareFunc
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewWebService(wishlistStore mystore.Store[Wishlist], cartStore mystore.Store[cart.Cart], nower mytime.Nower, uuider myuuid.UUIDer, authenticate mux.MiddlewareFunc) *webService {
	logger := mylog.New("wishlist")
	return &webService{
		logger:       logger,
		service:      newService(wishlistStore, cartStore, nower, uuider, logger),
		authenticate: authenticate,
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	authed := router.PathPrefix("/users/wishlist").Subrouter()
	authed.Use(s.authenticate)
	authed.HandleFunc("", s.getWishlistPage()).Methods("GET")
	authed.HandleFunc("", s.addItemPage()).Methods("POST")
	authed.HandleFunc("/{productUID}", s.removeItemPage()).Methods("DELETE")
	authed.HandleFunc("/{productUID}/cart", s.moveToCartPage()).Methods("POST")

	return nil
}

func (s *webService) getWishlistPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		shopperUID, err := shopperFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		wishlist, err := s.service.getWishlist(c, shopperUID)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, wishlist)
	}
}

func (s *webService) addItemPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		shopperUID, err := shopperFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		req := AddItemRequest{}
		err = json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			errorWriter.WriteError(c, w, 2, myerrors.NewInvalidInputError(fmt.Errorf("error parsing request: %s", err)))
			return
		}

		err = validate.Struct(req)
		if err != nil {
			errorWriter.WriteError(c, w, 3, myerrors.NewInvalidInputError(err))
			return
		}

		wishlist, err := s.service.addItem(c, shopperUID, cart.ProductSnapshot{
			UID:          req.ProductUID,
			Name:         req.Name,
			PriceInPaise: req.PriceInPaise,
		})
		if err != nil {
			errorWriter.WriteError(c, w, 4, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, wishlist)
	}
}

func (s *webService) removeItemPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		shopperUID, err := shopperFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		wishlist, err := s.service.removeItem(c, shopperUID, mux.Vars(r)["productUID"])
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, wishlist)
	}
}

func (s *webService) moveToCartPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		shopperUID, err := shopperFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		wishlist, err := s.service.moveToCart(c, shopperUID, mux.Vars(r)["productUID"])
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, wishlist)
	}
}

func shopperFromRequest(r *http.Request) (string, error) {
	sess, found := session.FromContext(r.Context())
	if !found {
		return "", myerrors.NewUnauthorizedError(fmt.Errorf("no authenticated shopper on request"))
	}

	return sess.ShopperUID, nil
}

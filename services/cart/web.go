package cart

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
	"github.com/skala-commerce/storefront/lib/mypublisher"
	"github.com/skala-commerce/storefront/lib/mypubsub"
	"github.com/skala-commerce/storefront/lib/mystore"
	"github.com/skala-commerce/storefront/lib/mytime"
	"github.com/skala-commerce/storefront/lib/myuuid"
	"github.com/skala-commerce/storefront/services/checkoutevents"
	"github.com/skala-commerce/storefront/services/session"
)

var validate = validator.New()

type AddLineRequest struct {
	ProductUID   string `json:"productUid" validate:"required"`
	Name         string `json:"name"`
	PriceInPaise int64  `json:"priceInPaise" validate:"gte=0"`
	Quantity     int    `json:"quantity" validate:"required,gte=1"`
}

type ChangeQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,gte=1"`
}

type webService struct {
	logger       mylog.Logger
	service      *service
	authenticate mux.MiddlewareFunc
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewWebService(store mystore.Store[Cart], nower mytime.Nower, uuider myuuid.UUIDer, subscriber mypubsub.PubSub, publisher mypublisher.Publisher, authenticate mux.MiddlewareFunc) *webService {
	logger := mylog.New("cart")
	return &webService{
		logger:       logger,
		service:      newService(store, nower, uuider, logger, subscriber, publisher),
		authenticate: authenticate,
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	authed := router.PathPrefix("/users/cart").Subrouter()
	authed.Use(s.authenticate)
	authed.HandleFunc("", s.getCartPage()).Methods("GET")
	authed.HandleFunc("", s.addLinePage()).Methods("POST")
	authed.HandleFunc("", s.clearCartPage()).Methods("DELETE")
	authed.HandleFunc("/{lineUID}", s.changeQuantityPage()).Methods("PUT")
	authed.HandleFunc("/{lineUID}", s.removeLinePage()).Methods("DELETE")

	// Receives checkout events via pubsub push
	router.HandleFunc("/cart/event", s.handleEventEnvelope()).Methods("POST")

	err := s.service.Subscribe(c)
	if err != nil {
		return err
	}

	return nil
}

func (s *webService) getCartPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		shopperUID, err := shopperFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		summary, err := s.service.getCart(c, shopperUID)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, summary)
	}
}

func (s *webService) addLinePage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		shopperUID, err := shopperFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		req := AddLineRequest{}
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

		summary, err := s.service.addLine(c, shopperUID, ProductSnapshot{
			UID:          req.ProductUID,
			Name:         req.Name,
			PriceInPaise: req.PriceInPaise,
		}, req.Quantity)
		if err != nil {
			errorWriter.WriteError(c, w, 4, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, summary)
	}
}

func (s *webService) changeQuantityPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		shopperUID, err := shopperFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		lineUID := mux.Vars(r)["lineUID"]

		req := ChangeQuantityRequest{}
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

		summary, err := s.service.changeQuantity(c, shopperUID, lineUID, req.Quantity)
		if err != nil {
			errorWriter.WriteError(c, w, 4, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, summary)
	}
}

func (s *webService) removeLinePage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		shopperUID, err := shopperFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		lineUID := mux.Vars(r)["lineUID"]

		summary, err := s.service.removeLine(c, shopperUID, lineUID)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, summary)
	}
}

func (s *webService) clearCartPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		shopperUID, err := shopperFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		summary, err := s.service.clear(c, shopperUID)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, summary)
	}
}

func (s *webService) handleEventEnvelope() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		err := checkoutevents.DispatchEvent(c, r.Body, s.service)
		if err != nil {
			errorWriter.WriteError(c, w, 4, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{
			Message: "Successfully processed event",
		})
	}
}

func shopperFromRequest(r *http.Request) (string, error) {
	sess, found := session.FromContext(r.Context())
	if !found {
		return "", myerrors.NewUnauthorizedError(fmt.Errorf("no authenticated shopper on request"))
	}

	return sess.ShopperUID, nil
}

package address

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
	"github.com/skala-commerce/storefront/services/session"
)

var validate = validator.New()

type AddressRequest struct {
	FullName    string `json:"fullName" validate:"required"`
	PhoneNumber string `json:"phone" validate:"required,min=10"`
	Street      string `json:"street" validate:"required"`
	City        string `json:"city" validate:"required"`
	State       string `json:"state"`
	PostalCode  string `json:"postalCode" validate:"required"`
}

type webService struct {
	logger       mylog.Logger
	service      *service
	authenticate mux.MiddlewareFunc
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewWebService(store mystore.Store[Address], nower mytime.Nower, uuider myuuid.UUIDer, authenticate mux.MiddlewareFunc) *webService {
	logger := mylog.New("address")
	return &webService{
		logger:       logger,
		service:      newService(store, nower, uuider, logger),
		authenticate: authenticate,
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	authed := router.PathPrefix("/users/address").Subrouter()
	authed.Use(s.authenticate)
	authed.HandleFunc("", s.listAddressesPage()).Methods("GET")
	authed.HandleFunc("", s.createAddressPage()).Methods("POST")
	authed.HandleFunc("/{addressUID}", s.updateAddressPage()).Methods("PUT")
	authed.HandleFunc("/{addressUID}", s.deleteAddressPage()).Methods("DELETE")
	authed.HandleFunc("/{addressUID}/default", s.selectDefaultPage()).Methods("PUT")

	return nil
}

func (s *webService) listAddressesPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		shopperUID, err := shopperFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		addresses, err := s.service.listAddresses(c, shopperUID)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, addresses)
	}
}

func (s *webService) createAddressPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		shopperUID, err := shopperFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		req, err := parseAddressRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		address, err := s.service.createAddress(c, shopperUID, req)
		if err != nil {
			errorWriter.WriteError(c, w, 3, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, address)
	}
}

func (s *webService) updateAddressPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		shopperUID, err := shopperFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		req, err := parseAddressRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		address, err := s.service.updateAddress(c, shopperUID, mux.Vars(r)["addressUID"], req)
		if err != nil {
			errorWriter.WriteError(c, w, 3, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, address)
	}
}

func (s *webService) deleteAddressPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		shopperUID, err := shopperFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		err = s.service.deleteAddress(c, shopperUID, mux.Vars(r)["addressUID"])
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{
			Message: "Address removed",
		})
	}
}

func (s *webService) selectDefaultPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		shopperUID, err := shopperFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		address, err := s.service.selectDefault(c, shopperUID, mux.Vars(r)["addressUID"])
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, address)
	}
}

func parseAddressRequest(r *http.Request) (AddressRequest, error) {
	req := AddressRequest{}
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		return AddressRequest{}, myerrors.NewInvalidInputError(fmt.Errorf("error parsing request: %s", err))
	}

	err = validate.Struct(req)
	if err != nil {
		return AddressRequest{}, myerrors.NewInvalidInputError(err)
	}

	return req, nil
}

func shopperFromRequest(r *http.Request) (string, error) {
	sess, found := session.FromContext(r.Context())
	if !found {
		return "", myerrors.NewUnauthorizedError(fmt.Errorf("no authenticated shopper on request"))
	}

	return sess.ShopperUID, nil
}

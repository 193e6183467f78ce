package checkoutmollie

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/skala-commerce/storefront/lib/mycontext"
	"github.com/skala-commerce/storefront/lib/myerrors"
	"github.com/skala-commerce/storefront/lib/myhttp"
	"github.com/skala-commerce/storefront/lib/mylog"
	"github.com/skala-commerce/storefront/lib/mypublisher"
	"github.com/skala-commerce/storefront/lib/mystore"
	"github.com/skala-commerce/storefront/lib/mytime"
	"github.com/skala-commerce/storefront/lib/myuuid"
	"github.com/skala-commerce/storefront/services/address"
	"github.com/skala-commerce/storefront/services/cart"
	"github.com/skala-commerce/storefront/services/checkoutapi"
	"github.com/skala-commerce/storefront/services/order"
)

type webService struct {
	logger  mylog.Logger
	service *service
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewWebService(apiKey string, payer Payer, checkoutStore mystore.Store[checkoutapi.CheckoutContext], cartStore mystore.Store[cart.Cart], addressStore mystore.Store[address.Address], orderStore mystore.Store[order.FinalOrder], shipper ShipmentRequester, publisher mypublisher.Publisher, nower mytime.Nower, uuider myuuid.UUIDer) *webService {
	logger := mylog.New("checkoutmollie")
	return &webService{
		logger:  logger,
		service: newService(apiKey, payer, checkoutStore, cartStore, addressStore, orderStore, shipper, publisher, nower, uuider, logger),
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	router.HandleFunc("/mollie/checkout/{cartUID}", s.startCheckoutPage()).Methods("POST")
	router.HandleFunc("/mollie/checkout/{cartUID}/status/{status}", s.checkoutCompletedPage()).Methods("GET")

	router.HandleFunc("/mollie/checkout/webhook/event/{cartUID}", s.webhookNotificationPage()).Methods("POST")

	return nil
}

// startCheckoutPage redirects the shopper to the hosted Mollie payment page
func (s *webService) startCheckoutPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		co, err := parseRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("error parsing request: %s", err)))
			return
		}

		redirectURL, err := s.service.startCheckout(c, co, myhttp.HostnameWithScheme(r))
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		http.Redirect(w, r, redirectURL, http.StatusSeeOther)
	}
}

func (s *webService) checkoutCompletedPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		redirectURL, err := s.service.finalizeCheckout(c, mux.Vars(r)["cartUID"], mux.Vars(r)["status"])
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		http.Redirect(w, r, redirectURL, http.StatusSeeOther)
	}
}

func (s *webService) webhookNotificationPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		err := r.ParseForm()
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(err))
			return
		}

		paymentID := r.FormValue("id")
		if paymentID == "" {
			errorWriter.WriteError(c, w, 2, myerrors.NewInvalidInputError(fmt.Errorf("missing payment id")))
			return
		}

		err = s.service.webhookNotification(c, mux.Vars(r)["cartUID"], paymentID)
		if err != nil {
			errorWriter.WriteError(c, w, 3, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{
			Message: "Webhook processed",
		})
	}
}

func parseRequest(r *http.Request) (checkoutapi.Checkout, error) {
	cartUID := mux.Vars(r)["cartUID"]
	if cartUID == "" {
		return checkoutapi.Checkout{}, myerrors.NewInvalidInputError(fmt.Errorf("missing cartUID"))
	}

	co, err := checkoutapi.NewFromRequest(r)
	if err != nil {
		return checkoutapi.Checkout{}, err
	}
	co.CartUID = cartUID

	return co, nil
}

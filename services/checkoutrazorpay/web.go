package checkoutrazorpay

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
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
	"github.com/skala-commerce/storefront/services/session"
)

//go:embed templates
var templateFolder embed.FS
var (
	checkoutPageTemplate *template.Template
)

func init() {
	checkoutPageTemplate = template.Must(template.ParseFS(templateFolder, "templates/checkout.html"))
}

type Config struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
}

var validate = validator.New()

type webService struct {
	logger       mylog.Logger
	service      *service
	authenticate mux.MiddlewareFunc
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewWebService(cfg Config, payer Payer, checkoutStore mystore.Store[checkoutapi.CheckoutContext], cartStore mystore.Store[cart.Cart], addressStore mystore.Store[address.Address], orderStore mystore.Store[order.FinalOrder], accountStore mystore.Store[session.Account], shipper ShipmentRequester, publisher mypublisher.Publisher, nower mytime.Nower, uuider myuuid.UUIDer, authenticate mux.MiddlewareFunc) *webService {
	logger := mylog.New("checkoutrazorpay")
	return &webService{
		logger:       logger,
		service:      newService(cfg.KeyID, payer, checkoutStore, cartStore, addressStore, orderStore, accountStore, shipper, publisher, nower, uuider, logger),
		authenticate: authenticate,
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	authed := router.PathPrefix("/payment").Subrouter()
	authed.Use(s.authenticate)
	authed.HandleFunc("/create-order", s.createOrderPage()).Methods("POST")
	authed.HandleFunc("/verify", s.verifyPage()).Methods("POST")

	// Endpoints that compose the user-interface
	router.HandleFunc("/checkout/{cartUID}", s.checkoutPage()).Methods("GET")
	router.HandleFunc("/checkout/{cartUID}", s.teardownPage()).Methods("DELETE")

	// The widget's handler posts the signed result here. The page carries no
	// bearer token, the payment signature authenticates the call
	router.HandleFunc("/checkout/{cartUID}/verify", s.widgetVerifyPage()).Methods("POST")

	// The widget reports failure and cancellation here
	router.HandleFunc("/checkout/{cartUID}/status/{status}", s.finalizeStatusPage()).Methods("PUT")

	// Async notification called by the gateway at a later time
	router.HandleFunc("/checkout/webhook/event", s.webhookNotificationPage()).Methods("POST")

	return s.service.CreateTopics(c)
}

func (s *webService) createOrderPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		shopperUID, err := shopperFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		req := CreateOrderRequest{}
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

		resp, err := s.service.createOrder(c, shopperUID, req)
		if err != nil {
			errorWriter.WriteError(c, w, 4, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, resp)
	}
}

// checkoutPage serves the page that opens the gateway's hosted widget
func (s *webService) checkoutPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		info, err := s.service.checkoutPage(c, mux.Vars(r)["cartUID"])
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		err = checkoutPageTemplate.Execute(w, info)
		if err != nil {
			errorWriter.WriteError(c, w, 2, myerrors.NewInternalError(fmt.Errorf("error executing template: %s", err)))
			return
		}
	}
}

func (s *webService) verifyPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		shopperUID, err := shopperFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		req := VerifyRequest{}
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

		resp, err := s.service.verify(c, shopperUID, req)
		if err != nil {
			errorWriter.WriteError(c, w, 4, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, resp)
	}
}

func (s *webService) widgetVerifyPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		req := VerifyRequest{}
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("error parsing request: %s", err)))
			return
		}
		err = validate.Struct(req)
		if err != nil {
			errorWriter.WriteError(c, w, 2, myerrors.NewInvalidInputError(err))
			return
		}

		// Carts are keyed by shopper, so the cartUID identifies the shopper
		resp, err := s.service.verify(c, mux.Vars(r)["cartUID"], req)
		if err != nil {
			errorWriter.WriteError(c, w, 3, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, resp)
	}
}

func (s *webService) finalizeStatusPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		err := s.service.finalizeStatus(c, mux.Vars(r)["cartUID"], mux.Vars(r)["status"])
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{
			Message: "Checkout finalized",
		})
	}
}

func (s *webService) teardownPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		err := s.service.teardown(c, mux.Vars(r)["cartUID"])
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{
			Message: "Checkout-session removed",
		})
	}
}

func (s *webService) webhookNotificationPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		body, err := io.ReadAll(r.Body)
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("error reading request: %s", err)))
			return
		}

		if !s.service.payer.VerifyWebhookSignature(body, r.Header.Get("X-Razorpay-Signature")) {
			errorWriter.WriteError(c, w, 2, myerrors.NewAuthenticationError(fmt.Errorf("webhook signature mismatch")))
			return
		}

		event := WebhookEvent{}
		err = json.Unmarshal(body, &event)
		if err != nil {
			errorWriter.WriteError(c, w, 3, myerrors.NewInvalidInputError(fmt.Errorf("error parsing webhook: %s", err)))
			return
		}

		err = s.service.webhookNotification(c, event)
		if err != nil {
			errorWriter.WriteError(c, w, 4, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{
			Message: "Webhook processed",
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

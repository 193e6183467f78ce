package tracking

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/skala-commerce/storefront/lib/mycache"
	"github.com/skala-commerce/storefront/lib/mycontext"
	"github.com/skala-commerce/storefront/lib/myerrors"
	"github.com/skala-commerce/storefront/lib/myhttp"
	"github.com/skala-commerce/storefront/lib/mylog"
	"github.com/skala-commerce/storefront/lib/mystore"
	"github.com/skala-commerce/storefront/services/courier"
	"github.com/skala-commerce/storefront/services/order"
	"github.com/skala-commerce/storefront/services/session"
)

type webService struct {
	logger       mylog.Logger
	service      *service
	authenticate mux.MiddlewareFunc
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewWebService(orderStore mystore.Store[order.FinalOrder], gateway courier.Gateway, cache mycache.Cache, reconciler *Reconciler, authenticate mux.MiddlewareFunc) *webService {
	logger := mylog.New("tracking")
	return &webService{
		logger:       logger,
		service:      newService(orderStore, gateway, cache, reconciler, logger),
		authenticate: authenticate,
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	authed := router.PathPrefix("/track").Subrouter()
	authed.Use(s.authenticate)
	authed.HandleFunc("/{orderUID}", s.getTrackingPage()).Methods("GET")
	authed.HandleFunc("/{orderUID}", s.stopTrackingPage()).Methods("DELETE")

	return nil
}

func (s *webService) getTrackingPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		shopperUID, err := shopperFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		info, err := s.service.getTracking(c, shopperUID, mux.Vars(r)["orderUID"])
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, info)
	}
}

// stopTrackingPage is hit when the shopper navigates away from the tracking view
func (s *webService) stopTrackingPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		s.service.stopTracking(c, mux.Vars(r)["orderUID"])

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{
			Message: "Tracking stopped",
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

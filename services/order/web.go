package order

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
	"github.com/skala-commerce/storefront/services/session"
)

type webService struct {
	logger       mylog.Logger
	service      *service
	authenticate mux.MiddlewareFunc
	adminOnly    mux.MiddlewareFunc
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewWebService(store mystore.Store[FinalOrder], publisher mypublisher.Publisher, nower mytime.Nower, authenticate mux.MiddlewareFunc, adminOnly mux.MiddlewareFunc) *webService {
	logger := mylog.New("order")
	return &webService{
		logger:       logger,
		service:      newService(store, publisher, nower, logger),
		authenticate: authenticate,
		adminOnly:    adminOnly,
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	authed := router.PathPrefix("/users/orders").Subrouter()
	authed.Use(s.authenticate)
	authed.HandleFunc("", s.listOrdersPage()).Methods("GET")
	authed.HandleFunc("/{orderUID}", s.getOrderPage()).Methods("GET")

	admin := router.PathPrefix("/admin/orders").Subrouter()
	admin.Use(s.authenticate, s.adminOnly)
	admin.HandleFunc("", s.listAllOrdersPage()).Methods("GET")
	admin.HandleFunc("/{orderUID}/status/{status}", s.updateStatusPage()).Methods("PUT")

	err := s.service.CreateTopics(c)
	if err != nil {
		return err
	}

	return nil
}

func (s *webService) listOrdersPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		shopperUID, err := shopperFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		orders, err := s.service.listOrders(c, shopperUID)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, orders)
	}
}

func (s *webService) getOrderPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		shopperUID, err := shopperFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		order, err := s.service.getOrder(c, shopperUID, mux.Vars(r)["orderUID"])
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, order)
	}
}

func (s *webService) listAllOrdersPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		orders, err := s.service.listAllOrders(c)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, orders)
	}
}

func (s *webService) updateStatusPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		orderUID := mux.Vars(r)["orderUID"]
		status := OrderStatus(mux.Vars(r)["status"])

		order, err := s.service.updateStatus(c, orderUID, status)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, order)
	}
}

func shopperFromRequest(r *http.Request) (string, error) {
	sess, found := session.FromContext(r.Context())
	if !found {
		return "", myerrors.NewUnauthorizedError(fmt.Errorf("no authenticated shopper on request"))
	}

	return sess.ShopperUID, nil
}

package shipping

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/skala-commerce/storefront/lib/mycontext"
	"github.com/skala-commerce/storefront/lib/myhttp"
	"github.com/skala-commerce/storefront/lib/mylog"
)

type webService struct {
	logger  mylog.Logger
	service *Service
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewWebService(service *Service) *webService {
	return &webService{
		logger:  mylog.New("shipping"),
		service: service,
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	// Invoked by the task queue to retry failed shipment creations
	router.HandleFunc("/shipping/task/{orderUID}", s.shipmentTaskPage()).Methods("PUT")

	return nil
}

// shipmentTaskPage answers non-2xx on failure so the queue redelivers
func (s *webService) shipmentTaskPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		orderUID := mux.Vars(r)["orderUID"]

		_, err := s.service.createShipment(c, orderUID)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{
			Message: "Shipment created",
		})
	}
}

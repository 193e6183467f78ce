package courier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/skala-commerce/storefront/lib/myerrors"
	"github.com/skala-commerce/storefront/lib/myhttpclient"
)

// ConsignmentRequest registers a shipment with the courier
type ConsignmentRequest struct {
	OrderUID    string `json:"orderUid"`
	FullName    string `json:"fullName"`
	PhoneNumber string `json:"phone"`
	Street      string `json:"street"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postalCode"`
}

type Consignment struct {
	ConsignmentID string `json:"consignmentId"`
	Courier       string `json:"courier"`
}

// TrackingStatus is the courier's live view on a consignment. Every fetch
// supersedes the previous one wholesale.
type TrackingStatus struct {
	Status    string    `json:"status"`
	Location  string    `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

//go:generate mockgen -source=gateway.go -package courier -destination gateway_mock.go Gateway
type Gateway interface {
	CreateConsignment(c context.Context, req ConsignmentRequest) (Consignment, error)
	GetTrackingStatus(c context.Context, consignmentID string) (TrackingStatus, error)
}

type gateway struct {
	baseURL string
	sender  myhttpclient.HTTPSender
}

func NewGateway(baseURL string, apiKey string) Gateway {
	return &gateway{
		baseURL: baseURL,
		sender: myhttpclient.NewJSONHTTPClientWithHeaders(map[string]string{
			"X-Api-Key": apiKey,
		}),
	}
}

// NewGatewayWithSender exists for testing
func NewGatewayWithSender(baseURL string, sender myhttpclient.HTTPSender) Gateway {
	return &gateway{
		baseURL: baseURL,
		sender:  sender,
	}
}

func (g *gateway) CreateConsignment(c context.Context, req ConsignmentRequest) (Consignment, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Consignment{}, myerrors.NewInternalError(fmt.Errorf("error marshalling consignment request: %s", err))
	}

	status, respBody, err := g.sender.Send(c, http.MethodPost, g.baseURL+"/consignments", body)
	if err != nil {
		return Consignment{}, myerrors.NewUnavailableError(fmt.Errorf("error calling courier: %s", err))
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return Consignment{}, myerrors.NewInternalError(fmt.Errorf("courier returned status %d: %s", status, respBody))
	}

	consignment := Consignment{}
	err = json.Unmarshal(respBody, &consignment)
	if err != nil {
		return Consignment{}, myerrors.NewInternalError(fmt.Errorf("error parsing courier response: %s", err))
	}

	return consignment, nil
}

func (g *gateway) GetTrackingStatus(c context.Context, consignmentID string) (TrackingStatus, error) {
	status, respBody, err := g.sender.Send(c, http.MethodGet, fmt.Sprintf("%s/consignments/%s/status", g.baseURL, consignmentID), nil)
	if err != nil {
		return TrackingStatus{}, myerrors.NewUnavailableError(fmt.Errorf("error calling courier: %s", err))
	}
	if status == http.StatusNotFound {
		return TrackingStatus{}, myerrors.NewNotFoundError(fmt.Errorf("consignment %s not known to courier", consignmentID))
	}
	if status != http.StatusOK {
		return TrackingStatus{}, myerrors.NewInternalError(fmt.Errorf("courier returned status %d: %s", status, respBody))
	}

	trackingStatus := TrackingStatus{}
	err = json.Unmarshal(respBody, &trackingStatus)
	if err != nil {
		return TrackingStatus{}, myerrors.NewInternalError(fmt.Errorf("error parsing courier response: %s", err))
	}

	return trackingStatus, nil
}

package courier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGateway(t *testing.T) {
	c := context.TODO()

	t.Run("Create consignment", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/consignments", r.URL.Path)
			assert.Equal(t, "my-api-key", r.Header.Get("X-Api-Key"))

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"consignmentId":"cons_1","courier":"bluedart"}`))
		}))
		defer server.Close()

		gateway := NewGateway(server.URL, "my-api-key")
		consignment, err := gateway.CreateConsignment(c, ConsignmentRequest{
			OrderUID: "order_1",
			FullName: "Asha Sharma",
			City:     "Bengaluru",
		})

		assert.NoError(t, err)
		assert.Equal(t, "cons_1", consignment.ConsignmentID)
		assert.Equal(t, "bluedart", consignment.Courier)
	})

	t.Run("Courier rejects consignment", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"unserviceable pincode"}`))
		}))
		defer server.Close()

		gateway := NewGateway(server.URL, "my-api-key")
		_, err := gateway.CreateConsignment(c, ConsignmentRequest{OrderUID: "order_1"})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unserviceable pincode")
	})

	t.Run("Fetch tracking status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/consignments/cons_1/status", r.URL.Path)

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"in_transit","location":"Mumbai hub","timestamp":"2024-07-15T12:30:00Z"}`))
		}))
		defer server.Close()

		gateway := NewGateway(server.URL, "my-api-key")
		status, err := gateway.GetTrackingStatus(c, "cons_1")

		assert.NoError(t, err)
		assert.Equal(t, "in_transit", status.Status)
		assert.Equal(t, "Mumbai hub", status.Location)
		assert.Equal(t, time.Date(2024, 7, 15, 12, 30, 0, 0, time.UTC), status.Timestamp)
	})

	t.Run("Unknown consignment yields not-found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		gateway := NewGateway(server.URL, "my-api-key")
		_, err := gateway.GetTrackingStatus(c, "cons_unknown")

		assert.Error(t, err)
	})
}

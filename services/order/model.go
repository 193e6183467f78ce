package order

import (
	"time"

	"github.com/skala-commerce/storefront/services/address"
	"github.com/skala-commerce/storefront/services/cart"
)

type OrderStatus string

const (
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
)

var statusRank = map[OrderStatus]int{
	OrderStatusConfirmed:  0,
	OrderStatusProcessing: 1,
	OrderStatusShipped:    2,
	OrderStatusDelivered:  3,
}

func (s OrderStatus) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanAdvanceTo only allows forward movement through the lifecycle
func (s OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	currentRank, ok := statusRank[s]
	if !ok {
		return false
	}
	nextRank, ok := statusRank[next]
	if !ok {
		return false
	}

	return nextRank > currentRank
}

// FinalOrder is created once payment verification has succeeded. Shoppers only
// ever read it; the status advances server-side.
type FinalOrder struct {
	UID               string
	ShopperUID        string
	Items             []OrderItem
	TotalPriceInPaise int64
	Currency          string
	PaymentMethod     string
	Status            OrderStatus
	Address           AddressSnapshot
	ShipmentDetails   *ShipmentDetails
	CreatedAt         time.Time
	LastModified      *time.Time
}

type OrderItem struct {
	ProductUID   string
	Name         string
	PriceInPaise int64
	Quantity     int
}

// AddressSnapshot freezes the shipping destination at order time, so later
// address edits do not rewrite order history
type AddressSnapshot struct {
	FullName    string
	PhoneNumber string
	Street      string
	City        string
	State       string
	PostalCode  string
}

type ShipmentDetails struct {
	ConsignmentID string
	Courier       string
	Error         string
}

// NewFromCheckout assembles the immutable order out of the priced cart and the selected address
func NewFromCheckout(orderUID string, summary cart.CartSummary, shipTo address.Address, paymentMethod string, now time.Time) FinalOrder {
	items := make([]OrderItem, 0, len(summary.Lines))
	for _, line := range summary.Lines {
		if !line.IsValid() {
			continue
		}
		items = append(items, OrderItem{
			ProductUID:   line.Product.UID,
			Name:         line.Product.Name,
			PriceInPaise: line.Product.PriceInPaise,
			Quantity:     line.Quantity,
		})
	}

	return FinalOrder{
		UID:               orderUID,
		ShopperUID:        summary.ShopperUID,
		Items:             items,
		TotalPriceInPaise: summary.GrandTotalInPaise,
		Currency:          summary.Currency,
		PaymentMethod:     paymentMethod,
		Status:            OrderStatusConfirmed,
		Address: AddressSnapshot{
			FullName:    shipTo.FullName,
			PhoneNumber: shipTo.PhoneNumber,
			Street:      shipTo.Street,
			City:        shipTo.City,
			State:       shipTo.State,
			PostalCode:  shipTo.PostalCode,
		},
		CreatedAt: now,
	}
}

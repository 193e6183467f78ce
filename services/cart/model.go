package cart

import "time"

// Cart is the per-shopper cart, keyed by shopper UID
type Cart struct {
	ShopperUID   string
	CreatedAt    time.Time
	LastModified *time.Time
	Lines        []CartLine
}

type CartLine struct {
	UID      string
	Product  ProductSnapshot
	Quantity int
}

// ProductSnapshot is the product as it was when the line was added. A line whose
// snapshot has gone missing (deleted product, zero price) no longer counts towards
// the total and blocks checkout until the shopper removes it.
type ProductSnapshot struct {
	UID          string
	Name         string
	PriceInPaise int64
}

func (l CartLine) IsValid() bool {
	return l.Product.UID != "" && l.Product.PriceInPaise > 0 && l.Quantity >= 1
}

// Upsert adds the product to the cart, bumping the quantity when it is already present
func (cart *Cart) Upsert(lineUID string, product ProductSnapshot, quantity int, now time.Time) {
	for i, line := range cart.Lines {
		if line.Product.UID == product.UID {
			cart.Lines[i].Quantity += quantity
			cart.LastModified = &now
			return
		}
	}

	cart.Lines = append(cart.Lines, CartLine{
		UID:      lineUID,
		Product:  product,
		Quantity: quantity,
	})
	cart.LastModified = &now
}

// CartSummary is the authoritative post-mutation snapshot returned on every cart operation
type CartSummary struct {
	ShopperUID        string
	Lines             []CartLine
	InvalidLineUIDs   []string
	SubTotalInPaise   int64
	TaxInPaise        int64
	ShippingInPaise   int64
	GrandTotalInPaise int64
	Currency          string
	CheckoutAllowed   bool
}

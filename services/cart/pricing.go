package cart

import "github.com/shopspring/decimal"

const Currency = "INR"

// ShippingFeeInPaise is charged flat on every non-empty cart
const ShippingFeeInPaise int64 = 9900

var taxRate = decimal.NewFromFloat(0.05)

// Summarize derives the priced snapshot from the raw cart. Pure function:
// same cart in, same summary out, no matter how often it is recomputed.
func Summarize(cart Cart) CartSummary {
	var subTotal int64
	invalidLineUIDs := []string{}

	for _, line := range cart.Lines {
		if !line.IsValid() {
			invalidLineUIDs = append(invalidLineUIDs, line.UID)
			continue
		}
		subTotal += line.Product.PriceInPaise * int64(line.Quantity)
	}

	// Tax is rounded half-up to whole paise
	tax := decimal.NewFromInt(subTotal).Mul(taxRate).Round(0).IntPart()

	var shipping int64
	if len(cart.Lines) > 0 {
		shipping = ShippingFeeInPaise
	}

	return CartSummary{
		ShopperUID:        cart.ShopperUID,
		Lines:             cart.Lines,
		InvalidLineUIDs:   invalidLineUIDs,
		SubTotalInPaise:   subTotal,
		TaxInPaise:        tax,
		ShippingInPaise:   shipping,
		GrandTotalInPaise: subTotal + tax + shipping,
		Currency:          Currency,
		CheckoutAllowed:   len(cart.Lines) > 0 && len(invalidLineUIDs) == 0,
	}
}

package wishlist

import (
	"time"

	"github.com/skala-commerce/storefront/services/cart"
)

// Wishlist is the per-shopper list of remembered products, keyed by shopper UID
type Wishlist struct {
	ShopperUID   string
	CreatedAt    time.Time
	LastModified *time.Time
	Items        []Item
}

type Item struct {
	Product cart.ProductSnapshot
	AddedAt time.Time
}

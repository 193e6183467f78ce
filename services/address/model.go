package address

import "time"

// Address is a shipping destination owned by a shopper. At most one address
// per shopper carries IsDefault.
type Address struct {
	UID          string
	ShopperUID   string
	FullName     string
	PhoneNumber  string
	Street       string
	City         string
	State        string
	PostalCode   string
	IsDefault    bool
	CreatedAt    time.Time
	LastModified *time.Time
}

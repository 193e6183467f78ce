package checkoutapi

import (
	"fmt"
	"net/http"
	"net/url"

	formcodec "github.com/go-playground/form/v4"

	"github.com/skala-commerce/storefront/lib/myerrors"
)

// Checkout is the provider-agnostic form payload with which a checkout is started
type Checkout struct {
	CartUID     string  `form:"cartUid"`
	AddressUID  string  `form:"addressUid"`
	TotalAmount Amount  `form:"totalAmount"`
	Shopper     Shopper `form:"shopper"`
	ReturnURL   string  `form:"returnUrl"`
}

type Amount struct {
	Value    int64  `form:"value"`
	Currency string `form:"currency"`
}

type Shopper struct {
	UID         string      `form:"uid"`
	FullName    string      `form:"fullName"`
	ContactInfo ContactInfo `form:"contactInfo"`
}

type ContactInfo struct {
	PhoneNumber string `form:"phone"`
	Email       string `form:"email"`
}

func NewFromRequest(r *http.Request) (Checkout, error) {
	err := r.ParseForm()
	if err != nil {
		return Checkout{}, myerrors.NewInvalidInputError(err)
	}
	return NewFromValues(r.Form)
}

func NewFromValues(values url.Values) (Checkout, error) {
	checkout := Checkout{}
	err := formcodec.NewDecoder().Decode(&checkout, values)
	if err != nil {
		return checkout, fmt.Errorf("error decoding form: %s", err)
	}

	return checkout, nil
}

func (c Checkout) ToForm() (url.Values, error) {
	values, err := formcodec.NewEncoder().Encode(c)
	if err != nil {
		return nil, fmt.Errorf("error encoding form: %s", err)
	}

	return values, nil
}

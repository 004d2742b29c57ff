// Package validation holds the checkout form types and their presence checks.
// Format checks (card numbers, postal codes) are left to the backend.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ShippingAddress is the shipping step form.
type ShippingAddress struct {
	FirstName    string `json:"first_name" validate:"required"`
	LastName     string `json:"last_name" validate:"required"`
	Email        string `json:"email" validate:"required"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"address_line1" validate:"required"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city" validate:"required"`
	State        string `json:"state" validate:"required"`
	PostalCode   string `json:"postal_code" validate:"required"`
	Country      string `json:"country" validate:"required"`
}

// PaymentDetails is the payment step form. Expiry fields arrive as typed by
// the shopper and are converted to integers at submission.
type PaymentDetails struct {
	CardNumber     string `json:"card_number" validate:"required"`
	ExpiryMonth    string `json:"expiry_month" validate:"required"`
	ExpiryYear     string `json:"expiry_year" validate:"required"`
	CVV            string `json:"cvv" validate:"required"`
	CardholderName string `json:"cardholder_name" validate:"required"`
}

// FieldErrors maps a JSON field name to a message. Empty means valid.
type FieldErrors map[string]string

func (f FieldErrors) Valid() bool {
	return len(f) == 0
}

var labels = map[string]string{
	"first_name":      "First name",
	"last_name":       "Last name",
	"email":           "Email",
	"address_line1":   "Address",
	"city":            "City",
	"state":           "State",
	"postal_code":     "Postal code",
	"country":         "Country",
	"card_number":     "Card number",
	"expiry_month":    "Expiry month",
	"expiry_year":     "Expiry year",
	"cvv":             "CVV",
	"cardholder_name": "Cardholder name",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// ValidateShipping reports every missing required shipping field.
func ValidateShipping(addr ShippingAddress) FieldErrors {
	return check(addr)
}

// ValidatePayment reports every missing required payment field.
func ValidatePayment(p PaymentDetails) FieldErrors {
	return check(p)
}

func check(v any) FieldErrors {
	out := FieldErrors{}
	err := validate.Struct(v)
	if err == nil {
		return out
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["_"] = "invalid form"
		return out
	}
	for _, fe := range verrs {
		out[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	label, ok := labels[fe.Field()]
	if !ok {
		label = fe.Field()
	}
	if fe.Tag() == "required" {
		return label + " is required"
	}
	return label + " is invalid"
}

package storefront

import (
	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/shopspring/decimal"
)

// OrderItem is one cart line as the order endpoints expect it.
type OrderItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// ShippingAddress is the address block of an order request.
type ShippingAddress struct {
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
}

// Payment carries the card data. It is sent once and never stored.
type Payment struct {
	CardNumber     string  `json:"card_number"`
	ExpiryMonth    int     `json:"expiry_month"`
	ExpiryYear     int     `json:"expiry_year"`
	CVV            string  `json:"cvv"`
	CardholderName string  `json:"cardholder_name"`
	Amount         float64 `json:"amount"`
}

// OrderRequest is the body of the authenticated order endpoint.
type OrderRequest struct {
	Items           []OrderItem     `json:"items"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	Payment         Payment         `json:"payment"`
}

// CustomerInfo identifies the shopper on the guest order endpoint.
type CustomerInfo struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
	// Password is a one-time placeholder for the guest account the backend
	// may create. Omitted when empty.
	Password string `json:"password,omitempty"`
}

type guestOrderRequest struct {
	OrderRequest
	CustomerInfo CustomerInfo `json:"customer_info"`
}

// Order is the order summary returned on success.
type Order struct {
	ID          int64   `json:"id"`
	OrderNumber string  `json:"order_number"`
	CustomerID  int64   `json:"customer_id,omitempty"`
	TenantID    int64   `json:"tenant_id,omitempty"`
	Status      string  `json:"status"`
	TotalAmount float64 `json:"total_amount"`
	CreatedAt   string  `json:"created_at,omitempty"`
}

// PaymentResult is the simulated authorization outcome.
type PaymentResult struct {
	Success           bool   `json:"success"`
	TransactionID     string `json:"transaction_id,omitempty"`
	AuthorizationCode string `json:"authorization_code,omitempty"`
	CardType          string `json:"card_type,omitempty"`
	LastFour          string `json:"last_four,omitempty"`
	Message           string `json:"message,omitempty"`
}

// OrderResult is the success body of both order endpoints.
type OrderResult struct {
	Order   Order         `json:"order"`
	Payment PaymentResult `json:"payment"`
	Message string        `json:"message,omitempty"`
}

// Product is the storefront product record.
type Product struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	Category    string  `json:"category,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
}

// CartProduct converts the record into the stock snapshot the cart clamps to.
func (p Product) CartProduct() cart.Product {
	return cart.Product{
		ID:    p.ID,
		Name:  p.Name,
		Price: decimal.NewFromFloat(p.Price),
		Stock: p.Quantity,
	}
}

// CustomerProfile is the backend's record of the logged-in customer.
type CustomerProfile struct {
	ID        int64  `json:"id"`
	TenantID  int64  `json:"tenant_id,omitempty"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
	IsGuest   bool   `json:"is_guest,omitempty"`
}

// TenantInfo is the public branding of a store.
type TenantInfo struct {
	ID                  int64  `json:"id"`
	Name                string `json:"name"`
	Domain              string `json:"domain,omitempty"`
	CompanyLogoURL      string `json:"company_logo_url,omitempty"`
	BrandColorPrimary   string `json:"brand_color_primary,omitempty"`
	BrandColorSecondary string `json:"brand_color_secondary,omitempty"`
	CompanyDescription  string `json:"company_description,omitempty"`
}

// Suggestion is one search autocomplete entry.
type Suggestion struct {
	Type     string  `json:"type"`
	Text     string  `json:"text"`
	Subtitle string  `json:"subtitle,omitempty"`
	Count    *string `json:"count,omitempty"`
	ID       *int64  `json:"id,omitempty"`
	ImageURL *string `json:"image_url,omitempty"`
}

package controllers

import (
	"context"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/internal/storefront"
)

// CartOpener loads the cart of one device for one tenant.
type CartOpener interface {
	Open(ctx context.Context, deviceID, tenant string) (*cart.Store, error)
}

// ProductLookup fetches the product record used as the cart stock snapshot.
type ProductLookup interface {
	GetProduct(ctx context.Context, tenant string, productID int64) (*storefront.Product, error)
}

// StoreLookup serves the auxiliary storefront reads.
type StoreLookup interface {
	GetTenantInfo(ctx context.Context, tenant string) (*storefront.TenantInfo, error)
	SearchSuggestions(ctx context.Context, tenant, q string) ([]storefront.Suggestion, error)
}

// ProfileLookup fetches the customer record behind a bearer token.
type ProfileLookup interface {
	GetCustomerProfile(ctx context.Context, tenant, token string) (*storefront.CustomerProfile, error)
}

// CheckoutRegistry owns live checkout sessions.
type CheckoutRegistry interface {
	Open(p checkout.OpenParams) (*checkout.Session, error)
	Get(id, deviceID, tenant string) (*checkout.Session, error)
	Close(id, deviceID, tenant string) error
}

// Pinger is a readiness dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

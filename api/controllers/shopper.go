package controllers

import (
	"context"

	"github.com/angelmondragon/storefront-checkout/api/middleware"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

type shopper struct {
	deviceID string
	tenant   string
}

func shopperFrom(ctx context.Context) (shopper, error) {
	s := shopper{
		deviceID: middleware.DeviceIDFromContext(ctx),
		tenant:   middleware.TenantFromContext(ctx),
	}
	if s.deviceID == "" {
		return shopper{}, pkgerrors.New(pkgerrors.CodeValidation, "device context missing")
	}
	if s.tenant == "" {
		return shopper{}, pkgerrors.New(pkgerrors.CodeNotFound, "store context missing")
	}
	return s, nil
}

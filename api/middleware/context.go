package middleware

import "context"

type contextKey string

const (
	ctxDeviceID contextKey = "device_id"
	ctxTenant   contextKey = "tenant"
)

func DeviceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxDeviceID).(string); ok {
		return v
	}
	return ""
}

func TenantFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxTenant).(string); ok {
		return v
	}
	return ""
}

// WithDeviceID injects the shopper device identifier into the context.
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxDeviceID, deviceID)
}

// WithTenant injects the storefront tenant slug into the context for downstream handlers.
func WithTenant(ctx context.Context, tenant string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxTenant, tenant)
}

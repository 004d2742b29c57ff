package cart

import (
	"context"

	"github.com/angelmondragon/storefront-checkout/internal/events"
	"github.com/angelmondragon/storefront-checkout/internal/storage"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// Factory opens carts scoped to one shopper device, wired to the change bus.
type Factory struct {
	kv      storage.KV
	bus     events.Bus
	logg    *logger.Logger
	metrics mutationRecorder
}

// NewFactory builds a Factory. bus and metrics may be nil.
func NewFactory(kv storage.KV, bus events.Bus, logg *logger.Logger, metrics mutationRecorder) *Factory {
	return &Factory{kv: kv, bus: bus, logg: logg, metrics: metrics}
}

// Open loads the device's cart for tenant.
func (f *Factory) Open(ctx context.Context, deviceID, tenant string) (*Store, error) {
	opts := Options{Logger: f.logg, Metrics: f.metrics}
	if f.bus != nil {
		opts.Notifier = BusNotifier(f.bus, deviceID, f.logg)
	}
	return Open(ctx, storage.Scoped(f.kv, deviceID), tenant, opts)
}

package cart

import (
	"context"
	"encoding/json"

	"github.com/angelmondragon/storefront-checkout/internal/events"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/shopspring/decimal"
)

// Change is broadcast after every persisted cart mutation.
type Change struct {
	Tenant    string          `json:"tenant"`
	ItemCount int             `json:"item_count"`
	Total     decimal.Decimal `json:"total"`
}

// Notifier receives cart-changed broadcasts.
type Notifier interface {
	CartChanged(ctx context.Context, change Change)
}

type busNotifier struct {
	bus      events.Bus
	deviceID string
	logg     *logger.Logger
}

// BusNotifier publishes changes on the device's cart topic.
func BusNotifier(bus events.Bus, deviceID string, logg *logger.Logger) Notifier {
	return &busNotifier{bus: bus, deviceID: deviceID, logg: logg}
}

func (n *busNotifier) CartChanged(ctx context.Context, change Change) {
	payload, err := json.Marshal(change)
	if err == nil {
		err = n.bus.Publish(ctx, events.CartTopic(n.deviceID, change.Tenant), payload)
	}
	if err != nil && n.logg != nil {
		n.logg.Warn(n.logg.WithField(ctx, "error", err.Error()), "cart change broadcast failed")
	}
}

// Package events fans cart-changed notifications out to listeners such as the
// server-sent event stream behind the storefront header badge.
package events

import (
	"context"
	"fmt"
)

// Bus publishes opaque payloads on named topics.
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe returns a channel of payloads for topic. The channel closes
	// when ctx ends or the returned cancel func runs.
	Subscribe(ctx context.Context, topic string) (<-chan []byte, func(), error)
}

// CartTopic names the topic carrying cart changes for one device and tenant.
func CartTopic(deviceID, tenant string) string {
	return fmt.Sprintf("cart:%s:%s", deviceID, tenant)
}

package broker

import (
	"context"
	"time"
)

// ReloadEvent announces a completed cache reload to peer bridge instances.
type ReloadEvent struct {
	InstanceID      string    `json:"instance_id"`
	ReloadedAt      time.Time `json:"reloaded_at"`
	CategoriesCount int       `json:"categories_count"`
	ProductsCount   int       `json:"products_count"`
	Backend         string    `json:"backend"`
}

// MessageBroker fans reload events out to other bridge instances.
type MessageBroker interface {
	// Publish sends a reload event to the specified channel (topic).
	Publish(ctx context.Context, channel string, event ReloadEvent) error
	// Subscribe starts listening for reload events on the specified channel.
	Subscribe(ctx context.Context, channel string) (<-chan ReloadEvent, error)
	// Close cleans up broker resources.
	Close() error
}

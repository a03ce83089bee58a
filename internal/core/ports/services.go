package ports

import (
	"context"

	"github.com/samirrijal/stopgrid/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishSnapshotRefreshed(ctx context.Context, ev *domain.SnapshotRefreshed) error
	PublishStopsChanged(ctx context.Context, agencySlug string) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	// SubscribeStopsChanged delivers a notification whenever an ingest run
	// touched the stop inventory. The handler decides when to rebuild.
	SubscribeStopsChanged(ctx context.Context, handler func(ctx context.Context, agencySlug string) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

package ports

import (
	"context"

	"github.com/samirrijal/stopgrid/internal/core/domain"
)

// StopRepository persists stops.
type StopRepository interface {
	Upsert(ctx context.Context, stop *domain.Stop) error
	UpsertBatch(ctx context.Context, stops []domain.Stop) error
	GetByID(ctx context.Context, id string) (*domain.Stop, error)
	// ListAll returns every stop. The accessibility service pulls the full
	// inventory on each snapshot rebuild; stop counts are city-scale (a few
	// thousand rows), so one pass is cheaper than incremental sync.
	ListAll(ctx context.Context) ([]domain.Stop, error)
	List(ctx context.Context, offset, limit int) ([]domain.Stop, int, error)
	Count(ctx context.Context) (int, error)
}

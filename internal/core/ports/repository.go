package ports

import (
	"context"

	"github.com/ewilliams-labs/notesynth/internal/core/domain"
)

// HistoryRepository persists conversion results per owner.
type HistoryRepository interface {
	// Create stores audio and its URL atomically; urlFor receives the new id.
	Create(ctx context.Context, ownerID int64, audio []byte, urlFor func(id int64) string) (domain.HistoryRecord, error)
	Get(ctx context.Context, id int64) (domain.HistoryRecord, error)
	List(ctx context.Context, ownerID int64, limit, offset int) ([]domain.HistoryRecord, error)
	Count(ctx context.Context, ownerID int64) (int, error)
	// Delete removes the owner's record and reports how many rows went away.
	Delete(ctx context.Context, ownerID, id int64) (int64, error)
	Close() error
}

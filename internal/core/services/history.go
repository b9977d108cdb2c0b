package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/notesynth/internal/core/domain"
	"github.com/ewilliams-labs/notesynth/internal/core/ports"
)

// DefaultPageSize applies when a caller sends no page size.
const DefaultPageSize = 3

// HistoryService manages an owner's stored conversions.
type HistoryService struct {
	repo            ports.HistoryRepository
	defaultPageSize int
	log             *zap.Logger
}

// NewHistoryService constructs a HistoryService.
func NewHistoryService(repo ports.HistoryRepository, defaultPageSize int, log *zap.Logger) *HistoryService {
	if defaultPageSize <= 0 {
		defaultPageSize = DefaultPageSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HistoryService{repo: repo, defaultPageSize: defaultPageSize, log: log}
}

// Create stores audio for ownerID. The record URL is origin + "/music/" + id.
func (s *HistoryService) Create(ctx context.Context, ownerID int64, audio []byte, origin string) (domain.HistoryRecord, error) {
	rec, err := s.repo.Create(ctx, ownerID, audio, func(id int64) string {
		return domain.RecordURL(origin, id)
	})
	if err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("service: failed to store conversion: %w", err)
	}
	s.log.Info("conversion stored",
		zap.Int64("owner", ownerID),
		zap.Int64("id", rec.ID),
		zap.Int("bytes", len(audio)),
	)
	return rec, nil
}

// Get loads one record by id.
func (s *HistoryService) Get(ctx context.Context, id int64) (domain.HistoryRecord, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("service: failed to load record %d: %w", id, err)
	}
	return rec, nil
}

// List returns one page of the owner's records with totals over all of them.
func (s *HistoryService) List(ctx context.Context, ownerID int64, page, pageSize int) (domain.HistoryPage, error) {
	pageSize = s.pageSize(pageSize)
	records, err := s.repo.List(ctx, ownerID, pageSize, domain.PageOffset(page, pageSize))
	if err != nil {
		return domain.HistoryPage{}, fmt.Errorf("service: failed to list history: %w", err)
	}
	total, err := s.repo.Count(ctx, ownerID)
	if err != nil {
		return domain.HistoryPage{}, fmt.Errorf("service: failed to count history: %w", err)
	}
	return domain.HistoryPage{
		Records:    records,
		TotalCount: total,
		TotalPages: domain.TotalPages(total, pageSize),
	}, nil
}

// Delete removes one of the owner's records and returns the new totals.
// A miss is domain.ErrNotFound and changes nothing.
func (s *HistoryService) Delete(ctx context.Context, ownerID, id int64, pageSize int) (domain.HistoryPage, error) {
	n, err := s.repo.Delete(ctx, ownerID, id)
	if err != nil {
		return domain.HistoryPage{}, fmt.Errorf("service: failed to delete record %d: %w", id, err)
	}
	if n == 0 {
		return domain.HistoryPage{}, fmt.Errorf("service: record %d for owner %d: %w", id, ownerID, domain.ErrNotFound)
	}
	total, err := s.repo.Count(ctx, ownerID)
	if err != nil {
		return domain.HistoryPage{}, fmt.Errorf("service: failed to count history: %w", err)
	}
	s.log.Info("conversion deleted", zap.Int64("owner", ownerID), zap.Int64("id", id))
	return domain.HistoryPage{
		Records:    []domain.HistoryRecord{},
		TotalCount: total,
		TotalPages: domain.TotalPages(total, s.pageSize(pageSize)),
	}, nil
}

func (s *HistoryService) pageSize(n int) int {
	if n <= 0 {
		return s.defaultPageSize
	}
	return n
}

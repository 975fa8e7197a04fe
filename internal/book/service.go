// AngelaMos | 2026
// service.go

package book

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/angelamos/bookstore-api/internal/query"
	"github.com/angelamos/bookstore-api/internal/storage"
)

var ErrDiscountTooHigh = errors.New("discount price must be less than price")

// Notifier mirrors the auth side channel. Catalog events are broadcast to
// every connected client.
type Notifier interface {
	Broadcast(event string, payload any)
}

type Service struct {
	repo     Repository
	store    storage.Store
	notifier Notifier
}

func NewService(repo Repository, store storage.Store, notifier Notifier) *Service {
	return &Service{repo: repo, store: store, notifier: notifier}
}

func (s *Service) Create(
	ctx context.Context,
	ownerID string,
	req CreateBookRequest,
) (*Book, error) {
	if req.DiscountPrice != nil && *req.DiscountPrice >= req.Price {
		return nil, ErrDiscountTooHigh
	}

	b := &Book{
		ID:            uuid.NewString(),
		Title:         req.Title,
		Author:        req.Author,
		Description:   req.Description,
		ISBN:          req.ISBN,
		Genre:         req.Genre,
		Price:         req.Price,
		DiscountPrice: req.DiscountPrice,
		Stock:         req.Stock,
		IsFeatured:    req.IsFeatured,
		OwnerID:       ownerID,
	}

	if err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}

	s.notifier.Broadcast("book:created", ToBookResponse(b))
	return b, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Book, error) {
	return s.repo.GetByID(ctx, id)
}

// GetWithOwner joins the owning user, for callers that asked for it with
// include=owner.
func (s *Service) GetWithOwner(
	ctx context.Context,
	id string,
) (*Book, *OwnerResponse, error) {
	return s.repo.GetWithOwner(ctx, id)
}

func (s *Service) List(
	ctx context.Context,
	q query.Query,
) ([]Book, int, error) {
	return s.repo.List(ctx, q)
}

func (s *Service) ListProjected(
	ctx context.Context,
	q query.Query,
) ([]map[string]any, int, error) {
	return s.repo.ListProjected(ctx, q)
}

func (s *Service) Update(
	ctx context.Context,
	id string,
	req UpdateBookRequest,
) (*Book, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		b.Title = *req.Title
	}
	if req.Author != nil {
		b.Author = *req.Author
	}
	if req.Description != nil {
		b.Description = *req.Description
	}
	if req.ISBN != nil {
		b.ISBN = req.ISBN
	}
	if req.Genre != nil {
		b.Genre = *req.Genre
	}
	if req.Price != nil {
		b.Price = *req.Price
	}
	if req.DiscountPrice != nil {
		b.DiscountPrice = req.DiscountPrice
	}
	if req.Stock != nil {
		b.Stock = *req.Stock
	}
	if req.IsActive != nil {
		b.IsActive = *req.IsActive
	}
	if req.IsFeatured != nil {
		b.IsFeatured = *req.IsFeatured
	}

	// The invariant holds over the merged state, not just the patch.
	if b.DiscountPrice != nil && *b.DiscountPrice >= b.Price {
		return nil, ErrDiscountTooHigh
	}

	if err := s.repo.Update(ctx, b); err != nil {
		return nil, err
	}

	s.notifier.Broadcast("book:updated", ToBookResponse(b))
	return b, nil
}

// UploadCover replaces the stored cover asset. The previous asset is removed
// after the row points at the new one.
func (s *Service) UploadCover(
	ctx context.Context,
	id, filename string,
	r io.Reader,
) (*Book, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	url, storageID, err := s.store.Save(ctx, filename, r)
	if err != nil {
		return nil, fmt.Errorf("store cover: %w", err)
	}

	previous := b.CoverStorageID

	if err := s.repo.SetCover(ctx, id, &url, &storageID); err != nil {
		if cleanupErr := s.store.Delete(ctx, storageID); cleanupErr != nil {
			slog.Warn("orphaned cover asset",
				"storage_id", storageID,
				"error", cleanupErr,
			)
		}
		return nil, err
	}

	if previous != nil && *previous != storageID {
		if err := s.store.Delete(ctx, *previous); err != nil {
			slog.Warn("failed to delete replaced cover",
				"storage_id", *previous,
				"error", err,
			)
		}
	}

	b.CoverURL = &url
	b.CoverStorageID = &storageID
	return b, nil
}

// Delete removes the row first, then its cover asset. A failed asset delete
// is logged, not surfaced, since the catalog entry is already gone.
func (s *Service) Delete(ctx context.Context, id string) error {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if b.CoverStorageID != nil {
		if err := s.store.Delete(ctx, *b.CoverStorageID); err != nil {
			slog.Warn("failed to delete cover for removed book",
				"book_id", id,
				"storage_id", *b.CoverStorageID,
				"error", err,
			)
		}
	}

	s.notifier.Broadcast("book:deleted", map[string]string{"id": id})
	return nil
}

// AngelaMos | 2026
// service_test.go

package book

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/bookstore-api/internal/core"
	"github.com/angelamos/bookstore-api/internal/query"
)

type fakeBookRepo struct {
	mu    sync.Mutex
	books map[string]*Book
}

func newFakeBookRepo() *fakeBookRepo {
	return &fakeBookRepo{books: make(map[string]*Book)}
}

func (r *fakeBookRepo) Create(_ context.Context, b *Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ISBN != nil {
		for _, existing := range r.books {
			if existing.ISBN != nil && *existing.ISBN == *b.ISBN {
				return fmt.Errorf("create book: %w", core.ErrDuplicateKey)
			}
		}
	}
	b.IsActive = true
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	copied := *b
	r.books[b.ID] = &copied
	return nil
}

func (r *fakeBookRepo) GetByID(_ context.Context, id string) (*Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[id]
	if !ok {
		return nil, fmt.Errorf("get book: %w", core.ErrNotFound)
	}
	copied := *b
	return &copied, nil
}

func (r *fakeBookRepo) GetWithOwner(
	ctx context.Context,
	id string,
) (*Book, *OwnerResponse, error) {
	b, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return b, &OwnerResponse{ID: b.OwnerID, Name: "Owner", Email: "o@x"}, nil
}

func (r *fakeBookRepo) Update(_ context.Context, b *Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[b.ID]; !ok {
		return fmt.Errorf("update book: %w", core.ErrNotFound)
	}
	copied := *b
	copied.UpdatedAt = time.Now()
	r.books[b.ID] = &copied
	return nil
}

func (r *fakeBookRepo) SetCover(
	_ context.Context,
	id string,
	url, storageID *string,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[id]
	if !ok {
		return fmt.Errorf("set cover: %w", core.ErrNotFound)
	}
	b.CoverURL = url
	b.CoverStorageID = storageID
	return nil
}

func (r *fakeBookRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[id]; !ok {
		return fmt.Errorf("delete book: %w", core.ErrNotFound)
	}
	delete(r.books, id)
	return nil
}

func (r *fakeBookRepo) List(
	_ context.Context,
	_ query.Query,
) ([]Book, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Book, 0, len(r.books))
	for _, b := range r.books {
		out = append(out, *b)
	}
	return out, len(out), nil
}

func (r *fakeBookRepo) ListProjected(
	_ context.Context,
	_ query.Query,
) ([]map[string]any, int, error) {
	return nil, 0, nil
}

type fakeStore struct {
	mu      sync.Mutex
	saved   int
	deleted []string
}

func (s *fakeStore) Save(
	_ context.Context,
	name string,
	_ io.Reader,
) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved++
	id := fmt.Sprintf("asset-%d-%s", s.saved, name)
	return "http://cdn.local/" + id, id, nil
}

func (s *fakeStore) Delete(_ context.Context, storageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, storageID)
	return nil
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (b *fakeBroadcaster) Broadcast(event string, _ any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *fakeBroadcaster) has(event string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.events {
		if e == event {
			return true
		}
	}
	return false
}

func floatPtr(v float64) *float64 { return &v }

func newTestService() (*Service, *fakeBookRepo, *fakeStore, *fakeBroadcaster) {
	repo := newFakeBookRepo()
	store := &fakeStore{}
	hub := &fakeBroadcaster{}
	return NewService(repo, store, hub), repo, store, hub
}

func validCreateRequest() CreateBookRequest {
	return CreateBookRequest{
		Title:  "The Go Programming Language",
		Author: "Donovan and Kernighan",
		Genre:  "Technology",
		Price:  39.99,
		Stock:  10,
	}
}

func TestCreateBroadcasts(t *testing.T) {
	svc, _, _, hub := newTestService()

	b, err := svc.Create(context.Background(), "owner-1", validCreateRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, b.ID)
	assert.Equal(t, "owner-1", b.OwnerID)
	assert.True(t, hub.has("book:created"))
}

func TestCreateRejectsDiscountAtOrAbovePrice(t *testing.T) {
	svc, _, _, _ := newTestService()

	req := validCreateRequest()
	req.DiscountPrice = floatPtr(39.99)

	_, err := svc.Create(context.Background(), "owner-1", req)
	assert.ErrorIs(t, err, ErrDiscountTooHigh)

	req.DiscountPrice = floatPtr(45)
	_, err = svc.Create(context.Background(), "owner-1", req)
	assert.ErrorIs(t, err, ErrDiscountTooHigh)
}

func TestUpdateEnforcesDiscountOverMergedState(t *testing.T) {
	svc, _, _, _ := newTestService()

	b, err := svc.Create(context.Background(), "owner-1", validCreateRequest())
	require.NoError(t, err)

	// Patching only the price below an existing discount must fail.
	_, err = svc.Update(context.Background(), b.ID, UpdateBookRequest{
		DiscountPrice: floatPtr(30),
	})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), b.ID, UpdateBookRequest{
		Price: floatPtr(25),
	})
	assert.ErrorIs(t, err, ErrDiscountTooHigh)
}

func TestDerivedFields(t *testing.T) {
	b := &Book{
		Price:         50,
		DiscountPrice: floatPtr(40),
		Stock:         0,
	}

	resp := ToBookResponse(b)
	assert.Equal(t, 40.0, resp.EffectivePrice)
	assert.InDelta(t, 20.0, resp.DiscountPercentage, 0.001)
	assert.False(t, resp.InStock)

	b.DiscountPrice = nil
	b.Stock = 3
	resp = ToBookResponse(b)
	assert.Equal(t, 50.0, resp.EffectivePrice)
	assert.Zero(t, resp.DiscountPercentage)
	assert.True(t, resp.InStock)
}

func TestUploadCoverReplacesPreviousAsset(t *testing.T) {
	svc, _, store, _ := newTestService()

	b, err := svc.Create(context.Background(), "owner-1", validCreateRequest())
	require.NoError(t, err)

	first, err := svc.UploadCover(
		context.Background(), b.ID, "one.png", nil,
	)
	require.NoError(t, err)
	require.NotNil(t, first.CoverStorageID)
	firstID := *first.CoverStorageID

	second, err := svc.UploadCover(
		context.Background(), b.ID, "two.png", nil,
	)
	require.NoError(t, err)
	require.NotNil(t, second.CoverStorageID)

	assert.NotEqual(t, firstID, *second.CoverStorageID)
	assert.Contains(t, store.deleted, firstID)
}

func TestDeleteCascadesToCover(t *testing.T) {
	svc, repo, store, hub := newTestService()

	b, err := svc.Create(context.Background(), "owner-1", validCreateRequest())
	require.NoError(t, err)

	withCover, err := svc.UploadCover(
		context.Background(), b.ID, "cover.png", nil,
	)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), b.ID))

	_, err = repo.GetByID(context.Background(), b.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Contains(t, store.deleted, *withCover.CoverStorageID)
	assert.True(t, hub.has("book:deleted"))
}

func TestDeleteMissingBook(t *testing.T) {
	svc, _, _, _ := newTestService()

	err := svc.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/vyrodovalexey/inventory-service/internal/model"
)

// MemoryStore implements Store with process-local storage.
type MemoryStore struct {
	mu       sync.RWMutex
	items    map[int64]model.Item
	order    []int64
	nextID   int64
	releaser Releaser
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithReleaser sets the component notified when a deleted item leaves a photo behind.
func WithReleaser(r Releaser) Option {
	return func(s *MemoryStore) {
		s.releaser = r
	}
}

// NewMemoryStore creates an empty MemoryStore whose first ID is 1.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		items:  make(map[int64]model.Item),
		nextID: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns all items in insertion order.
func (s *MemoryStore) List(ctx context.Context) ([]model.Item, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("list items: %w", ctx.Err())
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]model.Item, 0, len(s.order))
	for _, id := range s.order {
		items = append(items, s.items[id].Clone())
	}

	return items, nil
}

// Get retrieves an item by its ID.
func (s *MemoryStore) Get(ctx context.Context, id int64) (*model.Item, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("get item: %w", ctx.Err())
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.items[id]
	if !exists {
		return nil, ErrNotFound
	}

	item = item.Clone()
	return &item, nil
}

// Create adds a new item to the store under the next counter value.
// An input photo is attached in the same step, so the item never exists without it.
func (s *MemoryStore) Create(ctx context.Context, input model.ItemInput) (*model.Item, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("create item: %w", ctx.Err())
	default:
	}

	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item := model.Item{
		ID:          s.nextID,
		Name:        input.Name,
		Description: input.Description,
	}
	if input.Photo != nil {
		token := *input.Photo
		item.Photo = &token
	}
	s.nextID++

	s.items[item.ID] = item
	s.order = append(s.order, item.ID)

	item = item.Clone()
	return &item, nil
}

// Update overwrites the non-empty fields of an existing item.
func (s *MemoryStore) Update(ctx context.Context, id int64, update model.ItemUpdate) (*model.Item, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("update item: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[id]
	if !exists {
		return nil, ErrNotFound
	}

	if err := update.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	if update.Name != "" {
		item.Name = update.Name
	}
	if update.Description != "" {
		item.Description = update.Description
	}
	s.items[id] = item

	item = item.Clone()
	return &item, nil
}

// Delete removes an item and hands its photo, if any, to the releaser.
func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("delete item: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	item, exists := s.items[id]
	if !exists {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.items, id)
	s.removeFromOrder(id)
	s.mu.Unlock()

	// Release happens outside the lock; the record is already gone.
	if item.HasPhoto() && s.releaser != nil {
		s.releaser.Release(ctx, *item.Photo)
	}

	return nil
}

// SetPhotoRef points an item at token and returns the token it replaced, if any.
func (s *MemoryStore) SetPhotoRef(
	ctx context.Context,
	id int64,
	token model.PhotoToken,
) (*model.PhotoToken, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("set photo: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[id]
	if !exists {
		return nil, ErrNotFound
	}

	previous := item.Photo
	item.Photo = &token
	s.items[id] = item

	return previous, nil
}

// removeFromOrder must be called with mu held.
func (s *MemoryStore) removeFromOrder(id int64) {
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

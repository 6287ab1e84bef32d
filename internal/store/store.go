// Package store provides the inventory record store.
package store

import (
	"context"
	"errors"

	"github.com/vyrodovalexey/inventory-service/internal/model"
)

// Store errors.
var (
	ErrNotFound   = errors.New("item not found")
	ErrValidation = errors.New("validation failed")
)

// Store defines the interface for inventory record operations.
type Store interface {
	// List returns all items in insertion order.
	List(ctx context.Context) ([]model.Item, error)

	// Get retrieves an item by its ID.
	Get(ctx context.Context, id int64) (*model.Item, error)

	// Create adds a new item under the next ID and returns it.
	Create(ctx context.Context, input model.ItemInput) (*model.Item, error)

	// Update overwrites the non-empty fields of an existing item.
	Update(ctx context.Context, id int64, update model.ItemUpdate) (*model.Item, error)

	// Delete removes an item and releases its photo, if any.
	Delete(ctx context.Context, id int64) error

	// SetPhotoRef points an item at a new photo and returns the previous token.
	SetPhotoRef(ctx context.Context, id int64, token model.PhotoToken) (*model.PhotoToken, error)
}

// Releaser disposes of photo blobs no longer referenced by any item.
// Release is best-effort and never reports failure.
type Releaser interface {
	Release(ctx context.Context, token model.PhotoToken)
}

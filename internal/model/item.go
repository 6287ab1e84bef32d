// Package model defines data structures used throughout the application.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors for Item.
var (
	ErrEmptyName = errors.New("inventory name is required")
)

// PhotoToken is an opaque reference to a photo blob held by the photo manager.
// Records store it verbatim and never derive file paths from it.
type PhotoToken string

// String returns the token as a plain string.
func (t PhotoToken) String() string {
	return string(t)
}

// Item represents an inventory record.
type Item struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Photo       *PhotoToken `json:"photo"`
}

// HasPhoto reports whether the item references a stored photo.
func (i *Item) HasPhoto() bool {
	return i.Photo != nil && *i.Photo != ""
}

// Clone returns a deep copy of the item so callers never share the photo pointer.
func (i Item) Clone() Item {
	if i.Photo != nil {
		token := *i.Photo
		i.Photo = &token
	}
	return i
}

// ItemInput carries the fields accepted when registering an item.
type ItemInput struct {
	Name        string `json:"inventory_name"`
	Description string `json:"description"`

	// Photo is the already stored blob the new item starts with, if any.
	Photo *PhotoToken `json:"-"`
}

// Validate checks that the required fields are present.
func (in *ItemInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// ItemUpdate carries optional replacements for an item's fields.
// Empty values leave the corresponding field unchanged.
type ItemUpdate struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Validate rejects a replacement name made only of whitespace.
func (u ItemUpdate) Validate() error {
	if u.Name != "" && strings.TrimSpace(u.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// IsEmpty reports whether the update would change nothing.
func (u ItemUpdate) IsEmpty() bool {
	return u.Name == "" && u.Description == ""
}

// ItemView is an item as rendered to clients. PhotoURL is set only
// when the item has a photo.
type ItemView struct {
	Item
	PhotoURL string `json:"photoUrl,omitempty"`
}

// PhotoPath returns the URL path under which an item's photo is served.
func PhotoPath(id int64) string {
	return fmt.Sprintf("/inventory/%d/photo", id)
}

// NewItemView renders an item, attaching the photo location only if a photo exists.
func NewItemView(item Item) ItemView {
	view := ItemView{Item: item.Clone()}
	if item.HasPhoto() {
		view.PhotoURL = PhotoPath(item.ID)
	}
	return view
}

// ListResponse is the body returned when listing items.
type ListResponse struct {
	Count int        `json:"count"`
	Items []ItemView `json:"items"`
}

// MessageResponse is a plain confirmation body.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response structure.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

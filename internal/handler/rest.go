package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/inventory-service/internal/model"
	"github.com/vyrodovalexey/inventory-service/internal/photo"
	"github.com/vyrodovalexey/inventory-service/internal/store"
)

// Version is the application version.
const Version = "1.0.0"

// DefaultMaxUploadBytes caps request bodies when no limit is configured.
const DefaultMaxUploadBytes int64 = 10 << 20

// Route names, also used as operation IDs in the API document.
const (
	RouteHealth      = "health"
	RouteRegister    = "registerItem"
	RouteList        = "listItems"
	RouteGet         = "getItem"
	RouteUpdate      = "updateItem"
	RouteDelete      = "deleteItem"
	RouteGetPhoto    = "getItemPhoto"
	RouteUpdatePhoto = "replaceItemPhoto"
	RouteSearch      = "searchItem"
)

// PhotoStore is the part of the photo manager the handlers rely on.
type PhotoStore interface {
	Open(token model.PhotoToken) (*os.File, error)
	Replace(ctx context.Context, r io.Reader, commit photo.CommitFunc) (model.PhotoToken, error)
}

// InventoryHandler handles REST API requests for inventory items.
type InventoryHandler struct {
	store          store.Store
	photos         PhotoStore
	logger         *zap.Logger
	maxUploadBytes int64
}

// NewInventoryHandler creates a new InventoryHandler instance.
func NewInventoryHandler(
	s store.Store,
	photos PhotoStore,
	logger *zap.Logger,
	maxUploadBytes int64,
) *InventoryHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &InventoryHandler{
		store:          s,
		photos:         photos,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes registers the inventory routes with the router.
func (h *InventoryHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet).Name(RouteHealth)
	router.HandleFunc("/register", h.RegisterItem).Methods(http.MethodPost).Name(RouteRegister)
	router.HandleFunc("/inventory", h.ListItems).Methods(http.MethodGet).Name(RouteList)
	router.HandleFunc("/inventory/{id}", h.GetItem).Methods(http.MethodGet).Name(RouteGet)
	router.HandleFunc("/inventory/{id}", h.UpdateItem).Methods(http.MethodPut).Name(RouteUpdate)
	router.HandleFunc("/inventory/{id}", h.DeleteItem).Methods(http.MethodDelete).Name(RouteDelete)
	router.HandleFunc("/inventory/{id}/photo", h.GetPhoto).Methods(http.MethodGet).Name(RouteGetPhoto)
	router.HandleFunc("/inventory/{id}/photo", h.UpdatePhoto).Methods(http.MethodPut).Name(RouteUpdatePhoto)
	router.HandleFunc("/search", h.Search).Methods(http.MethodPost).Name(RouteSearch)
}

// HealthCheck handles GET /health requests.
func (h *InventoryHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: Version,
	})
}

// RegisterItem handles POST /register requests.
func (h *InventoryHandler) RegisterItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	defer cleanupMultipart(r)

	body, err := readFields(r)
	if err != nil {
		h.handleError(w, err, "register item")
		return
	}

	input := model.ItemInput{
		Name:        body["inventory_name"],
		Description: body["description"],
	}
	if err := input.Validate(); err != nil {
		h.logger.Warn("validation failed", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, err := formFile(r, "photo")
	if err != nil {
		h.handleError(w, err, "register item")
		return
	}

	if file == nil {
		item, err := h.store.Create(ctx, input)
		if err != nil {
			h.handleError(w, err, "register item")
			return
		}
		h.writeJSON(w, http.StatusCreated, model.NewItemView(*item))
		return
	}
	defer file.Close()

	// The blob is stored first and the record is created with it in one
	// step, so a failed request leaves neither behind.
	var created *model.Item
	_, err = h.photos.Replace(ctx, file, func(token model.PhotoToken) (*model.PhotoToken, error) {
		input.Photo = &token
		item, err := h.store.Create(ctx, input)
		if err != nil {
			return nil, err
		}
		created = item
		return nil, nil
	})
	if err != nil {
		h.handleError(w, err, "register item")
		return
	}

	h.logger.Info("item registered",
		zap.Int64("id", created.ID),
		zap.Bool("has_photo", true),
	)
	h.writeJSON(w, http.StatusCreated, model.NewItemView(*created))
}

// ListItems handles GET /inventory requests.
func (h *InventoryHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.List(r.Context())
	if err != nil {
		h.handleError(w, err, "list items")
		return
	}

	views := make([]model.ItemView, 0, len(items))
	for _, item := range items {
		views = append(views, model.NewItemView(item))
	}

	h.writeJSON(w, http.StatusOK, model.ListResponse{
		Count: len(views),
		Items: views,
	})
}

// GetItem handles GET /inventory/{id} requests.
func (h *InventoryHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		h.handleError(w, err, "get item")
		return
	}

	item, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.handleError(w, err, "get item")
		return
	}

	h.writeJSON(w, http.StatusOK, model.NewItemView(*item))
}

// UpdateItem handles PUT /inventory/{id} requests.
func (h *InventoryHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		h.handleError(w, err, "update item")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	defer cleanupMultipart(r)

	body, err := readFields(r)
	if err != nil {
		h.handleError(w, err, "update item")
		return
	}

	item, err := h.store.Update(r.Context(), id, model.ItemUpdate{
		Name:        body["name"],
		Description: body["description"],
	})
	if err != nil {
		h.handleError(w, err, "update item")
		return
	}

	h.writeJSON(w, http.StatusOK, model.NewItemView(*item))
}

// DeleteItem handles DELETE /inventory/{id} requests.
func (h *InventoryHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		h.handleError(w, err, "delete item")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.handleError(w, err, "delete item")
		return
	}

	h.logger.Info("item deleted", zap.Int64("id", id))
	h.writeJSON(w, http.StatusOK, model.MessageResponse{
		Message: fmt.Sprintf("item %d deleted", id),
	})
}

// GetPhoto handles GET /inventory/{id}/photo requests.
func (h *InventoryHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		h.handleError(w, err, "get photo")
		return
	}

	item, err := h.store.Get(ctx, id)
	if err != nil {
		h.handleError(w, err, "get photo")
		return
	}

	if !item.HasPhoto() {
		h.writeError(w, http.StatusNotFound, "item has no photo")
		return
	}

	f, err := h.photos.Open(*item.Photo)
	if errors.Is(err, photo.ErrNotFound) {
		// The record keeps its reference; only the blob is gone.
		h.logger.Warn("photo file missing",
			zap.Int64("id", id),
			zap.String("token", item.Photo.String()),
		)
		h.writeError(w, http.StatusNotFound, "photo file missing")
		return
	}
	if err != nil {
		h.handleError(w, err, "get photo")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.handleError(w, err, "get photo")
		return
	}

	http.ServeContent(w, r, "", info.ModTime(), f)
}

// UpdatePhoto handles PUT /inventory/{id}/photo requests.
func (h *InventoryHandler) UpdatePhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		h.handleError(w, err, "replace photo")
		return
	}

	if _, err := h.store.Get(ctx, id); err != nil {
		h.handleError(w, err, "replace photo")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	defer cleanupMultipart(r)

	if _, err := readFields(r); err != nil {
		h.handleError(w, err, "replace photo")
		return
	}

	file, err := formFile(r, "photo")
	if err != nil {
		h.handleError(w, err, "replace photo")
		return
	}
	if file == nil {
		h.handleError(w, photo.ErrNoFile, "replace photo")
		return
	}
	defer file.Close()

	token, err := h.photos.Replace(ctx, file, func(token model.PhotoToken) (*model.PhotoToken, error) {
		return h.store.SetPhotoRef(ctx, id, token)
	})
	if err != nil {
		h.handleError(w, err, "replace photo")
		return
	}

	item, err := h.store.Get(ctx, id)
	if err != nil {
		h.handleError(w, err, "replace photo")
		return
	}

	h.logger.Info("photo replaced", zap.Int64("id", id), zap.String("token", token.String()))
	h.writeJSON(w, http.StatusOK, model.NewItemView(*item))
}

// Search handles POST /search requests.
func (h *InventoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	defer cleanupMultipart(r)

	body, err := readFields(r)
	if err != nil {
		h.handleError(w, err, "search")
		return
	}

	id, err := parseID(body["id"])
	if err != nil {
		h.handleError(w, err, "search")
		return
	}
	withPhoto := parseFlag(body["has_photo"])

	item, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.handleError(w, err, "search")
		return
	}

	view := model.NewItemView(*item)
	if withPhoto && item.HasPhoto() {
		view.Description = annotateDescription(view.Description, view.PhotoURL)
	}

	h.writeJSON(w, http.StatusOK, view)
}

// MethodNotAllowed answers every request that matched no route.
func (h *InventoryHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("unmatched request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
	h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// annotateDescription appends a note pointing at the photo.
func annotateDescription(description, photoURL string) string {
	note := fmt.Sprintf("(photo: %s)", photoURL)
	if description == "" {
		return note
	}
	return description + " " + note
}

// handleError maps domain errors to HTTP responses.
func (h *InventoryHandler) handleError(w http.ResponseWriter, err error, operation string) {
	var maxErr *http.MaxBytesError

	switch {
	case errors.Is(err, store.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "item not found")
	case errors.Is(err, store.ErrValidation):
		h.writeError(w, http.StatusBadRequest, model.ErrEmptyName.Error())
	case errors.Is(err, photo.ErrNoFile):
		h.writeError(w, http.StatusBadRequest, "photo file is required")
	case errors.Is(err, photo.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "photo file missing")
	case errors.As(err, &maxErr):
		h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
	case errors.Is(err, errInvalidBody):
		h.logger.Warn("invalid request body", zap.String("operation", operation), zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "invalid request body")
	default:
		h.logger.Error("operation failed", zap.String("operation", operation), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeJSON writes a JSON response with the given status code.
func (h *InventoryHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError writes an error response with the given status code and message.
func (h *InventoryHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, model.ErrorResponse{
		Code:    status,
		Message: message,
	})
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/inventory-service/internal/model"
	"github.com/vyrodovalexey/inventory-service/internal/photo"
	"github.com/vyrodovalexey/inventory-service/internal/store"
)

type testEnv struct {
	router *mux.Router
	store  *store.MemoryStore
	photos *photo.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	photos, err := photo.Open(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("photo.Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = photos.Close()
	})

	s := store.NewMemoryStore(store.WithReleaser(photos))
	h := NewInventoryHandler(s, photos, logger, 1<<20)

	router := mux.NewRouter()
	h.RegisterRoutes(router)
	router.NotFoundHandler = http.HandlerFunc(h.MethodNotAllowed)
	router.MethodNotAllowedHandler = http.HandlerFunc(h.MethodNotAllowed)

	return &testEnv{router: router, store: s, photos: photos}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// multipartRequest builds a multipart request; a nil photo omits the file part.
func multipartRequest(t *testing.T, method, target string, values map[string]string, photoData []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range values {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField() error = %v", err)
		}
	}
	if photoData != nil {
		part, err := mw.CreateFormFile("photo", "photo.jpg")
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		if _, err := part.Write(photoData); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeView(t *testing.T, rr *httptest.ResponseRecorder) model.ItemView {
	t.Helper()

	var view model.ItemView
	if err := json.NewDecoder(rr.Body).Decode(&view); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return view
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()

	var resp model.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

func cacheFiles(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	var names []string
	for _, e := range entries {
		if e.Name() != photo.LockFileName {
			names = append(names, e.Name())
		}
	}
	return names
}

func TestNewInventoryHandler(t *testing.T) {
	// Act
	h := NewInventoryHandler(store.NewMemoryStore(), nil, zap.NewNop(), 0)

	// Assert
	if h == nil {
		t.Fatal("NewInventoryHandler() returned nil")
	}
	if h.maxUploadBytes != DefaultMaxUploadBytes {
		t.Errorf("maxUploadBytes = %d, want %d", h.maxUploadBytes, DefaultMaxUploadBytes)
	}
}

func TestInventoryHandler_HealthCheck(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "healthy" || resp.Version != Version {
		t.Errorf("response = %+v", resp)
	}
}

func TestInventoryHandler_RegisterItem(t *testing.T) {
	tests := []struct {
		name       string
		req        func(t *testing.T) *http.Request
		wantStatus int
		wantPhoto  bool
	}{
		{
			name: "multipart without photo",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, http.MethodPost, "/register",
					map[string]string{"inventory_name": "Drill", "description": "Cordless"}, nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "multipart with photo",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, http.MethodPost, "/register",
					map[string]string{"inventory_name": "Drill"}, []byte("jpeg"))
			},
			wantStatus: http.StatusCreated,
			wantPhoto:  true,
		},
		{
			name: "urlencoded",
			req: func(t *testing.T) *http.Request {
				form := url.Values{"inventory_name": {"Drill"}, "description": {"Cordless"}}
				req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form.Encode()))
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				return req
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "json",
			req: func(t *testing.T) *http.Request {
				return jsonRequest(t, http.MethodPost, "/register",
					map[string]string{"inventory_name": "Drill", "description": "Cordless"})
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "missing name",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, http.MethodPost, "/register",
					map[string]string{"description": "Cordless"}, []byte("jpeg"))
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "malformed json",
			req: func(t *testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader("{"))
				req.Header.Set("Content-Type", "application/json")
				return req
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			env := newTestEnv(t)

			// Act
			rr := env.do(tt.req(t))

			// Assert
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body %s", rr.Code, tt.wantStatus, rr.Body.String())
			}

			files := cacheFiles(t, env.photos.Dir())
			if rr.Code != http.StatusCreated {
				if len(files) != 0 {
					t.Errorf("failed register left files %v", files)
				}
				items, _ := env.store.List(context.Background())
				if len(items) != 0 {
					t.Errorf("failed register added %d items", len(items))
				}
				return
			}

			view := decodeView(t, rr)
			if view.ID != 1 || view.Name != "Drill" {
				t.Errorf("view = %+v", view)
			}
			if tt.wantPhoto {
				if view.Photo == nil || view.PhotoURL != "/inventory/1/photo" {
					t.Errorf("photo = %v, photoUrl = %q", view.Photo, view.PhotoURL)
				}
				if len(files) != 1 || files[0] != view.Photo.String() {
					t.Errorf("cache files = %v, want [%v]", files, *view.Photo)
				}
			} else if view.Photo != nil || view.PhotoURL != "" {
				t.Errorf("unexpected photo %v / %q", view.Photo, view.PhotoURL)
			}
		})
	}
}

func TestInventoryHandler_RegisterItem_NullPhotoJSON(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(multipartRequest(t, http.MethodPost, "/register",
		map[string]string{"inventory_name": "Drill", "description": "Cordless"}, nil))

	want := `{"id":1,"name":"Drill","description":"Cordless","photo":null}`
	if got := strings.TrimSpace(rr.Body.String()); got != want {
		t.Errorf("body = %s, want %s", got, want)
	}
}

func TestInventoryHandler_RegisterItem_TooLarge(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	req := multipartRequest(t, http.MethodPost, "/register",
		map[string]string{"inventory_name": "Drill"}, bytes.Repeat([]byte("x"), 2<<20))

	// Act
	rr := env.do(req)

	// Assert
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusRequestEntityTooLarge)
	}
	if files := cacheFiles(t, env.photos.Dir()); len(files) != 0 {
		t.Errorf("oversized upload left files %v", files)
	}
}

func TestInventoryHandler_ListItems(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	env.do(multipartRequest(t, http.MethodPost, "/register", map[string]string{"inventory_name": "Drill"}, nil))
	env.do(multipartRequest(t, http.MethodPost, "/register", map[string]string{"inventory_name": "Saw"}, []byte("img")))

	// Act
	rr := env.do(httptest.NewRequest(http.MethodGet, "/inventory", nil))

	// Assert
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var resp model.ListResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 || len(resp.Items) != 2 {
		t.Fatalf("count = %d, items = %d, want 2", resp.Count, len(resp.Items))
	}
	if resp.Items[0].Name != "Drill" || resp.Items[0].PhotoURL != "" {
		t.Errorf("items[0] = %+v", resp.Items[0])
	}
	if resp.Items[1].Name != "Saw" || resp.Items[1].PhotoURL != "/inventory/2/photo" {
		t.Errorf("items[1] = %+v", resp.Items[1])
	}
}

func TestInventoryHandler_ListItems_Empty(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/inventory", nil))

	if got := strings.TrimSpace(rr.Body.String()); got != `{"count":0,"items":[]}` {
		t.Errorf("body = %s", got)
	}
}

func TestInventoryHandler_GetUpdateDelete(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	env.do(multipartRequest(t, http.MethodPost, "/register",
		map[string]string{"inventory_name": "Drill", "description": "Cordless"}, nil))

	// Act & Assert - get
	rr := env.do(httptest.NewRequest(http.MethodGet, "/inventory/1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}
	if view := decodeView(t, rr); view.Description != "Cordless" || view.PhotoURL != "" {
		t.Errorf("get view = %+v", view)
	}

	// update via JSON, empty name is a no-op
	rr = env.do(jsonRequest(t, http.MethodPut, "/inventory/1",
		map[string]string{"name": "", "description": "Brushless"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rr.Code, rr.Body.String())
	}
	if view := decodeView(t, rr); view.Name != "Drill" || view.Description != "Brushless" {
		t.Errorf("update view = %+v", view)
	}

	// update via form
	form := url.Values{"name": {"Impact Drill"}}
	req := httptest.NewRequest(http.MethodPut, "/inventory/1", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr = env.do(req)
	if view := decodeView(t, rr); view.Name != "Impact Drill" || view.Description != "Brushless" {
		t.Errorf("form update view = %+v", view)
	}

	// delete
	rr = env.do(httptest.NewRequest(http.MethodDelete, "/inventory/1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rr.Code)
	}

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/inventory/1", nil),
		httptest.NewRequest(http.MethodDelete, "/inventory/1", nil),
		jsonRequest(t, http.MethodPut, "/inventory/1", map[string]string{"name": "x"}),
	} {
		if rr := env.do(req); rr.Code != http.StatusNotFound {
			t.Errorf("%s after delete status = %d, want %d", req.Method, rr.Code, http.StatusNotFound)
		}
	}
}

func TestInventoryHandler_Delete_ReleasesPhoto(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	rr := env.do(multipartRequest(t, http.MethodPost, "/register",
		map[string]string{"inventory_name": "Drill"}, []byte("img")))
	token := *decodeView(t, rr).Photo

	// Act
	rr = env.do(httptest.NewRequest(http.MethodDelete, "/inventory/1", nil))

	// Assert
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rr.Code)
	}
	if files := cacheFiles(t, env.photos.Dir()); len(files) != 0 {
		t.Errorf("cache files after delete = %v", files)
	}
	if _, err := env.photos.Open(token); !errors.Is(err, photo.ErrNotFound) {
		t.Errorf("Open() after delete error = %v, want %v", err, photo.ErrNotFound)
	}
}

func TestInventoryHandler_GetPhoto(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	payload := []byte("\xff\xd8\xff\xe0 jpeg payload")
	env.do(multipartRequest(t, http.MethodPost, "/register", map[string]string{"inventory_name": "with"}, payload))
	env.do(multipartRequest(t, http.MethodPost, "/register", map[string]string{"inventory_name": "without"}, nil))

	tests := []struct {
		name        string
		path        string
		wantStatus  int
		wantMessage string
	}{
		{name: "has photo", path: "/inventory/1/photo", wantStatus: http.StatusOK},
		{name: "no photo", path: "/inventory/2/photo", wantStatus: http.StatusNotFound, wantMessage: "item has no photo"},
		{name: "unknown item", path: "/inventory/9/photo", wantStatus: http.StatusNotFound, wantMessage: "item not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				if !bytes.Equal(rr.Body.Bytes(), payload) {
					t.Errorf("body = %q, want %q", rr.Body.Bytes(), payload)
				}
				return
			}
			if msg := decodeError(t, rr).Message; msg != tt.wantMessage {
				t.Errorf("message = %q, want %q", msg, tt.wantMessage)
			}
		})
	}
}

func TestInventoryHandler_GetPhoto_FileMissing(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	rr := env.do(multipartRequest(t, http.MethodPost, "/register",
		map[string]string{"inventory_name": "Drill"}, []byte("img")))
	token := *decodeView(t, rr).Photo
	if err := os.Remove(filepath.Join(env.photos.Dir(), token.String())); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	for attempt := 1; attempt <= 2; attempt++ {
		// Act
		rr = env.do(httptest.NewRequest(http.MethodGet, "/inventory/1/photo", nil))

		// Assert
		if rr.Code != http.StatusNotFound {
			t.Fatalf("attempt %d: status = %d, want %d", attempt, rr.Code, http.StatusNotFound)
		}
		if msg := decodeError(t, rr).Message; msg != "photo file missing" {
			t.Errorf("attempt %d: message = %q, want photo file missing", attempt, msg)
		}
	}

	item, _ := env.store.Get(context.Background(), 1)
	if !item.HasPhoto() || *item.Photo != token {
		t.Errorf("photo reference = %v, want %s kept", item.Photo, token)
	}
	rr = env.do(httptest.NewRequest(http.MethodGet, "/inventory/1", nil))
	if view := decodeView(t, rr); view.Photo == nil || view.PhotoURL != "/inventory/1/photo" {
		t.Errorf("get item view = %+v, want photo kept", view)
	}
}

func TestInventoryHandler_UpdatePhoto(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	rr := env.do(multipartRequest(t, http.MethodPost, "/register",
		map[string]string{"inventory_name": "Drill"}, []byte("old")))
	oldToken := *decodeView(t, rr).Photo

	// Act
	rr = env.do(multipartRequest(t, http.MethodPut, "/inventory/1/photo", nil, []byte("new")))

	// Assert
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	view := decodeView(t, rr)
	if view.Photo == nil || *view.Photo == oldToken {
		t.Fatalf("photo token = %v, want a new token", view.Photo)
	}
	if _, err := os.Stat(filepath.Join(env.photos.Dir(), oldToken.String())); !os.IsNotExist(err) {
		t.Errorf("old blob still on disk: %v", err)
	}
	rr = env.do(httptest.NewRequest(http.MethodGet, "/inventory/1/photo", nil))
	if rr.Body.String() != "new" {
		t.Errorf("photo body = %q, want new", rr.Body.String())
	}
}

func TestInventoryHandler_UpdatePhoto_Errors(t *testing.T) {
	tests := []struct {
		name       string
		req        func(t *testing.T) *http.Request
		wantStatus int
	}{
		{
			name: "unknown item",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, http.MethodPut, "/inventory/5/photo", nil, []byte("img"))
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "multipart without file",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, http.MethodPut, "/inventory/1/photo", map[string]string{"x": "y"}, nil)
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "empty body",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPut, "/inventory/1/photo", nil)
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			env := newTestEnv(t)
			env.do(multipartRequest(t, http.MethodPost, "/register", map[string]string{"inventory_name": "Drill"}, nil))

			// Act
			rr := env.do(tt.req(t))

			// Assert
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if files := cacheFiles(t, env.photos.Dir()); len(files) != 0 {
				t.Errorf("cache files = %v, want none", files)
			}
		})
	}
}

func TestInventoryHandler_Search(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	env.do(multipartRequest(t, http.MethodPost, "/register",
		map[string]string{"inventory_name": "Drill", "description": "Cordless"}, []byte("img")))
	env.do(multipartRequest(t, http.MethodPost, "/register",
		map[string]string{"inventory_name": "Saw", "description": "Hand"}, nil))

	annotated := "Cordless (photo: /inventory/1/photo)"

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantDesc   string
	}{
		{name: "flag on", body: map[string]any{"id": 1, "has_photo": "on"}, wantStatus: http.StatusOK, wantDesc: annotated},
		{name: "flag true string", body: map[string]any{"id": "1", "has_photo": "true"}, wantStatus: http.StatusOK, wantDesc: annotated},
		{name: "flag 1", body: map[string]any{"id": 1, "has_photo": "1"}, wantStatus: http.StatusOK, wantDesc: annotated},
		{name: "flag bool", body: map[string]any{"id": 1, "has_photo": true}, wantStatus: http.StatusOK, wantDesc: annotated},
		{name: "flag off", body: map[string]any{"id": 1, "has_photo": "off"}, wantStatus: http.StatusOK, wantDesc: "Cordless"},
		{name: "flag absent", body: map[string]any{"id": 1}, wantStatus: http.StatusOK, wantDesc: "Cordless"},
		{name: "no photo", body: map[string]any{"id": 2, "has_photo": "on"}, wantStatus: http.StatusOK, wantDesc: "Hand"},
		{name: "unknown id", body: map[string]any{"id": 9}, wantStatus: http.StatusNotFound},
		{name: "zero id", body: map[string]any{"id": 0}, wantStatus: http.StatusNotFound},
		{name: "bad id", body: map[string]any{"id": "abc"}, wantStatus: http.StatusNotFound},
		{name: "missing id", body: map[string]any{}, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			rr := env.do(jsonRequest(t, http.MethodPost, "/search", tt.body))

			// Assert
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if view := decodeView(t, rr); view.Description != tt.wantDesc {
				t.Errorf("description = %q, want %q", view.Description, tt.wantDesc)
			}
		})
	}

	stored, _ := env.store.Get(context.Background(), 1)
	if stored.Description != "Cordless" {
		t.Errorf("stored description = %q, search must not mutate it", stored.Description)
	}
}

func TestInventoryHandler_Fallback(t *testing.T) {
	env := newTestEnv(t)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPatch, "/inventory/1", nil),
		httptest.NewRequest(http.MethodGet, "/register", nil),
		httptest.NewRequest(http.MethodDelete, "/inventory/1/photo", nil),
		httptest.NewRequest(http.MethodGet, "/nowhere", nil),
	} {
		rr := env.do(req)
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s status = %d, want %d", req.Method, req.URL.Path, rr.Code, http.StatusMethodNotAllowed)
		}
	}
}

func TestInventoryHandler_UnissuedIDs(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	env.do(multipartRequest(t, http.MethodPost, "/register", map[string]string{"inventory_name": "Drill"}, nil))

	for _, id := range []string{"0", "-1", "abc", "99999999999999999999"} {
		for _, req := range []*http.Request{
			httptest.NewRequest(http.MethodGet, "/inventory/"+id, nil),
			httptest.NewRequest(http.MethodDelete, "/inventory/"+id, nil),
			jsonRequest(t, http.MethodPut, "/inventory/"+id, map[string]string{"name": "x"}),
			httptest.NewRequest(http.MethodGet, "/inventory/"+id+"/photo", nil),
			multipartRequest(t, http.MethodPut, "/inventory/"+id+"/photo", nil, []byte("img")),
		} {
			// Act
			rr := env.do(req)

			// Assert
			if rr.Code != http.StatusNotFound {
				t.Errorf("%s %s status = %d, want %d", req.Method, req.URL.Path, rr.Code, http.StatusNotFound)
			}
		}
	}

	items, _ := env.store.List(context.Background())
	if len(items) != 1 || items[0].Name != "Drill" {
		t.Errorf("items = %+v, want the untouched Drill", items)
	}
}

func TestInventoryHandler_UpdateItem_BlankName(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	env.do(multipartRequest(t, http.MethodPost, "/register", map[string]string{"inventory_name": "Drill"}, nil))

	// Act
	rr := env.do(jsonRequest(t, http.MethodPut, "/inventory/1", map[string]string{"name": "   "}))

	// Assert
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	item, _ := env.store.Get(context.Background(), 1)
	if item.Name != "Drill" {
		t.Errorf("Name = %q, want Drill", item.Name)
	}
}

func TestParseFlag(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"on", true},
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{" on ", true},
		{"", false},
		{"off", false},
		{"false", false},
		{"0", false},
		{"yes", false},
	}

	for _, tt := range tests {
		if got := parseFlag(tt.in); got != tt.want {
			t.Errorf("parseFlag(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseID(t *testing.T) {
	if id, err := parseID("12"); err != nil || id != 12 {
		t.Errorf("parseID(12) = %d, %v", id, err)
	}
	for _, in := range []string{"", "0", "-3", "1.5", "x", "99999999999999999999"} {
		if _, err := parseID(in); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("parseID(%q) error = %v, want %v", in, err, store.ErrNotFound)
		}
	}
}

func TestReadJSONFields_RejectsNested(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"id":{"n":1}}`))
	req.Header.Set("Content-Type", "application/json")

	_, err := readFields(req)

	if !errors.Is(err, errInvalidBody) {
		t.Errorf("readFields() error = %v, want %v", err, errInvalidBody)
	}
}

// failingStore returns err from every call.
type failingStore struct {
	store.Store
	err error
}

func (f failingStore) List(context.Context) ([]model.Item, error) {
	return nil, f.err
}

// faultyStore wraps a real store and fails the calls given an error.
type faultyStore struct {
	store.Store
	createErr   error
	setPhotoErr error
}

func (f faultyStore) Create(ctx context.Context, input model.ItemInput) (*model.Item, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.Store.Create(ctx, input)
}

func (f faultyStore) SetPhotoRef(ctx context.Context, id int64, token model.PhotoToken) (*model.PhotoToken, error) {
	if f.setPhotoErr != nil {
		return nil, f.setPhotoErr
	}
	return f.Store.SetPhotoRef(ctx, id, token)
}

func TestInventoryHandler_RegisterItem_CommitIsAtomic(t *testing.T) {
	tests := []struct {
		name       string
		faults     faultyStore
		wantStatus int
		wantItems  int
		wantFiles  int
	}{
		{
			name:       "create fails",
			faults:     faultyStore{createErr: context.Canceled},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "photo swap unavailable",
			faults:     faultyStore{setPhotoErr: context.Canceled},
			wantStatus: http.StatusCreated,
			wantItems:  1,
			wantFiles:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			logger := zap.NewNop()
			photos, err := photo.Open(t.TempDir(), logger)
			if err != nil {
				t.Fatalf("photo.Open() error = %v", err)
			}
			t.Cleanup(func() { _ = photos.Close() })

			mem := store.NewMemoryStore(store.WithReleaser(photos))
			faults := tt.faults
			faults.Store = mem
			router := mux.NewRouter()
			NewInventoryHandler(faults, photos, logger, 1<<20).RegisterRoutes(router)

			// Act
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, multipartRequest(t, http.MethodPost, "/register",
				map[string]string{"inventory_name": "Drill"}, []byte("img")))

			// Assert
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			items, _ := mem.List(context.Background())
			if len(items) != tt.wantItems {
				t.Errorf("items = %+v, want %d", items, tt.wantItems)
			}
			if files := cacheFiles(t, photos.Dir()); len(files) != tt.wantFiles {
				t.Errorf("cache files = %v, want %d", files, tt.wantFiles)
			}
			for _, item := range items {
				if !item.HasPhoto() {
					t.Errorf("item %d stored without its photo", item.ID)
				}
			}
		})
	}
}

func TestInventoryHandler_InternalError(t *testing.T) {
	// Arrange
	h := NewInventoryHandler(failingStore{err: errors.New("boom")}, nil, zap.NewNop(), 0)
	rr := httptest.NewRecorder()

	// Act
	h.ListItems(rr, httptest.NewRequest(http.MethodGet, "/inventory", nil))

	// Assert
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusInternalServerError)
	}
	body, _ := io.ReadAll(rr.Body)
	if strings.Contains(string(body), "boom") {
		t.Errorf("internal error leaked to client: %s", body)
	}
}

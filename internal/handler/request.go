package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/vyrodovalexey/inventory-service/internal/store"
)

// Body parsing errors.
var (
	errInvalidBody = errors.New("invalid request body")
)

// multipartMemory is how much of a multipart body is held in memory
// before spilling to temporary files.
const multipartMemory = 8 << 20

// fields is a request body flattened to string values, whatever its encoding.
type fields map[string]string

// readFields parses a JSON, urlencoded or multipart body. For multipart
// bodies r.MultipartForm is populated so files can be fetched afterwards.
func readFields(r *http.Request) (fields, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = ""
	}

	switch mediaType {
	case "application/json":
		return readJSONFields(r)
	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, wrapBodyError(err)
		}
	default:
		if err := r.ParseForm(); err != nil {
			return nil, wrapBodyError(err)
		}
	}

	out := make(fields, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			out[key] = values[0]
		}
	}
	return out, nil
}

// readJSONFields decodes a JSON object, turning every scalar into its text form.
func readJSONFields(r *http.Request) (fields, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, wrapBodyError(err)
	}

	out := make(fields, len(raw))
	for key, value := range raw {
		value = bytes.TrimSpace(value)
		switch {
		case len(value) == 0 || bytes.Equal(value, []byte("null")):
			continue
		case value[0] == '"':
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				return nil, wrapBodyError(err)
			}
			out[key] = s
		case value[0] == '{' || value[0] == '[':
			return nil, fmt.Errorf("%w: field %q must be a scalar", errInvalidBody, key)
		default:
			out[key] = string(value)
		}
	}
	return out, nil
}

// wrapBodyError keeps size-limit errors recognizable and tags the rest as bad input.
func wrapBodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return err
	}
	return fmt.Errorf("%w: %w", errInvalidBody, err)
}

// formFile returns the named upload, or nil if the request carried none.
func formFile(r *http.Request, name string) (multipart.File, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	file, _, err := r.FormFile(name)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapBodyError(err)
	}
	return file, nil
}

// parseFlag normalizes the truthy spellings clients send for checkboxes.
func parseFlag(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on", "true", "1":
		return true
	default:
		return false
	}
}

// parseID parses an item ID. Anything that cannot be an issued ID,
// including zero, negatives and overflowing values, is reported as not found.
func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id < 1 {
		return 0, store.ErrNotFound
	}
	return id, nil
}

// cleanupMultipart removes temp files left by ParseMultipartForm.
func cleanupMultipart(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}

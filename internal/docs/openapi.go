// Package docs builds an OpenAPI description of the service by walking
// the routes registered on a router.
package docs

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// OpenAPIVersion is the version of the OpenAPI format produced.
const OpenAPIVersion = "3.0.3"

// pathVar matches mux path variables such as {id} or {id:[0-9]+}.
var pathVar = regexp.MustCompile(`\{([^}:]+)(:[^}]*)?\}`)

// Info describes the API being documented.
type Info struct {
	Title   string `json:"title"`
	Version string `json:"version"`

	// Created lists operation IDs that answer 201 instead of 200.
	Created []string `json:"-"`
}

// Document is a minimal OpenAPI document.
type Document struct {
	OpenAPI string                          `json:"openapi"`
	Info    Info                            `json:"info"`
	Paths   map[string]map[string]Operation `json:"paths"`
}

// Operation describes one method on a path.
type Operation struct {
	OperationID string      `json:"operationId,omitempty"`
	Parameters  []Parameter `json:"parameters,omitempty"`
	Responses   Responses   `json:"responses"`
}

// Parameter describes a path parameter.
type Parameter struct {
	Name     string `json:"name"`
	In       string `json:"in"`
	Required bool   `json:"required"`
	Schema   Schema `json:"schema"`
}

// Schema is the type of a parameter.
type Schema struct {
	Type    string `json:"type"`
	Pattern string `json:"pattern,omitempty"`
}

// Responses maps status codes to their descriptions.
type Responses map[string]Response

// Response describes a single response.
type Response struct {
	Description string `json:"description"`
}

// Build walks router and describes every route that declares its methods.
func Build(router *mux.Router, info Info) (*Document, error) {
	doc := &Document{
		OpenAPI: OpenAPIVersion,
		Info:    info,
		Paths:   make(map[string]map[string]Operation),
	}

	created := make(map[string]bool, len(info.Created))
	for _, name := range info.Created {
		created[name] = true
	}

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		tmpl, err := route.GetPathTemplate()
		if err != nil {
			return nil
		}
		methods, err := route.GetMethods()
		if err != nil {
			return nil
		}

		path, params := convertTemplate(tmpl)
		ops, ok := doc.Paths[path]
		if !ok {
			ops = make(map[string]Operation)
			doc.Paths[path] = ops
		}

		for _, method := range methods {
			ops[strings.ToLower(method)] = Operation{
				OperationID: route.GetName(),
				Parameters:  params,
				Responses:   defaultResponses(method, len(params) > 0, created[route.GetName()]),
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk routes: %w", err)
	}

	return doc, nil
}

// Handler serves the document for router, rebuilt on every request so
// routes added after construction are included.
func Handler(router *mux.Router, info Info, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		doc, err := Build(router, info)
		if err != nil {
			logger.Error("failed to build API document", zap.Error(err))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(doc); err != nil {
			logger.Error("failed to encode API document", zap.Error(err))
		}
	})
}

// convertTemplate rewrites a mux template to OpenAPI form and lists its parameters.
func convertTemplate(tmpl string) (string, []Parameter) {
	var params []Parameter
	matches := pathVar.FindAllStringSubmatch(tmpl, -1)
	for _, m := range matches {
		schema := Schema{Type: "string"}
		if m[2] != "" {
			schema.Pattern = "^" + strings.TrimPrefix(m[2], ":") + "$"
			if m[2] == ":[0-9]+" {
				schema = Schema{Type: "integer"}
			}
		}
		params = append(params, Parameter{
			Name:     m[1],
			In:       "path",
			Required: true,
			Schema:   schema,
		})
	}
	sort.Slice(params, func(i, j int) bool { return params[i].Name < params[j].Name })

	return pathVar.ReplaceAllString(tmpl, "{$1}"), params
}

func defaultResponses(method string, hasParams, created bool) Responses {
	ok := "200"
	if created {
		ok = "201"
	}
	resp := Responses{
		ok:    {Description: "Success"},
		"405": {Description: "Method not allowed"},
	}
	if hasParams {
		resp["404"] = Response{Description: "Item not found"}
	}
	if method == http.MethodPost || method == http.MethodPut {
		resp["400"] = Response{Description: "Invalid request"}
	}
	return resp
}

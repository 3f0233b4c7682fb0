package handlers

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"
)

// OpenAPIHandler serves the API specification. The spec file is read once
// at startup; a missing or unparseable file disables the endpoints rather
// than failing the server.
type OpenAPIHandler struct {
	yamlSpec []byte
	jsonSpec []byte
}

// NewOpenAPIHandler loads the spec from the given path
func NewOpenAPIHandler(specPath string) (*OpenAPIHandler, error) {
	data, err := os.ReadFile(specPath)
	if err != nil {
		return nil, err
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}
	jsonSpec, err := json.Marshal(parsed)
	if err != nil {
		return nil, err
	}

	return &OpenAPIHandler{yamlSpec: data, jsonSpec: jsonSpec}, nil
}

// RegisterRoutes registers OpenAPI routes
func (h *OpenAPIHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/openapi.yaml", h.ServeYAML).Methods("GET")
	r.HandleFunc("/api/v1/openapi.json", h.ServeJSON).Methods("GET")
}

// ServeYAML serves the spec in YAML format
func (h *OpenAPIHandler) ServeYAML(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-yaml")
	_, _ = w.Write(h.yamlSpec)
}

// ServeJSON serves the spec in JSON format
func (h *OpenAPIHandler) ServeJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(h.jsonSpec)
}

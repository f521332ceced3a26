package http

import (
	"encoding/json"
	"net/http"

	"gopkg.in/yaml.v3"

	"github.com/promptgate/gateway/internal/domain/policy"
	"github.com/promptgate/gateway/internal/policy/store"
)

// PolicyHandler serves the admin policy document endpoints: inspecting the
// currently loaded document, dry-run validating a candidate, and applying a
// new one.
type PolicyHandler struct {
	store *store.Store
}

// NewPolicyHandler builds the admin policy handler backed by s.
func NewPolicyHandler(s *store.Store) *PolicyHandler {
	return &PolicyHandler{store: s}
}

// Get serves GET /admin/v1/policy: the currently loaded policy document as
// YAML, matching the on-disk document format.
func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := h.store.Snapshot()
	data, err := yaml.Marshal(snap.Raw)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "serialize policy: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/yaml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Validate serves POST /admin/v1/policy/validate: compiles the submitted
// document without persisting or installing it.
func (h *PolicyHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	file, err := decodePolicyBody(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "parse policy: "+err.Error())
		return
	}

	if err := store.Validate(file); err != nil {
		writeJSONError(w, http.StatusBadRequest, "compile policy: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]bool{"valid": true})
}

// Apply serves POST /admin/v1/policy/apply: compiles, persists, and
// hot-swaps the submitted document. The running gateway's snapshot is left
// untouched if compilation or persistence fails.
func (h *PolicyHandler) Apply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	file, err := decodePolicyBody(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "parse policy: "+err.Error())
		return
	}

	if err := h.store.Apply(file); err != nil {
		writeJSONError(w, http.StatusBadRequest, "compile policy: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("applied"))
}

// decodePolicyBody decodes a policy document from the request body. It
// accepts both JSON and YAML bodies based on Content-Type, since operators
// commonly keep policy documents as YAML files on disk.
func decodePolicyBody(r *http.Request) (*policy.PolicyFile, error) {
	var file policy.PolicyFile
	if ct := r.Header.Get("Content-Type"); ct == "application/yaml" || ct == "text/yaml" {
		if err := yaml.NewDecoder(r.Body).Decode(&file); err != nil {
			return nil, err
		}
		return &file, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&file); err != nil {
		return nil, err
	}
	return &file, nil
}

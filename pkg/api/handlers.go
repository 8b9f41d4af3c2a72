/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-logr/logr"

	"github.com/rangekit/provisioner/pkg/cdf"
	"github.com/rangekit/provisioner/pkg/execbridge"
	"github.com/rangekit/provisioner/pkg/lifecycle"
	"github.com/rangekit/provisioner/pkg/pack"
)

// Handler handles HTTP requests for the provisioning API
type Handler struct {
	mgr    *lifecycle.Manager
	reg    *pack.Registry
	bridge *execbridge.Bridge
	log    logr.Logger
}

// NewHandler creates a new API handler
func NewHandler(mgr *lifecycle.Manager, reg *pack.Registry, bridge *execbridge.Bridge, log logr.Logger) *Handler {
	return &Handler{mgr: mgr, reg: reg, bridge: bridge, log: log}
}

// CreateInstanceRequest represents the request body for creating an instance
type CreateInstanceRequest struct {
	ChallengeID string `json:"challenge_id"`
	OwnerID     string `json:"owner_id"`
	TTLSeconds  int64  `json:"ttl_seconds,omitempty"`
}

// RenewInstanceRequest represents the request body for renewing an instance
type RenewInstanceRequest struct {
	TTLSeconds int64 `json:"ttl_seconds,omitempty"`
}

// ValidateFlagRequest represents the request body for flag validation
type ValidateFlagRequest struct {
	Flag string `json:"flag"`
}

// ChallengeResponse represents one deployable challenge
type ChallengeResponse struct {
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	ChallengeType string   `json:"challenge_type"`
	Difficulty    string   `json:"difficulty,omitempty"`
	Tags          []string `json:"tags,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// CreateInstance handles POST /api/v1/instance
// @Summary Create a challenge instance
// @Accept json
// @Produce json
// @Param request body CreateInstanceRequest true "Instance request"
// @Success 202 {object} lifecycle.Snapshot
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /instance [post]
func (h *Handler) CreateInstance(w http.ResponseWriter, r *http.Request) {
	var req CreateInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.ChallengeID == "" || req.OwnerID == "" {
		h.writeError(w, http.StatusBadRequest, "Missing required fields", "challenge_id and owner_id are required")
		return
	}

	snap, err := h.mgr.Create(r.Context(), req.ChallengeID, req.OwnerID, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		var verrs cdf.ValidationErrors
		switch {
		case errors.As(err, &verrs):
			h.writeValidationErrors(w, verrs)
		case errors.Is(err, lifecycle.ErrUnknownChallenge):
			h.writeError(w, http.StatusNotFound, "Challenge not found", err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, "Failed to create instance", err.Error())
		}
		return
	}

	// Provisioning continues asynchronously; the caller polls the instance
	// state until it reaches Running or Failed.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	h.encode(w, snap)
}

// GetInstance handles GET /api/v1/instance/{instanceId}
// @Summary Get a challenge instance
// @Produce json
// @Param instanceId path string true "Instance ID"
// @Success 200 {object} lifecycle.Snapshot
// @Failure 404 {object} ErrorResponse
// @Router /instance/{instanceId} [get]
func (h *Handler) GetInstance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "instanceId")
	snap, ok := h.mgr.Get(id)
	if !ok {
		h.writeError(w, http.StatusNotFound, "Instance not found", id)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	h.encode(w, snap)
}

// ListInstances handles GET /api/v1/instance (optional owner_id filter)
// @Summary List challenge instances
// @Produce json
// @Param owner_id query string false "Filter by owner"
// @Success 200 {array} lifecycle.Snapshot
// @Router /instance [get]
func (h *Handler) ListInstances(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner_id")

	w.Header().Set("Content-Type", "application/json")
	// Streaming format: one {"result": {...}} per line.
	for _, snap := range h.mgr.List(owner) {
		h.encode(w, map[string]any{"result": snap})
	}
}

// DeleteInstance handles DELETE /api/v1/instance/{instanceId}. Teardown is
// asynchronous; callers observe progress through the instance state.
// @Summary Stop a challenge instance
// @Param instanceId path string true "Instance ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /instance/{instanceId} [delete]
func (h *Handler) DeleteInstance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "instanceId")
	if err := h.mgr.Stop(r.Context(), id); err != nil {
		h.writeError(w, http.StatusNotFound, "Instance not found", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RenewInstance handles POST /api/v1/instance/{instanceId}/renew
// @Summary Extend an instance's lifetime
// @Accept json
// @Produce json
// @Param instanceId path string true "Instance ID"
// @Success 200 {object} lifecycle.Snapshot
// @Failure 404 {object} ErrorResponse
// @Router /instance/{instanceId}/renew [post]
func (h *Handler) RenewInstance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "instanceId")

	var req RenewInstanceRequest
	if r.Body != nil {
		// An empty body renews by the default TTL.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	snap, err := h.mgr.Renew(id, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "Instance not found", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	h.encode(w, snap)
}

// ValidateFlag handles POST /api/v1/instance/{instanceId}/validate
// A correct flag schedules the instance for termination
// @Summary Validate a submitted flag
// @Accept json
// @Produce json
// @Param instanceId path string true "Instance ID"
// @Param request body ValidateFlagRequest true "Flag submission"
// @Success 200 {object} map[string]any
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /instance/{instanceId}/validate [post]
func (h *Handler) ValidateFlag(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "instanceId")

	var req ValidateFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.Flag == "" {
		h.writeError(w, http.StatusBadRequest, "Missing flag", "flag is required")
		return
	}

	valid, err := h.mgr.SubmitFlag(id, req.Flag)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "Instance not found", err.Error())
		return
	}
	if !valid {
		h.writeError(w, http.StatusForbidden, "Invalid flag", "The submitted flag is incorrect")
		return
	}

	h.log.Info("flag validated", "instance", id)
	w.Header().Set("Content-Type", "application/json")
	h.encode(w, map[string]any{
		"valid":   true,
		"message": "Flag correct! Instance will be cleaned up.",
	})
}

// ListChallenges handles GET /api/v1/challenge
// @Summary List deployable challenges
// @Produce json
// @Success 200 {array} ChallengeResponse
// @Router /challenge [get]
func (h *Handler) ListChallenges(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	for _, name := range h.reg.Challenges() {
		doc, _ := h.reg.Lookup(name)
		h.encode(w, map[string]any{"result": ChallengeResponse{
			Name:          doc.Metadata.Name,
			Version:       doc.Metadata.Version,
			ChallengeType: doc.Metadata.ChallengeType,
			Difficulty:    doc.Metadata.Difficulty,
			Tags:          doc.Metadata.Tags,
		}})
	}
}

// GetChallenge handles GET /api/v1/challenge/{challengeId}
// @Summary Get a challenge definition summary
// @Produce json
// @Param challengeId path string true "Challenge name"
// @Success 200 {object} ChallengeResponse
// @Failure 404 {object} ErrorResponse
// @Router /challenge/{challengeId} [get]
func (h *Handler) GetChallenge(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "challengeId")
	doc, ok := h.reg.Lookup(name)
	if !ok {
		h.writeError(w, http.StatusNotFound, "Challenge not found", name)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	h.encode(w, ChallengeResponse{
		Name:          doc.Metadata.Name,
		Version:       doc.Metadata.Version,
		ChallengeType: doc.Metadata.ChallengeType,
		Difficulty:    doc.Metadata.Difficulty,
		Tags:          doc.Metadata.Tags,
	})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	h.encode(w, map[string]string{"status": "ok"})
}

// writeValidationErrors reports schema violations with their field paths so
// callers can pinpoint every offending field in one round trip.
func (h *Handler) writeValidationErrors(w http.ResponseWriter, errs cdf.ValidationErrors) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	h.encode(w, map[string]any{
		"error":  "Validation failed",
		"issues": errs,
	})
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, error, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	h.encode(w, ErrorResponse{Error: error, Message: message})
}

func (h *Handler) encode(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error(err, "encode response")
	}
}

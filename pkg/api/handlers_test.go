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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangekit/provisioner/pkg/cdf"
	"github.com/rangekit/provisioner/pkg/execbridge"
	"github.com/rangekit/provisioner/pkg/lifecycle"
	"github.com/rangekit/provisioner/pkg/orchestrator"
	"github.com/rangekit/provisioner/pkg/pack"
	"github.com/rangekit/provisioner/pkg/typedef"
)

const testChallenge = `
metadata:
  name: sqli-101
  version: 1.0.0
  challenge_type: web
  difficulty: easy
components:
  - id: app
    type: container
    config:
      image: registry.local/sqli:1.0
      ports:
        - port: 80
          expose: true
`

type testStack struct {
	router *chi.Mux
	fake   *orchestrator.Fake
	mgr    *lifecycle.Manager
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	dir := t.TempDir()
	packDir := filepath.Join(dir, "web-basics")
	require.NoError(t, os.MkdirAll(packDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(packDir, "pack.yaml"), []byte(`
id: web-basics
name: Web Basics
version: 1.0.0
challenges: [sqli.yaml]
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(packDir, "sqli.yaml"), []byte(testChallenge), 0o644))

	validator := cdf.NewValidator(typedef.Names()...)
	registry, err := pack.NewLoader(validator, logr.Discard()).LoadAll(dir)
	require.NoError(t, err)

	fake := orchestrator.NewFake()
	mgr := lifecycle.New(fake, registry, lifecycle.Config{
		Namespace:         "test-ns",
		BaseDomain:        "ranges.example.org",
		ReadinessTimeout:  3 * time.Second,
		ReadinessPollBase: 5 * time.Millisecond,
		RetryBaseDelay:    5 * time.Millisecond,
	}, logr.Discard())
	bridge := execbridge.New(fake, mgr, logr.Discard())
	handler := NewHandler(mgr, registry, bridge, logr.Discard())

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/challenge", handler.ListChallenges)
		r.Get("/challenge/{challengeId}", handler.GetChallenge)
		r.Post("/instance", handler.CreateInstance)
		r.Get("/instance", handler.ListInstances)
		r.Get("/instance/{instanceId}", handler.GetInstance)
		r.Delete("/instance/{instanceId}", handler.DeleteInstance)
		r.Post("/instance/{instanceId}/renew", handler.RenewInstance)
		r.Post("/instance/{instanceId}/validate", handler.ValidateFlag)
	})
	r.Get("/health", handler.Health)

	return &testStack{router: r, fake: fake, mgr: mgr}
}

func (s *testStack) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testStack) createRunning(t *testing.T) lifecycle.Snapshot {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/instance", CreateInstanceRequest{
		ChallengeID: "sqli-101", OwnerID: "alice",
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var snap lifecycle.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))

	require.Eventually(t, func() bool {
		s.fake.MarkPodReady("test-ns", "chal-"+snap.ID)
		got, ok := s.mgr.Get(snap.ID)
		return ok && got.State == lifecycle.StateRunning
	}, 5*time.Second, 5*time.Millisecond)

	got, _ := s.mgr.Get(snap.ID)
	return got
}

func TestCreateInstance(t *testing.T) {
	s := newTestStack(t)
	snap := s.createRunning(t)

	assert.Equal(t, "sqli-101", snap.Definition)
	assert.Equal(t, "alice", snap.Owner)
	assert.Equal(t, snap.ID+".ranges.example.org", snap.Routing.PrimaryHost)
}

func TestCreateInstance_BadRequests(t *testing.T) {
	s := newTestStack(t)

	rec := s.do(t, http.MethodPost, "/api/v1/instance", CreateInstanceRequest{OwnerID: "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/instance", CreateInstanceRequest{ChallengeID: "ghost", OwnerID: "alice"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetInstance(t *testing.T) {
	s := newTestStack(t)
	snap := s.createRunning(t)

	rec := s.do(t, http.MethodGet, "/api/v1/instance/"+snap.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got lifecycle.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, snap.ID, got.ID)
	assert.Equal(t, lifecycle.StateRunning, got.State)

	rec = s.do(t, http.MethodGet, "/api/v1/instance/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListInstances_OwnerFilter(t *testing.T) {
	s := newTestStack(t)
	s.createRunning(t)

	rec := s.do(t, http.MethodGet, "/api/v1/instance?owner_id=alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ownerId":"alice"`)

	rec = s.do(t, http.MethodGet, "/api/v1/instance?owner_id=bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, bytes.TrimSpace(rec.Body.Bytes()))
}

func TestDeleteInstance(t *testing.T) {
	s := newTestStack(t)
	snap := s.createRunning(t)

	rec := s.do(t, http.MethodDelete, "/api/v1/instance/"+snap.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	require.Eventually(t, func() bool {
		got, _ := s.mgr.Get(snap.ID)
		return got.State == lifecycle.StateTerminated
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, s.fake.Len())

	rec = s.do(t, http.MethodDelete, "/api/v1/instance/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRenewInstance(t *testing.T) {
	s := newTestStack(t)
	snap := s.createRunning(t)

	rec := s.do(t, http.MethodPost, "/api/v1/instance/"+snap.ID+"/renew", RenewInstanceRequest{TTLSeconds: 3600})
	require.Equal(t, http.StatusOK, rec.Code)

	var got lifecycle.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.NotNil(t, got.ExpiresAt)
}

func TestValidateFlag_Incorrect(t *testing.T) {
	s := newTestStack(t)
	snap := s.createRunning(t)

	rec := s.do(t, http.MethodPost, "/api/v1/instance/"+snap.ID+"/validate", ValidateFlagRequest{Flag: "FLAG{nope}"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/instance/"+snap.ID+"/validate", ValidateFlagRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListChallenges(t *testing.T) {
	s := newTestStack(t)

	rec := s.do(t, http.MethodGet, "/api/v1/challenge", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"sqli-101"`)
	assert.Contains(t, rec.Body.String(), `"difficulty":"easy"`)
}

func TestGetChallenge(t *testing.T) {
	s := newTestStack(t)

	rec := s.do(t, http.MethodGet, "/api/v1/challenge/sqli-101", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got ChallengeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "web", got.ChallengeType)

	rec = s.do(t, http.MethodGet, "/api/v1/challenge/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	s := newTestStack(t)

	rec := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

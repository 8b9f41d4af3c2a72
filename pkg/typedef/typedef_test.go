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

package typedef

import "testing"

func TestBuiltinWebType(t *testing.T) {
	web := Builtin()["web"]
	if len(web.Sidecars) != 3 {
		t.Fatalf("Expected 3 sidecars, got %d", len(web.Sidecars))
	}
	if !web.NetworkPolicy {
		t.Error("Expected web type to enable the network policy")
	}

	reg := web.Registry()
	if reg.URL("bridge") != "http://localhost:8000" {
		t.Errorf("Unexpected bridge URL: %s", reg.URL("bridge"))
	}
	if reg.URL("absent") != "" {
		t.Error("Expected empty URL for unregistered name")
	}

	var execEligible int
	for _, s := range web.Sidecars {
		if s.ExecEligible {
			execEligible++
		}
	}
	if execEligible != 1 {
		t.Errorf("Expected exactly one exec-eligible sidecar, got %d", execEligible)
	}
}

func TestApplyOverrides_SidecarImage(t *testing.T) {
	out, err := ApplyOverrides(Builtin()["web"], map[string]any{
		"sidecarImages": map[string]any{"term": "custom/terminal:2"},
	})
	if err != nil {
		t.Fatalf("ApplyOverrides failed: %v", err)
	}
	for _, s := range out.Sidecars {
		if s.Name == "term" && s.Image != "custom/terminal:2" {
			t.Errorf("Expected term image override, got %s", s.Image)
		}
	}
}

func TestApplyOverrides_UnknownSidecar(t *testing.T) {
	_, err := ApplyOverrides(Builtin()["web"], map[string]any{
		"sidecarImages": map[string]any{"ghost": "x"},
	})
	if err == nil {
		t.Fatal("Expected error for unknown sidecar, got nil")
	}
}

func TestApplyOverrides_DisableSidecar(t *testing.T) {
	out, err := ApplyOverrides(Builtin()["web"], map[string]any{
		"disabledSidecars": []any{"term"},
	})
	if err != nil {
		t.Fatalf("ApplyOverrides failed: %v", err)
	}
	if len(out.Sidecars) != 2 {
		t.Fatalf("Expected 2 sidecars after disable, got %d", len(out.Sidecars))
	}
	for _, s := range out.Sidecars {
		if s.Name == "term" {
			t.Error("term sidecar should have been disabled")
		}
	}
}

func TestApplyOverrides_NetworkPolicyToggle(t *testing.T) {
	out, err := ApplyOverrides(Builtin()["web"], map[string]any{"networkPolicy": false})
	if err != nil {
		t.Fatalf("ApplyOverrides failed: %v", err)
	}
	if out.NetworkPolicy {
		t.Error("Expected network policy disabled")
	}
}

func TestApplyOverrides_DoesNotMutateBase(t *testing.T) {
	base := Builtin()["web"]
	_, err := ApplyOverrides(base, map[string]any{
		"sidecarImages": map[string]any{"term": "custom/terminal:2"},
	})
	if err != nil {
		t.Fatalf("ApplyOverrides failed: %v", err)
	}
	for _, s := range base.Sidecars {
		if s.Name == "term" && s.Image != "rangekit/web-terminal:1" {
			t.Error("ApplyOverrides mutated the base definition")
		}
	}
}

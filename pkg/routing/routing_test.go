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

package routing

import (
	"encoding/json"
	"errors"
	"testing"
)

func testExposed() []ExposedService {
	return []ExposedService{
		{Name: "http", Port: 80, HostPrefix: ""},
		{Name: "webos-shell", Port: 3000, HostPrefix: "app"},
		{Name: "term", Port: 7681, HostPrefix: "term", Streaming: true},
	}
}

func testOptions() Options {
	return Options{WildcardTLSSecret: "wildcard-tls"}
}

func TestHostname(t *testing.T) {
	if got := Hostname("", "i-42", "ranges.example.org"); got != "i-42.ranges.example.org" {
		t.Errorf("Unexpected primary hostname: %s", got)
	}
	if got := Hostname("term", "i-42", "ranges.example.org"); got != "term-i-42.ranges.example.org" {
		t.Errorf("Unexpected prefixed hostname: %s", got)
	}
}

func TestAllocate_Plan(t *testing.T) {
	plan, err := Allocate("i-42", "ranges.example.org", "challenge-instances", "chal-i-42-svc", testExposed(), testOptions())
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	if plan.PrimaryHost != "i-42.ranges.example.org" {
		t.Errorf("Unexpected primary host: %s", plan.PrimaryHost)
	}
	if len(plan.AuxHosts) != 2 {
		t.Fatalf("Expected 2 aux hosts, got %d", len(plan.AuxHosts))
	}

	ing := plan.Ingress
	if ing.Name != "chal-i-42-ingress" {
		t.Errorf("Unexpected ingress name: %s", ing.Name)
	}
	if len(ing.Spec.Rules) != 3 {
		t.Fatalf("Expected 3 host rules, got %d", len(ing.Spec.Rules))
	}
	for _, rule := range ing.Spec.Rules {
		backend := rule.HTTP.Paths[0].Backend.Service
		if backend.Name != "chal-i-42-svc" {
			t.Errorf("Rule %s points at wrong service: %s", rule.Host, backend.Name)
		}
	}

	// One TLS block, all hosts, shared wildcard secret.
	if len(ing.Spec.TLS) != 1 {
		t.Fatalf("Expected a single TLS block, got %d", len(ing.Spec.TLS))
	}
	if ing.Spec.TLS[0].SecretName != "wildcard-tls" {
		t.Errorf("Expected wildcard secret, got %s", ing.Spec.TLS[0].SecretName)
	}
	if len(ing.Spec.TLS[0].Hosts) != 3 {
		t.Errorf("Expected 3 TLS hosts, got %d", len(ing.Spec.TLS[0].Hosts))
	}
}

func TestAllocate_StreamingAnnotations(t *testing.T) {
	plan, err := Allocate("i-42", "ranges.example.org", "ns", "svc", testExposed(), testOptions())
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	ann := plan.Ingress.Annotations
	if ann["nginx.ingress.kubernetes.io/websocket-services"] != "svc" {
		t.Errorf("Expected websocket-services annotation, got %v", ann)
	}
	if ann["nginx.ingress.kubernetes.io/proxy-read-timeout"] != "3600" {
		t.Errorf("Expected default 3600 read timeout, got %v", ann)
	}
}

func TestAllocate_NoStreamingNoTimeouts(t *testing.T) {
	exposed := []ExposedService{{Name: "http", Port: 80}}
	plan, err := Allocate("i-42", "d", "ns", "svc", exposed, testOptions())
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if _, ok := plan.Ingress.Annotations["nginx.ingress.kubernetes.io/proxy-read-timeout"]; ok {
		t.Error("Timeout annotations must only appear for streaming services")
	}
}

func TestAllocate_NoPrimary(t *testing.T) {
	exposed := []ExposedService{{Name: "term", Port: 7681, HostPrefix: "term"}}
	_, err := Allocate("i-42", "d", "ns", "svc", exposed, testOptions())
	if err == nil {
		t.Fatal("Expected error when no primary service is exposed")
	}
}

func TestAllocate_PrefixCollision(t *testing.T) {
	exposed := []ExposedService{
		{Name: "a", Port: 80},
		{Name: "b", Port: 81},
	}
	_, err := Allocate("i-42", "d", "ns", "svc", exposed, testOptions())
	var ae *AllocationError
	if !errors.As(err, &ae) {
		t.Fatalf("Expected AllocationError, got %v", err)
	}
}

func TestAllocate_DistinctInstancesDistinctHosts(t *testing.T) {
	p1, err := Allocate("i-1", "d", "ns", "svc1", testExposed(), testOptions())
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	p2, err := Allocate("i-2", "d", "ns", "svc2", testExposed(), testOptions())
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	seen := map[string]bool{p1.PrimaryHost: true}
	for _, h := range p1.AuxHosts {
		seen[h] = true
	}
	if seen[p2.PrimaryHost] {
		t.Error("Distinct instances allocated the same primary host")
	}
	for _, h := range p2.AuxHosts {
		if seen[h] {
			t.Errorf("Distinct instances allocated the same host %s", h)
		}
	}
}

func TestAllocate_Deterministic(t *testing.T) {
	p1, err := Allocate("i-42", "d", "ns", "svc", testExposed(), testOptions())
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	p2, err := Allocate("i-42", "d", "ns", "svc", testExposed(), testOptions())
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	a, _ := json.Marshal(p1.Ingress)
	b, _ := json.Marshal(p2.Ingress)
	if string(a) != string(b) {
		t.Error("Allocation is not deterministic for identical input")
	}
}

func TestAllocate_IngressClass(t *testing.T) {
	opts := testOptions()
	opts.IngressClassName = "nginx"
	plan, err := Allocate("i-42", "d", "ns", "svc", testExposed(), opts)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if plan.Ingress.Annotations["kubernetes.io/ingress.class"] != "nginx" {
		t.Error("Expected ingress class annotation")
	}
}

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

package cdf

import (
	"encoding/json"
	"testing"
)

func TestComponentUnmarshal_Container(t *testing.T) {
	raw := []byte(`{
		"id": "app",
		"type": "container",
		"config": {
			"image": "nginx:alpine",
			"env": {"MODE": "ctf"},
			"ports": [{"port": 80, "expose": true, "streaming": false}]
		}
	}`)

	var c Component
	if err := json.Unmarshal(raw, &c); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if c.Kind != KindContainer {
		t.Errorf("Expected kind container, got %s", c.Kind)
	}
	if c.Container == nil {
		t.Fatal("Expected container config, got nil")
	}
	if c.Container.Image != "nginx:alpine" {
		t.Errorf("Expected image nginx:alpine, got %s", c.Container.Image)
	}
	if len(c.Container.Ports) != 1 || c.Container.Ports[0].Port != 80 || !c.Container.Ports[0].Expose {
		t.Errorf("Unexpected ports: %+v", c.Container.Ports)
	}
	if c.WebOSApp != nil || c.Question != nil || c.ConfigMap != nil || c.Secret != nil {
		t.Error("Expected exactly one config pointer to be set")
	}
}

func TestComponentUnmarshal_AllKinds(t *testing.T) {
	cases := []struct {
		raw  string
		kind ComponentKind
	}{
		{`{"id":"a","type":"webosApp","config":{"app_type":"terminal","target":"app"}}`, KindWebOSApp},
		{`{"id":"b","type":"question","config":{"type":"text","text":"What is the flag?"}}`, KindQuestion},
		{`{"id":"c","type":"configMap","config":{"data":{"k":"v"}}}`, KindConfigMap},
		{`{"id":"d","type":"secret","config":{"data":{"FLAG":"$(FLAG)"}}}`, KindSecret},
	}

	for _, tc := range cases {
		var c Component
		if err := json.Unmarshal([]byte(tc.raw), &c); err != nil {
			t.Fatalf("Unmarshal %s failed: %v", tc.kind, err)
		}
		if c.Kind != tc.kind {
			t.Errorf("Expected kind %s, got %s", tc.kind, c.Kind)
		}
	}
}

func TestComponentUnmarshal_UnknownKind(t *testing.T) {
	// Unknown kinds must decode so the validator can report them with a
	// field path instead of the document failing to parse.
	var c Component
	if err := json.Unmarshal([]byte(`{"id":"x","type":"teleporter","config":{"a":1}}`), &c); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if c.Kind != "teleporter" {
		t.Errorf("Expected kind teleporter, got %s", c.Kind)
	}
	if c.Container != nil || c.WebOSApp != nil || c.Question != nil || c.ConfigMap != nil || c.Secret != nil {
		t.Error("Expected no config pointer for unknown kind")
	}
}

func TestComponentMarshal_RoundTrip(t *testing.T) {
	in := Component{
		ID:   "app",
		Kind: KindContainer,
		Container: &ContainerConfig{
			Image: "nginx:alpine",
			Ports: []PortConfig{{Port: 80, Expose: true, HostPrefix: "www"}},
		},
	}

	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var out Component
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out.ID != in.ID || out.Kind != in.Kind || out.Container == nil || out.Container.Image != in.Container.Image {
		t.Errorf("Round trip mismatch: %+v", out)
	}
}

func TestParseDefinition_YAMLWithVariables(t *testing.T) {
	raw := []byte(`
metadata:
  name: demo
  version: 1.0.0
  challenge_type: web
variables:
  GREETING: hello
components:
  - id: app
    type: container
    config:
      image: nginx:alpine
      env:
        MOTD: $(GREETING), $(OWNER_ID)
templates:
  - id: banner
    path: files/banner.txt
`)
	doc, err := ParseDefinition(raw)
	if err != nil {
		t.Fatalf("ParseDefinition failed: %v", err)
	}
	if doc.Variables["GREETING"] != "hello" {
		t.Errorf("Expected variable GREETING=hello, got %v", doc.Variables["GREETING"])
	}
	if len(doc.Templates) != 1 || doc.Templates[0].Path != "files/banner.txt" {
		t.Errorf("Unexpected templates: %+v", doc.Templates)
	}
	if got := doc.Component("app"); got == nil || got.Kind != KindContainer {
		t.Error("Component lookup by id failed")
	}
	if doc.Component("missing") != nil {
		t.Error("Expected nil for unknown component id")
	}
}

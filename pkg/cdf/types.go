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

// Package cdf defines the Challenge Definition Format: the declarative
// document describing one challenge's components, variables and templates,
// plus the Pack manifest that bundles definitions for distribution.
package cdf

import (
	"encoding/json"
	"fmt"

	"sigs.k8s.io/yaml"
)

// ChallengeDefinition is the immutable template a challenge instance is
// provisioned from.
type ChallengeDefinition struct {
	Metadata   Metadata       `json:"metadata"`
	Components []Component    `json:"components"`
	TypeConfig map[string]any `json:"typeConfig,omitempty"`
	Variables  map[string]any `json:"variables,omitempty"`
	Templates  []Template     `json:"templates,omitempty"`
}

// Metadata identifies a challenge definition.
type Metadata struct {
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	ChallengeType string   `json:"challenge_type"`
	Difficulty    string   `json:"difficulty,omitempty"`
	Tags          []string `json:"tags,omitempty"`
}

// Template references an auxiliary file whose content is variable-resolved
// alongside the definition. Content is populated by the pack loader.
type Template struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Content string `json:"content,omitempty"`
}

// Component returns the component with the given id, or nil.
func (d *ChallengeDefinition) Component(id string) *Component {
	for i := range d.Components {
		if d.Components[i].ID == id {
			return &d.Components[i]
		}
	}
	return nil
}

// ParseDefinition parses a JSON or YAML challenge definition document.
// It performs structural decoding only; use Validator for semantic checks.
func ParseDefinition(raw []byte) (*ChallengeDefinition, error) {
	jsonRaw, err := yaml.YAMLToJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("cdf: decode definition: %w", err)
	}
	var doc ChallengeDefinition
	if err := json.Unmarshal(jsonRaw, &doc); err != nil {
		return nil, fmt.Errorf("cdf: decode definition: %w", err)
	}
	return &doc, nil
}

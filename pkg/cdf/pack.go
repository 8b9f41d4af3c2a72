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
	"fmt"

	"sigs.k8s.io/yaml"
)

// Pack is the unit of distribution: a manifest naming one or more challenge
// definition files plus shared resources and inter-pack dependencies.
type Pack struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Challenges      []string          `json:"challenges"`
	SharedResources []string          `json:"shared_resources,omitempty"`
	Variables       map[string]string `json:"variables,omitempty"`

	// Dependencies maps pack id to a semver constraint, e.g. ">=1.2.0 <2".
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// ParsePack parses a JSON or YAML pack manifest.
func ParsePack(raw []byte) (*Pack, error) {
	jsonRaw, err := yaml.YAMLToJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("cdf: decode pack manifest: %w", err)
	}
	var p Pack
	if err := json.Unmarshal(jsonRaw, &p); err != nil {
		return nil, fmt.Errorf("cdf: decode pack manifest: %w", err)
	}
	return &p, nil
}

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
	"fmt"
	"strings"
)

// SchemaKind selects which document schema to validate against.
type SchemaKind string

const (
	SchemaDefinition SchemaKind = "cdf"
	SchemaPack       SchemaKind = "pack"
)

// ValidationError is a single field-level validation failure. Path is a
// JSON-pointer-like location of the offending field so callers can render
// actionable feedback.
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors aggregates every failure found in one document.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validator performs schema validation of challenge definitions and pack
// manifests. It is a pure function of its input: no orchestrator calls,
// no side effects.
type Validator struct {
	knownTypes map[string]bool
}

// NewValidator returns a validator accepting the given challenge type names.
func NewValidator(knownTypes ...string) *Validator {
	m := make(map[string]bool, len(knownTypes))
	for _, t := range knownTypes {
		m[t] = true
	}
	return &Validator{knownTypes: m}
}

// Validate parses and validates a raw document of the given schema kind.
// On success it returns the decoded *ChallengeDefinition or *Pack.
func (v *Validator) Validate(raw []byte, kind SchemaKind) (any, ValidationErrors) {
	switch kind {
	case SchemaDefinition:
		doc, err := ParseDefinition(raw)
		if err != nil {
			return nil, ValidationErrors{{Path: "/", Message: err.Error()}}
		}
		if errs := v.ValidateDefinition(doc); len(errs) > 0 {
			return nil, errs
		}
		return doc, nil
	case SchemaPack:
		p, err := ParsePack(raw)
		if err != nil {
			return nil, ValidationErrors{{Path: "/", Message: err.Error()}}
		}
		if errs := v.ValidatePack(p); len(errs) > 0 {
			return nil, errs
		}
		return p, nil
	default:
		return nil, ValidationErrors{{Path: "/", Message: fmt.Sprintf("unknown schema kind %q", kind)}}
	}
}

// ValidateDefinition checks a parsed challenge definition and returns every
// failure found, each carrying the path of the offending field.
func (v *Validator) ValidateDefinition(doc *ChallengeDefinition) ValidationErrors {
	var errs ValidationErrors

	if doc.Metadata.Name == "" {
		errs = append(errs, ValidationError{Path: "/metadata/name", Message: "name is required"})
	}
	if doc.Metadata.Version == "" {
		errs = append(errs, ValidationError{Path: "/metadata/version", Message: "version is required"})
	}
	if doc.Metadata.ChallengeType == "" {
		errs = append(errs, ValidationError{Path: "/metadata/challenge_type", Message: "challenge_type is required"})
	} else if !v.knownTypes[doc.Metadata.ChallengeType] {
		errs = append(errs, ValidationError{
			Path:    "/metadata/challenge_type",
			Message: fmt.Sprintf("unknown challenge type %q", doc.Metadata.ChallengeType),
		})
	}

	if len(doc.Components) == 0 {
		errs = append(errs, ValidationError{Path: "/components", Message: "at least one component is required"})
	}

	seen := make(map[string]bool, len(doc.Components))
	for i, c := range doc.Components {
		base := fmt.Sprintf("/components/%d", i)

		if c.ID == "" {
			errs = append(errs, ValidationError{Path: base + "/id", Message: "id is required"})
		} else if seen[c.ID] {
			errs = append(errs, ValidationError{Path: base + "/id", Message: fmt.Sprintf("duplicate component id %q", c.ID)})
		} else {
			seen[c.ID] = true
		}

		errs = append(errs, validateComponentConfig(c, base)...)
	}

	for i, t := range doc.Templates {
		if t.Path == "" {
			errs = append(errs, ValidationError{Path: fmt.Sprintf("/templates/%d/path", i), Message: "path is required"})
		}
	}

	// Terminal apps must point at a container component declared in the
	// same document; the exec bridge enforces this capability at runtime.
	for i, c := range doc.Components {
		if c.Kind != KindWebOSApp || c.WebOSApp == nil || c.WebOSApp.Target == "" {
			continue
		}
		target := doc.Component(c.WebOSApp.Target)
		if target == nil || target.Kind != KindContainer {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("/components/%d/config/target", i),
				Message: fmt.Sprintf("target %q does not reference a container component", c.WebOSApp.Target),
			})
		}
	}

	return errs
}

func validateComponentConfig(c Component, base string) ValidationErrors {
	var errs ValidationErrors

	switch c.Kind {
	case KindContainer:
		if c.Container == nil {
			return ValidationErrors{{Path: base + "/config", Message: "config is required"}}
		}
		if c.Container.Image == "" {
			errs = append(errs, ValidationError{Path: base + "/config/image", Message: "image is required"})
		}
		for j, p := range c.Container.Ports {
			if p.Port < 1 || p.Port > 65535 {
				errs = append(errs, ValidationError{
					Path:    fmt.Sprintf("%s/config/ports/%d/port", base, j),
					Message: fmt.Sprintf("port must be between 1 and 65535, got %d", p.Port),
				})
			}
		}
	case KindWebOSApp:
		if c.WebOSApp == nil {
			return ValidationErrors{{Path: base + "/config", Message: "config is required"}}
		}
		if c.WebOSApp.AppType == "" {
			errs = append(errs, ValidationError{Path: base + "/config/app_type", Message: "app_type is required"})
		}
	case KindQuestion:
		if c.Question == nil {
			return ValidationErrors{{Path: base + "/config", Message: "config is required"}}
		}
		if c.Question.Type == "" {
			errs = append(errs, ValidationError{Path: base + "/config/type", Message: "type is required"})
		}
		if c.Question.Text == "" {
			errs = append(errs, ValidationError{Path: base + "/config/text", Message: "text is required"})
		}
	case KindConfigMap:
		if c.ConfigMap == nil || len(c.ConfigMap.Data) == 0 {
			errs = append(errs, ValidationError{Path: base + "/config/data", Message: "data must be non-empty"})
		}
	case KindSecret:
		if c.Secret == nil || len(c.Secret.Data) == 0 {
			errs = append(errs, ValidationError{Path: base + "/config/data", Message: "data must be non-empty"})
		}
	default:
		errs = append(errs, ValidationError{Path: base + "/type", Message: fmt.Sprintf("unknown component type %q", c.Kind)})
	}

	return errs
}

// ValidatePack checks a parsed pack manifest.
func (v *Validator) ValidatePack(p *Pack) ValidationErrors {
	var errs ValidationErrors

	if p.ID == "" {
		errs = append(errs, ValidationError{Path: "/id", Message: "id is required"})
	}
	if p.Name == "" {
		errs = append(errs, ValidationError{Path: "/name", Message: "name is required"})
	}
	if p.Version == "" {
		errs = append(errs, ValidationError{Path: "/version", Message: "version is required"})
	}

	if len(p.Challenges) == 0 {
		errs = append(errs, ValidationError{Path: "/challenges", Message: "at least one challenge is required"})
	}
	seen := make(map[string]bool, len(p.Challenges))
	for i, f := range p.Challenges {
		path := fmt.Sprintf("/challenges/%d", i)
		if f == "" {
			errs = append(errs, ValidationError{Path: path, Message: "filename must be non-empty"})
			continue
		}
		if seen[f] {
			errs = append(errs, ValidationError{Path: path, Message: fmt.Sprintf("duplicate challenge file %q", f)})
		}
		seen[f] = true
	}

	return errs
}

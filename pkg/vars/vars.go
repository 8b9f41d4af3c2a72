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

// Package vars resolves placeholder variables in challenge definitions.
//
// Placeholders use $(NAME) or ${NAME} syntax. Resolution is two-phase:
// strings are first parsed into a span list of literals and variable
// references, then substituted against a binding map. An unbound reference
// is a structural error, never a silent pass-through, so placeholder text
// can not leak into a deployed value.
package vars

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rangekit/provisioner/pkg/cdf"
)

// Reserved variable names injected by the engine. User-declared variables
// of the same name are always shadowed.
const (
	VarInstanceID = "INSTANCE_ID"
	VarBaseDomain = "BASE_DOMAIN"
	VarOwnerID    = "OWNER_ID"
)

// Context carries the instance-injected variables bound at provisioning
// time.
type Context struct {
	InstanceID string
	BaseDomain string
	OwnerID    string

	// Secrets holds per-instance generated values, e.g. a flag. Bound
	// under their own names.
	Secrets map[string]string

	// Shared holds pack-level variables. Lower precedence than the
	// reserved names and Secrets, higher than document variables.
	Shared map[string]string
}

// UnresolvedVariableError reports a placeholder with no binding.
type UnresolvedVariableError struct {
	Name string
}

func (e *UnresolvedVariableError) Error() string {
	return fmt.Sprintf("vars: unresolved variable %q", e.Name)
}

// span is one parsed segment of a template string: either a literal or a
// variable reference.
type span struct {
	literal string
	varName string
}

// parseSpans splits s into literal and variable spans. Both $(NAME) and
// ${NAME} forms are recognized. A '$' not followed by a recognized opener
// is a literal.
func parseSpans(s string) []span {
	var spans []span
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			spans = append(spans, span{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(s); {
		if s[i] != '$' || i+1 >= len(s) {
			lit.WriteByte(s[i])
			i++
			continue
		}

		var closer byte
		switch s[i+1] {
		case '(':
			closer = ')'
		case '{':
			closer = '}'
		default:
			lit.WriteByte(s[i])
			i++
			continue
		}

		end := strings.IndexByte(s[i+2:], closer)
		if end < 0 {
			lit.WriteString(s[i:])
			break
		}

		name := s[i+2 : i+2+end]
		flush()
		spans = append(spans, span{varName: name})
		i += 2 + end + 1
	}
	flush()

	return spans
}

// ResolveString substitutes every placeholder in s using bindings. It
// returns an *UnresolvedVariableError if a placeholder has no binding.
// Resolving a string with no placeholders returns it unchanged, so
// resolution is idempotent.
func ResolveString(s string, bindings map[string]string) (string, error) {
	if !strings.ContainsRune(s, '$') {
		return s, nil
	}

	var out strings.Builder
	for _, sp := range parseSpans(s) {
		if sp.varName == "" {
			out.WriteString(sp.literal)
			continue
		}
		val, ok := bindings[sp.varName]
		if !ok {
			return "", &UnresolvedVariableError{Name: sp.varName}
		}
		out.WriteString(val)
	}
	return out.String(), nil
}

// Bindings merges document-declared variables with the instance context.
// Precedence, lowest to highest: document variables, pack shared variables,
// generated secrets, reserved instance variables.
func Bindings(doc *cdf.ChallengeDefinition, ctx Context) map[string]string {
	b := make(map[string]string, len(doc.Variables)+len(ctx.Shared)+len(ctx.Secrets)+3)

	for k, v := range doc.Variables {
		b[k] = stringify(v)
	}
	for k, v := range ctx.Shared {
		b[k] = v
	}
	for k, v := range ctx.Secrets {
		b[k] = v
	}
	b[VarInstanceID] = ctx.InstanceID
	b[VarBaseDomain] = ctx.BaseDomain
	b[VarOwnerID] = ctx.OwnerID

	return b
}

// Resolve substitutes placeholders in every string value of the document,
// including template contents, and returns the resolved copy. The input
// document is not mutated.
func Resolve(doc *cdf.ChallengeDefinition, ctx Context) (*cdf.ChallengeDefinition, error) {
	bindings := Bindings(doc, ctx)

	// Round-trip through the generic JSON tree so every string value is
	// visited uniformly regardless of where it sits in the typed model.
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("vars: encode document: %w", err)
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("vars: decode document: %w", err)
	}

	resolved, err := resolveTree(tree, bindings)
	if err != nil {
		return nil, err
	}

	raw, err = json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("vars: encode resolved document: %w", err)
	}
	var out cdf.ChallengeDefinition
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("vars: decode resolved document: %w", err)
	}
	return &out, nil
}

func resolveTree(node any, bindings map[string]string) (any, error) {
	switch v := node.(type) {
	case string:
		return ResolveString(v, bindings)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, child := range v {
			r, err := resolveTree(child, bindings)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			r, err := resolveTree(child, bindings)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return node, nil
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(raw)
	}
}

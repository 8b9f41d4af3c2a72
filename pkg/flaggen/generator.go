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

// Package flaggen generates per-instance flag values. Flags are bound as a
// reserved resolver variable and reach the pod only through environment
// variables or mounted secrets, never baked into an image.
package flaggen

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"text/template"
)

// Context contains the variables available in flag templates.
type Context struct {
	InstanceID   string
	OwnerID      string
	Challenge    string
	RandomString string
}

// DefaultTemplate is used when a definition declares no flag template.
// Literal braces sit outside template actions.
const DefaultTemplate = `FLAG{{"{"}}{{.Challenge}}_{{.OwnerID}}_{{.RandomString}}{{"}"}}`

// Generate renders a flag from a Go text/template with fields .InstanceID,
// .OwnerID, .Challenge and .RandomString (a 32-char cryptographically
// secure hex string, fresh per call).
func Generate(tmpl, instanceID, ownerID, challenge string) (string, error) {
	if tmpl == "" {
		tmpl = DefaultTemplate
	}

	randomBytes := make([]byte, 16)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("flaggen: read random bytes: %w", err)
	}

	ctx := Context{
		InstanceID:   instanceID,
		OwnerID:      ownerID,
		Challenge:    challenge,
		RandomString: hex.EncodeToString(randomBytes),
	}

	t, err := template.New("flag").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("flaggen: parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("flaggen: execute template: %w", err)
	}
	return buf.String(), nil
}

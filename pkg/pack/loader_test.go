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

package pack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangekit/provisioner/pkg/cdf"
)

const challengeYAML = `
metadata:
  name: sqli-101
  version: 1.0.0
  challenge_type: web
components:
  - id: app
    type: container
    config:
      image: registry.local/sqli:1.0
      ports:
        - port: 80
          expose: true
`

func writePack(t *testing.T, root, dir, manifest string, files map[string]string) {
	t.Helper()
	base := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(base, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "pack.yaml"), []byte(manifest), 0o644))
	for name, content := range files {
		p := filepath.Join(base, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func newLoader() *Loader {
	return NewLoader(cdf.NewValidator("web", "headless"), logr.Discard())
}

func TestLoadAll(t *testing.T) {
	root := t.TempDir()
	writePack(t, root, "web-basics", `
id: web-basics
name: Web Basics
version: 1.2.0
challenges:
  - sqli.yaml
variables:
  REGISTRY: registry.local
`, map[string]string{"sqli.yaml": challengeYAML})

	reg, err := newLoader().LoadAll(root)
	require.NoError(t, err)

	assert.Equal(t, []string{"sqli-101"}, reg.Challenges())
	doc, ok := reg.Lookup("sqli-101")
	require.True(t, ok)
	assert.Equal(t, "web", doc.Metadata.ChallengeType)
	assert.Equal(t, "registry.local", reg.SharedVariables()["REGISTRY"])

	// Directories without a manifest are skipped.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "not-a-pack"), 0o755))
	reg, err = newLoader().LoadAll(root)
	require.NoError(t, err)
	assert.Len(t, reg.Packs(), 1)
}

func TestLoad_TemplateContent(t *testing.T) {
	root := t.TempDir()
	withTemplate := challengeYAML + `
templates:
  - id: motd
    path: files/motd.txt
`
	writePack(t, root, "p1", `
id: p1
name: P1
version: 1.0.0
challenges: [chal.yaml]
`, map[string]string{
		"chal.yaml":      withTemplate,
		"files/motd.txt": "welcome ${OWNER_ID}",
	})

	reg, err := newLoader().Load(filepath.Join(root, "p1"))
	require.NoError(t, err)

	doc, ok := reg.Lookup("sqli-101")
	require.True(t, ok)
	require.Len(t, doc.Templates, 1)
	assert.Equal(t, "welcome ${OWNER_ID}", doc.Templates[0].Content)
}

func TestLoad_InvalidChallengeRejected(t *testing.T) {
	root := t.TempDir()
	writePack(t, root, "p1", `
id: p1
name: P1
version: 1.0.0
challenges: [bad.yaml]
`, map[string]string{"bad.yaml": `
metadata:
  name: bad
  version: 1.0.0
  challenge_type: warp-drive
components:
  - id: app
    type: container
    config:
      image: x
`})

	_, err := newLoader().Load(filepath.Join(root, "p1"))
	require.ErrorContains(t, err, "challenge_type")
}

func TestLoad_BadVersion(t *testing.T) {
	root := t.TempDir()
	writePack(t, root, "p1", `
id: p1
name: P1
version: not-semver
challenges: [chal.yaml]
`, map[string]string{"chal.yaml": challengeYAML})

	_, err := newLoader().Load(filepath.Join(root, "p1"))
	require.ErrorContains(t, err, "not semver")
}

func TestLoadAll_DependencyConstraints(t *testing.T) {
	root := t.TempDir()
	writePack(t, root, "base", `
id: base
name: Base
version: 1.2.0
challenges: [chal.yaml]
`, map[string]string{"chal.yaml": challengeYAML})

	other := `
metadata:
  name: xss-201
  version: 1.0.0
  challenge_type: web
components:
  - id: app
    type: container
    config:
      image: registry.local/xss:1.0
      ports:
        - port: 80
          expose: true
`
	writePack(t, root, "advanced", `
id: advanced
name: Advanced
version: 2.0.0
challenges: [chal.yaml]
dependencies:
  base: ">=1.0.0 <2"
`, map[string]string{"chal.yaml": other})

	reg, err := newLoader().LoadAll(root)
	require.NoError(t, err)
	assert.Len(t, reg.Packs(), 2)
}

func TestLoadAll_UnsatisfiedDependency(t *testing.T) {
	root := t.TempDir()
	writePack(t, root, "base", `
id: base
name: Base
version: 0.9.0
challenges: [chal.yaml]
`, map[string]string{"chal.yaml": challengeYAML})

	other := `
metadata:
  name: xss-201
  version: 1.0.0
  challenge_type: web
components:
  - id: app
    type: container
    config:
      image: registry.local/xss:1.0
`
	writePack(t, root, "advanced", `
id: advanced
name: Advanced
version: 2.0.0
challenges: [chal.yaml]
dependencies:
  base: ">=1.0.0"
`, map[string]string{"chal.yaml": other})

	_, err := newLoader().LoadAll(root)
	require.ErrorContains(t, err, "requires base")
}

func TestLoadAll_MissingDependency(t *testing.T) {
	root := t.TempDir()
	writePack(t, root, "advanced", `
id: advanced
name: Advanced
version: 2.0.0
challenges: [chal.yaml]
dependencies:
  ghost: ">=1.0.0"
`, map[string]string{"chal.yaml": challengeYAML})

	_, err := newLoader().LoadAll(root)
	require.ErrorContains(t, err, "missing pack")
}

func TestLoadAll_DuplicateChallengeName(t *testing.T) {
	root := t.TempDir()
	writePack(t, root, "p1", `
id: p1
name: P1
version: 1.0.0
challenges: [chal.yaml]
`, map[string]string{"chal.yaml": challengeYAML})
	writePack(t, root, "p2", `
id: p2
name: P2
version: 1.0.0
challenges: [chal.yaml]
`, map[string]string{"chal.yaml": challengeYAML})

	_, err := newLoader().LoadAll(root)
	require.ErrorContains(t, err, "duplicate challenge name")
}

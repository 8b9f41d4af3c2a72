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

// Package pack loads challenge packs from disk into an in-memory registry.
// A pack is a directory with a manifest naming challenge definition files,
// shared resources and semver-constrained dependencies on other packs.
package pack

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/go-logr/logr"

	"github.com/rangekit/provisioner/pkg/cdf"
)

var manifestNames = []string{"pack.json", "pack.yaml", "pack.yml"}

// Registry holds every loaded pack and challenge. It implements the
// lifecycle manager's DefinitionSource.
type Registry struct {
	packs      map[string]*cdf.Pack
	challenges map[string]*cdf.ChallengeDefinition
	shared     map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		packs:      map[string]*cdf.Pack{},
		challenges: map[string]*cdf.ChallengeDefinition{},
		shared:     map[string]string{},
	}
}

// Lookup returns the challenge definition registered under name.
func (r *Registry) Lookup(name string) (*cdf.ChallengeDefinition, bool) {
	doc, ok := r.challenges[name]
	return doc, ok
}

// SharedVariables returns the merged pack-level variables.
func (r *Registry) SharedVariables() map[string]string {
	return r.shared
}

// Challenges returns the registered challenge names, sorted.
func (r *Registry) Challenges() []string {
	names := make([]string, 0, len(r.challenges))
	for n := range r.challenges {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Packs returns the loaded pack manifests keyed by id.
func (r *Registry) Packs() map[string]*cdf.Pack {
	return r.packs
}

// Loader reads packs from disk.
type Loader struct {
	validator *cdf.Validator
	log       logr.Logger
}

// NewLoader builds a loader that validates with the given validator.
func NewLoader(validator *cdf.Validator, log logr.Logger) *Loader {
	return &Loader{validator: validator, log: log}
}

// LoadAll loads every pack directory under root into a fresh registry and
// verifies inter-pack dependency constraints. Challenge names must be
// unique across packs.
func (l *Loader) LoadAll(root string) (*Registry, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("pack: read root %s: %w", root, err)
	}

	reg := NewRegistry()
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		if findManifest(dir) == "" {
			continue
		}
		if err := l.loadInto(reg, dir); err != nil {
			return nil, err
		}
	}

	if err := checkDependencies(reg.packs); err != nil {
		return nil, err
	}

	l.log.Info("packs loaded", "packs", len(reg.packs), "challenges", len(reg.challenges))
	return reg, nil
}

// Load loads a single pack directory into a fresh registry.
func (l *Loader) Load(dir string) (*Registry, error) {
	reg := NewRegistry()
	if err := l.loadInto(reg, dir); err != nil {
		return nil, err
	}
	if err := checkDependencies(reg.packs); err != nil {
		return nil, err
	}
	return reg, nil
}

func findManifest(dir string) string {
	for _, name := range manifestNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (l *Loader) loadInto(reg *Registry, dir string) error {
	manifestPath := findManifest(dir)
	if manifestPath == "" {
		return fmt.Errorf("pack: no manifest in %s", dir)
	}

	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("pack: read manifest: %w", err)
	}
	p, err := cdf.ParsePack(raw)
	if err != nil {
		return err
	}
	if errs := l.validator.ValidatePack(p); len(errs) > 0 {
		return fmt.Errorf("pack: manifest %s: %w", manifestPath, errs)
	}
	if _, err := semver.NewVersion(p.Version); err != nil {
		return fmt.Errorf("pack: %s: version %q is not semver: %w", p.ID, p.Version, err)
	}
	if _, exists := reg.packs[p.ID]; exists {
		return fmt.Errorf("pack: duplicate pack id %q", p.ID)
	}

	for _, rel := range p.Challenges {
		doc, err := l.loadChallenge(dir, rel)
		if err != nil {
			return fmt.Errorf("pack: %s: %w", p.ID, err)
		}
		name := doc.Metadata.Name
		if _, exists := reg.challenges[name]; exists {
			return fmt.Errorf("pack: %s: duplicate challenge name %q", p.ID, name)
		}
		reg.challenges[name] = doc
	}

	for k, v := range p.Variables {
		reg.shared[k] = v
	}

	reg.packs[p.ID] = p
	return nil
}

func (l *Loader) loadChallenge(dir, rel string) (*cdf.ChallengeDefinition, error) {
	raw, err := os.ReadFile(filepath.Join(dir, rel))
	if err != nil {
		return nil, fmt.Errorf("read challenge %s: %w", rel, err)
	}
	doc, err := cdf.ParseDefinition(raw)
	if err != nil {
		return nil, fmt.Errorf("challenge %s: %w", rel, err)
	}
	if errs := l.validator.ValidateDefinition(doc); len(errs) > 0 {
		return nil, fmt.Errorf("challenge %s: %w", rel, errs)
	}

	// Templates referencing files are resolved now so the compiler only
	// ever sees inline content.
	for i := range doc.Templates {
		t := &doc.Templates[i]
		if t.Content != "" || t.Path == "" {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, t.Path))
		if err != nil {
			return nil, fmt.Errorf("challenge %s: template %s: %w", rel, t.ID, err)
		}
		t.Content = string(content)
	}
	return doc, nil
}

// checkDependencies verifies that every declared pack dependency is
// present and that its version satisfies the declared constraint.
func checkDependencies(packs map[string]*cdf.Pack) error {
	for id, p := range packs {
		for depID, constraint := range p.Dependencies {
			dep, ok := packs[depID]
			if !ok {
				return fmt.Errorf("pack: %s depends on missing pack %q", id, depID)
			}
			c, err := semver.NewConstraint(constraint)
			if err != nil {
				return fmt.Errorf("pack: %s: constraint %q on %s: %w", id, constraint, depID, err)
			}
			v, err := semver.NewVersion(dep.Version)
			if err != nil {
				return fmt.Errorf("pack: %s: version %q is not semver: %w", depID, dep.Version, err)
			}
			if !c.Check(v) {
				return fmt.Errorf("pack: %s requires %s %s, found %s", id, depID, constraint, dep.Version)
			}
		}
	}
	return nil
}

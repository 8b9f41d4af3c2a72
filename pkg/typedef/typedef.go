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

// Package typedef holds the challenge type definitions: named base pod
// templates that challenge definitions of that type extend or override.
package typedef

import (
	"fmt"
	"sort"
)

// Sidecar is one default container contributed by a challenge type. The
// sidecar mesh communicates over localhost with fixed names and ports, so
// every sidecar registers its port under its name in the port registry.
type Sidecar struct {
	Name  string
	Image string
	Port  int32

	// Expose publishes the sidecar port through the instance Service and
	// an ingress host rule with HostPrefix.
	Expose     bool
	HostPrefix string

	// Streaming marks long-lived endpoints (terminal, exec bridge) whose
	// ingress rule needs websocket/extended-timeout annotations.
	Streaming bool

	// ExecEligible allows the exec bridge to open sessions into this
	// sidecar without an explicit webosApp declaration.
	ExecEligible bool

	Env map[string]string
}

// Definition is a named base pod template.
type Definition struct {
	Name     string
	Sidecars []Sidecar

	// NetworkPolicy isolates instances of this type to DNS plus
	// intra-instance traffic.
	NetworkPolicy bool
}

// NamedPort locates one logical endpoint of the sidecar mesh: a fixed
// container name and port, resolved at compile time instead of scattering
// host strings across resource fragments.
type NamedPort struct {
	Container string
	Port      int32
}

// PortRegistry maps logical service names to their localhost endpoints.
type PortRegistry map[string]NamedPort

// URL returns the in-pod URL for a registered name, or "" if absent.
func (r PortRegistry) URL(name string) string {
	np, ok := r[name]
	if !ok {
		return ""
	}
	return fmt.Sprintf("http://localhost:%d", np.Port)
}

// Names returns the registered logical names, sorted for determinism.
func (r PortRegistry) Names() []string {
	names := make([]string, 0, len(r))
	for n := range r {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Registry returns the port registry for the definition's sidecars.
func (d Definition) Registry() PortRegistry {
	r := make(PortRegistry, len(d.Sidecars))
	for _, s := range d.Sidecars {
		r[s.Name] = NamedPort{Container: s.Name, Port: s.Port}
	}
	return r
}

// Builtin challenge types. The "web" type carries the full sidecar mesh:
// a desktop-shell frontend, a protocol bridge and a terminal sidecar
// co-located with the user-defined containers. The "headless" type adds
// nothing and exposes only what the definition declares.
func Builtin() map[string]Definition {
	return map[string]Definition{
		"web": {
			Name: "web",
			Sidecars: []Sidecar{
				{
					Name:       "webos-shell",
					Image:      "rangekit/webos-shell:1",
					Port:       3000,
					Expose:     true,
					HostPrefix: "app",
				},
				{
					Name:  "bridge",
					Image: "rangekit/http-bridge:1",
					Port:  8000,
				},
				{
					Name:         "term",
					Image:        "rangekit/web-terminal:1",
					Port:         7681,
					Expose:       true,
					HostPrefix:   "term",
					Streaming:    true,
					ExecEligible: true,
				},
			},
			NetworkPolicy: true,
		},
		"headless": {
			Name:          "headless",
			NetworkPolicy: true,
		},
	}
}

// Names returns the builtin type names, sorted.
func Names() []string {
	m := Builtin()
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ApplyOverrides merges a definition's typeConfig into the base template.
// Supported keys:
//
//	sidecarImages:    map of sidecar name to replacement image
//	disabledSidecars: list of sidecar names to drop
//	networkPolicy:    bool toggle
func ApplyOverrides(def Definition, typeConfig map[string]any) (Definition, error) {
	if len(typeConfig) == 0 {
		return def, nil
	}

	out := def
	out.Sidecars = append([]Sidecar(nil), def.Sidecars...)

	if raw, ok := typeConfig["sidecarImages"]; ok {
		images, ok := raw.(map[string]any)
		if !ok {
			return Definition{}, fmt.Errorf("typedef: sidecarImages must be an object")
		}
		for name, img := range images {
			imgStr, ok := img.(string)
			if !ok {
				return Definition{}, fmt.Errorf("typedef: sidecarImages[%q] must be a string", name)
			}
			found := false
			for i := range out.Sidecars {
				if out.Sidecars[i].Name == name {
					out.Sidecars[i].Image = imgStr
					found = true
				}
			}
			if !found {
				return Definition{}, fmt.Errorf("typedef: sidecarImages names unknown sidecar %q", name)
			}
		}
	}

	if raw, ok := typeConfig["disabledSidecars"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return Definition{}, fmt.Errorf("typedef: disabledSidecars must be a list")
		}
		disabled := make(map[string]bool, len(list))
		for _, item := range list {
			name, ok := item.(string)
			if !ok {
				return Definition{}, fmt.Errorf("typedef: disabledSidecars entries must be strings")
			}
			disabled[name] = true
		}
		kept := out.Sidecars[:0]
		for _, s := range out.Sidecars {
			if !disabled[s.Name] {
				kept = append(kept, s)
			}
		}
		out.Sidecars = kept
	}

	if raw, ok := typeConfig["networkPolicy"]; ok {
		b, ok := raw.(bool)
		if !ok {
			return Definition{}, fmt.Errorf("typedef: networkPolicy must be a bool")
		}
		out.NetworkPolicy = b
	}

	return out, nil
}

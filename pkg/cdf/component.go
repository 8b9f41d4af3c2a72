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
)

// ComponentKind discriminates the component tagged union.
type ComponentKind string

const (
	KindContainer ComponentKind = "container"
	KindWebOSApp  ComponentKind = "webosApp"
	KindQuestion  ComponentKind = "question"
	KindConfigMap ComponentKind = "configMap"
	KindSecret    ComponentKind = "secret"
)

// KnownKinds lists every component kind the compiler understands.
var KnownKinds = []ComponentKind{
	KindContainer, KindWebOSApp, KindQuestion, KindConfigMap, KindSecret,
}

// Component is a tagged union over the five component kinds. Exactly one of
// the config pointers is non-nil, matching Kind.
type Component struct {
	ID   string
	Kind ComponentKind

	Container *ContainerConfig
	WebOSApp  *WebOSAppConfig
	Question  *QuestionConfig
	ConfigMap *ConfigMapConfig
	Secret    *SecretConfig
}

// ContainerConfig describes one container co-located in the instance pod.
type ContainerConfig struct {
	Image   string            `json:"image"`
	Command []string          `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Ports   []PortConfig      `json:"ports,omitempty"`
}

// PortConfig describes one container port and how it is exposed.
type PortConfig struct {
	Name string `json:"name,omitempty"`
	Port int32  `json:"port"`

	// Expose publishes the port through the instance Service and an
	// ingress host rule.
	Expose bool `json:"expose,omitempty"`

	// HostPrefix is prepended to the instance hostname. Empty means the
	// port is the primary endpoint of the instance.
	HostPrefix string `json:"hostPrefix,omitempty"`

	// Streaming marks long-lived/websocket endpoints that need extended
	// proxy timeouts on their ingress rule.
	Streaming bool `json:"streaming,omitempty"`
}

// WebOSAppConfig describes a desktop-shell application surfaced inside the
// provisioned environment. Terminal apps name a container component as
// their exec target.
type WebOSAppConfig struct {
	AppType string            `json:"app_type"`
	Title   string            `json:"title,omitempty"`
	Target  string            `json:"target,omitempty"`
	URL     string            `json:"url,omitempty"`
	Extra   map[string]string `json:"extra,omitempty"`
}

// QuestionConfig describes a learner question attached to the challenge.
type QuestionConfig struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	Answer string `json:"answer,omitempty"`
	Points int    `json:"points,omitempty"`
}

// ConfigMapConfig declares a ConfigMap object mounted or referenced by a
// container component.
type ConfigMapConfig struct {
	Data      map[string]string `json:"data"`
	Target    string            `json:"target,omitempty"`
	MountPath string            `json:"mountPath,omitempty"`
}

// SecretConfig declares a Secret object mounted or referenced by a
// container component.
type SecretConfig struct {
	Data      map[string]string `json:"data"`
	Target    string            `json:"target,omitempty"`
	MountPath string            `json:"mountPath,omitempty"`
}

// componentEnvelope is the wire shape: {"id": ..., "type": ..., "config": {...}}.
type componentEnvelope struct {
	ID     string          `json:"id"`
	Type   ComponentKind   `json:"type"`
	Config json.RawMessage `json:"config"`
}

// UnmarshalJSON decodes the envelope and dispatches the config payload on
// the declared kind. Unknown kinds decode successfully with all config
// pointers nil so the validator can report them with a field path instead
// of a bare decode error.
func (c *Component) UnmarshalJSON(data []byte) error {
	var env componentEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	*c = Component{ID: env.ID, Kind: env.Type}
	if len(env.Config) == 0 {
		return nil
	}

	var target any
	switch env.Type {
	case KindContainer:
		c.Container = &ContainerConfig{}
		target = c.Container
	case KindWebOSApp:
		c.WebOSApp = &WebOSAppConfig{}
		target = c.WebOSApp
	case KindQuestion:
		c.Question = &QuestionConfig{}
		target = c.Question
	case KindConfigMap:
		c.ConfigMap = &ConfigMapConfig{}
		target = c.ConfigMap
	case KindSecret:
		c.Secret = &SecretConfig{}
		target = c.Secret
	default:
		return nil
	}

	if err := json.Unmarshal(env.Config, target); err != nil {
		return fmt.Errorf("component %q: decode %s config: %w", env.ID, env.Type, err)
	}
	return nil
}

// MarshalJSON re-emits the envelope form.
func (c Component) MarshalJSON() ([]byte, error) {
	var config any
	switch c.Kind {
	case KindContainer:
		config = c.Container
	case KindWebOSApp:
		config = c.WebOSApp
	case KindQuestion:
		config = c.Question
	case KindConfigMap:
		config = c.ConfigMap
	case KindSecret:
		config = c.Secret
	}

	raw, err := json.Marshal(config)
	if err != nil {
		return nil, err
	}
	return json.Marshal(componentEnvelope{ID: c.ID, Type: c.Kind, Config: raw})
}

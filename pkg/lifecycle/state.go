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

package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// State is one step of the instance lifecycle.
type State string

const (
	StateRequested    State = "Requested"
	StateValidating   State = "Validating"
	StateCompiling    State = "Compiling"
	StateProvisioning State = "Provisioning"
	StateReady        State = "Ready"
	StateRunning      State = "Running"
	StateTerminating  State = "Terminating"
	StateTerminated   State = "Terminated"
	StateFailed       State = "Failed"
	StateRollingBack  State = "RollingBack"
)

// Terminal reports whether no further transitions can occur.
func (s State) Terminal() bool {
	return s == StateTerminated || s == StateFailed
}

// ResourceRefs records the orchestrator objects created for an instance.
// The lifecycle manager owns these exclusively; it never deletes a resource
// it did not create, and it reconciles the refs against the orchestrator
// before teardown.
type ResourceRefs struct {
	PodName           string   `json:"podName,omitempty"`
	ServiceName       string   `json:"serviceName,omitempty"`
	IngressName       string   `json:"ingressName,omitempty"`
	NetworkPolicyName string   `json:"networkPolicyName,omitempty"`
	SecretNames       []string `json:"secretNames,omitempty"`
	ConfigMapNames    []string `json:"configMapNames,omitempty"`
}

// RoutingInfo is the allocated hostname set of an instance.
type RoutingInfo struct {
	PrimaryHost string   `json:"primaryHost,omitempty"`
	AuxHosts    []string `json:"auxHosts,omitempty"`
}

// ReadinessTimeoutError reports that the pod did not become ready inside
// the configured window.
type ReadinessTimeoutError struct {
	InstanceID string
	Window     time.Duration
}

func (e *ReadinessTimeoutError) Error() string {
	return fmt.Sprintf("lifecycle: instance %s not ready within %s", e.InstanceID, e.Window)
}

// Instance is the mutable runtime entity created per learner session.
type Instance struct {
	ID         string
	Definition string
	Owner      string
	CreatedAt  time.Time

	mu        sync.RWMutex
	state     State
	failure   string
	refs      ResourceRefs
	routing   RoutingInfo
	flag      string
	expiresAt time.Time

	// execTargets names containers the exec bridge may enter.
	execTargets map[string]bool

	// cancelProvision aborts in-flight provisioning; resources already
	// created are rolled back by the provisioning task itself.
	cancelProvision context.CancelFunc

	// runCtx is live while the instance is Running; exec sessions derive
	// from it so they terminate when the instance leaves Running.
	runCtx    context.Context
	runCancel context.CancelFunc
}

// Snapshot is a consistent read-only copy of an instance's state.
type Snapshot struct {
	ID         string       `json:"instanceId"`
	Definition string       `json:"challengeId"`
	Owner      string       `json:"ownerId"`
	State      State        `json:"state"`
	Failure    string       `json:"failure,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
	ExpiresAt  *time.Time   `json:"expiresAt,omitempty"`
	Refs       ResourceRefs `json:"resourceRefs"`
	Routing    RoutingInfo  `json:"routing"`
}

// Snapshot returns a copy of the instance state safe to hand to callers.
func (i *Instance) Snapshot() Snapshot {
	i.mu.RLock()
	defer i.mu.RUnlock()

	s := Snapshot{
		ID:         i.ID,
		Definition: i.Definition,
		Owner:      i.Owner,
		State:      i.state,
		Failure:    i.failure,
		CreatedAt:  i.CreatedAt,
		Refs:       i.refs,
		Routing:    i.routing,
	}
	if !i.expiresAt.IsZero() {
		t := i.expiresAt
		s.ExpiresAt = &t
	}
	return s
}

// State returns the current lifecycle state.
func (i *Instance) State() State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

// setState refuses transitions out of terminal states: once an instance is
// Terminated or Failed, a straggling provisioning or cleanup task must not
// resurrect it.
func (i *Instance) setState(s State) {
	i.mu.Lock()
	if i.state.Terminal() {
		i.mu.Unlock()
		return
	}
	i.state = s
	if s != StateRunning && i.runCancel != nil {
		i.runCancel()
		i.runCancel = nil
	}
	i.mu.Unlock()
}

func (i *Instance) setFailure(msg string) {
	i.mu.Lock()
	i.failure = msg
	i.mu.Unlock()
}

func (i *Instance) expired(now time.Time) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

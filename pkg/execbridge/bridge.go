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

// Package execbridge mediates interactive sessions into instance
// containers. It never grants access on its own authority: the lifecycle
// manager decides which containers of which instances are reachable, and
// sessions die with the instance.
package execbridge

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/rangekit/provisioner/pkg/orchestrator"
)

// Granter authorizes exec access. The lifecycle manager implements it.
type Granter interface {
	// ExecGrant returns the pod coordinates for an exec-eligible container
	// of a Running instance, plus a context that is cancelled when the
	// instance leaves Running.
	ExecGrant(instanceID, container string) (namespace, pod string, ctx context.Context, err error)
}

// SessionOptions shapes one exec session.
type SessionOptions struct {
	// Command to run; defaults to an interactive shell.
	Command []string
	TTY     bool
}

// Bridge opens exec sessions through the orchestrator.
type Bridge struct {
	orch orchestrator.Client
	mgr  Granter
	log  logr.Logger
}

// New builds a bridge over the given orchestrator handle and granter.
func New(orch orchestrator.Client, mgr Granter, log logr.Logger) *Bridge {
	return &Bridge{orch: orch, mgr: mgr, log: log}
}

// Open runs an exec session and blocks until it ends. The session is bound
// to both the caller's context and the instance's run context, so it
// terminates when either the client disconnects or the instance stops.
func (b *Bridge) Open(ctx context.Context, instanceID, container string, opts SessionOptions, streams orchestrator.ExecStreams) error {
	ns, pod, runCtx, err := b.mgr.ExecGrant(instanceID, container)
	if err != nil {
		return err
	}

	command := opts.Command
	if len(command) == 0 {
		command = []string{"/bin/sh"}
	}
	streams.TTY = opts.TTY

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(runCtx, cancel)
	defer stop()

	b.log.Info("exec session opened", "instance", instanceID, "container", container)
	err = b.orch.Exec(sctx, ns, pod, container, command, streams)
	b.log.Info("exec session closed", "instance", instanceID, "container", container)
	return err
}

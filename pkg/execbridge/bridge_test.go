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

package execbridge

import (
	"context"
	"errors"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangekit/provisioner/pkg/orchestrator"
)

type stubGranter struct {
	namespace string
	pod       string
	runCtx    context.Context
	err       error
}

func (s stubGranter) ExecGrant(string, string) (string, string, context.Context, error) {
	if s.err != nil {
		return "", "", nil, s.err
	}
	return s.namespace, s.pod, s.runCtx, nil
}

func TestOpen_RunsCommandThroughOrchestrator(t *testing.T) {
	fake := orchestrator.NewFake()
	granter := stubGranter{namespace: "ns", pod: "chal-i-42", runCtx: context.Background()}
	b := New(fake, granter, logr.Discard())

	err := b.Open(context.Background(), "i-42", "app", SessionOptions{TTY: true}, orchestrator.ExecStreams{})
	require.NoError(t, err)

	calls := fake.ExecCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "ns", calls[0].Namespace)
	assert.Equal(t, "chal-i-42", calls[0].Pod)
	assert.Equal(t, "app", calls[0].Container)
	// Default command is an interactive shell.
	assert.Equal(t, []string{"/bin/sh"}, calls[0].Command)
}

func TestOpen_CustomCommand(t *testing.T) {
	fake := orchestrator.NewFake()
	granter := stubGranter{namespace: "ns", pod: "p", runCtx: context.Background()}
	b := New(fake, granter, logr.Discard())

	err := b.Open(context.Background(), "i", "app", SessionOptions{Command: []string{"cat", "/flag"}}, orchestrator.ExecStreams{})
	require.NoError(t, err)

	calls := fake.ExecCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"cat", "/flag"}, calls[0].Command)
}

func TestOpen_GrantDenied(t *testing.T) {
	fake := orchestrator.NewFake()
	denied := errors.New("lifecycle: container is not exec-eligible")
	b := New(fake, stubGranter{err: denied}, logr.Discard())

	err := b.Open(context.Background(), "i", "bridge", SessionOptions{}, orchestrator.ExecStreams{})
	require.ErrorIs(t, err, denied)
	assert.Empty(t, fake.ExecCalls(), "a denied grant must never reach the orchestrator")
}

func TestOpen_PropagatesExecError(t *testing.T) {
	fake := orchestrator.NewFake()
	fake.ExecErr = errors.New("connection reset")
	b := New(fake, stubGranter{namespace: "ns", pod: "p", runCtx: context.Background()}, logr.Discard())

	err := b.Open(context.Background(), "i", "app", SessionOptions{}, orchestrator.ExecStreams{})
	require.ErrorContains(t, err, "connection reset")
}

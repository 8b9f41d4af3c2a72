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

// Package orchestrator is the engine's narrow view of the container
// orchestrator: create/get/delete on the resource kinds the compiler emits
// plus the pod exec subresource. The handle is injected everywhere it is
// needed so lifecycle operations are testable against the Fake without
// global setup.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// ExecStreams carries the bidirectional streams of one exec session.
type ExecStreams struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	TTY    bool
}

// Client is the orchestrator handle.
type Client interface {
	Create(ctx context.Context, obj client.Object) error
	Get(ctx context.Context, key client.ObjectKey, obj client.Object) error
	Delete(ctx context.Context, obj client.Object) error

	// Exec opens a bidirectional stream into a named container of a pod.
	Exec(ctx context.Context, namespace, pod, container string, command []string, streams ExecStreams) error
}

// TransientError wraps an orchestrator failure worth retrying with backoff:
// conflicts, throttling, transient network trouble.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("orchestrator: transient: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// FatalError wraps a permanent orchestrator failure: quota exceeded,
// admission rejection, invalid object. Never retried.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("orchestrator: fatal: %v", e.Err) }
func (e *FatalError) Unwrap() error { return e.Err }

// Classify wraps an API error as transient or fatal. NotFound passes
// through unwrapped because callers handle it structurally.
func Classify(err error) error {
	if err == nil || apierrors.IsNotFound(err) {
		return err
	}
	if apierrors.IsConflict(err) ||
		apierrors.IsTooManyRequests(err) ||
		apierrors.IsServerTimeout(err) ||
		apierrors.IsTimeout(err) ||
		apierrors.IsServiceUnavailable(err) ||
		apierrors.IsInternalError(err) {
		return &TransientError{Err: err}
	}
	return &FatalError{Err: err}
}

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

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

package orchestrator

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Kube is the production Client backed by the Kubernetes API. All
// operations are scoped by the caller to a single namespace under a
// least-privilege role.
type Kube struct {
	client    client.Client
	clientset kubernetes.Interface
	restCfg   *rest.Config
}

// NewKube builds a Kube handle from a rest config.
func NewKube(cfg *rest.Config, sch *runtime.Scheme) (*Kube, error) {
	c, err := client.New(cfg, client.Options{Scheme: sch})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: create client: %w", err)
	}
	cs, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: create clientset: %w", err)
	}
	return &Kube{client: c, clientset: cs, restCfg: cfg}, nil
}

func (k *Kube) Create(ctx context.Context, obj client.Object) error {
	return Classify(k.client.Create(ctx, obj))
}

func (k *Kube) Get(ctx context.Context, key client.ObjectKey, obj client.Object) error {
	return k.client.Get(ctx, key, obj)
}

func (k *Kube) Delete(ctx context.Context, obj client.Object) error {
	return Classify(k.client.Delete(ctx, obj))
}

// Exec opens an interactive stream into a container via the pod exec
// subresource over SPDY.
func (k *Kube) Exec(ctx context.Context, namespace, pod, container string, command []string, streams ExecStreams) error {
	req := k.clientset.CoreV1().RESTClient().
		Post().
		Resource("pods").
		Namespace(namespace).
		Name(pod).
		SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Container: container,
			Command:   command,
			Stdin:     streams.Stdin != nil,
			Stdout:    streams.Stdout != nil,
			Stderr:    streams.Stderr != nil,
			TTY:       streams.TTY,
		}, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(k.restCfg, "POST", req.URL())
	if err != nil {
		return fmt.Errorf("orchestrator: create executor: %w", err)
	}

	return executor.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdin:  streams.Stdin,
		Stdout: streams.Stdout,
		Stderr: streams.Stderr,
		Tty:    streams.TTY,
	})
}

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
	"reflect"
	"sync"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Fake is an in-memory Client for tests. It records creation order,
// supports failure injection per object kind and lets tests flip pod
// readiness.
type Fake struct {
	mu      sync.Mutex
	objects map[string]client.Object

	// CreationOrder lists "Kind/name" in the order objects were created.
	creationOrder []string

	// FailCreate, when set, is consulted before every Create; a non-nil
	// return aborts the call with that error.
	FailCreate func(obj client.Object) error

	// ExecErr, when set, is returned by Exec.
	ExecErr error

	execCalls []FakeExecCall
}

// FakeExecCall records one Exec invocation.
type FakeExecCall struct {
	Namespace string
	Pod       string
	Container string
	Command   []string
}

// NewFake returns an empty fake orchestrator.
func NewFake() *Fake {
	return &Fake{objects: map[string]client.Object{}}
}

func objKind(obj client.Object) string {
	t := reflect.TypeOf(obj)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

func objKey(obj client.Object) string {
	return fmt.Sprintf("%s/%s/%s", objKind(obj), obj.GetNamespace(), obj.GetName())
}

func (f *Fake) Create(_ context.Context, obj client.Object) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailCreate != nil {
		if err := f.FailCreate(obj); err != nil {
			return err
		}
	}

	key := objKey(obj)
	if _, exists := f.objects[key]; exists {
		return &TransientError{Err: apierrors.NewConflict(
			schema.GroupResource{Resource: objKind(obj)}, obj.GetName(), fmt.Errorf("already exists"))}
	}
	f.objects[key] = obj.DeepCopyObject().(client.Object)
	f.creationOrder = append(f.creationOrder, objKind(obj)+"/"+obj.GetName())
	return nil
}

func (f *Fake) Get(_ context.Context, key client.ObjectKey, obj client.Object) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	storeKey := fmt.Sprintf("%s/%s/%s", objKind(obj), key.Namespace, key.Name)
	stored, ok := f.objects[storeKey]
	if !ok {
		return apierrors.NewNotFound(schema.GroupResource{Resource: objKind(obj)}, key.Name)
	}
	reflect.ValueOf(obj).Elem().Set(reflect.ValueOf(stored.DeepCopyObject()).Elem())
	return nil
}

func (f *Fake) Delete(_ context.Context, obj client.Object) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := objKey(obj)
	if _, ok := f.objects[key]; !ok {
		return apierrors.NewNotFound(schema.GroupResource{Resource: objKind(obj)}, obj.GetName())
	}
	delete(f.objects, key)
	return nil
}

func (f *Fake) Exec(_ context.Context, namespace, pod, container string, command []string, _ ExecStreams) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.execCalls = append(f.execCalls, FakeExecCall{
		Namespace: namespace, Pod: pod, Container: container, Command: command,
	})
	return f.ExecErr
}

// MarkPodReady flips the stored pod to Running with every container ready,
// mimicking the kubelet.
func (f *Fake) MarkPodReady(namespace, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := fmt.Sprintf("Pod/%s/%s", namespace, name)
	stored, ok := f.objects[key]
	if !ok {
		return
	}
	pod := stored.(*corev1.Pod)
	pod.Status.Phase = corev1.PodRunning
	pod.Status.ContainerStatuses = nil
	for _, c := range pod.Spec.Containers {
		pod.Status.ContainerStatuses = append(pod.Status.ContainerStatuses, corev1.ContainerStatus{
			Name:  c.Name,
			Ready: true,
		})
	}
}

// CreationOrder returns "Kind/name" entries in creation order.
func (f *Fake) CreationOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.creationOrder...)
}

// ExecCalls returns the recorded exec invocations.
func (f *Fake) ExecCalls() []FakeExecCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeExecCall(nil), f.execCalls...)
}

// ObjectsWithLabel returns every stored object carrying the given label.
func (f *Fake) ObjectsWithLabel(key, value string) []client.Object {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []client.Object
	for _, obj := range f.objects {
		if obj.GetLabels()[key] == value {
			out = append(out, obj)
		}
	}
	return out
}

// Len returns the number of stored objects.
func (f *Fake) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

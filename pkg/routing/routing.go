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

// Package routing derives per-instance hostnames and builds the single
// Ingress object exposing an instance's services. Hostname uniqueness is
// guaranteed by construction: the instance id is globally unique, so two
// distinct instances can never share a host.
package routing

import (
	"fmt"
	"sort"
	"strings"

	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"
)

// ExposedService is one logical endpoint published through the instance
// ingress: the primary UI (empty HostPrefix), the terminal/exec bridge,
// the raw challenge endpoint.
type ExposedService struct {
	// Name is the logical service name; it doubles as the Service port
	// name the ingress rule targets.
	Name string

	// Port is the Service port the host rule routes to.
	Port int32

	// HostPrefix is prepended to the instance hostname; empty marks the
	// primary endpoint.
	HostPrefix string

	// Streaming marks long-lived/websocket endpoints needing extended
	// proxy timeouts.
	Streaming bool
}

// AllocationError reports a hostname collision inside one instance. Given
// unique instance ids this is structurally impossible across instances, so
// an observed allocation error is an invariant violation, not an expected
// failure mode.
type AllocationError struct {
	Host     string
	First    string
	Second   string
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("routing: host %q allocated by both %q and %q", e.Host, e.First, e.Second)
}

// Options configures the allocator.
type Options struct {
	// WildcardTLSSecret names the shared wildcard certificate secret all
	// host rules reference. Per-instance certificates are never issued.
	WildcardTLSSecret string

	IngressClassName string

	// StreamingTimeoutSeconds is applied to rules backing streaming
	// services. Zero means the default of 3600.
	StreamingTimeoutSeconds int

	Labels map[string]string
}

// Plan is the routing outcome for one instance.
type Plan struct {
	PrimaryHost string
	AuxHosts    []string
	Ingress     *networkingv1.Ingress
}

// Hostname derives the host for one exposed service:
// <prefix>-<instanceID>.<baseDomain>, or <instanceID>.<baseDomain> for the
// primary (empty prefix). Deterministic and reproducible for the same
// inputs.
func Hostname(prefix, instanceID, baseDomain string) string {
	if prefix == "" {
		return fmt.Sprintf("%s.%s", instanceID, baseDomain)
	}
	return fmt.Sprintf("%s-%s.%s", prefix, instanceID, baseDomain)
}

// IngressName returns the ingress object name for an instance.
func IngressName(instanceID string) string {
	return "chal-" + instanceID + "-ingress"
}

// Allocate produces the routing plan for an instance: one host per exposed
// service on a single Ingress object, every rule referencing the shared
// wildcard TLS secret. Streaming services add websocket and extended proxy
// timeout annotations to the instance ingress; the ingress is per instance,
// so no other instance's traffic is affected.
func Allocate(instanceID, baseDomain, namespace, serviceName string, exposed []ExposedService, opts Options) (*Plan, error) {
	if len(exposed) == 0 {
		return nil, fmt.Errorf("routing: instance %s exposes no services", instanceID)
	}

	plan := &Plan{}
	hosts := make(map[string]string, len(exposed))

	var rules []networkingv1.IngressRule
	var tlsHosts []string
	var streamingServices []string

	for _, svc := range exposed {
		host := Hostname(svc.HostPrefix, instanceID, baseDomain)
		if prev, taken := hosts[host]; taken {
			return nil, &AllocationError{Host: host, First: prev, Second: svc.Name}
		}
		hosts[host] = svc.Name

		if svc.HostPrefix == "" {
			plan.PrimaryHost = host
		} else {
			plan.AuxHosts = append(plan.AuxHosts, host)
		}
		tlsHosts = append(tlsHosts, host)

		if svc.Streaming {
			streamingServices = append(streamingServices, serviceName)
		}

		rules = append(rules, networkingv1.IngressRule{
			Host: host,
			IngressRuleValue: networkingv1.IngressRuleValue{
				HTTP: &networkingv1.HTTPIngressRuleValue{
					Paths: []networkingv1.HTTPIngressPath{
						{
							Path:     "/",
							PathType: ptr.To(networkingv1.PathTypePrefix),
							Backend: networkingv1.IngressBackend{
								Service: &networkingv1.IngressServiceBackend{
									Name: serviceName,
									Port: networkingv1.ServiceBackendPort{Number: svc.Port},
								},
							},
						},
					},
				},
			},
		})
	}

	if plan.PrimaryHost == "" {
		return nil, fmt.Errorf("routing: instance %s has no primary service (empty host prefix)", instanceID)
	}
	sort.Strings(plan.AuxHosts)

	annotations := map[string]string{
		"nginx.ingress.kubernetes.io/ssl-redirect": "true",
	}
	if opts.IngressClassName != "" {
		annotations["kubernetes.io/ingress.class"] = opts.IngressClassName
	}
	if len(streamingServices) > 0 {
		timeout := opts.StreamingTimeoutSeconds
		if timeout <= 0 {
			timeout = 3600
		}
		// nginx applies these annotations to every rule of this ingress
		// object; the scope is the per-instance ingress, not a single
		// rule. websocket-services narrows the upgrade handling to the
		// backing service.
		annotations["nginx.ingress.kubernetes.io/proxy-read-timeout"] = fmt.Sprintf("%d", timeout)
		annotations["nginx.ingress.kubernetes.io/proxy-send-timeout"] = fmt.Sprintf("%d", timeout)
		annotations["nginx.ingress.kubernetes.io/websocket-services"] = strings.Join(dedupe(streamingServices), ",")
	}

	ingress := &networkingv1.Ingress{
		ObjectMeta: metav1.ObjectMeta{
			Name:        IngressName(instanceID),
			Namespace:   namespace,
			Annotations: annotations,
			Labels:      opts.Labels,
		},
		Spec: networkingv1.IngressSpec{
			Rules: rules,
			TLS: []networkingv1.IngressTLS{
				{
					Hosts:      tlsHosts,
					SecretName: opts.WildcardTLSSecret,
				},
			},
		},
	}

	plan.Ingress = ingress
	return plan, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

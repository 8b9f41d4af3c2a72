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

// Package compiler maps a resolved challenge definition onto orchestrator
// resource objects: one multi-container pod, one service, plus secrets,
// config maps and a network policy. Compilation is pure and deterministic:
// the same resolved document and type defaults always produce a
// byte-identical resource set.
package compiler

import (
	"encoding/json"
	"fmt"
	"sort"

	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/utils/ptr"

	"github.com/rangekit/provisioner/pkg/cdf"
	"github.com/rangekit/provisioner/pkg/routing"
	"github.com/rangekit/provisioner/pkg/typedef"
)

// Identity binds a compilation to one instance.
type Identity struct {
	InstanceID string
	Namespace  string
	OwnerID    string
	Definition string
	BaseDomain string

	// Flag is the generated per-instance flag. When set it always ships as
	// its own secret and as a FLAG env var on every document-declared
	// container, independent of whether the document references $(FLAG).
	Flag string
}

// ResourceSet is the compiled output applied to the orchestrator.
type ResourceSet struct {
	Pod           *corev1.Pod
	Service       *corev1.Service
	ConfigMaps    []*corev1.ConfigMap
	Secrets       []*corev1.Secret
	NetworkPolicy *networkingv1.NetworkPolicy

	// Exposed lists the logical services the routing allocator publishes.
	Exposed []routing.ExposedService

	// ExecTargets names the containers the exec bridge may open sessions
	// into, derived from terminal webosApp declarations and exec-eligible
	// sidecars.
	ExecTargets map[string]bool
}

const questionsMountPath = "/etc/rangekit/questions"

// Compile merges the challenge type's base pod template with the document's
// components and typeConfig overrides into a resource set.
func Compile(doc *cdf.ChallengeDefinition, baseType typedef.Definition, id Identity) (*ResourceSet, error) {
	typeDef, err := typedef.ApplyOverrides(baseType, doc.TypeConfig)
	if err != nil {
		return nil, err
	}

	labels := instanceLabels(doc, id)
	rs := &ResourceSet{ExecTargets: map[string]bool{}}

	// Named-port registry: sidecars plus every container component's first
	// port, so sibling containers discover each other by logical name
	// instead of hardcoded endpoints.
	registry := typeDef.Registry()
	seenIDs := make(map[string]bool)
	for _, c := range doc.Components {
		if seenIDs[c.ID] {
			return nil, &IDConflictError{ID: c.ID}
		}
		seenIDs[c.ID] = true

		if c.Kind == cdf.KindContainer && len(c.Container.Ports) > 0 {
			registry[c.ID] = typedef.NamedPort{Container: c.ID, Port: c.Container.Ports[0].Port}
		}
	}

	containers, exposed, volumes, err := buildContainers(doc, typeDef, registry, id)
	if err != nil {
		return nil, err
	}
	rs.Exposed = exposed

	if err := checkPortConflicts(doc, typeDef); err != nil {
		return nil, err
	}

	// Auxiliary objects. The flag secret comes first so it exists before
	// any container that consumes it.
	if id.Flag != "" {
		rs.Secrets = append(rs.Secrets, &corev1.Secret{
			ObjectMeta: objectMeta(FlagSecretName(id.InstanceID), id.Namespace, labels),
			Type:       corev1.SecretTypeOpaque,
			StringData: map[string]string{"FLAG": id.Flag},
		})
	}
	questionsCM := buildQuestionsConfigMap(doc, id, labels)
	if questionsCM != nil {
		rs.ConfigMaps = append(rs.ConfigMaps, questionsCM)
	}
	for _, c := range doc.Components {
		switch c.Kind {
		case cdf.KindConfigMap:
			rs.ConfigMaps = append(rs.ConfigMaps, &corev1.ConfigMap{
				ObjectMeta: objectMeta(ConfigMapName(id.InstanceID, c.ID), id.Namespace, labels),
				Data:       c.ConfigMap.Data,
			})
		case cdf.KindSecret:
			rs.Secrets = append(rs.Secrets, &corev1.Secret{
				ObjectMeta: objectMeta(SecretName(id.InstanceID, c.ID), id.Namespace, labels),
				Type:       corev1.SecretTypeOpaque,
				StringData: c.Secret.Data,
			})
		}
	}

	// Wire configMap/secret components into their target containers.
	if err := wireDataComponents(doc, containers, &volumes, id); err != nil {
		return nil, err
	}

	// Exec eligibility: terminal apps name their container target; exec
	// eligible sidecars are granted by the type definition.
	for _, c := range doc.Components {
		if c.Kind == cdf.KindWebOSApp && c.WebOSApp.AppType == "terminal" && c.WebOSApp.Target != "" {
			if doc.Component(c.WebOSApp.Target) == nil {
				return nil, &ReferenceError{ComponentID: c.ID, Target: c.WebOSApp.Target}
			}
			rs.ExecTargets[c.WebOSApp.Target] = true
		}
	}
	for _, s := range typeDef.Sidecars {
		if s.ExecEligible {
			rs.ExecTargets[s.Name] = true
		}
	}

	rs.Pod = &corev1.Pod{
		ObjectMeta: objectMeta(PodName(id.InstanceID), id.Namespace, labels),
		Spec: corev1.PodSpec{
			Containers:    containers,
			Volumes:       volumes,
			RestartPolicy: corev1.RestartPolicyAlways,
		},
	}

	rs.Service = buildService(id, labels, exposed)

	if typeDef.NetworkPolicy {
		rs.NetworkPolicy = buildNetworkPolicy(id, labels)
	}

	return rs, nil
}

func instanceLabels(doc *cdf.ChallengeDefinition, id Identity) map[string]string {
	return map[string]string{
		"app":                          "challenge",
		"rangekit.io/challenge":        SanitizeForLabel(id.Definition),
		"rangekit.io/instance":         id.InstanceID,
		"rangekit.io/owner":            SanitizeForLabel(id.OwnerID),
		"app.kubernetes.io/name":       "challenge-instance",
		"app.kubernetes.io/instance":   id.InstanceID,
		"app.kubernetes.io/managed-by": "provisioner",
	}
}

func objectMeta(name, namespace string, labels map[string]string) metav1.ObjectMeta {
	return metav1.ObjectMeta{Name: name, Namespace: namespace, Labels: labels}
}

// buildContainers assembles the pod's container list: document-declared
// containers in document order, then the type's sidecars.
func buildContainers(doc *cdf.ChallengeDefinition, typeDef typedef.Definition, registry typedef.PortRegistry, id Identity) ([]corev1.Container, []routing.ExposedService, []corev1.Volume, error) {
	var containers []corev1.Container
	var exposed []routing.ExposedService
	var volumes []corev1.Volume

	common := commonEnv(registry, id)

	for _, c := range doc.Components {
		if c.Kind != cdf.KindContainer {
			continue
		}

		env := append([]corev1.EnvVar(nil), common...)
		if id.Flag != "" {
			env = append(env, corev1.EnvVar{
				Name: "FLAG",
				ValueFrom: &corev1.EnvVarSource{
					SecretKeyRef: &corev1.SecretKeySelector{
						LocalObjectReference: corev1.LocalObjectReference{Name: FlagSecretName(id.InstanceID)},
						Key:                  "FLAG",
					},
				},
			})
		}
		env = append(env, sortedEnv(c.Container.Env)...)

		var ports []corev1.ContainerPort
		for _, p := range c.Container.Ports {
			portName := p.Name
			if portName == "" {
				portName = fmt.Sprintf("%s-%d", c.ID, p.Port)
			}
			ports = append(ports, corev1.ContainerPort{
				Name:          portName,
				ContainerPort: p.Port,
				Protocol:      corev1.ProtocolTCP,
			})
			if p.Expose {
				exposed = append(exposed, routing.ExposedService{
					Name:       portName,
					Port:       p.Port,
					HostPrefix: p.HostPrefix,
					Streaming:  p.Streaming,
				})
				env = append(env, corev1.EnvVar{
					Name:  envName(portName) + "_HOST",
					Value: routing.Hostname(p.HostPrefix, id.InstanceID, id.BaseDomain),
				})
			}
		}

		containers = append(containers, corev1.Container{
			Name:    c.ID,
			Image:   c.Container.Image,
			Command: c.Container.Command,
			Args:    c.Container.Args,
			Env:     env,
			Ports:   ports,
		})
	}

	shellEnv := webOSAppEnv(doc, registry)
	questionsCM := QuestionsConfigMapName(id.InstanceID)
	hasQuestions := false
	for _, c := range doc.Components {
		if c.Kind == cdf.KindQuestion {
			hasQuestions = true
			break
		}
	}

	for _, s := range typeDef.Sidecars {
		env := append([]corev1.EnvVar(nil), common...)
		env = append(env, sortedEnv(s.Env)...)

		var mounts []corev1.VolumeMount
		if s.Name == "webos-shell" {
			env = append(env, shellEnv...)
			if hasQuestions {
				env = append(env, corev1.EnvVar{Name: "QUESTIONS_PATH", Value: questionsMountPath})
				mounts = append(mounts, corev1.VolumeMount{
					Name:      "questions",
					MountPath: questionsMountPath,
					ReadOnly:  true,
				})
				volumes = append(volumes, corev1.Volume{
					Name: "questions",
					VolumeSource: corev1.VolumeSource{
						ConfigMap: &corev1.ConfigMapVolumeSource{
							LocalObjectReference: corev1.LocalObjectReference{Name: questionsCM},
						},
					},
				})
			}
		}

		if s.Expose {
			env = append(env, corev1.EnvVar{
				Name:  envName(s.Name) + "_HOST",
				Value: routing.Hostname(s.HostPrefix, id.InstanceID, id.BaseDomain),
			})
			exposed = append(exposed, routing.ExposedService{
				Name:       s.Name,
				Port:       s.Port,
				HostPrefix: s.HostPrefix,
				Streaming:  s.Streaming,
			})
		}

		containers = append(containers, corev1.Container{
			Name:  s.Name,
			Image: s.Image,
			Env:   env,
			Ports: []corev1.ContainerPort{
				{Name: s.Name, ContainerPort: s.Port, Protocol: corev1.ProtocolTCP},
			},
			VolumeMounts: mounts,
		})
	}

	return containers, exposed, volumes, nil
}

// commonEnv is injected into every container: instance identity plus the
// localhost URL of every registered sibling endpoint.
func commonEnv(registry typedef.PortRegistry, id Identity) []corev1.EnvVar {
	env := []corev1.EnvVar{
		{Name: "INSTANCE_ID", Value: id.InstanceID},
		{Name: "OWNER_ID", Value: id.OwnerID},
		{Name: "CHALLENGE", Value: id.Definition},
		{Name: "BASE_DOMAIN", Value: id.BaseDomain},
	}
	for _, name := range registry.Names() {
		env = append(env, corev1.EnvVar{
			Name:  envName(name) + "_URL",
			Value: registry.URL(name),
		})
	}
	return env
}

// webOSAppEnv flattens webosApp components into environment bindings on the
// desktop-shell sidecar, in document order.
func webOSAppEnv(doc *cdf.ChallengeDefinition, registry typedef.PortRegistry) []corev1.EnvVar {
	var env []corev1.EnvVar
	n := 0
	for _, c := range doc.Components {
		if c.Kind != cdf.KindWebOSApp {
			continue
		}
		prefix := fmt.Sprintf("WEBOS_APP_%d_", n)
		env = append(env,
			corev1.EnvVar{Name: prefix + "ID", Value: c.ID},
			corev1.EnvVar{Name: prefix + "TYPE", Value: c.WebOSApp.AppType},
		)
		if c.WebOSApp.Title != "" {
			env = append(env, corev1.EnvVar{Name: prefix + "TITLE", Value: c.WebOSApp.Title})
		}
		if c.WebOSApp.Target != "" {
			env = append(env, corev1.EnvVar{Name: prefix + "TARGET", Value: c.WebOSApp.Target})
			if url := registry.URL(c.WebOSApp.Target); url != "" {
				env = append(env, corev1.EnvVar{Name: prefix + "TARGET_URL", Value: url})
			}
		}
		if c.WebOSApp.URL != "" {
			env = append(env, corev1.EnvVar{Name: prefix + "URL", Value: c.WebOSApp.URL})
		}
		n++
	}
	if n > 0 {
		env = append(env, corev1.EnvVar{Name: "WEBOS_APP_COUNT", Value: fmt.Sprintf("%d", n)})
	}
	return env
}

// buildQuestionsConfigMap collects question components into one config map
// consumed by the desktop-shell frontend.
func buildQuestionsConfigMap(doc *cdf.ChallengeDefinition, id Identity, labels map[string]string) *corev1.ConfigMap {
	data := map[string]string{}
	for _, c := range doc.Components {
		if c.Kind != cdf.KindQuestion {
			continue
		}
		payload, err := json.Marshal(c.Question)
		if err != nil {
			continue
		}
		data[c.ID+".json"] = string(payload)
	}
	if len(data) == 0 {
		return nil
	}
	return &corev1.ConfigMap{
		ObjectMeta: objectMeta(QuestionsConfigMapName(id.InstanceID), id.Namespace, labels),
		Data:       data,
	}
}

// wireDataComponents attaches configMap/secret components to their target
// containers, as a volume mount when a mount path is declared and as an
// envFrom reference otherwise. An absent target defaults to the first
// document-declared container.
func wireDataComponents(doc *cdf.ChallengeDefinition, containers []corev1.Container, volumes *[]corev1.Volume, id Identity) error {
	defaultTarget := ""
	for _, c := range doc.Components {
		if c.Kind == cdf.KindContainer {
			defaultTarget = c.ID
			break
		}
	}

	find := func(name string) *corev1.Container {
		for i := range containers {
			if containers[i].Name == name {
				return &containers[i]
			}
		}
		return nil
	}

	for _, c := range doc.Components {
		var target, mountPath, objName, volName string
		var isSecret bool

		switch c.Kind {
		case cdf.KindConfigMap:
			target, mountPath = c.ConfigMap.Target, c.ConfigMap.MountPath
			objName = ConfigMapName(id.InstanceID, c.ID)
			volName = "cm-" + c.ID
		case cdf.KindSecret:
			target, mountPath = c.Secret.Target, c.Secret.MountPath
			objName = SecretName(id.InstanceID, c.ID)
			volName = "sec-" + c.ID
			isSecret = true
		default:
			continue
		}

		if target == "" {
			target = defaultTarget
		}
		if target == "" {
			continue
		}
		container := find(target)
		if container == nil {
			return &ReferenceError{ComponentID: c.ID, Target: target}
		}

		if mountPath == "" {
			ref := corev1.EnvFromSource{}
			if isSecret {
				ref.SecretRef = &corev1.SecretEnvSource{
					LocalObjectReference: corev1.LocalObjectReference{Name: objName},
				}
			} else {
				ref.ConfigMapRef = &corev1.ConfigMapEnvSource{
					LocalObjectReference: corev1.LocalObjectReference{Name: objName},
				}
			}
			container.EnvFrom = append(container.EnvFrom, ref)
			continue
		}

		container.VolumeMounts = append(container.VolumeMounts, corev1.VolumeMount{
			Name:      volName,
			MountPath: mountPath,
			ReadOnly:  true,
		})
		src := corev1.VolumeSource{}
		if isSecret {
			src.Secret = &corev1.SecretVolumeSource{SecretName: objName}
		} else {
			src.ConfigMap = &corev1.ConfigMapVolumeSource{
				LocalObjectReference: corev1.LocalObjectReference{Name: objName},
			}
		}
		*volumes = append(*volumes, corev1.Volume{Name: volName, VolumeSource: src})
	}

	return nil
}

func buildService(id Identity, labels map[string]string, exposed []routing.ExposedService) *corev1.Service {
	var ports []corev1.ServicePort
	for _, e := range exposed {
		ports = append(ports, corev1.ServicePort{
			Name:       e.Name,
			Port:       e.Port,
			TargetPort: intstr.FromInt32(e.Port),
			Protocol:   corev1.ProtocolTCP,
		})
	}
	return &corev1.Service{
		ObjectMeta: objectMeta(ServiceName(id.InstanceID), id.Namespace, labels),
		Spec: corev1.ServiceSpec{
			Type:     corev1.ServiceTypeClusterIP,
			Selector: map[string]string{"rangekit.io/instance": id.InstanceID},
			Ports:    ports,
		},
	}
}

// buildNetworkPolicy isolates the instance pod: DNS plus intra-instance
// traffic only.
func buildNetworkPolicy(id Identity, labels map[string]string) *networkingv1.NetworkPolicy {
	port53 := intstr.FromInt32(53)

	return &networkingv1.NetworkPolicy{
		ObjectMeta: objectMeta(NetworkPolicyName(id.InstanceID), id.Namespace, labels),
		Spec: networkingv1.NetworkPolicySpec{
			PodSelector: metav1.LabelSelector{
				MatchLabels: map[string]string{"rangekit.io/instance": id.InstanceID},
			},
			PolicyTypes: []networkingv1.PolicyType{networkingv1.PolicyTypeEgress},
			Egress: []networkingv1.NetworkPolicyEgressRule{
				{
					To: []networkingv1.NetworkPolicyPeer{
						{
							NamespaceSelector: &metav1.LabelSelector{
								MatchLabels: map[string]string{
									"kubernetes.io/metadata.name": "kube-system",
								},
							},
							PodSelector: &metav1.LabelSelector{
								MatchLabels: map[string]string{"k8s-app": "kube-dns"},
							},
						},
					},
					Ports: []networkingv1.NetworkPolicyPort{
						{Protocol: ptr.To(corev1.ProtocolUDP), Port: &port53},
						{Protocol: ptr.To(corev1.ProtocolTCP), Port: &port53},
					},
				},
				{
					To: []networkingv1.NetworkPolicyPeer{
						{
							PodSelector: &metav1.LabelSelector{
								MatchLabels: map[string]string{
									"rangekit.io/instance": id.InstanceID,
								},
							},
						},
					},
				},
			},
		},
	}
}

// checkPortConflicts rejects two components (or a component and a sidecar)
// declaring the same container port.
func checkPortConflicts(doc *cdf.ChallengeDefinition, typeDef typedef.Definition) error {
	owners := map[int32]string{}

	claim := func(port int32, owner string) error {
		if prev, taken := owners[port]; taken {
			return &PortConflictError{Port: port, FirstID: prev, SecondID: owner}
		}
		owners[port] = owner
		return nil
	}

	for _, c := range doc.Components {
		if c.Kind != cdf.KindContainer {
			continue
		}
		for _, p := range c.Container.Ports {
			if err := claim(p.Port, c.ID); err != nil {
				return err
			}
		}
	}
	for _, s := range typeDef.Sidecars {
		if err := claim(s.Port, s.Name); err != nil {
			return err
		}
	}
	return nil
}

func sortedEnv(m map[string]string) []corev1.EnvVar {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]corev1.EnvVar, 0, len(keys))
	for _, k := range keys {
		env = append(env, corev1.EnvVar{Name: k, Value: m[k]})
	}
	return env
}

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

package compiler

import "strings"

// PodName returns the pod name for an instance.
func PodName(instanceID string) string {
	return "chal-" + instanceID
}

// ServiceName returns the service name for an instance.
func ServiceName(instanceID string) string {
	return "chal-" + instanceID + "-svc"
}

// ConfigMapName returns the object name for a configMap component.
func ConfigMapName(instanceID, componentID string) string {
	return "chal-" + instanceID + "-cm-" + componentID
}

// SecretName returns the object name for a secret component.
func SecretName(instanceID, componentID string) string {
	return "chal-" + instanceID + "-sec-" + componentID
}

// FlagSecretName returns the object name for the generated per-instance
// flag secret.
func FlagSecretName(instanceID string) string {
	return "chal-" + instanceID + "-flag"
}

// QuestionsConfigMapName returns the object name for the generated
// questions config map.
func QuestionsConfigMapName(instanceID string) string {
	return "chal-" + instanceID + "-questions"
}

// NetworkPolicyName returns the network policy name for an instance.
func NetworkPolicyName(instanceID string) string {
	return "chal-" + instanceID + "-netpol"
}

// SanitizeForLabel converts a free-form identifier into a valid label value.
// Example: "alice@ctf.local" -> "alice-at-ctf-local".
func SanitizeForLabel(s string) string {
	result := strings.ReplaceAll(s, "@", "-at-")
	result = strings.ReplaceAll(result, ".", "-")
	result = strings.ToLower(result)
	if len(result) > 63 {
		result = result[:63]
	}
	return result
}

// envName converts a logical name into an environment variable stem.
// Example: "webos-shell" -> "WEBOS_SHELL".
func envName(s string) string {
	result := strings.ToUpper(s)
	result = strings.ReplaceAll(result, "-", "_")
	result = strings.ReplaceAll(result, ".", "_")
	return result
}

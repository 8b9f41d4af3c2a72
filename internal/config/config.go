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

// Package config reads the provisioner's runtime configuration from the
// environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the process-level configuration.
type Config struct {
	// Port the HTTP API listens on.
	Port string

	// PackDir is the directory scanned for challenge packs.
	PackDir string

	// Namespace receives every instance resource.
	Namespace string

	// BaseDomain anchors instance hostnames.
	BaseDomain string

	// WildcardTLSSecret names the shared TLS secret covering *.BaseDomain.
	WildcardTLSSecret string

	// IngressClassName selects the ingress controller; empty uses the
	// cluster default.
	IngressClassName string

	// ReadinessTimeout bounds how long an instance may take to become
	// ready before provisioning fails.
	ReadinessTimeout time.Duration

	// DefaultTTL expires instances whose create request named no lifetime.
	DefaultTTL time.Duration

	// JanitorInterval is the expiry sweep period.
	JanitorInterval time.Duration
}

// FromEnv loads configuration from the environment with defaults suitable
// for local development.
func FromEnv() Config {
	return Config{
		Port:              getEnv("PORT", "8080"),
		PackDir:           getEnv("PACK_DIR", "./packs"),
		Namespace:         getEnv("INSTANCE_NAMESPACE", "challenge-instances"),
		BaseDomain:        getEnv("BASE_DOMAIN", "challenges.local"),
		WildcardTLSSecret: getEnv("WILDCARD_TLS_SECRET", "wildcard-tls"),
		IngressClassName:  os.Getenv("INGRESS_CLASS"),
		ReadinessTimeout:  getDuration("READINESS_TIMEOUT_SECONDS", 2*time.Minute),
		DefaultTTL:        getDuration("DEFAULT_TTL_SECONDS", 0),
		JanitorInterval:   getDuration("JANITOR_INTERVAL_SECONDS", 30*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	instancesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "provisioner_instances_created_total",
			Help: "Number of instance create requests accepted.",
		},
	)
	instancesFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provisioner_instances_failed_total",
			Help: "Number of instances that reached the Failed state, by cause.",
		},
		[]string{"cause"},
	)
	instancesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "provisioner_instances_active",
			Help: "Number of instances currently in a non-terminal state.",
		},
	)
	provisioningDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "provisioner_provisioning_duration_seconds",
			Help:    "Time from create request to the Running state.",
			Buckets: prometheus.DefBuckets,
		},
	)
	rollbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "provisioner_rollbacks_total",
			Help: "Number of partial-provisioning rollbacks performed.",
		},
	)
)

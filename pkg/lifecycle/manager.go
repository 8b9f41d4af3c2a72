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

// Package lifecycle drives challenge instances through their provisioning
// and teardown state machine. Every instance executes as an independent
// task; the only cross-instance state is the orchestrator itself and
// hostname uniqueness, which holds by construction.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/rangekit/provisioner/pkg/cdf"
	"github.com/rangekit/provisioner/pkg/compiler"
	"github.com/rangekit/provisioner/pkg/flaggen"
	"github.com/rangekit/provisioner/pkg/orchestrator"
	"github.com/rangekit/provisioner/pkg/routing"
	"github.com/rangekit/provisioner/pkg/typedef"
	"github.com/rangekit/provisioner/pkg/vars"
)

// DefinitionSource resolves challenge names to their definitions. The pack
// registry implements it.
type DefinitionSource interface {
	Lookup(name string) (*cdf.ChallengeDefinition, bool)
	SharedVariables() map[string]string
}

// Config tunes the manager. Zero values fall back to defaults; timeout
// policy is deliberately configuration, not a hardcoded constant.
type Config struct {
	Namespace         string
	BaseDomain        string
	WildcardTLSSecret string
	IngressClassName  string

	// ReadinessTimeout bounds the Provisioning -> Ready window.
	ReadinessTimeout time.Duration

	// ReadinessPollBase is the initial poll interval; polling backs off
	// exponentially up to ReadinessPollCap.
	ReadinessPollBase time.Duration
	ReadinessPollCap  time.Duration

	// CreateRetries bounds retry attempts for transient orchestrator
	// errors, starting at RetryBaseDelay and doubling.
	CreateRetries  int
	RetryBaseDelay time.Duration

	// DefaultTTL expires instances that never asked for a lifetime.
	// Zero disables expiry.
	DefaultTTL time.Duration

	// JanitorInterval is the sweep period for expired instances.
	JanitorInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Namespace == "" {
		c.Namespace = "challenge-instances"
	}
	if c.BaseDomain == "" {
		c.BaseDomain = "challenges.local"
	}
	if c.WildcardTLSSecret == "" {
		c.WildcardTLSSecret = "wildcard-tls"
	}
	if c.ReadinessTimeout <= 0 {
		c.ReadinessTimeout = 2 * time.Minute
	}
	if c.ReadinessPollBase <= 0 {
		c.ReadinessPollBase = 250 * time.Millisecond
	}
	if c.ReadinessPollCap <= 0 {
		c.ReadinessPollCap = 5 * time.Second
	}
	if c.CreateRetries <= 0 {
		c.CreateRetries = 4
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 100 * time.Millisecond
	}
	if c.JanitorInterval <= 0 {
		c.JanitorInterval = 30 * time.Second
	}
	return c
}

// Errors returned by the manager's synchronous surface.
var (
	ErrUnknownChallenge = errors.New("lifecycle: unknown challenge")
	ErrUnknownInstance  = errors.New("lifecycle: unknown instance")
	ErrNotRunning       = errors.New("lifecycle: instance is not running")
	ErrExecForbidden    = errors.New("lifecycle: container is not exec-eligible")
)

// Manager owns instance resource lifecycles.
type Manager struct {
	orch      orchestrator.Client
	defs      DefinitionSource
	types     map[string]typedef.Definition
	validator *cdf.Validator
	cfg       Config
	log       logr.Logger

	mu        sync.RWMutex
	instances map[string]*Instance
}

// New builds a manager over the given orchestrator handle and definition
// source, using the builtin challenge types.
func New(orch orchestrator.Client, defs DefinitionSource, cfg Config, log logr.Logger) *Manager {
	return &Manager{
		orch:      orch,
		defs:      defs,
		types:     typedef.Builtin(),
		validator: cdf.NewValidator(typedef.Names()...),
		cfg:       cfg.withDefaults(),
		log:       log,
		instances: map[string]*Instance{},
	}
}

// Create accepts a provisioning request. Validation and definition lookup
// happen synchronously so schema errors never reach the orchestrator; the
// rest of the pipeline runs as an independent task and the instance is
// returned immediately in the Requested state.
func (m *Manager) Create(_ context.Context, challengeID, ownerID string, ttl time.Duration) (Snapshot, error) {
	doc, ok := m.defs.Lookup(challengeID)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownChallenge, challengeID)
	}
	if errs := m.validator.ValidateDefinition(doc); len(errs) > 0 {
		return Snapshot{}, errs
	}

	if ttl <= 0 {
		ttl = m.cfg.DefaultTTL
	}

	inst := &Instance{
		ID:         uuid.NewString(),
		Definition: challengeID,
		Owner:      ownerID,
		CreatedAt:  time.Now(),
		state:      StateRequested,
	}
	if ttl > 0 {
		inst.expiresAt = inst.CreatedAt.Add(ttl)
	}

	provCtx, cancel := context.WithCancel(context.Background())
	inst.cancelProvision = cancel

	m.mu.Lock()
	m.instances[inst.ID] = inst
	m.mu.Unlock()

	instancesCreatedTotal.Inc()
	instancesActive.Inc()

	go m.provision(provCtx, inst, doc)

	return inst.Snapshot(), nil
}

// Get returns the instance snapshot.
func (m *Manager) Get(id string) (Snapshot, bool) {
	m.mu.RLock()
	inst, ok := m.instances[id]
	m.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	return inst.Snapshot(), true
}

// List returns snapshots, filtered by owner when owner is non-empty,
// sorted by creation time.
func (m *Manager) List(owner string) []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Snapshot
	for _, inst := range m.instances {
		if owner != "" && inst.Owner != owner {
			continue
		}
		out = append(out, inst.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Stop requests teardown. A stop during provisioning cancels the in-flight
// task, which rolls back whatever it created; a stop of a Running instance
// tears the resources down in reverse creation order. Stop returns
// immediately; callers observe progress through the instance state.
func (m *Manager) Stop(_ context.Context, id string) error {
	m.mu.RLock()
	inst, ok := m.instances[id]
	m.mu.RUnlock()
	if !ok {
		return ErrUnknownInstance
	}

	switch inst.State() {
	case StateTerminated, StateTerminating, StateFailed, StateRollingBack:
		return nil
	case StateRunning, StateReady:
		// Cancel the provisioning context too: in Ready the provisioning
		// task is still finishing up and must not race the teardown into
		// a Running transition.
		inst.cancelProvision()
		go m.teardown(inst)
		return nil
	default:
		inst.cancelProvision()
		// Provisioning may have finished between the state read and the
		// cancel; fall through to a regular teardown in that case.
		if s := inst.State(); s == StateRunning || s == StateReady {
			go m.teardown(inst)
		}
		return nil
	}
}

// Renew extends the instance expiry by ttl from now.
func (m *Manager) Renew(id string, ttl time.Duration) (Snapshot, error) {
	m.mu.RLock()
	inst, ok := m.instances[id]
	m.mu.RUnlock()
	if !ok {
		return Snapshot{}, ErrUnknownInstance
	}
	if ttl <= 0 {
		ttl = m.cfg.DefaultTTL
	}
	if ttl > 0 {
		inst.mu.Lock()
		inst.expiresAt = time.Now().Add(ttl)
		inst.mu.Unlock()
	}
	return inst.Snapshot(), nil
}

// SubmitFlag checks a submitted flag. A correct flag schedules the
// instance for termination.
func (m *Manager) SubmitFlag(id, submitted string) (bool, error) {
	m.mu.RLock()
	inst, ok := m.instances[id]
	m.mu.RUnlock()
	if !ok {
		return false, ErrUnknownInstance
	}

	inst.mu.RLock()
	correct := inst.flag != "" && inst.flag == submitted
	inst.mu.RUnlock()

	if correct {
		_ = m.Stop(context.Background(), id)
	}
	return correct, nil
}

// ExecGrant authorizes an exec session into a container of a Running
// instance. The returned context is cancelled when the instance leaves
// Running, terminating any stream derived from it.
func (m *Manager) ExecGrant(id, container string) (namespace, pod string, ctx context.Context, err error) {
	m.mu.RLock()
	inst, ok := m.instances[id]
	m.mu.RUnlock()
	if !ok {
		return "", "", nil, ErrUnknownInstance
	}

	inst.mu.RLock()
	defer inst.mu.RUnlock()

	if inst.state != StateRunning || inst.runCtx == nil {
		return "", "", nil, ErrNotRunning
	}
	if !inst.execTargets[container] {
		return "", "", nil, fmt.Errorf("%w: %s", ErrExecForbidden, container)
	}
	return m.cfg.Namespace, inst.refs.PodName, inst.runCtx, nil
}

// RunJanitor sweeps expired instances until ctx is done.
func (m *Manager) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.mu.RLock()
			var expired []string
			for id, inst := range m.instances {
				if !inst.State().Terminal() && inst.expired(now) {
					expired = append(expired, id)
				}
			}
			m.mu.RUnlock()

			for _, id := range expired {
				m.log.Info("instance expired, stopping", "instance", id)
				_ = m.Stop(ctx, id)
			}
		}
	}
}

// provision runs the Validating -> Running pipeline for one instance.
func (m *Manager) provision(ctx context.Context, inst *Instance, doc *cdf.ChallengeDefinition) {
	log := m.log.WithValues("instance", inst.ID, "challenge", inst.Definition)
	start := time.Now()

	inst.setState(StateValidating)
	if errs := m.validator.ValidateDefinition(doc); len(errs) > 0 {
		m.fail(inst, "validation", errs)
		return
	}

	flag, err := flaggen.Generate("", inst.ID, inst.Owner, inst.Definition)
	if err != nil {
		m.fail(inst, "compile", err)
		return
	}
	inst.mu.Lock()
	inst.flag = flag
	inst.mu.Unlock()

	inst.setState(StateCompiling)
	resolved, err := vars.Resolve(doc, vars.Context{
		InstanceID: inst.ID,
		BaseDomain: m.cfg.BaseDomain,
		OwnerID:    inst.Owner,
		Secrets:    map[string]string{"FLAG": flag},
		Shared:     m.defs.SharedVariables(),
	})
	if err != nil {
		m.fail(inst, "compile", err)
		return
	}

	typeDef, ok := m.types[resolved.Metadata.ChallengeType]
	if !ok {
		m.fail(inst, "compile", fmt.Errorf("lifecycle: unknown challenge type %q", resolved.Metadata.ChallengeType))
		return
	}

	rs, err := compiler.Compile(resolved, typeDef, compiler.Identity{
		InstanceID: inst.ID,
		Namespace:  m.cfg.Namespace,
		OwnerID:    inst.Owner,
		Definition: inst.Definition,
		BaseDomain: m.cfg.BaseDomain,
		Flag:       flag,
	})
	if err != nil {
		m.fail(inst, "compile", err)
		return
	}

	plan, err := routing.Allocate(inst.ID, m.cfg.BaseDomain, m.cfg.Namespace, rs.Service.Name, rs.Exposed, routing.Options{
		WildcardTLSSecret: m.cfg.WildcardTLSSecret,
		IngressClassName:  m.cfg.IngressClassName,
		Labels:            rs.Service.Labels,
	})
	if err != nil {
		var ae *routing.AllocationError
		if errors.As(err, &ae) {
			// Hostname collisions are impossible by construction; treat
			// an observed one as an invariant violation, not a routine
			// provisioning failure.
			log.Error(err, "routing allocation invariant violated")
		}
		m.fail(inst, "routing", err)
		return
	}

	inst.mu.Lock()
	inst.execTargets = rs.ExecTargets
	inst.routing = RoutingInfo{PrimaryHost: plan.PrimaryHost, AuxHosts: plan.AuxHosts}
	inst.mu.Unlock()

	inst.setState(StateProvisioning)

	// Creation order: secrets and config maps before the pod that mounts
	// them, the pod and service next, the ingress last.
	var created []client.Object
	apply := func(obj client.Object, record func()) bool {
		if ctx.Err() != nil {
			m.abort(inst, created, ctx.Err())
			return false
		}
		if err := m.createWithRetry(ctx, obj); err != nil {
			log.Error(err, "resource creation failed", "kind", fmt.Sprintf("%T", obj), "name", obj.GetName())
			m.rollback(inst, created)
			m.fail(inst, failureCause(err), err)
			return false
		}
		created = append(created, obj)
		record()
		return true
	}

	for _, sec := range rs.Secrets {
		name := sec.Name
		if !apply(sec, func() { inst.appendSecretRef(name) }) {
			return
		}
	}
	for _, cm := range rs.ConfigMaps {
		name := cm.Name
		if !apply(cm, func() { inst.appendConfigMapRef(name) }) {
			return
		}
	}
	if rs.NetworkPolicy != nil {
		if !apply(rs.NetworkPolicy, func() { inst.setRef(func(r *ResourceRefs) { r.NetworkPolicyName = rs.NetworkPolicy.Name }) }) {
			return
		}
	}
	if !apply(rs.Pod, func() { inst.setRef(func(r *ResourceRefs) { r.PodName = rs.Pod.Name }) }) {
		return
	}
	if !apply(rs.Service, func() { inst.setRef(func(r *ResourceRefs) { r.ServiceName = rs.Service.Name }) }) {
		return
	}
	if !apply(plan.Ingress, func() { inst.setRef(func(r *ResourceRefs) { r.IngressName = plan.Ingress.Name }) }) {
		return
	}

	if err := m.awaitPodReady(ctx, client.ObjectKey{Namespace: m.cfg.Namespace, Name: rs.Pod.Name}, inst); err != nil {
		if ctx.Err() != nil {
			m.abort(inst, created, ctx.Err())
			return
		}
		m.rollback(inst, created)
		m.fail(inst, failureCause(err), err)
		return
	}
	inst.setState(StateReady)
	if ctx.Err() != nil {
		m.abort(inst, created, ctx.Err())
		return
	}

	// Running requires the ingress rule to have been accepted; a Get
	// confirms the controller holds it.
	ing := &networkingv1.Ingress{}
	if err := m.orch.Get(ctx, client.ObjectKey{Namespace: m.cfg.Namespace, Name: plan.Ingress.Name}, ing); err != nil {
		if ctx.Err() != nil {
			m.abort(inst, created, ctx.Err())
			return
		}
		m.rollback(inst, created)
		m.fail(inst, "routing", err)
		return
	}

	// The Running transition is guarded: only an instance still in Ready
	// with a live context may enter Running. A stop that raced this leg
	// either owns cleanup through its teardown or is honored here.
	runCtx, runCancel := context.WithCancel(context.Background())
	inst.mu.Lock()
	switch {
	case inst.state != StateReady:
		inst.mu.Unlock()
		runCancel()
		return
	case ctx.Err() != nil:
		inst.mu.Unlock()
		runCancel()
		m.abort(inst, created, ctx.Err())
		return
	}
	inst.runCtx = runCtx
	inst.runCancel = runCancel
	inst.state = StateRunning
	inst.mu.Unlock()

	provisioningDuration.Observe(time.Since(start).Seconds())
	log.Info("instance running", "primaryHost", plan.PrimaryHost)
}

// abort handles a cancelled provisioning task: roll back whatever exists,
// then mark the instance Terminated (the stop was user-intent, not a
// failure).
func (m *Manager) abort(inst *Instance, created []client.Object, cause error) {
	m.log.Info("provisioning cancelled, rolling back", "instance", inst.ID, "cause", cause.Error())
	m.rollback(inst, created)
	m.finish(inst, StateTerminated)
}

// rollback deletes partially created resources in reverse creation order.
// The instance is only reported Failed/Terminated after rollback completes
// so callers never observe a half-provisioned instance as final.
func (m *Manager) rollback(inst *Instance, created []client.Object) {
	if len(created) == 0 {
		return
	}
	inst.setState(StateRollingBack)
	rollbacksTotal.Inc()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	for i := len(created) - 1; i >= 0; i-- {
		m.deleteReconciled(ctx, created[i])
	}
}

// teardown deletes a fully provisioned instance: routing first, then the
// pod and service, then secrets and config maps.
func (m *Manager) teardown(inst *Instance) {
	inst.setState(StateTerminating)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	inst.mu.RLock()
	refs := inst.refs
	inst.mu.RUnlock()
	ns := m.cfg.Namespace

	if refs.IngressName != "" {
		m.deleteReconciled(ctx, &networkingv1.Ingress{ObjectMeta: metav1.ObjectMeta{Name: refs.IngressName, Namespace: ns}})
	}
	if refs.PodName != "" {
		m.deleteReconciled(ctx, &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: refs.PodName, Namespace: ns}})
	}
	if refs.ServiceName != "" {
		m.deleteReconciled(ctx, &corev1.Service{ObjectMeta: metav1.ObjectMeta{Name: refs.ServiceName, Namespace: ns}})
	}
	if refs.NetworkPolicyName != "" {
		m.deleteReconciled(ctx, &networkingv1.NetworkPolicy{ObjectMeta: metav1.ObjectMeta{Name: refs.NetworkPolicyName, Namespace: ns}})
	}
	for _, name := range refs.ConfigMapNames {
		m.deleteReconciled(ctx, &corev1.ConfigMap{ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: ns}})
	}
	for _, name := range refs.SecretNames {
		m.deleteReconciled(ctx, &corev1.Secret{ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: ns}})
	}

	m.finish(inst, StateTerminated)
	m.log.Info("instance terminated", "instance", inst.ID)
}

// deleteReconciled confirms existence before deleting: the local refs are
// a cache, the orchestrator is the source of truth, and the manager must
// not delete what it cannot see (or did not create).
func (m *Manager) deleteReconciled(ctx context.Context, obj client.Object) {
	key := client.ObjectKey{Namespace: obj.GetNamespace(), Name: obj.GetName()}
	if err := m.orch.Get(ctx, key, obj); err != nil {
		if !apierrors.IsNotFound(err) {
			m.log.Error(err, "reconcile before delete failed", "name", obj.GetName())
		}
		return
	}
	if err := m.orch.Delete(ctx, obj); err != nil && !apierrors.IsNotFound(err) {
		m.log.Error(err, "resource deletion failed", "name", obj.GetName())
	}
}

// createWithRetry retries transient orchestrator errors with bounded
// exponential backoff; fatal errors surface immediately.
func (m *Manager) createWithRetry(ctx context.Context, obj client.Object) error {
	delay := m.cfg.RetryBaseDelay
	for attempt := 0; ; attempt++ {
		err := m.orch.Create(ctx, obj)
		if err == nil {
			return nil
		}
		if !orchestrator.IsTransient(err) || attempt+1 >= m.cfg.CreateRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// awaitPodReady polls the pod with exponential backoff until every
// container reports ready, the readiness window closes, or a permanent
// failure (image pull, config error) is observed.
func (m *Manager) awaitPodReady(ctx context.Context, key client.ObjectKey, inst *Instance) error {
	deadline := time.Now().Add(m.cfg.ReadinessTimeout)
	delay := m.cfg.ReadinessPollBase

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		pod := &corev1.Pod{}
		err := m.orch.Get(ctx, key, pod)
		switch {
		case err == nil:
			if reason, fatal := podPermanentFailure(pod); fatal {
				return &orchestrator.FatalError{Err: fmt.Errorf("pod %s: %s", key.Name, reason)}
			}
			if podReady(pod) {
				return nil
			}
		case apierrors.IsNotFound(err):
			// Pod not visible yet; keep polling.
		default:
			m.log.Error(err, "pod readiness poll failed", "pod", key.Name)
		}

		if time.Now().After(deadline) {
			return &ReadinessTimeoutError{InstanceID: inst.ID, Window: m.cfg.ReadinessTimeout}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if delay *= 2; delay > m.cfg.ReadinessPollCap {
			delay = m.cfg.ReadinessPollCap
		}
	}
}

func podReady(pod *corev1.Pod) bool {
	if pod.Status.Phase != corev1.PodRunning || len(pod.Status.ContainerStatuses) < len(pod.Spec.Containers) {
		return false
	}
	for _, cs := range pod.Status.ContainerStatuses {
		if !cs.Ready {
			return false
		}
	}
	return true
}

// podPermanentFailure detects conditions that will never resolve inside
// the readiness window.
func podPermanentFailure(pod *corev1.Pod) (string, bool) {
	if pod.Status.Phase == corev1.PodFailed {
		return "pod failed: " + pod.Status.Reason, true
	}
	for _, cs := range pod.Status.ContainerStatuses {
		if cs.State.Waiting == nil {
			continue
		}
		switch cs.State.Waiting.Reason {
		case "ErrImagePull", "ImagePullBackOff", "InvalidImageName", "CreateContainerConfigError":
			return fmt.Sprintf("container %s: %s", cs.Name, cs.State.Waiting.Reason), true
		}
	}
	return "", false
}

func (m *Manager) fail(inst *Instance, cause string, err error) {
	inst.setFailure(err.Error())
	m.finish(inst, StateFailed)
	instancesFailedTotal.WithLabelValues(cause).Inc()
	m.log.Error(err, "instance failed", "instance", inst.ID, "cause", cause)
}

// finish moves the instance into a terminal state exactly once. Concurrent
// cleanup paths (a user stop racing a cancelled provisioning task) may both
// reach it; only the first transition counts.
func (m *Manager) finish(inst *Instance, s State) {
	inst.mu.Lock()
	if inst.state.Terminal() {
		inst.mu.Unlock()
		return
	}
	inst.state = s
	if inst.runCancel != nil {
		inst.runCancel()
		inst.runCancel = nil
	}
	inst.mu.Unlock()
	instancesActive.Dec()
}

func failureCause(err error) string {
	switch {
	case orchestrator.IsTransient(err):
		return "transient_exhausted"
	case isReadinessTimeout(err):
		return "readiness_timeout"
	default:
		return "fatal"
	}
}

func isReadinessTimeout(err error) bool {
	var rte *ReadinessTimeoutError
	return errors.As(err, &rte)
}

// appendSecretRef and friends mutate resourceRefs under the instance lock.
func (i *Instance) appendSecretRef(name string) {
	i.setRef(func(r *ResourceRefs) { r.SecretNames = append(r.SecretNames, name) })
}

func (i *Instance) appendConfigMapRef(name string) {
	i.setRef(func(r *ResourceRefs) { r.ConfigMapNames = append(r.ConfigMapNames, name) })
}

func (i *Instance) setRef(mutate func(*ResourceRefs)) {
	i.mu.Lock()
	mutate(&i.refs)
	i.mu.Unlock()
}

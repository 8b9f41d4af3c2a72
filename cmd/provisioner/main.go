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

package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	_ "github.com/rangekit/provisioner/docs" // Import generated docs
	"github.com/rangekit/provisioner/internal/config"
	"github.com/rangekit/provisioner/pkg/api"
	"github.com/rangekit/provisioner/pkg/cdf"
	"github.com/rangekit/provisioner/pkg/execbridge"
	"github.com/rangekit/provisioner/pkg/lifecycle"
	"github.com/rangekit/provisioner/pkg/orchestrator"
	"github.com/rangekit/provisioner/pkg/pack"
	"github.com/rangekit/provisioner/pkg/typedef"
)

// @title Challenge Instance Provisioner API
// @version 1.0
// @description Provisioning engine for per-learner challenge instances on Kubernetes

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

var scheme = runtime.NewScheme()

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
}

func main() {
	logger := zap.New(zap.UseDevMode(false))
	cfg := config.FromEnv()

	// Setup K8s client
	restCfg := ctrl.GetConfigOrDie()
	orch, err := orchestrator.NewKube(restCfg, scheme)
	if err != nil {
		log.Fatalf("Failed to create orchestrator client: %v", err)
	}

	// Load challenge packs
	validator := cdf.NewValidator(typedef.Names()...)
	loader := pack.NewLoader(validator, logger.WithName("pack"))
	registry, err := loader.LoadAll(cfg.PackDir)
	if err != nil {
		log.Fatalf("Failed to load challenge packs from %s: %v", cfg.PackDir, err)
	}

	mgr := lifecycle.New(orch, registry, lifecycle.Config{
		Namespace:         cfg.Namespace,
		BaseDomain:        cfg.BaseDomain,
		WildcardTLSSecret: cfg.WildcardTLSSecret,
		IngressClassName:  cfg.IngressClassName,
		ReadinessTimeout:  cfg.ReadinessTimeout,
		DefaultTTL:        cfg.DefaultTTL,
		JanitorInterval:   cfg.JanitorInterval,
	}, logger.WithName("lifecycle"))

	bridge := execbridge.New(orch, mgr, logger.WithName("execbridge"))
	handler := api.NewHandler(mgr, registry, bridge, logger.WithName("api"))

	// Expiry janitor
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go mgr.RunJanitor(ctx)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(corsMiddleware)

	// Health check (multiple routes for compatibility)
	r.Get("/health", handler.Health)
	r.Get("/healthz", handler.Health)

	// Metrics
	r.Handle("/metrics", promhttp.Handler())

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		// Challenge catalog
		r.Get("/challenge", handler.ListChallenges)
		r.Get("/challenge/{challengeId}", handler.GetChallenge)

		// Instance management
		r.Post("/instance", handler.CreateInstance)
		r.Get("/instance", handler.ListInstances)
		r.Get("/instance/{instanceId}", handler.GetInstance)
		r.Delete("/instance/{instanceId}", handler.DeleteInstance)
		r.Post("/instance/{instanceId}/renew", handler.RenewInstance)
		r.Post("/instance/{instanceId}/validate", handler.ValidateFlag)
		r.Get("/instance/{instanceId}/exec/{container}", handler.ExecInstance)
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	log.Printf("Provisioner starting on :%s", cfg.Port)
	log.Printf("Instance namespace: %s, base domain: %s", cfg.Namespace, cfg.BaseDomain)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// corsMiddleware adds CORS headers for the platform frontend
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

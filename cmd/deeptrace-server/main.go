// Command deeptrace-server serves DeepTrace's operator-facing HTTP
// surface: the audit-log query API (spec SPEC_FULL.md §4.13) and the live
// websocket broadcast hub (spec SPEC_FULL.md §4.13). It does not run the
// analytical pipeline itself — the pipeline needs a concrete rpc.Provider,
// which spec §1 scopes as an external collaborator outside this module;
// integrators embed internal/ethernity.New in their own driver, pointing
// its Broadcaster at this process's live.Hub (directly, or via
// internal/events for a durable record) and its audit writes at the same
// Postgres database this server queries.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angu-team/ethernity-deeptrace/internal/audit"
	"github.com/angu-team/ethernity-deeptrace/internal/config"
	"github.com/angu-team/ethernity-deeptrace/internal/fabric"
	"github.com/angu-team/ethernity-deeptrace/internal/live"
	"github.com/angu-team/ethernity-deeptrace/internal/memory"
	"github.com/angu-team/ethernity-deeptrace/internal/metrics"
)

func main() {
	cfg := config.Get()

	store, err := audit.Open(cfg.Audit.DSN)
	if err != nil {
		log.Fatalf("deeptrace-server: open audit store: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("deeptrace-server: ensure audit schema: %v", err)
	}
	cancel()

	// Registers every DeepTrace metric against the default Prometheus
	// registry so /metrics reports them as soon as an integrator's driver
	// starts passing this *metrics.Metrics to its collaborators.
	metrics.New()

	hub := live.NewHub()
	go hub.Run()

	registry := memory.NewRegistry(256)
	registry.RunSnapshotter(time.Minute)

	if cfg.Memory.RedisEnabled {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.Memory.RedisAddr})
		mirror := memory.NewRedisMirror(redisAdapter{rdb}, cfg.Memory.RedisKeyPrefix,
			time.Duration(cfg.Memory.MirrorInterval)*time.Second, registry)
		go mirror.Run(context.Background(), time.Duration(cfg.Memory.MirrorInterval)*time.Second)
		slog.Info("deeptrace-server: Memory Layer Redis mirror enabled", "addr", cfg.Memory.RedisAddr)
	}

	router := mux.NewRouter()
	audit.RegisterRoutes(router, store)
	router.HandleFunc(cfg.Live.Path, hub.HandleWebSocket)
	router.HandleFunc("/health", handleHealth).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSec) * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("deeptrace-server: received shutdown signal, shutting down gracefully")

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("deeptrace-server: shutdown error", "error", err)
		}
	}()

	slog.Info("deeptrace-server: starting", "port", cfg.Server.Port, "live_path", cfg.Live.Path)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("deeptrace-server: server failed: %v", err)
	}
	slog.Info("deeptrace-server: stopped")
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// redisAdapter satisfies internal/memory's minimal RedisClient interface
// over a real github.com/redis/go-redis/v9 client.
type redisAdapter struct {
	client *goredis.Client
}

func (r redisAdapter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r redisAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	return b, err
}

func (r redisAdapter) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

var _ fabric.RedisClient = redisAdapter{}

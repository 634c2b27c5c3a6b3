// cmd/worker-manager/serve.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"notification-workers/internal/common/camunda"
	"notification-workers/internal/common/config"
	"notification-workers/internal/sources/changestream"
	"notification-workers/internal/sources/kafka"
	dce "notification-workers/internal/workers/notification/dispatch-change-event"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the enabled change event sources and the health/metrics server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func serve(cfg *config.Config) error {
	a, err := newApp(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer a.close()

	a.zap.Info("Starting worker manager...",
		zap.String("version", cfg.App.Version),
		zap.String("store", cfg.Store.Driver),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Sources.ChangeStream.Enabled {
		checkpoint := changestream.NewRedisCheckpoint(a.redis.Client, cfg.Sources.ChangeStream.CheckpointKey)
		watcher := changestream.NewWatcher(a.mongo.Database, changestream.Collections{
			Jobs:     cfg.Store.JobsCollection,
			Listings: cfg.Store.ListingsCollection,
			Users:    cfg.Store.UsersCollection,
		}, checkpoint, a.dispatcher, a.log)
		g.Go(func() error { return watcher.Run(gctx) })
		a.zap.Info("change stream source started")
	}

	if cfg.Sources.Kafka.Enabled {
		consumer := kafka.NewConsumer(kafka.NewReader(cfg.Kafka), a.dispatcher, a.log)
		g.Go(func() error {
			defer consumer.Close()
			return consumer.Run(gctx)
		})
		a.zap.Info("kafka source started", zap.String("topic", cfg.Kafka.Topic))
	}

	if cfg.Sources.Zeebe.Enabled {
		var zeebe *camunda.Client
		err := retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, a.zap, "Zeebe client initialization")
		if err != nil {
			return err
		}
		defer zeebe.Close()

		hcfg := dce.LoadConfig(cfg)
		handler := dce.NewHandler(hcfg, a.dispatcher, a.log)
		w := camunda.NewWorker(zeebe.GetClient(), dce.TaskType, hcfg.MaxJobsActive, hcfg.Timeout, handler, a.log)
		defer w.Stop()
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           healthMux(a),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.zap.Info("Health/Metrics server listening", zap.String("address", cfg.HTTP.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.zap.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
		a.zap.Info("Shutdown signal received, stopping sources...")
	case <-gctx.Done():
		a.zap.Error("a change event source stopped unexpectedly")
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.zap.Error("Error stopping health server", zap.Error(err))
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.zap.Info("Worker manager stopped gracefully")
	return nil
}

func healthMux(a *app) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", nil)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.ready(ctx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "not_ready", err)
			return
		}
		writeStatus(w, http.StatusOK, "ready", nil)
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, code int, status string, err error) {
	body := map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	}
	if err != nil {
		body["error"] = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

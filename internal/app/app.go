package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/vladislavdragonenkov/orderflow/internal/health"
	grpcsvc "github.com/vladislavdragonenkov/orderflow/internal/service/grpc"
	"github.com/vladislavdragonenkov/orderflow/internal/service/observe"
	"github.com/vladislavdragonenkov/orderflow/internal/version"
)

const (
	shutdownTimeout     = 5 * time.Second
	healthWatchInterval = 10 * time.Second
)

// Run поднимает gRPC сервер и HTTP сервер метрик на адресах из cfg и
// блокируется до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", cfg.GRPCAddr, err)
	}
	httpLis, err := net.Listen("tcp", cfg.MetricsAddr)
	if err != nil {
		_ = grpcLis.Close()
		return fmt.Errorf("listen metrics %s: %w", cfg.MetricsAddr, err)
	}
	return Serve(ctx, cfg, grpcLis, httpLis)
}

// Serve запускает сервис на готовых listener'ах. Штатная остановка по ctx
// возвращает nil.
func Serve(ctx context.Context, cfg Config, grpcLis, httpLis net.Listener) error {
	logger := log.WithField("component", "app")
	logger.WithField("version", version.String()).Info("starting order service")

	serving := false
	defer func() {
		if !serving {
			_ = grpcLis.Close()
			_ = httpLis.Close()
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	tracerProvider, shutdownTracing, err := initTracing(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.WithError(err).Warn("failed to flush traces")
		}
	}()

	storage, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := storage.Close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	if cfg.SeedDemoData {
		if err := SeedDemoData(ctx, storage.Users, storage.Products, logger.WithField("component", "seed")); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}

	producer := initKafka(cfg, logger)
	defer closeKafka(producer, logger)

	comps, err := buildComponents(cfg, storage, producer, registry, tracerProvider, logger)
	if err != nil {
		return err
	}

	healthHandler := health.NewHandler(version.GetVersion())
	registerCheckers(healthHandler, storage, comps)

	grpcServer, grpcHealth, err := newGRPCServer(cfg, comps.orderService, registry, logger)
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Handler:           newHTTPMux(registry, healthHandler, comps.tracker),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serving = true
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.WithField("addr", grpcLis.Addr().String()).Info("grpc server listening")
		if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		logger.WithField("addr", httpLis.Addr().String()).Info("metrics and health endpoints listening")
		if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		return comps.outbox.Run(groupCtx)
	})
	group.Go(func() error {
		return comps.cleanup.Run(groupCtx)
	})
	group.Go(func() error {
		watchHealth(groupCtx, healthHandler, grpcHealth, healthWatchInterval)
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		grpcHealth.Shutdown()
		stopGRPC(grpcServer, logger)
		shutdownHTTP(httpServer, logger)
		return nil
	})

	return group.Wait()
}

// newGRPCServer собирает сервер с метриками, rate limit и логированием.
func newGRPCServer(
	cfg Config,
	service grpcsvc.OrderServiceServer,
	registerer prometheus.Registerer,
	logger *log.Entry,
) (*grpc.Server, *grpchealth.Server, error) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := registerer.Register(grpcMetrics); err != nil {
		return nil, nil, fmt.Errorf("register grpc metrics: %w", err)
	}

	interceptors := []grpc.UnaryServerInterceptor{grpcMetrics.UnaryServerInterceptor()}
	if cfg.RateLimitRPS > 0 {
		limiter := rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
		interceptors = append(interceptors, grpcsvc.RateLimitInterceptor(limiter))
	}
	interceptors = append(interceptors, grpcsvc.LoggingInterceptor(logger.WithField("layer", "grpc")))

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	grpcsvc.RegisterOrderServiceServer(server, service)

	healthServer := grpchealth.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(grpcsvc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)

	reflection.Register(server)
	grpcMetrics.InitializeMetrics(server)
	return server, healthServer, nil
}

// watchHealth переводит gRPC health в NOT_SERVING, пока проверки unhealthy.
func watchHealth(ctx context.Context, handler *health.Handler, server *grpchealth.Server, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := healthpb.HealthCheckResponse_SERVING
			if handler.Evaluate(ctx).Status == health.StatusUnhealthy {
				status = healthpb.HealthCheckResponse_NOT_SERVING
			}
			server.SetServingStatus(grpcsvc.ServiceName, status)
		}
	}
}

// newHTTPMux отдаёт метрики, health-пробы и снимок оркестратора.
func newHTTPMux(gatherer prometheus.Gatherer, healthHandler *health.Handler, tracker *observe.Tracker) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", health.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/debug/order-context", func(w http.ResponseWriter, _ *http.Request) {
		snapshot, err := grpcsvc.SnapshotToStruct(tracker.Snapshot())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		body, err := protojson.Marshal(snapshot)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	})
	return mux
}

// stopGRPC ждёт завершения активных вызовов не дольше shutdownTimeout.
func stopGRPC(server *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	timer := time.NewTimer(shutdownTimeout)
	defer timer.Stop()
	select {
	case <-stopped:
	case <-timer.C:
		logger.Warn("graceful stop timed out, forcing grpc server stop")
		server.Stop()
	}
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics server shutdown with error")
	}
}

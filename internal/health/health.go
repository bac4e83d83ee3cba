// Package health serves liveness and readiness probes over HTTP and gRPC.
package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported alongside "".
const ServiceName = "dental.bot"

// Check is one readiness dependency.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// Checker runs readiness checks.
type Checker struct {
	checks  []Check
	timeout time.Duration
	logger  zerolog.Logger
}

// NewChecker creates a checker. Checks with a nil Ping are skipped.
func NewChecker(logger zerolog.Logger, checks ...Check) *Checker {
	c := &Checker{timeout: time.Second, logger: logger.With().Str("component", "health").Logger()}
	for _, ch := range checks {
		if ch.Ping != nil {
			c.checks = append(c.checks, ch)
		}
	}
	return c
}

// Ready returns the first failing check.
func (c *Checker) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	for _, ch := range c.checks {
		if err := ch.Ping(ctx); err != nil {
			return fmt.Errorf("%s not ready: %w", ch.Name, err)
		}
	}
	return nil
}

// Handler serves /healthz and /readyz.
func (c *Checker) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := c.Ready(r.Context()); err != nil {
			c.logger.Warn().Err(err).Msg("readiness check failed")
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	return mux
}

// ServeHTTP listens on port until ctx is cancelled.
func (c *Checker) ServeHTTP(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           c.Handler(),
		ReadHeaderTimeout: 3 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}

// Sync sets hs to SERVING or NOT_SERVING from the current readiness.
func (c *Checker) Sync(ctx context.Context, hs *grpchealth.Server) grpc_health_v1.HealthCheckResponse_ServingStatus {
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if err := c.Ready(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("grpc health degraded")
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", status)
	hs.SetServingStatus(ServiceName, status)
	return status
}

// ServeGRPC runs the grpc.health.v1 service on port and refreshes its
// status every interval until ctx is cancelled.
func (c *Checker) ServeGRPC(ctx context.Context, port int, interval time.Duration) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("grpc health listen: %w", err)
	}

	hs := grpchealth.NewServer()
	srv := grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)
	c.Sync(ctx, hs)

	if interval <= 0 {
		interval = 15 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				hs.Shutdown()
				srv.GracefulStop()
				return
			case <-ticker.C:
				c.Sync(ctx, hs)
			}
		}
	}()

	c.logger.Info().Int("port", port).Msg("grpc health server listening")
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc health server: %w", err)
	}
	return nil
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	api "github.com/oshokin/pingbot/internal/api/grpc/pings"
	"github.com/oshokin/pingbot/internal/config"
	"github.com/oshokin/pingbot/internal/logger"
	pb "github.com/oshokin/pingbot/internal/pb/v1"
	"github.com/oshokin/pingbot/internal/service/webhook"
)

// Options controls the pingbot-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// HTTPAddress overrides the webhook listen address.
	HTTPAddress string
	// GRPCAddress overrides the query surface listen address.
	GRPCAddress string
	// Ready, when set, receives the bound addresses once both listeners are up.
	Ready func(httpAddress, grpcAddress string)
}

// shutdownTimeout bounds the graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// Run starts both servers and blocks until the context is canceled or a server stops.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "pingbot-server")

	// Load configuration first to get server settings.
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if opts.HTTPAddress != "" {
		settings.HTTPAddress = opts.HTTPAddress
	}

	if opts.GRPCAddress != "" {
		settings.GRPCAddress = opts.GRPCAddress
	}

	if level, ok := logger.ParseLogLevel(settings.LogLevel); ok {
		logger.SetLevel(level)
	} else {
		logger.WarnKV(ctx, "Unknown log level, keeping default", "log_level", settings.LogLevel)
	}

	if settings.SingleInstance {
		if err = ensureSingleInstance(); err != nil {
			return err
		}
	}

	svc, err := newService(ctx, settings)
	if err != nil {
		return fmt.Errorf("initialise service: %w", err)
	}

	defer func() {
		if closeErr := svc.close(context.WithoutCancel(ctx)); closeErr != nil {
			logger.ErrorKV(ctx, "Cannot close service", "error", closeErr)
		}
	}()

	return serve(ctx, settings, svc, opts.Ready)
}

// serve runs the HTTP and gRPC servers until ctx is canceled or one of them fails.
func serve(ctx context.Context, settings *config.Config, svc *service, ready func(string, string)) error {
	lc := net.ListenConfig{}

	httpListener, err := lc.Listen(ctx, "tcp", settings.HTTPAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", settings.HTTPAddress, err)
	}

	grpcListener, err := lc.Listen(ctx, "tcp", settings.GRPCAddress)
	if err != nil {
		_ = httpListener.Close()

		return fmt.Errorf("listen on %s: %w", settings.GRPCAddress, err)
	}

	httpServer := &http.Server{
		Handler:           webhook.NewRouter(svc.webhook),
		ReadHeaderTimeout: settings.Timeout,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(api.UnaryAuthInterceptor(settings.QueryToken)))
	pb.RegisterPingServiceServer(grpcServer, svc.queries)

	logger.InfoKV(ctx, "Pingbot server listening",
		"http_address", httpListener.Addr().String(),
		"grpc_address", grpcListener.Addr().String())

	if ready != nil {
		ready(httpListener.Addr().String(), grpcListener.Addr().String())
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()

		logger.Info(ctx, "Shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.ErrorKV(ctx, "HTTP shutdown failed", "error", err)
		}

		grpcServer.GracefulStop()

		return nil
	})

	if err = group.Wait(); err != nil {
		return err
	}

	logger.Info(ctx, "Servers stopped")

	return nil
}

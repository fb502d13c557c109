// Package grpcserver runs the ops gRPC listener. It serves the standard
// health service, driven by database reachability, and reflection in
// development mode.
package grpcserver

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name of the chat API.
const ServiceName = "alebaz.chat.v1.API"

const (
	defaultInterval = 5 * time.Second
	probeTimeout    = 2 * time.Second
)

// Pinger reports whether the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the ops listener.
type Options struct {
	DB         Pinger
	Log        *zap.Logger
	Reflection bool
	Interval   time.Duration // probe period
}

// Ops is the ops gRPC server.
type Ops struct {
	srv      *grpc.Server
	health   *health.Server
	db       Pinger
	log      *zap.Logger
	interval time.Duration
}

// New builds the server with recover and logging interceptors.
func New(opts Options) *Ops {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		RecoverUnary(opts.Log),
		LoggingUnary(opts.Log),
	))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	if opts.Reflection {
		reflection.Register(srv)
	}

	o := &Ops{srv: srv, health: hs, db: opts.DB, log: opts.Log, interval: opts.Interval}
	o.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return o
}

func (o *Ops) set(st healthpb.HealthCheckResponse_ServingStatus) {
	o.health.SetServingStatus("", st)
	o.health.SetServingStatus(ServiceName, st)
}

// Probe pings the database once and publishes the result.
func (o *Ops) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	if o.db != nil {
		ctx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		if err := o.db.Ping(ctx); err != nil {
			o.log.Warn("health probe failed", zap.Error(err))
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	o.set(st)
	return st
}

// Watch probes every interval until ctx is done.
func (o *Ops) Watch(ctx context.Context) {
	o.Probe(ctx)
	t := time.NewTicker(o.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			o.Probe(ctx)
		}
	}
}

// Serve accepts connections on lis until Shutdown.
func (o *Ops) Serve(lis net.Listener) error {
	return o.srv.Serve(lis)
}

// Shutdown reports NOT_SERVING to watchers, then stops gracefully. When ctx
// expires first, open streams are cut.
func (o *Ops) Shutdown(ctx context.Context) {
	o.health.Shutdown()

	done := make(chan struct{})
	go func() {
		o.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		o.srv.Stop()
		<-done
	}
}

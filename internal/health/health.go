// Package health exposes the standard gRPC health service for the station.
package health

import (
	"context"
	"log"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Service is the name the station reports under.  The empty name reports
// overall server health and tracks it.
const Service = "portunus.station.v1.Station"

type Dependencies struct {
	Logger *log.Logger
	Addr   string
}

type Server struct {
	logger *log.Logger
	addr   string
	grpc   *grpc.Server
	health *health.Server
}

func NewServer(d Dependencies) *Server {
	if d.Logger == nil {
		d.Logger = log.Default()
	}
	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	s := &Server{logger: d.Logger, addr: d.Addr, grpc: gs, health: hs}
	s.SetServing(false)
	return s
}

// SetServing flips both the station service and the overall status.
func (s *Server) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(Service, st)
}

// Watch reports SERVING while ticks keeps advancing and NOT_SERVING once it
// stalls for a full interval.  It returns when ctx ends, leaving the status
// at NOT_SERVING.
func (s *Server) Watch(ctx context.Context, ticks func() uint64, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	last := ticks()
	serving := false
	for {
		select {
		case <-ctx.Done():
			s.SetServing(false)
			return
		case <-t.C:
			n := ticks()
			ok := n != last
			last = n
			if ok != serving {
				s.logger.Printf("health: serving=%t ticks=%d", ok, n)
				serving = ok
				s.SetServing(ok)
			}
		}
	}
}

// Serve blocks serving on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

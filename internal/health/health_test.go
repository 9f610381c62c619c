package health

import (
	"context"
	"io"
	"log"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func newTestClient(t *testing.T) (*Server, healthpb.HealthClient) {
	t.Helper()

	lis := bufconn.Listen(1 << 16)
	s := NewServer(Dependencies{Logger: log.New(io.Discard, "", 0)})
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return s, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, c healthpb.HealthClient) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: Service})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	return resp.GetStatus()
}

func TestServer_StartsNotServing(t *testing.T) {
	_, c := newTestClient(t)

	if got := check(t, c); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING, got %v", got)
	}
}

func TestServer_SetServing(t *testing.T) {
	s, c := newTestClient(t)

	s.SetServing(true)
	if got := check(t, c); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", got)
	}
}

func TestWatch_FollowsTicks(t *testing.T) {
	s, c := newTestClient(t)

	var ticks atomic.Uint64
	var stalled atomic.Bool
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Advance the counter until told to stall.
	go func() {
		for ctx.Err() == nil {
			if !stalled.Load() {
				ticks.Add(1)
			}
			time.Sleep(2 * time.Millisecond)
		}
	}()

	done := make(chan struct{})
	go func() {
		s.Watch(ctx, ticks.Load, 20*time.Millisecond)
		close(done)
	}()

	waitFor(t, c, healthpb.HealthCheckResponse_SERVING)
	stalled.Store(true)
	waitFor(t, c, healthpb.HealthCheckResponse_NOT_SERVING)

	stalled.Store(false)
	waitFor(t, c, healthpb.HealthCheckResponse_SERVING)
	cancel()
	<-done
	if got := check(t, c); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING after Watch returns, got %v", got)
	}
}

func waitFor(t *testing.T, c healthpb.HealthClient, want healthpb.HealthCheckResponse_ServingStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if check(t, c) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("status never became %v", want)
}

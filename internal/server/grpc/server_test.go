package grpc

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type toggle struct {
	fns []func(bool)
}

func (t *toggle) Watch(fn func(bool)) {
	t.fns = append(t.fns, fn)
	fn(false)
}

func (t *toggle) set(running bool) {
	for _, fn := range t.fns {
		fn(running)
	}
}

func TestHealthTracksProcessor(t *testing.T) {
	server := NewServer(zap.NewNop())
	hs := NewHealth(server)
	w := &toggle{}
	BindHealth(hs, w)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	client := healthpb.NewHealthClient(conn)
	ctx := context.Background()

	check := func(service string) healthpb.HealthCheckResponse_ServingStatus {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		require.NoError(t, err)
		return resp.GetStatus()
	}

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(ProcessorService))

	w.set(true)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(ProcessorService))

	w.set(false)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(ProcessorService))
}

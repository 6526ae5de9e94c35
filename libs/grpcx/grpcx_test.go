package grpcx

import (
	"context"
	"net"
	"testing"

	"github.com/md-rashed-zaman/artistcal/libs/httpx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
)

func TestHealthReadyCheck(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv, hs := NewServer()
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	check := HealthReadyCheck(conn, "")
	require.NoError(t, check(context.Background()))

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	assert.Error(t, check(context.Background()))
}

func TestClientInterceptorPrefersHTTPRequestID(t *testing.T) {
	ctx := httpx.ContextWithRequestID(context.Background(), "http-id")
	ctx = WithRequestID(ctx, "grpc-id")

	var got []string
	invoker := func(ctx context.Context, _ string, _, _ any, _ *grpc.ClientConn, _ ...grpc.CallOption) error {
		md, _ := metadata.FromOutgoingContext(ctx)
		got = md.Get(RequestIDMetadataKey)
		return nil
	}
	require.NoError(t, UnaryClientRequestIDInterceptor()(ctx, "/m", nil, nil, nil, invoker))
	assert.Equal(t, []string{"http-id"}, got)
}

func TestServerEchoesRequestID(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv, _ := NewServer()
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(UnaryClientRequestIDInterceptor()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	var header metadata.MD
	ctx := WithRequestID(context.Background(), "req-42")
	_, err = healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{}, grpc.Header(&header))
	require.NoError(t, err)
	assert.Equal(t, []string{"req-42"}, header.Get(RequestIDMetadataKey))
}

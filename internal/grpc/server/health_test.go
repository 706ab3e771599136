package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/magabrotheeeer/presale-service/internal/config"
)

func startServer(t *testing.T, mode string) (*Server, healthpb.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := New(slog.New(slog.NewTextHandler(io.Discard, nil)), mode)
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.GracefulStop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return srv, healthpb.NewHealthClient(conn)
}

func TestHealth_ByBackendMode(t *testing.T) {
	tests := []struct {
		mode string
		want healthpb.HealthCheckResponse_ServingStatus
	}{
		{mode: config.BackendREST, want: healthpb.HealthCheckResponse_SERVING},
		{mode: config.BackendPostgres, want: healthpb.HealthCheckResponse_SERVING},
		{mode: config.BackendOffline, want: healthpb.HealthCheckResponse_NOT_SERVING},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			_, client := startServer(t, tt.mode)

			overall, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{})
			require.NoError(t, err)
			assert.Equal(t, healthpb.HealthCheckResponse_SERVING, overall.GetStatus())

			presale, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
			require.NoError(t, err)
			assert.Equal(t, tt.want, presale.GetStatus())
		})
	}
}

func TestHealth_SetBackendMode(t *testing.T) {
	srv, client := startServer(t, config.BackendOffline)

	srv.SetBackendMode(config.BackendREST)

	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestHealth_UnknownService(t *testing.T) {
	_, client := startServer(t, config.BackendREST)

	_, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "billing"})
	require.Error(t, err)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

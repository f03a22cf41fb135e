package grpc

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer implements the gRPC health checking protocol.
type HealthServer struct {
	logger *zap.Logger
	grpc_health_v1.UnimplementedHealthServer
}

// NewHealthServer returns a new HealthServer.
func NewHealthServer(logger *zap.Logger) *HealthServer {
	return &HealthServer{logger: logger.Named("grpc_health")}
}

// Check implements the Check method of the Health service.
func (s *HealthServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	s.logger.Debug("health check requested", zap.String("service", req.GetService()))
	return &grpc_health_v1.HealthCheckResponse{
		Status: grpc_health_v1.HealthCheckResponse_SERVING,
	}, nil
}

// Watch implements the Watch method of the Health service. It sends one
// SERVING status and holds the stream open until the client cancels.
func (s *HealthServer) Watch(req *grpc_health_v1.HealthCheckRequest, stream grpc_health_v1.Health_WatchServer) error {
	err := stream.Send(&grpc_health_v1.HealthCheckResponse{
		Status: grpc_health_v1.HealthCheckResponse_SERVING,
	})
	if err != nil {
		return err
	}
	<-stream.Context().Done()
	return stream.Context().Err()
}

// Register registers the health server with the given gRPC server.
func (s *HealthServer) Register(server *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(server, s)
}

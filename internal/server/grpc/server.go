package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Users is the part of services.UserService the gRPC layer depends on.
type Users interface {
	ResolveToken(token string) (*auth.Claims, error)
	CurrentUser(ctx context.Context, claims *auth.Claims) (*models.User, error)
}

type GRPCServer struct {
	address string
	users   Users
	logger  logging.Logger
	health  *health.Server
	srv     *grpc.Server
}

func NewGRPCServer(a string, l logging.Logger, us Users) *GRPCServer {
	s := &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		users:   us,
		health:  health.NewServer(),
	}

	s.srv = grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))

	RegisterIdentityServer(s.srv, s)
	healthpb.RegisterHealthServer(s.srv, s.health)

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(IdentityServiceName, healthpb.HealthCheckResponse_SERVING)

	return s
}

// Serve accepts connections on lis until Stop or GracefulStop.
func (s *GRPCServer) Serve(lis net.Listener) error {
	return s.srv.Serve(lis)
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		s.srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := s.Serve(listen); err != nil {
		return err
	}

	return nil
}

package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/dmitrijs2005/authkeeper/internal/common"
)

func (s *GRPCServer) Introspect(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {

	claims, err := s.users.ResolveToken(req.GetValue())
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	fields := map[string]any{
		"sub":  claims.Subject,
		"role": claims.Role.String(),
		"uid":  claims.UserID,
	}
	if claims.ExpiresAt != nil {
		fields["exp"] = claims.ExpiresAt.Unix()
	}

	return s.toStruct(ctx, fields)
}

func (s *GRPCServer) WhoAmI(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {

	claims, ok := claimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	u, err := s.users.CurrentUser(ctx, claims)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return s.toStruct(ctx, map[string]any{
		"id":    u.ID,
		"email": u.Email,
		"role":  u.Role.String(),
	})
}

func (s *GRPCServer) toStruct(ctx context.Context, fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		s.logger.Error(ctx, "build response", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

// toStatus maps service errors to gRPC status codes without leaking details.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, "invalid token")
	case errors.Is(err, common.ErrNotFound):
		return status.Error(codes.NotFound, "user not found")
	case errors.Is(err, common.ErrStoreUnavailable):
		s.logger.Error(ctx, "store unavailable", "error", err)
		return status.Error(codes.Unavailable, "service temporarily unavailable")
	default:
		s.logger.Error(ctx, "request failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}

package grpc

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var authenticatedMethods = map[string]bool{
	LogoutMethod:      true,
	CurrentUserMethod: true,
}

// accessTokenInterceptor verifies the access_token metadata value on
// authenticated methods and stores the subject id in the context.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !authenticatedMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 {
			accessToken = values[0]
		}
	}
	if accessToken == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	claims, err := s.verifier.Verify(accessToken, auth.KindAccess)
	if err != nil {
		s.logger.Debug(ctx, "access token rejected", "method", info.FullMethod, "error", err)
		return nil, status.Error(codes.Unauthenticated, "unauthorized request")
	}

	return handler(common.WithUserID(ctx, claims.SubjectID), req)
}

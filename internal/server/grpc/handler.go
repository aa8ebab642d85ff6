package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	res, err := s.users.Login(ctx, services.LoginInput{
		UserName: fields["username"].GetStringValue(),
		Email:    fields["email"].GetStringValue(),
		Password: fields["password"].GetStringValue(),
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return s.toStruct(ctx, map[string]any{
		"user":         userFields(res.User),
		"accessToken":  res.Tokens.AccessToken,
		"refreshToken": res.Tokens.RefreshToken,
	})
}

func (s *GRPCServer) RefreshToken(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	pair, err := s.users.RefreshToken(ctx, req.GetValue())
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return s.toStruct(ctx, map[string]any{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

func (s *GRPCServer) Logout(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	userID, ok := common.UserIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized request")
	}
	if err := s.users.Logout(ctx, userID); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) CurrentUser(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	userID, ok := common.UserIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized request")
	}
	u, err := s.users.CurrentUser(ctx, userID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return s.toStruct(ctx, userFields(*u))
}

func userFields(u models.PublicUser) map[string]any {
	return map[string]any{
		"_id":        u.ID,
		"username":   u.UserName,
		"email":      u.Email,
		"fullName":   u.FullName,
		"avatar":     u.Avatar,
		"coverImage": u.CoverImage,
		"createdAt":  u.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updatedAt":  u.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (s *GRPCServer) toStruct(ctx context.Context, m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		s.logger.Error(ctx, "encode response failed", "error", err)
		return nil, status.Error(codes.Internal, common.GenericInternalMessage)
	}
	return out, nil
}

func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	var code codes.Code
	switch common.Kind(err) {
	case common.ErrorValidation:
		code = codes.InvalidArgument
	case common.ErrorNotFound:
		code = codes.NotFound
	case common.ErrorUnauthenticated:
		code = codes.Unauthenticated
	case common.ErrorConflict:
		code = codes.AlreadyExists
	default:
		s.logger.Error(ctx, "request failed", "error", err)
		code = codes.Internal
	}
	return status.Error(code, common.PublicMessage(err))
}

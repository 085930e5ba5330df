// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name. It is also the key
// the health service reports under.
const ServiceName = "authd.v1.AuthService"

// Full method names.
const (
	IssueTokenMethod   = "/" + ServiceName + "/IssueToken"
	AuthenticateMethod = "/" + ServiceName + "/Authenticate"
)

// AuthServiceServer is the server API for the auth service.
type AuthServiceServer interface {
	IssueToken(ctx context.Context, req *IssueTokenRequest) (*IssueTokenResponse, error)
	Authenticate(ctx context.Context, req *AuthenticateRequest) (*AuthenticateResponse, error)
}

// AuthServiceDesc describes the auth service for grpc.Server.RegisterService.
var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "IssueToken", Handler: issueTokenHandler},
		{MethodName: "Authenticate", Handler: authenticateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "authd/v1/auth",
}

// RegisterAuthServiceServer registers srv on s.
func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&AuthServiceDesc, srv)
}

func issueTokenHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) { //nolint:revive // grpc handler signature
	in := new(IssueTokenRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthServiceServer).IssueToken(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: IssueTokenMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AuthServiceServer).IssueToken(ctx, req.(*IssueTokenRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func authenticateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) { //nolint:revive // grpc handler signature
	in := new(AuthenticateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthServiceServer).Authenticate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AuthenticateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AuthServiceServer).Authenticate(ctx, req.(*AuthenticateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

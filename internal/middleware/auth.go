package middleware

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type contextKey string

const SubjectKey contextKey = "subject"

// TokenVerifier resolves a bearer token to its subject.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// AuthInterceptor is a gRPC interceptor that verifies operator JWTs
type AuthInterceptor struct {
	verifier TokenVerifier
	// Methods that don't require authentication
	publicMethods map[string]bool
}

func NewAuthInterceptor(v TokenVerifier, public ...string) *AuthInterceptor {
	pm := make(map[string]bool, len(public))
	for _, m := range public {
		pm[m] = true
	}
	return &AuthInterceptor{verifier: v, publicMethods: pm}
}

// Unary returns a server interceptor function to authenticate unary RPCs
func (interceptor *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if interceptor.publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		ctx, err := interceptor.authenticate(ctx)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

func (interceptor *AuthInterceptor) authenticate(ctx context.Context) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx, status.Errorf(codes.Unauthenticated, "metadata is not provided")
	}

	values := md["authorization"]
	if len(values) == 0 {
		return ctx, status.Errorf(codes.Unauthenticated, "authorization token is not provided")
	}

	// Token format: "Bearer <token>"
	accessToken, ok := strings.CutPrefix(values[0], "Bearer ")
	if !ok {
		return ctx, status.Errorf(codes.Unauthenticated, "invalid authorization format")
	}

	subject, err := interceptor.verifier.Verify(accessToken)
	if err != nil {
		return ctx, status.Errorf(codes.Unauthenticated, "invalid token: %v", err)
	}
	return context.WithValue(ctx, SubjectKey, subject), nil
}

// GetSubject extracts the authenticated subject from context
func GetSubject(ctx context.Context) (string, error) {
	subject, ok := ctx.Value(SubjectKey).(string)
	if !ok {
		return "", status.Errorf(codes.Internal, "subject not found in context")
	}
	return subject, nil
}

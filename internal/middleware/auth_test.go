package middleware

import (
	"context"
	"testing"

	"github.com/amityadav/clipping/internal/token"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestUnaryInterceptor(t *testing.T) {
	tm := token.NewManager("secret")
	good, _ := tm.Generate("ops")
	interceptor := NewAuthInterceptor(tm, "/clipping.IngestService/LockStatus").Unary()

	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		sub, _ := GetSubject(ctx)
		return sub, nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: "/clipping.IngestService/Run"}

	withAuth := func(v string) context.Context {
		return metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", v))
	}

	got, err := interceptor(withAuth("Bearer "+good), nil, info, handler)
	if err != nil || got != "ops" {
		t.Fatalf("valid token: got %v, %v", got, err)
	}

	for name, ctx := range map[string]context.Context{
		"no metadata": context.Background(),
		"no bearer":   withAuth(good),
		"bad token":   withAuth("Bearer nope"),
	} {
		_, err := interceptor(ctx, nil, info, handler)
		if status.Code(err) != codes.Unauthenticated {
			t.Errorf("%s: code = %v", name, status.Code(err))
		}
	}

	public := &grpc.UnaryServerInfo{FullMethod: "/clipping.IngestService/LockStatus"}
	if _, err := interceptor(context.Background(), nil, public, handler); err != nil {
		t.Errorf("public method rejected: %v", err)
	}
}

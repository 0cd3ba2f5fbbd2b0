package grpcx

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/clinicboard/clinicboard/libs/httpx"
)

// RequestIDMetadataKey follows gRPC metadata conventions (lowercase).
const RequestIDMetadataKey = "x-request-id"

// UnaryClientRequestIDInterceptor carries the HTTP request id into outgoing
// gRPC metadata so remote settings lookups correlate with the access log.
func UnaryClientRequestIDInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if id := httpx.RequestIDFromContext(ctx); id != "" {
			ctx = metadata.AppendToOutgoingContext(ctx, RequestIDMetadataKey, id)
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

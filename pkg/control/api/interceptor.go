package api

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ReadOnlyInterceptor creates a gRPC unary interceptor that only allows read-only operations.
// NewServer does not install it; the server listens on TCP only, with no Unix socket listener.
func ReadOnlyInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		// Check if this is a read-only method
		if !isReadOnlyMethod(info.FullMethod) {
			return nil, status.Errorf(
				codes.PermissionDenied,
				"write operations not allowed on this connection - use a TCP connection with mTLS (fleetctl cluster request-cert <token> --manager <addr>)",
			)
		}

		// Allow read-only operations
		return handler(ctx, req)
	}
}

// isReadOnlyMethod checks if a gRPC method is read-only
func isReadOnlyMethod(method string) bool {
	// Extract method name from full path (e.g., "/fleet.v1.FleetAPI/ListLabs" -> "ListLabs")
	parts := strings.Split(method, "/")
	if len(parts) < 2 {
		return false
	}
	methodName := parts[len(parts)-1]

	// Read-only method-name prefixes; streaming reads are allowed by exact name below
	readOnlyPrefixes := []string{
		"List",
		"Get",
		"Inspect",
		"Watch",
		"Describe",
		"Show",
	}

	for _, prefix := range readOnlyPrefixes {
		if strings.HasPrefix(methodName, prefix) {
			return true
		}
	}

	// Special cases: StreamEvents is read-only (event streaming)
	readOnlyMethods := []string{
		"StreamEvents",
	}

	for _, allowedMethod := range readOnlyMethods {
		if methodName == allowedMethod {
			return true
		}
	}

	// Default: block
	return false
}

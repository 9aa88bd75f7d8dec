package admin

import (
	"context"
	"fmt"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc"
)

// RegisterGRPC is a no-op fallback when protobuf stubs for the diagnostics
// service have not been generated.
func RegisterGRPC(s *grpc.Server, impl *Server) {}

// RegisterGateway always returns an error, forcing Start to mount the
// native HTTP handlers registered by Server.RegisterHTTP.
func RegisterGateway(ctx context.Context, mux *runtime.ServeMux, endpoint string, opts []grpc.DialOption) error {
	return fmt.Errorf("admin gateway not available: protobuf stubs not generated")
}

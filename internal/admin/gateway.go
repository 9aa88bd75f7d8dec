package admin

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// Start brings up the gRPC server, the REST gateway (or its native-handler
// fallback), and the Prometheus metrics/health endpoints sharing one
// ops-only mux.
func Start(ctx context.Context, grpcAddr, restAddr, metricsAddr string, impl *Server, metrics interface {
	Handler() http.Handler
}, health interface {
	Handler() http.HandlerFunc
}) (stop func(), err error) {
	grpcServer := grpc.NewServer()
	RegisterGRPC(grpcServer, impl)
	l, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return nil, err
	}
	go func() { _ = grpcServer.Serve(l) }()

	gwMux := http.NewServeMux()
	gw := runtime.NewServeMux(runtime.WithErrorHandler(jsonErrorHandler))
	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if err := RegisterGateway(ctx, gw, grpcAddr, dialOpts); err == nil {
		gwMux.Handle("/", gw)
	} else {
		impl.RegisterHTTP(gwMux)
	}

	root := http.NewServeMux()
	root.Handle("/", gwMux)

	var handler http.Handler = root
	if token := os.Getenv("VALVEGUARD_ADMIN_TOKEN"); token != "" {
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Auth-Token") != token {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			root.ServeHTTP(w, r)
		})
	}

	restServer := &http.Server{Addr: restAddr, Handler: handler}
	go func() { _ = restServer.ListenAndServe() }()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsMux.Handle("/health", health.Handler())
	metricsServer := &http.Server{Addr: metricsAddr, Handler: metricsMux}
	go func() { _ = metricsServer.ListenAndServe() }()

	stop = func() {
		grpcServer.GracefulStop()
		_ = l.Close()
		_ = restServer.Close()
		_ = metricsServer.Close()
	}
	return stop, nil
}

func jsonErrorHandler(ctx context.Context, mux *runtime.ServeMux, marshaler runtime.Marshaler, w http.ResponseWriter, r *http.Request, err error) {
	st, ok := status.FromError(err)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"code":"INTERNAL","message":"internal error"}`))
		return
	}
	httpStatus := runtime.HTTPStatusFromCode(st.Code())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	payload := map[string]interface{}{"code": codeToString(st.Code()), "message": st.Message()}
	b, _ := json.Marshal(payload)
	_, _ = w.Write(b)
}

func codeToString(c codes.Code) string {
	switch c {
	case codes.InvalidArgument:
		return "INVALID_ARGUMENT"
	case codes.NotFound:
		return "NOT_FOUND"
	case codes.FailedPrecondition:
		return "FAILED_PRECONDITION"
	case codes.Unavailable:
		return "UNAVAILABLE"
	case codes.Unauthenticated:
		return "UNAUTHENTICATED"
	default:
		return "INTERNAL"
	}
}

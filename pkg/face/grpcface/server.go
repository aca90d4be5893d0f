package grpcface

import (
    "context"
    "crypto/tls"
    "errors"
    "log"
    "net"
    "sync"
    "time"

    "google.golang.org/grpc"
    "google.golang.org/grpc/credentials"
    "google.golang.org/grpc/health"
    healthpb "google.golang.org/grpc/health/grpc_health_v1"
    "google.golang.org/grpc/keepalive"

    "github.com/carlossantillana/ndn-drop/pkg/face"
    "github.com/carlossantillana/ndn-drop/pkg/internal/logutil"
    obsmetrics "github.com/carlossantillana/ndn-drop/pkg/observability/metrics"
    "github.com/carlossantillana/ndn-drop/pkg/observability/tracing"
)

// Server accepts Interests from remote nodes and injects them into the local
// hub, so every prefix registered on the hub is reachable over the network.
type Server struct {
    bind   string
    hub    *face.Hub
    tlsCfg *tls.Config
    logger *log.Logger

    mu     sync.Mutex
    lis    net.Listener
    srv    *grpc.Server
    health *health.Server
}

func NewServer(bind string, hub *face.Hub, logger *log.Logger) *Server {
    if logger == nil { logger = log.Default() }
    return &Server{bind: bind, hub: hub, logger: logger}
}

// UseTLS enables TLS for the server using the provided config.
func (s *Server) UseTLS(cfg *tls.Config) *Server { s.tlsCfg = cfg; return s }

type forwarderImpl struct{ hub *face.Hub }

func (f *forwarderImpl) Express(ctx context.Context, in *expressRequest) (*expressReply, error) {
    if in == nil || in.Interest.Name == "" { return nil, errors.New("grpcface: empty interest") }
    ctx, end := tracing.StartSpan(ctx, "grpc.express", in.Interest.Name)
    defer end()
    if dl, ok := ctx.Deadline(); ok {
        if left := time.Until(dl); in.Interest.Lifetime <= 0 || left < in.Interest.Lifetime { in.Interest.Lifetime = left }
    }
    var r face.Result
    select {
    case r = <-f.hub.Express(ctx, face.LocalOrigin, in.Interest):
    case <-ctx.Done():
        r = face.Result{Kind: face.Expired}
    }
    obsmetrics.RemoteInterests.WithLabelValues(r.Kind.String()).Inc()
    return &expressReply{Kind: r.Kind, Data: r.Data, Reason: r.Reason}, nil
}

// Start listens on the bind address and serves until ctx is done or Stop is
// called.
func (s *Server) Start(ctx context.Context) error {
    lis, err := net.Listen("tcp", s.bind)
    if err != nil { return err }
    opts := []grpc.ServerOption{
        grpc.ForceServerCodec(jsonCodec{}),
        grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{MinTime: 5 * time.Second, PermitWithoutStream: true}),
        grpc.KeepaliveParams(keepalive.ServerParameters{Time: 30 * time.Second, Timeout: 10 * time.Second}),
    }
    if s.tlsCfg != nil { opts = append(opts, grpc.Creds(credentials.NewTLS(s.tlsCfg))) }
    srv := grpc.NewServer(opts...)
    hs := health.NewServer()
    healthpb.RegisterHealthServer(srv, hs)
    srv.RegisterService(&_Forwarder_serviceDesc, &forwarderImpl{hub: s.hub})

    s.mu.Lock()
    s.lis, s.srv, s.health = lis, srv, hs
    s.mu.Unlock()

    go func() {
        <-ctx.Done()
        stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
        defer cancel()
        _ = s.Stop(stopCtx)
    }()
    go func() {
        if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
            logutil.Warnf(s.logger, "grpcface: serve: %v", err)
        }
    }()
    logutil.Infof(s.logger, "grpcface: forwarder listening on %s", lis.Addr())
    return nil
}

// Addr returns the bound address once started, the configured one before.
func (s *Server) Addr() string {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.lis != nil { return s.lis.Addr().String() }
    return s.bind
}

// Stop drains in-flight calls, falling back to a hard stop when ctx ends.
func (s *Server) Stop(ctx context.Context) error {
    s.mu.Lock()
    srv, hs := s.srv, s.health
    s.srv, s.health = nil, nil
    s.mu.Unlock()
    if srv == nil { return nil }
    hs.Shutdown()
    ch := make(chan struct{})
    go func() { srv.GracefulStop(); close(ch) }()
    select {
    case <-ch:
    case <-ctx.Done():
        srv.Stop()
    }
    return nil
}

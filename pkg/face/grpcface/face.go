// Package grpcface connects hubs on different hosts over gRPC.
//
// A node runs a Server that injects remote Interests into its local hub, and
// uses a Face that expresses Interests to every peer returned by discovery.
// Register and Put go to the local hub, so handlers registered through the
// Face answer both local and remote Interests.
package grpcface

import (
    "context"
    "crypto/tls"
    "errors"
    "log"
    "time"

    "google.golang.org/grpc"
    "google.golang.org/grpc/backoff"
    "google.golang.org/grpc/codes"
    "google.golang.org/grpc/credentials"
    "google.golang.org/grpc/credentials/insecure"
    "google.golang.org/grpc/keepalive"
    "google.golang.org/grpc/status"

    "github.com/carlossantillana/ndn-drop/pkg/discovery"
    "github.com/carlossantillana/ndn-drop/pkg/face"
    "github.com/carlossantillana/ndn-drop/pkg/internal/logutil"
    "github.com/carlossantillana/ndn-drop/pkg/observability/tracing"
    "github.com/carlossantillana/ndn-drop/pkg/security"
)

type Options struct {
    Hub       *face.Hub
    Discovery discovery.Discovery
    // Self is this node's advertised forwarder address; it is skipped when
    // fanning out.
    Self    string
    TLS     *tls.Config
    IdleTTL time.Duration
    Logger  *log.Logger
    Verbose bool
}

// Face is a face.Face whose Express reaches remote nodes.
type Face struct {
    opts  Options
    local face.Face
    conns *connManager
}

var _ face.Face = (*Face)(nil)

func New(opts Options) (*Face, error) {
    if opts.Hub == nil { return nil, errors.New("grpcface: nil hub") }
    if opts.Discovery == nil { return nil, errors.New("grpcface: nil discovery") }
    if opts.Logger == nil { opts.Logger = log.Default() }
    f := &Face{opts: opts, local: opts.Hub.NewFace()}
    f.conns = newConnManager(opts.IdleTTL, f.dial)
    return f, nil
}

func (f *Face) dial(target string) (*grpc.ClientConn, error) {
    creds := insecure.NewCredentials()
    if f.opts.TLS != nil { creds = credentials.NewTLS(f.opts.TLS) }
    return grpc.NewClient(target,
        grpc.WithTransportCredentials(creds),
        grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{}), grpc.CallContentSubtype("json")),
        grpc.WithConnectParams(grpc.ConnectParams{Backoff: backoff.DefaultConfig, MinConnectTimeout: 500 * time.Millisecond}),
        grpc.WithKeepaliveParams(keepalive.ClientParameters{Time: 20 * time.Second, Timeout: 5 * time.Second, PermitWithoutStream: true}),
    )
}

func (f *Face) peers() []string {
    var out []string
    for _, p := range f.opts.Discovery.Seeds() {
        if p != "" && p != f.opts.Self { out = append(out, p) }
    }
    return out
}

// Express sends in to every peer and resolves with the first valid Data. If
// every peer rejects it the first NACK is returned; otherwise the result is
// Expired once the lifetime runs out.
func (f *Face) Express(ctx context.Context, in face.Interest) <-chan face.Result {
    peers := f.peers()
    if len(peers) == 0 {
        logutil.Debugf(f.opts.Logger, f.opts.Verbose, "grpcface: no peers for %s", in.Name)
        return face.Resolved(face.Nack(face.NackNoRoute))
    }
    in.Name = face.Canonical(in.Name)
    if in.Lifetime <= 0 { in.Lifetime = face.DefaultLifetime }

    out := make(chan face.Result, 1)
    go func() {
        cctx, cancel := context.WithTimeout(ctx, in.Lifetime)
        defer cancel()
        results := make(chan face.Result, len(peers))
        for _, p := range peers {
            go func(addr string) { results <- f.expressPeer(cctx, addr, in) }(p)
        }
        var firstNack *face.Result
        nacks := 0
        for range peers {
            r := <-results
            switch r.Kind {
            case face.Success:
                out <- r
                return
            case face.Rejected:
                nacks++
                if firstNack == nil { firstNack = &r }
            }
        }
        if nacks == len(peers) {
            out <- *firstNack
            return
        }
        out <- face.Result{Kind: face.Expired}
    }()
    return out
}

func (f *Face) expressPeer(ctx context.Context, addr string, in face.Interest) face.Result {
    ctx, end := tracing.StartSpan(ctx, "grpcface.express", in.Name)
    defer end()
    cc, release, err := f.conns.get(addr)
    if err != nil {
        logutil.Warnf(f.opts.Logger, "grpcface: dial %s: %v", addr, err)
        return face.Nack(face.NackNoRoute)
    }
    defer release()
    var reply expressReply
    if err := cc.Invoke(ctx, expressMethod, &expressRequest{Interest: in}, &reply); err != nil {
        switch status.Code(err) {
        case codes.DeadlineExceeded, codes.Canceled:
            return face.Result{Kind: face.Expired}
        default:
            logutil.Debugf(f.opts.Logger, f.opts.Verbose, "grpcface: %s via %s: %v", in.Name, addr, err)
            return face.Nack(face.NackNoRoute)
        }
    }
    r := reply.result()
    if r.Kind == face.Success && !security.Verify(r.Data) {
        logutil.Warnf(f.opts.Logger, "grpcface: dropping data %s from %s: bad signature", r.Data.Name, addr)
        return face.Result{Kind: face.Expired}
    }
    return r
}

func (f *Face) Register(prefix string, h face.InterestHandler) (face.Registration, error) {
    return f.local.Register(prefix, h)
}

func (f *Face) Put(d face.Data) error { return f.local.Put(d) }

// Close drops cached peer connections and detaches from the hub.
func (f *Face) Close() error {
    f.conns.close()
    return f.local.Close()
}

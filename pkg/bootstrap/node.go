// Package bootstrap assembles a probing client or a drop server, together
// with its forwarder, discovery backend and status endpoint, from a Config.
package bootstrap

import (
    "context"
    "crypto/tls"
    "errors"
    "fmt"
    "io"
    "log"
    "strings"
    "sync"
    "time"

    "github.com/google/uuid"

    "github.com/carlossantillana/ndn-drop/pkg/discovery"
    dDNS "github.com/carlossantillana/ndn-drop/pkg/discovery/dns"
    dEtcd "github.com/carlossantillana/ndn-drop/pkg/discovery/etcd"
    dFile "github.com/carlossantillana/ndn-drop/pkg/discovery/file"
    dGossip "github.com/carlossantillana/ndn-drop/pkg/discovery/gossip"
    dStatic "github.com/carlossantillana/ndn-drop/pkg/discovery/static"
    "github.com/carlossantillana/ndn-drop/pkg/face"
    "github.com/carlossantillana/ndn-drop/pkg/face/grpcface"
    "github.com/carlossantillana/ndn-drop/pkg/internal/logutil"
    "github.com/carlossantillana/ndn-drop/pkg/neighbor"
    obsmetrics "github.com/carlossantillana/ndn-drop/pkg/observability/metrics"
    "github.com/carlossantillana/ndn-drop/pkg/probe"
    tlsx "github.com/carlossantillana/ndn-drop/pkg/security/tlsconfig"
    "github.com/carlossantillana/ndn-drop/pkg/server"
    "github.com/carlossantillana/ndn-drop/pkg/stats"
    "github.com/carlossantillana/ndn-drop/pkg/status"
)

// Node is a running client or server and everything it owns.
type Node struct {
    cfg   Config
    runID string

    mu      sync.Mutex
    started time.Time
    stopped bool
    closers []io.Closer
    stops   []func()

    hub       *face.Hub
    face      face.Face
    fwd       *grpcface.Server
    disc      discovery.Discovery
    table     *neighbor.Table
    client    *probe.Client
    collector *stats.Collector
    server    *server.DropServer
    status    *status.Server
    done      chan struct{}
    quit      chan struct{}
    wg        sync.WaitGroup
}

// Build validates cfg and returns an unstarted node.
func Build(cfg Config) (*Node, error) {
    if err := cfg.Validate(); err != nil { return nil, err }
    if cfg.Logger == nil { cfg.Logger = log.Default() }
    n := &Node{cfg: cfg, runID: uuid.NewString(), done: make(chan struct{}), quit: make(chan struct{})}
    n.collector = stats.New(stats.Options{Prefix: cfg.Prefix, ExcludeNackRtt: cfg.ExcludeNackRtt})
    if cfg.Mode == ModeClient {
        n.table = neighbor.New(neighbor.Options{TTL: cfg.TTL, Path: cfg.NeighborFile, Self: cfg.Node, Logger: cfg.Logger, Verbose: cfg.Verbose})
    }
    return n, nil
}

// Run builds and starts a node.
func Run(ctx context.Context, cfg Config) (*Node, error) {
    n, err := Build(cfg)
    if err != nil { return nil, err }
    if err := n.Start(ctx); err != nil { return nil, err }
    return n, nil
}

func (n *Node) RunID() string { return n.runID }

// Done is closed when the client run or the server's drop budget completes.
func (n *Node) Done() <-chan struct{} { return n.done }

func (n *Node) Statistics() stats.Statistics { return n.collector.Statistics() }

// Table is nil for servers.
func (n *Node) Table() *neighbor.Table { return n.table }

// ForwarderAddr is the bound gRPC forwarder address, empty when in-process.
func (n *Node) ForwarderAddr() string {
    if n.fwd == nil { return "" }
    return n.fwd.Addr()
}

func (n *Node) StatusAddr() string {
    if n.status == nil { return "" }
    return n.status.Addr()
}

// Start brings up the forwarder, discovery, face, the probe client or drop
// server, and the status endpoint, in that order. On error everything already
// started is stopped again.
func (n *Node) Start(ctx context.Context) error {
    n.mu.Lock()
    if !n.started.IsZero() || n.stopped {
        n.mu.Unlock()
        return errors.New("bootstrap: node already started")
    }
    n.started = time.Now()
    n.mu.Unlock()

    obsmetrics.Register()
    if err := n.start(ctx); err != nil {
        n.Stop()
        return err
    }
    return nil
}

func (n *Node) start(ctx context.Context) error {
    cfg := n.cfg
    srvTLS, cliTLS, err := n.tlsConfigs()
    if err != nil { return err }

    n.hub = cfg.Hub
    if n.hub == nil {
        n.hub = face.NewHub(face.HubOptions{Logger: cfg.Logger, Verbose: cfg.Verbose})
        n.closers = append(n.closers, n.hub)
    }

    if cfg.Listen != "" {
        n.fwd = grpcface.NewServer(cfg.Listen, n.hub, cfg.Logger)
        if srvTLS != nil { n.fwd.UseTLS(srvTLS) }
        if err := n.fwd.Start(ctx); err != nil { return fmt.Errorf("forwarder: %w", err) }
        n.stops = append(n.stops, func() { _ = n.fwd.Stop(context.Background()) })
    }

    if cfg.networked() {
        disc, err := n.discovery(ctx)
        if err != nil { return err }
        n.disc = disc
        gf, err := grpcface.New(grpcface.Options{Hub: n.hub, Discovery: disc, Self: n.advertised(), TLS: cliTLS, Logger: cfg.Logger, Verbose: cfg.Verbose})
        if err != nil { return err }
        n.face = gf
    } else {
        n.face = n.hub.NewFace()
    }
    n.closers = append(n.closers, n.face)

    switch cfg.Mode {
    case ModeClient:
        if err := n.startClient(ctx); err != nil { return err }
    case ModeServer:
        if err := n.startServer(); err != nil { return err }
    }

    if cfg.StatusAddr != "" {
        n.status = status.NewServer(cfg.StatusAddr, cfg.Logger)
        if srvTLS != nil { n.status.UseTLS(srvTLS) }
        if err := n.status.Start(ctx, n.Report, n.neighbors); err != nil { return fmt.Errorf("status: %w", err) }
        n.stops = append(n.stops, func() { _ = n.status.Stop(context.Background()) })
    }
    return nil
}

func (n *Node) tlsConfigs() (*tls.Config, *tls.Config, error) {
    t := n.cfg.TLS
    o := tlsx.Options{Enable: t.Enable, CAFile: t.CA, CertFile: t.Cert, KeyFile: t.Key, ServerName: t.ServerName, InsecureSkipVerify: t.SkipVerify, Reload: t.Reload}
    srv, err := o.Server()
    if err != nil { return nil, nil, fmt.Errorf("tls server config: %w", err) }
    cli, err := o.Client()
    if err != nil { return nil, nil, fmt.Errorf("tls client config: %w", err) }
    return srv, cli, nil
}

// advertised is the forwarder address peers should dial.
func (n *Node) advertised() string {
    if n.cfg.Advertise != "" { return n.cfg.Advertise }
    return n.ForwarderAddr()
}

// identity names this node in gossip and etcd.
func (n *Node) identity() string {
    if n.cfg.Node != "" { return n.cfg.Node }
    return "drop-" + n.runID[:8]
}

func (n *Node) discovery(ctx context.Context) (discovery.Discovery, error) {
    d := n.cfg.Discovery
    switch d.Kind {
    case "file":
        return dFile.New(dFile.Options{Path: d.FilePath, Env: d.FileEnv, Refresh: d.Refresh}), nil
    case "dns":
        return dDNS.New(dDNS.Options{Names: discovery.SplitList(d.DNSNames), Port: d.DNSPort, Refresh: d.Refresh, Logger: n.cfg.Logger}), nil
    case "gossip":
        g, err := dGossip.New(dGossip.Options{
            NodeID: n.identity(), Bind: d.GossipBind, FaceAddr: n.advertised(),
            Join: discovery.Normalize(discovery.SplitList(d.GossipJoin)), Logger: n.cfg.Logger, Verbose: n.cfg.Verbose,
        })
        if err != nil { return nil, err }
        n.closers = append(n.closers, g)
        return g, nil
    case "etcd":
        rctx, cancel := context.WithTimeout(ctx, 10*time.Second)
        defer cancel()
        r, err := dEtcd.New(rctx, dEtcd.Options{
            Endpoints: discovery.Normalize(discovery.SplitList(d.EtcdEndpoints)), Prefix: d.EtcdPrefix, TTL: d.EtcdTTL,
            NodeID: n.identity(), FaceAddr: n.advertised(), Logger: n.cfg.Logger, Verbose: n.cfg.Verbose,
        })
        if err != nil { return nil, err }
        n.closers = append(n.closers, r)
        return r, nil
    default:
        return dStatic.Parse(d.Peers), nil
    }
}

func (n *Node) startClient(ctx context.Context) error {
    cfg := n.cfg
    if err := n.table.Load(); err != nil { logutil.Warnf(cfg.Logger, "bootstrap: restoring neighbors: %v", err) }
    observers := []probe.Observer{n.collector}
    if cfg.Output != nil { observers = append(observers, probe.NewTracer(cfg.Output, cfg.Prefix, cfg.Timestamp)) }
    opts := probe.Options{
        Prefix: cfg.Prefix, Home: cfg.Home, Node: cfg.Node, Identifier: cfg.Identifier,
        Interval: cfg.Interval, Timeout: cfg.Timeout, MaxProbes: cfg.Count,
        AllowStale: cfg.AllowStale, Events: cfg.events(), Jitter: cfg.Jitter, MaxServe: cfg.MaxServe,
        Heartbeat: cfg.Heartbeat, Table: n.table, Observers: observers,
        Logger: cfg.Logger, Verbose: cfg.Verbose,
    }
    if cfg.Start >= 0 {
        opts.StartSeq = uint64(cfg.Start)
    } else {
        opts.RandomSeq = true
    }
    c, err := probe.New(n.face, opts)
    if err != nil { return err }
    if cfg.Output != nil { fmt.Fprintf(cfg.Output, "DROP %s\n", cfg.Prefix) }
    if err := c.Start(ctx); err != nil { return err }
    n.client = c
    n.stops = append(n.stops, c.Stop)
    n.wg.Add(1)
    go func() {
        defer n.wg.Done()
        select {
        case <-c.Done():
            close(n.done)
        case <-ctx.Done():
        case <-n.quit:
        }
    }()
    return nil
}

func (n *Node) startServer() error {
    cfg := n.cfg
    s, err := server.New(n.face, server.Options{
        Prefix: cfg.Prefix, PayloadSize: cfg.PayloadSize, Freshness: cfg.Freshness, MaxDrops: cfg.MaxDrops,
        Logger: cfg.Logger, Verbose: cfg.Verbose,
    })
    if err != nil { return err }
    if err := s.Start(); err != nil { return err }
    n.server = s
    n.stops = append(n.stops, s.Stop)
    n.wg.Add(1)
    go func() {
        defer n.wg.Done()
        select {
        case <-s.Done():
            close(n.done)
        case <-n.quit:
        }
    }()
    return nil
}

func (n *Node) neighbors() string {
    if n.table == nil { return "" }
    return n.table.Serialize()
}

// Report is the node's /status payload.
func (n *Node) Report(context.Context) (status.Report, error) {
    st := n.collector.Statistics()
    r := status.Report{Node: n.identity(), RunID: n.runID, Mode: n.cfg.Mode, Started: n.started}
    switch {
    case n.client != nil:
        r.State = n.client.State().String()
        r.Neighbors = n.table.Snapshot()
        r.Statistics = &st
        r.Served = n.client.Served()
    case n.server != nil:
        r.State = "serving"
        r.Drops = n.server.NDrops()
    default:
        r.State = "idle"
    }
    if n.disc != nil { r.Peers = n.disc.Seeds() }
    return r, nil
}

// Stop tears the node down in reverse start order. It is idempotent.
func (n *Node) Stop() {
    n.mu.Lock()
    if n.stopped {
        n.mu.Unlock()
        return
    }
    n.stopped = true
    stops, closers := n.stops, n.closers
    n.mu.Unlock()
    close(n.quit)
    n.wg.Wait()

    for i := len(stops) - 1; i >= 0; i-- { stops[i]() }
    var errs []string
    for i := len(closers) - 1; i >= 0; i-- {
        if err := closers[i].Close(); err != nil { errs = append(errs, err.Error()) }
    }
    if len(errs) > 0 { logutil.Warnf(n.cfg.Logger, "bootstrap: shutdown: %s", strings.Join(errs, "; ")) }
}

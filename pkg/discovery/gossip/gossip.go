// Package gossip discovers peer forwarders through a memberlist cluster.
// Every node gossips its forwarder address as node metadata.
package gossip

import (
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "net"
    "strconv"
    "sync"
    "time"

    "github.com/hashicorp/memberlist"

    "github.com/carlossantillana/ndn-drop/pkg/discovery"
    "github.com/carlossantillana/ndn-drop/pkg/internal/logutil"
)

// metaFace is the metadata key carrying the forwarder address.
const metaFace = "face"

type Options struct {
    NodeID string
    // Bind is the gossip host:port; port 0 picks a free one.
    Bind      string
    Advertise string
    // FaceAddr is the forwarder address announced to peers.
    FaceAddr string
    // Join lists gossip addresses of existing members.
    Join []string

    ProbeInterval time.Duration
    SuspicionMult int
    Logger        *log.Logger
    Verbose       bool
}

// Member is a gossip member and the forwarder it announced.
type Member struct {
    ID       string `json:"id"`
    Addr     string `json:"addr"`
    FaceAddr string `json:"faceAddr,omitempty"`
}

// Gossip implements discovery.Discovery over memberlist.
type Gossip struct {
    opts Options

    mu sync.RWMutex
    ml *memberlist.Memberlist
}

var _ discovery.Discovery = (*Gossip)(nil)

// New creates the memberlist instance and joins opts.Join when given.
func New(opts Options) (*Gossip, error) {
    if opts.NodeID == "" { return nil, errors.New("gossip: empty node id") }
    if opts.Bind == "" { return nil, errors.New("gossip: empty bind address") }
    if opts.Logger == nil { opts.Logger = log.Default() }

    cfg := memberlist.DefaultLANConfig()
    cfg.Name = opts.NodeID
    cfg.Logger = opts.Logger
    host, port, err := splitHostPort(opts.Bind)
    if err != nil { return nil, err }
    if host == "" { host = "0.0.0.0" }
    cfg.BindAddr, cfg.BindPort = host, port
    if opts.Advertise != "" {
        ahost, aport, err := splitHostPort(opts.Advertise)
        if err != nil { return nil, err }
        cfg.AdvertiseAddr, cfg.AdvertisePort = ahost, aport
    }
    if opts.ProbeInterval > 0 { cfg.ProbeInterval = opts.ProbeInterval }
    if opts.SuspicionMult > 0 { cfg.SuspicionMult = opts.SuspicionMult }

    meta, err := json.Marshal(map[string]string{metaFace: opts.FaceAddr})
    if err != nil { return nil, err }
    if len(meta) > memberlist.MetaMaxSize { return nil, fmt.Errorf("gossip: face address too long (%d bytes of metadata)", len(meta)) }
    cfg.Delegate = metaDelegate(meta)
    cfg.Events = &eventLogger{logger: opts.Logger, verbose: opts.Verbose}

    ml, err := memberlist.Create(cfg)
    if err != nil { return nil, fmt.Errorf("gossip: create: %w", err) }
    g := &Gossip{opts: opts, ml: ml}
    if len(opts.Join) > 0 {
        n, err := ml.Join(opts.Join)
        if err != nil && n == 0 {
            _ = ml.Shutdown()
            return nil, fmt.Errorf("gossip: join %v: %w", opts.Join, err)
        }
        logutil.Infof(opts.Logger, "gossip: %s joined %d of %d seeds", opts.NodeID, n, len(opts.Join))
    }
    return g, nil
}

// Addr returns the gossip address other nodes can join.
func (g *Gossip) Addr() string {
    g.mu.RLock()
    defer g.mu.RUnlock()
    if g.ml == nil { return "" }
    n := g.ml.LocalNode()
    return net.JoinHostPort(n.Addr.String(), strconv.Itoa(int(n.Port)))
}

// Members lists every live member, including this node.
func (g *Gossip) Members() []Member {
    g.mu.RLock()
    defer g.mu.RUnlock()
    if g.ml == nil { return nil }
    nodes := g.ml.Members()
    out := make([]Member, 0, len(nodes))
    for _, n := range nodes {
        out = append(out, Member{ID: n.Name, Addr: net.JoinHostPort(n.Addr.String(), strconv.Itoa(int(n.Port))), FaceAddr: faceAddr(n.Meta)})
    }
    return out
}

// Seeds returns the forwarder addresses announced by the other members.
func (g *Gossip) Seeds() []string {
    var out []string
    for _, m := range g.Members() {
        if m.ID == g.opts.NodeID || m.FaceAddr == "" { continue }
        out = append(out, m.FaceAddr)
    }
    return discovery.Normalize(out)
}

// HealthScore is memberlist's awareness score; -1 once closed.
func (g *Gossip) HealthScore() int {
    g.mu.RLock()
    defer g.mu.RUnlock()
    if g.ml == nil { return -1 }
    return g.ml.GetHealthScore()
}

// Close leaves the cluster and shuts memberlist down.
func (g *Gossip) Close() error {
    g.mu.Lock()
    ml := g.ml
    g.ml = nil
    g.mu.Unlock()
    if ml == nil { return nil }
    if err := ml.Leave(time.Second); err != nil { logutil.Warnf(g.opts.Logger, "gossip: leave: %v", err) }
    return ml.Shutdown()
}

func faceAddr(meta []byte) string {
    if len(meta) == 0 { return "" }
    var m map[string]string
    if err := json.Unmarshal(meta, &m); err != nil { return "" }
    return m[metaFace]
}

func splitHostPort(addr string) (string, int, error) {
    host, p, err := net.SplitHostPort(addr)
    if err != nil { return "", 0, fmt.Errorf("gossip: invalid address %q: %w", addr, err) }
    port, err := strconv.Atoi(p)
    if err != nil || port < 0 || port > 65535 { return "", 0, fmt.Errorf("gossip: invalid port in %q", addr) }
    return host, port, nil
}

// metaDelegate announces the node metadata and ignores user messages.
type metaDelegate []byte

func (d metaDelegate) NodeMeta(limit int) []byte {
    if len(d) > limit { return nil }
    return d
}
func (metaDelegate) NotifyMsg([]byte)                  {}
func (metaDelegate) GetBroadcasts(int, int) [][]byte   { return nil }
func (metaDelegate) LocalState(bool) []byte            { return nil }
func (metaDelegate) MergeRemoteState([]byte, bool)     {}

type eventLogger struct {
    logger  *log.Logger
    verbose bool
}

func (e *eventLogger) NotifyJoin(n *memberlist.Node) {
    logutil.Debugf(e.logger, e.verbose, "gossip: %s joined (face %s)", n.Name, faceAddr(n.Meta))
}
func (e *eventLogger) NotifyLeave(n *memberlist.Node) {
    logutil.Debugf(e.logger, e.verbose, "gossip: %s left", n.Name)
}
func (e *eventLogger) NotifyUpdate(n *memberlist.Node) {
    logutil.Debugf(e.logger, e.verbose, "gossip: %s updated (face %s)", n.Name, faceAddr(n.Meta))
}

// Package etcd registers this node's forwarder under a lease and watches the
// forwarders registered by other nodes.
package etcd

import (
    "context"
    "errors"
    "fmt"
    "log"
    "strings"
    "sync"
    "time"

    clientv3 "go.etcd.io/etcd/client/v3"

    "github.com/carlossantillana/ndn-drop/pkg/discovery"
    "github.com/carlossantillana/ndn-drop/pkg/internal/logutil"
)

const (
    DefaultPrefix = "/ndndrop/faces/"
    DefaultTTL    = 10
)

type Options struct {
    Endpoints   []string
    DialTimeout time.Duration
    // Client is used instead of dialing Endpoints; it is not closed by Close.
    Client *clientv3.Client

    Prefix   string
    NodeID   string
    FaceAddr string
    // TTL is the lease TTL in seconds.
    TTL int64

    Logger  *log.Logger
    Verbose bool
}

// Registry implements discovery.Discovery from an etcd key prefix.
type Registry struct {
    opts    Options
    cli     *clientv3.Client
    owned   bool
    lease   clientv3.LeaseID
    cancel  context.CancelFunc
    watched chan struct{}

    mu    sync.RWMutex
    peers map[string]string
}

var _ discovery.Discovery = (*Registry)(nil)

// New registers FaceAddr under Prefix+NodeID, loads the current peers and
// starts watching the prefix. ctx bounds the registration calls only.
func New(ctx context.Context, opts Options) (*Registry, error) {
    if opts.NodeID == "" { return nil, errors.New("etcd: empty node id") }
    if opts.Prefix == "" { opts.Prefix = DefaultPrefix }
    if !strings.HasSuffix(opts.Prefix, "/") { opts.Prefix += "/" }
    if opts.TTL <= 0 { opts.TTL = DefaultTTL }
    if opts.DialTimeout <= 0 { opts.DialTimeout = 5 * time.Second }
    if opts.Logger == nil { opts.Logger = log.Default() }

    r := &Registry{opts: opts, cli: opts.Client, peers: make(map[string]string)}
    if r.cli == nil {
        if len(opts.Endpoints) == 0 { return nil, errors.New("etcd: no endpoints") }
        cli, err := clientv3.New(clientv3.Config{Endpoints: opts.Endpoints, DialTimeout: opts.DialTimeout})
        if err != nil { return nil, fmt.Errorf("etcd: client: %w", err) }
        r.cli, r.owned = cli, true
    }
    if err := r.register(ctx); err != nil {
        r.closeClient()
        return nil, err
    }
    rev, err := r.load(ctx)
    if err != nil {
        r.revoke()
        r.closeClient()
        return nil, err
    }
    wctx, cancel := context.WithCancel(context.Background())
    r.cancel = cancel
    r.watched = make(chan struct{})
    go r.watch(wctx, rev)
    logutil.Infof(opts.Logger, "etcd: registered %s -> %s (lease %x, ttl %ds)", r.key(opts.NodeID), opts.FaceAddr, int64(r.lease), opts.TTL)
    return r, nil
}

func (r *Registry) key(id string) string { return r.opts.Prefix + id }

func (r *Registry) register(ctx context.Context) error {
    lease, err := r.cli.Grant(ctx, r.opts.TTL)
    if err != nil { return fmt.Errorf("etcd: grant lease: %w", err) }
    r.lease = lease.ID
    if _, err := r.cli.Put(ctx, r.key(r.opts.NodeID), r.opts.FaceAddr, clientv3.WithLease(lease.ID)); err != nil {
        return fmt.Errorf("etcd: register: %w", err)
    }
    // KeepAlive must outlive ctx, which only bounds startup.
    ka, err := r.cli.KeepAlive(context.Background(), lease.ID)
    if err != nil { return fmt.Errorf("etcd: keepalive: %w", err) }
    go func() {
        for range ka {
        }
        logutil.Debugf(r.opts.Logger, r.opts.Verbose, "etcd: keepalive for lease %x ended", int64(lease.ID))
    }()
    return nil
}

func (r *Registry) load(ctx context.Context) (int64, error) {
    resp, err := r.cli.Get(ctx, r.opts.Prefix, clientv3.WithPrefix())
    if err != nil { return 0, fmt.Errorf("etcd: list %s: %w", r.opts.Prefix, err) }
    r.mu.Lock()
    for _, kv := range resp.Kvs { r.applyLocked(string(kv.Key), string(kv.Value), false) }
    r.mu.Unlock()
    return resp.Header.Revision, nil
}

func (r *Registry) watch(ctx context.Context, rev int64) {
    defer close(r.watched)
    for wr := range r.cli.Watch(ctx, r.opts.Prefix, clientv3.WithPrefix(), clientv3.WithRev(rev+1)) {
        if err := wr.Err(); err != nil {
            logutil.Warnf(r.opts.Logger, "etcd: watch %s: %v", r.opts.Prefix, err)
            continue
        }
        r.mu.Lock()
        for _, ev := range wr.Events {
            r.applyLocked(string(ev.Kv.Key), string(ev.Kv.Value), ev.Type == clientv3.EventTypeDelete)
        }
        r.mu.Unlock()
    }
}

// applyLocked records one key change; keys outside the prefix are ignored.
func (r *Registry) applyLocked(key, value string, deleted bool) {
    id, ok := strings.CutPrefix(key, r.opts.Prefix)
    if !ok || id == "" { return }
    if deleted || value == "" {
        delete(r.peers, id)
        return
    }
    r.peers[id] = value
}

// Peers returns node id -> forwarder address for every registered node.
func (r *Registry) Peers() map[string]string {
    r.mu.RLock()
    defer r.mu.RUnlock()
    out := make(map[string]string, len(r.peers))
    for k, v := range r.peers { out[k] = v }
    return out
}

// Seeds returns the forwarder addresses of the other nodes.
func (r *Registry) Seeds() []string {
    r.mu.RLock()
    defer r.mu.RUnlock()
    out := make([]string, 0, len(r.peers))
    for id, addr := range r.peers {
        if id != r.opts.NodeID { out = append(out, addr) }
    }
    return discovery.Normalize(out)
}

// Close stops the watch, revokes the lease so peers forget this node at once,
// and closes the client if New created it.
func (r *Registry) Close() error {
    if r.cancel != nil {
        r.cancel()
        <-r.watched
        r.cancel = nil
    }
    r.revoke()
    return r.closeClient()
}

func (r *Registry) revoke() {
    if r.lease == 0 { return }
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if _, err := r.cli.Revoke(ctx, r.lease); err != nil { logutil.Warnf(r.opts.Logger, "etcd: revoke lease: %v", err) }
    r.lease = 0
}

func (r *Registry) closeClient() error {
    if !r.owned || r.cli == nil { return nil }
    err := r.cli.Close()
    r.cli = nil
    return err
}

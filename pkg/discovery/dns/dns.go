// Package dns resolves peer forwarders from SRV records or host names.
package dns

import (
    "context"
    "log"
    "net"
    "strconv"
    "strings"
    "sync"
    "time"

    "github.com/carlossantillana/ndn-drop/pkg/discovery"
    "github.com/carlossantillana/ndn-drop/pkg/internal/logutil"
)

// DefaultPort is the forwarder port used for A/AAAA answers.
const DefaultPort = 6363

type Options struct {
    // Names holds SRV names (_ndn._tcp.example.org), host names, or literal
    // host:port addresses.
    Names   []string
    Port    int
    Refresh time.Duration
    Timeout time.Duration
    Resolver *net.Resolver
    Logger   *log.Logger
}

type resolver struct {
    opts Options

    mu    sync.Mutex
    at    time.Time
    cache []string
}

func New(opts Options) discovery.Discovery {
    if opts.Refresh <= 0 { opts.Refresh = 5 * time.Second }
    if opts.Timeout <= 0 { opts.Timeout = 2 * time.Second }
    if opts.Port == 0 { opts.Port = DefaultPort }
    if opts.Resolver == nil { opts.Resolver = net.DefaultResolver }
    if opts.Logger == nil { opts.Logger = log.Default() }
    return &resolver{opts: opts}
}

func (r *resolver) Seeds() []string {
    r.mu.Lock()
    defer r.mu.Unlock()
    if r.cache == nil || time.Since(r.at) >= r.opts.Refresh {
        ctx, cancel := context.WithTimeout(context.Background(), r.opts.Timeout)
        r.cache = r.resolve(ctx)
        cancel()
        r.at = time.Now()
    }
    return append([]string(nil), r.cache...)
}

func (r *resolver) resolve(ctx context.Context) []string {
    var out []string
    for _, name := range r.opts.Names {
        name = strings.TrimSpace(name)
        switch {
        case name == "":
        case strings.HasPrefix(name, "_"):
            out = append(out, r.srv(ctx, name)...)
        case hasPort(name):
            out = append(out, name)
        default:
            out = append(out, r.host(ctx, name)...)
        }
    }
    return discovery.Normalize(out)
}

func hasPort(s string) bool {
    _, port, err := net.SplitHostPort(s)
    return err == nil && port != ""
}

func (r *resolver) srv(ctx context.Context, fqdn string) []string {
    service, proto, domain := splitSRV(fqdn)
    if service == "" { return nil }
    _, recs, err := r.opts.Resolver.LookupSRV(ctx, service, proto, domain)
    if err != nil {
        logutil.Warnf(r.opts.Logger, "dns: SRV %s: %v", fqdn, err)
        return nil
    }
    out := make([]string, 0, len(recs))
    for _, rec := range recs {
        out = append(out, net.JoinHostPort(strings.TrimSuffix(rec.Target, "."), strconv.Itoa(int(rec.Port))))
    }
    return out
}

func (r *resolver) host(ctx context.Context, name string) []string {
    ips, err := r.opts.Resolver.LookupHost(ctx, name)
    if err != nil {
        logutil.Warnf(r.opts.Logger, "dns: lookup %s: %v", name, err)
        return nil
    }
    out := make([]string, 0, len(ips))
    for _, ip := range ips { out = append(out, net.JoinHostPort(ip, strconv.Itoa(r.opts.Port))) }
    return out
}

// splitSRV splits _service._proto.domain.
func splitSRV(fqdn string) (service, proto, domain string) {
    parts := strings.SplitN(fqdn, ".", 3)
    if len(parts) < 3 || !strings.HasPrefix(parts[0], "_") || !strings.HasPrefix(parts[1], "_") { return "", "", "" }
    return parts[0][1:], parts[1][1:], parts[2]
}

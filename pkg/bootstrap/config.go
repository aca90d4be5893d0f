package bootstrap

import (
    "errors"
    "fmt"
    "io"
    "log"
    "os"
    "strings"
    "time"

    "gopkg.in/yaml.v3"

    "github.com/carlossantillana/ndn-drop/pkg/face"
    "github.com/carlossantillana/ndn-drop/pkg/neighbor"
    "github.com/carlossantillana/ndn-drop/pkg/probe"
)

const (
    ModeClient = "client"
    ModeServer = "server"

    ModuleDiscover = "discover"
    ModuleDrop     = "drop"
)

var ErrConfig = errors.New("bootstrap: invalid config")

// Config describes one ndndrop node. The yaml tags match the --config file
// layout; command-line flags override file values.
type Config struct {
    Mode string `yaml:"mode"`

    // Names. Prefix is probed (client) or served (server).
    Prefix     string `yaml:"prefix"`
    Home       string `yaml:"home"`
    Node       string `yaml:"node"`
    Module     string `yaml:"module"`
    Identifier string `yaml:"identifier"`

    // Probing.
    Interval       time.Duration `yaml:"interval"`
    Timeout        time.Duration `yaml:"timeout"`
    Count          int           `yaml:"count"`
    // Start is the first sequence number; negative picks a random one.
    Start          int64         `yaml:"start"`
    AllowStale     bool          `yaml:"allowStale"`
    Timestamp      bool          `yaml:"timestamp"`
    Events         string        `yaml:"events"`
    Jitter         time.Duration `yaml:"jitter"`
    MaxServe       int           `yaml:"maxServe"`
    ExcludeNackRtt bool          `yaml:"excludeNackRtt"`

    // Neighbor table.
    TTL          int           `yaml:"ttl"`
    Heartbeat    time.Duration `yaml:"heartbeat"`
    NeighborFile string        `yaml:"neighborFile"`

    // Responder.
    PayloadSize int           `yaml:"payloadSize"`
    Freshness   time.Duration `yaml:"freshness"`
    MaxDrops    int           `yaml:"maxDrops"`

    // Listen is the gRPC forwarder address; empty keeps the node in-process.
    Listen    string          `yaml:"listen"`
    Advertise string          `yaml:"advertise"`
    Discovery DiscoveryConfig `yaml:"discovery"`
    StatusAddr string         `yaml:"statusAddr"`
    TLS       TLSConfig       `yaml:"tls"`

    Trace   bool `yaml:"trace"`
    LogJSON bool `yaml:"logJson"`
    Verbose bool `yaml:"verbose"`

    // Hub lets several in-process nodes share one forwarder.
    Hub    *face.Hub   `yaml:"-"`
    Logger *log.Logger `yaml:"-"`
    // Output receives per-probe trace lines; nil disables them.
    Output io.Writer `yaml:"-"`
}

type DiscoveryConfig struct {
    // Kind is static (default), file, dns, gossip or etcd.
    Kind    string        `yaml:"kind"`
    Peers   string        `yaml:"peers"`
    Refresh time.Duration `yaml:"refresh"`

    FilePath string `yaml:"filePath"`
    FileEnv  string `yaml:"fileEnv"`

    DNSNames string `yaml:"dnsNames"`
    DNSPort  int    `yaml:"dnsPort"`

    GossipBind string `yaml:"gossipBind"`
    GossipJoin string `yaml:"gossipJoin"`

    EtcdEndpoints string `yaml:"etcdEndpoints"`
    EtcdPrefix    string `yaml:"etcdPrefix"`
    EtcdTTL       int64  `yaml:"etcdTTL"`
}

type TLSConfig struct {
    Enable     bool          `yaml:"enable"`
    CA         string        `yaml:"ca"`
    Cert       string        `yaml:"cert"`
    Key        string        `yaml:"key"`
    ServerName string        `yaml:"serverName"`
    SkipVerify bool          `yaml:"skipVerify"`
    Reload     time.Duration `yaml:"reload"`
}

// Default returns the values the CLI starts from.
func Default() Config {
    return Config{
        Mode:         ModeClient,
        Module:       ModuleDiscover,
        Interval:     probe.DefaultInterval,
        Timeout:      probe.DefaultTimeout,
        Start:        -1,
        Jitter:       probe.DefaultJitter,
        Heartbeat:    probe.DefaultHeartbeat,
        TTL:          neighbor.DefaultTTL,
        NeighborFile: neighbor.DefaultPath,
        PayloadSize:  1,
        Freshness:    time.Second,
        Discovery:    DiscoveryConfig{Kind: "static", Refresh: 5 * time.Second},
    }
}

// LoadFile decodes a YAML config over base. Unknown keys are rejected.
func LoadFile(path string, base Config) (Config, error) {
    f, err := os.Open(path)
    if err != nil { return base, fmt.Errorf("%w: %v", ErrConfig, err) }
    defer f.Close()
    dec := yaml.NewDecoder(f)
    dec.KnownFields(true)
    if err := dec.Decode(&base); err != nil && !errors.Is(err, io.EOF) {
        return base, fmt.Errorf("%w: %s: %v", ErrConfig, path, err)
    }
    return base, nil
}

// Validate checks the fields that have no usable default.
func (c Config) Validate() error {
    bad := func(format string, args ...any) error { return fmt.Errorf("%w: "+format, append([]any{ErrConfig}, args...)...) }
    switch c.Mode {
    case ModeClient:
        if c.Home == "" || c.Node == "" { return bad("client needs home and node names") }
        if c.Module != ModuleDiscover && c.Module != ModuleDrop { return bad("unknown module %q (want discover or drop)", c.Module) }
        if strings.ContainsAny(c.Node, "/:\n") { return bad("node name %q must be a single name component", c.Node) }
    case ModeServer:
    default:
        return bad("unknown mode %q", c.Mode)
    }
    if c.Prefix == "" { return bad("empty prefix") }
    if c.Interval != 0 && c.Interval < probe.MinInterval { return bad("interval %v below %v", c.Interval, probe.MinInterval) }
    if !probe.IsAlnum(c.Identifier) { return bad("identifier %q must be alphanumeric", c.Identifier) }
    if c.Events != "" {
        if _, err := probe.ParseKinds(c.Events); err != nil { return bad("%v", err) }
    }
    if c.Count < -1 { return bad("count %d must be positive, or -1 for unbounded", c.Count) }
    if c.TTL < 0 || c.PayloadSize < 0 { return bad("negative ttl or payload size") }
    switch c.Discovery.Kind {
    case "", "static", "file", "dns":
    case "gossip":
        if c.Listen == "" { return bad("gossip discovery needs a forwarder listen address") }
        if c.Discovery.GossipBind == "" { return bad("gossip discovery needs a bind address") }
    case "etcd":
        if c.Listen == "" { return bad("etcd discovery needs a forwarder listen address") }
        if c.Discovery.EtcdEndpoints == "" { return bad("etcd discovery needs endpoints") }
    default:
        return bad("unknown discovery kind %q", c.Discovery.Kind)
    }
    return nil
}

// events resolves the probe cadence: an explicit list, else the module's.
func (c Config) events() []probe.Kind {
    if c.Events != "" {
        ks, _ := probe.ParseKinds(c.Events)
        return ks
    }
    if c.Module == ModuleDrop { return []probe.Kind{probe.Drop} }
    return []probe.Kind{probe.Discover, probe.Drop}
}

// networked reports whether the node talks to other hosts.
func (c Config) networked() bool {
    d := c.Discovery
    return c.Listen != "" || d.Peers != "" || (d.Kind != "" && d.Kind != "static")
}

package probe

import (
    "errors"
    "fmt"
    "log"
    "time"

    "github.com/carlossantillana/ndn-drop/pkg/face"
    "github.com/carlossantillana/ndn-drop/pkg/neighbor"
    "github.com/carlossantillana/ndn-drop/pkg/security"
)

const (
    // BroadcastDiscoverPrefix receives discover probes addressed to every node.
    BroadcastDiscoverPrefix = "/ndn/broadcast/discover"

    DefaultInterval  = time.Second
    MinInterval      = time.Millisecond
    DefaultTimeout   = 4 * time.Second
    DefaultJitter    = 750 * time.Millisecond
    DefaultHeartbeat = time.Second
)

// Observer receives every probe outcome on the scheduler goroutine.
type Observer interface {
    OnData(seq uint64, rtt time.Duration)
    OnNack(seq uint64, rtt time.Duration, reason face.NackReason)
    OnTimeout(seq uint64)
}

// Optional observer hooks.
type (
    StartObserver  interface{ OnStart() }
    SendObserver   interface{ OnSend(seq uint64) }
    FinishObserver interface{ OnFinish() }
)

// Options configures a Client. Zero durations take their defaults.
type Options struct {
    // Prefix is the remote name probes are sent under.
    Prefix string
    // Home and Node name this node; inbound discover probes are accepted
    // under /<Home>/<Node>/discover and the broadcast prefix.
    Home string
    Node string
    // Identifier is an optional alphanumeric component inserted into drop names.
    Identifier string

    Interval time.Duration
    Timeout  time.Duration
    // MaxProbes bounds the number of probes sent; zero or negative is unbounded.
    MaxProbes int
    StartSeq  uint64
    RandomSeq bool
    // AllowStale lets caches answer probes with stale data.
    AllowStale bool

    // Events is the cadence cycled by the scheduler. Defaults to discover, drop.
    Events []Kind
    // Jitter bounds the random delay before replying to an inbound probe.
    Jitter time.Duration
    // MaxServe signals completion after serving that many discover replies; zero disables it.
    MaxServe int
    // Heartbeat is the neighbor table decay period.
    Heartbeat time.Duration

    Table     *neighbor.Table
    Signer    security.Signer
    Observers []Observer

    Logger  *log.Logger
    Verbose bool
}

var ErrInvalidOptions = errors.New("probe: invalid options")

func (o *Options) setDefaults() {
    if o.Interval == 0 { o.Interval = DefaultInterval }
    if o.Timeout <= 0 { o.Timeout = DefaultTimeout }
    if o.Jitter < 0 { o.Jitter = 0 } else if o.Jitter == 0 { o.Jitter = DefaultJitter }
    if o.Heartbeat <= 0 { o.Heartbeat = DefaultHeartbeat }
    if len(o.Events) == 0 { o.Events = []Kind{Discover, Drop} }
    if o.Signer == nil { o.Signer = security.DigestSigner{} }
    if o.Logger == nil { o.Logger = log.Default() }
    if o.Table == nil { o.Table = neighbor.New(neighbor.Options{Self: o.Node, Logger: o.Logger, Verbose: o.Verbose}) }
}

// Validate checks options that have no sensible default.
func (o Options) Validate() error {
    if o.Prefix == "" { return fmt.Errorf("%w: empty prefix", ErrInvalidOptions) }
    if o.Node == "" { return fmt.Errorf("%w: empty node name", ErrInvalidOptions) }
    if o.Interval != 0 && o.Interval < MinInterval {
        return fmt.Errorf("%w: interval %v below minimum %v", ErrInvalidOptions, o.Interval, MinInterval)
    }
    if !IsAlnum(o.Identifier) { return fmt.Errorf("%w: identifier %q must be alphanumeric", ErrInvalidOptions, o.Identifier) }
    return nil
}

// IsAlnum reports whether s contains only ASCII letters and digits.
func IsAlnum(s string) bool {
    for _, r := range s {
        if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') { return false }
    }
    return true
}

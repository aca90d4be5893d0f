// Package server answers drop probes with a fixed payload.
package server

import (
    "bytes"
    "errors"
    "fmt"
    "log"
    "sync"
    "sync/atomic"
    "time"

    "github.com/carlossantillana/ndn-drop/pkg/face"
    "github.com/carlossantillana/ndn-drop/pkg/internal/logutil"
    obsmetrics "github.com/carlossantillana/ndn-drop/pkg/observability/metrics"
    "github.com/carlossantillana/ndn-drop/pkg/security"
)

// BroadcastDropPrefix receives drop probes addressed to every node.
const BroadcastDropPrefix = "/ndn/broadcast/drop"

const (
    DefaultPayloadSize = 1
    DefaultFreshness   = time.Second
)

var (
    ErrRegister = errors.New("server: prefix registration failed")
    ErrStarted  = errors.New("server: already started")
)

type Options struct {
    Prefix      string
    PayloadSize int
    Freshness   time.Duration
    // MaxDrops closes Done after that many replies; zero or negative never does.
    MaxDrops int
    Signer   security.Signer
    Logger   *log.Logger
    Verbose  bool
}

// DropServer replies to every drop Interest under its prefixes.
type DropServer struct {
    opts    Options
    face    face.Face
    payload []byte

    mu      sync.Mutex
    regs    []face.Registration
    started bool

    nDrops   atomic.Int64
    done     chan struct{}
    doneOnce sync.Once
}

func New(f face.Face, opts Options) (*DropServer, error) {
    if f == nil { return nil, errors.New("server: nil face") }
    if opts.Prefix == "" { return nil, errors.New("server: empty prefix") }
    if opts.PayloadSize <= 0 { opts.PayloadSize = DefaultPayloadSize }
    if opts.Freshness <= 0 { opts.Freshness = DefaultFreshness }
    if opts.Signer == nil { opts.Signer = security.DigestSigner{} }
    if opts.Logger == nil { opts.Logger = log.Default() }
    return &DropServer{
        opts:    opts,
        face:    f,
        payload: bytes.Repeat([]byte{'a'}, opts.PayloadSize),
        done:    make(chan struct{}),
    }, nil
}

// Prefixes returns the names the server registers.
func (s *DropServer) Prefixes() []string {
    return []string{face.Join(s.opts.Prefix, "drop"), BroadcastDropPrefix}
}

// Start registers both prefixes; on failure nothing stays registered.
func (s *DropServer) Start() error {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.started { return ErrStarted }
    for _, p := range s.Prefixes() {
        reg, err := s.face.Register(p, s.handle)
        if err != nil {
            for _, r := range s.regs { r.Cancel() }
            s.regs = nil
            return fmt.Errorf("%w: %s: %v", ErrRegister, p, err)
        }
        s.regs = append(s.regs, reg)
    }
    s.started = true
    logutil.Infof(s.opts.Logger, "server: serving %v (payload=%dB freshness=%v)", s.Prefixes(), s.opts.PayloadSize, s.opts.Freshness)
    return nil
}

// Stop cancels the registrations. It is safe to call more than once.
func (s *DropServer) Stop() {
    s.mu.Lock()
    regs := s.regs
    s.regs = nil
    s.mu.Unlock()
    for _, r := range regs { r.Cancel() }
}

// Done is closed once MaxDrops replies have been sent.
func (s *DropServer) Done() <-chan struct{} { return s.done }

// NDrops returns the number of replies sent.
func (s *DropServer) NDrops() int { return int(s.nDrops.Load()) }

func (s *DropServer) handle(in face.Interest) {
    logutil.Debugf(s.opts.Logger, s.opts.Verbose, "server: interest %s", in.Name)
    d := face.Data{Name: in.Name, Content: s.payload, Freshness: s.opts.Freshness}
    if err := s.opts.Signer.Sign(&d); err != nil {
        logutil.Errorf(s.opts.Logger, "server: sign %s: %v", in.Name, err)
        return
    }
    if err := s.face.Put(d); err != nil {
        logutil.Warnf(s.opts.Logger, "server: put %s: %v", in.Name, err)
        return
    }
    obsmetrics.ResponderServed.WithLabelValues(s.opts.Prefix).Inc()
    n := s.nDrops.Add(1)
    if s.opts.MaxDrops > 0 && int(n) >= s.opts.MaxDrops {
        s.doneOnce.Do(func() { close(s.done) })
    }
}

package probe

import (
    "context"
    "errors"
    "fmt"
    "math/rand"
    "strconv"
    "sync"
    "sync/atomic"
    "time"

    "github.com/google/uuid"

    "github.com/carlossantillana/ndn-drop/pkg/face"
    "github.com/carlossantillana/ndn-drop/pkg/internal/logutil"
    "github.com/carlossantillana/ndn-drop/pkg/neighbor"
    obsmetrics "github.com/carlossantillana/ndn-drop/pkg/observability/metrics"
    "github.com/carlossantillana/ndn-drop/pkg/observability/tracing"
)

var (
    ErrRegister = errors.New("probe: inbound registration failed")
    ErrStarted  = errors.New("probe: already started")
)

// Client schedules discover and drop probes, answers inbound discover probes
// with the neighbor table, and reports every outcome to its observers.
//
// Sending, outcome handling and inbound replies all run on one scheduler
// goroutine. The only other goroutine touching the table is the decay loop.
type Client struct {
    opts  Options
    face  face.Face
    table *neighbor.Table

    mu        sync.Mutex
    state     State
    regs      []face.Registration
    cancel    context.CancelFunc
    loopDone  chan struct{}
    decayDone chan struct{}
    stopOnce  sync.Once

    done     chan struct{}
    doneOnce sync.Once

    outcomes chan outcome
    inbound  chan inboundProbe
    replies  chan inboundProbe

    served atomic.Int64
    sent   atomic.Int64

    // owned by the scheduler goroutine
    nOutstanding int
    nextSeq      uint64
    eventIdx     int
}

type outcome struct {
    kind Kind
    seq  uint64
    rtt  time.Duration
    res  face.Result
}

type inboundProbe struct {
    in     face.Interest
    sender string
}

// New validates opts and returns an idle client using f as transport.
func New(f face.Face, opts Options) (*Client, error) {
    if f == nil { return nil, fmt.Errorf("%w: nil face", ErrInvalidOptions) }
    if err := opts.Validate(); err != nil { return nil, err }
    opts.setDefaults()
    c := &Client{
        opts:     opts,
        face:     f,
        table:    opts.Table,
        done:     make(chan struct{}),
        outcomes: make(chan outcome, 16),
        inbound:  make(chan inboundProbe, 16),
        replies:  make(chan inboundProbe, 16),
        nextSeq:  opts.StartSeq,
    }
    if opts.RandomSeq { c.nextSeq = rand.Uint64() }
    return c, nil
}

// Table returns the neighbor table maintained by the client.
func (c *Client) Table() *neighbor.Table { return c.table }

// Done is closed once the run completes: the probe budget is spent and every
// outstanding probe resolved, or MaxServe replies were served.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) State() State {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.state
}

func (c *Client) setState(s State) {
    c.mu.Lock()
    if c.state != Stopped { c.state = s }
    c.mu.Unlock()
}

// Served returns the number of discover replies sent.
func (c *Client) Served() int { return int(c.served.Load()) }

// Sent returns the number of probes expressed.
func (c *Client) Sent() int { return int(c.sent.Load()) }

// Start registers the inbound discover prefixes, then launches the decay loop
// and the scheduler. The first probe is sent immediately. Registration
// failures are fatal and wrap ErrRegister.
func (c *Client) Start(ctx context.Context) error {
    c.mu.Lock()
    defer c.mu.Unlock()
    if c.state != Idle { return ErrStarted }

    runCtx, cancel := context.WithCancel(ctx)
    prefixes := []string{BroadcastDiscoverPrefix, face.Join(c.opts.Home, c.opts.Node, "discover")}
    for _, p := range prefixes {
        reg, err := c.face.Register(p, c.inboundHandler(runCtx))
        if err != nil {
            for _, r := range c.regs { r.Cancel() }
            c.regs = nil
            cancel()
            return fmt.Errorf("%w: %s: %v", ErrRegister, p, err)
        }
        c.regs = append(c.regs, reg)
    }
    c.cancel = cancel
    c.state = Running

    for _, o := range c.opts.Observers {
        if so, ok := o.(StartObserver); ok { so.OnStart() }
    }

    c.decayDone = make(chan struct{})
    go func() {
        defer close(c.decayDone)
        c.table.RunDecay(runCtx, c.opts.Heartbeat)
    }()
    c.loopDone = make(chan struct{})
    go c.loop(runCtx)
    logutil.Infof(c.opts.Logger, "probe: node %s probing %s every %v (events=%v)", c.opts.Node, c.opts.Prefix, c.opts.Interval, c.opts.Events)
    return nil
}

// Stop cancels the pending probe, the inbound registrations and the decay
// loop, and waits for both goroutines to exit. It is idempotent and must not
// be called from an Observer.
func (c *Client) Stop() {
    c.stopOnce.Do(func() {
        c.mu.Lock()
        cancel, regs := c.cancel, c.regs
        loopDone, decayDone := c.loopDone, c.decayDone
        c.regs = nil
        c.mu.Unlock()

        if cancel != nil { cancel() }
        for _, r := range regs { r.Cancel() }
        if loopDone != nil { <-loopDone }
        if decayDone != nil { <-decayDone }

        c.mu.Lock()
        c.state = Stopped
        c.mu.Unlock()
        obsmetrics.Outstanding.Set(0)
    })
}

func (c *Client) inboundHandler(ctx context.Context) face.InterestHandler {
    return func(in face.Interest) {
        sender, ok := discoverSender(in.Name)
        if !ok {
            obsmetrics.InboundProbes.WithLabelValues("malformed").Inc()
            return
        }
        select {
        case c.inbound <- inboundProbe{in: in, sender: sender}:
        case <-ctx.Done():
        }
    }
}

// discoverSender extracts <sender> from .../discover/<sender>/<seq>.
func discoverSender(name string) (string, bool) {
    comps := face.Components(name)
    n := len(comps)
    if n < 3 || comps[n-3] != "discover" { return "", false }
    return comps[n-2], true
}

func (c *Client) budgetLeft() bool {
    return c.opts.MaxProbes <= 0 || int(c.sent.Load()) < c.opts.MaxProbes
}

func (c *Client) loop(ctx context.Context) {
    defer close(c.loopDone)
    next := time.NewTimer(0)
    defer next.Stop()
    nextC := next.C
    for {
        select {
        case <-ctx.Done():
            return
        case <-nextC:
            c.perform(ctx)
            if c.budgetLeft() {
                next.Reset(c.opts.Interval)
            } else {
                nextC = nil
                c.setState(Draining)
                c.finish()
            }
        case o := <-c.outcomes:
            c.handleOutcome(o)
        case p := <-c.inbound:
            c.scheduleReply(ctx, p)
        case p := <-c.replies:
            c.reply(p)
        }
    }
}

func (c *Client) probeName(kind Kind, seq uint64) string {
    s := strconv.FormatUint(seq, 10)
    if kind == Discover { return face.Join(c.opts.Prefix, "discover", c.opts.Node, s) }
    return face.Join(c.opts.Prefix, "drop", c.opts.Identifier, s)
}

func (c *Client) perform(ctx context.Context) {
    kind := c.opts.Events[c.eventIdx%len(c.opts.Events)]
    c.eventIdx++
    seq := c.nextSeq
    c.nextSeq++

    in := face.Interest{
        Name:        c.probeName(kind, seq),
        Lifetime:    c.opts.Timeout,
        MustBeFresh: !c.opts.AllowStale,
        Nonce:       uuid.NewString(),
    }
    _, end := tracing.StartSpan(ctx, "probe."+kind.String(), in.Name)
    sentAt := time.Now()
    ch := c.face.Express(ctx, in)
    end()

    c.sent.Add(1)
    c.nOutstanding++
    obsmetrics.ProbesSent.WithLabelValues(kind.String()).Inc()
    obsmetrics.Outstanding.Set(float64(c.nOutstanding))
    for _, o := range c.opts.Observers {
        if so, ok := o.(SendObserver); ok { so.OnSend(seq) }
    }
    logutil.Debugf(c.opts.Logger, c.opts.Verbose, "probe: sent %s", in.Name)

    go func() {
        var res face.Result
        select {
        case res = <-ch:
        case <-ctx.Done():
            return
        }
        o := outcome{kind: kind, seq: seq, rtt: time.Since(sentAt), res: res}
        select {
        case c.outcomes <- o:
        case <-ctx.Done():
        }
    }()
}

func (c *Client) handleOutcome(o outcome) {
    kind := o.kind.String()
    obsmetrics.ProbeOutcomes.WithLabelValues(kind, o.res.Kind.String()).Inc()
    switch o.res.Kind {
    case face.Success:
        obsmetrics.ProbeRTT.WithLabelValues(kind).Observe(o.rtt.Seconds())
        if o.kind == Discover { c.table.Deserialize(string(o.res.Data.Content)) }
        for _, obs := range c.opts.Observers { obs.OnData(o.seq, o.rtt) }
    case face.Rejected:
        obsmetrics.ProbeRTT.WithLabelValues(kind).Observe(o.rtt.Seconds())
        for _, obs := range c.opts.Observers { obs.OnNack(o.seq, o.rtt, o.res.Reason) }
    default:
        for _, obs := range c.opts.Observers { obs.OnTimeout(o.seq) }
    }
    c.finish()
}

// finish is called once per resolved probe and once more when the budget is
// spent, so nOutstanding only drops below zero after the last outcome.
func (c *Client) finish() {
    c.nOutstanding--
    if c.nOutstanding >= 0 {
        obsmetrics.Outstanding.Set(float64(c.nOutstanding))
        return
    }
    obsmetrics.Outstanding.Set(0)
    c.complete()
}

func (c *Client) complete() {
    c.doneOnce.Do(func() {
        logutil.Debugf(c.opts.Logger, c.opts.Verbose, "probe: run complete (sent=%d served=%d)", c.Sent(), c.Served())
        for _, o := range c.opts.Observers {
            if fo, ok := o.(FinishObserver); ok { fo.OnFinish() }
        }
        close(c.done)
    })
}

func (c *Client) scheduleReply(ctx context.Context, p inboundProbe) {
    if p.sender == c.opts.Node {
        obsmetrics.InboundProbes.WithLabelValues("self").Inc()
        return
    }
    var delay time.Duration
    if c.opts.Jitter > 0 { delay = time.Duration(rand.Int63n(int64(c.opts.Jitter))) }
    time.AfterFunc(delay, func() {
        select {
        case c.replies <- p:
        case <-ctx.Done():
        }
    })
}

func (c *Client) reply(p inboundProbe) {
    c.table.Add(p.sender)
    d := face.Data{Name: p.in.Name, Content: []byte(c.table.Serialize())}
    if err := c.opts.Signer.Sign(&d); err != nil {
        logutil.Errorf(c.opts.Logger, "probe: sign reply %s: %v", d.Name, err)
        return
    }
    if err := c.face.Put(d); err != nil {
        logutil.Warnf(c.opts.Logger, "probe: reply %s: %v", d.Name, err)
        return
    }
    obsmetrics.InboundProbes.WithLabelValues("served").Inc()
    n := c.served.Add(1)
    logutil.Debugf(c.opts.Logger, c.opts.Verbose, "probe: answered discover from %s (%d served)", p.sender, n)
    if c.opts.MaxServe > 0 && int(n) >= c.opts.MaxServe { c.complete() }
}

package face

import (
    "context"
    "log"
    "sync"
    "time"

    "github.com/carlossantillana/ndn-drop/pkg/internal/logutil"
)

// LocalOrigin identifies interests injected from outside the hub (for example
// by a network face). They may be routed to any local face.
const LocalOrigin uint64 = 0

// Hub is an in-process forwarder connecting the faces created with NewFace.
// Interests are routed by longest-prefix match and multicast to every route of
// that length, never back to the face that expressed them. Pending interests
// with the same name are aggregated and satisfied by the first matching Data.
type Hub struct {
    mu      sync.Mutex
    nextID  uint64
    routes  map[uint64]*route
    pit     map[string][]*waiter
    closed  bool
    logger  *log.Logger
    verbose bool
}

type route struct {
    prefix string
    ncomp  int
    face   uint64
    h      InterestHandler
}

type waiter struct {
    ch   chan Result
    done chan struct{}
    once sync.Once
}

func (w *waiter) resolve(r Result) {
    w.once.Do(func() {
        w.ch <- r
        close(w.done)
    })
}

// HubOptions configures a Hub.
type HubOptions struct {
    Logger  *log.Logger
    Verbose bool
}

// NewHub returns an empty forwarder.
func NewHub(opts HubOptions) *Hub {
    if opts.Logger == nil { opts.Logger = log.Default() }
    return &Hub{routes: make(map[uint64]*route), pit: make(map[string][]*waiter), logger: opts.Logger, verbose: opts.Verbose}
}

// NewFace attaches a new face to the hub.
func (h *Hub) NewFace() Face {
    h.mu.Lock()
    h.nextID++
    id := h.nextID
    h.mu.Unlock()
    return &hubFace{hub: h, id: id}
}

// Express routes in on behalf of origin. Network faces use LocalOrigin.
func (h *Hub) Express(ctx context.Context, origin uint64, in Interest) <-chan Result {
    in.Name = Canonical(in.Name)
    if in.Lifetime <= 0 { in.Lifetime = DefaultLifetime }

    h.mu.Lock()
    if h.closed {
        h.mu.Unlock()
        return Resolved(Nack(NackNoRoute))
    }
    var targets []InterestHandler
    best := -1
    for _, r := range h.routes {
        if r.face == origin { continue }
        if !HasPrefix(in.Name, r.prefix) { continue }
        switch {
        case r.ncomp > best:
            best = r.ncomp
            targets = append(targets[:0], r.h)
        case r.ncomp == best:
            targets = append(targets, r.h)
        }
    }
    if len(targets) == 0 {
        h.mu.Unlock()
        logutil.Debugf(h.logger, h.verbose, "hub: no route for %s", in.Name)
        return Resolved(Nack(NackNoRoute))
    }
    w := &waiter{ch: make(chan Result, 1), done: make(chan struct{})}
    pending := h.pit[in.Name]
    h.pit[in.Name] = append(pending, w)
    h.mu.Unlock()

    // An interest already pending under the same name is aggregated.
    if len(pending) == 0 {
        for _, fn := range targets {
            go fn(in)
        }
    }

    go func() {
        t := time.NewTimer(in.Lifetime)
        defer t.Stop()
        select {
        case <-w.done:
        case <-t.C:
            h.expire(in.Name, w)
        case <-ctx.Done():
            h.expire(in.Name, w)
        }
    }()
    return w.ch
}

func (h *Hub) expire(name string, w *waiter) {
    h.mu.Lock()
    ws := h.pit[name]
    for i, x := range ws {
        if x == w {
            ws = append(ws[:i], ws[i+1:]...)
            break
        }
    }
    if len(ws) == 0 {
        delete(h.pit, name)
    } else {
        h.pit[name] = ws
    }
    h.mu.Unlock()
    w.resolve(Result{Kind: Expired})
}

// Put satisfies every pending interest for d.Name. Unsolicited data is
// dropped.
func (h *Hub) Put(d Data) error {
    d.Name = Canonical(d.Name)
    h.mu.Lock()
    if h.closed {
        h.mu.Unlock()
        return ErrClosed
    }
    ws := h.pit[d.Name]
    delete(h.pit, d.Name)
    h.mu.Unlock()
    if len(ws) == 0 {
        logutil.Debugf(h.logger, h.verbose, "hub: dropping unsolicited data %s", d.Name)
        return nil
    }
    for _, w := range ws {
        w.resolve(Result{Kind: Success, Data: d})
    }
    return nil
}

// Pending returns the number of names with outstanding interests.
func (h *Hub) Pending() int {
    h.mu.Lock()
    defer h.mu.Unlock()
    return len(h.pit)
}

// Close rejects every pending interest and refuses further traffic.
func (h *Hub) Close() error {
    h.mu.Lock()
    if h.closed {
        h.mu.Unlock()
        return nil
    }
    h.closed = true
    pit := h.pit
    h.pit = make(map[string][]*waiter)
    h.routes = make(map[uint64]*route)
    h.mu.Unlock()
    for _, ws := range pit {
        for _, w := range ws {
            w.resolve(Nack(NackNoRoute))
        }
    }
    return nil
}

func (h *Hub) register(face uint64, prefix string, fn InterestHandler) (Registration, error) {
    if fn == nil { return nil, ErrNilHandler }
    if prefix == "" { return nil, ErrInvalidPrefix }
    prefix = Canonical(prefix)
    h.mu.Lock()
    defer h.mu.Unlock()
    if h.closed { return nil, ErrClosed }
    h.nextID++
    id := h.nextID
    h.routes[id] = &route{prefix: prefix, ncomp: len(Components(prefix)), face: face, h: fn}
    return &registration{hub: h, id: id}, nil
}

func (h *Hub) unregister(id uint64) {
    h.mu.Lock()
    delete(h.routes, id)
    h.mu.Unlock()
}

func (h *Hub) unregisterFace(face uint64) {
    h.mu.Lock()
    for id, r := range h.routes {
        if r.face == face { delete(h.routes, id) }
    }
    h.mu.Unlock()
}

type registration struct {
    hub  *Hub
    id   uint64
    once sync.Once
}

func (r *registration) Cancel() { r.once.Do(func() { r.hub.unregister(r.id) }) }

type hubFace struct {
    hub    *Hub
    id     uint64
    mu     sync.Mutex
    closed bool
}

func (f *hubFace) isClosed() bool {
    f.mu.Lock()
    defer f.mu.Unlock()
    return f.closed
}

func (f *hubFace) Express(ctx context.Context, in Interest) <-chan Result {
    if f.isClosed() { return Resolved(Nack(NackNoRoute)) }
    return f.hub.Express(ctx, f.id, in)
}

func (f *hubFace) Register(prefix string, fn InterestHandler) (Registration, error) {
    if f.isClosed() { return nil, ErrClosed }
    return f.hub.register(f.id, prefix, fn)
}

func (f *hubFace) Put(d Data) error {
    if f.isClosed() { return ErrClosed }
    return f.hub.Put(d)
}

func (f *hubFace) Close() error {
    f.mu.Lock()
    if f.closed {
        f.mu.Unlock()
        return nil
    }
    f.closed = true
    f.mu.Unlock()
    f.hub.unregisterFace(f.id)
    return nil
}

var _ Face = (*hubFace)(nil)

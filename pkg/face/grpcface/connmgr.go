package grpcface

import (
    "sync"
    "time"

    "google.golang.org/grpc"

    obsmetrics "github.com/carlossantillana/ndn-drop/pkg/observability/metrics"
)

// connManager caches one client connection per peer address and closes the
// ones left idle longer than ttl.
type connManager struct {
    mu      sync.Mutex
    conns   map[string]*peerConn
    ttl     time.Duration
    dial    func(target string) (*grpc.ClientConn, error)
    closing chan struct{}
    once    sync.Once
}

type peerConn struct {
    cc       *grpc.ClientConn
    lastUsed time.Time
    inFlight int
}

func newConnManager(ttl time.Duration, dial func(target string) (*grpc.ClientConn, error)) *connManager {
    if ttl <= 0 { ttl = 30 * time.Second }
    m := &connManager{ttl: ttl, dial: dial, conns: make(map[string]*peerConn), closing: make(chan struct{})}
    go m.janitor()
    return m
}

// get returns the connection for target and a release func for the caller.
func (m *connManager) get(target string) (*grpc.ClientConn, func(), error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    pc, ok := m.conns[target]
    if ok {
        obsmetrics.GRPCConnReuse.Inc()
    } else {
        // NewClient does not block, so dialing under the lock is fine.
        cc, err := m.dial(target)
        if err != nil { return nil, func() {}, err }
        pc = &peerConn{cc: cc}
        m.conns[target] = pc
        obsmetrics.GRPCConnDials.Inc()
        obsmetrics.GRPCConnActive.Inc()
    }
    pc.inFlight++
    pc.lastUsed = time.Now()
    return pc.cc, func() { m.release(target) }, nil
}

func (m *connManager) release(target string) {
    m.mu.Lock()
    if pc, ok := m.conns[target]; ok {
        if pc.inFlight > 0 { pc.inFlight-- }
        pc.lastUsed = time.Now()
    }
    m.mu.Unlock()
}

func (m *connManager) len() int {
    m.mu.Lock()
    defer m.mu.Unlock()
    return len(m.conns)
}

func (m *connManager) close() {
    m.once.Do(func() { close(m.closing) })
    m.mu.Lock()
    for addr, pc := range m.conns {
        _ = pc.cc.Close()
        obsmetrics.GRPCConnActive.Dec()
        delete(m.conns, addr)
    }
    m.mu.Unlock()
}

func (m *connManager) janitor() {
    ticker := time.NewTicker(m.ttl / 2)
    defer ticker.Stop()
    for {
        select {
        case <-m.closing:
            return
        case <-ticker.C:
            m.evictIdle(time.Now().Add(-m.ttl))
        }
    }
}

func (m *connManager) evictIdle(cutoff time.Time) {
    m.mu.Lock()
    defer m.mu.Unlock()
    for addr, pc := range m.conns {
        if pc.inFlight == 0 && pc.lastUsed.Before(cutoff) {
            _ = pc.cc.Close()
            obsmetrics.GRPCConnEvictions.Inc()
            obsmetrics.GRPCConnActive.Dec()
            delete(m.conns, addr)
        }
    }
}

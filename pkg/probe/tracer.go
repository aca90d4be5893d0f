package probe

import (
    "fmt"
    "io"
    "sync"
    "time"

    "github.com/carlossantillana/ndn-drop/pkg/face"
)

// Tracer prints one line per probe outcome.
type Tracer struct {
    mu        sync.Mutex
    w         io.Writer
    prefix    string
    timestamp bool
    now       func() time.Time
}

// NewTracer writes outcome lines for probes sent under prefix to w, each
// preceded by a Unix timestamp when timestamp is set.
func NewTracer(w io.Writer, prefix string, timestamp bool) *Tracer {
    return &Tracer{w: w, prefix: prefix, timestamp: timestamp, now: time.Now}
}

func (t *Tracer) printf(format string, args ...any) {
    t.mu.Lock()
    defer t.mu.Unlock()
    if t.timestamp {
        now := t.now()
        fmt.Fprintf(t.w, "%d.%06d - ", now.Unix(), now.Nanosecond()/1000)
    }
    fmt.Fprintf(t.w, format+"\n", args...)
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

func (t *Tracer) OnData(seq uint64, rtt time.Duration) {
    t.printf("content from %s: seq=%d time=%.3f ms", t.prefix, seq, ms(rtt))
}

func (t *Tracer) OnNack(seq uint64, rtt time.Duration, reason face.NackReason) {
    t.printf("nack from %s: seq=%d time=%.3f ms reason=%s", t.prefix, seq, ms(rtt), reason)
}

func (t *Tracer) OnTimeout(seq uint64) {
    t.printf("timeout from %s: seq=%d", t.prefix, seq)
}

// OnError reports a fatal run error.
func (t *Tracer) OnError(err error) {
    t.printf("ERROR: %v", err)
}

var _ Observer = (*Tracer)(nil)

package stats

import (
    "fmt"
    "io"
    "math"
    "strings"
    "sync"
    "time"

    "github.com/carlossantillana/ndn-drop/pkg/face"
)

// Options configures a Collector.
type Options struct {
    // Prefix is only used to label the summary.
    Prefix string
    // ExcludeNackRtt keeps NACK round trips out of the RTT accumulators.
    // By default a NACK counts as an observed round trip.
    ExcludeNackRtt bool
}

// Statistics is a point-in-time snapshot. RTT values are in milliseconds.
type Statistics struct {
    Prefix           string        `json:"prefix"`
    NSent            int           `json:"nSent"`
    NReceived        int           `json:"nReceived"`
    NNacked          int           `json:"nNacked"`
    NTimedOut        int           `json:"nTimedOut"`
    Started          time.Time     `json:"started"`
    Elapsed          time.Duration `json:"elapsed"`
    MinRtt           float64       `json:"minRtt"`
    MaxRtt           float64       `json:"maxRtt"`
    SumRtt           float64       `json:"sumRtt"`
    SumRttSquared    float64       `json:"sumRttSquared"`
    AvgRtt           float64       `json:"avgRtt"`
    StdDevRtt        float64       `json:"stdDevRtt"`
    PacketLossRate   float64       `json:"packetLossRate"`
    PacketNackedRate float64       `json:"packetNackedRate"`
    rttSamples       int
}

// Collector aggregates probe outcomes online without storing samples.
type Collector struct {
    opts Options

    mu         sync.Mutex
    started    time.Time
    nSent      int
    nReceived  int
    nNacked    int
    nTimedOut  int
    nRtt       int
    minRtt     float64
    maxRtt     float64
    sumRtt     float64
    sumRttSq   float64
}

func New(opts Options) *Collector { return &Collector{opts: opts, started: time.Now()} }

// OnStart marks the beginning of the run.
func (c *Collector) OnStart() {
    c.mu.Lock()
    c.started = time.Now()
    c.mu.Unlock()
}

func (c *Collector) OnSend(seq uint64) {
    c.mu.Lock()
    c.nSent++
    c.mu.Unlock()
}

func (c *Collector) OnData(seq uint64, rtt time.Duration) {
    c.mu.Lock()
    c.nReceived++
    c.recordRtt(rtt)
    c.mu.Unlock()
}

func (c *Collector) OnNack(seq uint64, rtt time.Duration, reason face.NackReason) {
    c.mu.Lock()
    c.nNacked++
    if !c.opts.ExcludeNackRtt { c.recordRtt(rtt) }
    c.mu.Unlock()
}

func (c *Collector) OnTimeout(seq uint64) {
    c.mu.Lock()
    c.nTimedOut++
    c.mu.Unlock()
}

func (c *Collector) recordRtt(rtt time.Duration) {
    ms := float64(rtt) / float64(time.Millisecond)
    if c.nRtt == 0 || ms < c.minRtt { c.minRtt = ms }
    if c.nRtt == 0 || ms > c.maxRtt { c.maxRtt = ms }
    c.nRtt++
    c.sumRtt += ms
    c.sumRttSq += ms * ms
}

// Statistics derives averages and rates from the accumulators. It may be
// called while the run is in progress. The mean and deviation are taken over
// nReceived; NACK round trips counted in the sums do not add to the divisor.
func (c *Collector) Statistics() Statistics {
    c.mu.Lock()
    defer c.mu.Unlock()
    s := Statistics{
        Prefix:        c.opts.Prefix,
        NSent:         c.nSent,
        NReceived:     c.nReceived,
        NNacked:       c.nNacked,
        NTimedOut:     c.nTimedOut,
        Started:       c.started,
        Elapsed:       time.Since(c.started),
        MinRtt:        c.minRtt,
        MaxRtt:        c.maxRtt,
        SumRtt:        c.sumRtt,
        SumRttSquared: c.sumRttSq,
        rttSamples:    c.nRtt,
    }
    if c.nReceived > 0 {
        n := float64(c.nReceived)
        s.AvgRtt = c.sumRtt / n
        s.StdDevRtt = stdDev(c.sumRttSq/n, s.AvgRtt)
    }
    if c.nSent > 0 {
        sent := float64(c.nSent)
        s.PacketLossRate = float64(c.nSent-c.nReceived-c.nNacked) / sent
        s.PacketNackedRate = float64(c.nNacked) / sent
    }
    return s
}

// WriteSummary prints the run summary in ping style.
func (s Statistics) WriteSummary(w io.Writer) error {
    _, err := io.WriteString(w, s.String())
    return err
}

func (s Statistics) String() string {
    var b strings.Builder
    fmt.Fprintf(&b, "\n--- %s drop statistics ---\n", s.Prefix)
    fmt.Fprintf(&b, "%d packets transmitted, %d received, %g%% lost, %g%% nacked, time %g ms",
        s.NSent, s.NReceived, round3(s.PacketLossRate*100), round3(s.PacketNackedRate*100), round3(s.SumRtt))
    if s.rttSamples > 0 || s.NReceived > 0 {
        fmt.Fprintf(&b, "\nrtt min/avg/max/mdev = %.3f/%.3f/%.3f/%.3f ms", s.MinRtt, s.AvgRtt, s.MaxRtt, s.StdDevRtt)
    }
    b.WriteByte('\n')
    return b.String()
}

// stdDev returns sqrt(meanSq - mean²). Cancellation leaves a residue of a
// few ulps of mean² for equal samples; anything that small is zero.
func stdDev(meanSq, mean float64) float64 {
    v := meanSq - mean*mean
    if v <= 1e-12*mean*mean { return 0 }
    return math.Sqrt(v)
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

package stats

import (
    "math"
    "strings"
    "testing"
    "time"

    "github.com/carlossantillana/ndn-drop/pkg/face"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestRates(t *testing.T) {
    c := New(Options{Prefix: "/ndn/test"})
    for i := 0; i < 10; i++ { c.OnSend(uint64(i)) }
    for i := 0; i < 7; i++ { c.OnData(uint64(i), 10*time.Millisecond) }
    c.OnNack(7, 5*time.Millisecond, face.NackNoRoute)
    c.OnNack(8, 5*time.Millisecond, face.NackCongestion)
    c.OnTimeout(9)

    s := c.Statistics()
    if s.NSent != 10 || s.NReceived != 7 || s.NNacked != 2 || s.NTimedOut != 1 {
        t.Fatalf("unexpected counts: %+v", s)
    }
    if s.PacketLossRate != 0.1 { t.Fatalf("loss rate = %v, want 0.1", s.PacketLossRate) }
    if s.PacketNackedRate != 0.2 { t.Fatalf("nack rate = %v, want 0.2", s.PacketNackedRate) }
}

func TestZeroSentHasZeroRates(t *testing.T) {
    s := New(Options{}).Statistics()
    if s.PacketLossRate != 0 || s.PacketNackedRate != 0 || s.AvgRtt != 0 || s.StdDevRtt != 0 {
        t.Fatalf("expected zero rates, got %+v", s)
    }
    if math.IsNaN(s.AvgRtt) || math.IsNaN(s.StdDevRtt) { t.Fatalf("NaN in empty statistics") }
}

func TestRttMeanAndStdDev(t *testing.T) {
    c := New(Options{})
    for i, ms := range []int{2, 4, 4, 4, 5, 5, 7, 9} {
        c.OnSend(uint64(i))
        c.OnData(uint64(i), time.Duration(ms)*time.Millisecond)
    }
    s := c.Statistics()
    if !approx(s.MinRtt, 2) || !approx(s.MaxRtt, 9) { t.Fatalf("min/max = %v/%v", s.MinRtt, s.MaxRtt) }
    if !approx(s.AvgRtt, 5) { t.Fatalf("avg = %v, want 5", s.AvgRtt) }
    if !approx(s.StdDevRtt, 2) { t.Fatalf("stddev = %v, want 2", s.StdDevRtt) }
    if !approx(s.SumRtt, 40) || !approx(s.SumRttSquared, 232) { t.Fatalf("sums = %v/%v", s.SumRtt, s.SumRttSquared) }
}

func TestNackRttPolicy(t *testing.T) {
    counted := New(Options{})
    counted.OnSend(1)
    counted.OnNack(1, 8*time.Millisecond, face.NackNoRoute)
    if s := counted.Statistics(); !approx(s.SumRtt, 8) || !approx(s.MinRtt, 8) {
        t.Fatalf("nack rtt should be counted by default: %+v", s)
    }

    excluded := New(Options{ExcludeNackRtt: true})
    excluded.OnSend(1)
    excluded.OnNack(1, 8*time.Millisecond, face.NackNoRoute)
    if s := excluded.Statistics(); s.SumRtt != 0 || s.NNacked != 1 {
        t.Fatalf("nack rtt should be excluded: %+v", s)
    }
}

func TestEqualSamplesHaveZeroStdDev(t *testing.T) {
    c := New(Options{})
    for i := 0; i < 3; i++ { c.OnData(uint64(i), 3300*time.Microsecond) }
    if s := c.Statistics(); s.StdDevRtt != 0 || !approx(s.AvgRtt, 3.3) {
        t.Fatalf("avg/stddev = %v/%v", s.AvgRtt, s.StdDevRtt)
    }
}

func TestAverageDividesByReceived(t *testing.T) {
    c := New(Options{})
    c.OnSend(1)
    c.OnSend(2)
    c.OnData(1, 10*time.Millisecond)
    c.OnNack(2, 30*time.Millisecond, face.NackNoRoute)
    s := c.Statistics()
    if !approx(s.SumRtt, 40) || !approx(s.AvgRtt, 40) { t.Fatalf("sum/avg = %v/%v, want 40/40", s.SumRtt, s.AvgRtt) }
    if s.StdDevRtt != 0 || math.IsNaN(s.StdDevRtt) { t.Fatalf("stddev = %v", s.StdDevRtt) }

    nackOnly := New(Options{})
    nackOnly.OnSend(1)
    nackOnly.OnNack(1, 8*time.Millisecond, face.NackNoRoute)
    if s := nackOnly.Statistics(); s.AvgRtt != 0 || s.StdDevRtt != 0 { t.Fatalf("nack-only avg/stddev = %v/%v", s.AvgRtt, s.StdDevRtt) }
}

func TestSummary(t *testing.T) {
    c := New(Options{Prefix: "/ndn/test"})
    c.OnSend(1)
    c.OnSend(2)
    c.OnData(1, 4*time.Millisecond)
    c.OnTimeout(2)
    out := c.Statistics().String()
    for _, want := range []string{
        "--- /ndn/test drop statistics ---",
        "2 packets transmitted, 1 received, 50% lost, 0% nacked, time 4 ms",
        "rtt min/avg/max/mdev = 4.000/4.000/4.000/0.000 ms",
    } {
        if !strings.Contains(out, want) { t.Fatalf("summary missing %q:\n%s", want, out) }
    }

    empty := New(Options{Prefix: "/x"}).Statistics().String()
    if strings.Contains(empty, "rtt min") { t.Fatalf("rtt line printed without samples:\n%s", empty) }
}

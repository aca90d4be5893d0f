package gossip

import (
    "reflect"
    "testing"
    "time"
)

func start(t *testing.T, id, face string, join ...string) *Gossip {
    t.Helper()
    g, err := New(Options{NodeID: id, Bind: "127.0.0.1:0", FaceAddr: face, Join: join, ProbeInterval: 100 * time.Millisecond, SuspicionMult: 2})
    if err != nil { t.Fatalf("start %s: %v", id, err) }
    t.Cleanup(func() { _ = g.Close() })
    return g
}

func awaitSeeds(t *testing.T, g *Gossip, want []string) {
    t.Helper()
    deadline := time.Now().Add(5 * time.Second)
    for {
        got := g.Seeds()
        if reflect.DeepEqual(got, want) { return }
        if time.Now().After(deadline) { t.Fatalf("seeds = %q, want %q", got, want) }
        time.Sleep(50 * time.Millisecond)
    }
}

func TestSeedsAreOtherMembersFaces(t *testing.T) {
    a := start(t, "a", "127.0.0.1:7001")
    b := start(t, "b", "127.0.0.1:7002", a.Addr())
    c := start(t, "c", "127.0.0.1:7003", a.Addr())

    awaitSeeds(t, a, []string{"127.0.0.1:7002", "127.0.0.1:7003"})
    awaitSeeds(t, b, []string{"127.0.0.1:7001", "127.0.0.1:7003"})

    if err := c.Close(); err != nil { t.Fatalf("close: %v", err) }
    awaitSeeds(t, a, []string{"127.0.0.1:7002"})
    if c.HealthScore() != -1 { t.Fatalf("closed node reports health") }
}

func TestNewValidates(t *testing.T) {
    if _, err := New(Options{Bind: "127.0.0.1:0"}); err == nil { t.Fatalf("empty node id accepted") }
    if _, err := New(Options{NodeID: "a", Bind: "nonsense"}); err == nil { t.Fatalf("bad bind accepted") }
}

func TestFaceAddrDecoding(t *testing.T) {
    if got := faceAddr([]byte(`{"face":"h:1"}`)); got != "h:1" { t.Fatalf("got %q", got) }
    if got := faceAddr([]byte("junk")); got != "" { t.Fatalf("got %q", got) }
}

package etcd

import (
    "context"
    "reflect"
    "testing"
    "time"
)

func TestApplyTracksPrefix(t *testing.T) {
    r := &Registry{opts: Options{Prefix: DefaultPrefix, NodeID: "a"}, peers: map[string]string{}}
    r.applyLocked("/ndndrop/faces/a", "10.0.0.1:6363", false)
    r.applyLocked("/ndndrop/faces/b", "10.0.0.2:6363", false)
    r.applyLocked("/ndndrop/faces/c", "10.0.0.3:6363", false)
    r.applyLocked("/other/d", "10.0.0.4:6363", false)
    r.applyLocked("/ndndrop/faces/c", "", true)

    if got, want := r.Seeds(), []string{"10.0.0.2:6363"}; !reflect.DeepEqual(got, want) { t.Fatalf("Seeds = %q, want %q", got, want) }
    if got := r.Peers(); len(got) != 2 || got["a"] != "10.0.0.1:6363" { t.Fatalf("Peers = %v", got) }
}

func TestNewValidates(t *testing.T) {
    ctx := context.Background()
    if _, err := New(ctx, Options{Endpoints: []string{"127.0.0.1:1"}}); err == nil { t.Fatalf("empty node id accepted") }
    if _, err := New(ctx, Options{NodeID: "a"}); err == nil { t.Fatalf("missing endpoints accepted") }
}

func TestNewFailsWithoutServer(t *testing.T) {
    ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
    defer cancel()
    if _, err := New(ctx, Options{NodeID: "a", Endpoints: []string{"127.0.0.1:1"}, DialTimeout: 100 * time.Millisecond}); err == nil {
        t.Fatalf("registration without a reachable etcd succeeded")
    }
}

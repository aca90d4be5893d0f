package neighbor

import (
    "context"
    "errors"
    "os"
    "path/filepath"
    "reflect"
    "sync"
    "testing"
    "time"
)

func newTable(t *testing.T, ttl int) (*Table, string) {
    t.Helper()
    path := filepath.Join(t.TempDir(), DefaultPath)
    return New(Options{TTL: ttl, Path: path}), path
}

func TestAddRefreshesToTTL(t *testing.T) {
    tbl, _ := newTable(t, 3)
    tbl.Add("a")
    if err := tbl.Decrement(); err != nil { t.Fatal(err) }
    if life, _ := tbl.Lifetime("a"); life != 2 { t.Fatalf("lifetime after decay = %d, want 2", life) }
    tbl.Add("a")
    if life, _ := tbl.Lifetime("a"); life != 3 { t.Fatalf("lifetime after refresh = %d, want 3", life) }
}

func TestAddRejectsSelfAndBadNames(t *testing.T) {
    tbl := New(Options{Self: "me"})
    for _, name := range []string{"", "me", "a:b", "x\ny"} {
        if tbl.Add(name) { t.Fatalf("Add(%q) accepted", name) }
    }
    if tbl.Len() != 0 { t.Fatalf("table not empty: %v", tbl.Names()) }
}

func TestDecrementEvictsInSamePass(t *testing.T) {
    tbl, _ := newTable(t, 2)
    tbl.Add("a")
    if err := tbl.Decrement(); err != nil { t.Fatal(err) }
    if _, ok := tbl.Lifetime("a"); !ok { t.Fatalf("entry evicted too early") }
    if err := tbl.Decrement(); err != nil { t.Fatal(err) }
    if _, ok := tbl.Lifetime("a"); ok { t.Fatalf("entry reaching 0 must be removed in the same pass") }
}

func TestLifetimesMonotonicAndNonNegative(t *testing.T) {
    tbl, _ := newTable(t, 4)
    tbl.Add("a")
    tbl.Add("b")
    prev := map[string]int{"a": 4, "b": 4}
    for i := 0; i < 6; i++ {
        if err := tbl.Decrement(); err != nil { t.Fatal(err) }
        for _, e := range tbl.Snapshot() {
            if e.Lifetime < 0 { t.Fatalf("negative lifetime: %+v", e) }
            if e.Lifetime > prev[e.Name] { t.Fatalf("lifetime grew without refresh: %+v", e) }
            prev[e.Name] = e.Lifetime
        }
    }
    if tbl.Len() != 0 { t.Fatalf("expected all entries evicted, got %v", tbl.Snapshot()) }
}

func TestSerializeFormat(t *testing.T) {
    tbl := New(Options{TTL: 3})
    if got := tbl.Serialize(); got != "" { t.Fatalf("empty table serialized to %q", got) }
    tbl.Add("b")
    tbl.Add("a")
    if got := tbl.Serialize(); got != "a:3\nb:3" { t.Fatalf("Serialize = %q", got) }
}

func TestDeserializeDiscardsRemoteCounts(t *testing.T) {
    tbl := New(Options{TTL: 5})
    tbl.Deserialize("a:3\nb:2")
    want := []Entry{{"a", 5}, {"b", 5}}
    if got := tbl.Snapshot(); !reflect.DeepEqual(got, want) { t.Fatalf("Snapshot = %v, want %v", got, want) }
}

func TestDeserializeSkipsMalformed(t *testing.T) {
    tbl := New(Options{TTL: 3})
    tbl.Deserialize("foo\na:1\n:2\nc:1:2\n\ne:0")
    want := []string{"a", "e"}
    if got := tbl.Names(); !reflect.DeepEqual(got, want) { t.Fatalf("Names = %v, want %v", got, want) }
}

func TestDeserializeIgnoresCountField(t *testing.T) {
    tbl := New(Options{TTL: 3})
    tbl.Deserialize("b:x\nd:-1\nf:")
    want := []Entry{{"b", 3}, {"d", 3}, {"f", 3}}
    if got := tbl.Snapshot(); !reflect.DeepEqual(got, want) { t.Fatalf("Snapshot = %v, want %v", got, want) }
}

func TestDeserializeEmptyIsNoop(t *testing.T) {
    tbl := New(Options{TTL: 3})
    tbl.Add("a")
    before := tbl.Serialize()
    tbl.Deserialize("")
    if after := tbl.Serialize(); after != before { t.Fatalf("table changed: %q -> %q", before, after) }
}

func TestDeserializeDuplicateNames(t *testing.T) {
    tbl := New(Options{TTL: 3})
    tbl.Deserialize("a:1\na:2")
    if tbl.Len() != 1 { t.Fatalf("expected one entry, got %v", tbl.Snapshot()) }
}

func TestRoundTripPreservesNames(t *testing.T) {
    src, _ := newTable(t, 4)
    for _, n := range []string{"/ndn/a", "/ndn/b", "/ndn/c"} { src.Add(n) }
    _ = src.Decrement()

    dst := New(Options{TTL: 4})
    dst.Deserialize(src.Serialize())
    if !reflect.DeepEqual(dst.Names(), src.Names()) { t.Fatalf("names differ: %v vs %v", dst.Names(), src.Names()) }
    for _, e := range dst.Snapshot() {
        if e.Lifetime != 4 { t.Fatalf("lifetime not reset to TTL: %+v", e) }
    }
}

func TestPersistAfterDecay(t *testing.T) {
    tbl, path := newTable(t, 3)
    tbl.Add("a")
    tbl.Add("b")
    if err := tbl.Decrement(); err != nil { t.Fatal(err) }
    b, err := os.ReadFile(path)
    if err != nil { t.Fatalf("read persisted: %v", err) }
    if string(b) != "a:2\nb:2" { t.Fatalf("persisted %q", b) }
    if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) { t.Fatalf("temp file left behind: %v", err) }
}

func TestPersistFailureKeepsPreviousFile(t *testing.T) {
    dir := t.TempDir()
    path := filepath.Join(dir, "list.txt")
    if err := os.WriteFile(path, []byte("old:1"), 0o644); err != nil { t.Fatal(err) }
    // A directory in place of the temp file makes the write fail before rename.
    if err := os.Mkdir(path+".tmp", 0o755); err != nil { t.Fatal(err) }

    tbl := New(Options{TTL: 3, Path: path})
    tbl.Add("a")
    err := tbl.Decrement()
    if !errors.Is(err, ErrPersist) { t.Fatalf("want ErrPersist, got %v", err) }
    if life, ok := tbl.Lifetime("a"); !ok || life != 2 { t.Fatalf("in-memory table must stay authoritative, got %d %v", life, ok) }
    b, _ := os.ReadFile(path)
    if string(b) != "old:1" { t.Fatalf("previous file clobbered: %q", b) }

    // Next pass retries once the obstruction is gone.
    if err := os.Remove(path + ".tmp"); err != nil { t.Fatal(err) }
    if err := tbl.Decrement(); err != nil { t.Fatalf("retry: %v", err) }
    b, _ = os.ReadFile(path)
    if string(b) != "a:1" { t.Fatalf("retry persisted %q", b) }
}

func TestLoadRestoresClamped(t *testing.T) {
    dir := t.TempDir()
    path := filepath.Join(dir, "list.txt")
    if err := os.WriteFile(path, []byte("a:9\nb:1\nc:0\nbad\nme:3"), 0o644); err != nil { t.Fatal(err) }
    tbl := New(Options{TTL: 3, Path: path, Self: "me"})
    if err := tbl.Load(); err != nil { t.Fatal(err) }
    want := []Entry{{"a", 3}, {"b", 1}}
    if got := tbl.Snapshot(); !reflect.DeepEqual(got, want) { t.Fatalf("Snapshot = %v, want %v", got, want) }

    missing := New(Options{Path: filepath.Join(dir, "nope.txt")})
    if err := missing.Load(); err != nil { t.Fatalf("missing file: %v", err) }
}

func TestConcurrentAddAndDecay(t *testing.T) {
    tbl, _ := newTable(t, 3)
    names := []string{"a", "b", "c", "d"}
    var wg sync.WaitGroup
    wg.Add(2)
    go func() {
        defer wg.Done()
        for i := 0; i < 1000; i++ { tbl.Add(names[i%len(names)]) }
    }()
    go func() {
        defer wg.Done()
        for i := 0; i < 1000; i++ { _ = tbl.Decrement() }
    }()
    wg.Wait()
    for _, e := range tbl.Snapshot() {
        if e.Lifetime < 1 || e.Lifetime > 3 { t.Fatalf("out-of-range lifetime: %+v", e) }
    }
}

func TestRunDecayStopsOnCancel(t *testing.T) {
    tbl := New(Options{TTL: 100})
    tbl.Add("a")
    ctx, cancel := context.WithCancel(context.Background())
    done := make(chan struct{})
    go func() { tbl.RunDecay(ctx, 5*time.Millisecond); close(done) }()
    time.Sleep(30 * time.Millisecond)
    cancel()
    select {
    case <-done:
    case <-time.After(time.Second):
        t.Fatalf("RunDecay did not return after cancel")
    }
    life, _ := tbl.Lifetime("a")
    if life >= 100 { t.Fatalf("no decay observed: %d", life) }
    after, _ := tbl.Lifetime("a")
    time.Sleep(20 * time.Millisecond)
    if now, _ := tbl.Lifetime("a"); now != after { t.Fatalf("table mutated after RunDecay returned") }
}

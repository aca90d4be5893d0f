package file

import (
    "os"
    "path/filepath"
    "reflect"
    "testing"
    "time"
)

func write(t *testing.T, path, body string) {
    t.Helper()
    if err := os.WriteFile(path, []byte(body), 0o644); err != nil { t.Fatal(err) }
}

func TestEnvOverridesFile(t *testing.T) {
    f := filepath.Join(t.TempDir(), "peers.txt")
    write(t, f, "a:1\n")
    t.Setenv("NDNDROP_TEST_PEERS", "y:8, x:9")

    got := New(Options{Path: f, Env: "NDNDROP_TEST_PEERS"}).Seeds()
    if want := []string{"x:9", "y:8"}; !reflect.DeepEqual(got, want) { t.Fatalf("got %q, want %q", got, want) }
}

func TestFileRefresh(t *testing.T) {
    f := filepath.Join(t.TempDir(), "peers.txt")
    write(t, f, "# forwarders\na:1\nb:2\n")
    d := New(Options{Path: f, Refresh: 10 * time.Millisecond})
    if got := d.Seeds(); !reflect.DeepEqual(got, []string{"a:1", "b:2"}) { t.Fatalf("initial %q", got) }

    write(t, f, "b:2,c:3\n")
    time.Sleep(15 * time.Millisecond)
    if got := d.Seeds(); !reflect.DeepEqual(got, []string{"b:2", "c:3"}) { t.Fatalf("refreshed %q", got) }
}

func TestGlobMergesFiles(t *testing.T) {
    dir := t.TempDir()
    write(t, filepath.Join(dir, "a.txt"), "a:1\nb:2\n")
    write(t, filepath.Join(dir, "b.txt"), "b:2\nc:3\n")
    got := New(Options{Path: filepath.Join(dir, "*.txt")}).Seeds()
    if want := []string{"a:1", "b:2", "c:3"}; !reflect.DeepEqual(got, want) { t.Fatalf("got %q", got) }
}

func TestMissingPath(t *testing.T) {
    if got := New(Options{Path: filepath.Join(t.TempDir(), "none")}).Seeds(); len(got) != 0 { t.Fatalf("got %q", got) }
}

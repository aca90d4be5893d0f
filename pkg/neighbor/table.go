// Package neighbor keeps the soft-state list of reachable peers. Entries are
// refreshed whenever a peer is heard from and decay once per heartbeat; the
// list is persisted after every decay pass.
package neighbor

import (
    "context"
    "errors"
    "fmt"
    "log"
    "os"
    "sort"
    "strconv"
    "strings"
    "sync"
    "time"

    "github.com/carlossantillana/ndn-drop/pkg/internal/logutil"
    obsmetrics "github.com/carlossantillana/ndn-drop/pkg/observability/metrics"
)

const (
    DefaultTTL  = 3
    DefaultPath = "neighborList.txt"
)

var ErrPersist = errors.New("neighbor: persist failed")

// Options configures a Table.
type Options struct {
    // TTL is the lifetime given to an entry on every refresh. Zero means DefaultTTL.
    TTL int
    // Path is the persisted file. Empty disables persistence.
    Path string
    // Self is this node's own name; it is never inserted.
    Self string
    Logger  *log.Logger
    Verbose bool
}

// Entry is one neighbor and its remaining lifetime in decay passes.
type Entry struct {
    Name     string `json:"name"`
    Lifetime int    `json:"lifetime"`
}

// Table maps neighbor names to remaining lifetimes. All methods are safe for
// concurrent use; mu is held only for the map operation itself.
type Table struct {
    opts      Options
    mu        sync.Mutex
    entries   map[string]int
    persistMu sync.Mutex
}

func New(opts Options) *Table {
    if opts.TTL <= 0 { opts.TTL = DefaultTTL }
    if opts.Logger == nil { opts.Logger = log.Default() }
    return &Table{opts: opts, entries: make(map[string]int)}
}

// TTL returns the configured lifetime.
func (t *Table) TTL() int { return t.opts.TTL }

// Add inserts name with a full lifetime, overwriting any existing entry. It
// reports false when the name is rejected (empty, self, or not encodable).
func (t *Table) Add(name string) bool {
    if !t.acceptable(name) { return false }
    t.mu.Lock()
    t.entries[name] = t.opts.TTL
    n := len(t.entries)
    t.mu.Unlock()
    obsmetrics.Neighbors.Set(float64(n))
    return true
}

func (t *Table) acceptable(name string) bool {
    if name == "" || name == t.opts.Self { return false }
    return !strings.ContainsAny(name, ":\n")
}

// Decrement ages every entry by one pass, evicting entries that reach zero,
// then persists the table. A persistence failure leaves the in-memory table
// untouched; the next pass writes it again.
func (t *Table) Decrement() error {
    // persistMu is taken first so snapshots reach disk in the order they were taken.
    t.persistMu.Lock()
    defer t.persistMu.Unlock()

    t.mu.Lock()
    for name, life := range t.entries {
        if life <= 1 {
            delete(t.entries, name)
            continue
        }
        t.entries[name] = life - 1
    }
    blob := t.serializeLocked()
    n := len(t.entries)
    t.mu.Unlock()

    obsmetrics.Neighbors.Set(float64(n))
    logutil.Debugf(t.opts.Logger, t.opts.Verbose, "neighbor list after decay (%d):\n%s", n, blob)
    if t.opts.Path == "" { return nil }
    if err := writeAtomic(t.opts.Path, blob); err != nil {
        obsmetrics.PersistFailures.Inc()
        logutil.Errorf(t.opts.Logger, "neighbor: persist %s: %v", t.opts.Path, err)
        return fmt.Errorf("%w: %v", ErrPersist, err)
    }
    return nil
}

// writeAtomic replaces path with blob through <path>.tmp and a rename, so
// readers only ever see a complete file.
func writeAtomic(path, blob string) error {
    tmp := path + ".tmp"
    f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
    if err != nil { return err }
    if _, err := f.WriteString(blob); err != nil {
        _ = f.Close()
        _ = os.Remove(tmp)
        return err
    }
    if err := f.Sync(); err != nil {
        _ = f.Close()
        _ = os.Remove(tmp)
        return err
    }
    if err := f.Close(); err != nil {
        _ = os.Remove(tmp)
        return err
    }
    return os.Rename(tmp, path)
}

// Serialize encodes the table as name:lifetime lines joined by newlines, with
// no trailing newline. Lines are sorted by name.
func (t *Table) Serialize() string {
    t.mu.Lock()
    defer t.mu.Unlock()
    return t.serializeLocked()
}

func (t *Table) serializeLocked() string {
    if len(t.entries) == 0 { return "" }
    names := make([]string, 0, len(t.entries))
    for name := range t.entries { names = append(names, name) }
    sort.Strings(names)
    var b strings.Builder
    for i, name := range names {
        if i > 0 { b.WriteByte('\n') }
        b.WriteString(name)
        b.WriteByte(':')
        b.WriteString(strconv.Itoa(t.entries[name]))
    }
    return b.String()
}

// Deserialize merges a blob produced by Serialize. Every well-formed line
// refreshes its name to the local TTL; the received lifetime is ignored, so
// any name:<count> line is accepted whatever the count holds. Lines without
// exactly two fields or with an empty name are skipped.
func (t *Table) Deserialize(blob string) {
    if blob == "" { return }
    var names []string
    for _, line := range strings.Split(blob, "\n") {
        name, _, ok := splitLine(line)
        if !ok {
            logutil.Debugf(t.opts.Logger, t.opts.Verbose, "neighbor: skipping malformed line %q", line)
            continue
        }
        if t.acceptable(name) { names = append(names, name) }
    }
    if len(names) == 0 { return }
    t.mu.Lock()
    for _, name := range names { t.entries[name] = t.opts.TTL }
    n := len(t.entries)
    t.mu.Unlock()
    obsmetrics.Neighbors.Set(float64(n))
}

func splitLine(line string) (name, count string, ok bool) {
    parts := strings.Split(line, ":")
    if len(parts) != 2 || parts[0] == "" { return "", "", false }
    return parts[0], parts[1], true
}

// parseLine is the strict form used for the persisted file, where the
// lifetime is kept.
func parseLine(line string) (string, int, bool) {
    name, field, ok := splitLine(line)
    if !ok { return "", 0, false }
    count, err := strconv.Atoi(field)
    if err != nil || count < 0 { return "", 0, false }
    return name, count, true
}

// Load restores a previously persisted table. A missing file is not an
// error. Persisted lifetimes are kept but clamped to the TTL.
func (t *Table) Load() error {
    if t.opts.Path == "" { return nil }
    b, err := os.ReadFile(t.opts.Path)
    if errors.Is(err, os.ErrNotExist) { return nil }
    if err != nil { return err }
    t.mu.Lock()
    for _, line := range strings.Split(string(b), "\n") {
        name, count, ok := parseLine(line)
        if !ok || count == 0 || !t.acceptable(name) { continue }
        if count > t.opts.TTL { count = t.opts.TTL }
        t.entries[name] = count
    }
    n := len(t.entries)
    t.mu.Unlock()
    obsmetrics.Neighbors.Set(float64(n))
    logutil.Infof(t.opts.Logger, "neighbor: restored %d entries from %s", n, t.opts.Path)
    return nil
}

// Lifetime returns the remaining lifetime of name.
func (t *Table) Lifetime(name string) (int, bool) {
    t.mu.Lock()
    defer t.mu.Unlock()
    life, ok := t.entries[name]
    return life, ok
}

func (t *Table) Len() int {
    t.mu.Lock()
    defer t.mu.Unlock()
    return len(t.entries)
}

// Names returns the current neighbor names, sorted.
func (t *Table) Names() []string {
    t.mu.Lock()
    names := make([]string, 0, len(t.entries))
    for name := range t.entries { names = append(names, name) }
    t.mu.Unlock()
    sort.Strings(names)
    return names
}

// Snapshot returns a sorted copy of all entries.
func (t *Table) Snapshot() []Entry {
    t.mu.Lock()
    out := make([]Entry, 0, len(t.entries))
    for name, life := range t.entries { out = append(out, Entry{Name: name, Lifetime: life}) }
    t.mu.Unlock()
    sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
    return out
}

// RunDecay calls Decrement every period until ctx is done.
func (t *Table) RunDecay(ctx context.Context, every time.Duration) {
    if every <= 0 { every = time.Second }
    ticker := time.NewTicker(every)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            _ = t.Decrement()
        }
    }
}

// Package file reads peer addresses from a file, a glob of files, or an
// environment variable.
package file

import (
    "os"
    "path/filepath"
    "strings"
    "sync"
    "time"

    "github.com/carlossantillana/ndn-drop/pkg/discovery"
)

type Options struct {
    // Path is a file or glob; each line holds one or more comma-separated
    // addresses. Lines starting with # are ignored.
    Path string
    // Env, when set and non-empty in the environment, overrides Path.
    Env string
    // Refresh bounds how long a read is reused. Defaults to 5s.
    Refresh time.Duration
}

type source struct {
    opts Options

    mu     sync.Mutex
    read   time.Time
    mtimes map[string]time.Time
    cache  []string
}

func New(opts Options) discovery.Discovery {
    if opts.Refresh <= 0 { opts.Refresh = 5 * time.Second }
    return &source{opts: opts}
}

func (s *source) Seeds() []string {
    if s.opts.Env != "" {
        if v := strings.TrimSpace(os.Getenv(s.opts.Env)); v != "" { return discovery.Normalize(discovery.SplitList(v)) }
    }
    if s.opts.Path == "" { return nil }

    s.mu.Lock()
    defer s.mu.Unlock()
    files := s.files()
    if s.stale(files) {
        var all []string
        mtimes := make(map[string]time.Time, len(files))
        for _, f := range files {
            b, err := os.ReadFile(f)
            if err != nil { continue }
            all = append(all, discovery.SplitList(string(b))...)
            if st, err := os.Stat(f); err == nil { mtimes[f] = st.ModTime() }
        }
        s.cache = discovery.Normalize(all)
        s.mtimes = mtimes
        s.read = time.Now()
    }
    return append([]string(nil), s.cache...)
}

func (s *source) files() []string {
    if _, err := os.Stat(s.opts.Path); err == nil { return []string{s.opts.Path} }
    matches, _ := filepath.Glob(s.opts.Path)
    return matches
}

// stale reports whether the cache has aged out or any file changed.
func (s *source) stale(files []string) bool {
    if s.mtimes == nil || time.Since(s.read) >= s.opts.Refresh || len(files) != len(s.mtimes) { return true }
    for _, f := range files {
        st, err := os.Stat(f)
        if err != nil || !st.ModTime().Equal(s.mtimes[f]) { return true }
    }
    return false
}

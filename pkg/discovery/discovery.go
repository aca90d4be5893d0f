// Package discovery supplies the forwarder addresses of peer nodes.
package discovery

import (
    "sort"
    "strings"
)

// Discovery returns the current peer forwarder addresses (host:port).
// Implementations must be safe for concurrent use and return a fresh slice.
type Discovery interface {
    Seeds() []string
}

// Normalize trims, de-duplicates and sorts addrs, dropping empty entries and
// comment lines.
func Normalize(addrs []string) []string {
    set := make(map[string]struct{}, len(addrs))
    for _, a := range addrs {
        a = strings.TrimSpace(a)
        if a == "" || strings.HasPrefix(a, "#") { continue }
        set[a] = struct{}{}
    }
    if len(set) == 0 { return nil }
    out := make([]string, 0, len(set))
    for a := range set { out = append(out, a) }
    sort.Strings(out)
    return out
}

// SplitList splits a comma- or newline-separated address list.
func SplitList(s string) []string {
    return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' || r == '\r' })
}

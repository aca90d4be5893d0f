package face

import "strings"

// Components splits an NDN-style URI into its non-empty components.
func Components(name string) []string {
    parts := strings.Split(strings.TrimSpace(name), "/")
    out := parts[:0]
    for _, p := range parts {
        if p != "" { out = append(out, p) }
    }
    return out
}

// Join builds a canonical name from components, which may themselves contain
// slashes.
func Join(parts ...string) string {
    var comps []string
    for _, p := range parts {
        comps = append(comps, Components(p)...)
    }
    return "/" + strings.Join(comps, "/")
}

// Canonical normalizes duplicate and trailing slashes.
func Canonical(name string) string { return Join(name) }

// HasPrefix reports whether prefix matches name component-wise.
func HasPrefix(name, prefix string) bool {
    n, p := Components(name), Components(prefix)
    if len(p) > len(n) { return false }
    for i := range p {
        if n[i] != p[i] { return false }
    }
    return true
}

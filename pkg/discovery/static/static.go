// Package static is a fixed peer list, typically from --peers.
package static

import "github.com/carlossantillana/ndn-drop/pkg/discovery"

type peers []string

func (p peers) Seeds() []string { return append([]string(nil), p...) }

// New returns a Discovery that always yields addrs, normalized.
func New(addrs ...string) discovery.Discovery { return peers(discovery.Normalize(addrs)) }

// Parse builds a static Discovery from a comma-separated list.
func Parse(csv string) discovery.Discovery { return New(discovery.SplitList(csv)...) }

// Package status serves a node's run state over HTTP: /status (JSON),
// /neighbors (the serialized table), /healthz and /metrics.
package status

import (
    "context"
    "time"

    "github.com/carlossantillana/ndn-drop/pkg/neighbor"
    "github.com/carlossantillana/ndn-drop/pkg/stats"
)

// Report is the /status payload.
type Report struct {
    Node       string            `json:"node"`
    RunID      string            `json:"runId"`
    Mode       string            `json:"mode"`
    State      string            `json:"state"`
    Started    time.Time         `json:"started"`
    Neighbors  []neighbor.Entry  `json:"neighbors"`
    Statistics *stats.Statistics `json:"statistics,omitempty"`
    Served     int               `json:"served"`
    Drops      int               `json:"drops,omitempty"`
    Peers      []string          `json:"peers,omitempty"`
}

// Func builds the current report.
type Func func(ctx context.Context) (Report, error)

// NeighborsFunc returns the serialized neighbor table.
type NeighborsFunc func() string

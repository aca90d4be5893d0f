package probe

import (
    "fmt"
    "strings"
)

// Kind is the type of probe emitted by one scheduled event.
type Kind int

const (
    Discover Kind = iota
    Drop
)

func (k Kind) String() string {
    if k == Discover { return "discover" }
    return "drop"
}

// ParseKinds parses a comma-separated cadence such as "discover,drop,drop".
func ParseKinds(csv string) ([]Kind, error) {
    var out []Kind
    for _, p := range strings.Split(csv, ",") {
        switch strings.ToLower(strings.TrimSpace(p)) {
        case "":
            continue
        case "discover":
            out = append(out, Discover)
        case "drop":
            out = append(out, Drop)
        default:
            return nil, fmt.Errorf("probe: unknown event kind %q", p)
        }
    }
    if len(out) == 0 { return nil, fmt.Errorf("probe: empty event list") }
    return out, nil
}

// State is the scheduler lifecycle state.
type State int32

const (
    Idle State = iota
    Running
    Draining
    Stopped
)

func (s State) String() string {
    switch s {
    case Idle:
        return "idle"
    case Running:
        return "running"
    case Draining:
        return "draining"
    default:
        return "stopped"
    }
}

package face

import (
    "context"
    "errors"
    "time"
)

// DefaultLifetime applies to interests expressed without a lifetime.
const DefaultLifetime = 4 * time.Second

var (
    ErrClosed        = errors.New("face: closed")
    ErrInvalidPrefix = errors.New("face: invalid prefix")
    ErrNilHandler    = errors.New("face: nil interest handler")
)

// Interest is a named request.
type Interest struct {
    Name        string        `json:"name"`
    Lifetime    time.Duration `json:"lifetime"`
    MustBeFresh bool          `json:"mustBeFresh,omitempty"`
    Nonce       string        `json:"nonce,omitempty"`
}

// Data answers an Interest with the same name.
type Data struct {
    Name      string        `json:"name"`
    Content   []byte        `json:"content,omitempty"`
    Freshness time.Duration `json:"freshness,omitempty"`
    Signature []byte        `json:"signature,omitempty"`
}

// NackReason explains why an interest was rejected.
type NackReason int

const (
    NackNone NackReason = iota
    NackCongestion
    NackDuplicate
    NackNoRoute
)

func (r NackReason) String() string {
    switch r {
    case NackCongestion:
        return "Congestion"
    case NackDuplicate:
        return "Duplicate"
    case NackNoRoute:
        return "NoRoute"
    default:
        return "None"
    }
}

type ResultKind int

const (
    Success ResultKind = iota
    Rejected
    Expired
)

func (k ResultKind) String() string {
    switch k {
    case Success:
        return "data"
    case Rejected:
        return "nack"
    default:
        return "timeout"
    }
}

// Result is the single outcome of an expressed interest. Data is set for
// Success, Reason for Rejected.
type Result struct {
    Kind   ResultKind
    Data   Data
    Reason NackReason
}

// InterestHandler is invoked for every interest routed to a registered prefix.
// Handlers answer by calling Put on the face they registered with.
type InterestHandler func(in Interest)

// Registration is a prefix registration that can be withdrawn. Cancel is
// idempotent.
type Registration interface {
    Cancel()
}

// Face is the request/response collaborator used by probe clients and
// responders.
type Face interface {
    // Express sends in and returns a channel that yields exactly one Result.
    Express(ctx context.Context, in Interest) <-chan Result
    Register(prefix string, h InterestHandler) (Registration, error)
    Put(d Data) error
    Close() error
}

// Resolved returns a buffered channel already holding r.
func Resolved(r Result) <-chan Result {
    ch := make(chan Result, 1)
    ch <- r
    return ch
}

// Nack is shorthand for a Rejected result.
func Nack(reason NackReason) Result { return Result{Kind: Rejected, Reason: reason} }

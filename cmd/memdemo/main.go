package main

import (
    "context"
    "flag"
    "fmt"
    "log"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/carlossantillana/ndn-drop/pkg/discovery"
    "github.com/carlossantillana/ndn-drop/pkg/discovery/gossip"
)

// memdemo runs a bare gossip member and prints the forwarder addresses it
// learns, which is handy when checking a --discovery gossip deployment.
func main() {
    var (
        id        = flag.String("id", "node-1", "node id")
        bind      = flag.String("bind", ":7946", "bind host:port")
        advertise = flag.String("advertise", "", "advertise host:port (optional)")
        faceAddr  = flag.String("face", "", "forwarder address to announce (optional)")
        joinCSV   = flag.String("join", "", "comma-separated seeds (host:port)")
        every     = flag.Duration("every", 2*time.Second, "how often to print the member list")
    )
    flag.Parse()

    ctx, cancel := signalContext()
    defer cancel()

    g, err := gossip.New(gossip.Options{
        NodeID: *id, Bind: *bind, Advertise: *advertise, FaceAddr: *faceAddr,
        Join: discovery.SplitList(*joinCSV), Logger: log.Default(), Verbose: true,
    })
    if err != nil { log.Fatal(err) }
    defer g.Close()

    fmt.Printf("memdemo started on %s. Press Ctrl+C to exit.\n", g.Addr())
    t := time.NewTicker(*every)
    defer t.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-t.C:
            for _, m := range g.Members() {
                fmt.Printf("member: id=%s addr=%s face=%s\n", m.ID, m.Addr, m.FaceAddr)
            }
            fmt.Printf("seeds=%v health=%d\n", g.Seeds(), g.HealthScore())
        }
    }
}

func signalContext() (context.Context, context.CancelFunc) {
    return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

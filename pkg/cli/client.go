package cli

import (
    "github.com/spf13/cobra"

    "github.com/carlossantillana/ndn-drop/pkg/bootstrap"
)

// NewClientCmd probes <prefix> as node <home>/<node> and exits 0 when every
// probe was answered with Data, 1 otherwise.
func NewClientCmd() *cobra.Command {
    cfg := bootstrap.Default()
    var configPath string
    cmd := &cobra.Command{
        Use:   "client <prefix> <home> <node> <module>",
        Short: "Probe a prefix with discover or drop Interests",
        Long: "Sends discover and drop probes under <prefix>, answers discover probes\n" +
            "from other nodes with the neighbor table, and prints a ping-style summary.\n" +
            "<module> is discover (discover and drop, alternating) or drop.",
        Args: cobra.ExactArgs(4),
        RunE: func(cmd *cobra.Command, args []string) error {
            if err := applyConfigFile(cmd, &cfg, configPath); err != nil { return &ExitError{Code: 2, Err: err} }
            cfg.Mode = bootstrap.ModeClient
            cfg.Prefix, cfg.Home, cfg.Node, cfg.Module = args[0], args[1], args[2], args[3]
            out := cmd.OutOrStdout()
            cfg.Output = out
            flush := setupAmbient(cmd, &cfg)
            defer flush()

            ctx, cancel := signalContext(cmd.Context())
            defer cancel()
            n, err := bootstrap.Run(ctx, cfg)
            if err != nil { return &ExitError{Code: 2, Err: err} }
            stopQuit := onQuit(func() { _ = n.Statistics().WriteSummary(out) })
            select {
            case <-n.Done():
            case <-ctx.Done():
            }
            stopQuit()
            n.Stop()

            st := n.Statistics()
            _ = st.WriteSummary(out)
            if st.NSent != st.NReceived { return &ExitError{Code: 1} }
            return nil
        },
    }
    f := cmd.Flags()
    f.DurationVarP(&cfg.Interval, "interval", "i", cfg.Interval, "time between probes")
    f.DurationVarP(&cfg.Timeout, "timeout", "o", cfg.Timeout, "probe Interest lifetime")
    f.IntVarP(&cfg.Count, "count", "c", cfg.Count, "number of probes to send (0 or -1 is unbounded)")
    f.Int64VarP(&cfg.Start, "start", "n", cfg.Start, "first sequence number (-1 picks one at random)")
    f.StringVarP(&cfg.Identifier, "identifier", "p", "", "alphanumeric component inserted into drop names")
    f.BoolVarP(&cfg.AllowStale, "cache", "a", false, "allow cached (stale) Data to answer probes")
    f.BoolVarP(&cfg.Timestamp, "timestamp", "t", false, "prefix each trace line with a timestamp")
    f.StringVar(&cfg.Events, "events", "", "comma-separated probe cadence, e.g. discover,drop,drop (overrides <module>)")
    f.DurationVar(&cfg.Jitter, "jitter", cfg.Jitter, "maximum random delay before answering a discover probe (negative disables it)")
    f.IntVar(&cfg.MaxServe, "max-serve", 0, "finish after answering this many discover probes (0 disables it)")
    f.BoolVar(&cfg.ExcludeNackRtt, "exclude-nack-rtt", false, "keep NACK round trips out of the RTT statistics")
    f.IntVar(&cfg.TTL, "ttl", cfg.TTL, "neighbor lifetime in heartbeats")
    f.DurationVar(&cfg.Heartbeat, "heartbeat", cfg.Heartbeat, "neighbor table decay period")
    f.StringVar(&cfg.NeighborFile, "neighbor-file", cfg.NeighborFile, "persist the neighbor table to this file after every decay pass (empty disables it)")
    nodeFlags(cmd, &cfg, &configPath)
    return cmd
}

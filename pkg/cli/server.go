package cli

import (
    "fmt"

    "github.com/spf13/cobra"

    "github.com/carlossantillana/ndn-drop/pkg/bootstrap"
)

// NewServerCmd answers drop probes under <prefix> until interrupted or the
// drop budget is spent.
func NewServerCmd() *cobra.Command {
    cfg := bootstrap.Default()
    cfg.Mode = bootstrap.ModeServer
    var configPath string
    cmd := &cobra.Command{
        Use:   "server <prefix>",
        Short: "Answer drop probes under a prefix",
        Args:  cobra.ExactArgs(1),
        RunE: func(cmd *cobra.Command, args []string) error {
            if err := applyConfigFile(cmd, &cfg, configPath); err != nil { return &ExitError{Code: 2, Err: err} }
            cfg.Mode = bootstrap.ModeServer
            cfg.Prefix = args[0]
            out := cmd.OutOrStdout()
            flush := setupAmbient(cmd, &cfg)
            defer flush()

            ctx, cancel := signalContext(cmd.Context())
            defer cancel()
            n, err := bootstrap.Run(ctx, cfg)
            if err != nil { return &ExitError{Code: 2, Err: err} }
            fmt.Fprintf(out, "DROP SERVER %s\n", cfg.Prefix)
            if addr := n.ForwarderAddr(); addr != "" { fmt.Fprintf(out, "forwarder listening on %s\n", addr) }
            select {
            case <-n.Done():
            case <-ctx.Done():
            }
            r, _ := n.Report(ctx)
            n.Stop()
            fmt.Fprintf(out, "\n--- drop server %s ---\n%d packets processed\n", cfg.Prefix, r.Drops)
            return nil
        },
    }
    f := cmd.Flags()
    f.IntVarP(&cfg.PayloadSize, "size", "s", cfg.PayloadSize, "drop reply payload size in bytes")
    f.DurationVarP(&cfg.Freshness, "freshness", "x", cfg.Freshness, "freshness period of drop replies")
    f.IntVarP(&cfg.MaxDrops, "max-drops", "p", 0, "exit after answering this many drops (0 is unbounded)")
    nodeFlags(cmd, &cfg, &configPath)
    return cmd
}

package cli

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    "github.com/spf13/cobra"

    "github.com/carlossantillana/ndn-drop/pkg/bootstrap"
    tlsx "github.com/carlossantillana/ndn-drop/pkg/security/tlsconfig"
    "github.com/carlossantillana/ndn-drop/pkg/status"
)

// NewStatusCmd fetches /status (or /neighbors) from a running node.
func NewStatusCmd() *cobra.Command {
    var (
        addr      string
        timeout   time.Duration
        neighbors bool
        tcfg      bootstrap.TLSConfig
    )
    cmd := &cobra.Command{
        Use:   "status",
        Short: "Show a running node's state",
        Args:  cobra.NoArgs,
        RunE: func(cmd *cobra.Command, _ []string) error {
            if addr == "" { return &ExitError{Code: 2, Err: errors.New("--addr is required")} }
            c := status.NewClient(timeout)
            if tcfg.Enable {
                tc, err := tlsx.Options{Enable: true, CAFile: tcfg.CA, CertFile: tcfg.Cert, KeyFile: tcfg.Key, ServerName: tcfg.ServerName, InsecureSkipVerify: tcfg.SkipVerify}.Client()
                if err != nil { return &ExitError{Code: 2, Err: err} }
                c.UseTLS(tc)
            }
            ctx, cancel := context.WithTimeout(cmd.Context(), 4*timeout)
            defer cancel()
            out := cmd.OutOrStdout()
            if neighbors {
                s, err := c.GetNeighbors(ctx, addr)
                if err != nil { return err }
                if s != "" { fmt.Fprintln(out, s) }
                return nil
            }
            r, err := c.GetStatus(ctx, addr)
            if err != nil { return err }
            enc := json.NewEncoder(out)
            enc.SetIndent("", "  ")
            return enc.Encode(r)
        },
    }
    cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "status address of the node")
    cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "per-request timeout")
    cmd.Flags().BoolVar(&neighbors, "neighbors", false, "print the serialized neighbor table instead")
    tlsFlags(cmd, &tcfg)
    return cmd
}

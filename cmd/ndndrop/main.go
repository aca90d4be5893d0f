package main

import (
    "errors"
    "fmt"
    "os"

    "github.com/spf13/cobra"

    "github.com/carlossantillana/ndn-drop/pkg/cli"
)

func main() {
    err := newRoot().Execute()
    var ee *cli.ExitError
    if err != nil && !(errors.As(err, &ee) && ee.Err == nil) {
        fmt.Fprintln(os.Stderr, "ndndrop:", err)
    }
    os.Exit(cli.ExitCode(err))
}

func newRoot() *cobra.Command {
    root := &cobra.Command{
        Use:           "ndndrop",
        Short:         "NDN liveness probing and neighbor discovery",
        SilenceUsage:  true,
        SilenceErrors: true,
    }
    cli.AddAll(root)
    return root
}

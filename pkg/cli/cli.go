// Package cli holds the ndndrop cobra commands so they can be mounted in
// other binaries.
package cli

import (
    "context"
    "errors"
    "fmt"
    "os"
    "os/signal"
    "syscall"

    "github.com/spf13/cobra"
)

// ExitError carries a process exit code out of a command.
type ExitError struct {
    Code int
    Err  error
}

func (e *ExitError) Error() string {
    if e.Err == nil { return fmt.Sprintf("exit status %d", e.Code) }
    return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps a command error to a process exit code: 0 on success, the
// carried code for an ExitError, and 2 for anything else (bad arguments,
// startup failures).
func ExitCode(err error) int {
    if err == nil { return 0 }
    var ee *ExitError
    if errors.As(err, &ee) { return ee.Code }
    return 2
}

// AddAll attaches client, server and status to root.
func AddAll(root *cobra.Command) {
    root.AddCommand(NewClientCmd())
    root.AddCommand(NewServerCmd())
    root.AddCommand(NewStatusCmd())
}

// signalContext is cancelled on SIGINT or SIGTERM, or with parent.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
    if parent == nil { parent = context.Background() }
    return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// onQuit calls fn on every SIGQUIT until the returned stop func is called.
func onQuit(fn func()) (stop func()) {
    ch := make(chan os.Signal, 1)
    signal.Notify(ch, syscall.SIGQUIT)
    done := make(chan struct{})
    go func() {
        for {
            select {
            case <-ch:
                fn()
            case <-done:
                return
            }
        }
    }()
    return func() {
        signal.Stop(ch)
        close(done)
    }
}

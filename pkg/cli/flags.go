package cli

import (
    "context"
    "fmt"
    "log"

    "github.com/spf13/cobra"
    "github.com/spf13/pflag"

    "github.com/carlossantillana/ndn-drop/pkg/bootstrap"
    "github.com/carlossantillana/ndn-drop/pkg/internal/logutil"
    "github.com/carlossantillana/ndn-drop/pkg/observability/tracing"
)

// nodeFlags binds the flags shared by client and server to cfg.
func nodeFlags(cmd *cobra.Command, cfg *bootstrap.Config, configPath *string) {
    f := cmd.Flags()
    f.StringVar(configPath, "config", "", "YAML config file; explicitly set flags take precedence")
    f.StringVar(&cfg.Listen, "listen", "", "gRPC forwarder listen address (host:port); empty disables it")
    f.StringVar(&cfg.Advertise, "advertise", "", "forwarder address announced to peers (defaults to the bound address)")
    f.StringVar(&cfg.StatusAddr, "status-addr", "", "HTTP status/metrics address (host:port); empty disables it")

    f.StringVar(&cfg.Discovery.Kind, "discovery", cfg.Discovery.Kind, "peer discovery: static|file|dns|gossip|etcd")
    f.StringVar(&cfg.Discovery.Peers, "peers", "", "comma-separated peer forwarder addresses (static discovery)")
    f.DurationVar(&cfg.Discovery.Refresh, "disc-refresh", cfg.Discovery.Refresh, "discovery cache duration")
    f.StringVar(&cfg.Discovery.FilePath, "file-path", "", "file or glob listing peer addresses (file discovery)")
    f.StringVar(&cfg.Discovery.FileEnv, "file-env", "", "environment variable with peer addresses; overrides --file-path")
    f.StringVar(&cfg.Discovery.DNSNames, "dns-names", "", "comma-separated SRV records or host names (dns discovery)")
    f.IntVar(&cfg.Discovery.DNSPort, "dns-port", 0, "forwarder port for A/AAAA answers (dns discovery)")
    f.StringVar(&cfg.Discovery.GossipBind, "gossip-bind", "", "memberlist bind address (gossip discovery)")
    f.StringVar(&cfg.Discovery.GossipJoin, "gossip-join", "", "comma-separated memberlist addresses to join (gossip discovery)")
    f.StringVar(&cfg.Discovery.EtcdEndpoints, "etcd-endpoints", "", "comma-separated etcd endpoints (etcd discovery)")
    f.StringVar(&cfg.Discovery.EtcdPrefix, "etcd-prefix", "", "etcd key prefix for forwarder registrations")
    f.Int64Var(&cfg.Discovery.EtcdTTL, "etcd-ttl", 0, "etcd lease TTL in seconds")

    tlsFlags(cmd, &cfg.TLS)
    f.BoolVar(&cfg.Trace, "trace", false, "enable OpenTelemetry stdout tracing")
    f.BoolVar(&cfg.LogJSON, "log-json", false, "log as JSON lines")
    f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "verbose logging")
}

func tlsFlags(cmd *cobra.Command, t *bootstrap.TLSConfig) {
    f := cmd.Flags()
    f.BoolVar(&t.Enable, "tls-enable", false, "enable mTLS on the forwarder and status endpoints")
    f.StringVar(&t.CA, "tls-ca", "", "CA certificate (PEM)")
    f.StringVar(&t.Cert, "tls-cert", "", "node certificate (PEM)")
    f.StringVar(&t.Key, "tls-key", "", "node private key (PEM)")
    f.StringVar(&t.ServerName, "tls-server-name", "", "expected server name")
    f.BoolVar(&t.SkipVerify, "tls-skip-verify", false, "skip server certificate verification (development only)")
    f.DurationVar(&t.Reload, "tls-reload", 0, "re-read the key pair after this long (0 loads it once)")
}

// applyConfigFile decodes path into cfg and then re-applies every flag the
// user set explicitly, so the command line wins over the file.
func applyConfigFile(cmd *cobra.Command, cfg *bootstrap.Config, path string) error {
    if path == "" { return nil }
    type setFlag struct{ name, value string }
    var changed []setFlag
    cmd.Flags().Visit(func(f *pflag.Flag) { changed = append(changed, setFlag{f.Name, f.Value.String()}) })
    loaded, err := bootstrap.LoadFile(path, *cfg)
    if err != nil { return err }
    *cfg = loaded
    for _, f := range changed {
        if err := cmd.Flags().Set(f.name, f.value); err != nil { return fmt.Errorf("flag --%s: %w", f.name, err) }
    }
    return nil
}

// setupAmbient applies logging and tracing settings; the returned func
// flushes the tracer.
func setupAmbient(cmd *cobra.Command, cfg *bootstrap.Config) func() {
    if cfg.LogJSON { logutil.SetJSON(true) }
    cfg.Logger = log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
    if !cfg.Trace { return func() {} }
    shutdown, err := tracing.Setup(true)
    if err != nil {
        logutil.Warnf(cfg.Logger, "tracing setup: %v", err)
        return func() {}
    }
    return func() { _ = shutdown(context.Background()) }
}

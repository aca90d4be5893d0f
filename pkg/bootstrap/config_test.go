package bootstrap

import (
    "errors"
    "os"
    "path/filepath"
    "testing"
    "time"

    "github.com/carlossantillana/ndn-drop/pkg/neighbor"
    "github.com/carlossantillana/ndn-drop/pkg/probe"
)

func TestValidate(t *testing.T) {
    ok := Default()
    ok.Prefix, ok.Home, ok.Node = "/ndn/edu", "home", "a"

    cases := []struct {
        name   string
        mutate func(*Config)
        valid  bool
    }{
        {"client", func(*Config) {}, true},
        {"server needs only prefix", func(c *Config) { c.Mode, c.Home, c.Node = ModeServer, "", "" }, true},
        {"unknown mode", func(c *Config) { c.Mode = "relay" }, false},
        {"missing node", func(c *Config) { c.Node = "" }, false},
        {"node with slash", func(c *Config) { c.Node = "a/b" }, false},
        {"bad module", func(c *Config) { c.Module = "ping" }, false},
        {"empty prefix", func(c *Config) { c.Prefix = "" }, false},
        {"interval too small", func(c *Config) { c.Interval = time.Microsecond }, false},
        {"bad identifier", func(c *Config) { c.Identifier = "x-1" }, false},
        {"bad events", func(c *Config) { c.Events = "discover,ping" }, false},
        {"gossip without listen", func(c *Config) { c.Discovery.Kind, c.Discovery.GossipBind = "gossip", "127.0.0.1:0" }, false},
        {"gossip", func(c *Config) { c.Listen, c.Discovery.Kind, c.Discovery.GossipBind = ":6363", "gossip", "127.0.0.1:0" }, true},
        {"etcd without endpoints", func(c *Config) { c.Listen, c.Discovery.Kind = ":6363", "etcd" }, false},
        {"unknown discovery", func(c *Config) { c.Discovery.Kind = "mdns" }, false},
        {"count -1 is unbounded", func(c *Config) { c.Count = -1 }, true},
        {"negative count", func(c *Config) { c.Count = -2 }, false},
    }
    for _, tc := range cases {
        c := ok
        tc.mutate(&c)
        err := c.Validate()
        if (err == nil) != tc.valid { t.Fatalf("%s: Validate() = %v", tc.name, err) }
        if err != nil && !errors.Is(err, ErrConfig) { t.Fatalf("%s: error not ErrConfig: %v", tc.name, err) }
    }
}

func TestEventsFollowModule(t *testing.T) {
    c := Default()
    if got := c.events(); len(got) != 2 || got[0] != probe.Discover || got[1] != probe.Drop { t.Fatalf("discover module: %v", got) }
    c.Module = ModuleDrop
    if got := c.events(); len(got) != 1 || got[0] != probe.Drop { t.Fatalf("drop module: %v", got) }
    c.Events = "drop,discover,drop"
    if got := c.events(); len(got) != 3 || got[1] != probe.Discover { t.Fatalf("explicit events: %v", got) }
}

func TestLoadFileOverlaysBase(t *testing.T) {
    path := filepath.Join(t.TempDir(), "ndndrop.yaml")
    body := "prefix: /ndn/edu/ucla\ninterval: 250ms\ncount: 5\ndiscovery:\n  kind: file\n  filePath: /etc/ndndrop/peers\n"
    if err := os.WriteFile(path, []byte(body), 0o644); err != nil { t.Fatal(err) }

    c, err := LoadFile(path, Default())
    if err != nil { t.Fatalf("LoadFile: %v", err) }
    if c.Prefix != "/ndn/edu/ucla" || c.Interval != 250*time.Millisecond || c.Count != 5 { t.Fatalf("decoded %+v", c) }
    if c.Discovery.Kind != "file" || c.Discovery.Refresh != 5*time.Second { t.Fatalf("discovery %+v", c.Discovery) }
    if c.Timeout != probe.DefaultTimeout { t.Fatalf("base value lost: %v", c.Timeout) }
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
    path := filepath.Join(t.TempDir(), "bad.yaml")
    if err := os.WriteFile(path, []byte("prefx: /typo\n"), 0o644); err != nil { t.Fatal(err) }
    if _, err := LoadFile(path, Default()); !errors.Is(err, ErrConfig) { t.Fatalf("got %v", err) }
    if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), Default()); !errors.Is(err, ErrConfig) { t.Fatalf("missing file: %v", err) }
}

func TestDefaultPersistsNeighbors(t *testing.T) {
    c := Default()
    if c.NeighborFile != neighbor.DefaultPath || c.TTL != neighbor.DefaultTTL {
        t.Fatalf("defaults: file=%q ttl=%d", c.NeighborFile, c.TTL)
    }
}

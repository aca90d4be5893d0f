package status

import (
    "context"
    "crypto/tls"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "net"
    "net/http"
    "sync"
    "time"

    "github.com/prometheus/client_golang/prometheus/promhttp"

    "github.com/carlossantillana/ndn-drop/pkg/internal/logutil"
    "github.com/carlossantillana/ndn-drop/pkg/observability/tracing"
)

type Server struct {
    bind   string
    logger *log.Logger
    tlsCfg *tls.Config

    mu  sync.Mutex
    srv *http.Server
    ln  net.Listener
}

func NewServer(bind string, logger *log.Logger) *Server {
    if logger == nil { logger = log.Default() }
    return &Server{bind: bind, logger: logger}
}

// UseTLS serves HTTPS with cfg.
func (s *Server) UseTLS(cfg *tls.Config) *Server { s.tlsCfg = cfg; return s }

func getOnly(h http.HandlerFunc) http.HandlerFunc {
    return func(w http.ResponseWriter, r *http.Request) {
        if r.Method != http.MethodGet { http.Error(w, "method not allowed", http.StatusMethodNotAllowed); return }
        h(w, r)
    }
}

// Handler returns the endpoint mux without starting a listener.
func Handler(report Func, neighbors NeighborsFunc) http.Handler {
    mux := http.NewServeMux()
    mux.HandleFunc("/status", getOnly(func(w http.ResponseWriter, r *http.Request) {
        ctx, end := tracing.StartSpan(r.Context(), "http.status")
        defer end()
        rep, err := report(ctx)
        if err != nil { http.Error(w, fmt.Sprintf("status error: %v", err), http.StatusInternalServerError); return }
        w.Header().Set("Content-Type", "application/json")
        _ = json.NewEncoder(w).Encode(rep)
    }))
    mux.HandleFunc("/neighbors", getOnly(func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Content-Type", "text/plain; charset=utf-8")
        _, _ = w.Write([]byte(neighbors()))
    }))
    mux.HandleFunc("/healthz", getOnly(func(w http.ResponseWriter, r *http.Request) {
        _, _ = w.Write([]byte("ok"))
    }))
    mux.Handle("/metrics", promhttp.Handler())
    return mux
}

// Start listens and serves until ctx is done or Stop is called.
func (s *Server) Start(ctx context.Context, report Func, neighbors NeighborsFunc) error {
    ln, err := net.Listen("tcp", s.bind)
    if err != nil { return err }
    if s.tlsCfg != nil { ln = tls.NewListener(ln, s.tlsCfg) }
    srv := &http.Server{Handler: Handler(report, neighbors), ReadHeaderTimeout: 5 * time.Second}

    s.mu.Lock()
    s.srv, s.ln = srv, ln
    s.mu.Unlock()

    go func() {
        <-ctx.Done()
        _ = s.Stop(context.Background())
    }()
    go func() {
        if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
            logutil.Errorf(s.logger, "status: serve: %v", err)
        }
    }()
    logutil.Infof(s.logger, "status: listening on %s", ln.Addr())
    return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.ln != nil { return s.ln.Addr().String() }
    return s.bind
}

// Stop shuts the server down, waiting at most two seconds.
func (s *Server) Stop(ctx context.Context) error {
    s.mu.Lock()
    srv := s.srv
    s.srv = nil
    s.mu.Unlock()
    if srv == nil { return nil }
    c, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    return srv.Shutdown(c)
}

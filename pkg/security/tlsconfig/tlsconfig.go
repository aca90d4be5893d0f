// Package tlsconfig builds mutual-TLS configs for the forwarder and status
// endpoints from PEM files.
package tlsconfig

import (
    "crypto/tls"
    "crypto/x509"
    "errors"
    "fmt"
    "os"
    "sync"
    "time"
)

var ErrNoKeyPair = errors.New("tls: certificate and key required")

type Options struct {
    Enable             bool
    CAFile             string
    CertFile           string
    KeyFile            string
    ServerName         string
    InsecureSkipVerify bool
    // Reload re-reads the key pair on handshake once it is older than this;
    // zero loads it once.
    Reload time.Duration
}

// Server returns nil when TLS is disabled. With a CA, client certificates are
// required and verified against it.
func (o Options) Server() (*tls.Config, error) {
    if !o.Enable { return nil, nil }
    if o.CertFile == "" || o.KeyFile == "" { return nil, ErrNoKeyPair }
    kp, err := o.keyPair()
    if err != nil { return nil, err }
    cfg := &tls.Config{MinVersion: tls.VersionTLS12, GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) { return kp.get() }}
    if o.CAFile != "" {
        pool, err := loadPool(o.CAFile)
        if err != nil { return nil, err }
        cfg.ClientCAs = pool
        cfg.ClientAuth = tls.RequireAndVerifyClientCert
    }
    return cfg, nil
}

// Client returns nil when TLS is disabled. The key pair is optional.
func (o Options) Client() (*tls.Config, error) {
    if !o.Enable { return nil, nil }
    cfg := &tls.Config{MinVersion: tls.VersionTLS12, ServerName: o.ServerName, InsecureSkipVerify: o.InsecureSkipVerify} //nolint:gosec
    if o.CAFile != "" {
        pool, err := loadPool(o.CAFile)
        if err != nil { return nil, err }
        cfg.RootCAs = pool
    }
    if o.CertFile != "" && o.KeyFile != "" {
        kp, err := o.keyPair()
        if err != nil { return nil, err }
        cfg.GetClientCertificate = func(*tls.CertificateRequestInfo) (*tls.Certificate, error) { return kp.get() }
    }
    return cfg, nil
}

func loadPool(path string) (*x509.CertPool, error) {
    pem, err := os.ReadFile(path)
    if err != nil { return nil, err }
    pool := x509.NewCertPool()
    if !pool.AppendCertsFromPEM(pem) { return nil, fmt.Errorf("tls: no certificates in %s", path) }
    return pool, nil
}

// keyPair caches a certificate, reloading it from disk when Reload elapses.
type keyPair struct {
    certFile, keyFile string
    reload            time.Duration

    mu     sync.Mutex
    cert   *tls.Certificate
    loaded time.Time
}

// keyPair loads the pair eagerly so a bad path fails at startup.
func (o Options) keyPair() (*keyPair, error) {
    kp := &keyPair{certFile: o.CertFile, keyFile: o.KeyFile, reload: o.Reload}
    if _, err := kp.get(); err != nil { return nil, err }
    return kp, nil
}

func (k *keyPair) get() (*tls.Certificate, error) {
    k.mu.Lock()
    defer k.mu.Unlock()
    if k.cert != nil && (k.reload <= 0 || time.Since(k.loaded) < k.reload) { return k.cert, nil }
    cert, err := tls.LoadX509KeyPair(k.certFile, k.keyFile)
    if err != nil {
        // Keep serving the previous certificate during a rotation in progress.
        if k.cert != nil { return k.cert, nil }
        return nil, err
    }
    k.cert, k.loaded = &cert, time.Now()
    return k.cert, nil
}

package status

import (
    "context"
    "crypto/tls"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "time"
)

// Client fetches status from a remote node, retrying with backoff.
type Client struct {
    httpc    *http.Client
    tr       *http.Transport
    scheme   string
    attempts int
}

func NewClient(timeout time.Duration) *Client {
    if timeout <= 0 { timeout = 3 * time.Second }
    tr := &http.Transport{}
    return &Client{httpc: &http.Client{Timeout: timeout, Transport: tr}, tr: tr, scheme: "http", attempts: 3}
}

// UseTLS switches to https with cfg.
func (c *Client) UseTLS(cfg *tls.Config) *Client {
    c.tr.TLSClientConfig = cfg
    if cfg != nil { c.scheme = "https" }
    return c
}

func (c *Client) GetStatus(ctx context.Context, addr string) (Report, error) {
    var rep Report
    b, err := c.get(ctx, addr, "/status")
    if err != nil { return rep, err }
    if err := json.Unmarshal(b, &rep); err != nil { return rep, fmt.Errorf("status: decode: %w", err) }
    return rep, nil
}

func (c *Client) GetNeighbors(ctx context.Context, addr string) (string, error) {
    b, err := c.get(ctx, addr, "/neighbors")
    return string(b), err
}

func (c *Client) get(ctx context.Context, addr, path string) ([]byte, error) {
    url := fmt.Sprintf("%s://%s%s", c.scheme, addr, path)
    var lastErr error
    for attempt := 0; attempt < c.attempts; attempt++ {
        if attempt > 0 {
            select {
            case <-ctx.Done():
                return nil, ctx.Err()
            case <-time.After(time.Duration(100*(1<<(attempt-1))) * time.Millisecond):
            }
        }
        b, err := c.once(ctx, url)
        if err == nil { return b, nil }
        lastErr = err
    }
    return nil, lastErr
}

func (c *Client) once(ctx context.Context, url string) ([]byte, error) {
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
    if err != nil { return nil, err }
    resp, err := c.httpc.Do(req)
    if err != nil { return nil, err }
    defer resp.Body.Close()
    b, err := io.ReadAll(resp.Body)
    if err != nil { return nil, err }
    if resp.StatusCode != http.StatusOK { return nil, fmt.Errorf("status: GET %s: %d: %s", url, resp.StatusCode, b) }
    return b, nil
}

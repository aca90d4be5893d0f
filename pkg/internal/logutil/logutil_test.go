package logutil

import (
    "bytes"
    "encoding/json"
    "log"
    "strings"
    "testing"
)

func TestTextLevels(t *testing.T) {
    SetJSON(false)
    var buf bytes.Buffer
    l := log.New(&buf, "", 0)
    Infof(l, "hello %d", 1)
    Warnf(l, "careful")
    Debugf(l, false, "hidden")
    Debugf(l, true, "shown")
    out := buf.String()
    for _, want := range []string{"INFO hello 1", "WARN careful", "DEBUG shown"} {
        if !strings.Contains(out, want) { t.Fatalf("missing %q in %q", want, out) }
    }
    if strings.Contains(out, "hidden") { t.Fatalf("debug line leaked: %q", out) }
}

func TestJSONMode(t *testing.T) {
    SetJSON(true)
    defer SetJSON(false)
    var buf bytes.Buffer
    l := log.New(&buf, "", 0)
    Errorf(l, "boom %s", "x")
    var evt map[string]any
    if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &evt); err != nil { t.Fatalf("decode: %v (%q)", err, buf.String()) }
    if evt["level"] != "error" || evt["msg"] != "boom x" { t.Fatalf("unexpected event: %v", evt) }
}

package grpcface

import (
    "context"
    "testing"
    "time"

    "github.com/stretchr/testify/require"
    "google.golang.org/grpc"
    "google.golang.org/grpc/credentials"
    "google.golang.org/grpc/credentials/insecure"

    "github.com/carlossantillana/ndn-drop/pkg/discovery/static"
    "github.com/carlossantillana/ndn-drop/pkg/face"
    "github.com/carlossantillana/ndn-drop/pkg/security"
)

// remote starts a hub behind a forwarder on a loopback port.
func remote(t *testing.T) (*face.Hub, string) {
    t.Helper()
    hub := face.NewHub(face.HubOptions{})
    t.Cleanup(func() { _ = hub.Close() })
    srv := NewServer("127.0.0.1:0", hub, nil)
    require.NoError(t, srv.Start(context.Background()))
    t.Cleanup(func() { _ = srv.Stop(context.Background()) })
    return hub, srv.Addr()
}

// answer registers prefix on hub and replies with content, signed if sign is set.
func answer(t *testing.T, hub *face.Hub, prefix, content string, sign bool) {
    t.Helper()
    f := hub.NewFace()
    t.Cleanup(func() { _ = f.Close() })
    _, err := f.Register(prefix, func(in face.Interest) {
        d := face.Data{Name: in.Name, Content: []byte(content)}
        if sign { _ = security.DigestSigner{}.Sign(&d) }
        _ = f.Put(d)
    })
    require.NoError(t, err)
}

func newFace(t *testing.T, peers ...string) *Face {
    t.Helper()
    hub := face.NewHub(face.HubOptions{})
    t.Cleanup(func() { _ = hub.Close() })
    f, err := New(Options{Hub: hub, Discovery: static.New(peers...)})
    require.NoError(t, err)
    t.Cleanup(func() { _ = f.Close() })
    return f
}

func await(t *testing.T, ch <-chan face.Result) face.Result {
    t.Helper()
    select {
    case r := <-ch:
        return r
    case <-time.After(5 * time.Second):
        t.Fatal("no result")
        return face.Result{}
    }
}

func TestExpressReachesRemoteHub(t *testing.T) {
    hub, addr := remote(t)
    answer(t, hub, "/ndn/x", "hello", true)
    f := newFace(t, addr)

    r := await(t, f.Express(context.Background(), face.Interest{Name: "/ndn/x/drop/1", Lifetime: time.Second}))
    require.Equal(t, face.Success, r.Kind)
    require.Equal(t, "hello", string(r.Data.Content))
    require.True(t, security.Verify(r.Data))
    require.Equal(t, 1, f.conns.len())
}

func TestRemoteNackIsReturned(t *testing.T) {
    _, addr := remote(t)
    f := newFace(t, addr)
    r := await(t, f.Express(context.Background(), face.Interest{Name: "/ndn/none/1", Lifetime: time.Second}))
    require.Equal(t, face.Rejected, r.Kind)
    require.Equal(t, face.NackNoRoute, r.Reason)
}

func TestNoPeersIsNoRoute(t *testing.T) {
    f := newFace(t)
    r := await(t, f.Express(context.Background(), face.Interest{Name: "/ndn/x/1"}))
    require.Equal(t, face.Rejected, r.Kind)
    require.Equal(t, face.NackNoRoute, r.Reason)
}

func TestSelfIsSkipped(t *testing.T) {
    hub := face.NewHub(face.HubOptions{})
    defer hub.Close()
    f, err := New(Options{Hub: hub, Discovery: static.New("10.0.0.1:6363"), Self: "10.0.0.1:6363"})
    require.NoError(t, err)
    defer f.Close()
    require.Empty(t, f.peers())
}

func TestDataWinsOverDeadPeer(t *testing.T) {
    hub, addr := remote(t)
    answer(t, hub, "/ndn/x", "ok", true)
    f := newFace(t, "127.0.0.1:1", addr)
    r := await(t, f.Express(context.Background(), face.Interest{Name: "/ndn/x/2", Lifetime: 2 * time.Second}))
    require.Equal(t, face.Success, r.Kind)
}

func TestUnsignedDataIsDropped(t *testing.T) {
    hub, addr := remote(t)
    answer(t, hub, "/ndn/x", "forged", false)
    f := newFace(t, addr)
    r := await(t, f.Express(context.Background(), face.Interest{Name: "/ndn/x/3", Lifetime: time.Second}))
    require.Equal(t, face.Expired, r.Kind)
}

func TestRemoteSilenceExpires(t *testing.T) {
    hub, addr := remote(t)
    f := hub.NewFace()
    defer f.Close()
    _, err := f.Register("/ndn/quiet", func(face.Interest) {})
    require.NoError(t, err)

    gf := newFace(t, addr)
    start := time.Now()
    r := await(t, gf.Express(context.Background(), face.Interest{Name: "/ndn/quiet/1", Lifetime: 200 * time.Millisecond}))
    require.Equal(t, face.Expired, r.Kind)
    require.Less(t, time.Since(start), 2*time.Second)
}

func TestRegisterAndPutUseLocalHub(t *testing.T) {
    hub := face.NewHub(face.HubOptions{})
    defer hub.Close()
    f, err := New(Options{Hub: hub, Discovery: static.New()})
    require.NoError(t, err)
    defer f.Close()
    _, err = f.Register("/ndn/local", func(in face.Interest) {
        d := face.Data{Name: in.Name}
        _ = security.DigestSigner{}.Sign(&d)
        _ = f.Put(d)
    })
    require.NoError(t, err)

    other := hub.NewFace()
    defer other.Close()
    r := await(t, other.Express(context.Background(), face.Interest{Name: "/ndn/local/1", Lifetime: time.Second}))
    require.Equal(t, face.Success, r.Kind)
}

func TestNewValidates(t *testing.T) {
    _, err := New(Options{Discovery: static.New()})
    require.Error(t, err)
    _, err = New(Options{Hub: face.NewHub(face.HubOptions{})})
    require.Error(t, err)
}

func TestConnManagerReuseAndEvict(t *testing.T) {
    dials := 0
    m := newConnManager(time.Hour, func(target string) (*grpc.ClientConn, error) {
        dials++
        return grpc.NewClient(target, grpc.WithTransportCredentials(insecureCreds()))
    })
    defer m.close()

    _, rel1, err := m.get("127.0.0.1:1")
    require.NoError(t, err)
    _, rel2, err := m.get("127.0.0.1:1")
    require.NoError(t, err)
    require.Equal(t, 1, dials)
    require.Equal(t, 1, m.len())

    // In-flight connections survive eviction.
    m.evictIdle(time.Now().Add(time.Minute))
    require.Equal(t, 1, m.len())
    rel1()
    rel2()
    m.evictIdle(time.Now().Add(time.Minute))
    require.Equal(t, 0, m.len())

    _, rel3, err := m.get("127.0.0.1:1")
    require.NoError(t, err)
    rel3()
    require.Equal(t, 2, dials)
}

func insecureCreds() credentials.TransportCredentials { return insecure.NewCredentials() }

package server

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/stretchr/testify/require"

    "github.com/carlossantillana/ndn-drop/pkg/face"
    "github.com/carlossantillana/ndn-drop/pkg/security"
)

func express(t *testing.T, f face.Face, name string) face.Result {
    t.Helper()
    select {
    case r := <-f.Express(context.Background(), face.Interest{Name: name, Lifetime: time.Second}):
        return r
    case <-time.After(2 * time.Second):
        t.Fatalf("no result for %s", name)
    }
    return face.Result{}
}

func TestDropServerAnswersBothPrefixes(t *testing.T) {
    hub := face.NewHub(face.HubOptions{})
    s, err := New(hub.NewFace(), Options{Prefix: "/ndn/test", PayloadSize: 8, Freshness: 2 * time.Second})
    require.NoError(t, err)
    require.NoError(t, s.Start())
    defer s.Stop()

    client := hub.NewFace()
    for _, n := range []string{"/ndn/test/drop/x/1", "/ndn/broadcast/drop/2"} {
        r := express(t, client, n)
        require.Equal(t, face.Success, r.Kind, n)
        require.Equal(t, "aaaaaaaa", string(r.Data.Content))
        require.Equal(t, 2*time.Second, r.Data.Freshness)
        require.True(t, security.Verify(r.Data), "reply must carry a valid digest")
    }
    require.Equal(t, 2, s.NDrops())
}

func TestDropServerDoneAtMaxDrops(t *testing.T) {
    hub := face.NewHub(face.HubOptions{})
    s, err := New(hub.NewFace(), Options{Prefix: "/p", MaxDrops: 2})
    require.NoError(t, err)
    require.NoError(t, s.Start())
    defer s.Stop()

    client := hub.NewFace()
    express(t, client, "/p/drop/1")
    select {
    case <-s.Done():
        t.Fatalf("done before MaxDrops")
    default:
    }
    express(t, client, "/p/drop/2")
    select {
    case <-s.Done():
    case <-time.After(time.Second):
        t.Fatalf("done not signalled")
    }
}

func TestDropServerStopUnregisters(t *testing.T) {
    hub := face.NewHub(face.HubOptions{})
    s, err := New(hub.NewFace(), Options{Prefix: "/p"})
    require.NoError(t, err)
    require.NoError(t, s.Start())
    s.Stop()
    s.Stop()
    r := express(t, hub.NewFace(), "/p/drop/1")
    require.Equal(t, face.Rejected, r.Kind)
    require.Equal(t, face.NackNoRoute, r.Reason)
}

type refusingFace struct{ face.Face }

func (refusingFace) Register(string, face.InterestHandler) (face.Registration, error) {
    return nil, errors.New("refused")
}

func TestDropServerRegistrationFailure(t *testing.T) {
    s, err := New(refusingFace{}, Options{Prefix: "/p"})
    require.NoError(t, err)
    require.ErrorIs(t, s.Start(), ErrRegister)
}

func TestNewValidates(t *testing.T) {
    _, err := New(nil, Options{Prefix: "/p"})
    require.Error(t, err)
    _, err = New(face.NewHub(face.HubOptions{}).NewFace(), Options{})
    require.Error(t, err)
}

// AngelaMos | 2026
// hub_test.go

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzkfyn/ujikom-app-be/internal/config"
	"github.com/rzkfyn/ujikom-app-be/internal/middleware"
)

type tokenVerifier map[string]string

func (v tokenVerifier) VerifyAccessToken(
	_ context.Context,
	token string,
) (*middleware.AccessTokenClaims, error) {
	userID, ok := v[token]
	if !ok {
		return nil, errors.New("invalid token")
	}
	return &middleware.AccessTokenClaims{UserID: userID}, nil
}

type presenceLog struct {
	mu     sync.Mutex
	status map[string]string
}

func (p *presenceLog) SetOnline(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status[userID] = StatusOnline
	return nil
}

func (p *presenceLog) SetOffline(_ context.Context, userID string, _ time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status[userID] = StatusOffline
	return nil
}

func (p *presenceLog) get(userID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status[userID]
}

type hubFixture struct {
	hub      *Hub
	relay    *Relay
	presence *presenceLog
	server   *httptest.Server
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	bus := NewLocalBus()
	presence := &presenceLog{status: make(map[string]string)}
	hub := NewHub(
		bus,
		tokenVerifier{"tok-alice": "alice", "tok-bob": "bob"},
		presence,
		config.RealtimeConfig{
			WriteWait:      time.Second,
			PongWait:       5 * time.Second,
			MaxMessageSize: 4096,
			SendBuffer:     8,
		},
		nil,
	)
	require.NoError(t, hub.Run(ctx))

	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	return &hubFixture{hub: hub, relay: NewRelay(bus), presence: presence, server: srv}
}

func (f *hubFixture) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

// nextFrame reads frames until one with the given event arrives or the
// timeout passes.
func nextFrame(t *testing.T, conn *websocket.Conn, event SignalType, timeout time.Duration) (Frame, bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	require.NoError(t, conn.SetReadDeadline(deadline))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return Frame{}, false
		}

		var f Frame
		require.NoError(t, json.Unmarshal(data, &f))
		if f.Event == event {
			return f, true
		}
	}
}

func TestHubNotificationOnlyReachesReceiver(t *testing.T) {
	f := newHubFixture(t)

	alice := f.dial(t, "?token=tok-alice")
	bob := f.dial(t, "?token=tok-bob")

	require.Eventually(t, func() bool {
		return f.hub.IsOnline("alice") && f.hub.IsOnline("bob")
	}, 2*time.Second, 10*time.Millisecond)

	f.relay.NotificationChanged(context.Background(), "alice")

	frame, ok := nextFrame(t, alice, SignalNotificationChange, 2*time.Second)
	require.True(t, ok)
	assert.Equal(t, "alice", frame.Data["forUserId"])

	_, ok = nextFrame(t, bob, SignalNotificationChange, 200*time.Millisecond)
	assert.False(t, ok)
}

func TestHubBroadcastsPostStateToAnonymous(t *testing.T) {
	f := newHubFixture(t)

	anon := f.dial(t, "")
	require.Eventually(t, func() bool {
		return f.hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	f.relay.PostStateChanged(context.Background(), "AbCd1234")

	frame, ok := nextFrame(t, anon, SignalPostStateChange, 2*time.Second)
	require.True(t, ok)
	assert.Equal(t, "AbCd1234", frame.Data["postCode"])
}

func TestHubUserConnectIdentifies(t *testing.T) {
	f := newHubFixture(t)

	conn := f.dial(t, "")
	require.NoError(t, conn.WriteJSON(map[string]string{
		"event": "userconnect",
		"token": "tok-bob",
	}))

	require.Eventually(t, func() bool {
		return f.hub.IsOnline("bob")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, StatusOnline, f.presence.get("bob"))

	f.relay.NotificationChanged(context.Background(), "bob")

	_, ok := nextFrame(t, conn, SignalNotificationChange, 2*time.Second)
	assert.True(t, ok)
}

func TestHubInvalidTokenStaysAnonymous(t *testing.T) {
	f := newHubFixture(t)

	f.dial(t, "?token=forged")
	require.Eventually(t, func() bool {
		return f.hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	f.hub.mu.RLock()
	defer f.hub.mu.RUnlock()
	assert.Empty(t, f.hub.online)
}

func TestHubPresenceTracksLastConnection(t *testing.T) {
	f := newHubFixture(t)

	first := f.dial(t, "?token=tok-alice")
	second := f.dial(t, "?token=tok-alice")

	require.Eventually(t, func() bool {
		return f.hub.ClientCount() == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, StatusOnline, f.presence.get("alice"))

	require.NoError(t, first.Close())
	require.Eventually(t, func() bool {
		return f.hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, f.hub.IsOnline("alice"))
	assert.Equal(t, StatusOnline, f.presence.get("alice"))

	require.NoError(t, second.Close())
	require.Eventually(t, func() bool {
		return f.presence.get("alice") == StatusOffline
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, f.hub.IsOnline("alice"))
}

func TestHubPresenceSignalBroadcast(t *testing.T) {
	f := newHubFixture(t)

	watcher := f.dial(t, "")
	require.Eventually(t, func() bool {
		return f.hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	f.dial(t, "?token=tok-bob")

	frame, ok := nextFrame(t, watcher, SignalPresenceChange, 2*time.Second)
	require.True(t, ok)
	assert.Equal(t, "bob", frame.Data["userId"])
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	f := newHubFixture(t)

	conn := f.dial(t, "?token=tok-alice")
	require.Eventually(t, func() bool {
		return f.hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	f.hub.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var err error
	for err == nil {
		_, _, err = conn.ReadMessage()
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	require.Eventually(t, func() bool {
		return f.hub.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example.com"})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://app.example.com")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
}

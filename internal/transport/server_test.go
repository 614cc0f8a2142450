package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabdoc/internal/session"
)

// Dropping a slow consumer must run the same teardown as a normal
// disconnect: the user leaves the session and the connection count drops.
func TestSlowConsumerDropTearsDownSession(t *testing.T) {
	sessions := session.NewStore()
	sessions.Join("doc", "fast", "Fast")
	sessions.Join("doc", "slow", "Slow")

	srv := NewServer(sessions)
	srv.metrics.ActiveConnections = 2

	fast := &Client{userID: "fast", docID: "doc", hub: srv.hub, server: srv, send: make(chan []byte, 4)}
	slow := &Client{userID: "slow", docID: "doc", hub: srv.hub, server: srv, send: make(chan []byte)}
	srv.hub.handleRegister(fast)
	srv.hub.handleRegister(slow)

	// Nothing reads slow's send channel, so the first fan-out drops it.
	srv.hub.broadcastToRoom(roomMessage{docID: "doc", data: []byte(`{}`)})

	require.Eventually(t, func() bool {
		active, _, _ := srv.metrics.Snapshot()
		return len(sessions.Collaborators("doc")) == 1 && active == 1
	}, 2*time.Second, 5*time.Millisecond)

	got := sessions.Collaborators("doc")
	require.Len(t, got, 1)
	assert.Equal(t, "fast", got[0].ID)
	assert.NotContains(t, srv.hub.clients, slow)
	assert.Contains(t, srv.hub.clients, fast)
}

package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pooledClient adds a client to h's unassigned pool without starting pumps.
func pooledClient(t *testing.T, h *Hub) *Client {
	t.Helper()
	c := newTestClient(t)
	h.pool[c.id] = c
	return c
}

func joinedClient(t *testing.T, h *Hub, name, room string) *Client {
	t.Helper()
	c := pooledClient(t, h)
	h.handleInbound(inbound{client: c, payload: []byte(`{"name":"` + name + `","room":"` + room + `"}`)})
	require.True(t, h.registry.Contains(c))
	return c
}

func TestJoinMovesClientOutOfPool(t *testing.T) {
	h := NewHub(nil, nil)
	c := pooledClient(t, h)

	h.handleInbound(inbound{client: c, payload: []byte(`{"name":"A","room":"lobby"}`)})

	assert.NotContains(t, h.pool, c.id)
	users, ok := h.registry.SnapshotUsers("lobby")
	require.True(t, ok)
	assert.Equal(t, []string{"A"}, users)
	assert.Equal(t, 1.0, counterValue(t, h.metrics.Commands.WithLabelValues(commandJoin)))
}

func TestInvalidJoinKeepsClientPooled(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "malformed json", payload: `{"name":`},
		{name: "missing room", payload: `{"name":"A"}`},
		{name: "empty name", payload: `{"name":"","room":"lobby"}`},
		{name: "command before join", payload: `{"commandType":"SendMessage","message":"hi"}`},
		{name: "empty room", payload: `{"name":"A","room":""}`},
		{name: "tagged join", payload: `{"commandType":"Join","name":"A","room":"lobby"}`},
		{name: "tagged switch with name", payload: `{"commandType":"SwitchRoom","name":"A","room":"den"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHub(nil, nil)
			c := pooledClient(t, h)

			h.handleInbound(inbound{client: c, payload: []byte(tt.payload)})

			assert.Contains(t, h.pool, c.id)
			assert.Empty(t, h.registry.Rooms())
			assert.Equal(t, 1.0, counterValue(t, h.metrics.DroppedPayloads.WithLabelValues(dropMalformed)))

			// a later valid join still succeeds
			h.handleInbound(inbound{client: c, payload: []byte(`{"name":"A","room":"lobby"}`)})
			assert.True(t, h.registry.Contains(c))
		})
	}
}

func TestSendMessageIsPrefixedAndScoped(t *testing.T) {
	h := NewHub(nil, nil)
	a := joinedClient(t, h, "A", "lobby")
	b := joinedClient(t, h, "B", "lobby")
	c := joinedClient(t, h, "C", "den")
	drain(t, a)

	h.handleInbound(inbound{client: a, payload: []byte(`{"commandType":"SendMessage","message":"hi"}`)})

	assert.Equal(t, []string{"A: hi"}, messages(drain(t, a)))
	assert.Equal(t, []string{"A: hi"}, messages(drain(t, b)))
	assert.Empty(t, drain(t, c))
}

func TestMemberPayloadErrorsAreDropped(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		reason  string
	}{
		{name: "malformed json", payload: `{"commandType":`, reason: dropMalformed},
		{name: "unknown type", payload: `{"commandType":"Dance"}`, reason: dropUnknownType},
		{name: "missing type", payload: `{"message":"hi"}`, reason: dropUnknownType},
		{name: "switch without room", payload: `{"commandType":"SwitchRoom"}`, reason: dropMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHub(nil, nil)
			a := joinedClient(t, h, "A", "lobby")
			b := joinedClient(t, h, "B", "lobby")
			drain(t, a)

			h.handleInbound(inbound{client: a, payload: []byte(tt.payload)})

			assert.Empty(t, drain(t, a))
			assert.Empty(t, drain(t, b))
			assert.True(t, h.registry.Contains(a))
			assert.Equal(t, 1.0, counterValue(t, h.metrics.DroppedPayloads.WithLabelValues(tt.reason)))
		})
	}
}

func TestGetUsersRepliesOnlyToRequester(t *testing.T) {
	h := NewHub(nil, nil)
	a := joinedClient(t, h, "A", "lobby")
	b := joinedClient(t, h, "B", "lobby")
	c := joinedClient(t, h, "C", "den")
	drain(t, a)

	h.handleInbound(inbound{client: c, payload: []byte(`{"commandType":"GetUsers","room":"lobby"}`)})

	got := drain(t, c)
	require.Len(t, got, 1)
	assert.Equal(t, "GetUsers", got[0].CommandType)
	assert.Equal(t, []string{"A", "B"}, got[0].Users)
	assert.Empty(t, drain(t, a))
	assert.Empty(t, drain(t, b))
}

func TestGetUsersForUnknownRoomIsDropped(t *testing.T) {
	h := NewHub(nil, nil)
	a := joinedClient(t, h, "A", "lobby")

	h.handleInbound(inbound{client: a, payload: []byte(`{"commandType":"GetUsers","room":"attic"}`)})

	assert.Empty(t, drain(t, a))
	assert.Equal(t, 1.0, counterValue(t, h.metrics.DroppedPayloads.WithLabelValues(dropStale)))
}

func TestSwitchRoomMovesMember(t *testing.T) {
	h := NewHub(nil, nil)
	a := joinedClient(t, h, "A", "lobby")
	b := joinedClient(t, h, "B", "lobby")
	d := joinedClient(t, h, "D", "den")
	drain(t, a)

	h.handleInbound(inbound{client: a, payload: []byte(`{"commandType":"SwitchRoom","room":"den"}`)})

	lobby, _ := h.registry.SnapshotUsers("lobby")
	den, _ := h.registry.SnapshotUsers("den")
	assert.Equal(t, []string{"B"}, lobby)
	assert.Equal(t, []string{"D", "A"}, den)

	assert.Equal(t, []string{"A left the room"}, messages(drain(t, b)))
	assert.Equal(t, []string{"A joined the room"}, messages(drain(t, d)))
	assert.Empty(t, drain(t, a))

	// messages now reach the new room only
	h.handleInbound(inbound{client: a, payload: []byte(`{"commandType":"SendMessage","message":"yo"}`)})
	assert.Equal(t, []string{"A: yo"}, messages(drain(t, d)))
	assert.Empty(t, drain(t, b))
}

func TestSwitchRoomCreatesRoom(t *testing.T) {
	h := NewHub(nil, nil)
	a := joinedClient(t, h, "A", "lobby")

	h.handleInbound(inbound{client: a, payload: []byte(`{"commandType":"SwitchRoom","room":"attic"}`)})

	users, ok := h.registry.SnapshotUsers("attic")
	require.True(t, ok)
	assert.Equal(t, []string{"A"}, users)

	lobby, ok := h.registry.SnapshotUsers("lobby")
	require.True(t, ok)
	assert.Empty(t, lobby)
}

func TestSwitchRoomNoopWhenNotMember(t *testing.T) {
	h := NewHub(nil, nil)
	a := joinedClient(t, h, "A", "lobby")
	b := joinedClient(t, h, "B", "lobby")
	drain(t, a)

	// a was removed behind its own back
	require.NotNil(t, h.registry.RemoveMember("lobby", "A"))
	a.room = "lobby"

	h.handleInbound(inbound{client: a, payload: []byte(`{"commandType":"SwitchRoom","room":"den"}`)})

	_, ok := h.registry.SnapshotUsers("den")
	assert.False(t, ok)
	assert.Empty(t, drain(t, b))
	assert.Equal(t, 1.0, counterValue(t, h.metrics.DroppedPayloads.WithLabelValues(dropStale)))
}

func TestDisconnectNotifiesRoomAndClosesClient(t *testing.T) {
	h := NewHub(nil, nil)
	a := joinedClient(t, h, "A", "lobby")
	b := joinedClient(t, h, "B", "lobby")
	drain(t, a)

	h.disconnect(b)

	assert.True(t, b.closed)
	assert.False(t, h.registry.Contains(b))
	assert.Equal(t, []string{"B left the room"}, messages(drain(t, a)))

	// payloads still in flight from a closed client are ignored
	h.handleInbound(inbound{client: b, payload: []byte(`{"commandType":"SendMessage","message":"late"}`)})
	assert.Empty(t, drain(t, a))
	assert.Equal(t, 1.0, counterValue(t, h.metrics.DroppedPayloads.WithLabelValues(dropStale)))
}

func TestEOFDisconnectsAfterEarlierPayloads(t *testing.T) {
	h := NewHub(nil, nil)
	a := joinedClient(t, h, "A", "lobby")
	b := joinedClient(t, h, "B", "lobby")
	drain(t, a)

	h.handleInbound(inbound{client: b, payload: []byte(`{"commandType":"SendMessage","message":"bye"}`)})
	h.handleInbound(inbound{client: b, eof: true})

	assert.True(t, b.closed)
	assert.False(t, h.registry.Contains(b))
	assert.Equal(t, []string{"B: bye", "B left the room"}, messages(drain(t, a)))

	// a second eof for the same client is a no-op
	h.handleInbound(inbound{client: b, eof: true})
	assert.Empty(t, drain(t, a))
	assert.Equal(t, 0.0, counterValue(t, h.metrics.DroppedPayloads.WithLabelValues(dropStale)))
}

func TestDisconnectUnassignedClient(t *testing.T) {
	h := NewHub(nil, nil)
	c := pooledClient(t, h)

	h.disconnect(c)

	assert.NotContains(t, h.pool, c.id)
	assert.True(t, c.closed)
	_, open := <-c.send
	assert.False(t, open)
}

func TestSlowMemberIsDisconnected(t *testing.T) {
	h := NewHub(nil, nil)

	cfg := testConfig()
	cfg.SendBufferSize = 1
	slow := NewClient(stubTransport{}, "pipe", cfg, nil)
	h.pool[slow.id] = slow
	h.handleInbound(inbound{client: slow, payload: []byte(`{"name":"slow","room":"lobby"}`)})

	a := joinedClient(t, h, "A", "lobby") // fills slow's buffer
	h.handleInbound(inbound{client: a, payload: []byte(`{"commandType":"SendMessage","message":"hi"}`)})

	assert.True(t, slow.closed)
	assert.False(t, h.registry.Contains(slow))
	assert.Equal(t, []string{"A: hi", "slow left the room"}, messages(drain(t, a)))
	assert.Equal(t, 1.0, counterValue(t, h.metrics.SlowClientsDropped))
}

package ws

import "testing"

func TestHubSubscribeAndUnsubscribe(t *testing.T) {
	hub := NewHub()
	client := NewClient(nil, ConnInfo{ConnID: "c1"})

	hub.Subscribe("a--b", client)
	if len(hub.rooms) != 1 {
		t.Fatalf("expected room to be created")
	}

	// Re-subscribing the same connection must not duplicate it.
	hub.Subscribe("a--b", client)
	if len(hub.rooms["a--b"]) != 1 {
		t.Fatalf("expected a single subscription, got %d", len(hub.rooms["a--b"]))
	}

	hub.Unsubscribe("a--b", client)
	if len(hub.rooms) != 0 {
		t.Fatalf("expected room to be removed")
	}
}

func TestHubUnsubscribeAllRemovesEveryRoom(t *testing.T) {
	hub := NewHub()
	client := NewClient(nil, ConnInfo{ConnID: "c1"})
	other := NewClient(nil, ConnInfo{ConnID: "c2"})

	hub.Subscribe("a--b", client)
	hub.Subscribe("a--c", client)
	hub.Subscribe("a--b", other)

	hub.UnsubscribeAll(client)

	if len(hub.rooms["a--b"]) != 1 {
		t.Fatalf("expected the other client to stay subscribed")
	}
	if _, ok := hub.rooms["a--c"]; ok {
		t.Fatalf("expected empty room to be dropped")
	}
}

func TestHubBroadcastToEmptyRoomIsNoop(t *testing.T) {
	hub := NewHub()
	// Fanout into a room with no subscribers must not panic or error.
	hub.Broadcast("a--b", "message", map[string]string{"k": "v"})
	hub.BroadcastExcept("a--b", "c1", "typing", nil)
}

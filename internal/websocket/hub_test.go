package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, householdID string) *Client {
	return &Client{
		hub:         hub,
		conn:        nil,
		send:        make(chan []byte, sendBufferSize),
		householdID: householdID,
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, "h1")
	c2 := mockClient(hub, "h1")

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)
	// Should not panic
	hub.Unregister(c2)
	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcastScopedToHousehold(t *testing.T) {
	hub := NewHub(slog.Default())

	mine := mockClient(hub, "h1")
	other := mockClient(hub, "h2")
	hub.Register(mine)
	hub.Register(other)
	defer hub.Unregister(mine)
	defer hub.Unregister(other)

	hub.Broadcast(NewMessage("h1", "balance", "changed", "user-1", map[string]any{"new_balance": float64(20)}))

	select {
	case data := <-mine.send:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Type != "balance_changed" {
			t.Errorf("expected type balance_changed, got %s", got.Type)
		}
		if got.ID != "user-1" {
			t.Errorf("expected id user-1, got %s", got.ID)
		}
		if got.Extra["new_balance"] != float64(20) {
			t.Errorf("expected new_balance 20, got %v", got.Extra["new_balance"])
		}
		if got.HouseholdID != "" {
			t.Errorf("household id must not be serialized, got %q", got.HouseholdID)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}

	select {
	case data := <-other.send:
		t.Fatalf("client of another household received %s", data)
	default:
	}
}

func TestBroadcastWithoutHouseholdReachesAll(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, "h1")
	c2 := mockClient(hub, "h2")
	hub.Register(c1)
	hub.Register(c2)

	hub.Broadcast(NewMessage("", "ledger", "reconciled", "", nil))

	for _, c := range []*Client{c1, c2} {
		select {
		case <-c.send:
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for message")
		}
	}

	hub.Unregister(c1)
	hub.Unregister(c2)
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub, "h1")
	hub.Register(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast(NewMessage("h1", "test", "fill", fmt.Sprint(i), nil))
	}

	// This should drop the message, not panic or block
	hub.Broadcast(NewMessage("h1", "test", "dropped", "999", nil))

	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			goto done
		}
	}
done:
	if count != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, count)
	}

	hub.Unregister(c)
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub, "h1")
			hub.Register(c)
			hub.Broadcast(NewMessage("h1", "test", "concurrent", "", nil))
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}()
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}

package session

import (
	"net"
	"testing"
	"time"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct {
	sent []any
}

func (m *MockConnection) Send(v any) error                  { m.sent = append(m.sent, v); return nil }
func (m *MockConnection) ReadMessage() ([]byte, error)      { return nil, nil }
func (m *MockConnection) Close() error                      { return nil }
func (m *MockConnection) RemoteAddr() net.Addr              { return &net.TCPAddr{} }
func (m *MockConnection) SetReadDeadline(t time.Time) error { return nil }

func TestNewManager(t *testing.T) {
	manager := NewManager()
	if manager == nil {
		t.Fatal("NewManager should not return nil")
	}
	if manager.sessions == nil {
		t.Fatal("NewManager should initialize the sessions map")
	}
}

func TestManager_Add_Get_Remove(t *testing.T) {
	manager := NewManager()
	sessionID := "test_session_1"
	sess := NewSession(sessionID, &MockConnection{})

	manager.Add(sess)
	if manager.Count() != 1 {
		t.Fatalf("Expected session count to be 1, got %d", manager.Count())
	}

	retrievedSess, exists := manager.Get(sessionID)
	if !exists {
		t.Fatal("Get should find the added session")
	}
	if retrievedSess != sess {
		t.Fatal("Get should return the same session instance")
	}

	manager.Remove(sessionID)
	if manager.Count() != 0 {
		t.Fatalf("Expected session count to be 0 after removal, got %d", manager.Count())
	}

	_, exists = manager.Get(sessionID)
	if exists {
		t.Fatal("Get should not find the removed session")
	}
}

func TestManager_GetByIdentity(t *testing.T) {
	manager := NewManager()

	sess1 := NewSession("session1", &MockConnection{})
	sess1.Identity = "alice"

	sess2 := NewSession("session2", &MockConnection{})
	sess2.Identity = "bob"

	sess3 := NewSession("session3", &MockConnection{})
	sess3.Identity = "alice"

	manager.Add(sess1)
	manager.Add(sess2)
	manager.Add(sess3)

	aliceSessions := manager.GetByIdentity("alice")
	if len(aliceSessions) != 2 {
		t.Errorf("Expected 2 sessions for alice, got %d", len(aliceSessions))
	}

	bobSessions := manager.GetByIdentity("bob")
	if len(bobSessions) != 1 {
		t.Errorf("Expected 1 session for bob, got %d", len(bobSessions))
	}

	if len(manager.GetByIdentity("carol")) != 0 {
		t.Error("Expected no sessions for carol")
	}
}

func TestManager_IdleSince(t *testing.T) {
	manager := NewManager()

	idle := NewSession("idle", &MockConnection{})
	idle.lastActive = time.Now().Add(-10 * time.Minute)
	fresh := NewSession("fresh", &MockConnection{})

	manager.Add(idle)
	manager.Add(fresh)

	stale := manager.IdleSince(time.Now().Add(-5 * time.Minute))
	if len(stale) != 1 || stale[0].ID != "idle" {
		t.Fatalf("Expected only the idle session, got %v", stale)
	}

	idle.Touch()
	if len(manager.IdleSince(time.Now().Add(-5*time.Minute))) != 0 {
		t.Error("Touch should clear idleness")
	}
}

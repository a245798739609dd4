package identity

import (
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(zap.NewNop())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func TestJoinAssignsSequentialIDs(t *testing.T) {
	r := newTestRegistry(t)
	sessionID := uuid.New()

	first := r.Join(sessionID, "alice", true)
	second := r.Join(sessionID, "bob", false)
	third := r.Join(sessionID, "alice", false) // duplicate nickname is fine

	if first.ID != 0 || second.ID != 1 || third.ID != 2 {
		t.Errorf("IDs = %d %d %d, want 0 1 2", first.ID, second.ID, third.ID)
	}
	if !first.IsOwner || second.IsOwner {
		t.Error("owner flags wrong")
	}
	if first.Credential == third.Credential {
		t.Error("duplicate nicknames must still get distinct credentials")
	}
	if first.Credential == "" || len(first.Credential) < 32 {
		t.Errorf("credential %q looks too weak", first.Credential)
	}

	// A second session starts counting from zero again.
	other := r.Join(uuid.New(), "alice", true)
	if other.ID != 0 {
		t.Errorf("first ID in new session = %d, want 0", other.ID)
	}
}

func TestBindByCredential(t *testing.T) {
	r := newTestRegistry(t)
	sessionID := uuid.New()
	p := r.Join(sessionID, "alice", true)

	bound, ok := r.Bind(sessionID, p.Credential, "conn-1")
	if !ok || bound.ID != p.ID {
		t.Fatalf("Bind = %v %v, want alice", bound, ok)
	}
	got, ok := r.ByConnection("conn-1")
	if !ok || got.ID != p.ID {
		t.Fatalf("ByConnection = %v %v", got, ok)
	}

	// Second tab: both connections belong to the same participant.
	if _, ok := r.Bind(sessionID, p.Credential, "conn-2"); !ok {
		t.Fatal("second bind failed")
	}
	if len(p.Connections) != 2 {
		t.Errorf("connections = %d, want 2", len(p.Connections))
	}
}

func TestBindFallsBackToConnectionLookup(t *testing.T) {
	r := newTestRegistry(t)
	sessionID := uuid.New()
	p := r.Join(sessionID, "alice", true)
	if _, ok := r.Bind(sessionID, p.Credential, "conn-1"); !ok {
		t.Fatal("bind failed")
	}

	// Client presents a stale credential on an already-known connection.
	bound, ok := r.Bind(sessionID, "stale-credential", "conn-1")
	if !ok || bound.ID != p.ID {
		t.Fatalf("fallback bind = %v %v, want alice", bound, ok)
	}

	// No credential match and unknown connection: recoverable not-found.
	if _, ok := r.Bind(sessionID, "stale-credential", "conn-unknown"); ok {
		t.Error("bind must fail when nothing matches")
	}
}

func TestUnbindReportsPermanentDeparture(t *testing.T) {
	r := newTestRegistry(t)
	sessionID := uuid.New()
	p := r.Join(sessionID, "alice", true)
	r.Bind(sessionID, p.Credential, "conn-1")
	r.Bind(sessionID, p.Credential, "conn-2")

	if _, departed := r.Unbind("conn-1"); departed {
		t.Error("departed with one connection left")
	}
	got, departed := r.Unbind("conn-2")
	if got == nil || !departed {
		t.Error("last unbind must report permanent departure")
	}
	if _, departed := r.Unbind("conn-2"); departed {
		t.Error("unknown connection must not report departure")
	}
}

func TestRemoveReturnsOrphanedConnections(t *testing.T) {
	r := newTestRegistry(t)
	sessionID := uuid.New()
	p := r.Join(sessionID, "alice", true)
	r.Bind(sessionID, p.Credential, "conn-1")
	r.Bind(sessionID, p.Credential, "conn-2")

	conns := r.Remove(sessionID, p.ID)
	if len(conns) != 2 {
		t.Fatalf("conns = %v, want both", conns)
	}
	if _, ok := r.ByConnection("conn-1"); ok {
		t.Error("connection index not cleaned")
	}
	if _, ok := r.ByID(sessionID, p.ID); ok {
		t.Error("participant still resolvable")
	}
}

func TestDropSession(t *testing.T) {
	r := newTestRegistry(t)
	sessionID := uuid.New()
	a := r.Join(sessionID, "alice", true)
	b := r.Join(sessionID, "bob", false)
	r.Bind(sessionID, a.Credential, "conn-a")
	r.Bind(sessionID, b.Credential, "conn-b")

	conns := r.DropSession(sessionID)
	if len(conns) != 2 {
		t.Fatalf("conns = %v, want 2", conns)
	}
	if _, ok := r.ByID(sessionID, a.ID); ok {
		t.Error("identities must not survive session drop")
	}
	if _, ok := r.ByConnection("conn-a"); ok {
		t.Error("connection index must not survive session drop")
	}
}

func TestRenameAndAvatar(t *testing.T) {
	r := newTestRegistry(t)
	sessionID := uuid.New()
	p := r.Join(sessionID, "alice", true)
	cred := p.Credential

	if !r.Rename(sessionID, p.ID, "alicia") {
		t.Fatal("rename failed")
	}
	if !r.SetAvatar(sessionID, p.ID, "cat.png") {
		t.Fatal("avatar failed")
	}
	if p.Nickname != "alicia" || p.Avatar != "cat.png" {
		t.Errorf("participant = %+v", p)
	}
	// The credential is opaque: renaming must not invalidate it.
	if _, ok := r.Bind(sessionID, cred, "conn-1"); !ok {
		t.Error("credential invalidated by rename")
	}
	if r.Rename(sessionID, 99, "x") {
		t.Error("rename of unknown participant must fail")
	}
}

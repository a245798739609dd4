// Package identity issues participant credentials and tracks which live
// connections belong to which participant. There is no real authentication:
// a credential only proves "same client that joined under this nickname".
package identity

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/pulseboard/backend/internal/models"
)

// Registry owns every participant across all sessions plus the
// connection -> participant index used by the event surface.
type Registry struct {
	mu       sync.RWMutex
	macKey   []byte
	sessions map[uuid.UUID]*sessionParticipants
	byConn   map[string]*models.Participant
	logger   *zap.Logger
}

type sessionParticipants struct {
	nextID       int
	byID         map[int]*models.Participant
	byCredential map[string]*models.Participant
}

// NewRegistry creates a registry with a fresh random credential key, so
// credentials are unguessable and die with the process, like the sessions
// they belong to.
func NewRegistry(logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return &Registry{
		macKey:   key,
		sessions: make(map[uuid.UUID]*sessionParticipants),
		byConn:   make(map[string]*models.Participant),
		logger:   logger,
	}, nil
}

// Join creates a participant in the session, assigning the next sequential
// ID (0 for the first). Duplicate nicknames simply become distinct
// participants; Join never fails.
func (r *Registry) Join(sessionID uuid.UUID, nickname string, isOwner bool) *models.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	sp, ok := r.sessions[sessionID]
	if !ok {
		sp = &sessionParticipants{
			byID:         make(map[int]*models.Participant),
			byCredential: make(map[string]*models.Participant),
		}
		r.sessions[sessionID] = sp
	}

	p := &models.Participant{
		ID:          sp.nextID,
		SessionID:   sessionID,
		Nickname:    nickname,
		Credential:  r.credential(nickname),
		IsOwner:     isOwner,
		IsAdmin:     isOwner,
		JoinedAt:    time.Now(),
		Connections: make(map[string]struct{}),
	}
	sp.nextID++
	sp.byID[p.ID] = p
	sp.byCredential[p.Credential] = p
	return p
}

// credential derives an opaque token as a keyed hash of nickname plus a
// random nonce. Callers must hold r.mu.
func (r *Registry) credential(nickname string) string {
	h, _ := blake2b.New256(r.macKey)
	h.Write([]byte(nickname))
	h.Write([]byte(uuid.NewString()))
	return hex.EncodeToString(h.Sum(nil))
}

// Bind attaches a live connection to the participant matching the
// credential. When no credential matches (client-held token gone stale
// after a fault), it falls back to the connection index and logs the
// mismatch; total failure returns false and the caller answers with a
// credentials error.
func (r *Registry) Bind(sessionID uuid.UUID, credential, connID string) (*models.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sp, ok := r.sessions[sessionID]; ok {
		if p, ok := sp.byCredential[credential]; ok {
			p.Connections[connID] = struct{}{}
			r.byConn[connID] = p
			return p, true
		}
	}
	if p, ok := r.byConn[connID]; ok {
		r.logger.Warn("credential mismatch, rebound by connection",
			zap.String("connection_id", connID),
			zap.String("session_id", sessionID.String()))
		p.Connections[connID] = struct{}{}
		return p, true
	}
	return nil, false
}

// Unbind detaches a connection. departed is true iff the participant now
// has zero live connections, which callers treat as "permanently departed".
func (r *Registry) Unbind(connID string) (p *models.Participant, departed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byConn[connID]
	if !ok {
		return nil, false
	}
	delete(r.byConn, connID)
	delete(p.Connections, connID)
	return p, p.Departed()
}

// ByConnection resolves the participant behind a connection ID.
func (r *Registry) ByConnection(connID string) (*models.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byConn[connID]
	return p, ok
}

// ByID resolves a participant within a session.
func (r *Registry) ByID(sessionID uuid.UUID, participantID int) (*models.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sp, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	p, ok := sp.byID[participantID]
	return p, ok
}

// Rename updates the participant's nickname. The credential stays valid;
// it is opaque, not derived from the current nickname.
func (r *Registry) Rename(sessionID uuid.UUID, participantID int, nickname string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	sp, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	p, ok := sp.byID[participantID]
	if !ok {
		return false
	}
	p.Nickname = nickname
	return true
}

// SetAvatar updates the participant's avatar.
func (r *Registry) SetAvatar(sessionID uuid.UUID, participantID int, avatar string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	sp, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	p, ok := sp.byID[participantID]
	if !ok {
		return false
	}
	p.Avatar = avatar
	return true
}

// Remove deletes a participant and returns the connection IDs that were
// still attached so the caller can close them.
func (r *Registry) Remove(sessionID uuid.UUID, participantID int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	sp, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	p, ok := sp.byID[participantID]
	if !ok {
		return nil
	}
	conns := make([]string, 0, len(p.Connections))
	for c := range p.Connections {
		conns = append(conns, c)
		delete(r.byConn, c)
	}
	delete(sp.byID, participantID)
	delete(sp.byCredential, p.Credential)
	return conns
}

// DropSession removes every participant of an expired session and returns
// the orphaned connection IDs.
func (r *Registry) DropSession(sessionID uuid.UUID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	sp, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	var conns []string
	for _, p := range sp.byID {
		for c := range p.Connections {
			conns = append(conns, c)
			delete(r.byConn, c)
		}
	}
	delete(r.sessions, sessionID)
	return conns
}

package realtime

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pulseboard/backend/internal/board"
	"github.com/pulseboard/backend/internal/identity"
	"github.com/pulseboard/backend/internal/models"
	"github.com/pulseboard/backend/internal/scoring"
	"github.com/pulseboard/backend/internal/store"
)

// Dispatcher routes inbound events to the estimation or board engine,
// applies them through the session store's single-writer path, and fans out
// the post-mutation snapshot. Failures are answered to the triggering
// connection only; partial state is never broadcast.
type Dispatcher struct {
	estimation *store.Store[*models.EstimationSession]
	retro      *store.Store[*models.RetroSession]
	registry   *identity.Registry
	hub        *Hub
	logger     *zap.Logger
}

// NewDispatcher wires the dispatcher to both session registries.
func NewDispatcher(
	est *store.Store[*models.EstimationSession],
	retro *store.Store[*models.RetroSession],
	registry *identity.Registry,
	hub *Hub,
	logger *zap.Logger,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{estimation: est, retro: retro, registry: registry, hub: hub, logger: logger}
}

// SessionKind reports which registry holds the session, if any.
func (d *Dispatcher) SessionKind(sessionID uuid.UUID) (SessionKind, bool) {
	if d.estimation.Exists(sessionID) {
		return KindEstimation, true
	}
	if d.retro.Exists(sessionID) {
		return KindRetro, true
	}
	return "", false
}

// Bind attaches a connection to the participant holding the credential.
func (d *Dispatcher) Bind(sessionID uuid.UUID, credential, connID string) (*models.Participant, bool) {
	return d.registry.Bind(sessionID, credential, connID)
}

// Dispatch processes one inbound event to completion. A panic inside a
// handler (stale reference, missing key) is logged and answered with an
// UNKNOWN_FAILURE; it must not take down the loop or other sessions.
func (d *Dispatcher) Dispatch(c *Client, msg WSMessage) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panic",
				zap.Any("panic", r),
				zap.String("event", msg.Event),
				zap.String("session_id", c.SessionID.String()))
			d.sendError(c, models.ErrUnknown())
		}
	}()

	switch msg.Event {
	case EventHeartbeat:
		c.Touch()
		return
	case EventUpdateNickname:
		d.handleNickname(c, msg.Data)
		return
	case EventUpdateAvatar:
		d.handleAvatar(c, msg.Data)
		return
	case EventRemoveUser:
		d.handleRemoveUser(c, msg.Data)
		return
	}

	switch c.Kind {
	case KindEstimation:
		d.dispatchEstimation(c, msg)
	case KindRetro:
		d.dispatchRetro(c, msg)
	}
}

// HandleDeparture runs when a connection's read loop exits for any reason.
// Losing the last connection marks the participant disconnected inside the
// session (vote and card history is kept) and broadcasts the change.
func (d *Dispatcher) HandleDeparture(c *Client) {
	p, departed := d.registry.Unbind(c.ID)
	if p == nil || !departed {
		return
	}
	switch c.Kind {
	case KindEstimation:
		d.mutateEstimation(c, EventDisconnect, false, func(s *models.EstimationSession) error {
			if sp, ok := s.Participants[p.ID]; ok {
				sp.Connected = false
			}
			scoring.Recompute(s)
			return nil
		})
	case KindRetro:
		d.mutateRetro(c, EventDisconnect, false, func(s *models.RetroSession) error {
			if sp, ok := s.Participants[p.ID]; ok {
				sp.Connected = false
			}
			return nil
		})
	}
}

// ---- estimation events ----

func (d *Dispatcher) dispatchEstimation(c *Client, msg WSMessage) {
	switch msg.Event {
	case EventJoin:
		d.mutateEstimation(c, EventJoin, true, func(s *models.EstimationSession) error {
			return d.markJoinedEstimation(s, c.ParticipantID)
		})
	case EventVote:
		var p VotePayload
		if err := decode(msg.Data, &p); err != nil {
			d.sendError(c, err)
			return
		}
		d.mutateEstimation(c, EventVote, true, func(s *models.EstimationSession) error {
			return scoring.RecordVote(s, c.ParticipantID, p.Votes)
		})
	case EventShowResults:
		d.mutateEstimation(c, EventShowResults, true, func(s *models.EstimationSession) error {
			scoring.ShowResults(s)
			return nil
		})
	case EventResetVotes:
		d.mutateEstimation(c, EventResetVotes, true, func(s *models.EstimationSession) error {
			scoring.ResetVotes(s)
			return nil
		})
	default:
		d.sendError(c, models.ErrValidation("unknown event: "+msg.Event))
	}
}

func (d *Dispatcher) markJoinedEstimation(s *models.EstimationSession, participantID int) error {
	sp, ok := s.Participants[participantID]
	if !ok {
		p, found := d.registry.ByID(s.ID, participantID)
		if !found {
			return models.ErrCredentials("unknown participant")
		}
		sp = &models.EstimationParticipant{
			ID:       p.ID,
			Nickname: p.Nickname,
			Avatar:   p.Avatar,
			Votes:    map[string]string{},
			IsOwner:  p.IsOwner,
		}
		s.Participants[sp.ID] = sp
	}
	sp.Connected = true
	return nil
}

// ---- retrospective events ----

func (d *Dispatcher) dispatchRetro(c *Client, msg WSMessage) {
	switch msg.Event {
	case EventJoin:
		d.mutateRetro(c, EventJoin, true, func(s *models.RetroSession) error {
			return d.markJoinedRetro(s, c.ParticipantID)
		})
	case EventAddCard:
		d.handleAddCard(c, msg.Data)
	case EventUpdateCard:
		var p UpdateCardPayload
		if err := decode(msg.Data, &p); err != nil {
			d.sendError(c, err)
			return
		}
		d.mutateRetro(c, EventUpdateCard, true, func(s *models.RetroSession) error {
			return board.UpdateCard(s, p.Column, p.CardID, p.CardPatch)
		})
	case EventDeleteCard:
		var p CardRefPayload
		if err := decode(msg.Data, &p); err != nil {
			d.sendError(c, err)
			return
		}
		d.mutateRetro(c, EventDeleteCard, true, func(s *models.RetroSession) error {
			board.DeleteCard(s, p.Column, p.CardID)
			return nil
		})
	case EventVoteCard:
		var p CardRefPayload
		if err := decode(msg.Data, &p); err != nil {
			d.sendError(c, err)
			return
		}
		d.mutateRetro(c, EventVoteCard, true, func(s *models.RetroSession) error {
			return board.VoteCard(s, p.Column, p.CardID, c.ParticipantID)
		})
	case EventMoveCard:
		var p MoveCardPayload
		if err := decode(msg.Data, &p); err != nil {
			d.sendError(c, err)
			return
		}
		d.mutateRetro(c, EventMoveCard, true, func(s *models.RetroSession) error {
			board.MoveCard(s, p.Source, p.Target, p.CardID)
			return nil
		})
	case EventGroupCards:
		var p GroupCardsPayload
		if err := decode(msg.Data, &p); err != nil {
			d.sendError(c, err)
			return
		}
		d.mutateRetro(c, EventGroupCards, true, func(s *models.RetroSession) error {
			return board.GroupCards(s, p.Column, p.CardA, p.CardB)
		})
	case EventRenameGroup:
		var p RenameGroupPayload
		if err := decode(msg.Data, &p); err != nil {
			d.sendError(c, err)
			return
		}
		d.mutateRetro(c, EventRenameGroup, true, func(s *models.RetroSession) error {
			return board.RenameGroup(s, p.GroupID, p.Name)
		})
	case EventUngroupCard:
		var p CardRefPayload
		if err := decode(msg.Data, &p); err != nil {
			d.sendError(c, err)
			return
		}
		d.mutateRetro(c, EventUngroupCard, true, func(s *models.RetroSession) error {
			return board.UngroupCard(s, p.Column, p.CardID)
		})
	case EventUpdateTimer:
		var p models.Timer
		if err := decode(msg.Data, &p); err != nil {
			d.sendError(c, err)
			return
		}
		d.mutateRetro(c, EventUpdateTimer, true, func(s *models.RetroSession) error {
			return board.UpdateTimer(s, c.ParticipantID, p)
		})
	case EventUpdateMusic:
		var p models.Music
		if err := decode(msg.Data, &p); err != nil {
			d.sendError(c, err)
			return
		}
		d.mutateRetro(c, EventUpdateMusic, true, func(s *models.RetroSession) error {
			return board.UpdateMusic(s, c.ParticipantID, p)
		})
	case EventUpdateBoardImages:
		var p BoardImagesPayload
		if err := decode(msg.Data, &p); err != nil {
			d.sendError(c, err)
			return
		}
		d.mutateRetro(c, EventUpdateBoardImages, true, func(s *models.RetroSession) error {
			board.UpdateBoardImages(s, p.Images)
			return nil
		})
	case EventUpdateColumnImages:
		var p ColumnImagesPayload
		if err := decode(msg.Data, &p); err != nil {
			d.sendError(c, err)
			return
		}
		d.mutateRetro(c, EventUpdateColumnImages, true, func(s *models.RetroSession) error {
			board.UpdateColumnHeaderImages(s, p.Images)
			return nil
		})
	case EventRevealCards:
		var p RevealCardsPayload
		if err := decode(msg.Data, &p); err != nil {
			d.sendError(c, err)
			return
		}
		d.mutateRetro(c, EventRevealCards, true, func(s *models.RetroSession) error {
			return board.RevealCards(s, c.ParticipantID, p.Revealed)
		})
	default:
		d.sendError(c, models.ErrValidation("unknown event: "+msg.Event))
	}
}

func (d *Dispatcher) markJoinedRetro(s *models.RetroSession, participantID int) error {
	sp, ok := s.Participants[participantID]
	if !ok {
		p, found := d.registry.ByID(s.ID, participantID)
		if !found {
			return models.ErrCredentials("unknown participant")
		}
		sp = &models.RetroParticipant{
			ID:       p.ID,
			Nickname: p.Nickname,
			Avatar:   p.Avatar,
			IsOwner:  p.IsOwner,
		}
		s.Participants[sp.ID] = sp
	}
	sp.Connected = true
	return nil
}

// handleAddCard broadcasts the new board state, then fans out targeted
// mention notifications to every nickname the card text mentions.
func (d *Dispatcher) handleAddCard(c *Client, data json.RawMessage) {
	var p AddCardPayload
	if err := decode(data, &p); err != nil {
		d.sendError(c, err)
		return
	}
	var notifications []struct {
		participantID int
		payload       MentionedPayload
	}
	d.mutateRetro(c, EventAddCard, true, func(s *models.RetroSession) error {
		card, mentions, err := board.AddCard(s, c.ParticipantID, p.Column, p.Text, p.Image, p.Color, p.IsAnonymous)
		if err != nil {
			return err
		}
		author := ""
		if !card.IsAnonymous {
			if sp, ok := s.Participants[c.ParticipantID]; ok {
				author = sp.Nickname
			}
		}
		for _, nick := range mentions {
			for _, sp := range s.Participants {
				if strings.ToLower(sp.Nickname) != nick {
					continue
				}
				notifications = append(notifications, struct {
					participantID int
					payload       MentionedPayload
				}{sp.ID, MentionedPayload{
					SessionID: s.ID,
					Column:    p.Column,
					CardID:    card.ID,
					Text:      card.Text,
					By:        author,
				}})
			}
		}
		return nil
	})
	for _, n := range notifications {
		d.hub.SendToParticipant(c.SessionID, n.participantID, EventMentioned, n.payload)
	}
}

// ---- events shared by both session kinds ----

func (d *Dispatcher) handleNickname(c *Client, data json.RawMessage) {
	var p NicknamePayload
	if err := decode(data, &p); err != nil {
		d.sendError(c, err)
		return
	}
	if strings.TrimSpace(p.Nickname) == "" {
		d.sendError(c, models.ErrValidation("nickname must not be empty"))
		return
	}
	if !d.registry.Rename(c.SessionID, c.ParticipantID, p.Nickname) {
		d.sendError(c, models.ErrCredentials("unknown participant"))
		return
	}
	switch c.Kind {
	case KindEstimation:
		d.mutateEstimation(c, EventUpdateNickname, true, func(s *models.EstimationSession) error {
			if sp, ok := s.Participants[c.ParticipantID]; ok {
				sp.Nickname = p.Nickname
			}
			return nil
		})
	case KindRetro:
		d.mutateRetro(c, EventUpdateNickname, true, func(s *models.RetroSession) error {
			if sp, ok := s.Participants[c.ParticipantID]; ok {
				sp.Nickname = p.Nickname
			}
			return nil
		})
	}
}

func (d *Dispatcher) handleAvatar(c *Client, data json.RawMessage) {
	var p AvatarPayload
	if err := decode(data, &p); err != nil {
		d.sendError(c, err)
		return
	}
	if !d.registry.SetAvatar(c.SessionID, c.ParticipantID, p.Avatar) {
		d.sendError(c, models.ErrCredentials("unknown participant"))
		return
	}
	switch c.Kind {
	case KindEstimation:
		d.mutateEstimation(c, EventUpdateAvatar, true, func(s *models.EstimationSession) error {
			if sp, ok := s.Participants[c.ParticipantID]; ok {
				sp.Avatar = p.Avatar
			}
			return nil
		})
	case KindRetro:
		d.mutateRetro(c, EventUpdateAvatar, true, func(s *models.RetroSession) error {
			if sp, ok := s.Participants[c.ParticipantID]; ok {
				sp.Avatar = p.Avatar
			}
			return nil
		})
	}
}

// handleRemoveUser deletes a participant from the session (owner only) and
// force-closes their connections. Their cards survive; only identity and
// presence go.
func (d *Dispatcher) handleRemoveUser(c *Client, data json.RawMessage) {
	var p RemoveUserPayload
	if err := decode(data, &p); err != nil {
		d.sendError(c, err)
		return
	}
	removed := false
	switch c.Kind {
	case KindEstimation:
		d.mutateEstimation(c, EventRemoveUser, true, func(s *models.EstimationSession) error {
			actor, ok := s.Participants[c.ParticipantID]
			if !ok || !actor.IsOwner {
				return models.ErrNotAuthorized("only the session owner can remove participants")
			}
			if _, ok := s.Participants[p.ParticipantID]; !ok {
				return models.ErrValidation("unknown participant")
			}
			delete(s.Participants, p.ParticipantID)
			scoring.Recompute(s)
			removed = true
			return nil
		})
	case KindRetro:
		d.mutateRetro(c, EventRemoveUser, true, func(s *models.RetroSession) error {
			if c.ParticipantID != s.OwnerID {
				return models.ErrNotAuthorized("only the session owner can remove participants")
			}
			if _, ok := s.Participants[p.ParticipantID]; !ok {
				return models.ErrValidation("unknown participant")
			}
			delete(s.Participants, p.ParticipantID)
			removed = true
			return nil
		})
	}
	if removed {
		conns := d.registry.Remove(c.SessionID, p.ParticipantID)
		d.hub.CloseConnections(c.SessionID, conns)
	}
}

// ---- mutation plumbing ----

// mutateEstimation applies fn under the session's single-writer lock,
// marshals the snapshot while still holding it, and broadcasts afterwards.
func (d *Dispatcher) mutateEstimation(c *Client, event string, reportErr bool, fn func(s *models.EstimationSession) error) {
	var snapshot json.RawMessage
	ok, err := d.estimation.Mutate(c.SessionID, func(s *models.EstimationSession) error {
		if err := fn(s); err != nil {
			return err
		}
		b, err := json.Marshal(s)
		if err != nil {
			return err
		}
		snapshot = b
		return nil
	})
	d.finish(c, event, reportErr, ok, err, snapshot)
}

// mutateRetro is mutateEstimation for retrospective sessions.
func (d *Dispatcher) mutateRetro(c *Client, event string, reportErr bool, fn func(s *models.RetroSession) error) {
	var snapshot json.RawMessage
	ok, err := d.retro.Mutate(c.SessionID, func(s *models.RetroSession) error {
		if err := fn(s); err != nil {
			return err
		}
		b, err := json.Marshal(s)
		if err != nil {
			return err
		}
		snapshot = b
		return nil
	})
	d.finish(c, event, reportErr, ok, err, snapshot)
}

func (d *Dispatcher) finish(c *Client, event string, reportErr, found bool, err error, snapshot json.RawMessage) {
	if !found {
		if reportErr {
			d.sendError(c, models.ErrSessionExpired("session expired or deleted"))
		}
		return
	}
	if err != nil {
		if reportErr {
			d.sendError(c, err)
		}
		return
	}
	d.hub.Broadcast(c.SessionID, event, snapshot)
}

func (d *Dispatcher) sendError(c *Client, err error) {
	ee := models.AsEventError(err)
	if ee.Kind == models.ErrKindUnknown {
		d.logger.Error("unexpected mutation failure",
			zap.Error(err),
			zap.String("session_id", c.SessionID.String()))
	}
	d.hub.SendToConnection(c.SessionID, c.ID, EventErrored, ee)
}

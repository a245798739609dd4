package realtime

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/pulseboard/backend/internal/board"
	"github.com/pulseboard/backend/internal/models"
)

// WSMessage is the WebSocket message envelope, both directions.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound event names. Each mutation is answered by a room-wide broadcast
// of the same name carrying the post-mutation session snapshot; failures
// answer the triggering connection only, with EventErrored.
const (
	EventJoin               = "join"
	EventVote               = "vote"
	EventShowResults        = "showResults"
	EventResetVotes         = "resetVotes"
	EventAddCard            = "addCard"
	EventUpdateCard         = "updateCard"
	EventDeleteCard         = "deleteCard"
	EventVoteCard           = "voteCard"
	EventMoveCard           = "moveCard"
	EventGroupCards         = "groupCards"
	EventRenameGroup        = "renameGroup"
	EventUngroupCard        = "ungroupCard"
	EventUpdateTimer        = "updateTimer"
	EventUpdateMusic        = "updateMusic"
	EventUpdateBoardImages  = "updateBoardImages"
	EventUpdateColumnImages = "updateColumnHeaderImages"
	EventRevealCards        = "revealCards"
	EventUpdateNickname     = "updateNickname"
	EventUpdateAvatar       = "updateAvatar"
	EventHeartbeat          = "heartbeat"
	EventDisconnect         = "disconnect"
	EventRemoveUser         = "removeUser"
)

// Outbound-only event names.
const (
	EventMentioned = "mentioned"
	EventErrored   = "encounteredError"
)

// VotePayload replaces the sender's votes wholesale.
type VotePayload struct {
	Votes map[string]string `json:"votes"`
}

// AddCardPayload creates a card in a column.
type AddCardPayload struct {
	Column      string `json:"column"`
	Text        string `json:"text"`
	Image       string `json:"image,omitempty"`
	Color       string `json:"color,omitempty"`
	IsAnonymous bool   `json:"is_anonymous"`
}

// UpdateCardPayload patches a card; omitted fields are preserved.
type UpdateCardPayload struct {
	Column string    `json:"column"`
	CardID uuid.UUID `json:"card_id"`
	board.CardPatch
}

// CardRefPayload addresses one card in one column (delete, vote, ungroup).
type CardRefPayload struct {
	Column string    `json:"column"`
	CardID uuid.UUID `json:"card_id"`
}

// MoveCardPayload relocates a card between columns.
type MoveCardPayload struct {
	Source string    `json:"source"`
	Target string    `json:"target"`
	CardID uuid.UUID `json:"card_id"`
}

// GroupCardsPayload groups two cards of one column.
type GroupCardsPayload struct {
	Column string    `json:"column"`
	CardA  uuid.UUID `json:"card_a"`
	CardB  uuid.UUID `json:"card_b"`
}

// RenameGroupPayload names a card group.
type RenameGroupPayload struct {
	GroupID string `json:"group_id"`
	Name    string `json:"name"`
}

// BoardImagesPayload replaces the board image list.
type BoardImagesPayload struct {
	Images []string `json:"images"`
}

// ColumnImagesPayload replaces the column header images.
type ColumnImagesPayload struct {
	Images map[string]string `json:"images"`
}

// RevealCardsPayload toggles card visibility.
type RevealCardsPayload struct {
	Revealed bool `json:"revealed"`
}

// NicknamePayload renames the sender.
type NicknamePayload struct {
	Nickname string `json:"nickname"`
}

// AvatarPayload changes the sender's avatar.
type AvatarPayload struct {
	Avatar string `json:"avatar"`
}

// RemoveUserPayload removes a participant; session owner only.
type RemoveUserPayload struct {
	ParticipantID int `json:"participant_id"`
}

// MentionedPayload is the targeted notification sent to a participant whose
// nickname appears in a card's text.
type MentionedPayload struct {
	SessionID uuid.UUID `json:"session_id"`
	Column    string    `json:"column"`
	CardID    uuid.UUID `json:"card_id"`
	Text      string    `json:"text"`
	By        string    `json:"by,omitempty"` // empty for anonymous cards
}

// decode unmarshals an event payload, mapping malformed JSON onto the
// validation error kind.
func decode[T any](data json.RawMessage, into *T) error {
	if len(data) == 0 {
		return models.ErrValidation("missing payload")
	}
	if err := json.Unmarshal(data, into); err != nil {
		return models.ErrValidation("malformed payload")
	}
	return nil
}

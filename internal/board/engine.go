// Package board implements the retrospective board mutations: cards, votes,
// groups, timer, music and board imagery. Operations mutate the session they
// are handed and return typed failures; locking and broadcast are the
// caller's concern.
package board

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pulseboard/backend/internal/models"
)

// CardPatch carries the optional fields of an updateCard payload. Pointer
// fields distinguish "omitted" from "explicitly cleared"; color is absent on
// purpose, cards keep their creation color.
type CardPatch struct {
	Text        *string `json:"text,omitempty"`
	Image       *string `json:"image,omitempty"`
	Votes       *[]int  `json:"votes,omitempty"`
	VoteCount   *int    `json:"vote_count,omitempty"`
	IsAnonymous *bool   `json:"is_anonymous,omitempty"`
}

// AddCard appends a new card to the column and returns it together with the
// nicknames mentioned in its text, so the caller can fan out notifications.
func AddCard(s *models.RetroSession, authorID int, column, text, image, color string, anonymous bool) (*models.Card, []string, error) {
	if !s.HasColumn(column) {
		return nil, nil, models.ErrValidation("unknown column: " + column)
	}
	if strings.TrimSpace(text) == "" && image == "" {
		return nil, nil, models.ErrValidation("card needs text or an image")
	}
	card := &models.Card{
		ID:          uuid.New(),
		Text:        text,
		Image:       image,
		Color:       color,
		AuthorID:    authorID,
		CreatedAt:   time.Now(),
		Mentions:    ExtractMentions(text),
		Votes:       map[int]bool{},
		IsAnonymous: anonymous,
	}
	s.Cards[column] = append(s.Cards[column], card)
	return card, card.Mentions, nil
}

// UpdateCard merges the fields present in the patch into the card. Mentions
// are re-extracted only when the patch carries text.
func UpdateCard(s *models.RetroSession, column string, cardID uuid.UUID, patch CardPatch) error {
	card := s.FindCard(column, cardID)
	if card == nil {
		return models.ErrValidation("card not found")
	}
	if patch.Text != nil {
		card.Text = *patch.Text
		card.Mentions = ExtractMentions(card.Text)
	}
	if patch.Image != nil {
		card.Image = *patch.Image
	}
	if patch.Votes != nil {
		card.Votes = make(map[int]bool, len(*patch.Votes))
		for _, id := range *patch.Votes {
			card.Votes[id] = true
		}
		card.VoteCount = len(card.Votes)
	}
	if patch.VoteCount != nil {
		card.VoteCount = *patch.VoteCount
	}
	if patch.IsAnonymous != nil {
		card.IsAnonymous = *patch.IsAnonymous
	}
	return nil
}

// DeleteCard removes the card from the column. Deleting an absent card is
// not an error. A group left with one member disappears with it.
func DeleteCard(s *models.RetroSession, column string, cardID uuid.UUID) {
	cards := s.Cards[column]
	for i, c := range cards {
		if c.ID != cardID {
			continue
		}
		groupID := c.GroupID
		s.Cards[column] = append(cards[:i], cards[i+1:]...)
		if groupID != "" {
			collapseGroup(s, groupID)
		}
		return
	}
}

// VoteCard toggles the participant's membership in the card's vote set.
func VoteCard(s *models.RetroSession, column string, cardID uuid.UUID, participantID int) error {
	card := s.FindCard(column, cardID)
	if card == nil {
		return models.ErrValidation("card not found")
	}
	if card.Votes[participantID] {
		delete(card.Votes, participantID)
	} else {
		card.Votes[participantID] = true
	}
	card.VoteCount = len(card.Votes)
	return nil
}

// MoveCard relocates a card from one column to another, preserving total
// card count. Missing column or card makes it a no-op; moved reports
// whether anything changed.
func MoveCard(s *models.RetroSession, source, target string, cardID uuid.UUID) (moved bool) {
	if !s.HasColumn(source) || !s.HasColumn(target) {
		return false
	}
	cards := s.Cards[source]
	for i, c := range cards {
		if c.ID != cardID {
			continue
		}
		s.Cards[source] = append(cards[:i], cards[i+1:]...)
		s.Cards[target] = append(s.Cards[target], c)
		return true
	}
	return false
}

// GroupCards joins two cards into one group. If neither card is grouped a
// fresh group is created; if one already is, the other inherits it, which
// makes grouping transitive by construction. A card pulled out of another
// group leaves it subject to the usual single-member collapse.
func GroupCards(s *models.RetroSession, column string, cardA, cardB uuid.UUID) error {
	a := s.FindCard(column, cardA)
	b := s.FindCard(column, cardB)
	if a == nil || b == nil {
		return models.ErrValidation("card not found")
	}
	switch {
	case a.GroupID != "":
		prior := b.GroupID
		b.GroupID = a.GroupID
		if prior != "" && prior != a.GroupID {
			collapseGroup(s, prior)
		}
	case b.GroupID != "":
		a.GroupID = b.GroupID
	default:
		g := &models.CardGroup{ID: uuid.New().String()}
		s.Groups[g.ID] = g
		a.GroupID = g.ID
		b.GroupID = g.ID
	}
	return nil
}

// UngroupCard clears the card's group. If the group is left with at most one
// member, the group record is deleted and that last member is cleared too.
func UngroupCard(s *models.RetroSession, column string, cardID uuid.UUID) error {
	card := s.FindCard(column, cardID)
	if card == nil {
		return models.ErrValidation("card not found")
	}
	groupID := card.GroupID
	card.GroupID = ""
	if groupID != "" {
		collapseGroup(s, groupID)
	}
	return nil
}

// collapseGroup deletes the group once it has at most one remaining member.
func collapseGroup(s *models.RetroSession, groupID string) {
	members := s.GroupMembers(groupID)
	if len(members) > 1 {
		return
	}
	for _, m := range members {
		m.GroupID = ""
	}
	delete(s.Groups, groupID)
}

// RenameGroup sets the group's display name.
func RenameGroup(s *models.RetroSession, groupID, name string) error {
	g, ok := s.Groups[groupID]
	if !ok {
		return models.ErrValidation("group not found")
	}
	g.Name = name
	return nil
}

// UpdateTimer replaces the timer state. Owner only.
func UpdateTimer(s *models.RetroSession, actorID int, t models.Timer) error {
	if actorID != s.OwnerID {
		return models.ErrNotAuthorized("only the session owner controls the timer")
	}
	s.Timer = t
	return nil
}

// UpdateMusic replaces the music state. Owner only.
func UpdateMusic(s *models.RetroSession, actorID int, m models.Music) error {
	if actorID != s.OwnerID {
		return models.ErrNotAuthorized("only the session owner controls the music")
	}
	s.Music = m
	return nil
}

// UpdateBoardImages replaces the board image list.
func UpdateBoardImages(s *models.RetroSession, images []string) {
	s.BoardImages = images
}

// UpdateColumnHeaderImages replaces the column header image map.
func UpdateColumnHeaderImages(s *models.RetroSession, images map[string]string) {
	s.ColumnHeaderImages = images
}

// RevealCards toggles whether card contents are visible to everyone.
// Owner only.
func RevealCards(s *models.RetroSession, actorID int, revealed bool) error {
	if actorID != s.OwnerID {
		return models.ErrNotAuthorized("only the session owner reveals cards")
	}
	s.CardsRevealed = revealed
	return nil
}

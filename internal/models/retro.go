package models

import (
	"time"

	"github.com/google/uuid"
)

// Column is a named bucket of cards within a retrospective template.
type Column struct {
	Key          string `json:"key"`
	Title        string `json:"title"`
	Color        string `json:"color,omitempty"`
	IsMainColumn bool   `json:"is_main_column"`
}

// Card is one retrospective board item placed in a column.
type Card struct {
	ID          uuid.UUID    `json:"id"`
	Text        string       `json:"text"`
	Image       string       `json:"image,omitempty"`
	Color       string       `json:"color,omitempty"` // fixed at creation
	AuthorID    int          `json:"author_id"`
	CreatedAt   time.Time    `json:"created_at"`
	Mentions    []string     `json:"mentions,omitempty"` // lowercased nicknames
	Votes       map[int]bool `json:"votes"`              // participant ID set
	VoteCount   int          `json:"vote_count"`
	GroupID     string       `json:"group_id,omitempty"`
	IsAnonymous bool         `json:"is_anonymous"`
}

// CardGroup is a named cluster of cards. Groups with one or zero members
// are deleted implicitly by the board engine.
type CardGroup struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Timer is the board countdown. TimeLeft is the number of seconds that
// remained when the timer was last started or stopped; the live value is
// derived from StartedAt by board.RemainingTime.
type Timer struct {
	TimeLeft  int       `json:"time_left"`
	IsRunning bool      `json:"is_running"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

// Music is the shared background-music state, owner controlled.
type Music struct {
	IsPlaying bool   `json:"is_playing"`
	URL       string `json:"url,omitempty"`
}

// RetroParticipant is the session-side view of a participant on a
// retrospective board.
type RetroParticipant struct {
	ID        int    `json:"id"`
	Nickname  string `json:"nickname"`
	Avatar    string `json:"avatar,omitempty"`
	IsOwner   bool   `json:"is_owner"`
	Connected bool   `json:"connected"`
}

// RetroSession is a retrospective board room.
type RetroSession struct {
	ID                 uuid.UUID                 `json:"id"`
	Title              string                    `json:"title"`
	TemplateID         string                    `json:"template_id"`
	Columns            []Column                  `json:"columns"`
	OwnerID            int                       `json:"owner_id"`
	Participants       map[int]*RetroParticipant `json:"participants"`
	Cards              map[string][]*Card        `json:"cards"`  // column key -> ordered cards
	Groups             map[string]*CardGroup     `json:"groups"` // group ID -> group
	Timer              Timer                     `json:"timer"`
	Music              Music                     `json:"music"`
	BoardImages        []string                  `json:"board_images,omitempty"`
	ColumnHeaderImages map[string]string         `json:"column_header_images,omitempty"`
	CardsRevealed      bool                      `json:"cards_revealed"`
	CreatedAt          time.Time                 `json:"created_at"`
	ExpiresAt          time.Time                 `json:"expires_at"`
}

// Expiry implements store.Session.
func (s *RetroSession) Expiry() time.Time { return s.ExpiresAt }

// HasColumn reports whether key names one of the session's columns.
func (s *RetroSession) HasColumn(key string) bool {
	for _, c := range s.Columns {
		if c.Key == key {
			return true
		}
	}
	return false
}

// FindCard returns the card with the given ID in the given column, or nil.
func (s *RetroSession) FindCard(column string, cardID uuid.UUID) *Card {
	for _, c := range s.Cards[column] {
		if c.ID == cardID {
			return c
		}
	}
	return nil
}

// GroupMembers returns every card on the board carrying the given group ID.
func (s *RetroSession) GroupMembers(groupID string) []*Card {
	var members []*Card
	for _, cards := range s.Cards {
		for _, c := range cards {
			if c.GroupID == groupID {
				members = append(members, c)
			}
		}
	}
	return members
}

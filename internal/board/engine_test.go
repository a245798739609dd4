package board

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pulseboard/backend/internal/models"
)

func newBoard() *models.RetroSession {
	tmpl := models.TemplateByID("start-stop-continue")
	s := &models.RetroSession{
		ID:         uuid.New(),
		TemplateID: tmpl.ID,
		Columns:    tmpl.Columns,
		OwnerID:    0,
		Participants: map[int]*models.RetroParticipant{
			0: {ID: 0, Nickname: "owner", IsOwner: true, Connected: true},
			1: {ID: 1, Nickname: "Ayşe", Connected: true},
		},
		Cards:  make(map[string][]*models.Card),
		Groups: make(map[string]*models.CardGroup),
	}
	for _, col := range tmpl.Columns {
		s.Cards[col.Key] = []*models.Card{}
	}
	return s
}

func totalCards(s *models.RetroSession) int {
	n := 0
	for _, cards := range s.Cards {
		n += len(cards)
	}
	return n
}

func TestExtractMentions(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"plain ascii", "thanks @bob!", []string{"bob"}},
		{"unicode nickname lowercased", "great job @Ayşe!", []string{"ayşe"}},
		{"turkish letters", "@Görkem and @Çağla shipped it", []string{"görkem", "çağla"}},
		{"duplicates collapsed", "@bob @bob @BOB", []string{"bob"}},
		{"no mentions", "nothing here", nil},
		{"email is still a mention of the local part", "mail me@example", []string{"example"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractMentions(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("ExtractMentions(%q) = %v, want %v", tt.text, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("mention[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestAddCard(t *testing.T) {
	s := newBoard()

	card, mentions, err := AddCard(s, 1, "start", "pair more with @owner", "", "#fff", false)
	if err != nil {
		t.Fatalf("AddCard: %v", err)
	}
	if len(s.Cards["start"]) != 1 || s.Cards["start"][0] != card {
		t.Fatal("card not appended to column")
	}
	if len(mentions) != 1 || mentions[0] != "owner" {
		t.Errorf("mentions = %v, want [owner]", mentions)
	}
	if card.AuthorID != 1 || card.Color != "#fff" || card.Votes == nil {
		t.Errorf("card fields off: %+v", card)
	}

	if _, _, err := AddCard(s, 1, "nope", "text", "", "", false); err == nil {
		t.Error("expected error for unknown column")
	}
	if _, _, err := AddCard(s, 1, "start", "   ", "", "", false); err == nil {
		t.Error("expected error for empty card")
	}
	if _, _, err := AddCard(s, 1, "start", "", "img.png", "", true); err != nil {
		t.Errorf("image-only card should be allowed: %v", err)
	}
}

func TestUpdateCardMergesOnlyPresentFields(t *testing.T) {
	s := newBoard()
	card, _, _ := AddCard(s, 1, "start", "original @owner", "pic.png", "#abc", false)

	newText := "rewritten, no mention"
	if err := UpdateCard(s, "start", card.ID, CardPatch{Text: &newText}); err != nil {
		t.Fatalf("UpdateCard: %v", err)
	}
	if card.Text != newText {
		t.Errorf("text = %q, want %q", card.Text, newText)
	}
	if card.Image != "pic.png" {
		t.Errorf("image = %q, want preserved", card.Image)
	}
	if card.Color != "#abc" {
		t.Errorf("color = %q, cards never change color", card.Color)
	}
	if len(card.Mentions) != 0 {
		t.Errorf("mentions = %v, want re-extracted to empty", card.Mentions)
	}

	// Image cleared explicitly; text untouched, mentions not re-extracted.
	empty := ""
	if err := UpdateCard(s, "start", card.ID, CardPatch{Image: &empty}); err != nil {
		t.Fatalf("UpdateCard: %v", err)
	}
	if card.Image != "" {
		t.Errorf("image = %q, want explicitly cleared", card.Image)
	}
	if card.Text != newText {
		t.Errorf("text = %q, want untouched", card.Text)
	}

	votes := []int{0, 1}
	if err := UpdateCard(s, "start", card.ID, CardPatch{Votes: &votes}); err != nil {
		t.Fatalf("UpdateCard: %v", err)
	}
	if card.VoteCount != 2 || !card.Votes[0] || !card.Votes[1] {
		t.Errorf("votes = %v count %d, want both set", card.Votes, card.VoteCount)
	}
}

func TestDeleteCardIdempotent(t *testing.T) {
	s := newBoard()
	card, _, _ := AddCard(s, 1, "start", "bye", "", "", false)

	DeleteCard(s, "start", card.ID)
	if totalCards(s) != 0 {
		t.Fatal("card not deleted")
	}
	DeleteCard(s, "start", card.ID) // absent: no panic, no error
	DeleteCard(s, "bogus", card.ID)
}

func TestVoteCardToggles(t *testing.T) {
	s := newBoard()
	card, _, _ := AddCard(s, 1, "start", "votable", "", "", false)

	if err := VoteCard(s, "start", card.ID, 0); err != nil {
		t.Fatalf("VoteCard: %v", err)
	}
	if card.VoteCount != 1 || !card.Votes[0] {
		t.Errorf("after vote: %v count %d", card.Votes, card.VoteCount)
	}
	if err := VoteCard(s, "start", card.ID, 0); err != nil {
		t.Fatalf("VoteCard: %v", err)
	}
	if card.VoteCount != 0 || card.Votes[0] {
		t.Errorf("after toggle off: %v count %d", card.Votes, card.VoteCount)
	}
}

func TestMoveCardIsATrueMove(t *testing.T) {
	s := newBoard()
	card, _, _ := AddCard(s, 1, "start", "mover", "", "", false)
	AddCard(s, 1, "start", "stayer", "", "", false)

	if moved := MoveCard(s, "start", "stop", card.ID); !moved {
		t.Fatal("MoveCard reported no move")
	}
	if totalCards(s) != 2 {
		t.Errorf("total cards = %d, want 2 (conserved)", totalCards(s))
	}
	if len(s.Cards["start"]) != 1 || len(s.Cards["stop"]) != 1 {
		t.Errorf("start %d stop %d, want 1 and 1", len(s.Cards["start"]), len(s.Cards["stop"]))
	}
	if s.Cards["stop"][0].ID != card.ID {
		t.Error("moved card missing from target column")
	}

	if moved := MoveCard(s, "start", "bogus", card.ID); moved {
		t.Error("move into unknown column must be a no-op")
	}
	if moved := MoveCard(s, "start", "stop", uuid.New()); moved {
		t.Error("move of unknown card must be a no-op")
	}
}

func TestGroupingIsTransitive(t *testing.T) {
	s := newBoard()
	a, _, _ := AddCard(s, 1, "start", "a", "", "", false)
	b, _, _ := AddCard(s, 1, "start", "b", "", "", false)
	c, _, _ := AddCard(s, 1, "start", "c", "", "", false)

	if err := GroupCards(s, "start", a.ID, b.ID); err != nil {
		t.Fatalf("GroupCards: %v", err)
	}
	if err := GroupCards(s, "start", b.ID, c.ID); err != nil {
		t.Fatalf("GroupCards: %v", err)
	}
	if a.GroupID == "" || a.GroupID != b.GroupID || b.GroupID != c.GroupID {
		t.Fatalf("group IDs %q %q %q, want one shared group", a.GroupID, b.GroupID, c.GroupID)
	}
	if len(s.Groups) != 1 {
		t.Errorf("groups = %d, want 1", len(s.Groups))
	}

	// Ungrouping the middle card leaves the other two grouped.
	if err := UngroupCard(s, "start", b.ID); err != nil {
		t.Fatalf("UngroupCard: %v", err)
	}
	if b.GroupID != "" {
		t.Error("b still grouped")
	}
	if a.GroupID == "" || a.GroupID != c.GroupID {
		t.Errorf("a %q c %q, want still grouped together", a.GroupID, c.GroupID)
	}

	// Dropping one more leaves a single member: group collapses entirely.
	if err := UngroupCard(s, "start", c.ID); err != nil {
		t.Fatalf("UngroupCard: %v", err)
	}
	if a.GroupID != "" || c.GroupID != "" {
		t.Errorf("a %q c %q, want group dissolved", a.GroupID, c.GroupID)
	}
	if len(s.Groups) != 0 {
		t.Errorf("groups = %d, want 0", len(s.Groups))
	}
}

func TestGroupCardsAcrossGroupsCollapsesLoser(t *testing.T) {
	s := newBoard()
	a, _, _ := AddCard(s, 1, "start", "a", "", "", false)
	b, _, _ := AddCard(s, 1, "start", "b", "", "", false)
	c, _, _ := AddCard(s, 1, "start", "c", "", "", false)
	d, _, _ := AddCard(s, 1, "start", "d", "", "", false)

	if err := GroupCards(s, "start", a.ID, b.ID); err != nil {
		t.Fatalf("GroupCards: %v", err)
	}
	if err := GroupCards(s, "start", c.ID, d.ID); err != nil {
		t.Fatalf("GroupCards: %v", err)
	}

	// Pulling c into a's group strands d alone in the old group, which
	// must dissolve rather than linger with a single member.
	if err := GroupCards(s, "start", a.ID, c.ID); err != nil {
		t.Fatalf("GroupCards: %v", err)
	}
	if c.GroupID != a.GroupID {
		t.Errorf("c group = %q, want %q", c.GroupID, a.GroupID)
	}
	if d.GroupID != "" {
		t.Errorf("d group = %q, want ungrouped", d.GroupID)
	}
	if len(s.Groups) != 1 {
		t.Errorf("groups = %d, want 1", len(s.Groups))
	}

	// Merging within a larger old group keeps that group alive.
	e, _, _ := AddCard(s, 1, "start", "e", "", "", false)
	f, _, _ := AddCard(s, 1, "start", "f", "", "", false)
	if err := GroupCards(s, "start", d.ID, e.ID); err != nil {
		t.Fatalf("GroupCards: %v", err)
	}
	if err := GroupCards(s, "start", e.ID, f.ID); err != nil {
		t.Fatalf("GroupCards: %v", err)
	}
	if err := GroupCards(s, "start", a.ID, f.ID); err != nil {
		t.Fatalf("GroupCards: %v", err)
	}
	if d.GroupID == "" || d.GroupID != e.GroupID {
		t.Errorf("d %q e %q, want still grouped together", d.GroupID, e.GroupID)
	}
	if f.GroupID != a.GroupID {
		t.Errorf("f group = %q, want %q", f.GroupID, a.GroupID)
	}
	if len(s.Groups) != 2 {
		t.Errorf("groups = %d, want 2", len(s.Groups))
	}
}

func TestRenameGroup(t *testing.T) {
	s := newBoard()
	a, _, _ := AddCard(s, 1, "start", "a", "", "", false)
	b, _, _ := AddCard(s, 1, "start", "b", "", "", false)
	_ = GroupCards(s, "start", a.ID, b.ID)

	if err := RenameGroup(s, a.GroupID, "themes"); err != nil {
		t.Fatalf("RenameGroup: %v", err)
	}
	if s.Groups[a.GroupID].Name != "themes" {
		t.Errorf("name = %q, want themes", s.Groups[a.GroupID].Name)
	}
	if err := RenameGroup(s, "missing", "x"); err == nil {
		t.Error("expected error for unknown group")
	}
}

func TestOwnerGating(t *testing.T) {
	s := newBoard()

	tests := []struct {
		name string
		call func(actorID int) error
	}{
		{"timer", func(id int) error { return UpdateTimer(s, id, models.Timer{TimeLeft: 300, IsRunning: true}) }},
		{"music", func(id int) error { return UpdateMusic(s, id, models.Music{IsPlaying: true, URL: "lofi"}) }},
		{"reveal", func(id int) error { return RevealCards(s, id, true) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call(1)
			ee, ok := err.(*models.EventError)
			if !ok || ee.Kind != models.ErrKindNotAuthorized {
				t.Errorf("non-owner error = %v, want NOT_AUTHORIZED", err)
			}
			if err := tt.call(0); err != nil {
				t.Errorf("owner call failed: %v", err)
			}
		})
	}
}

func TestRemainingTime(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		now   time.Time
		timer models.Timer
		want  int
	}{
		{"paused returns stored value", base, models.Timer{TimeLeft: 120}, 120},
		{"running counts down", base.Add(30 * time.Second), models.Timer{TimeLeft: 120, IsRunning: true, StartedAt: base}, 90},
		{"running never negative", base.Add(5 * time.Minute), models.Timer{TimeLeft: 120, IsRunning: true, StartedAt: base}, 0},
		{"paused never negative", base, models.Timer{TimeLeft: -4}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RemainingTime(tt.now, tt.timer); got != tt.want {
				t.Errorf("RemainingTime = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDeleteGroupedCardCollapsesGroup(t *testing.T) {
	s := newBoard()
	a, _, _ := AddCard(s, 1, "start", "a", "", "", false)
	b, _, _ := AddCard(s, 1, "start", "b", "", "", false)
	_ = GroupCards(s, "start", a.ID, b.ID)

	DeleteCard(s, "start", a.ID)
	if b.GroupID != "" {
		t.Error("lone survivor should have its group cleared")
	}
	if len(s.Groups) != 0 {
		t.Errorf("groups = %d, want 0", len(s.Groups))
	}
}

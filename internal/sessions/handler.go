// Package sessions exposes the thin request/response surface over the core:
// session creation, joining by shared link, and existence checks. Everything
// stateful happens in the store and the identity registry.
package sessions

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pulseboard/backend/config"
	"github.com/pulseboard/backend/internal/identity"
	"github.com/pulseboard/backend/internal/models"
	"github.com/pulseboard/backend/internal/store"
	"github.com/pulseboard/backend/pkg/response"
)

// Handler handles session lifecycle HTTP endpoints.
type Handler struct {
	estimation *store.Store[*models.EstimationSession]
	retro      *store.Store[*models.RetroSession]
	registry   *identity.Registry
	cfg        config.SessionConfig
	logger     *zap.Logger
}

// NewHandler creates a sessions handler.
func NewHandler(
	est *store.Store[*models.EstimationSession],
	retro *store.Store[*models.RetroSession],
	registry *identity.Registry,
	cfg config.SessionConfig,
	logger *zap.Logger,
) *Handler {
	return &Handler{estimation: est, retro: retro, registry: registry, cfg: cfg, logger: logger}
}

// CreateEstimationRequest is the body for POST /sessions/estimation.
type CreateEstimationRequest struct {
	Nickname string          `json:"nickname" binding:"required"`
	Title    string          `json:"title"`
	Mode     string          `json:"mode"` // "single_metric" (default) or "weighted_multi"
	Metrics  []models.Metric `json:"metrics"`
}

// CreateRetroRequest is the body for POST /sessions/retro.
type CreateRetroRequest struct {
	Nickname      string `json:"nickname" binding:"required"`
	Title         string `json:"title"`
	TemplateID    string `json:"template_id"`
	RetentionDays int    `json:"retention_days"` // 1..30, defaulted when out of range
}

// JoinRequest is the body for POST /sessions/:id/join.
type JoinRequest struct {
	Nickname string `json:"nickname" binding:"required"`
}

// JoinResponse is returned by create and join alike: everything a client
// needs to open the event channel.
type JoinResponse struct {
	SessionID     uuid.UUID `json:"session_id"`
	ParticipantID int       `json:"participant_id"`
	Credential    string    `json:"credential"`
	IsOwner       bool      `json:"is_owner"`
}

// CreateEstimation handles POST /sessions/estimation.
func (h *Handler) CreateEstimation(c *gin.Context) {
	var req CreateEstimationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "nickname is required")
		return
	}
	if strings.TrimSpace(req.Nickname) == "" {
		response.BadRequest(c, "nickname must not be empty")
		return
	}

	mode := models.ModeSingleMetric
	if req.Mode == string(models.ModeWeightedMulti) {
		mode = models.ModeWeightedMulti
	}
	metrics := req.Metrics
	if len(metrics) == 0 {
		metrics = []models.Metric{{ID: models.StoryPointMetric, Name: models.StoryPointMetric, Weight: 1}}
	}

	now := time.Now()
	session := &models.EstimationSession{
		ID:           uuid.New(),
		Title:        req.Title,
		Mode:         mode,
		Metrics:      metrics,
		Participants: make(map[int]*models.EstimationParticipant),
		CreatedAt:    now,
		ExpiresAt:    now.Add(h.cfg.EstimationTTL),
	}

	owner := h.registry.Join(session.ID, req.Nickname, true)
	session.Participants[owner.ID] = &models.EstimationParticipant{
		ID:       owner.ID,
		Nickname: owner.Nickname,
		Votes:    map[string]string{},
		IsOwner:  true,
	}
	h.estimation.Put(session.ID, session)

	h.logger.Info("estimation session created",
		zap.String("session_id", session.ID.String()),
		zap.String("mode", string(mode)))
	response.Created(c, JoinResponse{
		SessionID:     session.ID,
		ParticipantID: owner.ID,
		Credential:    owner.Credential,
		IsOwner:       true,
	})
}

// CreateRetro handles POST /sessions/retro.
func (h *Handler) CreateRetro(c *gin.Context) {
	var req CreateRetroRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "nickname is required")
		return
	}
	if strings.TrimSpace(req.Nickname) == "" {
		response.BadRequest(c, "nickname must not be empty")
		return
	}

	retention := req.RetentionDays
	if retention < 1 || retention > h.cfg.MaxRetentionDays {
		retention = h.cfg.DefaultRetentionDays
	}
	tmpl := models.TemplateByID(req.TemplateID)

	now := time.Now()
	session := &models.RetroSession{
		ID:           uuid.New(),
		Title:        req.Title,
		TemplateID:   tmpl.ID,
		Columns:      tmpl.Columns,
		Participants: make(map[int]*models.RetroParticipant),
		Cards:        make(map[string][]*models.Card),
		Groups:       make(map[string]*models.CardGroup),
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Duration(retention) * 24 * time.Hour),
	}
	for _, col := range tmpl.Columns {
		session.Cards[col.Key] = []*models.Card{}
	}

	owner := h.registry.Join(session.ID, req.Nickname, true)
	session.OwnerID = owner.ID
	session.Participants[owner.ID] = &models.RetroParticipant{
		ID:       owner.ID,
		Nickname: owner.Nickname,
		IsOwner:  true,
	}
	h.retro.Put(session.ID, session)

	h.logger.Info("retro session created",
		zap.String("session_id", session.ID.String()),
		zap.String("template_id", tmpl.ID),
		zap.Int("retention_days", retention))
	response.Created(c, JoinResponse{
		SessionID:     session.ID,
		ParticipantID: owner.ID,
		Credential:    owner.Credential,
		IsOwner:       true,
	})
}

// Join handles POST /sessions/:id/join for either session flavor. Duplicate
// nicknames become distinct participants; join never conflicts.
func (h *Handler) Join(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "nickname is required")
		return
	}
	if strings.TrimSpace(req.Nickname) == "" {
		response.BadRequest(c, "nickname must not be empty")
		return
	}

	if h.estimation.Exists(sessionID) {
		p := h.registry.Join(sessionID, req.Nickname, false)
		ok, _ := h.estimation.Mutate(sessionID, func(s *models.EstimationSession) error {
			s.Participants[p.ID] = &models.EstimationParticipant{
				ID:       p.ID,
				Nickname: p.Nickname,
				Votes:    map[string]string{},
			}
			return nil
		})
		if !ok {
			// Session expired between the existence check and the mutation.
			response.NotFound(c, "session expired or deleted")
			return
		}
		response.OK(c, JoinResponse{SessionID: sessionID, ParticipantID: p.ID, Credential: p.Credential})
		return
	}

	if h.retro.Exists(sessionID) {
		p := h.registry.Join(sessionID, req.Nickname, false)
		ok, _ := h.retro.Mutate(sessionID, func(s *models.RetroSession) error {
			s.Participants[p.ID] = &models.RetroParticipant{
				ID:       p.ID,
				Nickname: p.Nickname,
			}
			return nil
		})
		if !ok {
			response.NotFound(c, "session expired or deleted")
			return
		}
		response.OK(c, JoinResponse{SessionID: sessionID, ParticipantID: p.ID, Credential: p.Credential})
		return
	}

	response.NotFound(c, "session expired or deleted")
}

// Exists handles GET /sessions/:id/exists.
func (h *Handler) Exists(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	response.OK(c, gin.H{"exists": h.estimation.Exists(sessionID) || h.retro.Exists(sessionID)})
}

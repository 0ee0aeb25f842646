package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"psychologist-records/middleware"
	"psychologist-records/models"
	"psychologist-records/monitoring"
	"psychologist-records/utils"
)

type SessionHandler struct {
	repo  models.Repository
	kafka utils.KafkaProducer
}

func NewSessionHandler(repo models.Repository, kafka utils.KafkaProducer) *SessionHandler {
	return &SessionHandler{
		repo:  repo,
		kafka: kafka,
	}
}

type SessionRequest struct {
	Platform    string `json:"platform"`
	SessionDate string `json:"session_date"`
	SessionTime string `json:"session_time"`
	Summary     string `json:"summary"`
	Conditions  string `json:"conditions"`
}

type SessionResponse struct {
	ID          string    `json:"id"`
	ClientID    string    `json:"client_id"`
	Platform    string    `json:"platform"`
	SessionDate string    `json:"session_date"`
	SessionTime string    `json:"session_time"`
	Summary     *string   `json:"summary"`
	Conditions  *string   `json:"conditions"`
	CreatedAt   time.Time `json:"created_at"`
}

type SessionListResponse struct {
	Sessions   []SessionResponse `json:"sessions"`
	Platforms  []string          `json:"platforms"`
	TotalCount int64             `json:"total_count"`
	Page       int               `json:"page"`
	TotalPages int               `json:"total_pages"`
}

// ownedClient resolves the route's client under the caller's owner scope.
// Sessions are only reachable through a client the caller owns; a missing
// or foreign client ends the request with 404.
func (h *SessionHandler) ownedClient(c *gin.Context) *models.Client {
	ownerID := middleware.CurrentPsychologistID(c)
	if ownerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return nil
	}

	client, err := h.repo.GetClient(c.Param("id"), ownerID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
			return nil
		}
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil
	}
	return client
}

// ListSessions returns one page of the client's sessions ordered by date
// then time, both descending, optionally narrowed to an exact platform.
// The platform selector set always covers all of the client's sessions,
// unaffected by the current filter or page.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	client := h.ownedClient(c)
	if client == nil {
		return
	}

	page := parsePage(c.Query("page"))
	platform := c.Query("platform")

	result, err := h.repo.ListSessions(client.ID, platform, page, ItemsPerPage)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	platforms, err := h.repo.ListPlatforms(client.ID)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	sessions := make([]SessionResponse, len(result.Sessions))
	for i := range result.Sessions {
		sessions[i] = toSessionResponse(&result.Sessions[i])
	}

	c.JSON(http.StatusOK, SessionListResponse{
		Sessions:   sessions,
		Platforms:  platforms,
		TotalCount: result.TotalCount,
		Page:       page,
		TotalPages: totalPages(result.TotalCount, ItemsPerPage),
	})
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	client := h.ownedClient(c)
	if client == nil {
		return
	}

	session, err := h.repo.GetSession(c.Param("sessionId"), client.ID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toSessionResponse(session))
}

func (h *SessionHandler) CreateSession(c *gin.Context) {
	client := h.ownedClient(c)
	if client == nil {
		return
	}

	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := sessionFromRequest(&req, client.ID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.repo.CreateSession(session); err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	monitoring.RecordMutations.WithLabelValues("session", "created").Inc()
	if h.kafka != nil {
		go h.sendSessionEvent("session_created", session)
	}

	c.JSON(http.StatusCreated, toSessionResponse(session))
}

func (h *SessionHandler) UpdateSession(c *gin.Context) {
	client := h.ownedClient(c)
	if client == nil {
		return
	}

	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := sessionFromRequest(&req, client.ID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session.ID = c.Param("sessionId")

	if err := h.repo.UpdateSession(session, client.ID); err != nil {
		if errors.Is(err, models.ErrOwnershipMismatch) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	monitoring.RecordMutations.WithLabelValues("session", "updated").Inc()
	if h.kafka != nil {
		go h.sendSessionEvent("session_updated", session)
	}

	updated, err := h.repo.GetSession(session.ID, client.ID)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toSessionResponse(updated))
}

// DeleteSession removes a single session; there is nothing below a session
// to cascade into. Deleting an already-deleted session reports not found,
// which callers treat as an idempotent outcome rather than a fault.
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	client := h.ownedClient(c)
	if client == nil {
		return
	}

	sessionID := c.Param("sessionId")
	if err := h.repo.DeleteSession(sessionID, client.ID); err != nil {
		if errors.Is(err, models.ErrOwnershipMismatch) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	monitoring.RecordMutations.WithLabelValues("session", "deleted").Inc()
	if h.kafka != nil {
		go func(id string) {
			event := map[string]interface{}{
				"event":      "session_deleted",
				"session_id": id,
			}
			h.sendRawEvent("session_events", event)
		}(sessionID)
	}

	c.JSON(http.StatusOK, gin.H{"deleted_id": sessionID})
}

func (h *SessionHandler) sendSessionEvent(eventType string, session *models.Session) {
	event := map[string]interface{}{
		"event": eventType,
		"data":  session,
	}
	h.sendRawEvent("session_events", event)
}

func (h *SessionHandler) sendRawEvent(topic string, event interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	jsonData, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal Kafka event: %v", err)
		return
	}

	if err := h.kafka.SendMessage(ctx, topic, nil, jsonData); err != nil {
		log.Printf("Failed to send Kafka message: %v", err)
	}
}

func toSessionResponse(session *models.Session) SessionResponse {
	return SessionResponse{
		ID:          session.ID,
		ClientID:    session.ClientID,
		Platform:    session.Platform,
		SessionDate: session.SessionDate,
		SessionTime: session.SessionTime,
		Summary:     session.Summary,
		Conditions:  session.Conditions,
		CreatedAt:   session.CreatedAt,
	}
}

// sessionFromRequest validates form input: platform non-empty, the date
// well-formed and not in the future, the time either well-formed or the
// midnight sentinel when omitted.
func sessionFromRequest(req *SessionRequest, clientID string) (*models.Session, error) {
	platform := strings.TrimSpace(req.Platform)
	if platform == "" {
		return nil, errors.New("platform is required")
	}

	date := strings.TrimSpace(req.SessionDate)
	if date == "" {
		return nil, errors.New("session date is required")
	}
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, errors.New("session date must be in YYYY-MM-DD format")
	}
	today := time.Now().Format("2006-01-02")
	if parsed.Format("2006-01-02") > today {
		return nil, errors.New("session date cannot be in the future")
	}

	sessionTime := strings.TrimSpace(req.SessionTime)
	if sessionTime == "" {
		sessionTime = models.DefaultSessionTime
	} else if _, err := time.Parse("15:04:05", sessionTime); err != nil {
		return nil, errors.New("session time must be in HH:MM:SS format")
	}

	return &models.Session{
		ClientID:    clientID,
		Platform:    platform,
		SessionDate: date,
		SessionTime: sessionTime,
		Summary:     optionalText(req.Summary),
		Conditions:  optionalText(req.Conditions),
	}, nil
}

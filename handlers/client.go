package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"psychologist-records/middleware"
	"psychologist-records/models"
	"psychologist-records/monitoring"
	"psychologist-records/utils"
)

// ItemsPerPage is the fixed pagination window for every list view.
const ItemsPerPage = 10

type ClientHandler struct {
	repo  models.Repository
	kafka utils.KafkaProducer
}

func NewClientHandler(repo models.Repository, kafka utils.KafkaProducer) *ClientHandler {
	return &ClientHandler{
		repo:  repo,
		kafka: kafka,
	}
}

// ClientRequest carries form-shaped input: optional fields arrive as text
// and blanks are normalized to absent before the write.
type ClientRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Age    string `json:"age"`
	Gender string `json:"gender"`
	Place  string `json:"place"`
}

type ClientResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     *string   `json:"email"`
	Age       *int      `json:"age"`
	Gender    *string   `json:"gender"`
	Place     *string   `json:"place"`
	CreatedAt time.Time `json:"created_at"`
}

type ClientListResponse struct {
	Clients    []ClientResponse `json:"clients"`
	TotalCount int64            `json:"total_count"`
	Page       int              `json:"page"`
	TotalPages int              `json:"total_pages"`
}

// ListClients returns one page of the caller's clients, newest first,
// optionally narrowed by a case-insensitive substring of the name.
func (h *ClientHandler) ListClients(c *gin.Context) {
	ownerID := middleware.CurrentPsychologistID(c)
	if ownerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	page := parsePage(c.Query("page"))
	search := c.Query("search")

	result, err := h.repo.ListClients(ownerID, search, page, ItemsPerPage)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	clients := make([]ClientResponse, len(result.Clients))
	for i := range result.Clients {
		clients[i] = toClientResponse(&result.Clients[i])
	}

	c.JSON(http.StatusOK, ClientListResponse{
		Clients:    clients,
		TotalCount: result.TotalCount,
		Page:       page,
		TotalPages: totalPages(result.TotalCount, ItemsPerPage),
	})
}

func (h *ClientHandler) GetClient(c *gin.Context) {
	ownerID := middleware.CurrentPsychologistID(c)
	if ownerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	client, err := h.repo.GetClient(c.Param("id"), ownerID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
			return
		}
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toClientResponse(client))
}

func (h *ClientHandler) CreateClient(c *gin.Context) {
	ownerID := middleware.CurrentPsychologistID(c)
	if ownerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, err := clientFromRequest(&req, ownerID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.repo.CreateClient(client); err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	monitoring.RecordMutations.WithLabelValues("client", "created").Inc()
	if h.kafka != nil {
		go h.sendClientEvent("client_created", client)
	}

	c.JSON(http.StatusCreated, toClientResponse(client))
}

func (h *ClientHandler) UpdateClient(c *gin.Context) {
	ownerID := middleware.CurrentPsychologistID(c)
	if ownerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, err := clientFromRequest(&req, ownerID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	client.ID = c.Param("id")

	// The write re-states the ownership predicate; zero affected rows is a
	// failure, never silent success.
	if err := h.repo.UpdateClient(client, ownerID); err != nil {
		if errors.Is(err, models.ErrOwnershipMismatch) {
			c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
			return
		}
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	monitoring.RecordMutations.WithLabelValues("client", "updated").Inc()
	if h.kafka != nil {
		go h.sendClientEvent("client_updated", client)
	}

	updated, err := h.repo.GetClient(client.ID, ownerID)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toClientResponse(updated))
}

// DeleteClient removes the client's sessions first, then the client row.
// The response carries the deleted id so callers can patch their local list
// (drop the row, decrement the count) without re-querying.
func (h *ClientHandler) DeleteClient(c *gin.Context) {
	ownerID := middleware.CurrentPsychologistID(c)
	if ownerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	clientID := c.Param("id")
	if err := h.repo.DeleteClient(clientID, ownerID); err != nil {
		if errors.Is(err, models.ErrOwnershipMismatch) {
			c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
			return
		}
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	monitoring.RecordMutations.WithLabelValues("client", "deleted").Inc()
	if h.kafka != nil {
		go func(id string) {
			event := map[string]interface{}{
				"event":     "client_deleted",
				"client_id": id,
			}
			h.sendRawEvent("client_events", event)
		}(clientID)
	}

	c.JSON(http.StatusOK, gin.H{"deleted_id": clientID})
}

// Вспомогательные методы

func (h *ClientHandler) sendClientEvent(eventType string, client *models.Client) {
	event := map[string]interface{}{
		"event": eventType,
		"data":  client,
	}
	h.sendRawEvent("client_events", event)
}

func (h *ClientHandler) sendRawEvent(topic string, event interface{}) {
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

func toClientResponse(client *models.Client) ClientResponse {
	return ClientResponse{
		ID:        client.ID,
		Name:      client.Name,
		Email:     client.Email,
		Age:       client.Age,
		Gender:    client.Gender,
		Place:     client.Place,
		CreatedAt: client.CreatedAt,
	}
}

// clientFromRequest validates and normalizes form input: the name must be
// non-empty after trimming, blank optionals become absent, and age is
// parsed from text.
func clientFromRequest(req *ClientRequest, ownerID string) (*models.Client, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errors.New("name is required")
	}

	age, err := parseAge(req.Age)
	if err != nil {
		return nil, err
	}

	return &models.Client{
		PsychologistID: ownerID,
		Name:           name,
		Email:          optionalText(req.Email),
		Age:            age,
		Gender:         optionalText(req.Gender),
		Place:          optionalText(req.Place),
	}, nil
}

func optionalText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func parseAge(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	age, err := strconv.Atoi(s)
	if err != nil {
		return nil, errors.New("age must be a number")
	}
	if age < 1 || age > 150 {
		return nil, errors.New("age must be between 1 and 150")
	}
	return &age, nil
}

// parsePage falls back to the first page for absent or malformed values.
func parsePage(s string) int {
	page, err := strconv.Atoi(s)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// totalPages is zero when nothing matched; callers treat that as "no
// pages", not an error.
func totalPages(totalCount int64, pageSize int) int {
	return int(math.Ceil(float64(totalCount) / float64(pageSize)))
}

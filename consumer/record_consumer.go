package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/segmentio/kafka-go"

	"psychologist-records/models"
	"psychologist-records/utils"
)

// RecordEvent is the envelope written by the handlers for every client and
// session mutation.
type RecordEvent struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	ClientID  string          `json:"client_id"`
	SessionID string          `json:"session_id"`
}

// RecordConsumer projects mutation events into the Redis cache and the
// Elasticsearch indices. Projections are conveniences; the relational store
// stays the source of truth and projection failures are logged, not fatal.
type RecordConsumer struct {
	cache    utils.RedisClient
	es       utils.ElasticsearchClient
	reader   *kafka.Reader
	shutdown chan struct{}
}

func NewRecordConsumer(cache utils.RedisClient, es utils.ElasticsearchClient) *RecordConsumer {
	return &RecordConsumer{
		cache: cache,
		es:    es,
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     []string{os.Getenv("KAFKA_BROKER")},
			GroupTopics: []string{"client_events", "session_events"},
			GroupID:     "psychologist-records-group",
			MaxWait:     10 * time.Second,
		}),
		shutdown: make(chan struct{}),
	}
}

func (c *RecordConsumer) Start(ctx context.Context) {
	log.Println("Starting Kafka consumer...")

	go func() {
		for {
			select {
			case <-c.shutdown:
				return
			default:
				c.processMessages(ctx)
			}
		}
	}()
}

func (c *RecordConsumer) Stop() {
	close(c.shutdown)
	if err := c.reader.Close(); err != nil {
		log.Printf("Error closing Kafka reader: %v", err)
	}
}

func (c *RecordConsumer) processMessages(ctx context.Context) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if err == context.Canceled {
			return
		}
		log.Printf("Kafka read error: %v (will retry)", err)
		time.Sleep(5 * time.Second)
		return
	}

	var event RecordEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		log.Printf("Failed to unmarshal Kafka message: %v", err)
		return
	}

	switch event.Event {
	case "client_created", "client_updated":
		c.handleClientUpserted(ctx, event.Data)
	case "client_deleted":
		c.handleClientDeleted(ctx, event.ClientID)
	case "session_created", "session_updated":
		c.handleSessionUpserted(ctx, event.Data)
	case "session_deleted":
		c.handleSessionDeleted(ctx, event.SessionID)
	default:
		log.Printf("Unknown event type: %s", event.Event)
	}
}

func (c *RecordConsumer) handleClientUpserted(ctx context.Context, data json.RawMessage) {
	var client models.Client
	if err := json.Unmarshal(data, &client); err != nil {
		log.Printf("Failed to unmarshal client event data: %v", err)
		return
	}

	cacheKey := fmt.Sprintf("client:%s", client.ID)
	if err := c.cache.SetToCache(ctx, cacheKey, string(data), 24*time.Hour); err != nil {
		log.Printf("Failed to cache client: %v", err)
	}

	if c.es != nil {
		if err := c.es.IndexDocument(ctx, "clients", client.ID, client); err != nil {
			log.Printf("Failed to index client in Elasticsearch: %v", err)
		}
	}

	log.Printf("Projected client event for client ID %s", client.ID)
}

// handleClientDeleted mirrors the cascade: the cached entry, the client
// document and all of the client's session documents go together.
func (c *RecordConsumer) handleClientDeleted(ctx context.Context, clientID string) {
	cacheKey := fmt.Sprintf("client:%s", clientID)
	if err := c.cache.DeleteFromCache(ctx, cacheKey); err != nil {
		log.Printf("Failed to delete client from cache: %v", err)
	}

	if c.es != nil {
		if err := c.es.DeleteDocument(ctx, "clients", clientID); err != nil {
			log.Printf("Failed to delete client from Elasticsearch: %v", err)
		}
		if err := c.es.DeleteByField(ctx, "sessions", "client_id", clientID); err != nil {
			log.Printf("Failed to delete client sessions from Elasticsearch: %v", err)
		}
	}

	log.Printf("Projected client_deleted event for client ID %s", clientID)
}

func (c *RecordConsumer) handleSessionUpserted(ctx context.Context, data json.RawMessage) {
	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		log.Printf("Failed to unmarshal session event data: %v", err)
		return
	}

	if c.es != nil {
		if err := c.es.IndexDocument(ctx, "sessions", session.ID, session); err != nil {
			log.Printf("Failed to index session in Elasticsearch: %v", err)
		}
	}

	log.Printf("Projected session event for session ID %s", session.ID)
}

func (c *RecordConsumer) handleSessionDeleted(ctx context.Context, sessionID string) {
	if c.es != nil {
		if err := c.es.DeleteDocument(ctx, "sessions", sessionID); err != nil {
			log.Printf("Failed to delete session from Elasticsearch: %v", err)
		}
	}

	log.Printf("Projected session_deleted event for session ID %s", sessionID)
}

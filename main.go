package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"psychologist-records/consumer"
	"psychologist-records/handlers"
	"psychologist-records/middleware"
	"psychologist-records/models"
	"psychologist-records/monitoring"
	"psychologist-records/utils"
)

const tokenTTL = 24 * time.Hour

func main() {
	logger := log.New(os.Stdout, "PSYCH-RECORDS: ", log.LstdFlags|log.Lshortfile)

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := utils.InitSentry(dsn); err != nil {
			logger.Printf("Sentry disabled: %v", err)
		}
	}

	monitoring.Init()

	// Пытаемся подключиться к Redis с ретраями
	var redisClient utils.RedisClient
	var err error
	maxRetries := 5
	retryDelay := 3 * time.Second

	for i := 0; i < maxRetries; i++ {
		redisClient, err = utils.NewRedisClient()
		if err == nil {
			break
		}
		logger.Printf("Attempt %d: Failed to connect to Redis: %v", i+1, err)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		logger.Fatalf("Failed to initialize Redis after %d attempts: %v", maxRetries, err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Printf("Error closing Redis connection: %v", err)
		}
	}()

	var repo models.Repository
	if os.Getenv("DB_HOST") != "" {
		repo, err = models.NewPostgresRepository()
		if err != nil {
			logger.Fatalf("Failed to initialize Postgres repository: %v", err)
		}
	} else {
		logger.Println("DB_HOST not set, using in-memory repository (data is not persisted)")
		repo = models.NewMemoryRepository()
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Printf("Error closing repository: %v", err)
		}
	}()

	var kafkaProducer utils.KafkaProducer
	if os.Getenv("KAFKA_BROKER") != "" {
		kafkaProducer, err = utils.NewKafkaProducer()
		if err != nil {
			logger.Printf("Kafka disabled: %v", err)
			kafkaProducer = nil
		} else {
			defer kafkaProducer.Close()
		}
	}

	var esClient utils.ElasticsearchClient
	if os.Getenv("ELASTICSEARCH_URL") != "" {
		esClient, err = utils.NewElasticsearchClient()
		if err != nil {
			logger.Printf("Elasticsearch disabled: %v", err)
			esClient = nil
		}
	}

	tokenStore := utils.NewRedisTokenStore(redisClient, tokenTTL)

	authHandler := handlers.NewAuthHandler(repo, tokenStore)
	clientHandler := handlers.NewClientHandler(repo, kafkaProducer)
	sessionHandler := handlers.NewSessionHandler(repo, kafkaProducer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if kafkaProducer != nil {
		recordConsumer := consumer.NewRecordConsumer(redisClient, esClient)
		recordConsumer.Start(ctx)
		defer recordConsumer.Stop()
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(middleware.SentryMiddleware())
	router.Use(middleware.PrometheusMetrics())
	router.Use(middleware.ErrorHandler())

	router.GET("/metrics", gin.WrapH(monitoring.Handler()))

	api := router.Group("/api/v1")
	{
		api.GET("/health", func(c *gin.Context) {
			healthCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()

			if err := redisClient.SetToCache(healthCtx, "healthcheck", "ping", 10*time.Second); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "degraded",
					"details": gin.H{"redis": "unavailable"},
					"error":   err.Error(),
				})
				return
			}

			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"details": gin.H{"redis": "available"},
			})
		})

		auth := api.Group("/auth")
		{
			auth.POST("/signup", authHandler.SignUp)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", middleware.RequireAuth(tokenStore), authHandler.Logout)
			auth.GET("/me", middleware.RequireAuth(tokenStore), authHandler.Me)
		}

		protected := api.Group("", middleware.RequireAuth(tokenStore))
		{
			protected.GET("/clients", clientHandler.ListClients)
			protected.POST("/clients", clientHandler.CreateClient)
			protected.GET("/clients/:id", clientHandler.GetClient)
			protected.PUT("/clients/:id", clientHandler.UpdateClient)
			protected.DELETE("/clients/:id", clientHandler.DeleteClient)

			protected.GET("/clients/:id/sessions", sessionHandler.ListSessions)
			protected.POST("/clients/:id/sessions", sessionHandler.CreateSession)
			protected.GET("/clients/:id/sessions/:sessionId", sessionHandler.GetSession)
			protected.PUT("/clients/:id/sessions/:sessionId", sessionHandler.UpdateSession)
			protected.DELETE("/clients/:id/sessions/:sessionId", sessionHandler.DeleteSession)
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		logger.Printf("Server is running on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("Server shutdown error: %v", err)
	}
}

package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/ahmedit-11/artfolio-chat/internal/chat"
	"github.com/ahmedit-11/artfolio-chat/internal/db"
	"github.com/ahmedit-11/artfolio-chat/internal/directory"
	"github.com/ahmedit-11/artfolio-chat/internal/handlers"
	"github.com/ahmedit-11/artfolio-chat/internal/middleware"
	"github.com/ahmedit-11/artfolio-chat/internal/observability"
	"github.com/ahmedit-11/artfolio-chat/internal/rabbitmq"
	"github.com/ahmedit-11/artfolio-chat/internal/repositories"
	"github.com/ahmedit-11/artfolio-chat/internal/session"
	"github.com/ahmedit-11/artfolio-chat/internal/stream"
	"github.com/ahmedit-11/artfolio-chat/internal/telemetry"
	"github.com/ahmedit-11/artfolio-chat/internal/ws"
)

const serviceName = "artfolio-chat"

func main() {
	ctx := context.Background()
	environment := getEnv("ENVIRONMENT", "development")

	shutdownTracing, err := telemetry.SetupTracing(ctx, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), serviceName, environment)
	if err != nil {
		log.Printf("tracing disabled: %v", err)
	} else {
		defer func() {
			if err := shutdownTracing(ctx); err != nil {
				log.Printf("tracing shutdown: %v", err)
			}
		}()
	}

	var (
		convRepo   repositories.ConversationRepository
		msgRepo    repositories.MessageRepository
		typingRepo repositories.TypingRepository
	)
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		database, err := db.Connect(dsn)
		if err != nil {
			log.Fatalf("failed to connect to db: %v", err)
		}
		defer database.Close()
		convRepo = repositories.NewConversationRepo(database)
		msgRepo = repositories.NewMessageRepo(database)
		typingRepo = repositories.NewTypingRepo(database)
		log.Println("storage backend: postgres")
	} else {
		mem := repositories.NewMemoryBackend()
		convRepo, msgRepo, typingRepo = mem, mem, mem
		log.Println("storage backend: in-memory (DB_DSN not set)")
	}

	broker := stream.NewBroker()
	defer broker.Close()
	svc := chat.NewService(convRepo, msgRepo, typingRepo, broker)

	platformURL := getEnv("PLATFORM_API_URL", "http://localhost:8000/api")
	authClient := directory.NewAuthClient(platformURL)
	userClient := directory.NewUserClient(platformURL)

	publisher := rabbitmq.NewPublisher(os.Getenv("AMQP_URL"), getEnv("AMQP_EXCHANGE", "artfolio.events"))
	defer publisher.Close()
	observability.SetPublisher(publisher)
	log.Printf("event publisher mode=%s", rabbitmq.PublisherMode(publisher))

	emitter := telemetry.NewNotificationEmitter(publisher, "chat_events.notifications", serviceName, environment)

	hub := ws.NewHub()
	manager := session.NewManager(svc, userClient, hub, emitter)

	chatHandler := handlers.NewChatHandler(svc, manager)
	sessionWS := ws.NewSessionWebSocketHandler(hub, manager, authClient)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(otelgin.Middleware(serviceName))

	authMiddleware := middleware.AuthMiddleware(authClient)

	router.GET("/chat/conversations", authMiddleware, chatHandler.ListConversations)
	router.POST("/chat/conversations/start", authMiddleware, chatHandler.StartChat)
	router.GET("/chat/conversations/:chat_id/messages", authMiddleware, chatHandler.GetMessages)
	router.POST("/chat/conversations/:chat_id/messages", authMiddleware, chatHandler.PostMessage)
	router.POST("/chat/conversations/:chat_id/read", authMiddleware, chatHandler.MarkRead)
	router.POST("/chat/conversations/:chat_id/typing", authMiddleware, chatHandler.SetTyping)
	router.DELETE("/chat/conversations/:chat_id", authMiddleware, chatHandler.DeleteConversation)

	router.GET("/ws/chat", sessionWS.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, emitter, os.Getenv("DEBUG_ROUTES") == "true")

	port := getEnv("PORT", "8083")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

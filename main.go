package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"support-chat-service/internal/db"
	"support-chat-service/internal/directory"
	"support-chat-service/internal/gateway"
	"support-chat-service/internal/handlers"
	"support-chat-service/internal/middleware"
	"support-chat-service/internal/observability"
	"support-chat-service/internal/rabbitmq"
	"support-chat-service/internal/repositories"
	"support-chat-service/internal/telemetry"
	"support-chat-service/internal/ws"
)

func main() {
	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, getEnv("OTLP_GRPC_ADDR", ""), "support-chat-service", getEnv("ENVIRONMENT", "development"))
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	amqpURL := getEnv("AMQP_URL", "")
	exchange := getEnv("AMQP_EXCHANGE", "chat_events")

	if publisher, err := observability.NewAMQPPublisher(amqpURL, exchange); err != nil {
		log.Printf("ws event publishing disabled: %v", err)
	} else {
		observability.SetPublisher(publisher)
		defer publisher.Close()
	}

	auditPublisher := rabbitmq.NewPublisher(amqpURL, exchange)
	defer auditPublisher.Close()
	log.Printf("audit publisher mode=%s", rabbitmq.PublisherMode(auditPublisher))
	auditEmitter := telemetry.NewAuditEmitter(auditPublisher, getEnv("AUDIT_ROUTING_KEY", "audit.chat"), "support-chat-service", getEnv("ENVIRONMENT", "development"))

	accountClient := directory.NewClient(
		getEnv("ACCOUNT_SERVICE_URL", "http://localhost:4000"),
		getEnv("ACCOUNT_SERVICE_TOKEN", ""),
	)

	roomRepo := repositories.NewRoomRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	hub := ws.NewHub()
	gw := gateway.New(roomRepo, messageRepo, hub, storageTimeout())

	roomHandler := handlers.NewRoomHandler(gw, messageRepo)
	sessionWS := ws.NewSessionHandler(hub, gw, accountClient)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("support-chat-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(accountClient)

	router.GET("/rooms/with/:account_id", authMiddleware, roomHandler.RoomWith)
	router.GET("/rooms/:room_id/messages", authMiddleware, roomHandler.GetMessages)
	router.DELETE("/rooms/:room_id/messages/:message_id/me", authMiddleware, roomHandler.DeleteMessageForMe)
	router.DELETE("/rooms/:room_id/messages/:message_id/all", authMiddleware, roomHandler.DeleteMessageForAll)
	router.DELETE("/rooms/:room_id/messages", authMiddleware, roomHandler.ClearRoom)
	router.DELETE("/rooms/:room_id", authMiddleware, roomHandler.PurgeRoom)

	router.GET("/ws", sessionWS.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, auditEmitter, getEnv("DEBUG_ROUTES", "") == "true")

	port := getEnv("PORT", "4000")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func storageTimeout() time.Duration {
	raw := getEnv("STORAGE_TIMEOUT_MS", "")
	if raw == "" {
		return gateway.DefaultStorageTimeout
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		log.Printf("invalid STORAGE_TIMEOUT_MS %q, using default", raw)
		return gateway.DefaultStorageTimeout
	}
	return time.Duration(ms) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

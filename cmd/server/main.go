package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"project-collab-backend/api"
	"project-collab-backend/pkg/clerk"
	"project-collab-backend/pkg/config"
	"project-collab-backend/pkg/database"
	"project-collab-backend/pkg/pubsub"
	"project-collab-backend/pkg/services"
	"project-collab-backend/pkg/storage"
)

func main() {
	cfg := config.GetCached()
	if err := cfg.Validate(); err != nil {
		fmt.Printf("❌ Configuration error: %v\n", err)
		os.Exit(1)
	}

	db := database.GetDatabase(database.DatabaseConfig{
		PostgresDSN: cfg.PostgresDSN,
		UseMemoryDB: cfg.UseMemoryDB,
		Debug:       cfg.Debug,
	})

	bucket, err := storage.NewBucket(storage.BucketConfig{
		Endpoint:      cfg.S3Endpoint,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		BucketName:    cfg.S3Bucket,
		UseSSL:        cfg.S3UseSSL,
		PublicBaseURL: cfg.S3PublicBaseURL,
	})
	if err != nil {
		fmt.Printf("❌ Storage error: %v\n", err)
		os.Exit(1)
	}

	clerkClient := clerk.NewClient(cfg.ClerkAPIURL, cfg.ClerkSecretKey)
	verifier := clerk.NewTokenVerifier(cfg.ClerkJWKSURL, cfg.AuthorizedParties)
	gateway := clerk.NewGateway(verifier, clerkClient)

	broker := pubsub.NewBroker()
	projectService := services.NewProjectService(db, broker)
	conversationService := services.NewConversationService(db, broker)
	userService := services.NewUserService(db)

	if err := services.RegisterSubscriptions(broker, conversationService); err != nil {
		fmt.Printf("❌ Subscription error: %v\n", err)
		os.Exit(1)
	}
	broker.Start()

	router := api.NewRouter(api.Dependencies{
		Config:        cfg,
		DB:            db,
		Bucket:        bucket,
		Authenticator: gateway,
		Projects:      projectService,
		Conversations: conversationService,
		Users:         userService,
		Directory:     clerkClient,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		fmt.Printf("🚀 Server listening on :%s (%s)\n", cfg.Port, cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("❌ Server error: %v\n", err)
			os.Exit(1)
		}
	}()

	// 等待退出信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	fmt.Printf("🛑 Shutting down...\n")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		fmt.Printf("[error] forced shutdown: %v\n", err)
	}

	// 排空在途事件后关闭广播器与数据库
	broker.Close()
	if err := db.Close(); err != nil {
		fmt.Printf("[warn] closing database: %v\n", err)
	}
	fmt.Printf("👋 Bye\n")
}

package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/skillforge/pipeline/internal/api"
	"github.com/skillforge/pipeline/internal/config"
	"github.com/skillforge/pipeline/internal/models"
	"github.com/skillforge/pipeline/internal/queue"
	"github.com/skillforge/pipeline/internal/storage/postgres"
	"github.com/skillforge/pipeline/middleware"
)

func main() {
	log.Println("Starting API...")

	ctx := context.Background()
	cfg, err := config.LoadPipelineFromEnv(ctx)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	db, err := postgres.ConnectDB(ctx, nil)
	if err != nil {
		log.Fatal("Connection failed:", err)
	}

	if err := postgres.MigrateModels(db,
		&models.Job{}, &models.User{}, &models.Course{},
		&models.Enrollment{}, &models.Certificate{}); err != nil {
		log.Fatal("Migration failed:", err)
	}

	jobRepo := postgres.NewJobRepository(db)
	q := queue.NewQueue(jobRepo, cfg.LeaseDuration)
	handler := api.NewPipelineHandler(q)

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	handler.Register(r)

	log.Printf("Listening on %s", cfg.APIAddr)
	if err := r.Run(cfg.APIAddr); err != nil {
		log.Fatal("Server failed:", err)
	}
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/skillforge/pipeline/internal/certificate"
	"github.com/skillforge/pipeline/internal/config"
	"github.com/skillforge/pipeline/internal/models"
	"github.com/skillforge/pipeline/internal/pool"
	"github.com/skillforge/pipeline/internal/queue"
	"github.com/skillforge/pipeline/internal/storage/postgres"
	"github.com/skillforge/pipeline/internal/worker"
)

func main() {
	log.Println("Starting Worker...")

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
	courseRepo := postgres.NewCourseRepository(db)
	q := queue.NewQueue(jobRepo, cfg.LeaseDuration)

	issuer := certificate.NewIssuer(courseRepo, q)

	handlers := worker.Registry{
		config.KindCertificate:  issuer.Handle,
		config.KindEmail:        worker.NewEmailHandler(worker.SimulatedSender{}),
		config.KindNotification: worker.NewNotificationHandler(worker.LogNotifier{}),
		config.KindVideo:        worker.NewTranscodeHandler(),
	}

	workerPool := pool.NewWorkerPool(cfg, q, jobRepo, handlers, worker.LogObserver{})

	workerPool.Start()
	log.Println("Worker pool active. Press Ctrl+C to stop.")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	workerPool.Stop()
	log.Println("Shutdown complete.")
}

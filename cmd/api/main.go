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

	"github.com/example/washops/backend/internal/appstate"
	"github.com/example/washops/backend/internal/backend"
	"github.com/example/washops/backend/internal/config"
	"github.com/example/washops/backend/internal/db"
	httpserver "github.com/example/washops/backend/internal/http"
	"github.com/example/washops/backend/internal/mq"
	"github.com/example/washops/backend/internal/repository"
	"github.com/example/washops/backend/internal/service"
	"github.com/example/washops/backend/internal/worker"
)

func main() {
	cfg := config.Load()

	database, err := db.New(cfg.DatabaseURL, cfg.Development())
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	if err := db.Migrate(database); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}

	var publisher mq.Publisher
	if p, err := mq.NewRabbitPublisher(cfg.MQURL, cfg.MQJobExchange); err != nil {
		log.Printf("warning: rabbitmq unavailable (%v), continuing without events", err)
	} else {
		publisher = p
	}

	sessions := appstate.NewStore(repository.NewSessionRepository(database))
	events := repository.NewJobEventRepository(database)
	client := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout)
	console := service.NewConsoleService(sessions, events, client, publisher, service.Options{
		SearchDebounce: cfg.SearchDebounce,
		AllowCancel:    cfg.JobCancellationEnabled,
		IdleTTL:        cfg.IdleStateTTL,
	})

	var consumer mq.Consumer
	if c, err := mq.NewRabbitConsumer(cfg.MQURL, cfg.MQJobExchange, ""); err != nil {
		log.Printf("warning: job event consumer unavailable (%v), mirrors refresh on demand only", err)
	} else if err := c.Consume(console.HandleDelivery); err != nil {
		log.Printf("warning: consume job events: %v", err)
		_ = c.Close()
	} else {
		consumer = c
	}

	apiServer := httpserver.NewServer(console)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go worker.NewReaper(console, cfg.ReaperInterval).Run(ctx)

	srv := &http.Server{
		Addr:    cfg.HTTPPort,
		Handler: apiServer.Engine,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutdown initiated")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if consumer != nil {
		_ = consumer.Close()
	}
	if publisher != nil {
		if closer, ok := publisher.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}
	log.Println("bye")
}

func init() {
	if mode := os.Getenv("GIN_MODE"); mode == "" {
		gin.SetMode(gin.ReleaseMode)
	}
}

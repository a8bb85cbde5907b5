package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brewqueue/api/internal/broker"
	"github.com/brewqueue/api/internal/config"
	"github.com/brewqueue/api/internal/database"
	"github.com/brewqueue/api/internal/notify"
	"github.com/brewqueue/api/internal/router"
	"github.com/brewqueue/api/internal/service"
	"github.com/brewqueue/api/internal/ws"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	log.Println("Connected to database")

	queries := database.New(pool)

	g, gctx := errgroup.WithContext(ctx)

	hub := ws.NewHub()
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	var pub service.Publisher = hub
	if cfg.AMQPURL != "" {
		events, err := broker.Dial(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatalf("Unable to connect to broker: %v", err)
		}
		g.Go(func() error { return events.Run(gctx) })
		pub = service.Publishers{hub, events}
		log.Printf("Publishing queue events to exchange %s", cfg.AMQPExchange)
	}

	var sender notify.Sender = notify.LogSender{}
	switch {
	case cfg.FCMCredentialsFile != "":
		fcm, err := notify.NewFCMSender(ctx, cfg.FCMCredentialsFile)
		if err != nil {
			log.Fatalf("Unable to initialize FCM: %v", err)
		}
		sender = fcm
		log.Println("Sending pickup notifications through FCM")
	case cfg.PushEndpoint != "":
		sender = notify.NewPushSender(cfg.PushEndpoint, cfg.PushServerKey)
	default:
		log.Println("WARN: neither FCM_CREDENTIALS_FILE nor PUSH_ENDPOINT set, notifications are only logged")
	}

	queueSvc := service.NewQueueService(
		pool,
		func(db database.DBTX) service.QueueStore { return database.New(db) },
		service.QueueOptions{
			Location:         cfg.Location,
			Hours:            cfg.Hours,
			Format:           cfg.NumberFormat,
			RegenerateNumber: cfg.RegenerateNumber,
			AllowRegression:  cfg.AllowRegression,
			RequireScanMatch: cfg.RequireScanMatch,
		},
		pub,
	)
	sweeper := service.NewSweeper(
		queries,
		pool,
		func(db database.DBTX) service.SweepStore { return database.New(db) },
		sender,
		pub,
		cfg.Policy,
	)
	g.Go(func() error {
		sweeper.Start(gctx, cfg.SweepInterval)
		return nil
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router.New(cfg, queries, queueSvc, sweeper, hub),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		log.Printf("Starting server on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("ERROR: %v", err)
	}
	log.Println("Server stopped")
}

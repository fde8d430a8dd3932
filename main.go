package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"golang.org/x/sync/errgroup"

	"report-case-service/blacklist"
	"report-case-service/commands"
	"report-case-service/common"
	"report-case-service/config"
	"report-case-service/database"
	"report-case-service/gateway"
	"report-case-service/handlers"
	"report-case-service/intake"
	"report-case-service/metrics"
	"report-case-service/rabbitmq"
	"report-case-service/resolution"
	"report-case-service/settings"
	"report-case-service/version"
)

func main() {
	// Load configuration
	cfg := config.Load()
	common.SetupLogging(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	metrics.Register()

	info := version.Get()
	log.WithFields(log.Fields{"version": info.Version, "sha": info.GitSHA}).Info("Starting report case service")

	// Create database connection
	conn, err := common.DBConnect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	db := database.NewDatabase(conn)
	defer db.Close()

	if err := db.EnsureSchema(context.Background(), cfg.FirstCaseID); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	store := settings.NewStore(db, cfg.DefaultAckMessage)
	if err := store.Load(context.Background()); err != nil {
		log.Fatalf("Failed to load report settings: %v", err)
	}

	// Initialize RabbitMQ publisher for case events
	var publisher *rabbitmq.Publisher
	var events *rabbitmq.CaseEvents
	if p, err := rabbitmq.NewPublisher(cfg.GetAMQPURL(), cfg.RabbitMQExchange); err != nil {
		log.Warnf("Failed to initialize RabbitMQ publisher, continuing without case events: %v", err)
	} else {
		publisher = p
		events = rabbitmq.NewCaseEvents(publisher)
		log.WithField("exchange", cfg.RabbitMQExchange).Info("RabbitMQ publisher initialized")
	}

	discord, err := gateway.NewDiscord(cfg.DiscordToken)
	if err != nil {
		log.Fatalf("Failed to create Discord session: %v", err)
	}

	reports := intake.NewService(db, blacklist.NewGuard(store), store, discord, events)
	workflow := resolution.NewWorkflow(db, store, discord, events, resolution.Options{
		TeamName:      cfg.TeamName,
		ReplyTimeout:  cfg.ReplyTimeout,
		SweepInterval: cfg.SweepInterval,
	})
	router := commands.NewRouter(cfg.CommandPrefix, discord, reports, workflow, store, db, cfg)
	discord.OnMessage(router.HandleMessage)
	discord.OnReaction(workflow.HandleReaction)

	h := handlers.NewHandlers(reports, workflow, store, db, db, discord, db)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handlers.NewRouter(h, cfg.InternalAdminToken),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return discord.Run(gctx)
	})
	g.Go(func() error {
		return workflow.Run(gctx)
	})
	g.Go(func() error {
		log.Infof("Starting HTTP server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Errorf("Service stopped with error: %v", err)
	}

	// Close RabbitMQ publisher if it was initialized
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Warnf("Failed to close RabbitMQ publisher: %v", err)
		}
	}

	log.Info("Server exited")
}

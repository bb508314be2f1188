package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"inboxpilot/config"
	"inboxpilot/internal/ai"
	"inboxpilot/internal/classifier"
	"inboxpilot/internal/connector"
	"inboxpilot/internal/draft"
	"inboxpilot/internal/events"
	"inboxpilot/internal/mqhandler"
	"inboxpilot/internal/repository"
	"inboxpilot/internal/syncer"
	"inboxpilot/pkg/db"
	"inboxpilot/pkg/logger"
	"inboxpilot/pkg/mq"
	"inboxpilot/pkg/redis"
	"inboxpilot/pkg/util"
)

func main() {
	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting sync worker...")

	// Redis
	rdb := redis.NewClient(cfg.Redis)
	defer rdb.Close()

	precheck := util.NewDeduper(rdb, time.Hour, log)
	syncLock := util.NewSyncLock(rdb, 10*time.Minute, log)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB connection failed", zap.Error(err))
	}
	defer dbConn.Close()

	log.Info("DB ready")

	// MQ publisher for downstream events
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("MQ publisher init failed", zap.Error(err))
	}
	defer publisher.Close()

	// repositories
	userRepo := repository.NewUserRepository(dbConn)
	mailboxRepo := repository.NewMailboxRepository(dbConn)
	emailRepo := repository.NewEmailRepository(dbConn)
	taskRepo := repository.NewTaskRepository(dbConn)
	draftRepo := repository.NewDraftRepository(dbConn)
	oauthRepo := repository.NewOAuthConnectionRepository(dbConn)
	voiceRepo := repository.NewVoiceProfileRepository(dbConn)
	activityRepo := repository.NewActivityLogRepository(dbConn)
	autoDraftRepo := repository.NewAutoDraftSettingRepository(dbConn)
	aiSettingsRepo := repository.NewAISettingsRepository(dbConn)

	// connectors
	unwrapper, err := connector.NewUnwrapper(cfg.Credentials)
	if err != nil {
		log.Fatal("credential unwrapper init failed", zap.Error(err))
	}
	imapConn := connector.NewIMAPConnector(cfg.Sync.BatchSize, unwrapper, log)
	gmailConn := connector.NewGmailConnector(
		cfg.OAuth.GoogleClientID, cfg.OAuth.GoogleClientSecret,
		oauthRepo, oauthRepo, cfg.Sync.BatchSize, log,
	)
	factory := connector.NewFactory(imapConn, gmailConn)

	// AI pipeline
	resolver := ai.NewResolver(aiSettingsRepo, cfg.AI)
	aiClient := ai.NewClient(resolver, log)
	engine := classifier.NewEngine(aiClient, log)
	draftPolicy := draft.NewPolicy(autoDraftRepo, draftRepo, voiceRepo, aiClient, log)

	orchestrator := syncer.NewOrchestrator(
		factory, emailRepo, taskRepo, mailboxRepo, userRepo,
		activityRepo, engine, draftPolicy, publisher, syncLock, precheck, log,
	)

	handler := mqhandler.NewSyncRequestedHandler(orchestrator, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// -------------------------
	// Sync Requested Consumer
	// -------------------------
	log.Info("Init consumer: sync.requested.q")
	consumer, err := mq.NewConsumer(cfg.MQ.URL, "sync.requested.q", events.SyncRequested, log)
	if err != nil {
		log.Fatal("Sync consumer init failed", zap.Error(err))
	}
	consumer.SetHandler(handler.HandleSyncRequested)
	defer consumer.Close()

	go func() {
		if err := consumer.StartConsuming(ctx); err != nil {
			log.Fatal("Sync consumer crashed", zap.Error(err))
		}
	}()

	log.Info("Worker running")
	<-ctx.Done()
	log.Info("Shutting down sync worker")
}

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
	"inboxpilot/internal/api"
	"inboxpilot/internal/classifier"
	"inboxpilot/internal/connector"
	"inboxpilot/internal/draft"
	"inboxpilot/internal/httpserver"
	"inboxpilot/internal/repository"
	"inboxpilot/internal/syncer"
	"inboxpilot/pkg/db"
	"inboxpilot/pkg/logger"
	"inboxpilot/pkg/mq"
	"inboxpilot/pkg/redis"
	"inboxpilot/pkg/util"
)

func main() {
	// 1. Load config
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting sync server...")

	// 2. Init DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// 3. Redis
	rdb := redis.NewClient(cfg.Redis)
	defer rdb.Close()

	precheck := util.NewDeduper(rdb, time.Hour, log)
	syncLock := util.NewSyncLock(rdb, 10*time.Minute, log)

	// 4. RabbitMQ publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("MQ publisher init failed", zap.Error(err))
	}
	defer publisher.Close()

	// 5. Repositories
	userRepo := repository.NewUserRepository(dbConn)
	mailboxRepo := repository.NewMailboxRepository(dbConn)
	emailRepo := repository.NewEmailRepository(dbConn)
	taskRepo := repository.NewTaskRepository(dbConn)
	draftRepo := repository.NewDraftRepository(dbConn)
	oauthRepo := repository.NewOAuthConnectionRepository(dbConn)
	voiceRepo := repository.NewVoiceProfileRepository(dbConn)
	activityRepo := repository.NewActivityLogRepository(dbConn)
	syncSettingRepo := repository.NewSyncSettingRepository(dbConn)
	autoDraftRepo := repository.NewAutoDraftSettingRepository(dbConn)
	aiSettingsRepo := repository.NewAISettingsRepository(dbConn)

	// 6. Connectors
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

	// 7. AI pipeline
	resolver := ai.NewResolver(aiSettingsRepo, cfg.AI)
	aiClient := ai.NewClient(resolver, log)
	engine := classifier.NewEngine(aiClient, log)
	draftPolicy := draft.NewPolicy(autoDraftRepo, draftRepo, voiceRepo, aiClient, log)

	// 8. Orchestrator + scheduler
	orchestrator := syncer.NewOrchestrator(
		factory, emailRepo, taskRepo, mailboxRepo, userRepo,
		activityRepo, engine, draftPolicy, publisher, syncLock, precheck, log,
	)

	tick := time.Duration(cfg.Sync.TickSeconds) * time.Second
	scheduler := syncer.NewScheduler(syncSettingRepo, orchestrator, tick, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go scheduler.Start(ctx)

	// 9. HTTP surface
	syncHandler := api.NewSyncHandler(orchestrator, mailboxRepo, userRepo)
	router := httpserver.NewRouter(syncHandler, cfg.JWT.Secret, dbConn)

	go func() {
		if err := router.Run(cfg.Server.Port); err != nil {
			log.Fatal("server start failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down sync server")
}

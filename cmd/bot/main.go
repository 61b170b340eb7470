package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/digkill/NumberHoldBot/internal/admin"
	"github.com/digkill/NumberHoldBot/internal/config"
	"github.com/digkill/NumberHoldBot/internal/database"
	"github.com/digkill/NumberHoldBot/internal/repository"
	"github.com/digkill/NumberHoldBot/internal/service"
	"github.com/digkill/NumberHoldBot/internal/storage"
	"github.com/digkill/NumberHoldBot/internal/telegram"
	"github.com/digkill/NumberHoldBot/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("telegram bot: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	tariffRepo := repository.NewTariffRepository(db)
	numberRepo := repository.NewNumberRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	settingsService := service.NewSettingsService(settingsRepo)
	scheduleService := service.NewSchedule(settingsService, cfg.NightStartHour, cfg.NightEndHour)
	tariffService := service.NewTariffService(tariffRepo)
	durationService := service.NewDurationService(tariffRepo)
	ledgerService := service.NewLedgerService(ledgerRepo, settingsService)
	referralService := service.NewReferralService(referralRepo, settingsService)
	userService := service.NewUserService(userRepo, referralService, cfg.OwnerIDs)
	queueService := service.NewQueueService(numberRepo, settingsService)
	numberService := service.NewNumberService(numberRepo, userRepo, tariffRepo, durationService, referralService, scheduleService)

	if err := tariffService.EnsureDefaults(ctx); err != nil {
		log.Fatalf("ensure default tariffs: %v", err)
	}

	var reports admin.ReportStorage
	if cfg.ReportStorageEnabled() {
		uploader, err := storage.NewUploader(storage.Config{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			Bucket:       cfg.S3Bucket,
			UsePathStyle: cfg.S3UsePathStyle,
			Prefix:       cfg.S3Prefix,
		})
		if err != nil {
			log.Fatalf("report storage: %v", err)
		}
		reports = uploader
	}

	bot := telegram.NewBot(cfg, botAPI, logr, userService, numberService, queueService, tariffService, ledgerService, referralService, durationService, settingsService)

	adminServer := admin.NewServer(cfg.AdminListenAddr, cfg.AdminUsername, cfg.AdminPassword, logr, userService, tariffService, durationService, settingsService, ledgerService, numberService, referralService, reports, botAPI)
	go func() {
		if err := adminServer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logr.Error("admin server stopped", "err", err)
		}
	}()

	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("bot stopped", "err", err)
	}
}

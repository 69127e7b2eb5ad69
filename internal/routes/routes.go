package routes

import (
	"context"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/config"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/handlers"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/jobs"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/middleware"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/payment"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/repository"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/scheduler"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/services"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/transcription"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/video"
	notifyws "github.com/Mohamed-Adel17/CareerRouteBack/internal/websocket"
)

// RegisterRoutes wires repositories, providers, services and background
// workers onto the app. The returned stop function shuts the workers down.
func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool, logger zerolog.Logger) func() {
	userRepo := repository.NewUserRepository(db)
	mentorProfileRepo := repository.NewMentorProfileRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	slotRepo := repository.NewTimeSlotRepository(db)
	recordRepo := repository.NewRecordRepository(db)
	balanceRepo := repository.NewBalanceRepository(db)
	disputeRepo := repository.NewDisputeRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	providers := payment.NewRegistry(
		payment.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret, logger),
		payment.NewMidtransProvider(cfg.MidtransServerKey, cfg.MidtransProduction, cfg.UnsignedCallbacksAllowed(), logger),
	)

	videoClient := video.NewClient(video.Config{
		AccountID:      cfg.ZoomAccountID,
		ClientID:       cfg.ZoomClientID,
		ClientSecret:   cfg.ZoomClientSecret,
		BaseURL:        cfg.ZoomBaseURL,
		OAuthURL:       cfg.ZoomOAuthURL,
		RetryBaseDelay: cfg.ZoomRetryBaseDelay,
	}, logger)
	transcriptionClient := transcription.NewClient(cfg.DeepgramAPIKey, "", logger)

	var storageService services.StorageService
	if cfg.StorageURL != "" && cfg.StorageBucket != "" && cfg.StorageServiceKey != "" {
		storageService = services.NewSupabaseStorageService(cfg.StorageURL, cfg.StorageBucket, cfg.StorageServiceKey)
	}

	hub := notifyws.NewHub(logger)
	go hub.Run()

	notificationService := services.NewNotificationService(notificationRepo, hub, logger)

	runner := jobs.NewRunner(4, logger)

	reminderSched := scheduler.NewReminderScheduler(runner, notificationService, cfg.ReminderLeadTime, logger)
	runner.Register(scheduler.JobSessionReminder, reminderSched.HandleReminderJob)

	bookingService := services.NewBookingService(
		db, cfg, providers,
		userRepo, mentorProfileRepo, sessionRepo, paymentRepo, slotRepo,
		logger,
	)
	lifecycleService := services.NewLifecycleService(
		db, cfg, providers,
		sessionRepo, paymentRepo, slotRepo, recordRepo, balanceRepo, disputeRepo,
		videoClient, runner, reminderSched, notificationService, logger,
	)
	balanceService := services.NewBalanceService(db, balanceRepo, paymentRepo, notificationService, logger)

	sweeper := scheduler.NewTranscriptSweeper(
		sessionRepo, transcriptionClient, storageService, videoClient, runner,
		cfg.TranscriptSweepInterval, cfg.TranscriptAttemptCeiling(), logger,
	)
	runner.Register(services.JobTranscribeSession, sweeper.HandleTranscribeJob)
	runner.Register(scheduler.JobTranscriptReady, transcriptReadyHandler(notificationService))

	balanceSweeper := scheduler.NewBalanceSweeper(balanceService, cfg.BalanceSweepInterval, logger)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	go sweeper.Run(workerCtx)
	go balanceSweeper.Run(workerCtx)

	authHandler := handlers.NewAuthHandler(db, userRepo, mentorProfileRepo, cfg.JWTSecret)
	sessionHandler := handlers.NewSessionHandler(bookingService, lifecycleService)
	payoutHandler := handlers.NewPayoutHandler(balanceService)
	webhookHandler := handlers.NewWebhookHandler(lifecycleService, logger)
	notificationHandler := handlers.NewNotificationHandler(notificationService, hub, cfg.JWTSecret)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	webhooks := api.Group("/webhooks")
	webhooks.Post("/payments/:provider", webhookHandler.PaymentCallback)
	webhooks.Post("/video/recordings", webhookHandler.RecordingCompleted)

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	mentors := authProtected.Group("/mentors")
	mentors.Post("/onboarding", authHandler.MentorOnboarding)
	mentors.Post("/slots", sessionHandler.CreateSlot)
	mentors.Get("/:mentorId/slots", sessionHandler.ListSlots)

	sessions := authProtected.Group("/sessions")
	sessions.Post("/book", sessionHandler.BookSession)
	sessions.Get("", sessionHandler.ListSessions)
	sessions.Get("/:id", sessionHandler.GetSession)
	sessions.Post("/:id/start", sessionHandler.StartSession)
	sessions.Post("/:id/complete", sessionHandler.CompleteSession)
	sessions.Post("/:id/cancel", sessionHandler.CancelSession)
	sessions.Post("/:id/reschedule", sessionHandler.RescheduleSession)
	sessions.Post("/:id/dispute", sessionHandler.OpenDispute)
	sessions.Put("/:id/dispute", sessionHandler.ResolveDispute)

	payouts := authProtected.Group("/payouts")
	payouts.Get("/balance", payoutHandler.GetBalance)
	payouts.Post("", payoutHandler.RequestPayout)
	payouts.Put("/:id/status", payoutHandler.AdvancePayout)

	notifications := authProtected.Group("/notifications")
	notifications.Get("", notificationHandler.ListNotifications)
	notifications.Put("/:id/read", notificationHandler.MarkRead)

	api.Use("/v1/ws", notificationHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(notificationHandler.HandleWebSocket))

	return func() {
		stopWorkers()
		runner.Stop()
	}
}

func transcriptReadyHandler(notifier services.Notifier) jobs.HandlerFunc {
	return func(ctx context.Context, payload []byte) error {
		body, err := scheduler.DecodeTranscriptReady(payload)
		if err != nil {
			return err
		}
		notifier.Notify(ctx, body.MenteeID, "transcript_ready", "Transcript ready",
			"The transcript of your session is available.", nil)
		notifier.Notify(ctx, body.MentorID, "transcript_ready", "Transcript ready",
			"The transcript of your session is available.", nil)
		return nil
	}
}

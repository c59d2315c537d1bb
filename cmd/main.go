package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leaguehub/roster-service/cache"
	"github.com/leaguehub/roster-service/config"
	"github.com/leaguehub/roster-service/db"
	"github.com/leaguehub/roster-service/handlers"
	"github.com/leaguehub/roster-service/metrics"
	"github.com/leaguehub/roster-service/models"
	"github.com/leaguehub/roster-service/notify"
	"github.com/leaguehub/roster-service/repositories"
	api "github.com/leaguehub/roster-service/routes"
	"github.com/leaguehub/roster-service/services"
	"github.com/leaguehub/roster-service/storage"
)

const cacheSweepInterval = time.Minute // How often expired in-memory cache entries are dropped

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second, db.DefaultPool)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	if cfg.MigrateOnStart {
		if err := db.Migrate(dbConn); err != nil {
			logger.Error("failed to apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("database migrations applied")
	}

	clock := clockwork.NewRealClock()
	m := metrics.New("roster", prometheus.DefaultRegisterer)

	// Кэш поиска игроков: redis, если настроен, иначе в памяти процесса
	var searchStore cache.Store
	if cfg.Redis.Enabled() {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer client.Close()
		searchStore = cache.NewRedisStore(client, "roster:")
		logger.Info("redis cache store initialized", slog.String("addr", cfg.Redis.Addr))
	} else {
		memStore := cache.NewMemoryStore(clock)
		searchStore = memStore
		go func() {
			ticker := clock.NewTicker(cacheSweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.Chan():
					if n := memStore.Sweep(); n > 0 {
						logger.Debug("cache sweep", slog.Int("evicted", n))
					}
				}
			}
		}()
		logger.Info("in-memory cache store initialized")
	}

	// Архив опубликованных сборных тура (Cloudflare R2), если настроен
	var (
		archiver services.LineupArchiver
		uploader storage.FileUploader
	)
	r2cfg := storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2.AccountID,
		AccessKeyID:     cfg.R2.AccessKeyID,
		SecretAccessKey: cfg.R2.SecretAccessKey,
		BucketName:      cfg.R2.BucketName,
		PublicBaseURL:   cfg.R2.PublicBaseURL,
	}
	if r2cfg.Enabled() {
		r2Uploader, err := storage.NewCloudflareR2Uploader(ctx, r2cfg)
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		uploader = r2Uploader
		archiver = storage.NewDreamTeamArchiver(uploader)
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Info("dream team archiving disabled")
	}

	// Инициализация WebSocket Hub
	wsHub := notify.NewHub(logger)
	go wsHub.Run(ctx)
	logger.Info("WebSocket Hub started")

	// Инициализация репозиториев
	requestRepo := repositories.NewPostgresMembershipRequestRepository(dbConn)
	membershipRepo := repositories.NewPostgresMembershipRepository(dbConn)
	leaveRepo := repositories.NewPostgresLeaveRequestRepository(dbConn)
	categoryRepo := repositories.NewPostgresCategoryEditionRepository(dbConn)
	dreamTeamRepo := repositories.NewPostgresDreamTeamRepository(dbConn)
	playerRepo := repositories.NewPostgresPlayerRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	txManager := db.NewTxManager(dbConn)
	logger.Info("Repositories initialized")

	// Инициализация сервисов
	rosterService := services.NewRosterService(txManager, membershipRepo, teamRepo, wsHub, m, clock, logger)
	if uploader != nil {
		rosterService.WithLogoURLs(uploader.GetPublicURL)
	}
	requestService := services.NewMembershipRequestService(
		txManager,
		requestRepo,
		membershipRepo,
		categoryRepo,
		leaveRepo,
		rosterService,
		wsHub,
		m,
		clock,
		logger,
	)
	leaveService := services.NewLeaveRequestService(txManager, leaveRepo, membershipRepo, wsHub, m, clock, logger)
	dreamTeamService := services.NewDreamTeamService(
		txManager,
		dreamTeamRepo,
		playerRepo,
		models.DefaultFormationTable(),
		archiver,
		wsHub,
		m,
		clock,
		logger,
	)
	searchCache := cache.NewReadThrough[[]models.Player]("player_search", searchStore, cfg.SearchCacheTTL, m, logger)
	searchService := services.NewPlayerSearchService(playerRepo, searchCache)
	logger.Info("Services initialized")

	// Инициализация обработчиков HTTP
	requestHandler := handlers.NewMembershipRequestHandler(requestService)
	rosterHandler := handlers.NewRosterHandler(rosterService, leaveService)
	dreamTeamHandler := handlers.NewDreamTeamHandler(dreamTeamService, searchService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, cfg.AllowedOrigins, logger)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		api.Options{
			JWTSecret:      []byte(cfg.JWTSecretKey),
			AllowedOrigins: cfg.AllowedOrigins,
			Metrics:        m,
			MetricsHandler: promhttp.Handler(),
			Logger:         logger,
		},
		requestHandler,
		rosterHandler,
		dreamTeamHandler,
		webSocketHandler,
	)
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			stop()
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
		} else {
			logger.Info("server shutdown complete")
		}
	}

	// Останавливаем hub и фоновые задачи
	stop()
	logger.Info("application exited")
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/yourusername/exam-portal-api/internal/config"
	"github.com/yourusername/exam-portal-api/internal/handler"
	"github.com/yourusername/exam-portal-api/internal/middleware"
	pgRepo "github.com/yourusername/exam-portal-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/exam-portal-api/internal/repository/redis"
	"github.com/yourusername/exam-portal-api/internal/service"
	"github.com/yourusername/exam-portal-api/internal/service/examaccess"
	ws "github.com/yourusername/exam-portal-api/internal/websocket"
	"github.com/yourusername/exam-portal-api/pkg/auth"
	"github.com/yourusername/exam-portal-api/pkg/database"
)

func main() {
	// .env необязателен: в контейнере переменные задаются окружением
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: failed to read .env: %v", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}
	isProduction := gin.Mode() == gin.ReleaseMode

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), !isProduction)
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}
	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Репозитории
	examRepo := pgRepo.NewExamRepo(db)
	credentialRepo := pgRepo.NewCredentialRepo(db)
	userRepo := pgRepo.NewUserRepo(db)
	assignmentRepo := pgRepo.NewAssignmentRepo(db)
	sessionRepo := pgRepo.NewSessionRepo(db)
	attemptRepo := pgRepo.NewAttemptRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpirationHrs, cfg.JWT.WSTicketExpirySec)
	if err != nil {
		log.Printf("Failed to initialize JWTService: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// WebSocket: комната = ключ запуска экзамена
	wsHub := ws.NewHub()
	go wsHub.Run()
	wsManager := ws.NewManager(wsHub)

	accessConfig := cfg.Exam.AccessConfig()
	accessLogger := examaccess.NewAccessLogger(accessConfig.AccessLogCapacity)
	timers := service.NewTimerRegistry(accessConfig.TimerTick, wsManager)

	// Хуки завершения экзамена
	var emailService service.EmailService = &service.NoopEmailService{}
	if cfg.Email.ResendAPIKey != "" {
		resendService, err := service.NewResendEmailService(cfg.Email.ResendAPIKey, cfg.Email.From)
		if err != nil {
			log.Printf("Failed to initialize Resend: %v", err)
			os.Exit(1)
		}
		emailService = resendService
	}

	var reportGenerator service.ReportGenerator
	geminiGenerator, err := service.NewGeminiReportGenerator(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		log.Printf("Warning: Gemini reports disabled: %v", err)
	} else if geminiGenerator != nil {
		reportGenerator = geminiGenerator
		defer geminiGenerator.Close()
	}
	reportService := service.NewReportService(attemptRepo, examRepo, reportGenerator)

	// Сервисы
	credentialService := service.NewCredentialService(credentialRepo, examRepo, userRepo, jwtService, accessLogger, accessConfig)
	accessService := service.NewAccessService(sessionRepo, assignmentRepo, examRepo, userRepo, accessLogger, accessConfig)
	progressService := service.NewProgressService(cacheRepo, accessConfig)
	submissionService := service.NewSubmissionService(
		attemptRepo, cacheRepo, progressService, timers, wsManager, accessLogger, accessConfig,
		service.NewCompletionNotifier(emailService),
		reportService,
	)
	examService := service.NewExamService(
		accessService, credentialService, progressService, submissionService,
		timers, examRepo, cacheRepo, accessLogger, accessConfig,
	)
	exportService := service.NewExportService(attemptRepo)

	// Обработчики
	accessHandler := handler.NewAccessHandler(credentialService, accessService, jwtService)
	examHandler := handler.NewExamHandler(examService, jwtService)
	wsHandler := handler.NewWSHandler(wsHub, wsManager, examService, timers, jwtService, cfg.Server.AllowedOrigins)
	adminHandler := handler.NewAdminHandler(exportService, reportService, accessLogger, wsManager)

	authMiddleware := middleware.NewAuthMiddleware(jwtService, cfg.Admin.APIKey)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	router := gin.Default()

	// В production не доверяем прокси-заголовкам (защита от IP spoofing)
	trustedProxies := []string{"127.0.0.1", "::1"}
	if isProduction {
		trustedProxies = nil
	}
	if err := router.SetTrustedProxies(trustedProxies); err != nil {
		log.Printf("Warning: failed to set trusted proxies: %v", err)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := router.Group("/api")
	{
		access := api.Group("/access")
		access.Use(rateLimiter.LimitByIP(middleware.AccessRateLimitConfig()))
		{
			access.POST("/login", rateLimiter.Limit(middleware.LoginRateLimitConfig(cfg.Exam.LoginRateLimit)), accessHandler.Login)
			access.POST("/resolve", authMiddleware.OptionalExamToken(), accessHandler.Resolve)
			access.GET("/time", accessHandler.ServerTime)
		}

		exams := api.Group("/exams/:id")
		exams.Use(authMiddleware.RequireExamToken(), middleware.ExtractUintParam("id", "examID"))
		{
			exams.POST("/start", examHandler.Start)
			exams.GET("/timer", examHandler.Timer)
			exams.PUT("/progress", examHandler.SaveProgress)
			exams.GET("/progress", examHandler.GetProgress)
			exams.DELETE("/progress", examHandler.DiscardProgress)
			exams.POST("/submit", examHandler.Submit)
			exams.POST("/ws-ticket", examHandler.WSTicket)
		}

		admin := api.Group("/admin")
		admin.Use(authMiddleware.AdminOnly())
		{
			admin.GET("/attempts/export", adminHandler.ExportAttempts)
			admin.GET("/access-log", adminHandler.AccessLog)
			admin.GET("/ws-metrics", adminHandler.WSMetrics)
			admin.POST("/attempts/:id/report", middleware.ExtractUintParam("id", "attemptID"), adminHandler.GenerateReport)
		}
	}

	router.GET("/ws", wsHandler.HandleConnection)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	if err := wsManager.BroadcastEvent("SERVER_SHUTDOWN", gin.H{"message": "server is restarting"}); err != nil {
		log.Printf("Error broadcasting shutdown: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Таймеры останавливаются без автосдачи: прогресс и запуск остаются в Redis
	timers.StopAll()
	submissionService.Wait()
	cancel()
	wsHub.Close()

	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing Redis: %v", err)
	}

	log.Println("Server exited properly")
}

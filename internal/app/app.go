package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_backend/internal/access"
	"github.com/Freeeeeet/tutor_backend/internal/calendar"
	"github.com/Freeeeeet/tutor_backend/internal/config"
	"github.com/Freeeeeet/tutor_backend/internal/controller/httpapi"
	"github.com/Freeeeeet/tutor_backend/internal/notify"
	"github.com/Freeeeeet/tutor_backend/internal/otp"
	"github.com/Freeeeeet/tutor_backend/internal/repository"
	"github.com/Freeeeeet/tutor_backend/internal/service"
)

const (
	notifyTimeout   = 10 * time.Second
	otpSweepEvery   = time.Minute
	shutdownTimeout = 15 * time.Second
)

// App собранный сервис: пул, фоновые задачи и HTTP сервер
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	pool      *pgxpool.Pool
	redis     *redis.Client
	notifier  *notify.Async
	scheduler *Scheduler
	server    *http.Server
	otpMemory *otp.MemoryStore
}

// New подключается к базе, применяет миграции и собирает зависимости
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("Connected to database")

	a := &App{cfg: cfg, logger: logger, pool: pool}

	if err := a.migrate(ctx); err != nil {
		a.closeStorage()
		return nil, err
	}

	codes, err := a.otpStore(ctx)
	if err != nil {
		a.closeStorage()
		return nil, err
	}

	sender, err := a.baseNotifier()
	if err != nil {
		a.closeStorage()
		return nil, err
	}
	a.notifier = notify.NewAsync(sender, notifyTimeout, logger)

	lessonRepo := repository.NewLessonRepository(pool)
	historyRepo := repository.NewHistoryRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)
	teacherRepo := repository.NewTeacherRepository(pool)
	studentRepo := repository.NewStudentRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)

	hasher := access.NewPasswordHasher(0)
	adminTokens := access.NewTokenIssuer(cfg.AdminTokenKey, access.ScopeAdmin, cfg.AccessTokenTTL)
	teacherTokens := access.NewTokenIssuer(cfg.TeacherTokenKey, access.ScopeTeacher, cfg.AccessTokenTTL)
	verifier := access.NewCombinedVerifier(
		access.NewJWTVerifier(cfg.AdminTokenKey, access.ScopeAdmin),
		access.NewJWTVerifier(cfg.TeacherTokenKey, access.ScopeTeacher),
	)

	lessons := service.NewLessonService(
		lessonRepo,
		teacherRepo,
		studentRepo,
		calendar.NewTeacherFlag(teacherRepo),
		calendar.NewRoomLinks(cfg.MeetingBaseURL),
		a.notifier,
		logger.Named("lessons"),
	)
	histories := service.NewHistoryService(historyRepo, lessonRepo, logger.Named("histories"))

	h := httpapi.NewHandler(httpapi.Services{
		Lessons:   lessons,
		Payments:  service.NewPaymentService(paymentRepo, lessonRepo, cfg.PlatformCommissionPct, logger.Named("payments")),
		Histories: histories,
		Teachers:  service.NewTeacherService(teacherRepo, logger.Named("teachers")),
		Admins:    service.NewAdminService(adminRepo, hasher, logger.Named("admins")),
		Auth: service.NewAuthService(
			adminRepo,
			teacherRepo,
			codes,
			a.notifier,
			hasher,
			adminTokens,
			teacherTokens,
			cfg.OTPTTL,
			logger.Named("auth"),
		),
	}, logger.Named("http"))

	a.scheduler = NewScheduler(histories, cfg.HistorySweepInterval, logger.Named("scheduler"))
	a.server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(h, verifier, pool, logger.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// Run обслуживает запросы до отмены ctx, затем останавливается
func (a *App) Run(ctx context.Context) error {
	defer a.closeStorage()

	if a.otpMemory != nil {
		go a.otpMemory.Run(ctx, otpSweepEvery)
	}

	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening", zap.String("addr", a.cfg.HTTPAddr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutdown requested")
	case serveErr = <-errCh:
		if serveErr != nil {
			a.logger.Error("HTTP server failed", zap.Error(serveErr))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("HTTP server shutdown", zap.Error(err))
	}
	a.scheduler.Stop(shutdownCtx)
	a.notifier.Wait()

	a.logger.Info("Stopped")
	if serveErr != nil {
		return fmt.Errorf("serve http: %w", serveErr)
	}
	return nil
}

func (a *App) migrate(ctx context.Context) error {
	migrator, err := NewMigrator(a.pool, a.cfg.MigrationsPath, a.logger.Named("migrator"))
	if err != nil {
		return err
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			a.logger.Warn("Close migrator", zap.Error(err))
		}
	}()

	return migrator.Run(ctx)
}

// otpStore Redis, если задан REDIS_URL, иначе память процесса
func (a *App) otpStore(ctx context.Context) (otp.Store, error) {
	if a.cfg.RedisURL == "" {
		if a.cfg.IsProduction() {
			a.logger.Warn("REDIS_URL not set, OTP codes are kept in memory")
		}
		a.otpMemory = otp.NewMemoryStore()
		return a.otpMemory, nil
	}

	client, err := otp.NewRedisClient(ctx, a.cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	a.redis = client
	a.logger.Info("Connected to redis")
	return otp.NewRedisStore(client), nil
}

// baseNotifier Telegram при наличии токена, иначе только лог
func (a *App) baseNotifier() (notify.Notifier, error) {
	if a.cfg.TelegramToken == "" {
		a.logger.Info("TELEGRAM_TOKEN not set, notifications go to log")
		return notify.NewLogNotifier(a.logger.Named("notify")), nil
	}

	b, err := notify.NewTelegramBot(a.cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return notify.NewTelegramNotifier(b, a.logger.Named("notify")), nil
}

func (a *App) closeStorage() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Close redis", zap.Error(err))
		}
	}
	a.pool.Close()
}

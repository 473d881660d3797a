package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/authcore/internal/api"
	"github.com/charlesng35/authcore/internal/app"
	"github.com/charlesng35/authcore/internal/app/maintenance"
	iauth "github.com/charlesng35/authcore/internal/auth"
	"github.com/charlesng35/authcore/internal/cache"
	"github.com/charlesng35/authcore/internal/database"
	"github.com/charlesng35/authcore/internal/middleware"
	"github.com/charlesng35/authcore/internal/monitoring"
	"github.com/charlesng35/authcore/internal/notifications"
	"github.com/charlesng35/authcore/internal/oauth"
	"github.com/charlesng35/authcore/internal/security"
	"github.com/charlesng35/authcore/internal/services"
	"github.com/charlesng35/authcore/internal/store"
	"github.com/charlesng35/authcore/pkg/logger"
	"github.com/charlesng35/authcore/pkg/mail"
)

const readinessTimeout = 3 * time.Second

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB         *gorm.DB
	Dispatcher *notifications.Dispatcher
	AuditSvc   *services.AuditService
	AuthSvc    *iauth.Service
	Health     *monitoring.HealthManager
	Cleaner    *maintenance.Cleaner
	RateStore  middleware.RateStore
	Router     *gin.Engine
}

// bootstrapRuntime initialises the database, services, background workers and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			if shutdownErr := stack.Shutdown(context.Background(), log); shutdownErr != nil {
				log.Warn("partial bootstrap cleanup failed", zap.Error(shutdownErr))
			}
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	reportPosture(security.NewPostureChecker(cfg).Run(), log)

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	users := store.NewUserRepository(stack.DB)
	sessions := store.NewSessionRepository(stack.DB)
	actionTokens := store.NewActionTokenRepository(stack.DB)
	tx := store.NewTransactor(stack.DB)

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	issuer, err := iauth.NewTokenIssuer(jwtSvc, sessions, actionTokens, tx, cfg.Auth.TokenIssuerConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise token issuer: %w", err)
	}

	hasher, err := iauth.NewPasswordHasher(cfg.Auth.HasherConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise password hasher: %w", err)
	}

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}
	if !cfg.Email.SMTP.Enabled {
		log.Warn("smtp disabled; verification and reset emails will not be delivered")
	}

	stack.Dispatcher, err = notifications.NewDispatcher(mailer, cfg.DispatcherConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise notification dispatcher: %w", err)
	}

	stack.AuditSvc, err = services.NewAuditService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise audit service: %w", err)
	}

	stack.AuthSvc, err = iauth.NewService(iauth.Dependencies{
		Users:      users,
		Hasher:     hasher,
		Tokens:     issuer,
		Transactor: tx,
		Notifier:   stack.Dispatcher,
		Auditor:    stack.AuditSvc,
	}, cfg.Auth.ServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise auth service: %w", err)
	}

	var providers []oauth.Provider
	if cfg.OAuth.Google.Enabled {
		google, err := oauth.NewGoogleProvider(ctx, cfg.OAuth.GoogleProviderConfig())
		if err != nil {
			return nil, fmt.Errorf("initialise google provider: %w", err)
		}
		providers = append(providers, google)
		log.Info("oauth provider enabled", zap.String("provider", google.Name()))
	}

	stack.Health = monitoring.NewHealthManager(
		monitoring.WithDatabase(stack.DB, readinessTimeout),
		monitoring.WithNotificationQueue(stack.Dispatcher),
	)

	cleanerOpts := []maintenance.Option{
		maintenance.WithSchedule(cfg.Maintenance.CleanupSchedule),
		maintenance.WithAuditRetentionDays(cfg.Maintenance.AuditRetentionDays),
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Server.RateLimit.Store)) {
	case "database":
		counter := cache.NewDatabaseCounter(stack.DB)
		stack.RateStore = middleware.NewCounterRateStore(counter)
		cleanerOpts = append(cleanerOpts, maintenance.WithCounterPurger(counter))
	default:
		stack.RateStore = middleware.NewMemoryRateStore()
	}

	stack.Cleaner = maintenance.NewCleaner(sessions, actionTokens, stack.AuditSvc, cleanerOpts...)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		Config:         cfg,
		Auth:           stack.AuthSvc,
		Health:         stack.Health,
		OAuthProviders: providers,
		RateStore:      stack.RateStore,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown stops background jobs, drains queued notifications and releases the database.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) error {
	if s == nil {
		return nil
	}

	var err error

	if s.Cleaner != nil {
		<-s.Cleaner.Stop().Done()
		if runErr := s.Cleaner.RunOnce(ctx); runErr != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(runErr))
		}
	}

	if s.Dispatcher != nil {
		err = multierr.Append(err, s.Dispatcher.Close(ctx))
	}

	if s.DB != nil {
		err = multierr.Append(err, database.Close(s.DB))
	}

	return err
}

func reportPosture(result security.Result, log *zap.Logger) {
	for _, check := range result.Checks {
		fields := []zap.Field{zap.String("check", check.ID), zap.String("remediation", check.Remediation)}
		switch check.Status {
		case security.StatusFail:
			log.Error(check.Message, fields...)
		case security.StatusWarn:
			log.Warn(check.Message, fields...)
		}
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	driver := strings.ToLower(strings.TrimSpace(dbCfg.Driver))
	if driver == "" {
		driver = "sqlite"
	}
	logger.WithModule("database").Info("database connected", zap.String("driver", driver))

	return db, nil
}

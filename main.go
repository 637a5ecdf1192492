package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/taskora-inc/taskora-engine/pkg/auth"
	"github.com/taskora-inc/taskora-engine/pkg/config"
	"github.com/taskora-inc/taskora-engine/pkg/database"
	"github.com/taskora-inc/taskora-engine/pkg/handlers"
	"github.com/taskora-inc/taskora-engine/pkg/logging"
	"github.com/taskora-inc/taskora-engine/pkg/middleware"
	"github.com/taskora-inc/taskora-engine/pkg/repositories"
	"github.com/taskora-inc/taskora-engine/pkg/schemaguard"
	"github.com/taskora-inc/taskora-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("bind", cfg.BindAddr),
		zap.String("port", cfg.Port),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())))

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:             cfg.Database.URL(),
		MaxConnections:  cfg.Database.MaxConnections,
		MaxConnLifetime: time.Duration(cfg.Database.MaxConnLifetimeMinutes) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.Database.MaxConnIdleMinutes) * time.Minute,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database.URL(), cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.String("error", logging.SanitizeError(err)))
	}

	// All repository traffic goes through the schema guard so column or
	// table drift is repaired in place instead of failing requests.
	guarded := schemaguard.New(db, logger)

	userRepo := repositories.NewUserRepository(guarded)
	sessionRepo := repositories.NewSessionRepository(guarded)
	invitationRepo := repositories.NewInvitationRepository(guarded)
	membershipRepo := repositories.NewMembershipRepository(guarded)
	resourceRepo := repositories.NewResourceRepository(guarded)
	projectRepo := repositories.NewProjectRepository(guarded)
	dashboardRepo := repositories.NewDashboardRepository(guarded)

	resolver := services.NewRoleResolver(resourceRepo, membershipRepo)
	tokens := services.NewTokenService(
		userRepo, sessionRepo, invitationRepo, membershipRepo, resourceRepo,
		resolver,
		services.TokenServiceConfig{
			SessionTTL:       time.Duration(cfg.Auth.SessionTTLHours) * time.Hour,
			InviteDefaultTTL: time.Duration(cfg.Invite.DefaultTTLDays) * 24 * time.Hour,
			InviteMaxTTL:     time.Duration(cfg.Invite.MaxTTLDays) * 24 * time.Hour,
		},
		logger,
	)
	gateway := services.NewAccessGateway(resolver, tokens, logger)
	users := services.NewUserService(userRepo, logger)
	projects := services.NewProjectService(projectRepo, logger)
	dashboards := services.NewDashboardService(dashboardRepo, logger)
	members := services.NewMemberService(membershipRepo, logger)
	notifier := services.NewLogNotifier(logger)

	auth.InitReplayStore(cfg.Auth.CookieSecret, cfg.Auth.SecureCookies)
	authMiddleware := auth.NewMiddleware(tokens, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg).RegisterRoutes(mux)
	handlers.NewAuthHandler(users, tokens, cfg, logger).RegisterRoutes(mux)
	handlers.NewProjectsHandler(projects, gateway, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewDashboardsHandler(dashboards, gateway, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewMembersHandler(members, gateway, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewInvitesHandler(tokens, notifier, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewSharesHandler(tokens, logger).RegisterRoutes(mux, authMiddleware)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting taskora-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.String("error", logging.SanitizeError(err)))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

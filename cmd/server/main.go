package main

import (
	"context"
	"log"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	apiHandler "github.com/audiobrew/web/api/handler"
	"github.com/audiobrew/web/internal/config"
	"github.com/audiobrew/web/internal/infrastructure/boltdb"
	"github.com/audiobrew/web/internal/infrastructure/monitor"
	redisInfra "github.com/audiobrew/web/internal/infrastructure/redis"
	"github.com/audiobrew/web/internal/middleware"
	"github.com/audiobrew/web/internal/router"
	"github.com/audiobrew/web/internal/services"
	"github.com/audiobrew/web/internal/services/lifecycle"
	"github.com/audiobrew/web/internal/supabase"
	"github.com/audiobrew/web/internal/upstream"
	"github.com/audiobrew/web/pkg/httpcontext"
	"github.com/audiobrew/web/pkg/logger"
	"github.com/audiobrew/web/pkg/notice"
	"github.com/audiobrew/web/repository"
	boltRepo "github.com/audiobrew/web/repository/bolt"
	redisRepo "github.com/audiobrew/web/repository/redis"
	authUC "github.com/audiobrew/web/usecase/auth"
	gmailUC "github.com/audiobrew/web/usecase/gmail"
	podcastUC "github.com/audiobrew/web/usecase/podcast"
	profileUC "github.com/audiobrew/web/usecase/profile"
)

const maxRequestBodySize = 8 << 20

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	clock := clockwork.NewRealClock()

	backend := upstream.New(upstream.Config{
		BaseURL:         cfg.API.BaseURL,
		Timeout:         cfg.API.Timeout,
		BreakerFailures: 5,
	}, nil, zapLogger)

	supabaseClient := supabase.New(supabase.Config{
		URL:       cfg.Supabase.URL,
		AnonKey:   cfg.Supabase.AnonKey,
		JWTSecret: cfg.Supabase.JWTSecret,
	}, nil, zapLogger)

	// Session store
	var (
		sessionRepo repository.SessionRepository
		storeProbe  monitor.Probe
		purger      repository.SessionPurger
	)
	switch cfg.Session.Store {
	case "redis":
		redisClient, err := redisInfra.NewClient(appCtx, cfg.Redis)
		if err != nil {
			zapLogger.Fatal("redis connection failed", zap.Error(err))
		}
		manager.Register("redis", func(ctx context.Context) error {
			return redisClient.Close()
		})
		sessionRepo = redisRepo.NewSessionRepository(redisClient, cfg.Session.TTL)
		storeProbe = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	default:
		store, err := boltdb.Open(cfg.Bolt.Path, "sessions")
		if err != nil {
			zapLogger.Fatal("failed to open session store", zap.Error(err))
		}
		manager.Register("boltdb", func(ctx context.Context) error {
			return store.Close()
		})
		boltSessions := boltRepo.NewSessionRepository(store, cfg.Session.TTL)
		sessionRepo, purger = boltSessions, boltSessions
		storeProbe = func(ctx context.Context) error {
			_, err := store.Size()
			return err
		}
	}

	mon := monitor.New(cfg.Session.Store, storeProbe, backend.Ping, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	if purger != nil {
		sweeper := services.NewSessionSweeper(purger, mon, clock, zapLogger, services.SweeperConfig{
			Interval: cfg.Session.SweepInterval,
		})
		sweeper.Start()
		manager.Register("session_sweeper", func(ctx context.Context) error {
			sweeper.Stop(ctx)
			return nil
		})
	}

	// Use cases
	authUseCase := authUC.New(supabaseClient, sessionRepo, clock, authUC.Config{
		SessionTTL:    cfg.Session.TTL,
		RefreshLeeway: cfg.Session.RefreshLeeway,
	}, zapLogger)
	notices := notice.NewBoard(clock, notice.DefaultTimeout)
	profileUseCase := profileUC.New(authUseCase, supabaseClient, backend, notices, clock, zapLogger)
	podcastUseCase := podcastUC.New(backend, clock, zapLogger)
	gmailUseCase := gmailUC.New(backend, zapLogger)
	tracker := podcastUC.NewTracker(authUseCase, clock, cfg.Session.GenerationTTL)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)
	cookie := middleware.SessionCookie{Name: cfg.Session.CookieName, Secure: cfg.Session.CookieSecure}

	handlers := router.Handlers{
		Auth:    apiHandler.NewAuthHandler(authUseCase, cookie, cfg.HTTP.PublicURL+"/auth/callback", ctxAdapter, zapLogger),
		Page:    apiHandler.NewPageHandler(ctxAdapter, zapLogger),
		Profile: apiHandler.NewProfileHandler(profileUseCase, ctxAdapter, zapLogger),
		Account: apiHandler.NewAccountHandler(backend, profileUseCase, authUseCase, cookie, ctxAdapter, zapLogger),
		Podcast: apiHandler.NewPodcastHandler(backend, podcastUseCase, tracker, profileUseCase, cfg.HTTP.PublicURL, ctxAdapter, zapLogger),
		Gmail:   apiHandler.NewGmailHandler(backend, gmailUseCase, ctxAdapter, zapLogger),
		Health:  apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	var metricsHandler fasthttp.RequestHandler
	if cfg.HTTP.EnableMetrics {
		metricsHandler = fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	}
	r := router.New(handlers, metricsHandler)

	sessions := middleware.NewSessions(authUseCase, cookie, ctxAdapter, zapLogger)
	if cfg.Supabase.JWTSecret != "" {
		sessions.WithBearer(supabase.NewClaimsParser(cfg.Supabase.JWTSecret))
	}

	mws := []func(fasthttp.RequestHandler) fasthttp.RequestHandler{middleware.Observe(zapLogger)}
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, zapLogger)
		mws = append(mws, limiter.Middleware)

		janitor := cron.New()
		_, _ = janitor.AddFunc("@every 5m", func() {
			if dropped := limiter.Cleanup(); dropped > 0 {
				zapLogger.Debug("rate limiter cleanup", zap.Int("dropped", dropped))
			}
		})
		janitor.Start()
		manager.Register("rate_limiter", func(ctx context.Context) error {
			<-janitor.Stop().Done()
			return nil
		})
	}
	mws = append(mws, sessions.Load, middleware.Guard)

	server := &fasthttp.Server{
		Handler:            middleware.Chain(r.Handler, mws...),
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		Concurrency:        cfg.HTTP.MaxConn,
		MaxRequestBodySize: maxRequestBodySize,
		Name:               cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("backend", cfg.API.BaseURL),
			zap.String("session_store", cfg.Session.Store),
			zap.Bool("production", cfg.IsProduction()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}

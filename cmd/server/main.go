package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"friendchat/internal/bus"
	"friendchat/internal/config"
	"friendchat/internal/domain"
	"friendchat/internal/httpserver"
	"friendchat/internal/logger"
	"friendchat/internal/media"
	"friendchat/internal/security"
	"friendchat/internal/service"
	"friendchat/internal/store/mongo"
	"friendchat/internal/store/postgres"
	redisstore "friendchat/internal/store/redis"
	"friendchat/internal/store/sqlite"
	"friendchat/internal/ws"
)

// @title           friendchat API
// @version         1.0
// @description     Two-party chat with friends, presence and live delivery.

// @host            localhost:5001
// @BasePath        /api

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name jwt

type repositories struct {
	users    domain.UserRepository
	messages domain.MessageRepository
	friends  domain.FriendRepository
	close    func()
}

func openStore(ctx context.Context, cfg *config.Config, lg *zap.Logger) (*repositories, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(db); err != nil {
			db.Close()
			return nil, err
		}
		return &repositories{
			users:    postgres.NewUserRepo(db),
			messages: postgres.NewMessageRepo(db),
			friends:  postgres.NewFriendRepo(db),
			close:    func() { db.Close() },
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := sqlite.Migrate(db); err != nil {
			db.Close()
			return nil, err
		}
		return &repositories{
			users:    sqlite.NewUserRepo(db),
			messages: sqlite.NewMessageRepo(db),
			friends:  sqlite.NewFriendRepo(db),
			close:    func() { db.Close() },
		}, nil

	case config.DriverMongo:
		st, err := mongo.Open(ctx, mongo.Config{URI: cfg.MongoURI, Database: cfg.MongoDB})
		if err != nil {
			return nil, err
		}
		return &repositories{
			users:    st.Users(),
			messages: st.Messages(),
			friends:  st.Friends(),
			close: func() {
				if err := st.Close(context.Background()); err != nil {
					lg.Warn("mongo disconnect", zap.Error(err))
				}
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel, !cfg.IsProduction())
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer lg.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence
	repos, err := openStore(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("failed to open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer repos.close()
	lg.Info("store ready", zap.String("driver", cfg.StoreDriver))

	// Realtime core
	registry := ws.NewRegistry(lg.Named("registry"))
	presence := func(context.Context) ([]string, error) { return registry.Online(), nil }

	if cfg.RedisAddr != "" {
		rdb, err := redisstore.Open(ctx, redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			lg.Fatal("failed to connect redis", zap.Error(err))
		}
		defer rdb.Close()

		mirror := redisstore.NewPresenceMirror(rdb, cfg.NodeID, lg.Named("presence"))
		defer mirror.Close()
		if err := mirror.Reset(ctx); err != nil {
			lg.Warn("presence reset failed", zap.Error(err))
		}
		registry.SetObserver(mirror)
		presence = mirror.Online
		lg.Info("presence mirror enabled", zap.String("redis", cfg.RedisAddr))
	}

	var routerOpts []ws.RouterOption
	var relay *bus.Relay
	if cfg.NATSURL != "" {
		nc, err := bus.Connect(bus.Config{URL: cfg.NATSURL, Name: "friendchat-" + cfg.NodeID})
		if err != nil {
			lg.Fatal("failed to connect nats", zap.Error(err))
		}
		relay = bus.NewRelay(nc, cfg.NodeID, lg.Named("relay"))
		routerOpts = append(routerOpts, ws.WithRelay(relay))
	}
	router := ws.NewRouter(registry, lg.Named("router"), routerOpts...)
	if relay != nil {
		if err := relay.Subscribe(router); err != nil {
			lg.Fatal("failed to subscribe relay", zap.Error(err))
		}
		defer relay.Close()
		lg.Info("relay enabled", zap.String("nats", cfg.NATSURL))
	}

	// Security components
	tokenSvc := security.NewTokenService(cfg.JWTSecret, cfg.TokenTTL())
	passwordHasher := security.NewPasswordHasher(0)

	uploader, err := media.NewUploader(cfg.UploadDir, cfg.PublicBaseURL, lg.Named("media"))
	if err != nil {
		lg.Fatal("failed to prepare uploads", zap.Error(err))
	}

	// Services
	authSvc := service.NewAuthService(repos.users, repos.friends, tokenSvc, passwordHasher, uploader, lg.Named("auth"))
	msgSvc := service.NewMessageService(repos.users, repos.messages, uploader, router, lg.Named("messages"))
	friendSvc := service.NewFriendService(repos.users, repos.friends, router, lg.Named("friends"))

	// Build HTTP router
	handler := httpserver.NewRouter(httpserver.Deps{
		Auth:         authSvc,
		Messages:     msgSvc,
		Friends:      friendSvc,
		Presence:     presence,
		Socket:       ws.MakeHandler(registry, cfg.CORSOrigins, cfg.WSSendQueue, lg.Named("ws")),
		UploadDir:    cfg.UploadDir,
		CORSOrigins:  cfg.CORSOrigins,
		SecureCookie: cfg.IsProduction(),
		Log:          lg.Named("http"),
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		lg.Info("starting friendchat server", zap.String("addr", cfg.HTTPAddr()), zap.String("node", cfg.NodeID))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	lg.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Warn("graceful shutdown failed", zap.Error(err))
	}
}

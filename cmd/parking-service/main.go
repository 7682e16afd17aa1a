package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"parking-service/internal/auth"
	"parking-service/internal/broadcast"
	"parking-service/internal/config"
	"parking-service/internal/dashboard"
	"parking-service/internal/db"
	httphandler "parking-service/internal/http"
	"parking-service/internal/http/middleware"
	"parking-service/internal/ingest"
	"parking-service/internal/logger"
	"parking-service/internal/repository"
	"parking-service/internal/service"
	"parking-service/internal/ws"
)

const (
	wsWriteTimeout  = 10 * time.Second
	shutdownTimeout = 15 * time.Second
)

type stores struct {
	sessions     service.SessionStore
	policies     service.PolicyStore
	cameraEvents interface {
		ingest.EventLog
		httphandler.CameraEventLister
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.Error().Err(err).Msg("parking service stopped with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, appLogger zerolog.Logger) error {
	st, err := openStores(cfg, appLogger)
	if err != nil {
		return err
	}

	bus, err := openBus(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer bus.Close()

	location := cfg.Facility.Location
	hub := broadcast.NewHub(cfg.Broadcast.ClientBuffer, appLogger)
	reports := service.NewReports(st.sessions, location)
	broadcaster := broadcast.NewBroadcaster(bus, reports, appLogger)

	policies := service.NewPolicyResolver(st.policies, broadcaster, appLogger)
	sessions := service.NewSessionManager(st.sessions, policies, reports, broadcaster, service.BillingConfig{
		HourlyRate:           cfg.Billing.HourlyRate,
		MinRetriggerInterval: cfg.Billing.MinRetriggerInterval,
	}, appLogger)

	images, err := ingest.NewDiskImageStore(cfg.Camera.ImagesDir)
	if err != nil {
		return fmt.Errorf("prepare image store: %w", err)
	}
	adapter := ingest.NewAdapter(ingest.NewDecoder(images, cfg.Camera.MaxUploadBytes), sessions, st.cameraEvents, appLogger)

	dispatcher := dashboard.NewDispatcher(sessions, location, appLogger)
	wsServer := ws.NewServer(hub, dispatcher, wsWriteTimeout, appLogger)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	authMiddleware := middleware.Auth(tokenParser)

	handler := httphandler.NewHandler(adapter, sessions, policies, st.cameraEvents, wsServer.HandleWS, location, appLogger)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment, appLogger)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(gctx, bus)
	})

	g.Go(func() error {
		appLogger.Info().
			Str("addr", addr).
			Str("storage", cfg.DB.Driver).
			Str("timezone", location.String()).
			Msg("starting parking service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		appLogger.Info().Msg("shutting down parking service")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openStores(cfg *config.Config, appLogger zerolog.Logger) (*stores, error) {
	if cfg.DB.Driver == config.StorageDriverMemory {
		appLogger.Warn().Msg("using in-memory storage, data is lost on restart")
		return &stores{
			sessions:     repository.NewMemorySessionRepository(),
			policies:     repository.NewMemoryCarPolicyRepository(),
			cameraEvents: repository.NewMemoryCameraEventRepository(),
		}, nil
	}

	database, err := db.New(cfg, appLogger)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return &stores{
		sessions:     repository.NewSessionRepository(database),
		policies:     repository.NewCarPolicyRepository(database),
		cameraEvents: repository.NewCameraEventRepository(database),
	}, nil
}

func openBus(ctx context.Context, cfg *config.Config, appLogger zerolog.Logger) (broadcast.Bus, error) {
	if cfg.Broadcast.RedisAddr == "" {
		return broadcast.NewLocalBus(), nil
	}

	client, err := broadcast.NewRedisClient(ctx, cfg.Broadcast.RedisAddr, cfg.Broadcast.RedisPassword, cfg.Broadcast.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	appLogger.Info().Str("addr", cfg.Broadcast.RedisAddr).Str("channel", cfg.Broadcast.Channel).Msg("broadcasting over redis")
	return broadcast.NewRedisBus(client, cfg.Broadcast.Channel), nil
}

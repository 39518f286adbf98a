package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/hszk-dev/dashstream/internal/api/handler"
	"github.com/hszk-dev/dashstream/internal/config"
	"github.com/hszk-dev/dashstream/internal/domain/repository"
	"github.com/hszk-dev/dashstream/internal/infrastructure/cache"
	"github.com/hszk-dev/dashstream/internal/infrastructure/postgres"
	"github.com/hszk-dev/dashstream/internal/infrastructure/queue"
	"github.com/hszk-dev/dashstream/internal/infrastructure/storage"
	"github.com/hszk-dev/dashstream/internal/transcoder"
	"github.com/hszk-dev/dashstream/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Server.StreamDir, 0755); err != nil {
		return fmt.Errorf("failed to create stream directory: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	checks := make(map[string]handler.HealthCheck)

	// Job registry
	var (
		registry    repository.JobRegistry
		redisClient *redis.Client
	)
	switch cfg.Jobs.Registry {
	case config.RegistryRedis:
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		logger.Info("connected to Redis")
		registry = cache.NewRedisJobRegistry(redisClient, cfg.Jobs.Retention)
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	default:
		memRegistry := cache.NewMemoryJobRegistry(
			cache.WithRetention(cfg.Jobs.Retention),
			cache.WithLogger(logger),
		)
		g.Go(func() error {
			memRegistry.Run(gctx, cfg.Jobs.SweepInterval)
			return nil
		})
		registry = memRegistry
	}

	// Optional job history
	var history repository.JobHistory
	if cfg.Database.Enabled {
		pgClient, err := postgres.NewClient(ctx, postgres.DefaultClientConfig(cfg.Database.DSN()))
		if err != nil {
			return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		defer pgClient.Close()

		jobRepo := pgClient.JobRepository()
		if err := jobRepo.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to prepare job history schema: %w", err)
		}
		logger.Info("connected to PostgreSQL")
		history = jobRepo
		checks["postgres"] = pgClient.Ping
	}

	// Optional object storage ingest
	var objects repository.ObjectStorage
	if cfg.MinIO.Enabled {
		storageClient, err := storage.NewClient(ctx, storage.ClientConfig{
			Endpoint:       cfg.MinIO.Endpoint,
			PublicEndpoint: cfg.MinIO.PublicEndpoint,
			AccessKey:      cfg.MinIO.AccessKey,
			SecretKey:      cfg.MinIO.SecretKey,
			Bucket:         cfg.MinIO.Bucket,
			UseSSL:         cfg.MinIO.UseSSL,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to MinIO: %w", err)
		}
		logger.Info("connected to MinIO", slog.String("bucket", cfg.MinIO.Bucket))
		objects = storageClient
		checks["minio"] = storageClient.Ping
	}

	// Dispatch: encode in this process, or publish for workers.
	var (
		dispatcher usecase.Dispatcher
		supervisor *transcoder.Supervisor
		local      *usecase.LocalDispatcher
	)
	switch cfg.Jobs.Dispatch {
	case config.DispatchQueue:
		queueClient, err := queue.NewClient(ctx, queue.DefaultClientConfig(cfg.RabbitMQ.URL()), logger)
		if err != nil {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		defer queueClient.Close()
		logger.Info("connected to RabbitMQ")
		// Workers share no supervisor, so streams are reserved in Redis.
		locks := cache.NewRedisStreamLock(redisClient, cfg.Jobs.StreamLockTTL)
		dispatcher = usecase.NewQueueDispatcher(queueClient, locks)
	default:
		if _, err := exec.LookPath(cfg.Transcoder.FFmpegPath); err != nil {
			logger.Warn("ffmpeg not found, encodes will fail", slog.String("path", cfg.Transcoder.FFmpegPath))
		}
		supervisor, err = newSupervisor(cfg, logger)
		if err != nil {
			return err
		}
		local = usecase.NewLocalDispatcher(usecase.NewJobProcessor(supervisor, registry, history, logger))
		dispatcher = local
	}

	encodeSvc := usecase.NewEncodeService(registry, history, objects, dispatcher, usecase.EncodeServiceConfig{
		StreamDir:       cfg.Server.StreamDir,
		MaxSourceBytes:  cfg.Server.MaxUploadBytes,
		UploadURLExpiry: cfg.Server.UploadURLExpiry,
	}, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           setupRouter(cfg, encodeSvc, checks, logger),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		logger.Info("starting server",
			slog.Int("port", cfg.Server.Port),
			slog.String("dispatch", dispatcher.Mode()),
			slog.String("registry", cfg.Jobs.Registry),
			slog.String("stream_dir", cfg.Server.StreamDir),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
		if supervisor != nil {
			if err := supervisor.Shutdown(shutdownCtx); err != nil {
				logger.Warn("encodes killed at shutdown", slog.String("error", err.Error()))
			}
			local.Wait()
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}

func newSupervisor(cfg *config.Config, logger *slog.Logger) (*transcoder.Supervisor, error) {
	ffmpegCfg := transcoder.DefaultFFmpegConfig()
	ffmpegCfg.FFmpegPath = cfg.Transcoder.FFmpegPath

	supCfg := transcoder.DefaultSupervisorConfig()
	supCfg.DASH.VideoPreset = cfg.Transcoder.Preset
	supCfg.DASH.SegmentDuration = cfg.Transcoder.SegmentSeconds
	supCfg.MaxJobDuration = cfg.Jobs.MaxDuration

	sup, err := transcoder.NewSupervisor(
		transcoder.NewFFmpegRunner(ffmpegCfg),
		transcoder.NewFFprobe(cfg.Transcoder.FFprobePath, logger),
		supCfg,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create supervisor: %w", err)
	}
	return sup, nil
}

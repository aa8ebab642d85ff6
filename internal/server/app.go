// Package server wires configuration, the user store, the session services
// and both transports, and runs them until a shutdown signal arrives.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/filex"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	gs "github.com/dmitrijs2005/authkeeper/internal/server/grpc"
	"github.com/dmitrijs2005/authkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/authkeeper/internal/server/media"
	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	users   *services.UserService
	codec   *auth.TokenCodec
	metrics *metrics.Metrics

	uploadDir string
	closers   []func() error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	logger := logging.New(c.LogLevel, c.LogFormat, os.Stdout)
	app := &App{config: c, logger: logger.With("module", "app"), metrics: metrics.New()}

	uploadDir, err := filex.EnsureDir(c.UploadTempDir)
	if err != nil {
		return nil, fmt.Errorf("upload dir: %w", err)
	}
	app.uploadDir = uploadDir

	repo, err := app.openStore(ctx)
	if err != nil {
		return nil, err
	}

	codec, err := auth.NewTokenCodec(
		[]byte(c.AccessTokenSecret), []byte(c.RefreshTokenSecret),
		c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration,
	)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("token codec: %w", err)
	}

	uploader, err := media.NewS3Uploader(ctx, media.S3Options{
		User:          c.S3RootUser,
		Password:      c.S3RootPassword,
		Bucket:        c.S3Bucket,
		Region:        c.S3Region,
		BaseEndpoint:  c.S3BaseEndpoint,
		PublicBaseURL: c.S3PublicBaseURL,
	}, logger)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("media uploader: %w", err)
	}

	sessions := services.NewSessionService(repo, codec, logger)
	app.users = services.NewUserService(repo, sessions, uploader, app.metrics, logger)
	app.codec = codec
	return app, nil
}

func (app *App) openStore(ctx context.Context) (users.Repository, error) {
	switch app.config.StoreBackend {
	case config.BackendPostgres:
		db, err := repomanager.OpenPostgres(ctx, app.config.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		app.closers = append(app.closers, db.Close)

		rm := repomanager.NewPostgresRepositoryManager()
		if err := rm.RunMigrations(ctx, db); err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		return rm.Users(db), nil

	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     app.config.RedisAddr,
			Password: app.config.RedisPassword,
			DB:       app.config.RedisDB,
		})
		app.closers = append(app.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		return users.NewRedisRepository(rdb, "authkeeper"), nil

	case config.BackendMemory:
		app.logger.Warn(ctx, "using in-memory store; users are lost on restart")
		return users.NewMemoryRepository(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", app.config.StoreBackend)
}

// Close releases store connections.
func (app *App) Close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		errs = append(errs, app.closers[i]())
	}
	app.closers = nil
	return errors.Join(errs...)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) httpHandler() http.Handler {
	h := httpapi.NewHandler(app.users, app.codec, app.metrics, app.logger, httpapi.Options{
		CookieSecure:   app.config.CookieSecure,
		UploadTempDir:  app.uploadDir,
		MaxUploadBytes: app.config.MaxUploadBytes,
		CORSOrigin:     app.config.CORSOrigin,
	})
	return h.Routes()
}

func (app *App) startHTTPServer(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           app.httpHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())
	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run serves HTTP and gRPC until ctx is cancelled, a signal arrives or one
// of the servers fails. The store is closed on return.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer func() {
		if err := app.Close(); err != nil {
			app.logger.Error(ctx, "close store", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	httpLis, err := net.Listen("tcp", app.config.EndpointAddrHTTP)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	grpcLis, err := net.Listen("tcp", app.config.EndpointAddrGRPC)
	if err != nil {
		_ = httpLis.Close()
		return fmt.Errorf("grpc listen: %w", err)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	fail := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
		cancelFunc()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := app.startHTTPServer(ctx, httpLis); err != nil {
			app.logger.Error(ctx, "http server", "error", err)
			fail(err)
		}
	}()
	go func() {
		defer wg.Done()
		s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.users, app.codec)
		if err := s.Serve(ctx, grpcLis); err != nil {
			app.logger.Error(ctx, "grpc server", "error", err)
			fail(err)
		}
	}()

	wg.Wait()
	return errors.Join(errs...)
}

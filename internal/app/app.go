package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/httplog/v2"
	"golang.org/x/sync/errgroup"

	"github.com/vadimbarashkov/shorturl/internal/adapter/repository/file"
	"github.com/vadimbarashkov/shorturl/internal/adapter/repository/mongodb"
	"github.com/vadimbarashkov/shorturl/internal/config"
	"github.com/vadimbarashkov/shorturl/internal/entity"
	"github.com/vadimbarashkov/shorturl/internal/shortcode"
	"github.com/vadimbarashkov/shorturl/internal/usecase"
	"github.com/vadimbarashkov/shorturl/pkg/postgres"

	delivery "github.com/vadimbarashkov/shorturl/internal/adapter/delivery/http"
	postgresrepo "github.com/vadimbarashkov/shorturl/internal/adapter/repository/postgres"
)

type urlRepository interface {
	Save(ctx context.Context, url *entity.URL) error
	RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
	Update(ctx context.Context, shortCode string, fn func(url *entity.URL) error) (*entity.URL, error)
	List(ctx context.Context) ([]entity.URL, error)
}

type codeGenerator interface {
	Generate() (string, error)
}

// App holds the wired HTTP handler and the resources it must release.
type App struct {
	handler http.Handler
	closers []func(context.Context) error
}

// New builds the store selected by cfg, loads or migrates it and wires the
// use case and router on top.
func New(ctx context.Context, cfg *config.Config, logger *httplog.Logger) (*App, error) {
	const op = "app.New"

	a := &App{}

	urlRepo, err := a.newURLRepository(ctx, cfg, logger.Logger)
	if err != nil {
		a.Close(context.Background())
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	codeGen, err := newCodeGenerator(ctx, cfg.ShortCode, urlRepo)
	if err != nil {
		a.Close(context.Background())
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	urlUseCase := usecase.New(
		urlRepo,
		codeGen,
		usecase.WithMaxAttempts(cfg.ShortCode.MaxAttempts),
		usecase.WithReservedCodes(delivery.ReservedCodes...),
	)

	a.handler = delivery.NewRouter(logger, urlUseCase, delivery.Config{
		BaseURL:        cfg.BaseURL,
		AllowedOrigins: cfg.HTTPServer.AllowedOrigins,
	})

	return a, nil
}

func (a *App) Handler() http.Handler {
	return a.handler
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil

	return errors.Join(errs...)
}

func (a *App) newURLRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (urlRepository, error) {
	const op = "app.App.newURLRepository"

	switch cfg.Storage.Driver {
	case config.DriverFile:
		repo := file.NewURLRepository(cfg.Storage.FilePath)
		if err := repo.Load(ctx); err != nil {
			return nil, fmt.Errorf("%s: failed to load urls: %w", op, err)
		}

		logger.Info("urls loaded from file",
			slog.String("path", cfg.Storage.FilePath),
			slog.Int("count", repo.Len()),
		)

		return repo, nil

	case config.DriverPostgres:
		version, err := postgres.RunMigrations(cfg.Postgres.MigrationsPath, cfg.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("%s: failed to run migrations: %w", op, err)
		}

		db, err := postgres.New(
			ctx,
			cfg.Postgres.DSN(),
			postgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
			postgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
			postgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
			postgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
		}
		a.closers = append(a.closers, func(context.Context) error {
			return db.Close()
		})

		logger.Info("connected to postgres", slog.Uint64("schema_version", uint64(version)))

		return postgresrepo.NewURLRepository(db), nil

	case config.DriverMongo:
		connectCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.Timeout)
		defer cancel()

		client, err := mongodb.Connect(connectCtx, cfg.Mongo.URI)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.closers = append(a.closers, client.Disconnect)

		repo := mongodb.NewURLRepository(client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection))
		if err := repo.EnsureIndexes(connectCtx); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		logger.Info("connected to mongo",
			slog.String("database", cfg.Mongo.Database),
			slog.String("collection", cfg.Mongo.Collection),
		)

		return repo, nil

	default:
		return nil, fmt.Errorf("%s: %q: %w", op, cfg.Storage.Driver, config.ErrUnknownDriver)
	}
}

// newCodeGenerator builds the generator for the configured strategy. The
// sequence starts after the highest code already in the store.
func newCodeGenerator(ctx context.Context, cfg config.ShortCode, urlRepo urlRepository) (codeGenerator, error) {
	const op = "app.newCodeGenerator"

	switch cfg.Strategy {
	case config.StrategySequence:
		urls, err := urlRepo.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to list urls: %w", op, err)
		}

		codes := make([]string, 0, len(urls))
		for _, url := range urls {
			codes = append(codes, url.ShortCode)
		}

		return shortcode.NewSequence(shortcode.NextAfter(codes)), nil

	case config.StrategyRandom, "":
		return shortcode.NewRandom(cfg.Length), nil

	default:
		return nil, fmt.Errorf("%s: %q: %w", op, cfg.Strategy, config.ErrUnknownStrategy)
	}
}

// Run serves the application until ctx is cancelled, then shuts the server
// down and releases the store.
func Run(ctx context.Context, cfg *config.Config, logger *httplog.Logger) error {
	const op = "app.Run"

	a, err := New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        a.Handler(),
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server",
			slog.String("addr", server.Addr),
			slog.String("env", cfg.Env),
			slog.String("storage", cfg.Storage.Driver),
		)

		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		logger.Info("shutting down server")

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		if err := a.Close(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to release resources: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}

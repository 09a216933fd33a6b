package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/postroom/postroom/auth"
	"github.com/postroom/postroom/internal/ticker"
	"github.com/postroom/postroom/pkg/env"
	"github.com/postroom/postroom/pkg/metrics"
	"github.com/postroom/postroom/postcache"
	"github.com/postroom/postroom/server"
	"github.com/postroom/postroom/service"
	"github.com/postroom/postroom/store"
	"github.com/postroom/postroom/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
	"gorm.io/plugin/opentelemetry/tracing"
)

const devJWTSecret = "postroom-dev-secret-do-not-use-in-production"

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "postroom",
		Usage:   "post service with per-owner cached listings",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"POSTROOM_LOG_LEVEL", "GO_LOG_LEVEL", "LOG_LEVEL"},
		},
	}

	app.Commands = []*cli.Command{
		serveCmd,
	}

	return app.Run(args)
}

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "run the postroom API daemon",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "Specify the local IP/port to bind to",
			Value:   ":8000",
			EnvVars: []string{"POSTROOM_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3989",
			EnvVars: []string{"POSTROOM_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "db-url",
			Usage:   "database connection string for account and post storage",
			Value:   "sqlite://./data/postroom/postroom.sqlite",
			EnvVars: []string{"DATABASE_URL", "POSTROOM_DB_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			Value:   40,
			EnvVars: []string{"POSTROOM_MAX_DB_CONNECTIONS"},
		},
		&cli.BoolFlag{
			Name:    "db-tracing",
			Usage:   "emit OpenTelemetry spans for database queries",
			EnvVars: []string{"POSTROOM_DB_TRACING"},
		},
		&cli.StringFlag{
			Name:    "jwt-secret",
			Usage:   "secret used to sign access tokens",
			EnvVars: []string{"JWT_SECRET_KEY", "POSTROOM_JWT_SECRET"},
		},
		&cli.BoolFlag{
			Name:    "dev",
			Usage:   "development mode: allows running without a JWT secret",
			EnvVars: []string{"POSTROOM_DEV"},
		},
		&cli.DurationFlag{
			Name:    "access-token-ttl",
			Value:   auth.DefaultAccessTokenTTL,
			EnvVars: []string{"POSTROOM_ACCESS_TOKEN_TTL"},
		},
		&cli.DurationFlag{
			Name:    "cache-ttl",
			Usage:   "how long a cached post listing is served",
			Value:   postcache.DefaultTTL,
			EnvVars: []string{"POSTROOM_CACHE_TTL"},
		},
		&cli.IntFlag{
			Name:    "cache-size",
			Usage:   "maximum number of owners with a cached post listing",
			Value:   postcache.DefaultMaxSize,
			EnvVars: []string{"POSTROOM_CACHE_SIZE"},
		},
		&cli.StringSliceFlag{
			Name:    "admin-password",
			Usage:   "secret password/token for accessing admin endpoints (multiple values allowed)",
			EnvVars: []string{"POSTROOM_ADMIN_PASSWORDS"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger, err := cliutil.SetupSlog(cliutil.LogOptions{LogLevel: cctx.String("log-level")})
		if err != nil {
			return err
		}
		env.SetVersion(versioninfo.Short())

		shutdownOTEL, err := cliutil.ConfigOTEL("postroom")
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}
		defer shutdownOTEL()

		secret := cctx.String("jwt-secret")
		if secret == "" {
			if !cctx.Bool("dev") {
				return fmt.Errorf("--jwt-secret (JWT_SECRET_KEY) is required outside of --dev mode")
			}
			logger.Warn("using built-in development JWT secret")
			secret = devJWTSecret
		}

		db, err := cliutil.SetupDatabase(cctx.String("db-url"), cctx.Int("max-db-connections"))
		if err != nil {
			return err
		}
		if cctx.Bool("db-tracing") {
			if err := db.Use(tracing.NewPlugin()); err != nil {
				return err
			}
		}

		st, err := store.NewGormStore(db)
		if err != nil {
			return err
		}

		cache := postcache.New(cctx.Int("cache-size"), cctx.Duration("cache-ttl"), logger)
		codec := auth.NewTokenCodec([]byte(secret), cctx.Duration("access-token-ttl"))

		var adminPasswords []string
		for _, pw := range cctx.StringSlice("admin-password") {
			if pw = strings.TrimSpace(pw); pw != "" {
				adminPasswords = append(adminPasswords, pw)
			}
		}

		srv, err := server.NewServer(
			service.NewPostService(st, st, cache, logger),
			service.NewAccountService(st, cache, codec, logger),
			auth.NewGate(codec, logger),
			st,
			server.Config{
				Logger:         logger,
				Bind:           cctx.String("bind"),
				Version:        env.Version(),
				AdminPasswords: adminPasswords,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to construct server: %v", err)
		}

		logger.Info("postroom configured",
			"cache_size", cctx.Int("cache-size"),
			"cache_ttl", cctx.Duration("cache-ttl").String(),
			"token_ttl", cctx.Duration("access-token-ttl").String(),
			"version", env.Version(),
			"release", env.IsRelease(),
		)

		// prometheus HTTP endpoint: /metrics
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			runtime.SetBlockProfileRate(10)
			runtime.SetMutexProfileFraction(10)
			if err := metrics.RunServer(ctx, cancel, cctx.String("metrics-listen"), metrics.Options{
				Ping:       st.Ping,
				CacheStats: cache.Stats,
			}); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		go ticker.Periodically(ctx, 15*time.Second, "cache-metrics", func(context.Context) error {
			cache.ReportMetrics()
			return nil
		})

		return srv.RunAPI()
	},
}

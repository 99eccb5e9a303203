package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WatchBeam/clock"
	"github.com/crosspostd/crosspost/server/config"
	"github.com/crosspostd/crosspost/server/contexts/ctxerr"
	"github.com/crosspostd/crosspost/server/crosspost"
	"github.com/crosspostd/crosspost/server/datastore/mysql"
	"github.com/crosspostd/crosspost/server/datastore/s3"
	"github.com/crosspostd/crosspost/server/health"
	"github.com/crosspostd/crosspost/server/publish"
	"github.com/crosspostd/crosspost/server/version"
	"github.com/getsentry/sentry-go"
	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func createServeCmd(configManager config.Manager) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Launch the crosspost scheduler",
		Long: `
Launch the crosspost scheduler

Use crosspost serve to run the publication pipeline: the publish worker, the
reconciliation sweep and the status listener. Multiple instances may run
against the same database, a leader lock ensures only one processes jobs at a
time.
`,
		Run: func(cmd *cobra.Command, args []string) {
			config := configManager.LoadConfig()

			logger := initLogger(config)

			if config.Sentry.Dsn != "" {
				if err := sentry.Init(sentry.ClientOptions{Dsn: config.Sentry.Dsn}); err != nil {
					initFatal(err, "initializing sentry")
				}
				level.Info(logger).Log("msg", "sentry initialized", "dsn", config.Sentry.Dsn)
			}

			if !config.Logging.DisableBanner {
				fmt.Print(banner)
			}

			ds, err := mysql.New(config.Mysql, mysql.Logger(logger), mysql.Clock(clock.C))
			if err != nil {
				initFatal(err, "initializing datastore")
			}
			defer ds.Close()

			current, latest, err := ds.MigrationStatus(cmd.Context())
			if err != nil {
				initFatal(err, "retrieving migration status")
			}
			if current != latest {
				initFatal(
					fmt.Errorf("database migrations at version %d, latest is %d", current, latest),
					"database out of date, run `crosspost prepare db`",
				)
			}

			var mediaStore crosspost.MediaStore
			if config.S3.Bucket != "" {
				ms, err := s3.New(config.S3)
				if err != nil {
					initFatal(err, "initializing media store")
				}
				mediaStore = ms
			} else {
				level.Info(logger).Log("msg", "no S3 bucket configured, posts with media attachments will fail to publish")
			}

			registry := publish.NewRegistry(
				publish.NewTikTok(&publish.TikTokOptions{
					BaseURL: config.TikTok.BaseURL,
					Timeout: config.TikTok.Timeout,
				}),
				publish.NewFacebook(&publish.FacebookOptions{}),
				publish.NewInstagram(&publish.InstagramOptions{}),
				publish.NewYouTube(&publish.YouTubeOptions{}),
			)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			ctx = ctxerr.NewContext(ctx, newErrorReporter(logger))

			// instance identifier for the cron leader locks
			instanceID := uuid.NewString()
			level.Info(logger).Log("msg", "starting crosspost", "version", version.Version().Version, "instance", instanceID)

			go cronWorker(ctx, ds, mediaStore, registry, kitlog.With(logger, "component", "cron"), instanceID, config.Worker)
			go cronReconcile(ctx, ds, kitlog.With(logger, "component", "cron"), instanceID)

			mux := http.NewServeMux()
			mux.Handle("/healthz", health.Handler(logger, map[string]health.Checker{
				"mysql": ds,
			}))
			mux.Handle("/version", version.Handler())

			srv := &http.Server{
				Addr:              config.Server.Address,
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				level.Info(logger).Log("msg", "status listener started", "address", config.Server.Address)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					initFatal(err, "starting status listener")
				}
			}()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig

			level.Info(logger).Log("msg", "shutting down")
			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		},
	}

	return serveCmd
}

func initLogger(config config.CrosspostConfig) kitlog.Logger {
	var logger kitlog.Logger
	if config.Logging.JSON {
		logger = kitlog.NewJSONLogger(kitlog.NewSyncWriter(os.Stderr))
	} else {
		logger = kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
	}
	if config.Logging.Debug {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}
	return kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC)
}

const banner = `
                                         _
  ___ _ __ ___  ___ ___ _ __   ___  ___| |_
 / __| '__/ _ \/ __/ __| '_ \ / _ \/ __| __|
| (__| | | (_) \__ \__ \ |_) | (_) \__ \ |_
 \___|_|  \___/|___/___/ .__/ \___/|___/\__|
                       |_|
`

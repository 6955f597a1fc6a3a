// Command janitor-runner is the central dispatcher described in spec.md
// §4.2/§6: it hands queued work to workers over HTTP, tracks active runs,
// ingests results, and enqueues publish requests. It owns the in-process
// PublishQueue in the default single-binary deployment; a split deployment
// can run janitor-publisher against the same Postgres database instead and
// leave PublishModes empty here.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/janitor-project/janitord/internal/artifactstore"
	"github.com/janitor-project/janitord/internal/config"
	"github.com/janitor-project/janitord/internal/forge"
	"github.com/janitor-project/janitord/internal/logstore"
	"github.com/janitor-project/janitord/internal/metrics"
	"github.com/janitor-project/janitord/internal/model"
	"github.com/janitor-project/janitord/internal/publish"
	"github.com/janitor-project/janitord/internal/runner"
	"github.com/janitor-project/janitord/internal/runner/backchannel"
	"github.com/janitor-project/janitord/internal/scheduler"
	"github.com/janitor-project/janitord/internal/store"
)

type options struct {
	configPath    string
	postgresDSN   string
	logStoreURL   string
	artifactURL   string
	artifactBackupURL string
	listenAddress string
	metricsAddress string
	logsBaseURL   string
	runTimeout    time.Duration
}

func gatherOptions() options {
	var o options
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.StringVar(&o.configPath, "config", "", "Path to the janitord text-format configuration file")
	fs.StringVar(&o.postgresDSN, "postgres-dsn", "", "Postgres connection string")
	fs.StringVar(&o.logStoreURL, "log-store-url", "", "gocloud.dev blob URL for finished run logs")
	fs.StringVar(&o.artifactURL, "artifact-store-url", "", "gocloud.dev blob URL for finished run artifacts")
	fs.StringVar(&o.artifactBackupURL, "artifact-backup-url", "", "gocloud.dev blob URL for the cold artifact backup (optional)")
	fs.StringVar(&o.listenAddress, "listen-address", ":9930", "Address the worker-facing HTTP server listens on")
	fs.StringVar(&o.metricsAddress, "metrics-address", ":9931", "Address the Prometheus metrics server listens on")
	fs.StringVar(&o.logsBaseURL, "logs-base-url", "", "Base URL handed to workers for progress-log uploads")
	fs.DurationVar(&o.runTimeout, "run-timeout", 60*time.Minute, "How long a worker may hold an active run before it is marked timed out")
	fs.Parse(os.Args[1:])
	return o
}

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	o := gatherOptions()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var agent config.Agent
	if o.configPath != "" {
		if err := agent.Start(o.configPath); err != nil {
			logrus.WithError(err).Fatal("loading configuration")
		}
	}

	st, err := store.Open(ctx, o.postgresDSN)
	if err != nil {
		logrus.WithError(err).Fatal("connecting to postgres")
	}
	defer st.Close()

	logs, err := logstore.Open(ctx, o.logStoreURL)
	if err != nil {
		logrus.WithError(err).Fatal("opening log store")
	}
	defer logs.Close()

	artifacts, err := artifactstore.Open(ctx, o.artifactURL, o.artifactBackupURL)
	if err != nil {
		logrus.WithError(err).Fatal("opening artifact store")
	}
	defer artifacts.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	sched := scheduler.New(st, nil)
	bc := backchannel.NewPolling()

	publishModes := map[string]model.PublishMode{}
	var publishQueue runner.PublishQueue
	if cfg := agent.Config(); cfg != nil {
		for _, c := range cfg.Campaign {
			if c.PublishMode != "" {
				publishModes[c.Name] = model.PublishMode(c.PublishMode)
			}
		}
		if p := buildPublisher(st, m, cfg); p != nil {
			q := publish.NewQueue(p, bucketForCampaign(cfg), func(campaign string) model.PublishMode {
				return publishModes[campaign]
			})
			go q.Run(ctx)
			publishQueue = q
		}
	}

	srv := runner.New(st, sched, logs, artifacts, m, bc, publishQueue)
	srv.RunTimeout = o.runTimeout
	srv.LogsBaseURL = o.logsBaseURL
	srv.PublishModes = publishModes

	stopSweeper, err := srv.StartSweeper(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("starting timeout sweeper")
	}
	defer stopSweeper()

	metricsServer := &http.Server{Addr: o.metricsAddress, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("metrics server")
		}
	}()

	httpServer := &http.Server{Addr: o.listenAddress, Handler: srv.Router(st)}
	go func() {
		logrus.WithField("address", o.listenAddress).Info("runner listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("runner HTTP server")
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	httpServer.Shutdown(shutdownCtx)
	metricsServer.Shutdown(shutdownCtx)
}

// bucketForCampaign resolves a (codebase, campaign) publish request to its
// configured destination bucket; a campaign not found in config publishes
// nowhere.
func bucketForCampaign(cfg *config.Config) func(codebase, campaign string) string {
	return func(codebase, campaign string) string {
		c, ok := cfg.GetCampaign(campaign)
		if !ok {
			return ""
		}
		return c.Bucket
	}
}

// buildPublisher wires a publish.Pipeline from configuration if at least
// one campaign opts into a non-skip publish mode; a config with no such
// campaigns runs without an in-process publisher, matching a split
// deployment where janitor-publisher owns the PublishQueue instead.
func buildPublisher(st *store.Store, m *metrics.Metrics, cfg *config.Config) *publish.Pipeline {
	hasPublishing := false
	for _, c := range cfg.Campaign {
		if c.PublishMode != "" && c.PublishMode != string(model.PublishSkip) {
			hasPublishing = true
		}
	}
	if !hasPublishing {
		return nil
	}

	var f forge.Forge
	rl := publish.NewFixedRateLimiter(nil)
	return publish.New(st, f, rl, m, "")
}

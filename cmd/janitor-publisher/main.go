// Command janitor-publisher runs the publish pipeline as its own process:
// it periodically refreshes open proposals' forge-reported state, without
// serving the worker-facing HTTP surface itself. Its publish.Queue is
// in-process, so it drains only requests enqueued within this process;
// requests enqueued by a separate janitor-runner do not reach it. In the
// default single-binary deployment janitor-runner embeds this pipeline
// directly instead.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/janitor-project/janitord/internal/config"
	"github.com/janitor-project/janitord/internal/forge"
	"github.com/janitor-project/janitord/internal/metrics"
	"github.com/janitor-project/janitord/internal/model"
	"github.com/janitor-project/janitord/internal/publish"
	"github.com/janitor-project/janitord/internal/runner"
	"github.com/janitor-project/janitord/internal/store"
)

type options struct {
	configPath        string
	postgresDSN       string
	gerritURL         string
	gerritUsername    string
	gerritPasswordFile string
	refreshInterval   time.Duration
	refreshBatchSize  int
}

func gatherOptions() options {
	var o options
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.StringVar(&o.configPath, "config", "", "Path to the janitord text-format configuration file")
	fs.StringVar(&o.postgresDSN, "postgres-dsn", "", "Postgres connection string")
	fs.StringVar(&o.gerritURL, "gerrit-url", "", "Base URL of the Gerrit instance proposals are opened against")
	fs.StringVar(&o.gerritUsername, "gerrit-username", "", "Gerrit service account username")
	fs.StringVar(&o.gerritPasswordFile, "gerrit-password-file", "", "Path to a file containing the Gerrit service account's HTTP password")
	fs.DurationVar(&o.refreshInterval, "refresh-interval", 5*time.Minute, "How often open proposals are refreshed against the forge")
	fs.IntVar(&o.refreshBatchSize, "refresh-batch-size", 50, "Maximum number of stalest proposals refreshed per interval")
	fs.Parse(os.Args[1:])
	return o
}

func (o *options) gerritPassword() (string, error) {
	if o.gerritPasswordFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(o.gerritPasswordFile)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	o := gatherOptions()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var agent config.Agent
	if err := agent.Start(o.configPath); err != nil {
		logrus.WithError(err).Fatal("loading configuration")
	}
	cfg := agent.Config()

	st, err := store.Open(ctx, o.postgresDSN)
	if err != nil {
		logrus.WithError(err).Fatal("connecting to postgres")
	}
	defer st.Close()

	m := metrics.New(prometheus.NewRegistry())

	var f forge.Forge
	if o.gerritURL != "" {
		password, err := o.gerritPassword()
		if err != nil {
			logrus.WithError(err).Fatal("reading gerrit password file")
		}
		gf, err := forge.NewGerritForge(o.gerritURL, o.gerritUsername, password)
		if err != nil {
			logrus.WithError(err).Fatal("constructing gerrit forge client")
		}
		f = gf
	}

	rl := publish.NewSlowStartRateLimiter(nil)
	pipeline := publish.New(st, f, rl, m, "")

	modes := func(campaign string) model.PublishMode {
		c, ok := cfg.GetCampaign(campaign)
		if !ok {
			return model.PublishSkip
		}
		return model.PublishMode(c.PublishMode)
	}
	bucket := func(codebase, campaign string) string {
		c, ok := cfg.GetCampaign(campaign)
		if !ok {
			return ""
		}
		return c.Bucket
	}

	queue := publish.NewQueue(pipeline, bucket, modes)
	go queue.Run(ctx)

	runRefreshLoop(ctx, pipeline, o.refreshInterval, o.refreshBatchSize)
}

// runRefreshLoop periodically re-checks every tracked open proposal's
// forge-reported state, per spec.md §4.4's proposal-refresh scenario, and
// blocks until ctx is cancelled.
func runRefreshLoop(ctx context.Context, p *publish.Pipeline, interval time.Duration, batchSize int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logrus.Info("shutting down")
			return
		case <-ticker.C:
			n, err := p.RefreshProposals(ctx, batchSize, time.Now())
			if err != nil {
				logrus.WithError(err).Warn("refreshing proposals")
				continue
			}
			logrus.WithField("count", n).Info("refreshed proposals")
		}
	}
}

// publish.Queue satisfies runner.PublishQueue, which is how janitor-runner
// enqueues into its embedded pipeline.
var _ runner.PublishQueue = (*publish.Queue)(nil)

// Command janitor-worker is the reference worker: it long-polls a runner
// for work and executes it. Per spec.md's Non-goals, in-process execution
// isn't a goal of the system — workers are external processes, and this
// binary exists so the Assignment/Metadata contract in internal/assignment
// is exercised end to end rather than only unit-tested.
package main

import (
	"context"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/sirupsen/logrus"

	"github.com/janitor-project/janitord/internal/workerclient"
)

type options struct {
	runnerURL    string
	workerName   string
	passwordFile string
	codebase     string
	campaign     string
	pollInterval time.Duration
	once         bool
}

func gatherOptions() options {
	var o options
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.StringVar(&o.runnerURL, "runner-url", "http://localhost:9930", "Base URL of the janitor-runner to poll")
	fs.StringVar(&o.workerName, "worker-name", "", "Worker credential name for Basic Auth against the runner")
	fs.StringVar(&o.passwordFile, "password-file", "", "Path to a file containing the worker credential's password")
	fs.StringVar(&o.codebase, "codebase", "", "Only accept assignments for this codebase (empty: any)")
	fs.StringVar(&o.campaign, "campaign", "", "Only accept assignments for this campaign (empty: any)")
	fs.DurationVar(&o.pollInterval, "poll-interval", 10*time.Second, "How long to wait between assignment polls when the queue is empty")
	fs.BoolVar(&o.once, "once", false, "Run a single assignment and exit instead of looping forever")
	fs.Parse(os.Args[1:])
	return o
}

func (o *options) password() (string, error) {
	if o.passwordFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(o.passwordFile)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	o := gatherOptions()

	password, err := o.password()
	if err != nil {
		logrus.WithError(err).Fatal("reading password file")
	}

	client := workerclient.New(o.runnerURL, o.workerName, password)
	client.Codebase = o.codebase
	client.Campaign = o.campaign

	ctx := context.Background()
	for {
		assignment, err := client.Assign(ctx)
		if err == workerclient.ErrQueueEmpty {
			if o.once {
				return
			}
			time.Sleep(o.pollInterval)
			continue
		}
		if err != nil {
			logrus.WithError(err).Error("requesting assignment")
			if o.once {
				os.Exit(1)
			}
			time.Sleep(o.pollInterval)
			continue
		}

		log := logrus.WithFields(logrus.Fields{"run_id": assignment.RunID, "codebase": assignment.Codebase, "campaign": assignment.Campaign})
		log.Info("starting assignment")

		runCtx, cancel := context.WithDeadline(ctx, assignment.Deadline)
		err = client.Run(runCtx, assignment)
		cancel()
		if err != nil {
			log.WithError(err).Error("reporting assignment result")
		} else {
			log.Info("assignment finished")
		}

		if o.once {
			return
		}
	}
}

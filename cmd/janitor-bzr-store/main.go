// Command janitor-bzr-store serves janitord's Bazaar-backed VcsStore
// (spec.md §4.7), the legacy sibling of janitor-git-store for codebases
// still hosted on Bazaar/Breezy. Same public/admin split, same HTTP
// contract shape, backed by internal/vcsstore/bzr instead of git.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/sirupsen/logrus"

	"github.com/janitor-project/janitord/internal/vcsstore/bzr"
)

type options struct {
	baseDir       string
	publicAddress string
	adminAddress  string
}

func gatherOptions() options {
	var o options
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.StringVar(&o.baseDir, "base-dir", "", "Directory the store's repositories are rooted at")
	fs.StringVar(&o.publicAddress, "public-address", ":9950", "Address the read-only public interface listens on")
	fs.StringVar(&o.adminAddress, "admin-address", "", "Address the read/write admin interface listens on (empty: disabled)")
	fs.Parse(os.Args[1:])
	return o
}

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	o := gatherOptions()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := bzr.New(o.baseDir)
	if err != nil {
		logrus.WithError(err).Fatal("initializing bzr store")
	}

	publicServer := &http.Server{Addr: o.publicAddress, Handler: st.Router(false)}
	var adminServer *http.Server
	if o.adminAddress != "" {
		adminServer = &http.Server{Addr: o.adminAddress, Handler: st.Router(true)}
	}

	go func() {
		logrus.WithField("address", o.publicAddress).Info("bzr store: public interface listening")
		if err := publicServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("public HTTP server")
		}
	}()
	if adminServer != nil {
		go func() {
			logrus.WithField("address", o.adminAddress).Info("bzr store: admin interface listening")
			if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logrus.WithError(err).Fatal("admin HTTP server")
			}
		}()
	}

	<-ctx.Done()
	logrus.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	publicServer.Shutdown(shutdownCtx)
	if adminServer != nil {
		adminServer.Shutdown(shutdownCtx)
	}
}

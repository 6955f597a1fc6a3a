// Command janitor-admin is janitord's operator CLI: one-off administrative
// actions against the shared Postgres store that don't warrant their own
// HTTP surface, starting with worker credential management (spec.md §6's
// "worker credentials table").
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/sirupsen/logrus"

	"github.com/janitor-project/janitord/internal/store"
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "worker":
		runWorkerCommand(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: janitor-admin worker add-credential --postgres-dsn=... --username=... [--password=...]")
	fmt.Fprintln(os.Stderr, "       janitor-admin worker revoke-credential --postgres-dsn=... --username=...")
}

func runWorkerCommand(args []string) {
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	switch args[0] {
	case "add-credential":
		runAddCredential(args[1:])
	case "revoke-credential":
		runRevokeCredential(args[1:])
	default:
		usage()
		os.Exit(2)
	}
}

type credentialOptions struct {
	postgresDSN string
	username    string
	password    string
}

func gatherCredentialOptions(name string, args []string) credentialOptions {
	var o credentialOptions
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.StringVar(&o.postgresDSN, "postgres-dsn", "", "Postgres connection string")
	fs.StringVar(&o.username, "username", "", "Worker credential username")
	fs.StringVar(&o.password, "password", "", "Worker credential password (add-credential only; prompted if empty)")
	fs.Parse(args)
	if o.username == "" {
		logrus.Fatal("--username is required")
	}
	return o
}

func runAddCredential(args []string) {
	o := gatherCredentialOptions("worker add-credential", args)
	if o.password == "" {
		o.password = promptPassword()
	}

	ctx := context.Background()
	st, err := store.Open(ctx, o.postgresDSN)
	if err != nil {
		logrus.WithError(err).Fatal("connecting to postgres")
	}
	defer st.Close()

	if err := st.SetWorkerCredential(ctx, o.username, o.password); err != nil {
		logrus.WithError(err).Fatal("setting worker credential")
	}
	logrus.WithField("username", o.username).Info("worker credential set")
}

func runRevokeCredential(args []string) {
	o := gatherCredentialOptions("worker revoke-credential", args)

	ctx := context.Background()
	st, err := store.Open(ctx, o.postgresDSN)
	if err != nil {
		logrus.WithError(err).Fatal("connecting to postgres")
	}
	defer st.Close()

	if err := st.RevokeWorkerCredential(ctx, o.username); err != nil {
		logrus.WithError(err).Fatal("revoking worker credential")
	}
	logrus.WithField("username", o.username).Info("worker credential revoked")
}

func promptPassword() string {
	fmt.Fprint(os.Stderr, "Password: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		logrus.WithError(err).Fatal("reading password from stdin")
	}
	return strings.TrimRight(line, "\r\n")
}

// Command janitor-archive regenerates one APT suite's on-disk metadata
// (Packages, Sources, Release, and their by-hash copies) from the scanned
// contents of a build output directory, per spec.md §4.8. It is meant to
// run on a timer (cron, systemd.timer) rather than serve traffic itself;
// the generated tree is served by a plain static file server in front of
// OutputDir.
package main

import (
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/sirupsen/logrus"

	"github.com/janitor-project/janitord/internal/apt"
	"github.com/janitor-project/janitord/internal/config"
)

type options struct {
	configPath string
	repository string
	sourceDir  string
	outputDir  string
	origin     string
	label      string
	suite      string
	codename   string
	keyringFile string
}

func gatherOptions() options {
	var o options
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.StringVar(&o.configPath, "config", "", "Path to the janitord text-format configuration file")
	fs.StringVar(&o.repository, "repository", "", "Name of the apt_repository entry in config to build")
	fs.StringVar(&o.sourceDir, "source-dir", "", "Directory of .deb/.dsc artifacts to scan")
	fs.StringVar(&o.outputDir, "output-dir", "", "Directory to write the generated archive tree into")
	fs.StringVar(&o.origin, "origin", "janitord", "Release file Origin field")
	fs.StringVar(&o.label, "label", "janitord", "Release file Label field")
	fs.StringVar(&o.suite, "suite", "", "Release file Suite field (defaults to the repository name)")
	fs.StringVar(&o.codename, "codename", "", "Release file Codename field (defaults to the repository name)")
	fs.StringVar(&o.keyringFile, "keyring-file", "", "Path to an ASCII-armored secret keyring to sign Release with (optional)")
	fs.Parse(os.Args[1:])
	return o
}

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	o := gatherOptions()

	cfg, err := config.Load(o.configPath)
	if err != nil {
		logrus.WithError(err).Fatal("loading configuration")
	}

	repo, ok := cfg.GetAptRepository(o.repository)
	if !ok {
		logrus.WithField("repository", o.repository).Fatal("no such apt_repository in configuration")
	}

	suite := o.suite
	if suite == "" {
		suite = repo.Name
	}
	codename := o.codename
	if codename == "" {
		codename = repo.Name
	}

	buildOpts := apt.BuildOptions{
		SourceDir:     o.sourceDir,
		OutputDir:     o.outputDir,
		Origin:        o.origin,
		Label:         o.label,
		Suite:         suite,
		Codename:      codename,
		Components:    repo.Component,
		Architectures: repo.Architecture,
	}

	signingKeyID := repo.SigningKeyID
	if signingKeyID != "" && o.keyringFile == "" {
		logrus.WithField("signing_key_id", signingKeyID).Warn("apt_repository names a signing key but no --keyring-file was given; Release will be unsigned")
	}
	if o.keyringFile != "" {
		data, err := os.ReadFile(o.keyringFile)
		if err != nil {
			logrus.WithError(err).Fatal("reading keyring file")
		}
		keyring, err := apt.LoadArmoredKeyring(data)
		if err != nil {
			logrus.WithError(err).Fatal("loading keyring")
		}
		buildOpts.Keyring = keyring
	}

	rel, err := apt.Build(buildOpts, time.Now())
	if err != nil {
		logrus.WithError(err).Fatal("building archive")
	}

	logrus.WithFields(logrus.Fields{
		"repository":   o.repository,
		"components":   strings.Join(repo.Component, ","),
		"architectures": strings.Join(repo.Architecture, ","),
		"files":         len(rel.Files),
	}).Info("archive build complete")
}

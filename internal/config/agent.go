package config

import (
	"fmt"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Getter returns the most recently loaded Config. It is safe for
// concurrent use.
type Getter func() *Config

// Agent loads a Config from disk and keeps it fresh by watching the file
// for writes, mirroring prow/config.Agent's atomic-pointer-plus-fsnotify
// pattern.
type Agent struct {
	value atomic.Pointer[Config]
}

// Start performs the initial load and launches a background watcher that
// reloads on every write to path. It returns once the initial load
// succeeds; reload failures after that are logged and the last-good
// config is kept in place.
func (a *Agent) Start(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	a.value.Store(cfg)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("watching config %s: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		log := logrus.WithField("component", "config-agent")
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					log.WithError(err).Error("failed to reload config, keeping previous version")
					continue
				}
				a.value.Store(cfg)
				log.Info("reloaded config")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Error("config watcher error")
			}
		}
	}()
	return nil
}

// Config returns the currently loaded configuration.
func (a *Agent) Config() *Config {
	return a.value.Load()
}

// Getter returns a Getter bound to this agent.
func (a *Agent) Getter() Getter {
	return a.Config
}

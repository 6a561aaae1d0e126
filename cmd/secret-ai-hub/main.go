package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"

	"github.com/scrtlabs/secret-ai-hub/gateway"
	"github.com/scrtlabs/secret-ai-hub/gateway/config"
)

var (
	version = "0"
	commit  = "abcd1234"
	date    = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the gateway config file")
	listen := flag.String("listen", "", "listen address, overrides the config file")
	watchConfig := flag.Bool("watch-config", true, "reload the config when the file changes")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("secret-ai-hub version: %s (%s), built at %s\n", version, commit, date)
		os.Exit(0)
	}

	// .env is optional; environment overrides are applied by LoadConfig
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("could not load config", "path", *configPath, "error", err)
	}
	if addr := strings.TrimSpace(*listen); addr != "" {
		cfg.Listen = addr
	}

	gm := gateway.New(cfg)
	gm.SetConfigPath(*configPath)
	gm.SetVersionInfo(version, commit, date)

	if *watchConfig {
		stopWatcher, err := watchConfigFile(*configPath, gm)
		if err != nil {
			log.Warn("config file watching disabled", "error", err)
		} else {
			defer stopWatcher()
		}
	}

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: gm,
	}

	go func() {
		log.Info("secret-ai-hub gateway listening", "addr", cfg.Listen, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down gateway")
	gm.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// watchConfigFile reloads the gateway config when the file is rewritten.
// Editors and orchestrators replace config files instead of writing in
// place, so the watch is on the parent directory with a short debounce.
func watchConfigFile(path string, gm *gateway.GatewayManager) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		var reloadTimer *time.Timer
		for {
			select {
			case <-done:
				if reloadTimer != nil {
					reloadTimer.Stop()
				}
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != absPath {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if reloadTimer != nil {
					reloadTimer.Stop()
				}
				reloadTimer = time.AfterFunc(250*time.Millisecond, func() {
					if err := gm.ReloadConfig(); err != nil {
						log.Error("config reload failed", "path", absPath, "error", err)
						return
					}
					log.Info("config reloaded", "path", absPath)
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("config watcher error", "error", err)
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}

// Copyright (c) 2025 SeeKT
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"snapkey/config"
	"snapkey/gui"
	"snapkey/history"
	"snapkey/logging"
	"snapkey/pipeline"
	"snapkey/screenshot"
	"snapkey/upload"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("snapkey: %v", err)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("snapkey", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file (default: <user config dir>/snapkey/config.json)")
	limit := fs.Int("limit", 20, "Number of entries shown by the history command")
	config.BindFlags(fs)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: snapkey [flags] [run|history|config]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	command := "run"
	if fs.NArg() > 0 {
		command = fs.Arg(0)
	}

	// 設定のロード
	cfg, err := config.LoadConfig(*configPath, fs)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: stderr})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	switch command {
	case "run":
		return runTray(cfg, logger)
	case "history":
		return showHistory(cfg, *limit, stdout)
	case "config":
		path, err := config.SaveConfig(cfg, *configPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Config saved to %s\n", path)
		return nil
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func runTray(cfg *config.Config, logger *slog.Logger) error {
	var uploader *upload.Uploader
	if cfg.Upload.Enabled {
		uploader = upload.New(upload.Options{
			Endpoint:    cfg.Upload.Endpoint,
			APIKey:      cfg.Upload.APIKey,
			Timeout:     cfg.Upload.Timeout,
			MaxInFlight: cfg.Upload.MaxInFlight,
			Logger:      logger.With("component", "upload"),
		})
	}

	var (
		recorder pipeline.Recorder
		store    *history.Store
	)
	if cfg.History.Enabled {
		s, err := history.Open(cfg.History.Path)
		if err != nil {
			// 履歴が開けなくても撮影は続ける
			logger.Warn("screenshot history disabled", "error", err)
		} else {
			store = s
			recorder = s
		}
	}

	opts := pipeline.Options{
		Grabber:  screenshot.DisplayGrabber{Display: cfg.Capture.Display},
		SaveDir:  cfg.SaveDirectory,
		Recorder: recorder,
		CopyPath: cfg.Clipboard.CopyPath,
		Logger:   logger.With("component", "capture"),
	}
	// nil の *Uploader をインターフェースに入れない
	if uploader != nil {
		opts.Uploader = uploader
	}
	shots := pipeline.New(opts)

	// GUIアプリケーションの初期化と実行
	appCtx, err := gui.NewApp(cfg, gui.Options{
		Pipeline: shots,
		Uploader: uploader,
		Logger:   logger,
	})
	if err != nil {
		closeHistory(shots, store, logger)
		return err
	}

	logger.Info("screenshot tool active",
		"hotkey", appCtx.Listener.Binding().String(),
		"save_directory", cfg.SaveDirectory,
		"upload_enabled", cfg.Upload.Enabled,
		"upload_endpoint", cfg.Upload.Endpoint,
		"config_source", cfg.Source,
	)
	appCtx.Run()
	// Run はアップロードの猶予を待ってから戻る。残りの結果は記録しない
	closeHistory(shots, store, logger)
	logger.Info("screenshot tool stopped")
	return nil
}

func closeHistory(shots *pipeline.Pipeline, store *history.Store, logger *slog.Logger) {
	shots.Close()
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		logger.Warn("failed to close screenshot history", "error", err)
	}
}

func showHistory(cfg *config.Config, limit int, stdout io.Writer) error {
	if !cfg.History.Enabled {
		return errors.New("history is disabled in the configuration")
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	shots, err := store.Recent(limit)
	if err != nil {
		return err
	}
	if len(shots) == 0 {
		fmt.Fprintln(stdout, "No screenshots recorded yet.")
		return nil
	}
	history.Render(stdout, shots)
	return nil
}

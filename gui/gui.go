// Copyright (c) 2025 SeeKT
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
package gui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/driver/desktop"

	"snapkey/config"
	"snapkey/hotkey"
	"snapkey/pipeline"
	"snapkey/upload"
)

// AppID は fyne アプリケーションの一意な ID です。
const AppID = "io.github.seekt.snapkey"

// Options は AppContext の依存関係です。
type Options struct {
	App      fyne.App // nil の場合は app.NewWithID で生成
	Pipeline *pipeline.Pipeline
	Uploader *upload.Uploader // アップロード無効時は nil
	Backend  hotkey.Backend   // nil の場合はプラットフォームのデフォルト
	Logger   *slog.Logger
}

// AppContext はトレイアイコン、ホットキーの状態、撮影パイプラインを保持します。
type AppContext struct {
	App      fyne.App
	Config   *config.Config
	State    *hotkey.State // トレイのトグルだけが書き込む
	Pipeline *pipeline.Pipeline
	Listener *hotkey.Listener
	Uploader *upload.Uploader
	Logger   *slog.Logger

	menu       *fyne.Menu
	toggleItem *fyne.MenuItem
	openURL    func(*url.URL) error
}

// NewApp は新しいアプリケーションコンテキストを作成し、トレイメニューを初期化します。
func NewApp(cfg *config.Config, opts Options) (*AppContext, error) {
	binding, err := hotkey.ParseBinding(cfg.Hotkey)
	if err != nil {
		return nil, fmt.Errorf("invalid hotkey %q: %w", cfg.Hotkey, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a := opts.App
	if a == nil {
		a = app.NewWithID(AppID)
	}

	ac := &AppContext{
		App:      a,
		Config:   cfg,
		State:    hotkey.NewState(),
		Pipeline: opts.Pipeline,
		Uploader: opts.Uploader,
		Logger:   logger,
	}
	ac.openURL = a.OpenURL
	ac.Listener = hotkey.NewListener(opts.Backend, binding, ac.State, ac.onHotkey, logger)

	ac.menu = ac.buildMenu(binding)
	if desk, ok := a.(desktop.App); ok {
		desk.SetSystemTrayMenu(ac.menu)
		if icon := cameraIcon(); icon != nil {
			desk.SetSystemTrayIcon(icon)
		}
	} else {
		logger.Warn("system tray not supported by this driver")
	}

	return ac, nil
}

// buildMenu はトレイのコンテキストメニューを構築します。
func (ac *AppContext) buildMenu(binding hotkey.Binding) *fyne.Menu {
	info := fyne.NewMenuItem(fmt.Sprintf("Screenshot Hotkey (%s)", binding), nil)
	info.Disabled = true

	ac.toggleItem = fyne.NewMenuItem("Toggle Hotkey", ac.toggleHotkey)
	ac.toggleItem.Checked = ac.State.Enabled()

	open := fyne.NewMenuItem("Open Screenshots Folder", ac.openFolder)

	quit := fyne.NewMenuItem("Quit", ac.quit)
	quit.IsQuit = true

	return fyne.NewMenu("Screenshot Tool - "+binding.String(), info, ac.toggleItem, open, quit)
}

// toggleHotkey はホットキーの有効/無効を切り替え、チェック表示を同期します。
func (ac *AppContext) toggleHotkey() {
	enabled := ac.State.Toggle()
	ac.toggleItem.Checked = enabled
	ac.menu.Refresh()
	ac.Logger.Info("hotkey toggled", "enabled", enabled)
}

// openFolder は保存先ディレクトリをファイルブラウザで開きます。
func (ac *AppContext) openFolder() {
	dir := ac.Config.SaveDirectory
	if err := os.MkdirAll(dir, 0755); err != nil {
		ac.Logger.Error("failed to create screenshot folder", "dir", dir, "error", err)
		return
	}
	u, err := folderURL(dir)
	if err != nil {
		ac.Logger.Error("failed to resolve screenshot folder", "dir", dir, "error", err)
		return
	}
	if err := ac.openURL(u); err != nil {
		ac.Logger.Error("failed to open screenshot folder", "dir", dir, "error", err)
	}
}

// folderURL はディレクトリの file:// URL を返します。
func folderURL(dir string) (*url.URL, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p // Windows のドライブレター
	}
	return &url.URL{Scheme: "file", Path: p}, nil
}

func (ac *AppContext) quit() {
	ac.Logger.Info("quit requested from tray")
	ac.App.Quit()
}

// onHotkey はホットキーのコールバックです。撮影と保存が終わるまで戻りません。
func (ac *AppContext) onHotkey(ctx context.Context) {
	if ac.Pipeline == nil {
		return
	}
	// エラーは Pipeline 側でログ済み
	_, _ = ac.Pipeline.Trigger(ctx)
}

// Run はホットキーの監視を開始し、トレイのイベントループを実行します。Quit が選ばれるまで戻りません。
func (ac *AppContext) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := ac.Listener.Run(ctx); err != nil {
			if errors.Is(err, hotkey.ErrBackendNotAvailable) {
				ac.Logger.Warn("global hotkey unavailable on this platform", "error", err)
				return
			}
			ac.Logger.Error("global hotkey stopped", "error", err)
		}
	}()

	ac.App.Run()
	cancel()

	if ac.Uploader != nil {
		grace := ac.Config.Upload.DrainTimeout
		if ac.Uploader.Drain(grace) {
			return
		}
		// 終了時は実行中のアップロードを待たない
		ac.Logger.Warn("abandoning in-flight uploads", "count", ac.Uploader.InFlight(), "grace", grace)
	}
}

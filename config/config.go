// Copyright (c) 2025 SeeKT
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"snapkey/hotkey"
)

// AppName は設定ディレクトリや環境変数の接頭辞に使うアプリケーション名です。
const AppName = "snapkey"

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	SaveDirectory string          `mapstructure:"save_directory" json:"save_directory"`
	Hotkey        string          `mapstructure:"hotkey" json:"hotkey"` // 例: "f12", "ctrl+shift+s"
	Capture       CaptureConfig   `mapstructure:"capture" json:"capture"`
	Upload        UploadConfig    `mapstructure:"upload" json:"upload"`
	Clipboard     ClipboardConfig `mapstructure:"clipboard" json:"clipboard"`
	History       HistoryConfig   `mapstructure:"history" json:"history"`
	Log           LogConfig       `mapstructure:"log" json:"log"`

	// 読み込み元のファイルパス (デフォルトのみの場合は空)
	Source string `mapstructure:"-" json:"-"`
}

// CaptureConfig は撮影対象の設定です。
type CaptureConfig struct {
	Display int `mapstructure:"display" json:"display"` // -1 で全ディスプレイ
}

// UploadConfig はアップロード先の設定です。
type UploadConfig struct {
	Enabled      bool          `mapstructure:"enabled" json:"enabled"`
	Endpoint     string        `mapstructure:"endpoint" json:"endpoint"`
	APIKey       string        `mapstructure:"api_key" json:"api_key"`
	Timeout      time.Duration `mapstructure:"timeout" json:"timeout"`
	MaxInFlight  int           `mapstructure:"max_in_flight" json:"max_in_flight"`
	DrainTimeout time.Duration `mapstructure:"drain_timeout" json:"drain_timeout"` // 0 で終了時に待たない
}

// ClipboardConfig は保存先パスのクリップボードコピー設定です。
type ClipboardConfig struct {
	CopyPath bool `mapstructure:"copy_path" json:"copy_path"`
}

// HistoryConfig は撮影履歴データベースの設定です。
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Path    string `mapstructure:"path" json:"path"`
}

// LogConfig はログ出力の設定です。
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

// NewDefaultConfig はデフォルトの設定値を返します。
func NewDefaultConfig() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// エラーが発生した場合のフォールバックとしてカレントディレクトリを使用
		slog.Warn("could not get user home directory, using current directory for screenshots", "error", err)
		homeDir = "."
	}

	historyPath := AppName + ".db"
	if dir, err := appConfigDir(); err == nil {
		historyPath = filepath.Join(dir, "history.db")
	}

	return &Config{
		SaveDirectory: filepath.Join(homeDir, "screenshots"),
		Hotkey:        "f12",
		Capture:       CaptureConfig{Display: -1},
		Upload: UploadConfig{
			Enabled:     true,
			Endpoint:    "http://localhost:3000/api/upload",
			Timeout:     30 * time.Second,
			MaxInFlight: 4,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    historyPath,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func appConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, AppName), nil
}

// ConfigFilePath は設定ファイルのパスを返します。
func ConfigFilePath() (string, error) {
	appDir, err := appConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(appDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory %s: %w", appDir, err)
	}
	return filepath.Join(appDir, "config.json"), nil
}

// BindFlags はコマンドラインフラグを定義します。値は LoadConfig で viper に結び付けられます。
func BindFlags(fs *pflag.FlagSet) {
	fs.String("dir", "", "Directory where screenshots are saved")
	fs.String("hotkey", "", "Global hotkey binding (e.g. f12, ctrl+shift+s)")
	fs.String("endpoint", "", "Upload endpoint URL")
	fs.String("api-key", "", "Bearer token sent with uploads")
	fs.Bool("no-upload", false, "Disable background uploads")
	fs.String("log-level", "", "Override log level (debug, info, warn, error)")
	fs.String("log-format", "", "Override log output format (json, console)")
}

var flagKeys = map[string]string{
	"dir":        "save_directory",
	"hotkey":     "hotkey",
	"endpoint":   "upload.endpoint",
	"api-key":    "upload.api_key",
	"log-level":  "log.level",
	"log-format": "log.format",
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("save_directory", cfg.SaveDirectory)
	v.SetDefault("hotkey", cfg.Hotkey)
	v.SetDefault("capture.display", cfg.Capture.Display)
	v.SetDefault("upload.enabled", cfg.Upload.Enabled)
	v.SetDefault("upload.endpoint", cfg.Upload.Endpoint)
	v.SetDefault("upload.api_key", cfg.Upload.APIKey)
	v.SetDefault("upload.timeout", cfg.Upload.Timeout)
	v.SetDefault("upload.max_in_flight", cfg.Upload.MaxInFlight)
	v.SetDefault("upload.drain_timeout", cfg.Upload.DrainTimeout)
	v.SetDefault("clipboard.copy_path", cfg.Clipboard.CopyPath)
	v.SetDefault("history.enabled", cfg.History.Enabled)
	v.SetDefault("history.path", cfg.History.Path)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}

// LoadConfig は設定ファイル、環境変数、フラグの順に設定を重ねて読み込みます。
// path が空の場合はユーザー設定ディレクトリの config.json を使います。ファイルが存在しなければデフォルト設定を使います。
func LoadConfig(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, NewDefaultConfig())

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		cfgPath, err := ConfigFilePath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config file path: %w", err)
		}
		path = cfgPath
	}
	v.SetConfigFile(path)
	v.SetConfigType("json")

	source := path
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound), errors.Is(err, os.ErrNotExist):
			// ファイルが存在しない場合はデフォルト設定のまま続行
			source = ""
		default:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
		if noUpload, err := fs.GetBool("no-upload"); err == nil && noUpload {
			v.Set("upload.enabled", false)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config data: %w", err)
	}
	cfg.Source = source

	// フラグ未指定時の空文字はデフォルトに戻す
	defaults := NewDefaultConfig()
	if cfg.SaveDirectory == "" {
		cfg.SaveDirectory = defaults.SaveDirectory
	}
	if cfg.Hotkey == "" {
		cfg.Hotkey = defaults.Hotkey
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaults.Log.Format
	}
	if cfg.Upload.Endpoint == "" && cfg.Upload.Enabled {
		cfg.Upload.Endpoint = defaults.Upload.Endpoint
	}
	if cfg.Upload.MaxInFlight < 1 {
		cfg.Upload.MaxInFlight = 1
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は設定値の整合性を検証します。
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SaveDirectory) == "" {
		return errors.New("save_directory must not be empty")
	}
	if _, err := hotkey.ParseBinding(c.Hotkey); err != nil {
		return fmt.Errorf("invalid hotkey %q: %w", c.Hotkey, err)
	}
	if c.Upload.Enabled {
		u, err := url.Parse(c.Upload.Endpoint)
		if err != nil || u.Host == "" {
			return fmt.Errorf("invalid upload endpoint %q", c.Upload.Endpoint)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("upload endpoint must be http or https, got %q", u.Scheme)
		}
		if c.Upload.Timeout <= 0 {
			return errors.New("upload.timeout must be positive")
		}
	}
	if c.Upload.MaxInFlight < 1 {
		return fmt.Errorf("upload.max_in_flight must be at least 1, got %d", c.Upload.MaxInFlight)
	}
	if c.Upload.DrainTimeout < 0 {
		return errors.New("upload.drain_timeout must not be negative")
	}
	if c.History.Enabled && strings.TrimSpace(c.History.Path) == "" {
		return errors.New("history.path must not be empty when history is enabled")
	}
	return nil
}

// SaveConfig は現在の設定をファイルに保存します。path が空の場合は ConfigFilePath を使います。
func SaveConfig(cfg *Config, path string) (string, error) {
	if path == "" {
		p, err := ConfigFilePath()
		if err != nil {
			return "", fmt.Errorf("failed to get config file path: %w", err)
		}
		path = p
	} else if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.Set("save_directory", cfg.SaveDirectory)
	v.Set("hotkey", cfg.Hotkey)
	v.Set("capture.display", cfg.Capture.Display)
	v.Set("upload.enabled", cfg.Upload.Enabled)
	v.Set("upload.endpoint", cfg.Upload.Endpoint)
	v.Set("upload.api_key", cfg.Upload.APIKey)
	v.Set("upload.timeout", cfg.Upload.Timeout.String())
	v.Set("upload.max_in_flight", cfg.Upload.MaxInFlight)
	v.Set("upload.drain_timeout", cfg.Upload.DrainTimeout.String())
	v.Set("clipboard.copy_path", cfg.Clipboard.CopyPath)
	v.Set("history.enabled", cfg.History.Enabled)
	v.Set("history.path", cfg.History.Path)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.format", cfg.Log.Format)

	v.SetConfigType("json")
	if err := v.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return path, nil
}

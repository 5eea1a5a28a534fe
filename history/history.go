// Copyright (c) 2025 SeeKT
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
package history

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// UploadStatus は撮影ごとのアップロード結果です。
type UploadStatus string

const (
	UploadDisabled UploadStatus = "disabled"
	UploadPending  UploadStatus = "pending"
	UploadDone     UploadStatus = "uploaded"
	UploadFailed   UploadStatus = "failed"
	UploadTimeout  UploadStatus = "timeout"
	UploadError    UploadStatus = "error"
)

// Shot は 1 回の撮影の記録です。
type Shot struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"not null"`
	Path         string `gorm:"not null"`
	Width        int
	Height       int
	Bytes        int
	CapturedAt   time.Time    `gorm:"index"`
	ImageID      string       `gorm:"index"`
	UploadStatus UploadStatus `gorm:"not null"`
	UploadDetail string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store は SQLite に撮影履歴を保存します。
type Store struct {
	db *gorm.DB
}

// Open は path のデータベースを開き、必要ならテーブルを作成します。
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Shot{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}
	return &Store{db: db}, nil
}

// Add は撮影記録を追加し、割り当てられた ID を返します。
func (s *Store) Add(shot *Shot) (uint, error) {
	if err := s.db.Create(shot).Error; err != nil {
		return 0, fmt.Errorf("failed to record screenshot %s: %w", shot.Name, err)
	}
	return shot.ID, nil
}

// SetUploadStatus はアップロード結果を更新します。
func (s *Store) SetUploadStatus(id uint, status UploadStatus, detail string) error {
	err := s.db.Model(&Shot{}).Where("id = ?", id).Updates(map[string]interface{}{
		"upload_status": status,
		"upload_detail": detail,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update upload status for shot %d: %w", id, err)
	}
	return nil
}

// Recent は新しい順に最大 limit 件の記録を返します。
func (s *Store) Recent(limit int) ([]Shot, error) {
	var shots []Shot
	q := s.db.Order("captured_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&shots).Error; err != nil {
		return nil, fmt.Errorf("failed to list screenshots: %w", err)
	}
	return shots, nil
}

// Close はデータベース接続を閉じます。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

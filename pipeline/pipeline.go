// Copyright (c) 2025 SeeKT
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.

// Package pipeline はホットキー 1 回分の処理 (撮影、保存、履歴、アップロード依頼) をまとめます。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/atotto/clipboard"

	"snapkey/history"
	"snapkey/screenshot"
	"snapkey/upload"
)

// Dispatcher はアップロードジョブを非同期に処理します。*upload.Uploader が実装します。
type Dispatcher interface {
	Dispatch(job upload.Job, done func(*upload.Result, error))
}

// Recorder は撮影履歴を保存します。*history.Store が実装します。
type Recorder interface {
	Add(shot *history.Shot) (uint, error)
	SetUploadStatus(id uint, status history.UploadStatus, detail string) error
}

// Record は保存済みスクリーンショットの情報です。生成後は変更しません。
type Record struct {
	Name       string
	Path       string
	CapturedAt time.Time
	Width      int
	Height     int
	Size       int
	ImageID    string // アップロードしない場合は空
}

// Options は Pipeline の構成要素です。Uploader と Recorder は nil で無効になります。
type Options struct {
	Grabber   screenshot.Grabber
	SaveDir   string
	Uploader  Dispatcher
	Recorder  Recorder
	CopyPath  bool
	Clock     func() time.Time
	Clipboard func(string) error
	Logger    *slog.Logger
}

// Pipeline は撮影シーケンスを実行します。
type Pipeline struct {
	grabber   screenshot.Grabber
	saveDir   string
	uploader  Dispatcher
	recorder  Recorder
	copyPath  bool
	clock     func() time.Time
	clipboard func(string) error
	logger    *slog.Logger

	mu     sync.RWMutex // recorder への書き込みと Close を排他する
	closed bool
}

// New は Pipeline を生成します。
func New(opts Options) *Pipeline {
	p := &Pipeline{
		grabber:   opts.Grabber,
		saveDir:   opts.SaveDir,
		uploader:  opts.Uploader,
		recorder:  opts.Recorder,
		copyPath:  opts.CopyPath,
		clock:     opts.Clock,
		clipboard: opts.Clipboard,
		logger:    opts.Logger,
	}
	if p.grabber == nil {
		p.grabber = screenshot.DisplayGrabber{Display: -1}
	}
	if p.clock == nil {
		p.clock = time.Now
	}
	if p.clipboard == nil {
		p.clipboard = clipboard.WriteAll
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Close は以降の履歴への書き込みを止めます。実行中の書き込みが終わるまで待ちます。
// 終了時に残ったアップロードの結果は履歴に記録されません。
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

// SaveDir は保存先ディレクトリを返します。
func (p *Pipeline) SaveDir() string { return p.saveDir }

// Trigger は撮影と保存を同期的に行い、アップロードはバックグラウンドに渡してすぐに戻ります。
// 撮影や保存に失敗した場合はこの 1 回だけを中止し、エラーを返します。
func (p *Pipeline) Trigger(ctx context.Context) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	capturedAt := p.clock()
	img, err := p.grabber.Grab()
	if err != nil {
		if !errors.Is(err, screenshot.ErrCapture) {
			err = fmt.Errorf("%w: %v", screenshot.ErrCapture, err)
		}
		p.logger.Error("screenshot capture failed", "error", err)
		return nil, err
	}

	data, err := screenshot.EncodePNG(img)
	if err != nil {
		p.logger.Error("screenshot encode failed", "error", err)
		return nil, err
	}

	name := screenshot.FileName(capturedAt)
	path, err := screenshot.Save(p.saveDir, name, data)
	if err != nil {
		p.logger.Error("screenshot save failed", "filename", name, "error", err)
		return nil, err
	}
	// 同じ秒の撮影では連番付きの名前で保存される
	name = filepath.Base(path)

	bounds := img.Bounds()
	rec := &Record{
		Name:       name,
		Path:       path,
		CapturedAt: capturedAt,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Size:       len(data),
	}
	p.logger.Info("screenshot saved", "path", path, "width", rec.Width, "height", rec.Height, "bytes", rec.Size)

	if p.copyPath {
		if err := p.clipboard(path); err != nil {
			p.logger.Warn("could not copy screenshot path to clipboard", "error", err)
		}
	}

	var job *upload.Job
	if p.uploader != nil {
		j := upload.NewJob(data, name, capturedAt)
		job = &j
		rec.ImageID = j.ImageID
	}

	shotID := p.record(rec)

	if job != nil {
		p.uploader.Dispatch(*job, func(_ *upload.Result, err error) {
			p.recordUpload(shotID, err)
		})
	}
	return rec, nil
}

func (p *Pipeline) record(rec *Record) uint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed || p.recorder == nil {
		return 0
	}
	status := history.UploadDisabled
	if rec.ImageID != "" {
		status = history.UploadPending
	}
	id, err := p.recorder.Add(&history.Shot{
		Name:         rec.Name,
		Path:         rec.Path,
		Width:        rec.Width,
		Height:       rec.Height,
		Bytes:        rec.Size,
		CapturedAt:   rec.CapturedAt,
		ImageID:      rec.ImageID,
		UploadStatus: status,
	})
	if err != nil {
		p.logger.Warn("could not record screenshot history", "error", err)
		return 0
	}
	return id
}

func (p *Pipeline) recordUpload(id uint, uploadErr error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed || p.recorder == nil || id == 0 {
		return
	}
	status, detail := uploadStatus(uploadErr)
	if err := p.recorder.SetUploadStatus(id, status, detail); err != nil {
		p.logger.Warn("could not record upload result", "error", err)
	}
}

func uploadStatus(err error) (history.UploadStatus, string) {
	var statusErr *upload.StatusError
	switch {
	case err == nil:
		return history.UploadDone, ""
	case errors.As(err, &statusErr):
		return history.UploadFailed, fmt.Sprintf("status %d", statusErr.Code)
	case errors.Is(err, upload.ErrTimeout):
		return history.UploadTimeout, ""
	default:
		return history.UploadError, err.Error()
	}
}

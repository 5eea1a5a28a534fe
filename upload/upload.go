// Copyright (c) 2025 SeeKT
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.

// Package upload はスクリーンショットを HTTP エンドポイントへバックグラウンドで送信します。
// 各ジョブは 1 回だけ試行され、成否にかかわらず破棄されます。
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTimeout    = errors.New("upload timed out")
	ErrNetwork    = errors.New("upload network error")
	ErrUnexpected = errors.New("unexpected upload error")
)

// StatusError は 200/201 以外のレスポンスを表します。
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upload rejected: %d - %s", e.Code, e.Body)
}

// DefaultTimeout はリクエスト 1 件あたりのタイムアウトです。
const DefaultTimeout = 30 * time.Second

// maxErrorBody はログに残すレスポンスボディの上限です。
const maxErrorBody = 4096

// Job は 1 回のアップロード単位です。
type Job struct {
	ImageID    string
	PNG        []byte
	Filename   string
	CapturedAt time.Time
}

// NewJob は UUID を割り当てたジョブを生成します。png は撮影時にエンコードしたバイト列をそのまま参照します。
func NewJob(png []byte, filename string, capturedAt time.Time) Job {
	return Job{
		ImageID:    uuid.NewString(),
		PNG:        png,
		Filename:   filename,
		CapturedAt: capturedAt,
	}
}

// Result は成功したアップロードの結果です。
type Result struct {
	ImageID    string
	StatusCode int
	Duration   time.Duration
}

// Options は Uploader の設定です。
type Options struct {
	Endpoint    string
	APIKey      string
	Timeout     time.Duration
	MaxInFlight int
	Client      *http.Client
	Logger      *slog.Logger
}

// Uploader はジョブをエンドポイントへ POST します。
type Uploader struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	client   *http.Client
	logger   *slog.Logger

	slots    chan struct{}
	wg       sync.WaitGroup
	inFlight atomic.Int64
}

// New は Uploader を生成します。
func New(opts Options) *Uploader {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxInFlight := opts.MaxInFlight
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &Uploader{
		endpoint: opts.Endpoint,
		apiKey:   opts.APIKey,
		timeout:  timeout,
		client:   client,
		logger:   logger,
		slots:    make(chan struct{}, maxInFlight),
	}
}

// Endpoint は送信先 URL を返します。
func (u *Uploader) Endpoint() string { return u.endpoint }

// InFlight は実行中または待機中のアップロード数を返します。
func (u *Uploader) InFlight() int64 { return u.inFlight.Load() }

func (u *Uploader) buildBody(job Job) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	fields := []struct{ name, value string }{
		{"image_id", job.ImageID},
		{"filename", job.Filename},
		{"timestamp", job.CapturedAt.Format(time.RFC3339Nano)},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s.png"`, job.ImageID))
	h.Set("Content-Type", "image/png")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(job.PNG); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, w.FormDataContentType(), nil
}

// Upload はジョブを同期的に 1 回だけ送信します。
func (u *Uploader) Upload(ctx context.Context, job Job) (*Result, error) {
	body, contentType, err := u.buildBody(job)
	if err != nil {
		return nil, fmt.Errorf("%w: build multipart body: %v", ErrUnexpected, err)
	}

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnexpected, err)
	}
	req.Header.Set("Content-Type", contentType)
	if u.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+u.apiKey)
	}

	start := time.Now()
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return &Result{ImageID: job.ImageID, StatusCode: resp.StatusCode, Duration: time.Since(start)}, nil
}

// classify は送信エラーをタイムアウトとそれ以外のネットワークエラーに分類します。
func classify(ctx context.Context, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

// Dispatch はジョブをバックグラウンドで送信し、すぐに戻ります。
// 同時実行数は MaxInFlight で制限されます。done が nil でなければ結果とともに呼び出されます。
func (u *Uploader) Dispatch(job Job, done func(*Result, error)) {
	u.wg.Add(1)
	u.inFlight.Add(1)
	go func() {
		defer u.wg.Done()
		defer u.inFlight.Add(-1)

		u.slots <- struct{}{}
		defer func() { <-u.slots }()

		u.logger.Info("uploading screenshot", "filename", job.Filename, "image_id", job.ImageID, "endpoint", u.endpoint)
		res, err := u.Upload(context.Background(), job)
		u.logResult(job, res, err)
		if done != nil {
			done(res, err)
		}
	}()
}

func (u *Uploader) logResult(job Job, res *Result, err error) {
	var statusErr *StatusError
	switch {
	case err == nil:
		u.logger.Info("screenshot uploaded", "filename", job.Filename, "image_id", job.ImageID, "status", res.StatusCode, "duration", res.Duration)
	case errors.As(err, &statusErr):
		u.logger.Error("upload failed", "filename", job.Filename, "status", statusErr.Code, "body", statusErr.Body)
	case errors.Is(err, ErrTimeout):
		u.logger.Error("upload request timeout", "filename", job.Filename, "timeout", u.timeout)
	case errors.Is(err, ErrNetwork):
		u.logger.Error("upload request error", "filename", job.Filename, "error", err)
	default:
		u.logger.Error("unexpected upload error", "filename", job.Filename, "error", err)
	}
}

// Drain は実行中のアップロードを最大 grace だけ待ち、すべて完了したら true を返します。
// grace が 0 以下なら待たずに現在の状態を返します。
func (u *Uploader) Drain(grace time.Duration) bool {
	if grace <= 0 {
		return u.inFlight.Load() == 0
	}
	done := make(chan struct{})
	go func() {
		u.wg.Wait()
		close(done)
	}()
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// Copyright (c) 2025 SeeKT
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer はゴルーチンから書き込まれるログを保持します。
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type receivedForm struct {
	imageID, filename, timestamp string
	partName, partType           string
	image                        []byte
	auth                         string
}

// receiver は upload ルートと同じく multipart を受け取り、image がなければ 400 を返します。
func receiver(t *testing.T, status int, got chan<- receivedForm) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			http.Error(w, `{"success":false,"message":"No image file provided"}`, http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		got <- receivedForm{
			imageID:   r.FormValue("image_id"),
			filename:  r.FormValue("filename"),
			timestamp: r.FormValue("timestamp"),
			partName:  header.Filename,
			partType:  header.Header.Get("Content-Type"),
			image:     data,
			auth:      r.Header.Get("Authorization"),
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewJobAssignsUniqueUUIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 16; i++ {
		job := NewJob([]byte("png"), "screenshot_20240102_030405.png", time.Now())
		_, err := uuid.Parse(job.ImageID)
		require.NoError(t, err)
		assert.False(t, seen[job.ImageID], "duplicate id %s", job.ImageID)
		seen[job.ImageID] = true
	}
}

func TestUploadSendsMultipartForm(t *testing.T) {
	got := make(chan receivedForm, 1)
	srv := receiver(t, http.StatusCreated, got)

	u := New(Options{Endpoint: srv.URL, APIKey: "secret"})
	capturedAt := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	job := NewJob([]byte{0x89, 'P', 'N', 'G'}, "screenshot_20240102_030405.png", capturedAt)

	res, err := u.Upload(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, job.ImageID, res.ImageID)

	form := <-got
	assert.Equal(t, job.ImageID, form.imageID)
	assert.Equal(t, "screenshot_20240102_030405.png", form.filename)
	assert.Equal(t, "2024-01-02T03:04:05Z", form.timestamp)
	assert.Equal(t, job.ImageID+".png", form.partName)
	assert.Equal(t, "image/png", form.partType)
	assert.Equal(t, job.PNG, form.image)
	assert.Equal(t, "Bearer secret", form.auth)
}

func TestUploadOmitsAuthorizationWithoutKey(t *testing.T) {
	got := make(chan receivedForm, 1)
	srv := receiver(t, http.StatusOK, got)

	_, err := New(Options{Endpoint: srv.URL}).Upload(context.Background(), NewJob([]byte("x"), "a.png", time.Now()))
	require.NoError(t, err)
	assert.Empty(t, (<-got).auth)
}

func TestUploadStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "ocr failed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(Options{Endpoint: srv.URL}).Upload(context.Background(), NewJob([]byte("x"), "a.png", time.Now()))
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
	assert.Equal(t, "ocr failed", statusErr.Body)
}

func TestUploadTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(Options{Endpoint: srv.URL, Timeout: 50 * time.Millisecond}).Upload(context.Background(), NewJob([]byte("x"), "a.png", time.Now()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
}

func TestUploadNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	_, err := New(Options{Endpoint: endpoint}).Upload(context.Background(), NewJob([]byte("x"), "a.png", time.Now()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNetwork), "got %v", err)
}

func TestUploadUnexpectedError(t *testing.T) {
	_, err := New(Options{Endpoint: "http://bad host/"}).Upload(context.Background(), NewJob([]byte("x"), "a.png", time.Now()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpected), "got %v", err)
}

func TestDispatchSuccessMakesSingleRequest(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	var logs syncBuffer
	u := New(Options{Endpoint: srv.URL, Logger: slog.New(slog.NewTextHandler(&logs, nil))})

	done := make(chan error, 1)
	u.Dispatch(NewJob([]byte("x"), "screenshot_20240102_030405.png", time.Now()), func(_ *Result, err error) { done <- err })
	require.NoError(t, <-done)
	require.True(t, u.Drain(time.Second))

	assert.Equal(t, int32(1), requests.Load())
	assert.Contains(t, logs.String(), "screenshot uploaded")
	assert.Contains(t, logs.String(), "screenshot_20240102_030405.png")
}

func TestDispatchFailureIsNotRetried(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	var logs syncBuffer
	u := New(Options{Endpoint: srv.URL, Logger: slog.New(slog.NewTextHandler(&logs, nil))})
	u.Dispatch(NewJob([]byte("x"), "a.png", time.Now()), nil)
	require.True(t, u.Drain(time.Second))

	assert.Equal(t, int32(1), requests.Load())
	assert.Contains(t, logs.String(), "upload failed")
	assert.Contains(t, logs.String(), "status=502")
}

func TestDispatchLogsTimeoutDistinctly(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	var logs syncBuffer
	u := New(Options{Endpoint: srv.URL, Timeout: 50 * time.Millisecond, Logger: slog.New(slog.NewTextHandler(&logs, nil))})
	u.Dispatch(NewJob([]byte("x"), "slow.png", time.Now()), nil)
	require.True(t, u.Drain(2*time.Second))

	assert.Contains(t, logs.String(), "upload request timeout")
	assert.Contains(t, logs.String(), "slow.png")
}

func TestDispatchDoesNotBlockCaller(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	u := New(Options{Endpoint: srv.URL, MaxInFlight: 1, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	start := time.Now()
	for i := 0; i < 5; i++ {
		u.Dispatch(NewJob([]byte("x"), "a.png", time.Now()), nil)
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, int64(5), u.InFlight())
	assert.False(t, u.Drain(0))

	close(release)
	assert.True(t, u.Drain(5*time.Second))
	assert.Equal(t, int64(0), u.InFlight())
}

// Copyright (c) 2025 SeeKT
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
package screenshot

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kbinani/screenshot"
)

var (
	// ErrCapture は画面を取得できなかった場合のエラーです (ディスプレイなし、セッションなしなど)。
	ErrCapture = errors.New("screen capture failed")
	// ErrFilesystem は保存先ディレクトリやファイルの書き込みに失敗した場合のエラーです。
	ErrFilesystem = errors.New("screenshot write failed")
)

// Grabber は画面全体の画像を取得します。
type Grabber interface {
	Grab() (image.Image, error)
}

// DisplayGrabber は kbinani/screenshot を使ってディスプレイを撮影します。
// Display が負の場合は全アクティブディスプレイを包含する矩形を撮影します。
type DisplayGrabber struct {
	Display int
}

// Grab は設定されたディスプレイの画像を返します。
func (g DisplayGrabber) Grab() (image.Image, error) {
	n := screenshot.NumActiveDisplays()
	if n <= 0 {
		return nil, fmt.Errorf("%w: no active displays found", ErrCapture)
	}

	var bounds image.Rectangle
	if g.Display >= 0 {
		if g.Display >= n {
			return nil, fmt.Errorf("%w: display %d out of range (%d active)", ErrCapture, g.Display, n)
		}
		bounds = screenshot.GetDisplayBounds(g.Display)
	} else {
		for i := 0; i < n; i++ {
			bounds = bounds.Union(screenshot.GetDisplayBounds(i))
		}
	}

	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCapture, err)
	}
	return img, nil
}

// FileName は撮影時刻から screenshot_YYYYMMDD_HHMMSS.png 形式のファイル名を返します。
func FileName(t time.Time) string {
	return "screenshot_" + t.Format("20060102_150405") + ".png"
}

// EncodePNG は画像を PNG にエンコードします。
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG image: %w", err)
	}
	return buf.Bytes(), nil
}

// maxSuffix は同一秒内の衝突回避で試す連番の上限です。
const maxSuffix = 1000

// Save は PNG バイト列を saveDir/name に書き込み、実際に書き込んだパスを返します。
// ディレクトリがなければ作成します。同名ファイルが既にある場合は上書きせず、
// 拡張子の前に _1, _2, ... を付けた名前で保存します。
func Save(saveDir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(saveDir, 0755); err != nil {
		return "", fmt.Errorf("%w: failed to create save directory %s: %v", ErrFilesystem, saveDir, err)
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 0; i < maxSuffix; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		filePath := filepath.Join(saveDir, candidate)

		file, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%w: failed to create screenshot file %s: %v", ErrFilesystem, filePath, err)
		}

		if _, err := file.Write(data); err != nil {
			file.Close()
			return "", fmt.Errorf("%w: failed to write screenshot file %s: %v", ErrFilesystem, filePath, err)
		}
		if err := file.Close(); err != nil {
			return "", fmt.Errorf("%w: failed to close screenshot file %s: %v", ErrFilesystem, filePath, err)
		}

		abs, err := filepath.Abs(filePath)
		if err != nil {
			return filePath, nil
		}
		return abs, nil
	}
	return "", fmt.Errorf("%w: too many screenshots named %s", ErrFilesystem, name)
}

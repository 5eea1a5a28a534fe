// Copyright (c) 2025 SeeKT
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.

//go:build windows

package hotkey

import (
	"context"
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Windows API のインポート
var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	registerHotKeyProc    = user32.NewProc("RegisterHotKey")
	unregisterHotKeyProc  = user32.NewProc("UnregisterHotKey")
	getMessageProc        = user32.NewProc("GetMessageW")
	postThreadMessageProc = user32.NewProc("PostThreadMessageW")
)

const (
	wmHotkey    = 0x0312
	wmQuit      = 0x0012
	modNoRepeat = 0x4000
	hotkeyID    = 1
)

// MSG 構造体 (GetMessageW の出力)
type msg struct {
	HWND    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      struct{ X, Y int32 }
}

type windowsBackend struct{}

// DefaultBackend は RegisterHotKey を使うバックエンドを返します。
func DefaultBackend() Backend { return windowsBackend{} }

func (windowsBackend) Name() string { return "win32" }

// virtualKey はキー名を仮想キーコードに変換します。
func virtualKey(key string) (uintptr, error) {
	if n := functionKeyNumber(key); n > 0 {
		return uintptr(0x70 + n - 1), nil // VK_F1 = 0x70
	}
	switch key {
	case "PRINTSCREEN":
		return 0x2C, nil
	case "SPACE":
		return 0x20, nil
	case "INSERT":
		return 0x2D, nil
	case "PAUSE":
		return 0x13, nil
	}
	if len(key) == 1 {
		return uintptr(key[0]), nil // '0'-'9', 'A'-'Z' は ASCII と一致
	}
	return 0, fmt.Errorf("no virtual key for %q", key)
}

func (windowsBackend) Listen(ctx context.Context, b Binding, onPress func()) error {
	vk, err := virtualKey(b.Key())
	if err != nil {
		return err
	}

	errc := make(chan error, 1)
	tidc := make(chan uint32, 1)

	go func() {
		// RegisterHotKey とメッセージループは同じスレッドで動かす必要がある
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		tid := windows.GetCurrentThreadId()
		ret, _, callErr := registerHotKeyProc.Call(0, hotkeyID, uintptr(b.Modifiers())|modNoRepeat, vk)
		if ret == 0 {
			errc <- fmt.Errorf("RegisterHotKey failed: %w", callErr)
			return
		}
		defer unregisterHotKeyProc.Call(0, hotkeyID)
		tidc <- tid

		var m msg
		for {
			r, _, callErr := getMessageProc.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
			switch int32(r) {
			case -1:
				errc <- fmt.Errorf("GetMessageW failed: %w", callErr)
				return
			case 0: // WM_QUIT
				errc <- nil
				return
			}
			if m.Message == wmHotkey && m.WParam == hotkeyID {
				onPress()
			}
		}
	}()

	var tid uint32
	select {
	case err := <-errc:
		return err
	case tid = <-tidc:
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		postThreadMessageProc.Call(uintptr(tid), wmQuit, 0, 0)
		<-errc
		return ctx.Err()
	}
}

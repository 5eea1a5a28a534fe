// Copyright (c) 2025 SeeKT
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.

//go:build linux

package hotkey

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MarinX/keylogger"
)

// evdev のキーコード (linux/input-event-codes.h)
var evdevModifiers = map[uint16]Modifier{
	29:  ModCtrl,  // KEY_LEFTCTRL
	97:  ModCtrl,  // KEY_RIGHTCTRL
	42:  ModShift, // KEY_LEFTSHIFT
	54:  ModShift, // KEY_RIGHTSHIFT
	56:  ModAlt,   // KEY_LEFTALT
	100: ModAlt,   // KEY_RIGHTALT
	125: ModWin,   // KEY_LEFTMETA
	126: ModWin,   // KEY_RIGHTMETA
}

var evdevNamed = map[string]uint16{
	"PRINTSCREEN": 99, // KEY_SYSRQ
	"SPACE":       57,
	"INSERT":      110,
	"PAUSE":       119,
}

// evdevBackend は /dev/input のキーボードデバイスを直接読み取ります。
// デバイスの読み取りには root 権限か input グループへの所属が必要です。
type evdevBackend struct {
	device string
}

// DefaultBackend は evdev バックエンドを返します。
func DefaultBackend() Backend { return &evdevBackend{} }

func (b *evdevBackend) Name() string { return "evdev" }

// keyMatcher はイベントがバインドされたキーかどうかを判定します。
type keyMatcher struct {
	binding Binding
	held    Modifier
	down    map[uint16]bool
}

func newKeyMatcher(b Binding) *keyMatcher {
	return &keyMatcher{binding: b, down: make(map[uint16]bool)}
}

// evdevFunctionKey は F キーのキーコードを返します。keylogger のキー名表は F12 までしかありません。
func evdevFunctionKey(n int) (uint16, bool) {
	switch {
	case n >= 1 && n <= 10:
		return uint16(58 + n), true // KEY_F1..KEY_F10
	case n == 11:
		return 87, true
	case n == 12:
		return 88, true
	case n >= 13 && n <= 24:
		return uint16(170 + n), true // KEY_F13 = 183
	}
	return 0, false
}

func (m *keyMatcher) isKey(ev keylogger.InputEvent) bool {
	key := m.binding.Key()
	if code, ok := evdevNamed[key]; ok {
		return ev.Code == code
	}
	if code, ok := evdevFunctionKey(functionKeyNumber(key)); ok {
		return ev.Code == code
	}
	return strings.EqualFold(ev.KeyString(), key)
}

// observe は 1 イベントを処理し、ホットキーが押されたら true を返します。
func (m *keyMatcher) observe(ev keylogger.InputEvent) bool {
	if ev.Type != keylogger.EvKey {
		return false
	}
	if _, ok := evdevModifiers[ev.Code]; ok {
		switch {
		case ev.KeyPress():
			m.down[ev.Code] = true
		case ev.KeyRelease():
			delete(m.down, ev.Code)
		}
		m.held = 0
		for code := range m.down {
			m.held |= evdevModifiers[code]
		}
		return false
	}
	// Value==2 の自動リピートは KeyPress に含まれない
	return ev.KeyPress() && m.isKey(ev) && m.held == m.binding.Modifiers()
}

func (b *evdevBackend) Listen(ctx context.Context, binding Binding, onPress func()) error {
	device := b.device
	if device == "" {
		device = keylogger.FindKeyboardDevice()
	}
	if device == "" {
		return fmt.Errorf("%w: no keyboard device found under /dev/input", ErrBackendNotAvailable)
	}

	k, err := keylogger.New(device)
	if err != nil {
		return fmt.Errorf("open keyboard device %s: %w", device, err)
	}
	defer k.Close()

	matcher := newKeyMatcher(binding)
	events := k.Read()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return errors.New("keyboard device closed")
			}
			if matcher.observe(ev) {
				onPress()
			}
		}
	}
}

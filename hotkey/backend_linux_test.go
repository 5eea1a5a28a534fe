// Copyright (c) 2025 SeeKT
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.

//go:build linux

package hotkey

import (
	"testing"

	"github.com/MarinX/keylogger"
	"github.com/stretchr/testify/assert"
)

func keyEvent(code uint16, value int32) keylogger.InputEvent {
	return keylogger.InputEvent{Type: keylogger.EvKey, Code: code, Value: value}
}

func TestKeyMatcherPlainKey(t *testing.T) {
	m := newKeyMatcher(mustBinding(t, "f12"))

	assert.True(t, m.observe(keyEvent(88, 1)))  // F12 down
	assert.False(t, m.observe(keyEvent(88, 2))) // auto-repeat
	assert.False(t, m.observe(keyEvent(88, 0))) // release
	assert.False(t, m.observe(keyEvent(87, 1))) // F11
}

func TestKeyMatcherRequiresExactModifiers(t *testing.T) {
	m := newKeyMatcher(mustBinding(t, "ctrl+printscreen"))

	assert.False(t, m.observe(keyEvent(99, 1)), "modifier missing")

	m.observe(keyEvent(29, 1)) // left ctrl down
	assert.True(t, m.observe(keyEvent(99, 1)))

	m.observe(keyEvent(42, 1)) // shift down too
	assert.False(t, m.observe(keyEvent(99, 1)), "extra modifier held")

	m.observe(keyEvent(42, 0))
	m.observe(keyEvent(29, 0))
	assert.False(t, m.observe(keyEvent(99, 1)))
}

func TestKeyMatcherIgnoresNonKeyEvents(t *testing.T) {
	m := newKeyMatcher(mustBinding(t, "f12"))
	assert.False(t, m.observe(keylogger.InputEvent{Type: 0, Code: 88, Value: 1}))
}

func TestKeyMatcherFunctionKeys(t *testing.T) {
	tests := []struct {
		binding string
		code    uint16
	}{
		{"f1", 59},
		{"f10", 68},
		{"f11", 87},
		{"f12", 88},
		{"f13", 183},
		{"f24", 194},
	}
	for _, tt := range tests {
		t.Run(tt.binding, func(t *testing.T) {
			m := newKeyMatcher(mustBinding(t, tt.binding))
			assert.True(t, m.observe(keyEvent(tt.code, 1)))
			assert.False(t, m.observe(keyEvent(tt.code+1, 1)))
		})
	}
}

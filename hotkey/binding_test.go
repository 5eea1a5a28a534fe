// Copyright (c) 2025 SeeKT
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
package hotkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBinding(t *testing.T) {
	tests := []struct {
		in   string
		key  string
		mods Modifier
		str  string
	}{
		{in: "f12", key: "F12", str: "F12"},
		{in: " F1 ", key: "F1", str: "F1"},
		{in: "ctrl+shift+s", key: "S", mods: ModCtrl | ModShift, str: "Ctrl+Shift+S"},
		{in: "alt+printscreen", key: "PRINTSCREEN", mods: ModAlt, str: "Alt+PrintScreen"},
		{in: "win+5", key: "5", mods: ModWin, str: "Win+5"},
		{in: "control+f24", key: "F24", mods: ModCtrl, str: "Ctrl+F24"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			b, err := ParseBinding(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.key, b.Key())
			assert.Equal(t, tt.mods, b.Modifiers())
			assert.Equal(t, tt.str, b.String())
		})
	}
}

func TestParseBindingRejectsInvalid(t *testing.T) {
	for _, in := range []string{"", "f0", "f25", "f1x", "ctrl+", "hyper+a", "ctrl", "shift+ctrl", "tab"} {
		_, err := ParseBinding(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestFunctionKeyNumber(t *testing.T) {
	assert.Equal(t, 12, functionKeyNumber("F12"))
	assert.Equal(t, 0, functionKeyNumber("S"))
}

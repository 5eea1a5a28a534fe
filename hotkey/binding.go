// Copyright (c) 2025 SeeKT
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
package hotkey

import (
	"errors"
	"fmt"
	"strings"
)

// Modifier は修飾キーのビットマスクです。値は Win32 の MOD_* と一致させています。
type Modifier uint32

const (
	ModAlt   Modifier = 0x0001
	ModCtrl  Modifier = 0x0002
	ModShift Modifier = 0x0004
	ModWin   Modifier = 0x0008
)

// Binding はパース済みのグローバルホットキーです。ParseBinding でのみ生成します。
type Binding struct {
	modifiers Modifier
	key       string // 正規化されたキー名 (例: "F12", "S", "PRINTSCREEN")
}

// Modifiers は修飾キーのビットマスクを返します。
func (b Binding) Modifiers() Modifier { return b.modifiers }

// Key は正規化されたキー名を返します。
func (b Binding) Key() string { return b.key }

// String は "Ctrl+Shift+F12" のような表示用文字列を返します。
func (b Binding) String() string {
	var parts []string
	if b.modifiers&ModCtrl != 0 {
		parts = append(parts, "Ctrl")
	}
	if b.modifiers&ModAlt != 0 {
		parts = append(parts, "Alt")
	}
	if b.modifiers&ModShift != 0 {
		parts = append(parts, "Shift")
	}
	if b.modifiers&ModWin != 0 {
		parts = append(parts, "Win")
	}
	parts = append(parts, displayKey(b.key))
	return strings.Join(parts, "+")
}

func displayKey(key string) string {
	switch key {
	case "PRINTSCREEN":
		return "PrintScreen"
	case "SPACE":
		return "Space"
	case "INSERT":
		return "Insert"
	case "PAUSE":
		return "Pause"
	}
	return key
}

var modifierNames = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"alt":     ModAlt,
	"shift":   ModShift,
	"win":     ModWin,
	"super":   ModWin,
	"cmd":     ModWin,
}

var namedKeys = map[string]string{
	"printscreen": "PRINTSCREEN",
	"prtsc":       "PRINTSCREEN",
	"print":       "PRINTSCREEN",
	"space":       "SPACE",
	"insert":      "INSERT",
	"pause":       "PAUSE",
}

// ParseBinding は "f12" や "ctrl+shift+s" 形式の文字列をパースします。
// キーは F1-F24、英数字 1 文字、または printscreen/space/insert/pause のいずれかです。
func ParseBinding(s string) (Binding, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return Binding{}, errors.New("empty hotkey")
	}

	var b Binding
	tokens := strings.Split(s, "+")
	for i, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return Binding{}, fmt.Errorf("malformed hotkey %q", s)
		}
		if i < len(tokens)-1 {
			mod, ok := modifierNames[tok]
			if !ok {
				return Binding{}, fmt.Errorf("unknown modifier %q", tok)
			}
			b.modifiers |= mod
			continue
		}
		key, err := normalizeKey(tok)
		if err != nil {
			return Binding{}, err
		}
		b.key = key
	}
	return b, nil
}

func normalizeKey(tok string) (string, error) {
	if named, ok := namedKeys[tok]; ok {
		return named, nil
	}
	if len(tok) == 1 {
		c := tok[0]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			return strings.ToUpper(tok), nil
		}
	}
	if tok[0] == 'f' {
		var n int
		if _, err := fmt.Sscanf(tok, "f%d", &n); err == nil && n >= 1 && n <= 24 && fmt.Sprintf("f%d", n) == tok {
			return fmt.Sprintf("F%d", n), nil
		}
	}
	if _, isMod := modifierNames[tok]; isMod {
		return "", fmt.Errorf("hotkey needs a non-modifier key, got %q", tok)
	}
	return "", fmt.Errorf("unsupported key %q", tok)
}

// functionKeyNumber は F キーの番号を返します。F キーでなければ 0 です。
func functionKeyNumber(key string) int {
	var n int
	if _, err := fmt.Sscanf(key, "F%d", &n); err != nil {
		return 0
	}
	return n
}

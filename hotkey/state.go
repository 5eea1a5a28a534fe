// Copyright (c) 2025 SeeKT
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
package hotkey

import "sync/atomic"

// State はホットキーの有効/無効フラグです。トレイのトグル操作だけが書き込み、
// ホットキーのコールバックが撮影前に読み取ります。
type State struct {
	disabled atomic.Bool // ゼロ値で有効
}

// NewState は有効状態の State を返します。
func NewState() *State {
	return &State{}
}

// Enabled は現在ホットキーが有効かどうかを返します。
func (s *State) Enabled() bool {
	return !s.disabled.Load()
}

// SetEnabled は状態を設定します。
func (s *State) SetEnabled(enabled bool) {
	s.disabled.Store(!enabled)
}

// Toggle は状態を反転し、反転後の値を返します。
func (s *State) Toggle() bool {
	for {
		old := s.disabled.Load()
		if s.disabled.CompareAndSwap(old, !old) {
			return old
		}
	}
}

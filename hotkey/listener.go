// Copyright (c) 2025 SeeKT
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
package hotkey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// ErrBackendNotAvailable は現在のプラットフォームでグローバルホットキーを登録できない場合に返されます。
var ErrBackendNotAvailable = errors.New("global hotkey backend not available on this system")

// Backend は OS ごとのグローバルキーフックです。
// Listen は ctx が終了するまでブロックし、バインドされたキーが押されるたびに onPress を呼び出します。
type Backend interface {
	Name() string
	Listen(ctx context.Context, b Binding, onPress func()) error
}

// Listener はバックエンドからのキーイベントを State で絞り込み、ハンドラに渡します。
type Listener struct {
	backend Backend
	binding Binding
	state   *State
	handler func(context.Context)
	logger  *slog.Logger
}

// NewListener は Listener を生成します。backend が nil の場合はプラットフォームのデフォルトを使います。
func NewListener(backend Backend, binding Binding, state *State, handler func(context.Context), logger *slog.Logger) *Listener {
	if backend == nil {
		backend = DefaultBackend()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		backend: backend,
		binding: binding,
		state:   state,
		handler: handler,
		logger:  logger,
	}
}

// Binding は登録するキーを返します。
func (l *Listener) Binding() Binding { return l.binding }

// Run はホットキーを登録し、ctx が終了するまでブロックします。
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info("registering global hotkey", "hotkey", l.binding.String(), "backend", l.backend.Name())
	err := l.backend.Listen(ctx, l.binding, func() { l.fire(ctx) })
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("hotkey %s: %w", l.binding, err)
	}
	return nil
}

// fire は 1 回のキー押下を処理します。ハンドラのパニックは回収し、次の押下に影響させません。
func (l *Listener) fire(ctx context.Context) {
	if !l.state.Enabled() {
		l.logger.Debug("hotkey pressed while disabled", "hotkey", l.binding.String())
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("hotkey handler panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	l.handler(ctx)
}

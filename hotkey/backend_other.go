// Copyright (c) 2025 SeeKT
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.

//go:build !windows && !linux

package hotkey

import "context"

type unsupportedBackend struct{}

// DefaultBackend はこのプラットフォームでは常に ErrBackendNotAvailable を返すバックエンドです。
func DefaultBackend() Backend { return unsupportedBackend{} }

func (unsupportedBackend) Name() string { return "unsupported" }

func (unsupportedBackend) Listen(ctx context.Context, b Binding, onPress func()) error {
	return ErrBackendNotAvailable
}

// Copyright (c) 2025 SeeKT
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
package gui

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"fyne.io/fyne/v2"
)

// cameraIcon は 64x64 のカメラ型トレイアイコンを描画します。
func cameraIcon() fyne.Resource {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	white := image.NewUniform(color.White)
	black := image.NewUniform(color.Black)

	draw.Draw(img, img.Bounds(), white, image.Point{}, draw.Src)
	// 本体とファインダー
	draw.Draw(img, image.Rect(10, 20, 54, 50), black, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(20, 15, 35, 20), black, image.Point{}, draw.Src)
	// レンズとランプ
	fillCircle(img, 32, 35, 7, color.White)
	fillCircle(img, 51, 27, 3, color.RGBA{R: 0xff, A: 0xff})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return fyne.NewStaticResource("snapkey.png", buf.Bytes())
}

func fillCircle(img *image.RGBA, cx, cy, r int, c color.Color) {
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r {
				img.Set(x, y, c)
			}
		}
	}
}

// Copyright (c) 2025 SeeKT
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
package history

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Render は撮影記録を表形式で w に書き出します。
func Render(w io.Writer, shots []Shot) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Captured", "File", "Size", "Upload", "Image ID"})
	for _, s := range shots {
		upload := string(s.UploadStatus)
		if s.UploadDetail != "" {
			upload += " (" + s.UploadDetail + ")"
		}
		t.AppendRow(table.Row{
			s.ID,
			s.CapturedAt.Local().Format("2006-01-02 15:04:05"),
			s.Path,
			formatDims(s.Width, s.Height),
			upload,
			s.ImageID,
		})
	}
	t.AppendFooter(table.Row{"", "", "Total", len(shots)})
	t.SetStyle(table.StyleLight)
	t.Render()
}

func formatDims(w, h int) string {
	if w == 0 || h == 0 {
		return "-"
	}
	return fmt.Sprintf("%dx%d", w, h)
}

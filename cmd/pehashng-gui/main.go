// Package main provides the pehashng GUI application.
package main

import (
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/dustin/go-humanize"

	"github.com/ZacharyZcR/pehashng/internal/config"
	"github.com/ZacharyZcR/pehashng/internal/pe"
	"github.com/ZacharyZcR/pehashng/internal/scan"
)

func main() {
	myApp := app.New()
	myWindow := myApp.NewWindow("pehashng - PE结构哈希")
	myWindow.Resize(fyne.NewSize(900, 600))

	// File path
	filePathEntry := widget.NewEntry()
	filePathEntry.SetPlaceHolder("选择PE文件...")

	backendSelect := widget.NewSelect(backendNames(), nil)
	backendSelect.SetSelected(string(pe.DefaultBackend))

	// Digest, selectable for copying
	digestEntry := widget.NewEntry()
	digestEntry.SetPlaceHolder("结构哈希")

	output := widget.NewMultiLineEntry()
	output.SetPlaceHolder("归一化字段将显示在这里...")
	output.TextStyle = fyne.TextStyle{Monospace: true}
	output.Disable()

	statusLabel := widget.NewLabel("就绪")

	fileButton := widget.NewButton("选择文件", func() {
		dialog.ShowFileOpen(func(file fyne.URIReadCloser, err error) {
			if err != nil || file == nil {
				return
			}
			defer func() { _ = file.Close() }()
			filePathEntry.SetText(file.URI().Path())
		}, myWindow)
	})

	computeButton := widget.NewButton("计算", func() {
		path := filePathEntry.Text
		if path == "" {
			dialog.ShowError(fmt.Errorf("请先选择PE文件"), myWindow)
			return
		}

		cfg := config.Default()
		cfg.Backend = backendSelect.Selected
		scanner := scan.New(cfg, nil)

		statusLabel.SetText("正在计算...")
		go func() {
			info, err := scanner.HashFile(path)
			fyne.Do(func() {
				if err != nil {
					dialog.ShowError(err, myWindow)
					statusLabel.SetText("计算失败")
					return
				}
				digestEntry.SetText(info.Digest.String())
				output.SetText(formatInfo(info))
				statusLabel.SetText("计算完成")
			})
		}()
	})

	fileBox := container.NewBorder(nil, nil, nil, fileButton, filePathEntry)
	controls := container.NewBorder(nil, nil, widget.NewLabel("解析后端:"), computeButton, backendSelect)

	mainContent := container.NewBorder(
		container.NewVBox(
			widget.NewLabel("PE文件路径:"),
			fileBox,
			controls,
			widget.NewSeparator(),
			digestEntry,
		),
		container.NewVBox(
			widget.NewSeparator(),
			statusLabel,
		),
		nil,
		nil,
		container.NewVScroll(output),
	)

	myWindow.SetContent(mainContent)
	myWindow.ShowAndRun()
}

func backendNames() []string {
	names := make([]string, 0, len(pe.Backends))
	for _, b := range pe.Backends {
		names = append(names, b.String())
	}
	return names
}

func formatInfo(info *pe.Info) string {
	var output strings.Builder
	output.WriteString(fmt.Sprintf("文件路径: %s\n", info.FilePath))
	output.WriteString(fmt.Sprintf("文件大小: %s\n", humanize.IBytes(uint64(info.FileSize))))
	output.WriteString(fmt.Sprintf("架构: %s\n", info.Architecture))
	output.WriteString(fmt.Sprintf("子系统: %s\n", info.Subsystem))
	if c := info.Checksum; c != nil {
		if c.Valid {
			output.WriteString(fmt.Sprintf("校验和: ✓ 有效 (0x%08X)\n", c.Stored))
		} else {
			output.WriteString(fmt.Sprintf("校验和: ✗ 无效 (存储: 0x%08X, 计算: 0x%08X)\n", c.Stored, c.Computed))
		}
	}

	h := info.Fields.Header
	output.WriteString("\n归一化头部字段:\n")
	output.WriteString(fmt.Sprintf("  Characteristics: 0x%04X\n", h.Characteristics))
	output.WriteString(fmt.Sprintf("  Subsystem:       %d\n", h.Subsystem))
	output.WriteString(fmt.Sprintf("  SectionAlign:    0x%X\n", h.SectionAlignment))
	output.WriteString(fmt.Sprintf("  FileAlign:       0x%X\n", h.FileAlignment))
	output.WriteString(fmt.Sprintf("  StackCommit:     0x%X\n", h.StackCommit))
	output.WriteString(fmt.Sprintf("  HeapCommit:      0x%X\n", h.HeapCommit))
	output.WriteString(fmt.Sprintf("  Directories:     %016b\n", h.Directories))

	output.WriteString(fmt.Sprintf("\n节区 (%d 个):\n", len(info.Sections)))
	for _, s := range info.Sections {
		n := s.Normalized
		output.WriteString(fmt.Sprintf("  %-8s VA=0x%08X 大小=0x%X 标志=0x%02X 复杂度=%d 权限=%s 熵值=%.2f\n",
			s.Name, n.VirtualAddress, n.RawSize, n.Flags, n.Complexity, s.Permissions, s.Entropy))
	}

	return output.String()
}

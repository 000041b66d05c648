// Package cli provides command-line interface utilities.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/ZacharyZcR/pehashng/internal/config"
	"github.com/ZacharyZcR/pehashng/internal/pe"
	"github.com/ZacharyZcR/pehashng/internal/scan"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Reporter formats and prints hashing results.
type Reporter struct {
	out     io.Writer
	format  string
	verbose bool
}

// NewReporter creates a reporter writing the given format to out.
func NewReporter(out io.Writer, format string) *Reporter {
	if format == "" {
		format = config.FormatText
	}
	return &Reporter{out: out, format: format}
}

// SetVerbose enables the normalized field breakdown.
func (r *Reporter) SetVerbose(verbose bool) {
	r.verbose = verbose
}

// record is the JSON/YAML shape of one result.
type record struct {
	Path     string   `json:"path" yaml:"path"`
	PEHashNG string   `json:"pehashng,omitempty" yaml:"pehashng,omitempty"`
	Error    string   `json:"error,omitempty" yaml:"error,omitempty"`
	Details  *pe.Info `json:"details,omitempty" yaml:"details,omitempty"`
}

func (r *Reporter) record(res scan.Result) record {
	rec := record{Path: res.Path}
	if res.Err != nil {
		rec.Error = res.Err.Error()
		return rec
	}
	rec.PEHashNG = res.Info.Digest.String()
	if r.verbose {
		rec.Details = res.Info
	}
	return rec
}

// PrintResults writes every result. In text mode failed files are left out:
// they have already been logged.
func (r *Reporter) PrintResults(results []scan.Result) error {
	switch r.format {
	case config.FormatJSON, config.FormatYAML:
		records := make([]record, 0, len(results))
		for _, res := range results {
			records = append(records, r.record(res))
		}
		return r.encode(records)
	}

	for _, res := range results {
		if res.Err != nil {
			continue
		}
		r.printDigestLine(res.Info)
		if r.verbose {
			r.printDetails(res.Info)
		}
	}
	if r.verbose {
		r.printSummary(results)
	}
	return nil
}

// PrintComparison writes the outcome of comparing two files.
func (r *Reporter) PrintComparison(cmp *scan.Comparison) error {
	switch r.format {
	case config.FormatJSON, config.FormatYAML:
		return r.encode(struct {
			Equal bool   `json:"equal" yaml:"equal"`
			A     record `json:"a" yaml:"a"`
			B     record `json:"b" yaml:"b"`
		}{
			Equal: cmp.Equal,
			A:     r.record(scan.Result{Path: cmp.A.FilePath, Info: cmp.A}),
			B:     r.record(scan.Result{Path: cmp.B.FilePath, Info: cmp.B}),
		})
	}

	r.printDigestLine(cmp.A)
	r.printDigestLine(cmp.B)
	if cmp.Equal {
		green := color.New(color.FgGreen, color.Bold)
		_, _ = green.Fprintln(r.out, "✓ 结构哈希相同")
	} else {
		red := color.New(color.FgRed, color.Bold)
		_, _ = red.Fprintln(r.out, "✗ 结构哈希不同")
	}
	if r.verbose {
		r.printDetails(cmp.A)
		r.printDetails(cmp.B)
	}
	return nil
}

func (r *Reporter) encode(v any) error {
	if r.format == config.FormatYAML {
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("输出YAML失败: %w", err)
		}
		return enc.Close()
	}

	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("输出JSON失败: %w", err)
	}
	return nil
}

func (r *Reporter) printDigestLine(info *pe.Info) {
	cyan := color.New(color.FgCyan)
	_, _ = cyan.Fprint(r.out, info.Digest.String())
	fmt.Fprintf(r.out, " %s\n", info.FilePath)
}

func (r *Reporter) printDetails(info *pe.Info) {
	yellow := color.New(color.FgYellow, color.Bold)
	_, _ = yellow.Fprintln(r.out, "\n【基本信息】")

	fmt.Fprintf(r.out, "  %-16s: %s\n", "文件大小", humanize.IBytes(uint64(info.FileSize)))
	fmt.Fprintf(r.out, "  %-16s: %s\n", "解析后端", info.Backend)
	fmt.Fprintf(r.out, "  %-16s: %s\n", "架构", info.Architecture)
	fmt.Fprintf(r.out, "  %-16s: %s\n", "子系统", info.Subsystem)
	fmt.Fprintf(r.out, "  %-16s: 0x%X\n", "入口点", info.EntryPoint)
	fmt.Fprintf(r.out, "  %-16s: 0x%X\n", "镜像基址", info.ImageBase)
	if c := info.Checksum; c != nil {
		if c.Valid {
			fmt.Fprintf(r.out, "  %-16s: ✓ 有效 (0x%08X)\n", "校验和", c.Stored)
		} else {
			fmt.Fprintf(r.out, "  %-16s: ✗ 无效 (存储: 0x%08X, 计算: 0x%08X)\n", "校验和", c.Stored, c.Computed)
		}
	}

	h := info.Fields.Header
	_, _ = yellow.Fprintln(r.out, "\n【归一化头部字段】")
	fmt.Fprintf(r.out, "  %-16s: 0x%04X\n", "Characteristics", h.Characteristics)
	fmt.Fprintf(r.out, "  %-16s: %d\n", "Subsystem", h.Subsystem)
	fmt.Fprintf(r.out, "  %-16s: 0x%X\n", "SectionAlign", h.SectionAlignment)
	fmt.Fprintf(r.out, "  %-16s: 0x%X\n", "FileAlign", h.FileAlignment)
	fmt.Fprintf(r.out, "  %-16s: %s\n", "StackCommit", humanize.IBytes(h.StackCommit))
	fmt.Fprintf(r.out, "  %-16s: %s\n", "HeapCommit", humanize.IBytes(h.HeapCommit))
	fmt.Fprintf(r.out, "  %-16s: %016b\n", "Directories", h.Directories)

	_, _ = yellow.Fprintf(r.out, "\n【节区信息】(共 %d 个)\n", len(info.Sections))
	if len(info.Sections) == 0 {
		fmt.Fprintln(r.out, "  未发现节区")
		return
	}

	table := tablewriter.NewWriter(r.out)
	table.SetHeader([]string{"名称", "虚拟地址", "原始大小", "权限", "熵", "对齐VA", "对齐大小", "标志", "复杂度"})
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, s := range info.Sections {
		n := s.Normalized
		table.Append([]string{
			s.Name,
			fmt.Sprintf("0x%08X", s.VirtualAddress),
			humanize.IBytes(uint64(s.Size)),
			s.Permissions,
			fmt.Sprintf("%.2f", s.Entropy),
			fmt.Sprintf("0x%08X", n.VirtualAddress),
			fmt.Sprintf("0x%X", n.RawSize),
			fmt.Sprintf("0x%02X", n.Flags),
			complexityBar(n.Complexity),
		})
	}
	table.Render()
}

func (r *Reporter) printSummary(results []scan.Result) {
	failed := scan.Failed(results)
	fmt.Fprintln(r.out, strings.Repeat("-", 60))
	fmt.Fprintf(r.out, "共 %d 个文件, 成功 %d 个", len(results), len(results)-failed)
	if failed > 0 {
		red := color.New(color.FgRed)
		_, _ = red.Fprintf(r.out, ", 失败 %d 个", failed)
	}
	fmt.Fprintln(r.out)
}

// complexityBar renders a 0-8 score as a number and a bar.
func complexityBar(c uint8) string {
	return fmt.Sprintf("%d %s", c, strings.Repeat("█", int(c)))
}

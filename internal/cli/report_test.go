package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ZacharyZcR/pehashng/internal/config"
	"github.com/ZacharyZcR/pehashng/internal/pe"
	"github.com/ZacharyZcR/pehashng/internal/pe/petest"
	"github.com/ZacharyZcR/pehashng/internal/scan"
)

func init() {
	color.NoColor = true
}

func hashSample(t *testing.T, name string, img petest.Image) *pe.Info {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, img.Build(), 0o600))

	info, err := scan.New(config.Default(), nil).HashFile(path)
	require.NoError(t, err)
	return info
}

func sampleResults(t *testing.T) []scan.Result {
	info := hashSample(t, "a.exe", petest.Default())
	return []scan.Result{
		{Path: info.FilePath, Info: info},
		{Path: "broken.exe", Err: errors.New("无效的PE文件")},
	}
}

func TestPrintResultsText(t *testing.T) {
	results := sampleResults(t)

	var out bytes.Buffer
	r := NewReporter(&out, "")
	require.NoError(t, r.PrintResults(results))

	want := results[0].Info.Digest.String() + " " + results[0].Path + "\n"
	assert.Equal(t, want, out.String())
}

func TestPrintResultsVerbose(t *testing.T) {
	results := sampleResults(t)

	var out bytes.Buffer
	r := NewReporter(&out, config.FormatText)
	r.SetVerbose(true)
	require.NoError(t, r.PrintResults(results))

	got := out.String()
	assert.True(t, strings.HasPrefix(got, results[0].Info.Digest.String()))
	assert.Contains(t, got, "【基本信息】")
	assert.Contains(t, got, "✓ 有效 (0x00000000)")
	assert.Contains(t, got, "【归一化头部字段】")
	assert.Contains(t, got, "【节区信息】(共 2 个)")
	assert.Contains(t, got, ".text")
	assert.Contains(t, got, "R-X")
	assert.Contains(t, got, "0000000000000010")
	assert.Contains(t, got, "共 2 个文件, 成功 1 个, 失败 1 个")
}

func TestPrintResultsJSON(t *testing.T) {
	results := sampleResults(t)

	var out bytes.Buffer
	require.NoError(t, NewReporter(&out, config.FormatJSON).PrintResults(results))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got, 2)

	assert.Equal(t, results[0].Info.Digest.String(), got[0]["pehashng"])
	assert.NotContains(t, got[0], "details")
	assert.Equal(t, "broken.exe", got[1]["path"])
	assert.Equal(t, "无效的PE文件", got[1]["error"])
	assert.NotContains(t, got[1], "pehashng")
}

func TestPrintResultsJSONVerbose(t *testing.T) {
	results := sampleResults(t)

	var out bytes.Buffer
	r := NewReporter(&out, config.FormatJSON)
	r.SetVerbose(true)
	require.NoError(t, r.PrintResults(results[:1]))

	var got []struct {
		Details pe.Info `json:"details"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, results[0].Info.Digest, got[0].Details.Digest)
	assert.Equal(t, results[0].Info.Fields, got[0].Details.Fields)
}

func TestPrintResultsYAML(t *testing.T) {
	results := sampleResults(t)

	var out bytes.Buffer
	require.NoError(t, NewReporter(&out, config.FormatYAML).PrintResults(results))

	var got []record
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, results[0].Info.Digest.String(), got[0].PEHashNG)
	assert.Equal(t, "无效的PE文件", got[1].Error)
}

func TestPrintComparison(t *testing.T) {
	a := hashSample(t, "a.exe", petest.Default())
	gui := petest.Default()
	gui.Subsystem = 2
	b := hashSample(t, "b.exe", gui)

	t.Run("Equal", func(t *testing.T) {
		var out bytes.Buffer
		cmp := &scan.Comparison{A: a, B: a, Equal: true}
		require.NoError(t, NewReporter(&out, config.FormatText).PrintComparison(cmp))
		assert.Contains(t, out.String(), "结构哈希相同")
	})

	t.Run("Different", func(t *testing.T) {
		var out bytes.Buffer
		cmp := &scan.Comparison{A: a, B: b}
		require.NoError(t, NewReporter(&out, config.FormatText).PrintComparison(cmp))
		assert.Contains(t, out.String(), "结构哈希不同")
		assert.Contains(t, out.String(), b.Digest.String())
	})

	t.Run("JSON", func(t *testing.T) {
		var out bytes.Buffer
		cmp := &scan.Comparison{A: a, B: b}
		require.NoError(t, NewReporter(&out, config.FormatJSON).PrintComparison(cmp))

		var got struct {
			Equal bool   `json:"equal"`
			A     record `json:"a"`
			B     record `json:"b"`
		}
		require.NoError(t, json.Unmarshal(out.Bytes(), &got))
		assert.False(t, got.Equal)
		assert.Equal(t, a.FilePath, got.A.Path)
		assert.Equal(t, b.Digest.String(), got.B.PEHashNG)
	})
}

func TestComplexityBar(t *testing.T) {
	assert.Equal(t, "0 ", complexityBar(0))
	assert.Equal(t, "3 ███", complexityBar(3))
}

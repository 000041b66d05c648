package pe

import (
	"debug/pe"
	"errors"
	"os"
	"path/filepath"
	"testing"

	peparser "github.com/saferwall/pe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZacharyZcR/pehashng/internal/pe/petest"
	"github.com/ZacharyZcR/pehashng/internal/pehash"
)

func writeTestFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func expectedHeader(ti petest.Image) pehash.Header {
	h := pehash.Header{
		FileCharacteristics: ti.Characteristics,
		SubsystemValue:      ti.Subsystem,
		SectionAlign:        0x1000,
		FileAlign:           petest.FileAlignment,
		StackCommit:         uint64(ti.StackCommit),
		HeapCommit:          uint64(ti.HeapCommit),
		RvaAndSizes:         ti.RvaAndSizes,
	}
	for i := range ti.Directories {
		if uint32(i) < ti.RvaAndSizes {
			h.Directories[i] = true
		}
	}
	return h
}

func TestParseBackends(t *testing.T) {
	ti := petest.Default()
	data := ti.Build()

	text := pehash.Section{VA: 0x1000, RawSize: 0x200, Flags: ti.Sections[0].Characteristics, Content: data[0x400:0x600]}
	dataSec := pehash.Section{VA: 0x2000, RawSize: 0x200, Flags: ti.Sections[1].Characteristics, Content: data[0x600:0x800]}
	want := pehash.Compute(expectedHeader(ti), []pehash.SectionView{text, dataSec})

	for _, backend := range Backends {
		t.Run(backend.String(), func(t *testing.T) {
			img, err := Parse(data, backend)
			require.NoError(t, err)
			defer func() { _ = img.Close() }()

			assert.Equal(t, backend, img.Backend())
			assert.Equal(t, expectedHeader(ti), img.Header())
			assert.False(t, img.Is64())
			assert.Equal(t, uint16(pe.IMAGE_FILE_MACHINE_I386), img.Machine())

			headers := img.SectionHeaders()
			require.Len(t, headers, 2)
			assert.Equal(t, ".text", headers[0].Name)
			assert.Equal(t, uint32(0x180), headers[0].VirtualSize)
			assert.Equal(t, uint32(0x400), headers[0].PointerToRawData)
			assert.Equal(t, ti.Sections[0].Data, headers[0].Content[:len(ti.Sections[0].Data)])

			assert.Equal(t, want, pehash.FromImage(img))
		})
	}
}

func TestParseDefaultBackend(t *testing.T) {
	img, err := Parse(petest.Default().Build(), "")
	require.NoError(t, err)
	assert.Equal(t, BackendSaferwall, img.Backend())
}

func TestParseSortsSectionsByVirtualAddress(t *testing.T) {
	ti := petest.Default()
	ti.Sections[0], ti.Sections[1] = ti.Sections[1], ti.Sections[0]
	reversed := ti.Build()
	ordered := petest.Default().Build()

	for _, backend := range Backends {
		t.Run(backend.String(), func(t *testing.T) {
			img, err := Parse(reversed, backend)
			require.NoError(t, err)

			headers := img.SectionHeaders()
			require.Len(t, headers, 2)
			assert.Equal(t, ".text", headers[0].Name)
			assert.Equal(t, ".data", headers[1].Name)

			ref, err := Parse(ordered, backend)
			require.NoError(t, err)
			assert.Equal(t, pehash.FromImage(ref), pehash.FromImage(img))
		})
	}
}

func TestParseFewerDirectories(t *testing.T) {
	ti := petest.Default()
	ti.RvaAndSizes = 2
	ti.Directories = map[int]uint32{0: 0x1800, 1: 0x2000}

	img, err := Parse(ti.Build(), BackendDebugPE)
	require.NoError(t, err)

	assert.Equal(t, uint32(2), img.Header().NumberOfRvaAndSizes())
	assert.Equal(t, uint16(0b11), pehash.DirectoryBitmap(img.Header()))
}

func TestParseUnalignedPointerToRawData(t *testing.T) {
	ti := petest.Default()
	ti.Sections[0].PointerToRawData = 0x410
	data := ti.Build()

	f, err := peparser.NewBytes(data, &peparser.Options{Fast: true})
	require.NoError(t, err)
	require.NoError(t, f.Parse())
	want := f.Sections[0].Data(0, 0, f)
	require.Len(t, want, 0x200)
	assert.Equal(t, data[0x400:0x600], want)

	ref, err := Parse(petest.Default().Build(), BackendDebugPE)
	require.NoError(t, err)

	for _, backend := range Backends {
		t.Run(backend.String(), func(t *testing.T) {
			img, err := Parse(data, backend)
			require.NoError(t, err)

			text := img.SectionHeaders()[0]
			assert.Equal(t, uint32(0x410), text.PointerToRawData)
			assert.Equal(t, want, text.Content)
			assert.Equal(t, pehash.FromImage(ref), pehash.FromImage(img))
		})
	}
}

func TestParseTruncatedSection(t *testing.T) {
	ti := petest.Default()
	data := ti.Build()
	truncated := data[:0x700]

	img, err := Parse(truncated, BackendDebugPE)
	require.NoError(t, err)

	headers := img.SectionHeaders()
	require.Len(t, headers, 2)
	assert.Len(t, headers[0].Content, 0x200)
	assert.Len(t, headers[1].Content, 0x100)
	assert.Equal(t, uint32(0x200), headers[1].RawSize)
}

func TestParseInvalid(t *testing.T) {
	valid := petest.Default().Build()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "Empty", data: nil},
		{name: "Not an executable", data: []byte("%PDF-1.7 this is not a PE file at all")},
		{name: "Truncated DOS header", data: valid[:0x30]},
	}

	for _, backend := range Backends {
		for _, tt := range tests {
			t.Run(backend.String()+"/"+tt.name, func(t *testing.T) {
				img, err := Parse(tt.data, backend)
				assert.Nil(t, img)
				require.Error(t, err)
				assert.True(t, IsFormatError(err), "got %T: %v", err, err)
			})
		}
	}
}

func TestParseTruncatedSectionTable(t *testing.T) {
	valid := petest.Default().Build()

	_, err := Parse(valid[:0x100], BackendDebugPE)
	require.Error(t, err)

	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.NotNil(t, errors.Unwrap(err))
}

func TestParseFieldOverflow(t *testing.T) {
	ti := petest.Default()
	ti.Sections[1].VirtualAddress = 0xFFFFFF00

	img, err := Parse(ti.Build(), BackendDebugPE)
	assert.Nil(t, img)
	require.Error(t, err)
	assert.True(t, IsFormatError(err))
	assert.ErrorIs(t, err, pehash.ErrFieldOverflow)
}

func TestParseUnknownBackend(t *testing.T) {
	_, err := Parse(petest.Default().Build(), Backend("pefile"))
	require.Error(t, err)
	assert.False(t, IsFormatError(err))
}

func TestOpen(t *testing.T) {
	data := petest.Default().Build()
	path := writeTestFile(t, "sample.exe", data)

	img, err := Open(path, BackendDebugPE)
	require.NoError(t, err)

	assert.Equal(t, path, img.FilePath())
	assert.Equal(t, int64(len(data)), img.FileSize())

	inMemory, err := Parse(data, BackendDebugPE)
	require.NoError(t, err)
	assert.Equal(t, pehash.FromImage(inMemory), pehash.FromImage(img))

	require.NoError(t, img.Close())
	require.NoError(t, img.Close())
}

func TestOpenErrors(t *testing.T) {
	t.Run("Missing file", func(t *testing.T) {
		_, err := Open("/nonexistent/sample.exe", BackendDebugPE)
		require.Error(t, err)
		assert.False(t, IsFormatError(err))
	})

	t.Run("Empty file", func(t *testing.T) {
		path := writeTestFile(t, "empty.exe", nil)
		_, err := Open(path, BackendDebugPE)
		require.Error(t, err)
		assert.True(t, IsFormatError(err))
	})

	t.Run("Text file", func(t *testing.T) {
		path := writeTestFile(t, "notes.txt", []byte("hello"))
		_, err := Open(path, BackendSaferwall)
		require.Error(t, err)

		var fe *FormatError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, path, fe.Path)
		assert.Contains(t, err.Error(), path)
	})
}

func TestSectionData(t *testing.T) {
	data := make([]byte, 0x1000)
	for i := range data {
		data[i] = byte(i)
	}

	tests := []struct {
		name          string
		pointer       uint32
		size          uint32
		fileAlignment uint32
		wantStart     int
		wantEnd       int
	}{
		{name: "Aligned", pointer: 0x400, size: 0x200, fileAlignment: 0x200, wantStart: 0x400, wantEnd: 0x600},
		{name: "Pointer rounded down", pointer: 0x410, size: 0x100, fileAlignment: 0x200, wantStart: 0x400, wantEnd: 0x500},
		{name: "Rounded down near end of file", pointer: 0xF10, size: 0x200, fileAlignment: 0x200, wantStart: 0xE00, wantEnd: 0x1000},
		{name: "Small alignment keeps pointer", pointer: 0x410, size: 0x100, fileAlignment: 0x20, wantStart: 0x410, wantEnd: 0x510},
		{name: "Clipped to file size", pointer: 0xE00, size: 0x400, fileAlignment: 0x200, wantStart: 0xE00, wantEnd: 0x1000},
		{name: "Past end of file", pointer: 0x2000, size: 0x200, fileAlignment: 0x200, wantStart: 0, wantEnd: 0},
		{name: "Zero size", pointer: 0x400, size: 0, fileAlignment: 0x200, wantStart: 0, wantEnd: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sectionData(data, tt.pointer, tt.size, tt.fileAlignment)
			if tt.wantEnd == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, data[tt.wantStart:tt.wantEnd], got)
		})
	}
}

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{in: "", want: BackendSaferwall},
		{in: "debugpe", want: BackendDebugPE},
		{in: " Saferwall ", want: BackendSaferwall},
		{in: "pefile", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBackend(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

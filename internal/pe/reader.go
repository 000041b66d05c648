// Package pe reads PE images and exposes them to the structural hash.
package pe

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/edsrzf/mmap-go"

	"github.com/ZacharyZcR/pehashng/internal/pehash"
)

// fileAlignmentHardcoded is the sector size the Windows loader rounds
// PointerToRawData down to when FileAlignment is at least that large.
const fileAlignmentHardcoded = 0x200

// FormatError reports input that could not be parsed as a PE image.
// No digest is produced for such input.
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("解析PE文件失败: %v", e.Err)
	}
	return fmt.Sprintf("解析PE文件失败 %s: %v", e.Path, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// IsFormatError reports whether err is, or wraps, a *FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// Section is one section header together with its bytes on disk.
type Section struct {
	pehash.Section
	Name             string
	VirtualSize      uint32
	PointerToRawData uint32
}

// Image is a parsed PE file. It implements pehash.Image.
type Image struct {
	path     string
	data     []byte
	mapping  mmap.MMap
	backend  Backend
	header   pehash.Header
	machine  uint16
	is64     bool
	entry    uint64
	base     uint64
	sections []*Section
}

// Open maps the file at path read-only and parses it with the given backend.
func Open(path string, backend Backend) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开PE文件失败: %w", err)
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("获取文件信息失败: %w", err)
	}
	if stat.Size() == 0 {
		return nil, &FormatError{Path: path, Err: errors.New("文件为空")}
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("映射文件失败: %w", err)
	}

	img, err := parse(m, backend)
	if err != nil {
		_ = m.Unmap()
		var fe *FormatError
		if errors.As(err, &fe) {
			fe.Path = path
		}
		return nil, err
	}
	img.path = path
	img.mapping = m
	return img, nil
}

// Parse parses an in-memory PE image. data must stay unmodified while the
// image is in use.
func Parse(data []byte, backend Backend) (*Image, error) {
	return parse(data, backend)
}

func parse(data []byte, backend Backend) (*Image, error) {
	if !IsExecutable(data) {
		return nil, &FormatError{Err: errors.New("缺少MZ签名")}
	}

	if backend == "" {
		backend = DefaultBackend
	}

	var (
		img *Image
		err error
	)
	switch backend {
	case BackendDebugPE:
		img, err = parseDebugPE(data)
	case BackendSaferwall:
		img, err = parseSaferwall(data)
	default:
		return nil, fmt.Errorf("未知的解析后端: %q", backend)
	}
	if err != nil {
		return nil, &FormatError{Err: err}
	}

	img.data = data
	img.backend = backend
	img.resolveSections()
	if err := pehash.Validate(img.header, img.Sections()); err != nil {
		return nil, &FormatError{Err: err}
	}
	return img, nil
}

// resolveSections orders sections by virtual address and slices their bytes
// out of the image.
func (img *Image) resolveSections() {
	sort.SliceStable(img.sections, func(i, j int) bool {
		return img.sections[i].VA < img.sections[j].VA
	})
	for _, s := range img.sections {
		s.Content = sectionData(img.data, s.PointerToRawData, s.RawSize, img.header.FileAlign)
	}
}

// sectionData returns the on-disk bytes of a section: SizeOfRawData bytes
// from PointerToRawData, with the start rounded down to 0x200 when
// FileAlignment >= 0x200. The end is clipped to the file size, so truncated
// files yield short or empty content.
func sectionData(data []byte, pointer, size, fileAlignment uint32) []byte {
	start := uint64(pointer)
	if fileAlignment >= fileAlignmentHardcoded {
		start = start / fileAlignmentHardcoded * fileAlignmentHardcoded
	}
	end := start + uint64(size)

	n := uint64(len(data))
	if end > n {
		end = n
	}
	if start >= end {
		return nil
	}
	return data[start:end]
}

// Close releases the file mapping. Section content must not be used afterwards.
func (img *Image) Close() error {
	if img.mapping == nil {
		return nil
	}
	err := img.mapping.Unmap()
	img.mapping = nil
	return err
}

// Header implements pehash.Image.
func (img *Image) Header() pehash.HeaderView {
	return img.header
}

// Sections implements pehash.Image.
func (img *Image) Sections() []pehash.SectionView {
	views := make([]pehash.SectionView, len(img.sections))
	for i, s := range img.sections {
		views[i] = s.Section
	}
	return views
}

// SectionHeaders returns the sections in virtual address order.
func (img *Image) SectionHeaders() []*Section {
	return img.sections
}

// FilePath returns the path the image was opened from, if any.
func (img *Image) FilePath() string {
	return img.path
}

// FileSize returns the image size in bytes.
func (img *Image) FileSize() int64 {
	return int64(len(img.data))
}

// Backend returns the parser that produced the image.
func (img *Image) Backend() Backend {
	return img.backend
}

// Machine returns the COFF machine type.
func (img *Image) Machine() uint16 {
	return img.machine
}

// Is64 reports whether the image has a PE32+ optional header.
func (img *Image) Is64() bool {
	return img.is64
}

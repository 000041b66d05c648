package pehash

import (
	"errors"
	"fmt"
	"math"
)

// DirectoryMask clears data directory bits 7 (architecture), 8 (global pointer)
// and 15 (reserved), which vary too much to be structural.
const DirectoryMask = 0b0111111001111111

const (
	commitAlignment        = 4096
	virtualAddressAlign    = 512
	sizeOfRawDataAlignment = 256
)

// HeaderFields holds the normalized image-level values, in hashing order.
type HeaderFields struct {
	Characteristics  uint16 `json:"characteristics" yaml:"characteristics"`
	Subsystem        uint16 `json:"subsystem" yaml:"subsystem"`
	SectionAlignment uint32 `json:"section_alignment" yaml:"section_alignment"`
	FileAlignment    uint32 `json:"file_alignment" yaml:"file_alignment"`
	StackCommit      uint64 `json:"stack_commit" yaml:"stack_commit"`
	HeapCommit       uint64 `json:"heap_commit" yaml:"heap_commit"`
	Directories      uint16 `json:"directories" yaml:"directories"`
}

// SectionFields holds the normalized values of one section, in hashing order.
type SectionFields struct {
	VirtualAddress uint32 `json:"virtual_address" yaml:"virtual_address"`
	RawSize        uint32 `json:"raw_size" yaml:"raw_size"`
	Flags          uint8  `json:"flags" yaml:"flags"`
	Complexity     uint8  `json:"complexity" yaml:"complexity"`
}

// Fields is the canonical form of an image. Two images with equal Fields have
// equal digests.
type Fields struct {
	Header   HeaderFields    `json:"header" yaml:"header"`
	Sections []SectionFields `json:"sections" yaml:"sections"`
}

// Normalize extracts and quantizes the hashed fields. Sections are taken in
// the order given.
func Normalize(h HeaderView, sections []SectionView) Fields {
	f := Fields{
		Header:   NormalizeHeader(h),
		Sections: make([]SectionFields, 0, len(sections)),
	}
	for _, s := range sections {
		f.Sections = append(f.Sections, NormalizeSection(s))
	}
	return f
}

// NormalizeHeader quantizes the image-level fields. Commits above
// 0xFFFFFFFFFFFFF000 wrap to 0; see Validate.
func NormalizeHeader(h HeaderView) HeaderFields {
	return HeaderFields{
		Characteristics:  h.Characteristics(),
		Subsystem:        h.Subsystem(),
		SectionAlignment: uint32(AlignDownPow2(uint64(h.SectionAlignment()))),
		FileAlignment:    uint32(AlignDownPow2(uint64(h.FileAlignment()))),
		StackCommit:      AlignUp(h.SizeOfStackCommit(), commitAlignment),
		HeapCommit:       AlignUp(h.SizeOfHeapCommit(), commitAlignment),
		Directories:      DirectoryBitmap(h),
	}
}

// DirectoryBitmap sets bit i for every valid data directory with a virtual
// address, then applies DirectoryMask.
func DirectoryBitmap(h HeaderView) uint16 {
	n := h.NumberOfRvaAndSizes()
	if n > MaxDirectories {
		n = MaxDirectories
	}

	var bitmap uint16
	for i := 0; i < int(n); i++ {
		if h.DirectoryHasVirtualAddress(i) {
			bitmap |= 1 << i
		}
	}
	return bitmap & DirectoryMask
}

// ErrFieldOverflow reports a field whose aligned value does not fit the width
// it is packed in.
var ErrFieldOverflow = errors.New("对齐后的字段超出范围")

// Largest inputs whose aligned value still fits the packed width.
const (
	maxCommit         = math.MaxUint64 &^ (commitAlignment - 1)
	maxVirtualAddress = math.MaxUint32 &^ (virtualAddressAlign - 1)
	maxSizeOfRawData  = math.MaxUint32 &^ (sizeOfRawDataAlignment - 1)
)

// Validate reports fields that Normalize would wrap around: stack or heap
// commit above 0xFFFFFFFFFFFFF000, virtual address above 0xFFFFFE00 or
// SizeOfRawData above 0xFFFFFF00. Such images have no pehashng.
func Validate(h HeaderView, sections []SectionView) error {
	if c := h.SizeOfStackCommit(); c > maxCommit {
		return fmt.Errorf("%w: SizeOfStackCommit 0x%X", ErrFieldOverflow, c)
	}
	if c := h.SizeOfHeapCommit(); c > maxCommit {
		return fmt.Errorf("%w: SizeOfHeapCommit 0x%X", ErrFieldOverflow, c)
	}
	for i, s := range sections {
		if va := s.VirtualAddress(); va > maxVirtualAddress {
			return fmt.Errorf("%w: 节区 %d VirtualAddress 0x%X", ErrFieldOverflow, i, va)
		}
		if n := s.SizeOfRawData(); n > maxSizeOfRawData {
			return fmt.Errorf("%w: 节区 %d SizeOfRawData 0x%X", ErrFieldOverflow, i, n)
		}
	}
	return nil
}

// NormalizeSection quantizes one section and scores its complexity.
// Aligned values are truncated to their packed width, so out-of-range input
// wraps to small values; see Validate.
func NormalizeSection(s SectionView) SectionFields {
	return SectionFields{
		VirtualAddress: uint32(AlignUp(uint64(s.VirtualAddress()), virtualAddressAlign)),
		RawSize:        uint32(AlignUp(uint64(s.SizeOfRawData()), sizeOfRawDataAlignment)),
		Flags:          uint8(s.Characteristics() >> 24),
		Complexity:     Complexity(s.SizeOfRawData(), s.RawContent()),
	}
}

// Package pehash computes pehashng, a SHA-256 over coarse structural
// properties of a PE image.
//
// The package never parses PE files itself. Callers supply a HeaderView and
// the sections of an image through the interfaces below; package pe provides
// implementations backed by real parsers.
package pehash

// MaxDirectories is the number of data directory slots in an optional header.
const MaxDirectories = 16

// HeaderView exposes the file and optional header fields the hash reads.
type HeaderView interface {
	Characteristics() uint16
	Subsystem() uint16
	SectionAlignment() uint32
	FileAlignment() uint32
	// SizeOfStackCommit and SizeOfHeapCommit are widened to 64 bits for PE32.
	SizeOfStackCommit() uint64
	SizeOfHeapCommit() uint64
	NumberOfRvaAndSizes() uint32
	// DirectoryHasVirtualAddress reports whether data directory i has a
	// non-zero virtual address. i is in [0, MaxDirectories).
	DirectoryHasVirtualAddress(i int) bool
}

// SectionView exposes one section header and its raw bytes on disk.
type SectionView interface {
	VirtualAddress() uint32
	SizeOfRawData() uint32
	Characteristics() uint32
	// RawContent is the section body as stored in the file. It may be shorter
	// than SizeOfRawData when the file is truncated.
	RawContent() []byte
}

// Image is a parsed executable. Sections must be ordered by ascending
// virtual address.
type Image interface {
	Header() HeaderView
	Sections() []SectionView
}

// Header is a HeaderView over plain values.
type Header struct {
	FileCharacteristics uint16
	SubsystemValue      uint16
	SectionAlign        uint32
	FileAlign           uint32
	StackCommit         uint64
	HeapCommit          uint64
	RvaAndSizes         uint32
	Directories         [MaxDirectories]bool
}

func (h Header) Characteristics() uint16 { return h.FileCharacteristics }
func (h Header) Subsystem() uint16 { return h.SubsystemValue }
func (h Header) SectionAlignment() uint32 { return h.SectionAlign }
func (h Header) FileAlignment() uint32 { return h.FileAlign }
func (h Header) SizeOfStackCommit() uint64 { return h.StackCommit }
func (h Header) SizeOfHeapCommit() uint64 { return h.HeapCommit }
func (h Header) NumberOfRvaAndSizes() uint32 { return h.RvaAndSizes }

func (h Header) DirectoryHasVirtualAddress(i int) bool {
	if i < 0 || i >= MaxDirectories {
		return false
	}
	return h.Directories[i]
}

// Section is a SectionView over plain values.
type Section struct {
	VA      uint32
	RawSize uint32
	Flags   uint32
	Content []byte
}

func (s Section) VirtualAddress() uint32 { return s.VA }
func (s Section) SizeOfRawData() uint32 { return s.RawSize }
func (s Section) Characteristics() uint32 { return s.Flags }
func (s Section) RawContent() []byte { return s.Content }

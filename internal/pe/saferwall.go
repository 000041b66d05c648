package pe

import (
	"errors"
	"strings"

	peparser "github.com/saferwall/pe"

	"github.com/ZacharyZcR/pehashng/internal/pehash"
)

// parseSaferwall builds an Image with saferwall/pe in fast mode, which stops
// after the section table and never walks data directories.
//
// The parser is not closed: it would unmap data, which belongs to the caller.
func parseSaferwall(data []byte) (*Image, error) {
	f, err := peparser.NewBytes(data, &peparser.Options{Fast: true})
	if err != nil {
		return nil, err
	}
	if err := f.Parse(); err != nil {
		return nil, err
	}

	nt := f.NtHeader
	img := &Image{machine: uint16(nt.FileHeader.Machine)}
	img.header.FileCharacteristics = uint16(nt.FileHeader.Characteristics)

	switch oh := nt.OptionalHeader.(type) {
	case peparser.ImageOptionalHeader32:
		img.header.SubsystemValue = uint16(oh.Subsystem)
		img.header.SectionAlign = uint32(oh.SectionAlignment)
		img.header.FileAlign = uint32(oh.FileAlignment)
		img.header.StackCommit = uint64(oh.SizeOfStackCommit)
		img.header.HeapCommit = uint64(oh.SizeOfHeapCommit)
		img.header.RvaAndSizes = uint32(oh.NumberOfRvaAndSizes)
		for i, d := range oh.DataDirectory {
			img.header.Directories[i] = d.VirtualAddress != 0
		}
		img.entry = uint64(oh.AddressOfEntryPoint)
		img.base = uint64(oh.ImageBase)
	case peparser.ImageOptionalHeader64:
		img.is64 = true
		img.header.SubsystemValue = uint16(oh.Subsystem)
		img.header.SectionAlign = uint32(oh.SectionAlignment)
		img.header.FileAlign = uint32(oh.FileAlignment)
		img.header.StackCommit = uint64(oh.SizeOfStackCommit)
		img.header.HeapCommit = uint64(oh.SizeOfHeapCommit)
		img.header.RvaAndSizes = uint32(oh.NumberOfRvaAndSizes)
		for i, d := range oh.DataDirectory {
			img.header.Directories[i] = d.VirtualAddress != 0
		}
		img.entry = uint64(oh.AddressOfEntryPoint)
		img.base = uint64(oh.ImageBase)
	default:
		return nil, errors.New("缺少可选头")
	}

	for _, s := range f.Sections {
		h := s.Header
		img.sections = append(img.sections, &Section{
			Section: pehash.Section{
				VA:      uint32(h.VirtualAddress),
				RawSize: uint32(h.SizeOfRawData),
				Flags:   uint32(h.Characteristics),
			},
			Name:             strings.TrimRight(string(h.Name[:]), "\x00"),
			VirtualSize:      uint32(h.VirtualSize),
			PointerToRawData: uint32(h.PointerToRawData),
		})
	}

	return img, nil
}

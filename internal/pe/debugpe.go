package pe

import (
	"bytes"
	"debug/pe"
	"errors"

	"github.com/ZacharyZcR/pehashng/internal/pehash"
)

// parseDebugPE builds an Image with debug/pe. Only headers are read here;
// section bytes are sliced from data afterwards.
func parseDebugPE(data []byte) (*Image, error) {
	f, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	img := &Image{machine: f.Machine}
	img.header.FileCharacteristics = f.Characteristics

	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		img.header.SubsystemValue = oh.Subsystem
		img.header.SectionAlign = oh.SectionAlignment
		img.header.FileAlign = oh.FileAlignment
		img.header.StackCommit = uint64(oh.SizeOfStackCommit)
		img.header.HeapCommit = uint64(oh.SizeOfHeapCommit)
		img.header.RvaAndSizes = oh.NumberOfRvaAndSizes
		img.header.Directories = directoryFlags(oh.DataDirectory)
		img.entry = uint64(oh.AddressOfEntryPoint)
		img.base = uint64(oh.ImageBase)
	case *pe.OptionalHeader64:
		img.is64 = true
		img.header.SubsystemValue = oh.Subsystem
		img.header.SectionAlign = oh.SectionAlignment
		img.header.FileAlign = oh.FileAlignment
		img.header.StackCommit = oh.SizeOfStackCommit
		img.header.HeapCommit = oh.SizeOfHeapCommit
		img.header.RvaAndSizes = oh.NumberOfRvaAndSizes
		img.header.Directories = directoryFlags(oh.DataDirectory)
		img.entry = uint64(oh.AddressOfEntryPoint)
		img.base = oh.ImageBase
	default:
		return nil, errors.New("缺少可选头")
	}

	for _, s := range f.Sections {
		img.sections = append(img.sections, &Section{
			Section: pehash.Section{
				VA:      s.VirtualAddress,
				RawSize: s.Size,
				Flags:   s.Characteristics,
			},
			Name:             s.Name,
			VirtualSize:      s.VirtualSize,
			PointerToRawData: s.Offset,
		})
	}

	return img, nil
}

func directoryFlags(dirs [16]pe.DataDirectory) [pehash.MaxDirectories]bool {
	var flags [pehash.MaxDirectories]bool
	for i, d := range dirs {
		flags[i] = d.VirtualAddress != 0
	}
	return flags
}

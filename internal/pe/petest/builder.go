// Package petest synthesizes small PE32 images for tests.
package petest

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"fmt"
)

// Fixed layout values of every built image. Section bodies start at HeaderSize.
const (
	FileAlignment    = 0x200
	SectionAlignment = 0x1000
	HeaderSize       = 0x400
	EntryPoint       = 0x1000
	ImageBase        = 0x400000
)

const optionalHeaderMinSize = 96

// Section describes one section of a built image.
type Section struct {
	Name            string
	VirtualAddress  uint32
	VirtualSize     uint32
	Characteristics uint32
	Data            []byte
	// RawSize overrides the SizeOfRawData written to the header. By default
	// it is len(Data) rounded up to FileAlignment.
	RawSize uint32
	// PointerToRawData overrides the file offset written to the header. The
	// body is still laid out in table order.
	PointerToRawData uint32
}

// Image describes a PE32 file to build.
type Image struct {
	Characteristics uint16
	Subsystem       uint16
	StackCommit     uint32
	HeapCommit      uint32
	RvaAndSizes     uint32
	// Directories maps data directory index to virtual address.
	Directories map[int]uint32
	Sections    []Section
}

// Default returns a console executable with a code and a data section and
// import and global pointer directories.
func Default() Image {
	return Image{
		Characteristics: pe.IMAGE_FILE_EXECUTABLE_IMAGE | pe.IMAGE_FILE_32BIT_MACHINE,
		Subsystem:       pe.IMAGE_SUBSYSTEM_WINDOWS_CUI,
		StackCommit:     0x1000,
		HeapCommit:      0x1000,
		RvaAndSizes:     16,
		Directories:     map[int]uint32{1: 0x2000, 8: 0x3000},
		Sections: []Section{
			{
				Name:            ".text",
				VirtualAddress:  0x1000,
				VirtualSize:     0x180,
				Characteristics: pe.IMAGE_SCN_CNT_CODE | pe.IMAGE_SCN_MEM_EXECUTE | pe.IMAGE_SCN_MEM_READ,
				Data:            bytes.Repeat([]byte{0x55, 0x8B, 0xEC, 0x90}, 0x80),
			},
			{
				Name:            ".data",
				VirtualAddress:  0x2000,
				VirtualSize:     0x100,
				Characteristics: pe.IMAGE_SCN_CNT_INITIALIZED_DATA | pe.IMAGE_SCN_MEM_READ | pe.IMAGE_SCN_MEM_WRITE,
				Data:            make([]byte, 0x200),
			},
		},
	}
}

// Build lays out the image: headers in the first HeaderSize bytes, then the
// section bodies in table order, each padded to FileAlignment.
func (img Image) Build() []byte {
	var buf bytes.Buffer
	dos := make([]byte, 0x40)
	dos[0], dos[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(dos[0x3C:], 0x40)
	buf.Write(dos)
	buf.WriteString("PE\x00\x00")

	optSize := optionalHeaderMinSize + 8*int(img.RvaAndSizes)

	mustWrite(&buf, pe.FileHeader{
		Machine:              pe.IMAGE_FILE_MACHINE_I386,
		NumberOfSections:     uint16(len(img.Sections)),
		SizeOfOptionalHeader: uint16(optSize),
		Characteristics:      img.Characteristics,
	})

	oh := pe.OptionalHeader32{
		Magic:               0x10B,
		AddressOfEntryPoint: EntryPoint,
		ImageBase:           ImageBase,
		SectionAlignment:    SectionAlignment,
		FileAlignment:       FileAlignment,
		SizeOfImage:         0x10000,
		SizeOfHeaders:       HeaderSize,
		Subsystem:           img.Subsystem,
		SizeOfStackReserve:  0x100000,
		SizeOfStackCommit:   img.StackCommit,
		SizeOfHeapReserve:   0x100000,
		SizeOfHeapCommit:    img.HeapCommit,
		NumberOfRvaAndSizes: img.RvaAndSizes,
	}
	for i, va := range img.Directories {
		oh.DataDirectory[i] = pe.DataDirectory{VirtualAddress: va, Size: 0x40}
	}
	var ohBuf bytes.Buffer
	mustWrite(&ohBuf, oh)
	buf.Write(ohBuf.Bytes()[:optSize])

	offset := uint32(HeaderSize)
	var bodies bytes.Buffer
	for _, s := range img.Sections {
		body := make([]byte, alignTo(uint32(len(s.Data)), FileAlignment))
		copy(body, s.Data)

		sh := pe.SectionHeader32{
			VirtualSize:     s.VirtualSize,
			VirtualAddress:  s.VirtualAddress,
			SizeOfRawData:   s.RawSize,
			Characteristics: s.Characteristics,
		}
		if sh.SizeOfRawData == 0 {
			sh.SizeOfRawData = uint32(len(body))
		}
		if sh.SizeOfRawData != 0 {
			sh.PointerToRawData = offset
		}
		if s.PointerToRawData != 0 {
			sh.PointerToRawData = s.PointerToRawData
		}
		copy(sh.Name[:], s.Name)
		mustWrite(&buf, sh)

		bodies.Write(body)
		offset += uint32(len(body))
	}

	if buf.Len() > HeaderSize {
		panic(fmt.Sprintf("petest: headers need %d bytes, more than %d", buf.Len(), HeaderSize))
	}
	buf.Write(make([]byte, HeaderSize-buf.Len()))
	buf.Write(bodies.Bytes())
	return buf.Bytes()
}

func mustWrite(buf *bytes.Buffer, v any) {
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		panic(fmt.Sprintf("petest: %v", err))
	}
}

func alignTo(n, a uint32) uint32 {
	return (n + a - 1) / a * a
}

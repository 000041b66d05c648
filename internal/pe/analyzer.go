package pe

import (
	"debug/pe"
	"fmt"

	"github.com/ZacharyZcR/pehashng/internal/pehash"
)

// Info contains the structural hash of a PE file and the values behind it.
type Info struct {
	FilePath     string        `json:"path" yaml:"path"`
	FileSize     int64         `json:"size" yaml:"size"`
	Backend      Backend       `json:"backend" yaml:"backend"`
	Architecture string        `json:"architecture" yaml:"architecture"`
	Subsystem    string        `json:"subsystem" yaml:"subsystem"`
	EntryPoint   uint64        `json:"entry_point" yaml:"entry_point"`
	ImageBase    uint64        `json:"image_base" yaml:"image_base"`
	Digest       pehash.Digest `json:"pehashng" yaml:"pehashng"`
	Fields       pehash.Fields `json:"fields" yaml:"fields"`
	Checksum     *ChecksumInfo `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	Sections     []SectionInfo `json:"sections" yaml:"sections"`
}

// SectionInfo describes one section next to its normalized fields.
type SectionInfo struct {
	Name            string               `json:"name" yaml:"name"`
	VirtualAddress  uint32               `json:"virtual_address" yaml:"virtual_address"`
	VirtualSize     uint32               `json:"virtual_size" yaml:"virtual_size"`
	Size            uint32               `json:"raw_size" yaml:"raw_size"`
	Characteristics uint32               `json:"characteristics" yaml:"characteristics"`
	Permissions     string               `json:"permissions" yaml:"permissions"`
	Entropy         float64              `json:"entropy" yaml:"entropy"`
	Normalized      pehash.SectionFields `json:"normalized" yaml:"normalized"`
}

// Analyzer hashes an image and collects the details shown in reports.
type Analyzer struct {
	img *Image
}

// NewAnalyzer creates a new analyzer for the given image.
func NewAnalyzer(img *Image) *Analyzer {
	return &Analyzer{img: img}
}

// Analyze computes the digest and its breakdown.
func (a *Analyzer) Analyze() *Info {
	img := a.img
	fields := pehash.Normalize(img.Header(), img.Sections())

	info := &Info{
		FilePath:     img.FilePath(),
		FileSize:     img.FileSize(),
		Backend:      img.Backend(),
		Architecture: getArchitecture(img.Machine()),
		Subsystem:    getSubsystem(img.header.SubsystemValue),
		EntryPoint:   img.entry,
		ImageBase:    img.base,
		Digest:       fields.Sum(),
		Fields:       fields,
		Checksum:     VerifyChecksum(img.data),
	}

	for i, s := range img.SectionHeaders() {
		info.Sections = append(info.Sections, SectionInfo{
			Name:            s.Name,
			VirtualAddress:  s.VA,
			VirtualSize:     s.VirtualSize,
			Size:            s.RawSize,
			Characteristics: s.Flags,
			Permissions:     getSectionPermissions(s.Flags),
			Entropy:         CalculateEntropy(s.Content),
			Normalized:      fields.Sections[i],
		})
	}

	return info
}

func getArchitecture(machine uint16) string {
	switch machine {
	case pe.IMAGE_FILE_MACHINE_I386:
		return "x86 (32位)"
	case pe.IMAGE_FILE_MACHINE_AMD64:
		return "x64 (64位)"
	case pe.IMAGE_FILE_MACHINE_ARM, pe.IMAGE_FILE_MACHINE_ARMNT:
		return "ARM"
	case pe.IMAGE_FILE_MACHINE_ARM64:
		return "ARM64"
	default:
		return fmt.Sprintf("未知 (0x%X)", machine)
	}
}

func getSubsystem(subsystem uint16) string {
	switch subsystem {
	case pe.IMAGE_SUBSYSTEM_WINDOWS_GUI:
		return "Windows GUI"
	case pe.IMAGE_SUBSYSTEM_WINDOWS_CUI:
		return "Windows 控制台"
	case pe.IMAGE_SUBSYSTEM_NATIVE:
		return "Native"
	case pe.IMAGE_SUBSYSTEM_EFI_APPLICATION:
		return "EFI 应用"
	default:
		return fmt.Sprintf("未知 (0x%X)", subsystem)
	}
}

func getSectionPermissions(c uint32) string {
	perms := [3]byte{'-', '-', '-'}

	if c&pe.IMAGE_SCN_MEM_READ != 0 {
		perms[0] = 'R'
	}
	if c&pe.IMAGE_SCN_MEM_WRITE != 0 {
		perms[1] = 'W'
	}
	if c&pe.IMAGE_SCN_MEM_EXECUTE != 0 {
		perms[2] = 'X'
	}

	return string(perms[:])
}

package pe

import (
	"encoding/binary"
)

// CheckSum sits 64 bytes into the optional header of both PE32 and PE32+,
// after the "PE\0\0" signature and the 20-byte file header.
const checksumFieldOffset = 4 + 20 + 64

// ChecksumInfo contains PE checksum verification results.
type ChecksumInfo struct {
	Stored   uint32 `json:"stored" yaml:"stored"`
	Computed uint32 `json:"computed" yaml:"computed"`
	Valid    bool   `json:"valid" yaml:"valid"`
}

// VerifyChecksum recomputes the checksum of a whole image and compares it to
// the stored one. A stored checksum of zero means the file was never
// checksummed and counts as valid. It returns nil when the field lies
// outside the data.
func VerifyChecksum(data []byte) *ChecksumInfo {
	if len(data) < 0x40 {
		return nil
	}
	offset := int64(binary.LittleEndian.Uint32(data[0x3C:])) + checksumFieldOffset
	if offset+4 > int64(len(data)) {
		return nil
	}

	stored := binary.LittleEndian.Uint32(data[offset:])
	computed := CalculatePEChecksum(data, offset)
	return &ChecksumInfo{
		Stored:   stored,
		Computed: computed,
		Valid:    stored == 0 || stored == computed,
	}
}

// CalculatePEChecksum sums the image as little-endian dwords, skipping the
// dword that contains checksumOffset (pass -1 to skip nothing), folds the sum
// to 16 bits and adds the file size.
func CalculatePEChecksum(data []byte, checksumOffset int64) uint32 {
	var checksum uint64
	var buf [4]byte

	skip := int64(-1)
	if checksumOffset >= 0 {
		skip = checksumOffset / 4
	}

	for offset := int64(0); offset < int64(len(data)); offset += 4 {
		if offset/4 == skip {
			continue
		}

		// Zero-pad a partial last dword.
		buf = [4]byte{}
		copy(buf[:], data[offset:])
		checksum = (checksum & 0xFFFFFFFF) + uint64(binary.LittleEndian.Uint32(buf[:])) + (checksum >> 32)
	}

	checksum = (checksum & 0xFFFF) + (checksum >> 16)
	checksum += checksum >> 16
	checksum &= 0xFFFF

	return uint32(checksum) + uint32(len(data))
}

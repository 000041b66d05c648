package pehash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

const (
	headerFieldsSize  = 2 + 2 + 4 + 4 + 8 + 8 + 2
	sectionFieldsSize = 4 + 4 + 1 + 1
)

// Digest is a pehashng value.
type Digest [sha256.Size]byte

// String renders the digest as lowercase hex.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDigest decodes a 64 character hex digest.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	if len(s) != hex.EncodedLen(len(d)) {
		return d, fmt.Errorf("摘要长度错误: %d 字符 (应为 %d)", len(s), hex.EncodedLen(len(d)))
	}
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return d, fmt.Errorf("解析摘要失败: %w", err)
	}
	return d, nil
}

// MarshalBinary returns the canonical byte stream: header fields followed by
// every section's fields, big-endian, no separators.
func (f Fields) MarshalBinary() ([]byte, error) {
	return f.appendTo(make([]byte, 0, headerFieldsSize+sectionFieldsSize*len(f.Sections))), nil
}

func (f Fields) appendTo(b []byte) []byte {
	h := f.Header
	b = binary.BigEndian.AppendUint16(b, h.Characteristics)
	b = binary.BigEndian.AppendUint16(b, h.Subsystem)
	b = binary.BigEndian.AppendUint32(b, h.SectionAlignment)
	b = binary.BigEndian.AppendUint32(b, h.FileAlignment)
	b = binary.BigEndian.AppendUint64(b, h.StackCommit)
	b = binary.BigEndian.AppendUint64(b, h.HeapCommit)
	b = binary.BigEndian.AppendUint16(b, h.Directories)

	for _, s := range f.Sections {
		b = binary.BigEndian.AppendUint32(b, s.VirtualAddress)
		b = binary.BigEndian.AppendUint32(b, s.RawSize)
		b = append(b, s.Flags, s.Complexity)
	}
	return b
}

// Sum hashes the canonical byte stream.
func (f Fields) Sum() Digest {
	return sha256.Sum256(f.appendTo(nil))
}

// Compute returns the pehashng of a header and its sections.
func Compute(h HeaderView, sections []SectionView) Digest {
	return Normalize(h, sections).Sum()
}

// FromImage returns the pehashng of a parsed image.
func FromImage(img Image) Digest {
	return Compute(img.Header(), img.Sections())
}

package pe

import (
	"fmt"
	"io"
	"os"

	"github.com/h2non/filetype"
)

// sniffLen is enough for every matcher filetype knows about.
const sniffLen = 262

// IsExecutable reports whether head starts like a DOS/PE executable.
func IsExecutable(head []byte) bool {
	return filetype.Is(head, "exe")
}

// SniffFile reads the start of the file at path and reports whether it looks
// like an executable.
func SniffFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("打开文件失败: %w", err)
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return false, fmt.Errorf("读取文件头失败: %w", err)
	}
	return IsExecutable(head[:n]), nil
}

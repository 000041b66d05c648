//go:build !cgo

package pehash

import (
	"bytes"
	"fmt"

	"github.com/dsnet/compress/bzip2"
)

// compressedLen returns the size of a bzip2 stream (900k blocks) holding data.
// The encoder is not libbz2, so lengths differ from cgo builds.
func compressedLen(data []byte) int {
	var buf bytes.Buffer
	zw, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: bzip2.BestCompression})
	if err != nil {
		panic(fmt.Sprintf("pehash: bzip2 writer: %v", err))
	}
	if _, err := zw.Write(data); err != nil {
		panic(fmt.Sprintf("pehash: bzip2 compress: %v", err))
	}
	if err := zw.Close(); err != nil {
		panic(fmt.Sprintf("pehash: bzip2 close: %v", err))
	}
	return buf.Len()
}

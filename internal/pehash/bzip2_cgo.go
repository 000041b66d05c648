//go:build cgo

package pehash

/*
#cgo LDFLAGS: -lbz2
#include <bzlib.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

const (
	bzBlockSize100k = 9
	bzVerbosity     = 0
	bzWorkFactor    = 0
)

// compressedLen returns the size of the stream libbz2 writes for data with
// 900k blocks and the default work factor.
func compressedLen(data []byte) int {
	src := data
	if len(src) == 0 {
		// libbz2 rejects a NULL source even when its length is zero.
		src = []byte{0}
	}
	// libbz2's documented worst case: 1% larger plus 600 bytes.
	dest := make([]byte, len(data)+len(data)/100+600)
	destLen := C.uint(len(dest))

	rc := C.BZ2_bzBuffToBuffCompress(
		(*C.char)(unsafe.Pointer(&dest[0])), &destLen,
		(*C.char)(unsafe.Pointer(&src[0])), C.uint(len(data)),
		bzBlockSize100k, bzVerbosity, bzWorkFactor)
	if rc != C.BZ_OK {
		panic(fmt.Sprintf("pehash: libbz2 compress failed: %d", int(rc)))
	}
	return int(destLen)
}

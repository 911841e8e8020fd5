// Package bspatch applies a patch produced by bsdiff, replaying its
// edit script against the old bytes to reconstruct the new bytes
// exactly (spec §3, §4.6).
package bspatch

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Smart-Mimic/minibsdiff/internal/codec"
	"github.com/Smart-Mimic/minibsdiff/internal/varint"
)

const headerSize = 32

// Error kinds (spec §7). Callers can errors.Is against these.
var (
	ErrInvalidSize    = errors.New("bspatch: invalid input size")
	ErrCorruptHeader  = errors.New("bspatch: corrupt header")
	ErrCodecFailure   = errors.New("bspatch: codec failure")
	ErrScriptBounds   = errors.New("bspatch: control triple out of bounds")
	ErrScriptTruncate = errors.New("bspatch: diff/extra stream exhausted before newpos reached new_size")
	ErrScriptLeftover = errors.New("bspatch: diff/extra stream has unconsumed bytes")
)

// ValidHeader performs a cheap syntactic check of patch's header:
// magic, and non-negative stream lengths.
func ValidHeader(patch []byte) bool {
	if len(patch) < headerSize {
		return false
	}
	if !bytes.Equal(patch[:8], []byte(magicCurrent)) && !bytes.Equal(patch[:8], []byte(magicLegacy)) {
		return false
	}
	ctrlLen := varint.Decode(patch[8:])
	diffLen := varint.Decode(patch[16:])
	newSize := varint.Decode(patch[24:])
	return ctrlLen >= 0 && diffLen >= 0 && newSize >= 0
}

const (
	magicCurrent = "MBSDIF43"
	magicLegacy  = "BSDIFF40"
)

// NewSize reads the declared output size from patch's header.
func NewSize(patch []byte) (int64, error) {
	if !ValidHeader(patch) {
		return -1, ErrCorruptHeader
	}
	return varint.Decode(patch[24:]), nil
}

// Apply reconstructs new bytes of length newSize from old and patch.
func Apply(old, patch []byte, newSize int64) ([]byte, error) {
	if newSize < 0 {
		return nil, ErrInvalidSize
	}
	if len(patch) < headerSize {
		return nil, fmt.Errorf("%w: patch shorter than header", ErrInvalidSize)
	}
	if !bytes.Equal(patch[:8], []byte(magicCurrent)) && !bytes.Equal(patch[:8], []byte(magicLegacy)) {
		return nil, fmt.Errorf("%w: bad magic", ErrCorruptHeader)
	}

	ctrlLen := varint.Decode(patch[8:])
	diffLen := varint.Decode(patch[16:])
	headerNewSize := varint.Decode(patch[24:])

	patchBody := int64(len(patch) - headerSize)
	if ctrlLen < 0 || diffLen < 0 || headerNewSize < 0 {
		return nil, fmt.Errorf("%w: negative stream length", ErrCorruptHeader)
	}
	if ctrlLen > patchBody {
		return nil, fmt.Errorf("%w: control stream longer than patch", ErrCorruptHeader)
	}
	if diffLen > patchBody-ctrlLen {
		return nil, fmt.Errorf("%w: diff stream longer than patch", ErrCorruptHeader)
	}
	if headerNewSize != newSize {
		return nil, fmt.Errorf("%w: header new_size %d != requested %d", ErrCorruptHeader, headerNewSize, newSize)
	}

	ctrlRaw, diffRaw, extraRaw, err := decompressStreams(patch, ctrlLen, diffLen, newSize)
	if err != nil {
		return nil, err
	}
	if len(ctrlRaw)%(3*varint.Size) != 0 {
		return nil, fmt.Errorf("%w: control stream size %d not a multiple of %d", ErrCorruptHeader, len(ctrlRaw), 3*varint.Size)
	}

	out := make([]byte, newSize)
	oldSize := int64(len(old))

	var newpos, oldpos int64
	var ctrlCursor, diffCursor, extraCursor int

	readTriple := func() (x, y, z int64, ok bool) {
		if ctrlCursor+3*varint.Size > len(ctrlRaw) {
			return 0, 0, 0, false
		}
		x = varint.Decode(ctrlRaw[ctrlCursor:])
		y = varint.Decode(ctrlRaw[ctrlCursor+varint.Size:])
		z = varint.Decode(ctrlRaw[ctrlCursor+2*varint.Size:])
		ctrlCursor += 3 * varint.Size
		return x, y, z, true
	}

	for newpos < newSize {
		x, y, z, ok := readTriple()
		if !ok {
			return nil, fmt.Errorf("%w: control stream ended with newpos=%d newsize=%d", ErrScriptTruncate, newpos, newSize)
		}
		if x < 0 || y < 0 {
			return nil, fmt.Errorf("%w: negative triple (%d,%d,%d)", ErrScriptBounds, x, y, z)
		}
		if newpos+x > newSize || newpos+x+y > newSize {
			return nil, fmt.Errorf("%w: copy_with_diff/insert_extra overruns new_size", ErrScriptBounds)
		}
		if diffCursor+int(x) > len(diffRaw) {
			return nil, fmt.Errorf("%w: diff stream exhausted", ErrScriptTruncate)
		}
		if extraCursor+int(y) > len(extraRaw) {
			return nil, fmt.Errorf("%w: extra stream exhausted", ErrScriptTruncate)
		}

		for i := int64(0); i < x; i++ {
			op := oldpos + i
			if op >= 0 && op < oldSize {
				out[newpos+i] = old[op] + diffRaw[diffCursor+int(i)]
			} else {
				out[newpos+i] = diffRaw[diffCursor+int(i)]
			}
		}
		diffCursor += int(x)
		newpos += x
		oldpos += x

		copy(out[newpos:newpos+y], extraRaw[extraCursor:extraCursor+int(y)])
		extraCursor += int(y)
		newpos += y
		oldpos += z
	}

	if ctrlCursor != len(ctrlRaw) || diffCursor != len(diffRaw) || extraCursor != len(extraRaw) {
		return nil, ErrScriptLeftover
	}

	return out, nil
}

// decompressStreams inflates the three codec-compressed blocks. The
// control stream's raw size isn't carried in the header (spec §4.6
// step 2); it's inferred from the codec's own output length, so it
// is decompressed against an upper bound (controlRawSizeHint) rather
// than an exact expected size.
func decompressStreams(patch []byte, ctrlLen, diffLen, newSize int64) (ctrl, diff, extra []byte, err error) {
	ctrlBlob := patch[headerSize : headerSize+ctrlLen]
	diffBlob := patch[headerSize+ctrlLen : headerSize+ctrlLen+diffLen]
	extraBlob := patch[headerSize+ctrlLen+diffLen:]

	ctrl, err = codec.Decompress(ctrlBlob, int(controlRawSizeHint(newSize)))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: control stream: %v", ErrCodecFailure, err)
	}
	diff, err = codec.Decompress(diffBlob, int(newSize))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: diff stream: %v", ErrCodecFailure, err)
	}
	extra, err = codec.Decompress(extraBlob, int(newSize))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: extra stream: %v", ErrCodecFailure, err)
	}
	return ctrl, diff, extra, nil
}

// controlRawSizeHint bounds the control stream: at most one triple
// per output byte, so 3*8 bytes of control per byte of new is a safe
// decompression cap (spec §4.6: "inferred from the codec's output
// length", not trusted from the header).
func controlRawSizeHint(newSize int64) int64 {
	return 3*varint.Size*newSize + 3*varint.Size
}

// Package bsdiff computes a binary delta between an old and a new
// byte sequence: a suffix-array search over old locates the longest
// matching runs as new is scanned, each match is extended backward
// and forward with a small tolerance for near-miss bytes, and the
// resulting edit script is written as a three-stream (control, diff,
// extra) container (spec §3, §4.4-§4.5).
package bsdiff

import (
	"errors"
	"fmt"

	"github.com/Smart-Mimic/minibsdiff/internal/codec"
	"github.com/Smart-Mimic/minibsdiff/internal/suffixarray"
	"github.com/Smart-Mimic/minibsdiff/internal/varint"
)

// MagicCurrent is written by Diff. MagicLegacy, the original BSDIFF40
// magic, is also accepted by bspatch; the header layout is the same,
// but bspatch decodes the streams with this build's codec, not the
// bzip2 payload of original BSDIFF40 patches.
const (
	MagicCurrent = "MBSDIF43"
	MagicLegacy  = "BSDIFF40"

	headerSize = 32
)

// ErrPatchTooSmall reports a caller-supplied patch buffer that cannot
// hold a patch. Diff never returns it, since it allocates its own
// output buffer.
var ErrPatchTooSmall = errors.New("bsdiff: patch buffer too small")

// matchSlack is the number of bytes a new match must beat
// continuing the current one by before it is worth emitting a
// fresh control triple (spec §4.4): it amortizes the fixed 24-byte
// cost of a triple against near-miss fragmentation.
const matchSlack = 8

// Diff computes the patch that transforms old into new.
func Diff(old, new_ []byte) ([]byte, error) {
	sa := suffixarray.Build(old)

	ctrl, diff, extra := scan(sa, old, new_)

	cctrl, err := codec.Compress(ctrl)
	if err != nil {
		return nil, fmt.Errorf("bsdiff: compress control stream: %w", err)
	}
	cdiff, err := codec.Compress(diff)
	if err != nil {
		return nil, fmt.Errorf("bsdiff: compress diff stream: %w", err)
	}
	cextra, err := codec.Compress(extra)
	if err != nil {
		return nil, fmt.Errorf("bsdiff: compress extra stream: %w", err)
	}

	out := make([]byte, headerSize+len(cctrl)+len(cdiff)+len(cextra))
	copy(out, MagicCurrent)
	varint.Encode(int64(len(cctrl)), out[8:])
	varint.Encode(int64(len(cdiff)), out[16:])
	varint.Encode(int64(len(new_)), out[24:])
	copy(out[headerSize:], cctrl)
	copy(out[headerSize+len(cctrl):], cdiff)
	copy(out[headerSize+len(cctrl)+len(cdiff):], cextra)

	return out, nil
}

// PatchSizeMax returns a conservative upper bound on the size of
// Diff's output for inputs of the given sizes (spec §6), for callers
// that must preallocate a patch buffer.
func PatchSizeMax(oldSize, newSize int64) int64 {
	raw := newSize + newSize/2 + 512
	// Three independently codec-expanded streams, each no larger
	// than the raw edit script itself in the worst case.
	return int64(headerSize) + 3*int64(codec.CompressBound(int(raw)))
}

// scan walks new, consulting the suffix array over old, and returns
// the raw (uncompressed) control, diff, and extra streams (spec §4.4).
func scan(sa *suffixarray.Index, old, new_ []byte) (ctrl, diff, extra []byte) {
	oldSize := len(old)
	newSize := len(new_)

	diffBuf := make([]byte, newSize+1)
	extraBuf := make([]byte, newSize+1)
	ctrlBuf := make([]byte, 0, 3*varint.Size*16)

	var dblen, eblen int
	var scanPos, matchLen, lastscan, lastpos, lastoffset int
	var pos int

	triple := make([]byte, varint.Size)
	emit := func(x, y, z int64) {
		varint.Encode(x, triple)
		ctrlBuf = append(ctrlBuf, triple...)
		varint.Encode(y, triple)
		ctrlBuf = append(ctrlBuf, triple...)
		varint.Encode(z, triple)
		ctrlBuf = append(ctrlBuf, triple...)
	}

	for scanPos < newSize {
		oldscore := 0
		scanPos += matchLen
		scsc := scanPos

		for ; scanPos < newSize; scanPos++ {
			pos, matchLen = sa.Search(old, new_[scanPos:])

			for ; scsc < scanPos+matchLen; scsc++ {
				if scsc+lastoffset < oldSize && old[scsc+lastoffset] == new_[scsc] {
					oldscore++
				}
			}

			if matchLen == oldscore && matchLen != 0 {
				break
			}
			if matchLen > oldscore+matchSlack {
				break
			}
			if scanPos+lastoffset < oldSize && old[scanPos+lastoffset] == new_[scanPos] {
				oldscore--
			}
		}

		if matchLen == oldscore && scanPos != newSize {
			continue
		}

		// Forward extension from lastscan: track the running score
		// and remember the length at which 2*score-i (matches minus
		// mismatches) peaked.
		s, sf, lenf := 0, 0, 0
		i := 0
		for lastscan+i < scanPos && lastpos+i < oldSize {
			if old[lastpos+i] == new_[lastscan+i] {
				s++
			}
			i++
			if s*2-i > sf*2-lenf {
				sf = s
				lenf = i
			}
		}

		// Backward extension from scanPos, bounded by lastscan and by
		// pos; any overlap with the forward extension is resolved below.
		lenb := 0
		if scanPos < newSize {
			s, sb := 0, 0
			for i := 1; scanPos >= lastscan+i && pos >= i; i++ {
				if old[pos-i] == new_[scanPos-i] {
					s++
				}
				if s*2-i > sb*2-lenb {
					sb = s
					lenb = i
				}
			}
		}

		// The two extensions may overlap in new; find the split
		// point that maximizes forward matches minus backward
		// matches within the overlap and redistribute it.
		if lastscan+lenf > scanPos-lenb {
			overlap := (lastscan + lenf) - (scanPos - lenb)
			s, ss, lens := 0, 0, 0
			for i := 0; i < overlap; i++ {
				if new_[lastscan+lenf-overlap+i] == old[lastpos+lenf-overlap+i] {
					s++
				}
				if new_[scanPos-lenb+i] == old[pos-lenb+i] {
					s--
				}
				if s > ss {
					ss = s
					lens = i + 1
				}
			}
			lenf += lens - overlap
			lenb -= lens
		}

		for i := 0; i < lenf; i++ {
			diffBuf[dblen+i] = new_[lastscan+i] - old[lastpos+i]
		}
		extraLen := (scanPos - lenb) - (lastscan + lenf)
		for i := 0; i < extraLen; i++ {
			extraBuf[eblen+i] = new_[lastscan+lenf+i]
		}

		dblen += lenf
		eblen += extraLen

		emit(int64(lenf), int64(extraLen), int64((pos-lenb)-(lastpos+lenf)))

		lastscan = scanPos - lenb
		lastpos = pos - lenb
		lastoffset = pos - scanPos
	}

	return ctrlBuf, diffBuf[:dblen], extraBuf[:eblen]
}

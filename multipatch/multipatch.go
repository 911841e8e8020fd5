// Package multipatch batches N independent bsdiff patches behind a
// single addressable container (spec §3 "Multi-patch container",
// §4.7). Each entry records where its single-patch blob lives plus
// the input/output sizes needed to validate and apply it.
//
// Apply strategy (spec §9 Open Question, resolved): the caller
// supplies one input buffer whose length equals the sum of every
// entry's input_size. Entries consume sequential, non-overlapping
// slices of that buffer in order — the stricter of the two diverging
// behaviors in the original source, which also allows proportional
// slicing; this rewrite rejects any container/input pairing that
// doesn't partition exactly rather than silently padding with zeros.
package multipatch

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Smart-Mimic/minibsdiff/bspatch"
	"github.com/Smart-Mimic/minibsdiff/bsdiff"
	"github.com/Smart-Mimic/minibsdiff/internal/varint"
)

const (
	magic      = "MPATCH01"
	headerSize = 24 // magic(8) + num_patches(8) + total_newsize(8)
	entrySize  = 32 // patch_offset(8) + patch_size(8) + input_size(8) + output_size(8)
)

var (
	// ErrCorruptHeader covers a bad magic, negative header fields, or
	// a container too short for its declared entry table.
	ErrCorruptHeader = errors.New("multipatch: corrupt header")
	// ErrInvalidEntry covers an out-of-bounds or negative entry field.
	ErrInvalidEntry = errors.New("multipatch: invalid entry")
	// ErrInputMismatch is returned when the supplied input does not
	// partition exactly into the entries' input_size fields.
	ErrInputMismatch = errors.New("multipatch: input size does not match sum of entry input sizes")
)

// Pair is one old/new chunk to be diffed independently and placed in
// the container.
type Pair struct {
	Old []byte
	New []byte
}

type entry struct {
	patchOffset int64
	patchSize   int64
	inputSize   int64
	outputSize  int64
}

// Create diffs each pair independently and concatenates the results
// behind a header and an entry table (spec §4.7 Generation).
func Create(pairs []Pair) ([]byte, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("multipatch: no pairs given")
	}

	patches := make([][]byte, len(pairs))
	entries := make([]entry, len(pairs))
	var totalNew int64

	offset := int64(headerSize + entrySize*len(pairs))
	for i, p := range pairs {
		patch, err := bsdiff.Diff(p.Old, p.New)
		if err != nil {
			return nil, fmt.Errorf("multipatch: diff entry %d: %w", i, err)
		}
		patches[i] = patch
		entries[i] = entry{
			patchOffset: offset,
			patchSize:   int64(len(patch)),
			inputSize:   int64(len(p.Old)),
			outputSize:  int64(len(p.New)),
		}
		offset += int64(len(patch))
		totalNew += int64(len(p.New))
	}

	container := make([]byte, offset)
	copy(container, magic)
	varint.Encode(int64(len(pairs)), container[8:])
	varint.Encode(totalNew, container[16:])

	for i, e := range entries {
		off := headerSize + i*entrySize
		varint.Encode(e.patchOffset, container[off:])
		varint.Encode(e.patchSize, container[off+8:])
		varint.Encode(e.inputSize, container[off+16:])
		varint.Encode(e.outputSize, container[off+24:])
	}
	for i, e := range entries {
		copy(container[e.patchOffset:e.patchOffset+e.patchSize], patches[i])
	}

	return container, nil
}

// TotalSize reads the total output size declared by the container's
// header without validating the entry table.
func TotalSize(container []byte) (int64, error) {
	if len(container) < headerSize {
		return -1, ErrCorruptHeader
	}
	if !bytes.Equal(container[:8], []byte(magic)) {
		return -1, ErrCorruptHeader
	}
	return varint.Decode(container[16:]), nil
}

// Valid reports whether container has a well-formed header and an
// entry table whose offsets and sizes lie within the container.
func Valid(container []byte) bool {
	_, err := parse(container)
	return err == nil
}

func parse(container []byte) ([]entry, error) {
	if len(container) < headerSize {
		return nil, fmt.Errorf("%w: shorter than header", ErrCorruptHeader)
	}
	if !bytes.Equal(container[:8], []byte(magic)) {
		return nil, fmt.Errorf("%w: bad magic", ErrCorruptHeader)
	}

	numPatches := varint.Decode(container[8:])
	if numPatches <= 0 {
		return nil, fmt.Errorf("%w: non-positive num_patches", ErrCorruptHeader)
	}

	tableEnd := int64(headerSize) + numPatches*entrySize
	if tableEnd > int64(len(container)) {
		return nil, fmt.Errorf("%w: container too small for %d entries", ErrCorruptHeader, numPatches)
	}

	entries := make([]entry, numPatches)
	for i := range entries {
		off := headerSize + int(i)*entrySize
		e := entry{
			patchOffset: varint.Decode(container[off:]),
			patchSize:   varint.Decode(container[off+8:]),
			inputSize:   varint.Decode(container[off+16:]),
			outputSize:  varint.Decode(container[off+24:]),
		}
		if e.patchOffset < 0 || e.patchSize < 0 || e.inputSize < 0 || e.outputSize < 0 {
			return nil, fmt.Errorf("%w %d: negative field", ErrInvalidEntry, i)
		}
		if e.patchOffset+e.patchSize > int64(len(container)) {
			return nil, fmt.Errorf("%w %d: patch blob out of bounds", ErrInvalidEntry, i)
		}
		entries[i] = e
	}
	return entries, nil
}

// Apply validates container, partitions input sequentially across
// its entries, applies each single-patch, and concatenates the
// outputs in entry order (spec §4.7 Application).
func Apply(container, input []byte) ([]byte, error) {
	entries, err := parse(container)
	if err != nil {
		return nil, err
	}

	var wantInput int64
	for _, e := range entries {
		wantInput += e.inputSize
	}
	if wantInput != int64(len(input)) {
		return nil, fmt.Errorf("%w: container wants %d bytes, got %d", ErrInputMismatch, wantInput, len(input))
	}

	totalNew, err := TotalSize(container)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, totalNew)
	var inPos int64
	for i, e := range entries {
		chunkIn := input[inPos : inPos+e.inputSize]
		patch := container[e.patchOffset : e.patchOffset+e.patchSize]

		chunkOut, err := bspatch.Apply(chunkIn, patch, e.outputSize)
		if err != nil {
			return nil, fmt.Errorf("multipatch: apply entry %d: %w", i, err)
		}
		out = append(out, chunkOut...)
		inPos += e.inputSize
	}

	if int64(len(out)) != totalNew {
		return nil, fmt.Errorf("%w: produced %d bytes, header declares %d", ErrCorruptHeader, len(out), totalNew)
	}

	return out, nil
}

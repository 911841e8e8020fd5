package bspatch_test

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/Smart-Mimic/minibsdiff/bsdiff"
	"github.com/Smart-Mimic/minibsdiff/bspatch"
)

func randomBytes(n int, seed int64) []byte {
	r := rand.New(rand.NewSource(seed))
	b := make([]byte, n)
	r.Read(b)
	return b
}

func TestValidHeader(t *testing.T) {
	old := randomBytes(512, 1)
	new_ := randomBytes(600, 2)
	patch, err := bsdiff.Diff(old, new_)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}

	if !bspatch.ValidHeader(patch) {
		t.Fatalf("ValidHeader rejected a well-formed patch")
	}
	if bspatch.ValidHeader(patch[:31]) {
		t.Fatalf("ValidHeader accepted a patch shorter than the header")
	}
	if bspatch.ValidHeader(nil) {
		t.Fatalf("ValidHeader accepted a nil patch")
	}

	bad := append([]byte(nil), patch...)
	bad[0] ^= 0xFF
	if bspatch.ValidHeader(bad) {
		t.Fatalf("ValidHeader accepted a patch with a corrupted magic byte")
	}
}

func TestApply_RejectsTruncatedPatch(t *testing.T) {
	old := randomBytes(2048, 3)
	new_ := randomBytes(2048, 4)
	patch, err := bsdiff.Diff(old, new_)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}

	newSize, err := bspatch.NewSize(patch)
	if err != nil {
		t.Fatalf("NewSize: %v", err)
	}

	truncated := patch[:len(patch)/2]
	if _, err := bspatch.Apply(old, truncated, newSize); err == nil {
		t.Fatalf("Apply accepted a truncated patch")
	}
}

func TestApply_RejectsBadMagic(t *testing.T) {
	old := randomBytes(100, 5)
	new_ := randomBytes(100, 6)
	patch, err := bsdiff.Diff(old, new_)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	corrupted := append([]byte(nil), patch...)
	copy(corrupted[:8], []byte("GARBAGE!"))

	if _, err := bspatch.Apply(old, corrupted, int64(len(new_))); err == nil {
		t.Fatalf("Apply accepted a patch with invalid magic")
	}
}

func TestApply_NeverOverrunsOutputOnBitFlips(t *testing.T) {
	old := randomBytes(3000, 7)
	new_ := randomBytes(3000, 8)
	patch, err := bsdiff.Diff(old, new_)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	newSize := int64(len(new_))

	rng := rand.New(rand.NewSource(99))
	for i := 0; i < 200; i++ {
		corrupted := append([]byte(nil), patch...)
		idx := rng.Intn(len(corrupted))
		bit := byte(1) << uint(rng.Intn(8))
		corrupted[idx] ^= bit

		out, err := bspatch.Apply(old, corrupted, newSize)
		if err != nil {
			continue // corruption correctly rejected
		}
		if int64(len(out)) != newSize {
			t.Fatalf("flip at byte %d: output length %d != requested %d", idx, len(out), newSize)
		}
		if bytes.Equal(out, new_) {
			continue // flip landed in codec redundancy; harmless
		}
	}
}

func TestApply_RejectsMismatchedNewSize(t *testing.T) {
	old := randomBytes(200, 9)
	new_ := randomBytes(250, 10)
	patch, err := bsdiff.Diff(old, new_)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}

	if _, err := bspatch.Apply(old, patch, int64(len(new_))+1); err == nil {
		t.Fatalf("Apply accepted a newSize that disagrees with the header")
	}
}

func TestApply_AcceptsLegacyMagic(t *testing.T) {
	old := randomBytes(64, 11)
	new_ := randomBytes(64, 12)
	patch, err := bsdiff.Diff(old, new_)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	legacy := append([]byte(nil), patch...)
	copy(legacy[:8], []byte("BSDIFF40"))

	if !bspatch.ValidHeader(legacy) {
		t.Fatalf("ValidHeader rejected the legacy BSDIFF40 magic")
	}
	out, err := bspatch.Apply(old, legacy, int64(len(new_)))
	if err != nil {
		t.Fatalf("Apply rejected a patch using the legacy magic: %v", err)
	}
	if !bytes.Equal(out, new_) {
		t.Fatalf("legacy-magic patch applied incorrectly")
	}
}

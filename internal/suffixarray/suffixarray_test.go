package suffixarray

import (
	"bytes"
	"math/rand"
	"testing"
)

// saOf exposes the internal permutation for invariant checks.
func saOf(idx *Index) []int { return idx.sa }

func TestBuild_LexOrderInvariant(t *testing.T) {
	inputs := [][]byte{
		[]byte(""),
		[]byte("a"),
		[]byte("banana"),
		[]byte("mississippi"),
		[]byte("aaaaaaaaaa"),
		randomBytes(2048, 7),
	}

	for _, old := range inputs {
		idx := Build(old)
		sa := saOf(idx)
		n := len(old)

		if len(sa) != n+1 {
			t.Fatalf("len(sa) = %d, want %d", len(sa), n+1)
		}

		seen := make(map[int]bool, n+1)
		for _, v := range sa {
			if v < 0 || v > n {
				t.Fatalf("sa entry %d out of range [0,%d]", v, n)
			}
			if seen[v] {
				t.Fatalf("sa entry %d duplicated", v)
			}
			seen[v] = true
		}

		for a := 0; a+1 < len(sa); a++ {
			suffA := old[sa[a]:]
			suffB := old[sa[a+1]:]
			if bytes.Compare(suffA, suffB) > 0 {
				t.Fatalf("sa[%d..%d] out of lex order: %q > %q", a, a+1, suffA, suffB)
			}
		}
	}
}

func TestSearch_FindsLongestMatch(t *testing.T) {
	old := []byte("the quick brown fox jumps over the lazy dog")
	idx := Build(old)

	pos, length := idx.Search(old, []byte("the lazy dog and more"))
	if length != len("the lazy dog") {
		t.Fatalf("length = %d, want %d", length, len("the lazy dog"))
	}
	if !bytes.Equal(old[pos:pos+length], []byte("the lazy dog")) {
		t.Fatalf("match at %d = %q, want %q", pos, old[pos:pos+length], "the lazy dog")
	}
}

func TestSearch_NoMatch(t *testing.T) {
	old := []byte("aaaaaaaaaa")
	idx := Build(old)
	_, length := idx.Search(old, []byte("zzz"))
	if length != 0 {
		t.Fatalf("length = %d, want 0", length)
	}
}

func randomBytes(n int, seed int64) []byte {
	r := rand.New(rand.NewSource(seed))
	b := make([]byte, n)
	r.Read(b)
	return b
}

// Package suffixarray builds a suffix array over an old byte sequence
// and answers longest-common-prefix queries against it.
//
// The construction follows the Larsson-Sadakane doubling algorithm
// (qsufsort), the same approach used by the original bsdiff: O(n
// (log n)^2) time, O(n) extra memory, deterministic for identical
// input.
package suffixarray

import "bytes"

// Index is a suffix array over some old byte sequence of length n: a
// permutation of 0..n (inclusive) ordered lexicographically by the
// suffix starting at each index. Entry n is the sentinel empty
// suffix.
type Index struct {
	sa []int
}

// Build constructs the suffix array for old. len(Index.sa) == len(old)+1.
func Build(old []byte) *Index {
	n := len(old)
	sa := make([]int, n+1)
	rank := make([]int, n+1)
	qsufsort(sa, rank, old)
	return &Index{sa: sa}
}

// Search finds the longest prefix of needle occurring anywhere in
// old, returning the match length and one old-index at which it
// occurs (ties are broken by suffix-array order, which is an
// implementation detail not observable by callers).
func (idx *Index) Search(old, needle []byte) (pos, length int) {
	return search(idx.sa, old, needle, 0, len(idx.sa)-1)
}

func search(sa []int, old, needle []byte, lo, hi int) (pos, length int) {
	if hi-lo < 2 {
		xlen := matchlen(old[sa[lo]:], needle)
		ylen := matchlen(old[sa[hi]:], needle)
		if xlen > ylen {
			return sa[lo], xlen
		}
		return sa[hi], ylen
	}

	mid := lo + (hi-lo)/2
	cmplen := min(len(old)-sa[mid], len(needle))
	if bytes.Compare(old[sa[mid]:sa[mid]+cmplen], needle[:cmplen]) < 0 {
		return search(sa, old, needle, mid, hi)
	}
	return search(sa, old, needle, lo, mid)
}

func matchlen(old, needle []byte) int {
	n := min(len(old), len(needle))
	i := 0
	for i < n && old[i] == needle[i] {
		i++
	}
	return i
}

// qsufsort builds sa (the suffix array) and rank (the inverse
// permutation, used only as scratch during construction) for buf.
// sa and rank must already be sized len(buf)+1.
func qsufsort(sa, rank []int, buf []byte) {
	var buckets [256]int
	n := len(buf)

	for _, c := range buf {
		buckets[c]++
	}
	for i := 1; i < 256; i++ {
		buckets[i] += buckets[i-1]
	}
	for i := 255; i > 0; i-- {
		buckets[i] = buckets[i-1]
	}
	buckets[0] = 0

	for i, c := range buf {
		buckets[c]++
		sa[buckets[c]] = i
	}
	sa[0] = n

	for i, c := range buf {
		rank[i] = buckets[c]
	}
	rank[n] = 0

	for i := 1; i < 256; i++ {
		if buckets[i] == buckets[i-1]+1 {
			sa[buckets[i]] = -1
		}
	}
	sa[0] = -1

	for h := 1; sa[0] != -(n + 1); h += h {
		length := 0
		i := 0
		for i < n+1 {
			if sa[i] < 0 {
				length -= sa[i]
				i -= sa[i]
			} else {
				if length != 0 {
					sa[i-length] = -length
				}
				length = rank[sa[i]] + 1 - i
				split(sa, rank, i, length, h)
				i += length
				length = 0
			}
		}
		if length != 0 {
			sa[i-length] = -length
		}
	}

	for i := 0; i < n+1; i++ {
		sa[rank[i]] = i
	}
}

// split is the ternary-split quicksort step of qsufsort: it refines
// the rank of the bucket sa[start:start+length] using the rank h
// positions ahead, following Larsson & Sadakane's "Faster Suffix
// Sorting" (TR LU-CS-TR:99-214).
func split(sa, rank []int, start, length, h int) {
	if length < 16 {
		for k := start; k < start+length; {
			j := 1
			x := rank[sa[k]+h]
			i := 1
			for ; k+i < start+length; i++ {
				if rank[sa[k+i]+h] < x {
					x = rank[sa[k+i]+h]
					j = 0
				}
				if rank[sa[k+i]+h] == x {
					sa[k+j], sa[k+i] = sa[k+i], sa[k+j]
					j++
				}
			}
			for i := 0; i < j; i++ {
				rank[sa[k+i]] = k + j - 1
			}
			if j == 1 {
				sa[k] = -1
			}
			k += j
		}
		return
	}

	x := rank[sa[start+length/2]+h]
	var jj, kk int
	for i := start; i < start+length; i++ {
		if rank[sa[i]+h] < x {
			jj++
		} else if rank[sa[i]+h] == x {
			kk++
		}
	}
	jj += start
	kk += jj

	i, j, k := start, 0, 0
	for i < jj {
		if rank[sa[i]+h] < x {
			i++
		} else if rank[sa[i]+h] == x {
			sa[i], sa[jj+j] = sa[jj+j], sa[i]
			j++
		} else {
			sa[i], sa[kk+k] = sa[kk+k], sa[i]
			k++
		}
	}

	for jj+j < kk {
		if rank[sa[jj+j]+h] == x {
			j++
		} else {
			sa[jj+j], sa[kk+k] = sa[kk+k], sa[jj+j]
			k++
		}
	}

	if jj > start {
		split(sa, rank, start, jj-start, h)
	}

	for i := 0; i < kk-jj; i++ {
		rank[sa[jj+i]] = kk - 1
	}
	if jj == kk-1 {
		sa[jj] = -1
	}

	if start+length > kk {
		split(sa, rank, kk, start+length-kk, h)
	}
}

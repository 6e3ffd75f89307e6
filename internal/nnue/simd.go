package nnue

import "unsafe"

// addInt16 computes dst[i] += src[i]. Unrolled by 8 so the compiler keeps the
// loop body free of data-dependent branches.
func addInt16(dst, src []int16) {
	src = src[:len(dst)]
	i := 0
	for ; i+8 <= len(dst); i += 8 {
		d := dst[i : i+8 : i+8]
		s := src[i : i+8 : i+8]
		d[0] += s[0]
		d[1] += s[1]
		d[2] += s[2]
		d[3] += s[3]
		d[4] += s[4]
		d[5] += s[5]
		d[6] += s[6]
		d[7] += s[7]
	}
	for ; i < len(dst); i++ {
		dst[i] += src[i]
	}
}

// subInt16 computes dst[i] -= src[i].
func subInt16(dst, src []int16) {
	src = src[:len(dst)]
	i := 0
	for ; i+8 <= len(dst); i += 8 {
		d := dst[i : i+8 : i+8]
		s := src[i : i+8 : i+8]
		d[0] -= s[0]
		d[1] -= s[1]
		d[2] -= s[2]
		d[3] -= s[3]
		d[4] -= s[4]
		d[5] -= s[5]
		d[6] -= s[6]
		d[7] -= s[7]
	}
	for ; i < len(dst); i++ {
		dst[i] -= src[i]
	}
}

// dotCReLU returns sum(clamp(in[i], 0, qa) * w[i]).
func dotCReLU(in, w []int16, qa int32) int32 {
	w = w[:len(in)]
	var sum int32
	for i, x := range in {
		sum += ClippedReLU(x, qa) * int32(w[i])
	}
	return sum
}

// alignedInt16 allocates n int16 values whose first element sits on a
// CacheLineSize boundary.
func alignedInt16(n int) []int16 {
	const pad = CacheLineSize / 2
	buf := make([]int16, n+pad)
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	off := 0
	if rem := addr % CacheLineSize; rem != 0 {
		off = int((CacheLineSize - rem) / 2)
	}
	return buf[off : off+n : off+n]
}

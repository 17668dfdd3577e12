package match

import "github.com/himanishpuri/EarMark/pkg/earmark/fingerprint"

// NumCandidates is the number of masks within Hamming distance 2 of a 22-bit
// mask: 1 + 22 + 231.
const NumCandidates = 1 + fingerprint.MaskBits + fingerprint.MaskBits*(fingerprint.MaskBits-1)/2

// Candidates returns every hash whose mask differs from hash's in at most two
// bits. The band bits are never changed. hash itself comes first.
func Candidates(hash uint32) []uint32 {
	return AppendCandidates(make([]uint32, 0, NumCandidates), hash)
}

// AppendCandidates appends the candidates of hash to dst.
func AppendCandidates(dst []uint32, hash uint32) []uint32 {
	dst = append(dst, hash)
	for i := 0; i < fingerprint.MaskBits; i++ {
		dst = append(dst, hash^1<<i)
	}
	for i := 0; i < fingerprint.MaskBits; i++ {
		for j := i + 1; j < fingerprint.MaskBits; j++ {
			dst = append(dst, hash^(1<<i|1<<j))
		}
	}
	return dst
}

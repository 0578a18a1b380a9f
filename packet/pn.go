// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package packet

// EncodePNLen returns the minimal number of bytes (1-4) needed to represent
// pn as a truncated packet number, given the largest packet number known
// to be acknowledged in the same packet-number space (RFC 9000 §17.1:
// "the smallest packet number that would be larger than the packet
// number being sent").
func EncodePNLen(pn, largestAcked uint64) int {
	// The window of consecutive values sinceAcked can unambiguously
	// represent with w bits is 2^w; the chosen length must satisfy
	// w >= log2(2*(pn-largestAcked)+1)+1 (RFC 9000 §17.1 reference
	// pseudocode "the number of bits must be at least one more than
	// the base-2 logarithm of the number of contiguous unacknowledged
	// packet numbers").
	delta := pn - largestAcked
	if largestAcked == 0 && pn == 0 {
		delta = 1
	}
	for _, candidate := range []int{1, 2, 3, 4} {
		if delta < (uint64(1) << (uint(candidate)*8 - 1)) {
			return candidate
		}
	}
	return 4
}

// TruncatePN writes the low pnLen bytes of pn in big-endian order to out,
// which must have length pnLen.
func TruncatePN(out []byte, pn uint64, pnLen int) {
	for i := 0; i < pnLen; i++ {
		out[pnLen-1-i] = byte(pn >> (8 * i))
	}
}

// DecodePN reconstructs the full packet number from a truncated
// representation, per RFC 9000 Appendix A.3's reference algorithm.
func DecodePN(truncated uint64, pnLen int, largestAcked uint64) uint64 {
	pnBits := uint(pnLen) * 8
	expected := largestAcked + 1
	win := uint64(1) << pnBits
	halfWin := win / 2
	candidate := (expected &^ (win - 1)) | truncated

	switch {
	case expected >= halfWin && candidate <= expected-halfWin && candidate < (uint64(1)<<62)-win:
		return candidate + win
	case candidate > expected+halfWin && candidate >= win:
		return candidate - win
	default:
		return candidate
	}
}

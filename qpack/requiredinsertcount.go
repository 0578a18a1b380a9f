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

package qpack

// encodeRequiredInsertCount implements RFC 9204 §4.5.1.1's wire
// encoding of the Required Insert Count field: the true count is never
// sent directly, only its residue modulo twice the table's maximum
// entry count, so the field never grows wider than the table itself
// could justify.
func encodeRequiredInsertCount(ric, maxEntries uint64) uint64 {
	if ric == 0 {
		return 0
	}
	if maxEntries == 0 {
		return ric + 1
	}
	return (ric % (2 * maxEntries)) + 1
}

// decodeRequiredInsertCount reverses encodeRequiredInsertCount given the
// decoder's own view of how many insertions it has actually observed
// (totalInserted), per RFC 9204 §4.5.1.1.
func decodeRequiredInsertCount(encoded, maxEntries, totalInserted uint64) (uint64, error) {
	if encoded == 0 {
		return 0, nil
	}
	if maxEntries == 0 {
		return 0, newError("required insert count encoded as %d against a zero-capacity table", encoded)
	}

	fullRange := 2 * maxEntries
	if encoded > fullRange {
		return 0, newError("required insert count field %d exceeds wrap range %d", encoded, fullRange)
	}

	maxValue := totalInserted + maxEntries
	maxWrapped := (maxValue / fullRange) * fullRange
	ric := maxWrapped + encoded - 1

	if ric > maxValue {
		if ric < fullRange {
			return 0, newError("required insert count %d underflows wrap range", ric)
		}
		ric -= fullRange
	}
	if ric == 0 {
		return 0, newError("required insert count decodes to 0 for a non-zero field")
	}
	return ric, nil
}

// encodeBase splits base relative to the Required Insert Count into the
// sign bit and Delta Base magnitude the header block prefix carries
// (RFC 9204 §4.5.1).
func encodeBase(base, ric uint64) (negative bool, delta uint64) {
	if base >= ric {
		return false, base - ric
	}
	return true, ric - base - 1
}

// decodeBase reverses encodeBase.
func decodeBase(ric uint64, negative bool, delta uint64) (uint64, error) {
	if !negative {
		return ric + delta, nil
	}
	if delta+1 > ric {
		return 0, newError("negative base delta %d underflows required insert count %d", delta, ric)
	}
	return ric - delta - 1, nil
}

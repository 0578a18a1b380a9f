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

package frame

// PathChallenge probes reachability of a path; the 8-byte payload must
// be echoed back verbatim in a PathResponse.
type PathChallenge struct{ Data [8]byte }

func (f *PathChallenge) FrameType() Type { return TypePathChallenge }
func (f *PathChallenge) EvalSize() int   { return 1 + 8 }
func (f *PathChallenge) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, byte(TypePathChallenge))
	return append(dst, f.Data[:]...), nil
}
func decodePathChallenge(rest []byte) (Frame, int, error) {
	if len(rest) < 8 {
		return nil, 0, ErrPartialFrame
	}
	var f PathChallenge
	copy(f.Data[:], rest[:8])
	return &f, 1 + 8, nil
}

// PathResponse answers a PathChallenge.
type PathResponse struct{ Data [8]byte }

func (f *PathResponse) FrameType() Type { return TypePathResponse }
func (f *PathResponse) EvalSize() int   { return 1 + 8 }
func (f *PathResponse) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, byte(TypePathResponse))
	return append(dst, f.Data[:]...), nil
}
func decodePathResponse(rest []byte) (Frame, int, error) {
	if len(rest) < 8 {
		return nil, 0, ErrPartialFrame
	}
	var f PathResponse
	copy(f.Data[:], rest[:8])
	return &f, 1 + 8, nil
}
